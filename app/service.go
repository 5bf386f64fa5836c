// Package app assembles the planning service from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/pailas/api/planning"
	"github.com/kilianp07/pailas/catalog"
	"github.com/kilianp07/pailas/config"
	"github.com/kilianp07/pailas/core/allocation"
	"github.com/kilianp07/pailas/core/audit"
	"github.com/kilianp07/pailas/core/eligibility"
	"github.com/kilianp07/pailas/core/events"
	coremetrics "github.com/kilianp07/pailas/core/metrics"
	coremon "github.com/kilianp07/pailas/core/monitoring"
	"github.com/kilianp07/pailas/core/store"
	"github.com/kilianp07/pailas/infra/logger"
	"github.com/kilianp07/pailas/infra/metrics"
	"github.com/kilianp07/pailas/infra/monitoring"
	"github.com/kilianp07/pailas/infra/mqtt"
	"github.com/kilianp07/pailas/infra/store/memory"
	"github.com/kilianp07/pailas/infra/store/sqlstore"
	"github.com/kilianp07/pailas/internal/eventbus"
)

// OpenStore builds the configured backend. SQL stores are migrated when
// AutoMigrate is set.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.New(), nil
	case "sqlite", "postgres":
		s, err := sqlstore.Open(ctx, sqlstore.Config{
			Dialect:         cfg.Driver,
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime(),
		})
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := s.Migrate(ctx); err != nil {
				_ = s.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// ImportSeed loads the YAML dataset at path into s.
func ImportSeed(ctx context.Context, s store.Store, path string) (store.Dataset, error) {
	imp, ok := s.(store.Importer)
	if !ok {
		return store.Dataset{}, fmt.Errorf("store %T cannot import data", s)
	}
	ds, err := catalog.LoadSeed(path)
	if err != nil {
		return store.Dataset{}, err
	}
	if err := imp.Import(ctx, ds); err != nil {
		return store.Dataset{}, fmt.Errorf("import seed: %w", err)
	}
	return ds, nil
}

// Service wires the planning core to its adapters.
type Service struct {
	Store    store.Store
	Engine   *allocation.Engine
	Resolver *eligibility.Resolver
	Bus      *eventbus.Bus
	Handler  *planning.Handler

	cfg     *config.Config
	sink    coremetrics.MetricsSink
	audit   audit.Store
	pub     *mqtt.Publisher
	monitor coremon.Monitor
	log     logger.Logger
}

// New creates a Service from the configuration. Nothing runs until Run.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	log := logger.New("service")
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	st, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	svc := &Service{Store: st, cfg: cfg, monitor: mon, log: log}
	if cfg.Store.Seed != "" {
		ds, err := ImportSeed(ctx, st, cfg.Store.Seed)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		log.Infow("seed imported", map[string]any{
			"path":    cfg.Store.Seed,
			"vessels": len(ds.Vessels),
			"orders":  len(ds.Orders),
		})
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	svc.sink = sink

	auditStore, err := audit.NewStore(cfg.Audit)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("audit store: %w", err)
	}
	svc.audit = auditStore

	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewPublisher(cfg.MQTT)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.pub = pub
	}

	svc.Bus = eventbus.New(eventbus.DefaultBuffer)
	svc.Engine = allocation.NewEngine(st,
		allocation.WithPublisher(svc.Bus),
		allocation.WithMetrics(sink),
		allocation.WithLogger(logger.New("allocation")),
	)
	svc.Resolver = eligibility.NewResolver(st, logger.New("eligibility"))
	svc.Resolver.SetMetrics(sink)
	svc.Handler = planning.NewHandler(planning.Deps{
		Resolver: svc.Resolver,
		Planner:  svc.Engine,
		Reader:   st,
		Ready:    st,
		Audit:    auditStore,
		Log:      logger.New("api"),
		Timeout:  cfg.HTTP.RequestTimeout(),
		Horizon:  cfg.Metrics.UtilizationHorizon(),
	})
	return svc, nil
}

// Router returns the HTTP handler of the planning API. /metrics is mounted
// on it when a Prometheus sink is configured without a dedicated address.
func (s *Service) Router() *gin.Engine {
	gin.SetMode(s.cfg.HTTP.Mode)
	r := planning.NewRouter(s.Handler)
	if s.cfg.Metrics.HasSink("prometheus") && s.cfg.Metrics.PrometheusAddr == "" {
		r.GET("/metrics", gin.WrapH(metrics.PromHandler(nil)))
	}
	return r
}

// Start launches the bus consumers: audit, MQTT and utilization. The
// returned channel is closed once all of them have stopped, which happens
// when ctx is canceled or the bus is closed. Closing the bus lets them
// drain pending events first.
func (s *Service) Start(ctx context.Context) <-chan struct{} {
	done := []<-chan struct{}{s.startAudit(ctx)}
	if s.pub != nil {
		done = append(done, s.pub.Start(ctx, s.Bus))
	}
	if rec, ok := s.sink.(coremetrics.UtilizationRecorder); ok && len(s.cfg.Metrics.Sinks) > 0 {
		c := &metrics.UtilizationCollector{
			Reader:  s.Store,
			Sink:    rec,
			Horizon: s.cfg.Metrics.UtilizationHorizon(),
			Log:     logger.New("utilization"),
		}
		if err := c.Collect(ctx); err != nil {
			s.log.Warnf("initial utilization: %v", err)
		}
		done = append(done, c.Start(ctx, s.Bus))
	}
	all := make(chan struct{})
	go func() {
		defer close(all)
		for _, d := range done {
			<-d
		}
	}()
	return all
}

// Run starts the consumers and servers and blocks until ctx is canceled or
// a server fails.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	consumers := s.Start(ctx)
	errc := make(chan error, 2)
	var wg sync.WaitGroup
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer coremon.Recover()
			if err := metrics.StartPromServer(ctx, addr, nil); err != nil {
				errc <- fmt.Errorf("prom server: %w", err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer coremon.Recover()
		if err := s.serve(ctx); err != nil {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
		coremon.CaptureException(runErr, map[string]string{"module": "service"})
		cancel()
	}
	wg.Wait()
	<-consumers
	return runErr
}

func (s *Service) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTP.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warnf("http shutdown: %v", err)
		}
		cancel()
	}()
	s.log.Infof("planning API listening on %s", s.cfg.HTTP.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// startAudit appends an audit record for every audited event.
func (s *Service) startAudit(ctx context.Context) <-chan struct{} {
	return eventbus.Start(ctx, s.Bus, func(ev events.Event) {
		rec, ok := audit.FromEvent(ev)
		if !ok {
			return
		}
		if err := s.audit.Append(context.WithoutCancel(ctx), rec); err != nil {
			s.log.Errorf("audit append %s: %v", ev.EventID(), err)
			coremon.CaptureException(err, map[string]string{"module": "audit", "event": ev.Kind()})
		}
	})
}

// Close releases every resource held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.Bus != nil {
		s.Bus.Close()
	}
	if s.pub != nil {
		s.pub.Disconnect()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.audit != nil {
		errs = append(errs, s.audit.Close())
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	if s.monitor != nil {
		s.monitor.Flush(2 * time.Second)
	}
	return errors.Join(errs...)
}
