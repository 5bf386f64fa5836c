package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/pailas/core/metrics"
)

const namespace = "pailas"

// PromSink records planning activity in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	produced    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	candidates  prometheus.Histogram
	syncs       *prometheus.CounterVec
	errors      *prometheus.CounterVec
	utilization *prometheus.GaugeVec
}

var (
	_ coremetrics.MetricsSink         = (*PromSink)(nil)
	_ coremetrics.EligibilityRecorder = (*PromSink)(nil)
	_ coremetrics.OccupancyRecorder   = (*PromSink)(nil)
	_ coremetrics.ErrorRecorder       = (*PromSink)(nil)
	_ coremetrics.UtilizationRecorder = (*PromSink)(nil)
)

// NewPromSink registers planning metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered under the same name are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Committed vessel assignments by outcome",
		}, []string{"vessel_id", "outcome"}),
		produced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "produced_quantity_total",
			Help:      "Quantity assigned to each vessel",
		}, []string{"vessel_id"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assignment_duration_seconds",
			Help:      "Time spent committing an assignment",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "eligible_vessels",
			Help:      "Number of eligible vessels returned per query",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "occupancy_sync_total",
			Help:      "Occupancy ledger synchronizer decisions",
		}, []string{"action"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed planning operations by kind",
		}, []string{"operation", "kind"}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vessel_utilization_ratio",
			Help:      "Share of the planning horizon each vessel is booked",
		}, []string{"vessel_id"}),
	}

	var err error
	if s.assignments, err = register(reg, s.assignments); err != nil {
		return nil, err
	}
	if s.produced, err = register(reg, s.produced); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.candidates, err = register(reg, s.candidates); err != nil {
		return nil, err
	}
	if s.syncs, err = register(reg, s.syncs); err != nil {
		return nil, err
	}
	if s.errors, err = register(reg, s.errors); err != nil {
		return nil, err
	}
	if s.utilization, err = register(reg, s.utilization); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordAssignment counts the assignment and observes its duration.
func (s *PromSink) RecordAssignment(res coremetrics.AssignmentResult) error {
	s.assignments.WithLabelValues(res.VesselID, res.Outcome).Inc()
	if res.ProducedQuantity > 0 {
		s.produced.WithLabelValues(res.VesselID).Add(res.ProducedQuantity)
	}
	s.duration.WithLabelValues(res.Outcome).Observe(res.Duration.Seconds())
	return nil
}

// RecordEligibility observes the candidate count of a resolver call.
func (s *PromSink) RecordEligibility(q coremetrics.EligibilityQuery) error {
	s.candidates.Observe(float64(q.Candidates))
	return nil
}

// RecordOccupancySync counts a synchronizer decision.
func (s *PromSink) RecordOccupancySync(ev coremetrics.OccupancySync) error {
	s.syncs.WithLabelValues(ev.Action).Inc()
	return nil
}

// RecordOperationError counts a failed operation.
func (s *PromSink) RecordOperationError(ev coremetrics.OperationError) error {
	s.errors.WithLabelValues(ev.Operation, ev.Kind).Inc()
	return nil
}

// RecordUtilization sets the utilization gauge of every sampled vessel.
func (s *PromSink) RecordUtilization(samples []coremetrics.VesselUtilization) error {
	for _, u := range samples {
		s.utilization.WithLabelValues(u.VesselID).Set(u.Ratio)
	}
	return nil
}
