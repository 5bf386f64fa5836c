package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/pailas/core/events"
	"github.com/kilianp07/pailas/core/logger"
	coremetrics "github.com/kilianp07/pailas/core/metrics"
	"github.com/kilianp07/pailas/core/occupancy"
	"github.com/kilianp07/pailas/core/store"
	"github.com/kilianp07/pailas/internal/eventbus"
)

// UtilizationCollector refreshes vessel utilization samples whenever a
// committed event may have changed the ledger.
type UtilizationCollector struct {
	Reader  store.Reader
	Sink    coremetrics.UtilizationRecorder
	Horizon time.Duration
	Log     logger.Logger
	Now     func() time.Time
}

// Collect computes utilization over [now, now+Horizon) and records it.
func (c *UtilizationCollector) Collect(ctx context.Context) error {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	horizon := c.Horizon
	if horizon <= 0 {
		horizon = 7 * 24 * time.Hour
	}
	vessels, err := c.Reader.Vessels(ctx)
	if err != nil {
		return err
	}
	records, err := c.Reader.Occupancy(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, len(vessels))
	for i, v := range vessels {
		ids[i] = v.ID
	}
	start := now()
	rep := occupancy.Utilization(records, ids, occupancy.Window{Start: start, End: start.Add(horizon)})
	samples := make([]coremetrics.VesselUtilization, len(rep.Vessels))
	for i, u := range rep.Vessels {
		samples[i] = coremetrics.VesselUtilization{VesselID: u.VesselID, Ratio: u.Ratio, Time: start}
	}
	return c.Sink.RecordUtilization(samples)
}

// Start subscribes to the bus and collects after every ledger-changing
// event. It stops when ctx is canceled or the bus is closed.
func (c *UtilizationCollector) Start(ctx context.Context, bus *eventbus.Bus) <-chan struct{} {
	log := c.Log
	if log == nil {
		log = logger.NopLogger{}
	}
	return eventbus.Start(ctx, bus, func(ev events.Event) {
		switch ev.(type) {
		case events.AssignmentEvent, events.ScheduleEvent, events.UnassignEvent, events.ResyncEvent:
		default:
			return
		}
		if err := c.Collect(ctx); err != nil {
			log.Warnf("utilization collect after %s: %v", ev.Kind(), err)
		}
	})
}
