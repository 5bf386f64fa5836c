// Package eligibility finds the vessels a production order may run on.
package eligibility

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/pailas/core/logger"
	"github.com/kilianp07/pailas/core/metrics"
	"github.com/kilianp07/pailas/core/model"
	"github.com/kilianp07/pailas/core/store"
)

// EligibleVessel is one candidate returned by Resolve.
type EligibleVessel struct {
	VesselID          string  `json:"vessel_id"`
	Number            int     `json:"ordinal_number"`
	PlannableCapacity float64 `json:"plannable_capacity"`
}

// Resolver answers eligibility queries from read-only data.
type Resolver struct {
	store store.Reader
	log   logger.Logger
	sink  metrics.MetricsSink
	now   func() time.Time
}

// NewResolver returns a Resolver reading from r.
func NewResolver(r store.Reader, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Resolver{store: r, log: log, sink: metrics.NopSink{}, now: time.Now}
}

// SetMetrics makes the resolver report each query to s when s implements
// metrics.EligibilityRecorder.
func (r *Resolver) SetMetrics(s metrics.MetricsSink) {
	if s != nil {
		r.sink = s
	}
}

// Resolve returns the vessels compatible with the order, biggest plannable
// capacity first. An order whose product has no detail or no color yields an
// empty list.
func (r *Resolver) Resolve(ctx context.Context, orderID int64) ([]EligibleVessel, error) {
	started := r.now()
	out, err := r.resolve(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if rec, ok := r.sink.(metrics.EligibilityRecorder); ok {
		q := metrics.EligibilityQuery{OrderID: orderID, Candidates: len(out), Duration: r.now().Sub(started), Time: started}
		if err := rec.RecordEligibility(q); err != nil {
			r.log.Warnf("record eligibility metrics: %v", err)
		}
	}
	return out, nil
}

func (r *Resolver) resolve(ctx context.Context, orderID int64) ([]EligibleVessel, error) {
	o, err := r.store.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	detail, err := r.store.FirstProductDetail(ctx, o.ProductCode)
	if err != nil {
		return nil, fmt.Errorf("product detail %s: %w", o.ProductCode, err)
	}
	if detail == nil || detail.ColorCode == nil {
		r.log.Debugw("no color for product", map[string]any{"order_id": orderID, "product": o.ProductCode})
		return []EligibleVessel{}, nil
	}
	entries, err := r.store.CompatibilityByColor(ctx, *detail.ColorCode)
	if err != nil {
		return nil, fmt.Errorf("compatibility for color %s: %w", *detail.ColorCode, err)
	}

	best := map[string]model.CompatibilityEntry{}
	var order []string
	for _, e := range entries {
		if !e.DiameterEligible() || !e.AdmitsLot(o.LotSize) {
			continue
		}
		cur, seen := best[e.VesselID]
		if !seen {
			order = append(order, e.VesselID)
			best[e.VesselID] = e
			continue
		}
		if e.Capacity() > cur.Capacity() {
			best[e.VesselID] = e
		}
	}

	out := make([]EligibleVessel, 0, len(order))
	for _, id := range order {
		e := best[id]
		v, err := r.store.Vessel(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("vessel of compatibility entry %d: %w", e.ID, err)
		}
		out = append(out, EligibleVessel{VesselID: id, Number: v.Number, PlannableCapacity: e.Capacity()})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PlannableCapacity != out[j].PlannableCapacity {
			return out[i].PlannableCapacity > out[j].PlannableCapacity
		}
		return out[i].VesselID < out[j].VesselID
	})
	return out, nil
}
