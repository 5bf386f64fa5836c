// Package audit persists a trail of planning operations so operators can
// see who moved which lot onto which vessel.
package audit

import (
	"context"
	"time"
)

// Record captures one committed planning operation.
type Record struct {
	EventID          string    `json:"event_id"`
	Timestamp        time.Time `json:"timestamp"`
	Operation        string    `json:"operation"`
	OrderID          int64     `json:"order_id,omitempty"`
	VesselID         string    `json:"vessel_id,omitempty"`
	Station          string    `json:"station,omitempty"`
	LotSize          *float64  `json:"lot_size,omitempty"`
	ProducedQuantity *float64  `json:"produced_quantity,omitempty"`
	ChildID          *int64    `json:"child_id,omitempty"`
	ChildLotSize     *float64  `json:"child_lot_size,omitempty"`
	Outcome          string    `json:"outcome,omitempty"`
	Occupancy        string    `json:"occupancy,omitempty"`
	Detail           string    `json:"detail,omitempty"`
}

// Query defines filters for retrieving records. Zero values match all.
type Query struct {
	Start     time.Time
	End       time.Time
	OrderID   int64
	VesselID  string
	Operation string
	Limit     int
}

// Match reports whether r passes every filter of q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.OrderID != 0 && r.OrderID != q.OrderID {
		return false
	}
	if q.VesselID != "" && r.VesselID != q.VesselID {
		return false
	}
	if q.Operation != "" && r.Operation != q.Operation {
		return false
	}
	return true
}

func (q Query) limit(res []Record) []Record {
	if q.Limit > 0 && len(res) > q.Limit {
		return res[len(res)-q.Limit:]
	}
	return res
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return []Record{}, nil }
func (NopStore) Close() error                                   { return nil }
