package model

import (
	"fmt"
	"strings"
	"time"
)

// OccupancyStatus describes what a vessel is doing during a window.
type OccupancyStatus int

const (
	StatusAvailable OccupancyStatus = iota
	StatusOccupied
	StatusPendingWash
)

// String returns the persisted representation of the status.
func (s OccupancyStatus) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusOccupied:
		return "occupied"
	case StatusPendingWash:
		return "pending-wash"
	default:
		return "unknown"
	}
}

// ParseOccupancyStatus is the inverse of String.
func ParseOccupancyStatus(s string) (OccupancyStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available":
		return StatusAvailable, nil
	case "occupied":
		return StatusOccupied, nil
	case "pending-wash", "pending_wash":
		return StatusPendingWash, nil
	default:
		return 0, fmt.Errorf("unknown occupancy status %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s OccupancyStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *OccupancyStatus) UnmarshalText(b []byte) error {
	v, err := ParseOccupancyStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// OccupancyRecord reserves a vessel for a time window. Records tied to an
// order are owned by the synchronizer; order-less records come from the
// ledger import.
type OccupancyRecord struct {
	ID       int64           `json:"id" yaml:"id"`
	VesselID string          `json:"vessel_id" yaml:"vessel_id"`
	Start    *time.Time      `json:"start,omitempty" yaml:"start"`
	End      *time.Time      `json:"end,omitempty" yaml:"end"`
	Status   OccupancyStatus `json:"status" yaml:"status"`
	OrderID  *int64          `json:"order_id,omitempty" yaml:"order_id"`
}

// Clone returns a deep copy of the record.
func (r OccupancyRecord) Clone() OccupancyRecord {
	c := r
	c.Start = cloneTime(r.Start)
	c.End = cloneTime(r.End)
	c.OrderID = cloneInt64(r.OrderID)
	return c
}

// OccupancyFor builds the occupied record mirroring an order's window.
// ok is false when the order has no complete window.
func OccupancyFor(o ProductionOrder) (OccupancyRecord, bool) {
	if !o.HasWindow() {
		return OccupancyRecord{}, false
	}
	id := o.ID
	return OccupancyRecord{
		VesselID: *o.VesselID,
		Start:    cloneTime(o.Start),
		End:      cloneTime(o.End),
		Status:   StatusOccupied,
		OrderID:  &id,
	}, true
}
