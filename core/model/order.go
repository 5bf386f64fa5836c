package model

import (
	"errors"
	"time"
)

var (
	// ErrProducedWithoutVessel is returned when a produced quantity is set on
	// an order that holds no vessel and is not a fragmentation remainder.
	ErrProducedWithoutVessel = errors.New("produced quantity requires a vessel")
	// ErrWindowInverted is returned when an order ends before it starts.
	ErrWindowInverted = errors.New("end precedes start")
)

// ProductionOrder is one lot to be processed on a vessel. Orders form a
// forest through ParentID; children are found by reverse lookup.
type ProductionOrder struct {
	ID               int64      `json:"id" yaml:"id"`
	Label            string     `json:"label" yaml:"label"`
	ProductCode      string     `json:"product_code" yaml:"product_code"`
	LotSize          *float64   `json:"lot_size,omitempty" yaml:"lot_size"`
	ProducedQuantity *float64   `json:"produced_quantity,omitempty" yaml:"produced_quantity"`
	VesselID         *string    `json:"vessel_id,omitempty" yaml:"vessel_id"`
	Station          *string    `json:"station,omitempty" yaml:"station"`
	Start            *time.Time `json:"start,omitempty" yaml:"start"`
	End              *time.Time `json:"end,omitempty" yaml:"end"`
	TotalDuration    *float64   `json:"total_duration,omitempty" yaml:"total_duration"` // hours

	Pasting    *float64 `json:"pasting,omitempty" yaml:"pasting"`
	Milling    *float64 `json:"milling,omitempty" yaml:"milling"`
	Emulsion   *float64 `json:"emulsion,omitempty" yaml:"emulsion"`
	Completion *float64 `json:"completion,omitempty" yaml:"completion"`
	Tinting    *float64 `json:"tinting,omitempty" yaml:"tinting"`
	Packaging  *float64 `json:"packaging,omitempty" yaml:"packaging"`

	ParentID *int64 `json:"parent_id,omitempty" yaml:"parent_id"`
}

// Clone returns a deep copy of the order.
func (o ProductionOrder) Clone() ProductionOrder {
	c := o
	c.LotSize = cloneFloat(o.LotSize)
	c.ProducedQuantity = cloneFloat(o.ProducedQuantity)
	c.VesselID = cloneString(o.VesselID)
	c.Station = cloneString(o.Station)
	c.Start = cloneTime(o.Start)
	c.End = cloneTime(o.End)
	c.TotalDuration = cloneFloat(o.TotalDuration)
	c.Pasting = cloneFloat(o.Pasting)
	c.Milling = cloneFloat(o.Milling)
	c.Emulsion = cloneFloat(o.Emulsion)
	c.Completion = cloneFloat(o.Completion)
	c.Tinting = cloneFloat(o.Tinting)
	c.Packaging = cloneFloat(o.Packaging)
	c.ParentID = cloneInt64(o.ParentID)
	return c
}

// ClearVessel detaches the order from its vessel. The produced quantity
// only has meaning on a vessel, so it is cleared too.
func (o *ProductionOrder) ClearVessel() {
	o.VesselID = nil
	o.Station = nil
	o.ProducedQuantity = nil
}

// IsRemainder reports whether the order is an unassigned fragmentation
// child. Such an order carries its planned share without a vessel.
func (o ProductionOrder) IsRemainder() bool {
	return o.ParentID != nil && o.VesselID == nil
}

// Normalize drops a produced quantity that no vessel backs.
func (o *ProductionOrder) Normalize() {
	if o.VesselID == nil && !o.IsRemainder() {
		o.ProducedQuantity = nil
	}
}

// TruncateWindow drops the sub-second part of the time window. Stores keep
// timestamps at second precision.
func (o *ProductionOrder) TruncateWindow() {
	o.Start = truncateTime(o.Start)
	o.End = truncateTime(o.End)
}

func truncateTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.Truncate(time.Second)
	return &v
}

// HasWindow reports whether the order has a vessel and a full time window,
// which is the condition for owning an occupancy record.
func (o ProductionOrder) HasWindow() bool {
	return o.VesselID != nil && o.Start != nil && o.End != nil
}

// Validate checks the order's field-level invariants.
func (o ProductionOrder) Validate() error {
	if o.ProducedQuantity != nil && o.VesselID == nil && !o.IsRemainder() {
		return ErrProducedWithoutVessel
	}
	if o.Start != nil && o.End != nil && o.End.Before(*o.Start) {
		return ErrWindowInverted
	}
	return nil
}

// ScheduledEnd derives an end time from start and the total duration in
// hours. It returns nil when either is unknown.
func (o ProductionOrder) ScheduledEnd(start *time.Time) *time.Time {
	if start == nil || o.TotalDuration == nil {
		return nil
	}
	end := start.Add(time.Duration(*o.TotalDuration * float64(time.Hour)))
	return &end
}

// OrderNode is an order together with its descendants.
type OrderNode struct {
	ProductionOrder
	Children []OrderNode `json:"children" yaml:"children"`
}
