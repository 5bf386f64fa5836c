package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is anything published on the planning bus.
type Event interface {
	EventID() string
	Kind() string
}

// Publisher accepts events after a successful commit.
type Publisher interface {
	Publish(Event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

// Meta carries the identity and time of an event.
type Meta struct {
	ID   string    `json:"event_id"`
	Time time.Time `json:"time"`
}

// NewMeta stamps a fresh event id.
func NewMeta(now time.Time) Meta {
	return Meta{ID: uuid.NewString(), Time: now}
}

func (m Meta) EventID() string { return m.ID }

// Outcome of an assignment.
const (
	OutcomeAbsorbed   = "absorbed"
	OutcomeFragmented = "fragmented"
	OutcomeUnbounded  = "unbounded"
)

// AssignmentEvent describes a committed assignment.
type AssignmentEvent struct {
	Meta
	OrderID          int64         `json:"order_id"`
	Label            string        `json:"label"`
	VesselID         string        `json:"vessel_id"`
	Station          *string       `json:"station,omitempty"`
	LotSize          *float64      `json:"lot_size,omitempty"`
	ProducedQuantity *float64      `json:"produced_quantity,omitempty"`
	ChildID          *int64        `json:"child_id,omitempty"`
	ChildLotSize     *float64      `json:"child_lot_size,omitempty"`
	RemovedChildren  int           `json:"removed_children"`
	Outcome          string        `json:"outcome"`
	Occupancy        string        `json:"occupancy"`
	Duration         time.Duration `json:"duration_ns"`
}

func (AssignmentEvent) Kind() string { return "assignment" }

// UnassignEvent describes an order that released its vessel.
type UnassignEvent struct {
	Meta
	OrderID        int64   `json:"order_id"`
	PreviousVessel *string `json:"previous_vessel,omitempty"`
	Occupancy      string  `json:"occupancy"`
}

func (UnassignEvent) Kind() string { return "unassign" }

// ScheduleEvent describes a change of an order's window.
type ScheduleEvent struct {
	Meta
	OrderID   int64      `json:"order_id"`
	VesselID  *string    `json:"vessel_id,omitempty"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	Occupancy string     `json:"occupancy"`
}

func (ScheduleEvent) Kind() string { return "schedule" }

// ResyncEvent summarizes a ledger rebuild.
type ResyncEvent struct {
	Meta
	Orders   int `json:"orders"`
	Upserted int `json:"upserted"`
	Deleted  int `json:"deleted"`
}

func (ResyncEvent) Kind() string { return "resync" }
