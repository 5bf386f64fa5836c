package audit

import (
	"fmt"

	"github.com/kilianp07/pailas/core/events"
)

// FromEvent converts a planning event into an audit record. ok is false for
// events that are not audited.
func FromEvent(ev events.Event) (Record, bool) {
	switch e := ev.(type) {
	case events.AssignmentEvent:
		r := Record{
			EventID:          e.ID,
			Timestamp:        e.Time,
			Operation:        e.Kind(),
			OrderID:          e.OrderID,
			VesselID:         e.VesselID,
			LotSize:          e.LotSize,
			ProducedQuantity: e.ProducedQuantity,
			ChildID:          e.ChildID,
			ChildLotSize:     e.ChildLotSize,
			Outcome:          e.Outcome,
			Occupancy:        e.Occupancy,
		}
		if e.Station != nil {
			r.Station = *e.Station
		}
		return r, true
	case events.UnassignEvent:
		r := Record{EventID: e.ID, Timestamp: e.Time, Operation: e.Kind(), OrderID: e.OrderID, Occupancy: e.Occupancy}
		if e.PreviousVessel != nil {
			r.VesselID = *e.PreviousVessel
		}
		return r, true
	case events.ScheduleEvent:
		r := Record{EventID: e.ID, Timestamp: e.Time, Operation: e.Kind(), OrderID: e.OrderID, Occupancy: e.Occupancy}
		if e.VesselID != nil {
			r.VesselID = *e.VesselID
		}
		return r, true
	case events.ResyncEvent:
		return Record{
			EventID:   e.ID,
			Timestamp: e.Time,
			Operation: e.Kind(),
			Detail:    resyncDetail(e),
		}, true
	default:
		return Record{}, false
	}
}

func resyncDetail(e events.ResyncEvent) string {
	return fmt.Sprintf("orders=%d upserted=%d deleted=%d", e.Orders, e.Upserted, e.Deleted)
}
