// Package events defines the planning events emitted on the event bus after
// a transaction commits.
//
// Available event types:
//   - AssignmentEvent: an order was bound to a vessel
//   - UnassignEvent: an order released its vessel
//   - ScheduleEvent: an order's time window changed
//   - ResyncEvent: the occupancy ledger was rebuilt
package events
