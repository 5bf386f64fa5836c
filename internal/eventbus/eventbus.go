// Package eventbus fans committed planning events out to in-process
// consumers such as the MQTT notifier and the audit log.
package eventbus

import "github.com/kilianp07/pailas/core/events"

// Bus carries planning events.
type Bus = TypedBus[events.Event]

var _ events.Publisher = (*Bus)(nil)

// New creates a planning event bus.
func New(buffer int) *Bus { return NewTyped[events.Event](buffer) }
