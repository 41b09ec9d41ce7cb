package batch

import (
	"time"

	"dispatch/internal/core/domain/model/kernel"
)

// EventType names a lifecycle event published after a committed transition.
type EventType string

const (
	EventCreated    EventType = "batch.created"
	EventReady      EventType = "batch.ready_for_delivery"
	EventAssigned   EventType = "batch.assigned"
	EventDelivering EventType = "batch.delivering"
	EventDelivered  EventType = "batch.delivered"
	EventCancelled  EventType = "batch.cancelled"
)

// LifecycleEvent is a snapshot of a batch right after a transition.
type LifecycleEvent struct {
	Type        EventType
	BatchID     kernel.UUID
	Zone        string
	Status      Status
	DriverID    *kernel.UUID
	TotalWeight kernel.Weight
	OccurredAt  time.Time
}

var eventByStatus = map[Status]EventType{
	StatusPending:          EventCreated,
	StatusReadyForDelivery: EventReady,
	StatusAssigned:         EventAssigned,
	StatusDelivering:       EventDelivering,
	StatusDelivered:        EventDelivered,
	StatusCancelled:        EventCancelled,
}

// Event describes the batch's current status as a lifecycle event.
func (b *Batch) Event(at time.Time) LifecycleEvent {
	return LifecycleEvent{
		Type:        eventByStatus[b.status],
		BatchID:     b.id,
		Zone:        b.zone,
		Status:      b.status,
		DriverID:    b.Driver(),
		TotalWeight: b.totalWeight,
		OccurredAt:  at,
	}
}
