package event

import (
	"quitcoach/domain"

	"github.com/google/uuid"
)

// Event is a notification-only signal scoped to one appointment's room.
// Events never carry message payloads; consumers must re-fetch from the
// message store, which stays the single source of truth.
type Event interface {
	AppointmentID() uuid.UUID
}

// NewMessage signals that the conversation log of an appointment grew.
// Content-free on purpose: delivery is at-most-once and unordered.
type NewMessage struct {
	Appointment uuid.UUID
}

func (e NewMessage) AppointmentID() uuid.UUID { return e.Appointment }

// MessagesRead signals that one side caught up on the conversation.
type MessagesRead struct {
	Appointment uuid.UUID
	Reader      domain.Role
}

func (e MessagesRead) AppointmentID() uuid.UUID { return e.Appointment }
