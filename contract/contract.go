//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"quitcoach/domain"
	"quitcoach/domain/event"

	"github.com/google/uuid"
)

// AppointmentRepository persists appointments. Create and Reschedule are
// conflict-checked atomically with the write: a concurrent booking of an
// overlapping window for the same coach or participant must fail with
// errors.ErrSlotConflict, never silently overwrite.
type AppointmentRepository interface {
	Create(ctx context.Context, appt domain.Appointment) error
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	Update(ctx context.Context, appt domain.Appointment) error
	// UpdateWithParticipantHold writes a cancelled appointment while
	// keeping the participant's side of the window blocked, so a late
	// self-cancellation cannot be followed by an instant rebook.
	UpdateWithParticipantHold(ctx context.Context, appt domain.Appointment) error
	// Reschedule closes the old record and creates the replacement inside
	// one transaction boundary.
	Reschedule(ctx context.Context, closed, replacement domain.Appointment) error
	ListCoachBlocking(ctx context.Context, coachID string, from, to time.Time) ([]domain.Appointment, error)
}

// MessageRepository is the durable, ordered, append-only conversation log.
type MessageRepository interface {
	// Append assigns the next id in the appointment's sequence atomically
	// with the insert and returns the persisted message.
	Append(ctx context.Context, appointmentID uuid.UUID, sender domain.Role, text string, at time.Time) (domain.Message, error)
	List(ctx context.Context, appointmentID uuid.UUID) ([]domain.Message, error)
	// MarkRead flips the counterpart's authored messages to read for the
	// reader role. Idempotent; returns how many flags actually flipped.
	MarkRead(ctx context.Context, appointmentID uuid.UUID, reader domain.Role) (int, error)
}

// AvailabilityProvider supplies coach working hours. Owned by the external
// coach-profile service; this core only reads it.
type AvailabilityProvider interface {
	WindowsFor(ctx context.Context, coachID string, weekday time.Weekday) ([]domain.AvailabilityWindow, error)
}

// EventSink is one live connection's receiving end. Deliver must never
// block; it reports false when the event was dropped.
type EventSink interface {
	ID() string
	Deliver(e event.Event) bool
}

// Registry tracks which sinks are subscribed to which appointment room.
// Purely transient: rebuilt from connects, never persisted.
type Registry interface {
	Join(appointmentID uuid.UUID, sink EventSink)
	Leave(appointmentID uuid.UUID, sinkID string)
	LeaveAll(sinkID string)
	Members(appointmentID uuid.UUID) []EventSink
}

// Publisher accepts events for best-effort fan-out after the triggering
// write has committed. Losing an event is acceptable; surfacing it to the
// caller is not.
type Publisher interface {
	Publish(e event.Event)
}

// MessageAPI is the consuming side's view of the message store, as exposed
// over the wire. The sync reconciler composes against this contract so it
// can be exercised without a running server.
type MessageAPI interface {
	SendMessage(ctx context.Context, appointmentID uuid.UUID, text string) (domain.Message, error)
	ListMessages(ctx context.Context, appointmentID uuid.UUID) ([]domain.Message, error)
	MarkMessagesRead(ctx context.Context, appointmentID uuid.UUID) error
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerName uses reflection to retrieve the type name of the worker,
// avoiding manual naming in the Worker interface.
func WorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
