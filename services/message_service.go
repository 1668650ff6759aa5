package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quitcoach/contract"
	"quitcoach/domain"
	"quitcoach/domain/event"
	"quitcoach/errors"
	"quitcoach/moderation"
	"quitcoach/observability"

	"github.com/google/uuid"
)

// MaxMessageLen caps the size of a single message body.
const MaxMessageLen = 4000

// MessageService owns the per-appointment conversation log. Persistence is
// the source of truth; notifications fan out only after the write has
// committed and carry no message content.
type MessageService struct {
	log          *slog.Logger
	messages     contract.MessageRepository
	appointments contract.AppointmentRepository
	moderator    *moderation.Moderator
	publisher    contract.Publisher
	monitor      *observability.Monitor
	maxLen       int

	now func() time.Time
}

func NewMessageService(log *slog.Logger, messages contract.MessageRepository,
	appointments contract.AppointmentRepository, moderator *moderation.Moderator,
	publisher contract.Publisher, monitor *observability.Monitor, maxLen int) *MessageService {
	if maxLen <= 0 {
		maxLen = MaxMessageLen
	}
	return &MessageService{
		log:          log,
		messages:     messages,
		appointments: appointments,
		moderator:    moderator,
		publisher:    publisher,
		monitor:      monitor,
		maxLen:       maxLen,
		now:          time.Now,
	}
}

// Send appends a message to the appointment's log. The sender must be a
// party to the appointment; the text is masked for disallowed words before
// it is stored, so the log never holds the raw form.
func (s *MessageService) Send(ctx context.Context, p domain.Principal, appointmentID uuid.UUID, text string) (domain.Message, error) {
	role, err := s.partyRole(ctx, p, appointmentID)
	if err != nil {
		return domain.Message{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, fmt.Errorf("%w: message text is empty", errors.ErrValidation)
	}
	if len(text) > s.maxLen {
		return domain.Message{}, fmt.Errorf("%w: message exceeds %d characters", errors.ErrValidation, s.maxLen)
	}
	text = s.moderator.Mask(text)

	msg, err := s.messages.Append(ctx, appointmentID, role, text, s.now().UTC())
	if err != nil {
		return domain.Message{}, err
	}
	s.monitor.IncrMessagesSent()
	s.publisher.Publish(event.NewMessage{Appointment: appointmentID})
	return msg, nil
}

// List returns the appointment's full conversation, oldest first.
func (s *MessageService) List(ctx context.Context, p domain.Principal, appointmentID uuid.UUID) ([]domain.Message, error) {
	if _, err := s.partyRole(ctx, p, appointmentID); err != nil {
		return nil, err
	}
	return s.messages.List(ctx, appointmentID)
}

// MarkRead flips the counterpart's unread messages to read. Idempotent: a
// repeat call flips nothing and publishes nothing.
func (s *MessageService) MarkRead(ctx context.Context, p domain.Principal, appointmentID uuid.UUID) error {
	role, err := s.partyRole(ctx, p, appointmentID)
	if err != nil {
		return err
	}
	flipped, err := s.messages.MarkRead(ctx, appointmentID, role)
	if err != nil {
		return err
	}
	if flipped > 0 {
		s.monitor.IncrReadReceipts()
		s.publisher.Publish(event.MessagesRead{Appointment: appointmentID, Reader: role})
	}
	return nil
}

// partyRole loads the appointment and resolves the caller's side of it.
// Strangers get NotFound so the id's existence stays hidden.
func (s *MessageService) partyRole(ctx context.Context, p domain.Principal, appointmentID uuid.UUID) (domain.Role, error) {
	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return "", err
	}
	role, ok := appt.PartyRole(p)
	if !ok {
		return "", fmt.Errorf("%w: appointment %s", errors.ErrNotFound, appointmentID)
	}
	return role, nil
}
