package services

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"quitcoach/domain"
	"quitcoach/domain/event"
	"quitcoach/errors"
	"quitcoach/moderation"
	"quitcoach/observability"
	"quitcoach/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	events []event.Event
}

func (c *capturePublisher) Publish(e event.Event) {
	c.events = append(c.events, e)
}

func newMessaging(t *testing.T) (*MessageService, *capturePublisher, domain.Appointment) {
	t.Helper()
	db := openTestDB(t)
	appointments := repositories.NewAppointmentRepository(db, slog.Default())
	messages := repositories.NewMessageRepository(db, slog.Default())
	moderator, err := moderation.New('*')
	require.NoError(t, err)

	publisher := &capturePublisher{}
	svc := NewMessageService(slog.Default(), messages, appointments, moderator,
		publisher, observability.NewMonitor(slog.Default()), 0)
	svc.now = func() time.Time { return testNow }

	appt := domain.Appointment{
		ID:              uuid.New(),
		ParticipantID:   "part-1",
		CoachID:         "coach-1",
		ScheduledStart:  time.Date(2026, 9, 14, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Status:          domain.StatusConfirmed,
		CreatedAt:       testNow,
	}
	require.NoError(t, appointments.Create(context.Background(), appt))
	return svc, publisher, appt
}

func Test_Send_Persists_And_Notifies(t *testing.T) {
	req := require.New(t)
	svc, publisher, appt := newMessaging(t)
	ctx := context.Background()

	msg, err := svc.Send(ctx, participant, appt.ID, "  see you Monday  ")
	req.NoError(err)
	req.Equal(int64(1), msg.ID)
	req.Equal("see you Monday", msg.Text)
	req.Equal(domain.RoleParticipant, msg.SenderRole)
	req.True(msg.ReadByParticipant, "sender has read their own message")
	req.False(msg.ReadByCoach)

	req.Len(publisher.events, 1)
	notified, ok := publisher.events[0].(event.NewMessage)
	req.True(ok)
	req.Equal(appt.ID, notified.AppointmentID())
}

func Test_Send_Masks_Disallowed_Words(t *testing.T) {
	req := require.New(t)
	svc, _, appt := newMessaging(t)

	msg, err := svc.Send(context.Background(), participant, appt.ID, "that patch was damn hard")
	req.NoError(err)
	req.NotContains(msg.Text, "damn")
	req.Contains(msg.Text, "****")
}

func Test_Send_Rejects_Empty_And_Oversized(t *testing.T) {
	req := require.New(t)
	svc, _, appt := newMessaging(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, participant, appt.ID, "   ")
	req.ErrorIs(err, errors.ErrValidation)

	_, err = svc.Send(ctx, participant, appt.ID, strings.Repeat("x", MaxMessageLen+1))
	req.ErrorIs(err, errors.ErrValidation)
}

func Test_Send_Hides_Conversation_From_Strangers(t *testing.T) {
	req := require.New(t)
	svc, _, appt := newMessaging(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, stranger, appt.ID, "hello?")
	req.ErrorIs(err, errors.ErrNotFound)
	_, err = svc.List(ctx, stranger, appt.ID)
	req.ErrorIs(err, errors.ErrNotFound)
	req.ErrorIs(svc.MarkRead(ctx, stranger, appt.ID), errors.ErrNotFound)
}

func Test_List_Returns_Conversation_In_Order(t *testing.T) {
	req := require.New(t)
	svc, _, appt := newMessaging(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, participant, appt.ID, "craving hit hard today")
	req.NoError(err)
	_, err = svc.Send(ctx, coach, appt.ID, "use the breathing exercise")
	req.NoError(err)
	_, err = svc.Send(ctx, participant, appt.ID, "will do")
	req.NoError(err)

	msgs, err := svc.List(ctx, coach, appt.ID)
	req.NoError(err)
	req.Len(msgs, 3)
	req.Equal(int64(1), msgs[0].ID)
	req.Equal(int64(3), msgs[2].ID)
	req.Equal(domain.RoleCoach, msgs[1].SenderRole)
}

func Test_MarkRead_Notifies_Only_When_Something_Flipped(t *testing.T) {
	req := require.New(t)
	svc, publisher, appt := newMessaging(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, coach, appt.ID, "how did the week go?")
	req.NoError(err)
	publisher.events = nil

	req.NoError(svc.MarkRead(ctx, participant, appt.ID))
	req.Len(publisher.events, 1)
	read, ok := publisher.events[0].(event.MessagesRead)
	req.True(ok)
	req.Equal(domain.RoleParticipant, read.Reader)

	// Repeat flips nothing and stays silent.
	req.NoError(svc.MarkRead(ctx, participant, appt.ID))
	req.Len(publisher.events, 1)
}
