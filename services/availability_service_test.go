package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"quitcoach/domain"
	"quitcoach/errors"
	"quitcoach/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// The clock is frozen so future-date validation stays deterministic.
var testNow = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fixedWindows serves the same working hours every day of the week.
type fixedWindows struct {
	windows []domain.AvailabilityWindow
}

func (f fixedWindows) WindowsFor(_ context.Context, _ string, _ time.Weekday) ([]domain.AvailabilityWindow, error) {
	return f.windows, nil
}

func nineToFive() fixedWindows {
	return fixedWindows{windows: []domain.AvailabilityWindow{
		{StartMin: 9 * 60, EndMin: 17 * 60},
	}}
}

func newAvailability(t *testing.T, windows fixedWindows) (*AvailabilityService, *repositories.AppointmentRepository) {
	t.Helper()
	repo := repositories.NewAppointmentRepository(openTestDB(t), slog.Default())
	svc := NewAvailabilityService(slog.Default(), windows, repo)
	svc.now = func() time.Time { return testNow }
	return svc, repo
}

func confirmedAppointment(coachID, participantID string, start time.Time, minutes int) domain.Appointment {
	appt := domain.Appointment{
		ID:              uuid.New(),
		ParticipantID:   participantID,
		CoachID:         coachID,
		ScheduledStart:  start,
		DurationMinutes: minutes,
		Status:          domain.StatusConfirmed,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}
	return appt
}

func Test_Slots_Skips_Booked_Windows(t *testing.T) {
	req := require.New(t)
	svc, repo := newAvailability(t, nineToFive())
	ctx := context.Background()

	day := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	booked := confirmedAppointment("coach-1", "part-1", day.Add(13*time.Hour), 120)
	req.NoError(repo.Create(ctx, booked))

	slots, err := svc.Slots(ctx, "coach-1", day, 120)
	req.NoError(err)

	starts := make([]time.Time, 0, len(slots))
	for _, s := range slots {
		starts = append(starts, s.Start)
	}
	req.Equal([]time.Time{
		day.Add(9 * time.Hour),
		day.Add(11 * time.Hour),
		day.Add(15 * time.Hour),
	}, starts)
}

func Test_Slots_Back_To_Back_Bookings(t *testing.T) {
	req := require.New(t)
	svc, repo := newAvailability(t, nineToFive())
	ctx := context.Background()

	// A booking ending at 11:00 does not block the slot starting at 11:00.
	day := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	req.NoError(repo.Create(ctx, confirmedAppointment("coach-1", "part-1", day.Add(9*time.Hour), 120)))

	slots, err := svc.Slots(ctx, "coach-1", day, 120)
	req.NoError(err)
	req.Len(slots, 3)
	req.Equal(day.Add(11*time.Hour), slots[0].Start)
}

func Test_Slots_Rejects_Past_Date(t *testing.T) {
	req := require.New(t)
	svc, _ := newAvailability(t, nineToFive())

	_, err := svc.Slots(context.Background(), "coach-1", testNow.AddDate(0, 0, -1), 60)
	req.ErrorIs(err, errors.ErrValidation)
}

func Test_Slots_Rejects_Bad_Duration(t *testing.T) {
	req := require.New(t)
	svc, _ := newAvailability(t, nineToFive())
	day := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	_, err := svc.Slots(context.Background(), "coach-1", day, 0)
	req.ErrorIs(err, errors.ErrValidation)

	_, err = svc.Slots(context.Background(), "coach-1", day, 100)
	req.ErrorIs(err, errors.ErrValidation)
}

func Test_CanBook_Taken_Window_Is_A_Conflict(t *testing.T) {
	req := require.New(t)
	svc, repo := newAvailability(t, nineToFive())
	ctx := context.Background()

	day := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	req.NoError(repo.Create(ctx, confirmedAppointment("coach-1", "part-1", day.Add(13*time.Hour), 120)))

	err := svc.CanBook(ctx, "coach-1", day.Add(13*time.Hour), 120, uuid.Nil)
	req.ErrorIs(err, errors.ErrSlotConflict)
}

func Test_CanBook_Outside_Hours_Is_Invalid(t *testing.T) {
	req := require.New(t)
	svc, _ := newAvailability(t, nineToFive())
	day := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	// 18:00 was never offered; that is a validation error, not a conflict.
	err := svc.CanBook(context.Background(), "coach-1", day.Add(18*time.Hour), 60, uuid.Nil)
	req.ErrorIs(err, errors.ErrValidation)
}

func Test_CanBook_Ignores_The_Appointment_Being_Moved(t *testing.T) {
	req := require.New(t)
	svc, repo := newAvailability(t, nineToFive())
	ctx := context.Background()

	day := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	moving := confirmedAppointment("coach-1", "part-1", day.Add(13*time.Hour), 120)
	req.NoError(repo.Create(ctx, moving))

	// A shorter replacement inside the old window collides with the old
	// record unless the record under reschedule is discounted.
	req.NoError(svc.CanBook(ctx, "coach-1", day.Add(14*time.Hour), 60, moving.ID))
	req.ErrorIs(svc.CanBook(ctx, "coach-1", day.Add(14*time.Hour), 60, uuid.Nil), errors.ErrSlotConflict)
}
