package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"quitcoach/contract"
	"quitcoach/domain"
	"quitcoach/errors"

	"github.com/google/uuid"
)

// AvailabilityService computes the free booking slots of a coach for one
// calendar day. Working hours come from the coach-profile collaborator;
// existing pending/confirmed appointments block their windows.
//
// Days are interpreted in UTC. Time-zone and DST normalization is the
// caller's responsibility.
type AvailabilityService struct {
	log          *slog.Logger
	windows      contract.AvailabilityProvider
	appointments contract.AppointmentRepository
	now          func() time.Time
}

func NewAvailabilityService(log *slog.Logger, windows contract.AvailabilityProvider, appointments contract.AppointmentRepository) *AvailabilityService {
	return &AvailabilityService{
		log:          log,
		windows:      windows,
		appointments: appointments,
		now:          time.Now,
	}
}

// Slots returns the candidate start times for the given day, earliest
// first. Candidates step through each working-hours window in fixed
// slot-duration increments; any candidate whose half-open interval
// [start, start+duration) intersects a blocking appointment is removed.
func (s *AvailabilityService) Slots(ctx context.Context, coachID string, date time.Time, slotMinutes int) ([]domain.Slot, error) {
	return s.slots(ctx, coachID, date, slotMinutes, uuid.Nil)
}

// CanBook re-validates one concrete start against current availability.
// Used by the lifecycle manager at commit time to close the race between
// slot selection and booking. ignoreID discounts the appointment being
// rescheduled so it does not block its own replacement.
func (s *AvailabilityService) CanBook(ctx context.Context, coachID string, start time.Time, durationMinutes int, ignoreID uuid.UUID) error {
	slots, err := s.slots(ctx, coachID, start, durationMinutes, ignoreID)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		if slot.Start.Equal(start) {
			return nil
		}
	}
	// Distinguish "taken" from "never offered": a start outside every
	// working-hours window is a validation problem, not a conflict.
	if !s.insideWorkingHours(ctx, coachID, start, durationMinutes) {
		return fmt.Errorf("%w: outside coach working hours", errors.ErrValidation)
	}
	return fmt.Errorf("%w: %s", errors.ErrSlotConflict, start.UTC().Format(time.RFC3339))
}

func (s *AvailabilityService) slots(ctx context.Context, coachID string, date time.Time, slotMinutes int, ignoreID uuid.UUID) ([]domain.Slot, error) {
	if coachID == "" {
		return nil, fmt.Errorf("%w: coach id is required", errors.ErrValidation)
	}
	if slotMinutes <= 0 || slotMinutes%15 != 0 {
		return nil, fmt.Errorf("%w: slot duration must be a positive multiple of 15 minutes", errors.ErrValidation)
	}

	day := truncateToDay(date)
	if day.Before(truncateToDay(s.now())) {
		return nil, fmt.Errorf("%w: date %s is in the past", errors.ErrValidation, day.Format(time.DateOnly))
	}

	windows, err := s.windows.WindowsFor(ctx, coachID, day.Weekday())
	if err != nil {
		return nil, fmt.Errorf("loading working hours: %w", err)
	}
	existing, err := s.appointments.ListCoachBlocking(ctx, coachID, day, day.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("loading bookings: %w", err)
	}

	slotDuration := time.Duration(slotMinutes) * time.Minute
	var slots []domain.Slot
	for _, window := range windows {
		windowEnd := day.Add(time.Duration(window.EndMin) * time.Minute)
		for start := day.Add(time.Duration(window.StartMin) * time.Minute); !start.Add(slotDuration).After(windowEnd); start = start.Add(slotDuration) {
			if overlapsAny(existing, start, slotDuration, ignoreID) {
				continue
			}
			slots = append(slots, domain.Slot{Start: start, DurationMinutes: slotMinutes})
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots, nil
}

func (s *AvailabilityService) insideWorkingHours(ctx context.Context, coachID string, start time.Time, durationMinutes int) bool {
	day := truncateToDay(start)
	windows, err := s.windows.WindowsFor(ctx, coachID, day.Weekday())
	if err != nil {
		return false
	}
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	for _, window := range windows {
		windowStart := day.Add(time.Duration(window.StartMin) * time.Minute)
		windowEnd := day.Add(time.Duration(window.EndMin) * time.Minute)
		if !start.Before(windowStart) && !end.After(windowEnd) {
			return true
		}
	}
	return false
}

func overlapsAny(appts []domain.Appointment, start time.Time, duration time.Duration, ignoreID uuid.UUID) bool {
	for _, appt := range appts {
		if appt.ID == ignoreID {
			continue
		}
		if appt.Overlaps(start, duration) {
			return true
		}
	}
	return false
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
