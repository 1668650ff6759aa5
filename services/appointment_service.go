package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"quitcoach/contract"
	"quitcoach/domain"
	"quitcoach/errors"
	"quitcoach/observability"

	"github.com/google/uuid"
)

// DefaultCancelCutoff is the minimum lead time under which a confirmed
// appointment can no longer be cancelled without force.
const DefaultCancelCutoff = 24 * time.Hour

// AppointmentService enforces the booking conflict rules and the status
// state machine. Every transition appends exactly one history entry and
// nothing is ever retried automatically: on conflict the caller must
// re-query availability and re-issue.
type AppointmentService struct {
	log          *slog.Logger
	appointments contract.AppointmentRepository
	availability *AvailabilityService
	monitor      *observability.Monitor
	cancelCutoff time.Duration

	// allowRebookAfterLateCancel decides whether a participant who
	// force-cancelled inside the cutoff may immediately retake an
	// overlapping window. Policy knob, not a rule.
	allowRebookAfterLateCancel bool

	now func() time.Time
}

func NewAppointmentService(log *slog.Logger, appointments contract.AppointmentRepository,
	availability *AvailabilityService, monitor *observability.Monitor,
	cancelCutoff time.Duration, allowRebookAfterLateCancel bool) *AppointmentService {
	if cancelCutoff <= 0 {
		cancelCutoff = DefaultCancelCutoff
	}
	return &AppointmentService{
		log:                        log,
		appointments:               appointments,
		availability:               availability,
		monitor:                    monitor,
		cancelCutoff:               cancelCutoff,
		allowRebookAfterLateCancel: allowRebookAfterLateCancel,
		now:                        time.Now,
	}
}

// Create books a new pending appointment. Availability is re-validated at
// commit time, not just at selection time; the storage layer then makes
// the final conflict check atomic with the write, so of two concurrent
// bookings for the same window exactly one succeeds.
func (s *AppointmentService) Create(ctx context.Context, p domain.Principal, coachID string,
	start time.Time, durationMinutes int, notes string) (domain.Appointment, error) {
	if p.Role != domain.RoleParticipant {
		return domain.Appointment{}, fmt.Errorf("%w: only participants book appointments", errors.ErrForbidden)
	}
	if coachID == "" || start.IsZero() {
		return domain.Appointment{}, fmt.Errorf("%w: coach id and start time are required", errors.ErrValidation)
	}

	if err := s.availability.CanBook(ctx, coachID, start, durationMinutes, uuid.Nil); err != nil {
		s.countConflict(err)
		return domain.Appointment{}, err
	}

	now := s.now().UTC()
	appt := domain.Appointment{
		ID:              uuid.New(),
		ParticipantID:   p.ID,
		CoachID:         coachID,
		ScheduledStart:  start.UTC(),
		DurationMinutes: durationMinutes,
		Status:          domain.StatusPending,
		Notes:           notes,
		CreatedAt:       now,
	}
	appt.AppendHistory("created", p.ID, "", now)

	if err := s.appointments.Create(ctx, appt); err != nil {
		s.countConflict(err)
		return domain.Appointment{}, err
	}
	s.monitor.IncrBookingsCreated()
	s.log.Info("Appointment booked", "appointment", appt.ID, "coach", coachID, "start", appt.ScheduledStart)
	return appt, nil
}

// Get returns an appointment to one of its parties. Anyone else gets
// NotFound rather than Forbidden, to avoid leaking that the id exists.
func (s *AppointmentService) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.Appointment, error) {
	appt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if _, ok := appt.PartyRole(p); !ok {
		return domain.Appointment{}, fmt.Errorf("%w: appointment %s", errors.ErrNotFound, id)
	}
	return appt, nil
}

// Confirm moves pending to confirmed. Only the assigned coach may confirm.
func (s *AppointmentService) Confirm(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.Appointment, error) {
	return s.coachTransition(ctx, p, id, domain.StatusConfirmed, "confirmed")
}

// Complete moves confirmed to completed. Only the assigned coach may
// complete.
func (s *AppointmentService) Complete(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.Appointment, error) {
	return s.coachTransition(ctx, p, id, domain.StatusCompleted, "completed")
}

func (s *AppointmentService) coachTransition(ctx context.Context, p domain.Principal, id uuid.UUID, to domain.Status, action string) (domain.Appointment, error) {
	appt, err := s.Get(ctx, p, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if p.Role != domain.RoleCoach {
		return domain.Appointment{}, fmt.Errorf("%w: only the assigned coach may %s", errors.ErrForbidden, action)
	}
	if !domain.CanTransition(appt.Status, to) {
		return domain.Appointment{}, fmt.Errorf("%w: %s -> %s", errors.ErrStaleState, appt.Status, to)
	}

	appt.Status = to
	appt.AppendHistory(action, p.ID, "", s.now().UTC())
	if err := s.appointments.Update(ctx, appt); err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

// Cancel ends a pending or confirmed appointment. Cancelling a confirmed
// appointment inside the cutoff window is blocked unless forced; a forced
// late self-cancellation may additionally keep the participant's window
// held, depending on the rebooking policy.
func (s *AppointmentService) Cancel(ctx context.Context, p domain.Principal, id uuid.UUID, reason string, force bool) (domain.Appointment, error) {
	appt, err := s.Get(ctx, p, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	role, _ := appt.PartyRole(p)

	if !domain.CanTransition(appt.Status, domain.StatusCancelled) {
		return domain.Appointment{}, fmt.Errorf("%w: cannot cancel a %s appointment", errors.ErrStaleState, appt.Status)
	}

	now := s.now().UTC()
	late := appt.Status == domain.StatusConfirmed && now.After(appt.ScheduledStart.Add(-s.cancelCutoff))
	if late && !force {
		return domain.Appointment{}, fmt.Errorf("%w: cancellation requires %s notice", errors.ErrValidation, s.cancelCutoff)
	}

	detail := reason
	if late {
		detail = fmt.Sprintf("%s (inside %s cutoff)", reason, s.cancelCutoff)
	}
	appt.Status = domain.StatusCancelled
	appt.AppendHistory("cancelled", p.ID, detail, now)

	if late && role == domain.RoleParticipant && !s.allowRebookAfterLateCancel {
		err = s.appointments.UpdateWithParticipantHold(ctx, appt)
	} else {
		err = s.appointments.Update(ctx, appt)
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

// Reschedule closes the current record and opens a fresh pending one for
// the new time, linked both ways through history. The closed record keeps
// its full history; the caller re-enters the confirmation flow.
func (s *AppointmentService) Reschedule(ctx context.Context, p domain.Principal, id uuid.UUID,
	newStart time.Time, newDurationMinutes int) (domain.Appointment, error) {
	appt, err := s.Get(ctx, p, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !domain.CanTransition(appt.Status, domain.StatusRescheduled) {
		return domain.Appointment{}, fmt.Errorf("%w: cannot reschedule a %s appointment", errors.ErrStaleState, appt.Status)
	}
	if newDurationMinutes <= 0 {
		newDurationMinutes = appt.DurationMinutes
	}
	if err := s.availability.CanBook(ctx, appt.CoachID, newStart, newDurationMinutes, appt.ID); err != nil {
		s.countConflict(err)
		return domain.Appointment{}, err
	}

	now := s.now().UTC()
	replacement := domain.Appointment{
		ID:              uuid.New(),
		ParticipantID:   appt.ParticipantID,
		CoachID:         appt.CoachID,
		ScheduledStart:  newStart.UTC(),
		DurationMinutes: newDurationMinutes,
		Status:          domain.StatusPending,
		Notes:           appt.Notes,
		CreatedAt:       now,
	}
	replacement.AppendHistory("created", p.ID, fmt.Sprintf("rescheduled from %s", appt.ID), now)

	appt.Status = domain.StatusRescheduled
	appt.AppendHistory("rescheduled", p.ID, fmt.Sprintf("to %s", replacement.ID), now)

	if err := s.appointments.Reschedule(ctx, appt, replacement); err != nil {
		s.countConflict(err)
		return domain.Appointment{}, err
	}
	s.log.Info("Appointment rescheduled", "from", appt.ID, "to", replacement.ID)
	return replacement, nil
}

// Rate records the participant's rating of a completed appointment. Valid
// at most once; a second attempt is stale, not a validation problem.
func (s *AppointmentService) Rate(ctx context.Context, p domain.Principal, id uuid.UUID, score int, feedback string) (domain.Appointment, error) {
	appt, err := s.Get(ctx, p, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if p.Role != domain.RoleParticipant {
		return domain.Appointment{}, fmt.Errorf("%w: only the participant rates a session", errors.ErrForbidden)
	}
	if score < 1 || score > 5 {
		return domain.Appointment{}, fmt.Errorf("%w: score must be between 1 and 5", errors.ErrValidation)
	}
	if appt.Status != domain.StatusCompleted {
		return domain.Appointment{}, fmt.Errorf("%w: only completed appointments can be rated", errors.ErrStaleState)
	}
	if appt.Rating != nil {
		return domain.Appointment{}, fmt.Errorf("%w: already rated", errors.ErrStaleState)
	}

	now := s.now().UTC()
	appt.Rating = &domain.Rating{Score: score, Feedback: feedback, RatedAt: now}
	appt.AppendHistory("rated", p.ID, fmt.Sprintf("score %d", score), now)
	if err := s.appointments.Update(ctx, appt); err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (s *AppointmentService) countConflict(err error) {
	if err != nil && stderrors.Is(err, errors.ErrSlotConflict) {
		s.monitor.IncrSlotConflicts()
	}
}
