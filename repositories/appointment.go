//go:generate go run go.uber.org/mock/mockgen -source=appointment.go -destination=../mocks/mock_appointment_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"quitcoach/domain"
	"quitcoach/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Bookings are aligned to a 15-minute grid. Every booked window writes one
// hold key per grid bucket for the coach and the participant; two
// overlapping windows always collide on at least one bucket.
const holdGranularity = 15 * time.Minute

// maxTxnRetries bounds commit retries after a badger.ErrConflict. The
// re-run re-reads the hold keys, so a genuine double-booking degrades into
// ErrSlotConflict instead of looping.
const maxTxnRetries = 3

type AppointmentRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewAppointmentRepository(db *badger.DB, log *slog.Logger) *AppointmentRepository {
	return &AppointmentRepository{db: db, log: log}
}

func apptKey(id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("appt:%s", id))
}

// coachIndexKey orders a coach's blocking appointments by start time; the
// 19-digit zero padding keeps lexicographic order equal to time order.
func coachIndexKey(coachID string, start time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("apptix:coach:%s:%019d:%s", coachID, start.UnixNano(), id))
}

func coachIndexPrefix(coachID string) []byte {
	return []byte(fmt.Sprintf("apptix:coach:%s:", coachID))
}

func holdKey(side, ownerID string, bucket time.Time) []byte {
	return []byte(fmt.Sprintf("hold:%s:%s:%019d", side, ownerID, bucket.UnixNano()))
}

// holdBuckets returns every grid bucket covered by [start, start+duration).
func holdBuckets(start time.Time, durationMinutes int) []time.Time {
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	var buckets []time.Time
	for t := start.Truncate(holdGranularity); t.Before(end); t = t.Add(holdGranularity) {
		buckets = append(buckets, t)
	}
	return buckets
}

// Create persists a new appointment and acquires its window holds. The
// existence check and the writes share one transaction: of two concurrent
// bookings for an overlapping window exactly one commits, the other is
// rejected with ErrSlotConflict.
func (r *AppointmentRepository) Create(_ context.Context, appt domain.Appointment) error {
	return r.retryOnConflict(func(txn *badger.Txn) error {
		if err := r.acquireHolds(txn, appt); err != nil {
			return err
		}
		if err := r.putAppointment(txn, appt); err != nil {
			return err
		}
		return txn.Set(coachIndexKey(appt.CoachID, appt.ScheduledStart, appt.ID), []byte(appt.ID.String()))
	})
}

func (r *AppointmentRepository) Get(_ context.Context, id uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		appt, err = readAppointment(txn, id)
		return err
	})
	return appt, err
}

// Update rewrites an appointment. When the status leaves the blocking set
// the coach index entry and both window holds are released so the slot
// opens up again.
func (r *AppointmentRepository) Update(ctx context.Context, appt domain.Appointment) error {
	return r.update(appt, false)
}

// UpdateWithParticipantHold is Update for a late self-cancellation under
// the no-immediate-rebook policy: the coach's window opens up, but the
// participant's own hold on the window is kept until it expires.
func (r *AppointmentRepository) UpdateWithParticipantHold(_ context.Context, appt domain.Appointment) error {
	return r.update(appt, true)
}

func (r *AppointmentRepository) update(appt domain.Appointment, keepParticipantHold bool) error {
	return r.retryOnConflict(func(txn *badger.Txn) error {
		stored, err := readAppointment(txn, appt.ID)
		if err != nil {
			return err
		}
		if stored.Status.Blocking() && !appt.Status.Blocking() {
			if err := r.releaseHolds(txn, stored, keepParticipantHold); err != nil {
				return err
			}
		}
		return r.putAppointment(txn, appt)
	})
}

// Reschedule closes the old record and books its replacement atomically:
// either both are visible or neither. The replacement goes through the
// same hold acquisition as any fresh booking.
func (r *AppointmentRepository) Reschedule(_ context.Context, closed, replacement domain.Appointment) error {
	return r.retryOnConflict(func(txn *badger.Txn) error {
		stored, err := readAppointment(txn, closed.ID)
		if err != nil {
			return err
		}
		if stored.Status.Blocking() {
			if err := r.releaseHolds(txn, stored, false); err != nil {
				return err
			}
		}
		if err := r.putAppointment(txn, closed); err != nil {
			return err
		}
		if err := r.acquireHolds(txn, replacement); err != nil {
			return err
		}
		if err := r.putAppointment(txn, replacement); err != nil {
			return err
		}
		return txn.Set(coachIndexKey(replacement.CoachID, replacement.ScheduledStart, replacement.ID), []byte(replacement.ID.String()))
	})
}

// ListCoachBlocking returns the coach's pending/confirmed appointments
// starting inside [from, to), earliest first.
func (r *AppointmentRepository) ListCoachBlocking(_ context.Context, coachID string, from, to time.Time) ([]domain.Appointment, error) {
	var appts []domain.Appointment
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := coachIndexPrefix(coachID)
		seek := []byte(fmt.Sprintf("apptix:coach:%s:%019d", coachID, from.UnixNano()))
		stop := fmt.Sprintf("apptix:coach:%s:%019d", coachID, to.UnixNano())

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if string(it.Item().Key()) >= stop {
				break
			}
			var idBytes []byte
			if err := it.Item().Value(func(v []byte) error {
				idBytes = append([]byte(nil), v...)
				return nil
			}); err != nil {
				return err
			}
			id, err := uuid.Parse(string(idBytes))
			if err != nil {
				return fmt.Errorf("corrupt coach index entry %q: %w", it.Item().Key(), err)
			}
			appt, err := readAppointment(txn, id)
			if err != nil {
				return err
			}
			if appt.Status.Blocking() {
				appts = append(appts, appt)
			}
		}
		return nil
	})
	return appts, err
}

// acquireHolds reads then writes every bucket hold for both parties. The
// reads make a concurrent overlapping commit abort this transaction; the
// retried run then observes the winner's keys and fails cleanly.
func (r *AppointmentRepository) acquireHolds(txn *badger.Txn, appt domain.Appointment) error {
	buckets := holdBuckets(appt.ScheduledStart, appt.DurationMinutes)
	keys := lo.FlatMap(buckets, func(b time.Time, _ int) [][]byte {
		return [][]byte{
			holdKey("coach", appt.CoachID, b),
			holdKey("part", appt.ParticipantID, b),
		}
	})
	for _, key := range keys {
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return fmt.Errorf("%w: window %s+%dm", errors.ErrSlotConflict,
				appt.ScheduledStart.UTC().Format(time.RFC3339), appt.DurationMinutes)
		case stderrors.Is(err, badger.ErrKeyNotFound):
			// free bucket
		default:
			return err
		}
	}
	for _, key := range keys {
		if err := txn.Set(key, []byte(appt.ID.String())); err != nil {
			return err
		}
	}
	return nil
}

func (r *AppointmentRepository) releaseHolds(txn *badger.Txn, appt domain.Appointment, keepParticipantHold bool) error {
	if err := txn.Delete(coachIndexKey(appt.CoachID, appt.ScheduledStart, appt.ID)); err != nil {
		return err
	}
	for _, b := range holdBuckets(appt.ScheduledStart, appt.DurationMinutes) {
		if err := txn.Delete(holdKey("coach", appt.CoachID, b)); err != nil {
			return err
		}
		if keepParticipantHold {
			continue
		}
		if err := txn.Delete(holdKey("part", appt.ParticipantID, b)); err != nil {
			return err
		}
	}
	return nil
}

func (r *AppointmentRepository) putAppointment(txn *badger.Txn, appt domain.Appointment) error {
	payload, err := json.Marshal(appt)
	if err != nil {
		return err
	}
	return txn.Set(apptKey(appt.ID), payload)
}

func readAppointment(txn *badger.Txn, id uuid.UUID) (domain.Appointment, error) {
	item, err := txn.Get(apptKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Appointment{}, fmt.Errorf("%w: appointment %s", errors.ErrNotFound, id)
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	var appt domain.Appointment
	if err := item.Value(func(v []byte) error {
		return json.Unmarshal(v, &appt)
	}); err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

// retryOnConflict re-runs the transaction after an optimistic-concurrency
// abort. Anything else, including ErrSlotConflict, propagates unchanged.
func (r *AppointmentRepository) retryOnConflict(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err = r.db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
		r.log.Debug("Transaction conflict, retrying", "attempt", attempt+1)
	}
	// Every retry collided with a concurrent booking commit.
	return fmt.Errorf("%w: concurrent booking", errors.ErrSlotConflict)
}
