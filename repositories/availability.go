package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"quitcoach/domain"

	"github.com/dgraph-io/badger/v4"
)

// AvailabilityRepository stores per-coach working hours, one record per
// weekday. Coaches without a record fall back to the configured default
// window, so a fresh deployment is bookable before any profile sync ran.
type AvailabilityRepository struct {
	db            *badger.DB
	log           *slog.Logger
	defaultWindow *domain.AvailabilityWindow
}

func NewAvailabilityRepository(db *badger.DB, log *slog.Logger, defaultWindow *domain.AvailabilityWindow) *AvailabilityRepository {
	return &AvailabilityRepository{db: db, log: log, defaultWindow: defaultWindow}
}

func hoursKey(coachID string, weekday time.Weekday) []byte {
	return []byte(fmt.Sprintf("hours:%s:%d", coachID, weekday))
}

// SetWindows replaces a coach's working hours for one weekday. An empty
// slice stores an explicit day off, distinct from "no record".
func (r *AvailabilityRepository) SetWindows(_ context.Context, coachID string, weekday time.Weekday, windows []domain.AvailabilityWindow) error {
	payload, err := json.Marshal(windows)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(hoursKey(coachID, weekday), payload)
	})
}

func (r *AvailabilityRepository) WindowsFor(_ context.Context, coachID string, weekday time.Weekday) ([]domain.AvailabilityWindow, error) {
	var windows []domain.AvailabilityWindow
	found := false
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(hoursKey(coachID, weekday))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &windows)
		})
	})
	if err != nil {
		return nil, err
	}
	if !found && r.defaultWindow != nil {
		fallback := *r.defaultWindow
		fallback.CoachID = coachID
		fallback.Weekday = weekday
		return []domain.AvailabilityWindow{fallback}, nil
	}
	return windows, nil
}
