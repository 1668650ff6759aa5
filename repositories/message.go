//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"quitcoach/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// Message keys are "msg:{appointment}:{seq_padded}" so a prefix scan
// yields the log in send order; "msgseq:{appointment}" holds the last
// assigned sequence number.
func messageKey(appointmentID uuid.UUID, seq int64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d", appointmentID, seq))
}

func messagePrefix(appointmentID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", appointmentID))
}

func sequenceKey(appointmentID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msgseq:%s", appointmentID))
}

// Append assigns the next sequence id and inserts the message in the same
// transaction. Two concurrent appends both read the sequence key, so
// badger aborts one at commit; the retry re-reads and gets the next id.
// The sender's own read flag starts true, the counterpart's false.
func (m *MessageRepository) Append(_ context.Context, appointmentID uuid.UUID, sender domain.Role, text string, at time.Time) (domain.Message, error) {
	var msg domain.Message
	err := m.retryOnConflict(func(txn *badger.Txn) error {
		last, err := readSequence(txn, appointmentID)
		if err != nil {
			return err
		}
		next := last + 1

		msg = domain.Message{
			ID:            next,
			AppointmentID: appointmentID,
			SenderRole:    sender,
			Text:          text,
			CreatedAt:     at.UTC(),
		}
		msg.SetReadBy(sender)

		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err := txn.Set(sequenceKey(appointmentID), []byte(strconv.FormatInt(next, 10))); err != nil {
			return err
		}
		return txn.Set(messageKey(appointmentID, next), payload)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// List returns the full conversation log, ordered by sequence id. The log
// is finite and small per appointment; callers may page externally.
func (m *MessageRepository) List(_ context.Context, appointmentID uuid.UUID) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(appointmentID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg domain.Message
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &msg)
			}); err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	return messages, err
}

// MarkRead flips the read flag of every message authored by the reader's
// counterpart. Flags only move false to true; calling again is a no-op.
func (m *MessageRepository) MarkRead(_ context.Context, appointmentID uuid.UUID, reader domain.Role) (int, error) {
	flipped := 0
	err := m.retryOnConflict(func(txn *badger.Txn) error {
		flipped = 0
		prefix := messagePrefix(appointmentID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg domain.Message
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &msg)
			}); err != nil {
				return err
			}
			if msg.SenderRole == reader || msg.ReadBy(reader) {
				continue
			}
			msg.SetReadBy(reader)
			payload, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			if err := txn.Set(messageKey(appointmentID, msg.ID), payload); err != nil {
				return err
			}
			flipped++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return flipped, nil
}

func readSequence(txn *badger.Txn, appointmentID uuid.UUID) (int64, error) {
	item, err := txn.Get(sequenceKey(appointmentID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var last int64
	err = item.Value(func(v []byte) error {
		last, err = strconv.ParseInt(string(v), 10, 64)
		return err
	})
	return last, err
}

func (m *MessageRepository) retryOnConflict(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		err = m.db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
		m.log.Debug("Message transaction conflict, retrying", "attempt", attempt+1)
	}
	return fmt.Errorf("message log contention exhausted retries: %w", err)
}
