// Package client holds the consuming side of the messaging sync protocol:
// an HTTP API client, a reconnecting notification link, and the reconciler
// that keeps a local conversation view converged with the server log.
package client

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"quitcoach/contract"
	"quitcoach/domain"
	"quitcoach/domain/event"

	"github.com/google/uuid"
)

// DefaultPollInterval is the fallback re-fetch cadence. Polling runs
// regardless of notifications, which are only delivery hints and may be
// dropped.
const DefaultPollInterval = 5 * time.Second

type SendState string

const (
	SendPending SendState = "pending"
	SendFailed  SendState = "failed"
)

// LocalMessage is an optimistic send that has not been confirmed by the
// server yet. Once confirmed the entry disappears and the server's copy
// takes over.
type LocalMessage struct {
	CorrelationToken uuid.UUID
	Text             string
	State            SendState
	QueuedAt         time.Time
}

// Reconciler converges a local view of one appointment's conversation with
// the server log. The server is always right: local state never overrides a
// fetched message, and failed sends are kept visible but never retried.
type Reconciler struct {
	log           *slog.Logger
	api           contract.MessageAPI
	appointmentID uuid.UUID
	interval      time.Duration

	mu     sync.Mutex
	synced map[int64]domain.Message
	outbox []LocalMessage

	refetch chan struct{}
}

func NewReconciler(log *slog.Logger, api contract.MessageAPI, appointmentID uuid.UUID, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Reconciler{
		log:           log,
		api:           api,
		appointmentID: appointmentID,
		interval:      interval,
		synced:        make(map[int64]domain.Message),
		refetch:       make(chan struct{}, 1),
	}
}

// Send performs an optimistic send: the text is visible locally right away
// and resolves to the server's copy when the call returns. A failed send
// stays marked in the view and is never retried automatically.
func (r *Reconciler) Send(ctx context.Context, text string) error {
	token := uuid.New()
	r.mu.Lock()
	r.outbox = append(r.outbox, LocalMessage{
		CorrelationToken: token,
		Text:             text,
		State:            SendPending,
		QueuedAt:         time.Now(),
	})
	r.mu.Unlock()

	msg, err := r.api.SendMessage(ctx, r.appointmentID, text)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.resolveOutbox(token, SendFailed)
		return err
	}
	r.removeFromOutbox(token)
	r.synced[msg.ID] = msg
	return nil
}

// ApplyServerList merges a fetched conversation into the local view,
// keyed by server id. Applying the same list twice changes nothing;
// unresolved placeholders are untouched.
func (r *Reconciler) ApplyServerList(msgs []domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range msgs {
		r.synced[msg.ID] = msg
	}
}

// Refresh pulls the authoritative log and merges it.
func (r *Reconciler) Refresh(ctx context.Context) error {
	msgs, err := r.api.ListMessages(ctx, r.appointmentID)
	if err != nil {
		return err
	}
	r.ApplyServerList(msgs)
	return nil
}

// MarkRead reports the conversation as caught up and refreshes so the
// flipped flags become visible locally.
func (r *Reconciler) MarkRead(ctx context.Context) error {
	if err := r.api.MarkMessagesRead(ctx, r.appointmentID); err != nil {
		return err
	}
	return r.Refresh(ctx)
}

// OnNotify schedules an immediate re-fetch when a notification concerns
// this conversation. Coalesced: a burst of notifications triggers one
// fetch.
func (r *Reconciler) OnNotify(e event.Event) {
	if e.AppointmentID() != r.appointmentID {
		return
	}
	select {
	case r.refetch <- struct{}{}:
	default:
	}
}

// Messages returns the converged view: confirmed messages in server order
// followed by unresolved optimistic sends, oldest queued first.
func (r *Reconciler) Messages() ([]domain.Message, []LocalMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := make([]domain.Message, 0, len(r.synced))
	for _, msg := range r.synced {
		msgs = append(msgs, msg)
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})

	outbox := make([]LocalMessage, len(r.outbox))
	copy(outbox, r.outbox)
	return msgs, outbox
}

// Run polls on the configured interval and on notification hints. The
// poll happens regardless of notifications so a dropped hint only delays
// convergence, never prevents it.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-r.refetch:
		}
		if err := r.Refresh(ctx); err != nil {
			r.log.Debug("Refresh failed, will retry on next tick", "appointment", r.appointmentID, "error", err)
		}
	}
}

func (r *Reconciler) resolveOutbox(token uuid.UUID, state SendState) {
	for i := range r.outbox {
		if r.outbox[i].CorrelationToken == token {
			r.outbox[i].State = state
			return
		}
	}
}

func (r *Reconciler) removeFromOutbox(token uuid.UUID) {
	for i := range r.outbox {
		if r.outbox[i].CorrelationToken == token {
			r.outbox = append(r.outbox[:i], r.outbox[i+1:]...)
			return
		}
	}
}
