package realtime

import (
	"context"
	"log/slog"

	"quitcoach/contract"
	"quitcoach/domain/event"
	"quitcoach/observability"
)

// Fanout broadcasts appointment events to the room members registered at
// the moment of delivery.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering, durability, or retries. Fanout is not a message broker:
// consumers compensate for losses by polling the message store.
//
// Fanout is safe for concurrent use by multiple goroutines.
type Fanout struct {
	log      *slog.Logger
	registry contract.Registry
	monitor  *observability.Monitor
	events   chan event.Event
}

var _ contract.Publisher = (*Fanout)(nil)

func NewFanout(log *slog.Logger, registry contract.Registry, monitor *observability.Monitor, bufferSize int) *Fanout {
	return &Fanout{
		log:      log,
		registry: registry,
		monitor:  monitor,
		events:   make(chan event.Event, bufferSize),
	}
}

// Publish enqueues an event for broadcast. Services call it strictly after
// the triggering write has committed, so no client is ever notified about
// data it cannot read back. A full queue drops the event.
func (f *Fanout) Publish(e event.Event) {
	select {
	case f.events <- e:
	default:
		f.monitor.IncrNotificationsDropped()
		f.log.Warn("Event queue full, dropping notification", "appointment", e.AppointmentID())
	}
}

// Run consumes the queue until the context is cancelled. Intended to be
// started under the supervisor.
func (f *Fanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			f.log.Debug("Context done, stopping fan-out")
			return nil
		case e := <-f.events:
			f.Broadcast(e, "")
		}
	}
}

// Broadcast delivers one event to every room member except the excluded
// sink (the originator of a client-relayed notification, which already
// knows). Dropped deliveries are counted, never surfaced.
func (f *Fanout) Broadcast(e event.Event, excludeSinkID string) {
	for _, sink := range f.registry.Members(e.AppointmentID()) {
		if sink.ID() == excludeSinkID {
			continue
		}
		if sink.Deliver(e) {
			f.monitor.IncrEventsDelivered()
			continue
		}
		f.monitor.IncrNotificationsDropped()
		f.log.Debug("Slow consumer, notification dropped",
			"appointment", e.AppointmentID(), "sink", sink.ID())
	}
}
