package realtime

import (
	"quitcoach/contract"
	"quitcoach/domain/event"

	"github.com/google/uuid"
)

// ChannelSink buffers events for one connection. Deliver never blocks:
// when the buffer is full the event is dropped, which is acceptable
// because every event is only a hint to re-fetch.
type ChannelSink struct {
	id     string
	events chan event.Event
}

var _ contract.EventSink = (*ChannelSink)(nil)

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{
		id:     uuid.NewString(),
		events: make(chan event.Event, buffer),
	}
}

func (s *ChannelSink) ID() string { return s.id }

func (s *ChannelSink) Deliver(e event.Event) bool {
	select {
	case s.events <- e:
		return true
	default:
		return false
	}
}

// Events is consumed by the connection's write loop.
func (s *ChannelSink) Events() <-chan event.Event { return s.events }
