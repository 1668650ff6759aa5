package realtime

import (
	"log/slog"
	"testing"

	"quitcoach/domain"
	"quitcoach/domain/event"
	"quitcoach/observability"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Broadcast_Reaches_All_Members(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	fanout := NewFanout(slog.Default(), registry, observability.NewMonitor(slog.Default()), 16)
	room := uuid.New()

	first := NewChannelSink(4)
	second := NewChannelSink(4)
	registry.Join(room, first)
	registry.Join(room, second)

	fanout.Broadcast(event.NewMessage{Appointment: room}, "")

	req.Len(first.Events(), 1)
	req.Len(second.Events(), 1)
}

func Test_Broadcast_Excludes_Originator(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	fanout := NewFanout(slog.Default(), registry, observability.NewMonitor(slog.Default()), 16)
	room := uuid.New()

	origin := NewChannelSink(4)
	other := NewChannelSink(4)
	registry.Join(room, origin)
	registry.Join(room, other)

	fanout.Broadcast(event.MessagesRead{Appointment: room, Reader: domain.RoleCoach}, origin.ID())

	req.Len(origin.Events(), 0, "originator already knows")
	req.Len(other.Events(), 1)

	got := <-other.Events()
	read, ok := got.(event.MessagesRead)
	req.True(ok)
	req.Equal(domain.RoleCoach, read.Reader)
}

func Test_Broadcast_Tolerates_Slow_Consumer(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	monitor := observability.NewMonitor(slog.Default())
	fanout := NewFanout(slog.Default(), registry, monitor, 16)
	room := uuid.New()

	slow := NewChannelSink(1)
	registry.Join(room, slow)

	fanout.Broadcast(event.NewMessage{Appointment: room}, "")
	fanout.Broadcast(event.NewMessage{Appointment: room}, "")

	// Second delivery is dropped silently; broadcasting never blocks.
	req.Len(slow.Events(), 1)
}
