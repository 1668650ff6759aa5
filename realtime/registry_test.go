package realtime

import (
	"testing"

	"quitcoach/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Join_And_Members(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	room := uuid.New()

	first := NewChannelSink(1)
	second := NewChannelSink(1)
	registry.Join(room, first)
	registry.Join(room, second)
	registry.Join(room, second) // duplicate join is a no-op

	req.Len(registry.Members(room), 2)
	req.Nil(registry.Members(uuid.New()), "unknown room has no members")
}

func Test_Leave_Cleans_Empty_Rooms(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	room := uuid.New()
	sink := NewChannelSink(1)

	registry.Join(room, sink)
	registry.Leave(room, sink.ID())
	req.Nil(registry.Members(room))
}

func Test_LeaveAll_Detaches_From_Every_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	first, second := uuid.New(), uuid.New()
	dropped := NewChannelSink(1)
	stays := NewChannelSink(1)

	registry.Join(first, dropped)
	registry.Join(second, dropped)
	registry.Join(second, stays)

	registry.LeaveAll(dropped.ID())

	req.Nil(registry.Members(first))
	req.Len(registry.Members(second), 1)
	req.Equal(stays.ID(), registry.Members(second)[0].ID())
}

func Test_ChannelSink_Drops_When_Full(t *testing.T) {
	req := require.New(t)
	sink := NewChannelSink(1)
	room := uuid.New()

	req.True(sink.Deliver(event.NewMessage{Appointment: room}))
	req.False(sink.Deliver(event.NewMessage{Appointment: room}), "full buffer drops")

	<-sink.Events()
	req.True(sink.Deliver(event.NewMessage{Appointment: room}))
}
