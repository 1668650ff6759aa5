// Package realtime fans best-effort change notifications out to the live
// connections subscribed to each appointment's room. Nothing here is
// persisted; the whole registry is rebuilt from client joins after a
// restart.
package realtime

import (
	"sync"

	"quitcoach/contract"

	"github.com/google/uuid"
)

type sinkSet map[string]contract.EventSink

// Registry maps appointment rooms to their live member sinks. A sink may
// belong to several rooms at once; LeaveAll detaches it everywhere when
// its connection drops.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]sinkSet
	joined map[string]map[uuid.UUID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[uuid.UUID]sinkSet),
		joined: make(map[string]map[uuid.UUID]struct{}),
	}
}

// Join subscribes a sink to a room. Joining twice is a no-op; there is no
// backlog replay, a fresh member must re-fetch to catch up.
func (r *Registry) Join(appointmentID uuid.UUID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[appointmentID]; !ok {
		r.rooms[appointmentID] = make(sinkSet)
	}
	r.rooms[appointmentID][sink.ID()] = sink

	if _, ok := r.joined[sink.ID()]; !ok {
		r.joined[sink.ID()] = make(map[uuid.UUID]struct{})
	}
	r.joined[sink.ID()][appointmentID] = struct{}{}
}

func (r *Registry) Leave(appointmentID uuid.UUID, sinkID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leave(appointmentID, sinkID)
}

// LeaveAll removes a disconnected sink from every room it joined. Empty
// rooms are dropped entirely to keep the registry from leaking over time.
func (r *Registry) LeaveAll(sinkID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for appointmentID := range r.joined[sinkID] {
		r.leave(appointmentID, sinkID)
	}
}

func (r *Registry) leave(appointmentID uuid.UUID, sinkID string) {
	if members, ok := r.rooms[appointmentID]; ok {
		delete(members, sinkID)
		if len(members) == 0 {
			delete(r.rooms, appointmentID)
		}
	}
	if rooms, ok := r.joined[sinkID]; ok {
		delete(rooms, appointmentID)
		if len(rooms) == 0 {
			delete(r.joined, sinkID)
		}
	}
}

func (r *Registry) Members(appointmentID uuid.UUID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[appointmentID]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(members))
	for _, sink := range members {
		sinks = append(sinks, sink)
	}
	return sinks
}
