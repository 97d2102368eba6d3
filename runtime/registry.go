// Package runtime hosts the room registry and the distribution engine.
// It moves messages and membership around without owning domain rules
// or storage formats.
package runtime

import (
	"sync"

	"chat-hub/contract"
	"chat-hub/domain"

	"github.com/google/uuid"
)

type connSet map[uuid.UUID]struct{}
type roomSet map[domain.RoomID]struct{}

// Registry is the authoritative, in-memory membership map. It keeps both
// directions of the connection/room relation and mutates them under one
// lock so the invariant "C in members(R) iff R in joined(C)" can never be
// observed broken. The registry is created at process start and injected
// into the engine; there is no package-level instance.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]contract.Connection
	members  map[domain.RoomID]connSet
	joined   map[uuid.UUID]roomSet
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]contract.Connection),
		members:  make(map[domain.RoomID]connSet),
		joined:   make(map[uuid.UUID]roomSet),
	}
}

// Join adds both sides of the membership edge. Re-joining an already
// joined room is a no-op: Join is idempotent.
func (r *Registry) Join(conn contract.Connection, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()
	r.sessions[id] = conn

	if _, ok := r.members[roomID]; !ok {
		r.members[roomID] = make(connSet)
	}
	r.members[roomID][id] = struct{}{}

	if _, ok := r.joined[id]; !ok {
		r.joined[id] = make(roomSet)
	}
	r.joined[id][roomID] = struct{}{}
}

// Leave removes both sides of the edge. Leaving a room that was never
// joined succeeds as a no-op.
func (r *Registry) Leave(connID uuid.UUID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(connID, roomID)
}

// Disconnect removes the connection from every room it was a member of
// and forgets its session. It returns the rooms that were left so the
// caller can announce the departure.
func (r *Registry) Disconnect(connID uuid.UUID) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []domain.RoomID
	for roomID := range r.joined[connID] {
		left = append(left, roomID)
		r.remove(connID, roomID)
	}
	delete(r.sessions, connID)
	return left
}

// remove deletes one edge and cleans up empty sets so rooms that drained
// do not leak. Callers hold the write lock.
func (r *Registry) remove(connID uuid.UUID, roomID domain.RoomID) {
	if set, ok := r.members[roomID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.members, roomID)
		}
	}
	if set, ok := r.joined[connID]; ok {
		delete(set, roomID)
		if len(set) == 0 {
			delete(r.joined, connID)
		}
	}
}

// MembersOf returns a snapshot of the room's current member connections.
// The returned slice is a copy: fan-out iterates it without holding the
// lock, so concurrent Join/Leave/Disconnect never mutate it underneath.
func (r *Registry) MembersOf(roomID domain.RoomID) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.members[roomID]
	if !ok {
		return nil
	}
	snapshot := make([]contract.Connection, 0, len(set))
	for id := range set {
		if conn, exists := r.sessions[id]; exists {
			snapshot = append(snapshot, conn)
		}
	}
	return snapshot
}

// JoinedRooms returns a snapshot of the rooms the connection has joined.
func (r *Registry) JoinedRooms(connID uuid.UUID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.joined[connID]
	if !ok {
		return nil
	}
	rooms := make([]domain.RoomID, 0, len(set))
	for roomID := range set {
		rooms = append(rooms, roomID)
	}
	return rooms
}

func (r *Registry) IsMember(connID uuid.UUID, roomID domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.members[roomID]
	if !ok {
		return false
	}
	_, ok = set[connID]
	return ok
}
