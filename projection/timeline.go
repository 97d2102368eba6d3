// Package projection builds local timelines from observed events.
// Handles ordering, deduplication, and projections.
// Does not emit events or interact with UI directly.
package projection

import (
	"context"
	"sort"
	"sync"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
)

var _ contract.EventSink = (*Timeline)(nil)

// Timeline is a local, per-room view of the message stream. Messages
// are deduplicated by sequence id and kept sorted, so a replayed
// history merged with live delivery converges to the order the server
// assigned.
type Timeline struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID][]domain.Message
	seen  map[domain.RoomID]map[uint64]struct{}
}

func NewTimeline() *Timeline {
	return &Timeline{
		rooms: make(map[domain.RoomID][]domain.Message),
		seen:  make(map[domain.RoomID]map[uint64]struct{}),
	}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	posted, ok := e.(event.MessagePosted)
	if !ok {
		return nil
	}
	t.Add(posted.Message)
	return nil
}

// Add inserts one message, ignoring duplicates.
func (t *Timeline) Add(msg domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen, ok := t.seen[msg.Room]
	if !ok {
		seen = make(map[uint64]struct{})
		t.seen[msg.Room] = seen
	}
	if _, dup := seen[msg.Seq]; dup {
		return
	}
	seen[msg.Seq] = struct{}{}

	messages := append(t.rooms[msg.Room], msg)
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Seq < messages[j].Seq
	})
	t.rooms[msg.Room] = messages
}

// Messages returns the ordered timeline of one room as a copy.
func (t *Timeline) Messages(room domain.RoomID) []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	messages := t.rooms[room]
	out := make([]domain.Message, len(messages))
	copy(out, messages)
	return out
}

func (t *Timeline) Len(room domain.RoomID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms[room])
}
