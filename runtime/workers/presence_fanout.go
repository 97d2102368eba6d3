package workers

import (
	"context"
	"log/slog"

	"chat-hub/contract"
	"chat-hub/domain/event"
)

// Compile-time check that the worker satisfies the contract.
var _ contract.Worker = (*PresenceFanout)(nil)

// PresenceFanout pushes join/leave events to the current members of the
// affected room. Delivery is best effort: presence is advisory, so a
// member whose buffer is full simply misses the notice — the engine's
// message path is what polices dead connections.
type PresenceFanout struct {
	log      *slog.Logger
	registry contract.IRegistry
	events   <-chan event.DomainEvent
}

func NewPresenceFanout(log *slog.Logger, registry contract.IRegistry,
	events <-chan event.DomainEvent) *PresenceFanout {
	return &PresenceFanout{log: log, registry: registry, events: events}
}

func (w *PresenceFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.fanout(ctx, evt)
		}
	}
}

func (w *PresenceFanout) fanout(ctx context.Context, evt event.DomainEvent) {
	for _, member := range w.registry.MembersOf(evt.RoomID()) {
		if err := member.Consume(ctx, evt); err != nil {
			w.log.Debug("presence event skipped",
				"conn_id", member.ID(), "room_id", evt.RoomID(), "error", err)
		}
	}
}
