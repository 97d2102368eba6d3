package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/moderation"
	"chat-hub/repositories"
)

// Engine turns a send intent into a persisted, ordered, broadcast
// message. Persistence happens before fan-out; the membership snapshot is
// taken after persistence completes. A per-room lock spans both steps so
// every member of a room observes the same total order; sends to
// different rooms never contend.
type Engine struct {
	log       *slog.Logger
	registry  contract.IRegistry
	messages  repositories.IMessageRepository
	chats     repositories.IChatRepository
	moderator *moderation.Moderator
	events    chan event.DomainEvent

	mu        sync.Mutex
	roomLocks map[domain.RoomID]*sync.Mutex
}

func NewEngine(log *slog.Logger, registry contract.IRegistry,
	messages repositories.IMessageRepository, chats repositories.IChatRepository,
	moderator *moderation.Moderator, eventBufferSize int) *Engine {
	return &Engine{
		log:       log,
		registry:  registry,
		messages:  messages,
		chats:     chats,
		moderator: moderator,
		events:    make(chan event.DomainEvent, eventBufferSize),
		roomLocks: make(map[domain.RoomID]*sync.Mutex),
	}
}

// Events exposes the presence event stream consumed by the fanout worker.
func (e *Engine) Events() <-chan event.DomainEvent {
	return e.events
}

// Join authorizes the connection's user against the chat's recipient set
// and registers the membership edge. Joining a room twice is a no-op that
// still succeeds.
func (e *Engine) Join(ctx context.Context, conn contract.Connection, roomID domain.RoomID) error {
	chat, err := e.chats.Get(roomID)
	if err != nil {
		return err
	}
	if !chat.HasRecipient(conn.User().ID) {
		return errors.ErrNotAuthorized
	}
	if e.registry.IsMember(conn.ID(), roomID) {
		return nil
	}
	e.registry.Join(conn, roomID)
	e.emit(event.ParticipantJoined{
		Room:     roomID,
		UserID:   conn.User().ID,
		Username: conn.User().Username,
		At:       time.Now().UTC(),
	})
	e.log.Debug("connection joined room",
		"conn_id", conn.ID(), "room_id", roomID, "user_id", conn.User().ID)
	return nil
}

// Leave removes the membership edge. Leaving a room that was never
// joined succeeds as a no-op.
func (e *Engine) Leave(conn contract.Connection, roomID domain.RoomID) {
	if !e.registry.IsMember(conn.ID(), roomID) {
		return
	}
	e.registry.Leave(conn.ID(), roomID)
	e.emit(event.ParticipantLeft{
		Room:     roomID,
		UserID:   conn.User().ID,
		Username: conn.User().Username,
		At:       time.Now().UTC(),
	})
}

// Disconnect removes the connection from every room it was a member of.
// Safe to invoke concurrently with an in-flight broadcast targeting the
// connection: the broadcast treats "no longer a member" and "send
// failed" identically.
func (e *Engine) Disconnect(conn contract.Connection) {
	left := e.registry.Disconnect(conn.ID())
	for _, roomID := range left {
		e.emit(event.ParticipantLeft{
			Room:     roomID,
			UserID:   conn.User().ID,
			Username: conn.User().Username,
			At:       time.Now().UTC(),
		})
	}
}

// Send handles a message from a live connection. The connection must have
// joined the room first; this keeps write access aligned with read
// access. Returns the persisted message as confirmation.
func (e *Engine) Send(ctx context.Context, conn contract.Connection,
	roomID domain.RoomID, body string) (domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Message{}, errors.ErrEmptyMessage
	}
	if !e.registry.IsMember(conn.ID(), roomID) {
		return domain.Message{}, errors.ErrNotInRoom
	}
	return e.publish(ctx, conn.User(), roomID, body)
}

// Post handles a message arriving over the request/response surface,
// where no live membership exists. Authorization falls back to the
// chat's recipient set, matching the original HTTP send path.
func (e *Engine) Post(ctx context.Context, user domain.User,
	roomID domain.RoomID, body string) (domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Message{}, errors.ErrEmptyMessage
	}
	chat, err := e.chats.Get(roomID)
	if err != nil {
		return domain.Message{}, err
	}
	if !chat.HasRecipient(user.ID) {
		return domain.Message{}, errors.ErrNotAuthorized
	}
	return e.publish(ctx, user, roomID, body)
}

// publish persists then broadcasts. The room lock is the serialization
// point: the store assigns the sequence id and timestamp under it, and
// fan-out enqueues in the same critical section, so no member can
// observe message N+1 before message N.
func (e *Engine) publish(ctx context.Context, author domain.User,
	roomID domain.RoomID, body string) (domain.Message, error) {
	if e.moderator != nil {
		censored, found := e.moderator.Censor(body)
		if len(found) > 0 {
			e.log.Info("message censored",
				"room_id", roomID, "author_id", author.ID, "words", len(found))
		}
		body = censored
	}

	lock := e.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := e.messages.Append(roomID, author.ID, author.Username, body)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
	}

	e.broadcast(ctx, msg)
	return msg, nil
}

// broadcast pushes one persisted message to the room's current members.
// Each push is non-blocking; a member whose buffer is full or whose
// transport is gone is dropped from every room and closed, never
// reported to the sender.
func (e *Engine) broadcast(ctx context.Context, msg domain.Message) {
	evt := event.MessagePosted{Message: msg}
	for _, member := range e.registry.MembersOf(msg.Room) {
		if err := member.Consume(ctx, evt); err != nil {
			e.log.Warn("dropping unreachable member",
				"conn_id", member.ID(), "room_id", msg.Room, "error", err)
			e.drop(member)
		}
	}
}

// drop treats a broadcast failure as a disconnect: membership heals
// itself instead of accumulating dead edges.
func (e *Engine) drop(conn contract.Connection) {
	left := e.registry.Disconnect(conn.ID())
	for _, roomID := range left {
		e.emit(event.ParticipantLeft{
			Room:     roomID,
			UserID:   conn.User().ID,
			Username: conn.User().Username,
			At:       time.Now().UTC(),
		})
	}
	conn.Close("send buffer overflow")
}

// emit never blocks message distribution on presence delivery.
func (e *Engine) emit(evt event.DomainEvent) {
	select {
	case e.events <- evt:
	default:
		e.log.Debug("presence event lost", "room_id", evt.RoomID())
	}
}

func (e *Engine) roomLock(roomID domain.RoomID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.roomLocks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		e.roomLocks[roomID] = lock
	}
	return lock
}
