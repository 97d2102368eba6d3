//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-hub/domain"
	"chat-hub/domain/event"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives domain events for one consumer. Consume must not
// block: a sink whose buffer is full returns ErrConnectionGone instead
// of delaying the broadcaster.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Connection is one live, authenticated transport session.
type Connection interface {
	EventSink
	ID() uuid.UUID
	User() domain.User
	// Close tears the transport down. Safe to call concurrently with an
	// in-flight broadcast targeting this connection.
	Close(reason string)
}

// IRegistry is the authoritative room membership map.
// Invariant: for every connection C and room R,
// C in MembersOf(R) iff R in JoinedRooms(C).
type IRegistry interface {
	Join(conn Connection, roomID domain.RoomID)
	Leave(connID uuid.UUID, roomID domain.RoomID)
	Disconnect(connID uuid.UUID) []domain.RoomID
	MembersOf(roomID domain.RoomID) []Connection
	JoinedRooms(connID uuid.UUID) []domain.RoomID
	IsMember(connID uuid.UUID, roomID domain.RoomID) bool
}
