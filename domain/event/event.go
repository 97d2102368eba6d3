// Package event defines the domain events flowing from the distribution
// engine to connection sinks and background workers.
package event

import (
	"time"

	"chat-hub/domain"
)

type DomainEvent interface {
	RoomID() domain.RoomID
}

// MessagePosted carries a persisted message to every member of its room.
type MessagePosted struct {
	Message domain.Message
}

func (m MessagePosted) RoomID() domain.RoomID {
	return m.Message.Room
}

// ParticipantJoined announces that a connection joined a room.
type ParticipantJoined struct {
	Room     domain.RoomID
	UserID   domain.UserID
	Username string
	At       time.Time
}

func (p ParticipantJoined) RoomID() domain.RoomID {
	return p.Room
}

// ParticipantLeft announces that a connection left a room, either
// explicitly or because it disconnected.
type ParticipantLeft struct {
	Room     domain.RoomID
	UserID   domain.UserID
	Username string
	At       time.Time
}

func (p ParticipantLeft) RoomID() domain.RoomID {
	return p.Room
}
