// Package domain contains core concepts of the chat system.
// This file defines Message records and related rules.
// Messages are immutable and ordered per room by their sequence id.
package domain

import (
	"time"
)

// Message represents an immutable chat message.
// Seq and At are assigned by the message store at persistence time;
// client-supplied timestamps are display-only and never authoritative.
type Message struct {
	Seq        uint64 // per-room monotonically increasing identifier
	Room       RoomID
	AuthorID   UserID
	AuthorName string // denormalized for display
	Body       string
	At         time.Time
}
