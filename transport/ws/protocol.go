package ws

import (
	"encoding/json"
	"time"

	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"

	stderrors "errors"
)

// Inbound event names accepted from the client.
const (
	eventJoin  = "join"
	eventLeave = "leave"
	eventSend  = "send"
)

// inbound is one client frame. Body is only meaningful for "send".
type inbound struct {
	Type   string `json:"type"`
	RoomID int64  `json:"room_id"`
	Body   string `json:"body,omitempty"`
}

// frame is one server frame. Exactly one of the optional groups is set,
// selected by Type: "message", "joined", "left", "error".
type frame struct {
	Type     string          `json:"type"`
	Message  *messagePayload `json:"message,omitempty"`
	RoomID   int64           `json:"room_id,omitempty"`
	UserID   int64           `json:"user_id,omitempty"`
	Username string          `json:"username,omitempty"`
	Code     string          `json:"code,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

type messagePayload struct {
	ID        uint64 `json:"id"`
	ChatID    int64  `json:"chat_id"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Body      string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func toMessagePayload(msg domain.Message) *messagePayload {
	return &messagePayload{
		ID:        msg.Seq,
		ChatID:    int64(msg.Room),
		UserID:    int64(msg.AuthorID),
		Username:  msg.AuthorName,
		Body:      msg.Body,
		Timestamp: msg.At.Format(time.RFC3339Nano),
	}
}

// encodeEvent turns a domain event into its wire frame. Events the
// transport does not expose encode to nil and are skipped.
func encodeEvent(e event.DomainEvent) ([]byte, error) {
	var f frame
	switch evt := e.(type) {
	case event.MessagePosted:
		f = frame{Type: "message", Message: toMessagePayload(evt.Message)}
	case event.ParticipantJoined:
		f = frame{Type: "joined", RoomID: int64(evt.Room),
			UserID: int64(evt.UserID), Username: evt.Username}
	case event.ParticipantLeft:
		f = frame{Type: "left", RoomID: int64(evt.Room),
			UserID: int64(evt.UserID), Username: evt.Username}
	default:
		return nil, nil
	}
	return json.Marshal(f)
}

func encodeError(roomID int64, err error) []byte {
	buf, marshalErr := json.Marshal(frame{
		Type:   "error",
		RoomID: roomID,
		Code:   codeFor(err),
		Reason: err.Error(),
	})
	if marshalErr != nil {
		return nil
	}
	return buf
}

func codeFor(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrNotAuthorized):
		return "not_authorized"
	case stderrors.Is(err, errors.ErrNotInRoom):
		return "not_in_room"
	case stderrors.Is(err, errors.ErrEmptyMessage):
		return "empty_message"
	case stderrors.Is(err, errors.ErrPersistenceFailed):
		return "persistence_failed"
	case stderrors.Is(err, errors.ErrChatNotFound):
		return "chat_not_found"
	default:
		return "internal"
	}
}
