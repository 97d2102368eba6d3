package domain

type RoomID int64

// Chat is a named room with a fixed recipient set.
// The recipient set is the authorization boundary: only recipients may
// join the room or read its messages. Chats are created by the data
// surface, never by the realtime engine.
type Chat struct {
	ID         RoomID
	Name       string
	Recipients []UserID
	CreatorID  UserID
	CreatedAt  int64 // unix seconds
}

// HasRecipient reports whether the user belongs to the chat.
func (c Chat) HasRecipient(id UserID) bool {
	for _, r := range c.Recipients {
		if r == id {
			return true
		}
	}
	return false
}
