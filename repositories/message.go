//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-hub/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	Append(room domain.RoomID, author domain.UserID, authorName, body string) (domain.Message, error)
	History(room domain.RoomID, sinceSeq uint64) ([]domain.Message, error)
	Recent(room domain.RoomID, cursor *string) ([]domain.Message, *string, error)
	DeleteRoom(room domain.RoomID) error
	Close() error
}

// MessageRepository is the durable append-only log, one stream per room.
// Keys are formatted as "msg:{room_id}:{seq_padded}" so that:
//  1. A prefix scan over one room returns messages in sequence order
//     (19-digit zero padding makes lexicographic order numeric order).
//  2. The sequence id doubles as the message identifier the engine hands
//     back to clients.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int

	mu   sync.Mutex
	seqs map[domain.RoomID]*badger.Sequence
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{
		db:            db,
		log:           log,
		limitMessages: limitMessages,
		seqs:          make(map[domain.RoomID]*badger.Sequence),
	}
}

type diskMessage struct {
	Seq        uint64        `json:"seq"`
	Room       domain.RoomID `json:"room"`
	AuthorID   domain.UserID `json:"author_id"`
	AuthorName string        `json:"author_name"`
	Body       string        `json:"body"`
	At         int64         `json:"at"` // unix nanoseconds, UTC
}

// Append assigns the next sequence id for the room and a server-side
// timestamp, then persists the message. Badger's per-key sequence is the
// single counter serializing concurrent appends to one room; appends to
// different rooms use different sequences and do not contend.
func (m *MessageRepository) Append(room domain.RoomID,
	author domain.UserID, authorName, body string) (domain.Message, error) {
	seq, err := m.sequence(room)
	if err != nil {
		return domain.Message{}, err
	}
	n, err := seq.Next()
	if err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		Seq:        n + 1, // sequences start at zero; ids stay non-null
		Room:       room,
		AuthorID:   author,
		AuthorName: authorName,
		Body:       body,
		At:         time.Now().UTC(),
	}

	bytes, err := json.Marshal(fromMessage(msg))
	if err != nil {
		return domain.Message{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(messageKey(room, msg.Seq)), bytes)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// History replays the room's log forward, starting after sinceSeq.
// The result is finite and restartable: a caller that stops mid-stream
// re-requests from the last sequence id it saw.
func (m *MessageRepository) History(room domain.RoomID, sinceSeq uint64) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(roomPrefix(room))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek([]byte(messageKey(room, sinceSeq+1))); it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("History capped at %d messages", *m.limitMessages))
				break
			}
			var dm diskMessage
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &dm)
			})
			if err != nil {
				return err
			}
			messages = append(messages, toMessage(dm))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Recent pages backwards from the newest message, returning an opaque
// cursor (the sequence part of the last visited key). Passing the cursor
// back continues the walk; nil starts from the tail of the log.
func (m *MessageRepository) Recent(room domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	var disk []diskMessage
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := roomPrefix(room)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the highest possible sequence, then walk back.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(disk) == *m.limitMessages {
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			var dm diskMessage
			err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &dm)
			})
			if err != nil {
				return err
			}
			disk = append(disk, dm)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return lo.Map(disk, func(dm diskMessage, _ int) domain.Message {
		return toMessage(dm)
	}), &lastKey, nil
}

// DeleteRoom erases the room's whole log. Used when a chat is deleted.
func (m *MessageRepository) DeleteRoom(room domain.RoomID) error {
	var keys [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		prefix := []byte(roomPrefix(room))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := m.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Close releases the leased sequence ranges back to the store.
func (m *MessageRepository) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for room, seq := range m.seqs {
		if err := seq.Release(); err != nil {
			m.log.Warn("failed to release sequence", "room_id", room, "error", err)
		}
	}
	m.seqs = make(map[domain.RoomID]*badger.Sequence)
	return nil
}

func (m *MessageRepository) sequence(room domain.RoomID) (*badger.Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq, ok := m.seqs[room]; ok {
		return seq, nil
	}
	seq, err := m.db.GetSequence([]byte(fmt.Sprintf("seq:msg:%d", room)), 64)
	if err != nil {
		return nil, err
	}
	m.seqs[room] = seq
	return seq, nil
}

func roomPrefix(room domain.RoomID) string {
	return fmt.Sprintf("msg:%d:", room)
}

func messageKey(room domain.RoomID, seq uint64) string {
	return fmt.Sprintf("msg:%d:%019d", room, seq)
}

func fromMessage(msg domain.Message) diskMessage {
	return diskMessage{
		Seq:        msg.Seq,
		Room:       msg.Room,
		AuthorID:   msg.AuthorID,
		AuthorName: msg.AuthorName,
		Body:       msg.Body,
		At:         msg.At.UnixNano(),
	}
}

func toMessage(dm diskMessage) domain.Message {
	return domain.Message{
		Seq:        dm.Seq,
		Room:       dm.Room,
		AuthorID:   dm.AuthorID,
		AuthorName: dm.AuthorName,
		Body:       dm.Body,
		At:         time.Unix(0, dm.At).UTC(),
	}
}
