//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"sort"
	"time"

	"chat-hub/domain"
	"chat-hub/errors"

	"github.com/dgraph-io/badger/v4"
)

type IChatRepository interface {
	Create(name string, recipients []domain.UserID, creator domain.UserID) (domain.Chat, error)
	Get(id domain.RoomID) (domain.Chat, error)
	ForUser(user domain.UserID) ([]domain.Chat, error)
	Delete(id domain.RoomID) error
}

// ChatRepository owns the room catalogue: names, recipient sets, and the
// authorization boundary the engine checks on Join. The realtime core
// never creates chats; this surface does.
type ChatRepository struct {
	db *badger.DB
}

func NewChatRepository(db *badger.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

type diskChat struct {
	ID         domain.RoomID   `json:"id"`
	Name       string          `json:"name"`
	Recipients []domain.UserID `json:"recipients"`
	CreatorID  domain.UserID   `json:"creator_id"`
	CreatedAt  int64           `json:"created_at"`
}

// Create persists a chat under a random 8-digit id. The creator is always
// part of the recipient set, whether or not the caller listed them.
func (c *ChatRepository) Create(name string, recipients []domain.UserID,
	creator domain.UserID) (domain.Chat, error) {
	members := dedupe(append([]domain.UserID{creator}, recipients...))

	chat := diskChat{
		Name:       name,
		Recipients: members,
		CreatorID:  creator,
		CreatedAt:  time.Now().UTC().Unix(),
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		id, err := freeID(txn, "chat:")
		if err != nil {
			return err
		}
		chat.ID = domain.RoomID(id)
		data, err := json.Marshal(chat)
		if err != nil {
			return err
		}
		return txn.Set(idKey("chat:", id), data)
	})
	if err != nil {
		return domain.Chat{}, err
	}
	return toChat(chat), nil
}

func (c *ChatRepository) Get(id domain.RoomID) (domain.Chat, error) {
	var disk diskChat
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey("chat:", int64(id)))
		if err != nil {
			return errors.ErrChatNotFound
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
	})
	if err != nil {
		return domain.Chat{}, err
	}
	return toChat(disk), nil
}

// ForUser scans the catalogue for chats whose recipient set contains the
// user, newest first. The catalogue is small; a prefix scan is fine.
func (c *ChatRepository) ForUser(user domain.UserID) ([]domain.Chat, error) {
	var chats []domain.Chat
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("chat:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk diskChat
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &disk)
			})
			if err != nil {
				return err
			}
			chat := toChat(disk)
			if chat.HasRecipient(user) {
				chats = append(chats, chat)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].CreatedAt > chats[j].CreatedAt
	})
	return chats, nil
}

func (c *ChatRepository) Delete(id domain.RoomID) error {
	return c.db.Update(func(txn *badger.Txn) error {
		key := idKey("chat:", int64(id))
		if _, err := txn.Get(key); err != nil {
			return errors.ErrChatNotFound
		}
		return txn.Delete(key)
	})
}

func toChat(disk diskChat) domain.Chat {
	return domain.Chat{
		ID:         disk.ID,
		Name:       disk.Name,
		Recipients: disk.Recipients,
		CreatorID:  disk.CreatorID,
		CreatedAt:  disk.CreatedAt,
	}
}

func dedupe(ids []domain.UserID) []domain.UserID {
	seen := make(map[domain.UserID]struct{}, len(ids))
	out := make([]domain.UserID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
