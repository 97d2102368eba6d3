//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"chat-hub/domain"
	"chat-hub/errors"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
)

type IUserRepository interface {
	Create(username, passwordHash string) (domain.User, error)
	ByUsername(username string) (UserRecord, error)
	ByID(id domain.UserID) (domain.User, error)
	Usernames(ids []domain.UserID) (map[domain.UserID]string, error)
	SearchPrefix(ctx context.Context, prefix string, excluding domain.UserID, limit int) ([]domain.User, error)
}

// UserRecord is the full account row; only the repository and the auth
// service ever see the password hash.
type UserRecord struct {
	ID           domain.UserID `json:"id"`
	Username     string        `json:"username"`
	PasswordHash string        `json:"password_hash"`
	CreatedAt    int64         `json:"created_at"`
}

// UserRepository persists accounts in BadgerDB and mirrors usernames
// into a Bluge index for prefix search. Badger is the source of truth;
// the index only answers "who starts with q".
type UserRepository struct {
	db    *badger.DB
	index *bluge.Writer
	log   *slog.Logger
}

func NewUserRepository(db *badger.DB, index *bluge.Writer, log *slog.Logger) *UserRepository {
	return &UserRepository{db: db, index: index, log: log}
}

// Create persists a new account under a random 8-digit id, retrying on
// the unlikely collision, and indexes the username for search.
func (u *UserRepository) Create(username, passwordHash string) (domain.User, error) {
	record := UserRecord{
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC().Unix(),
	}

	err := u.db.Update(func(txn *badger.Txn) error {
		nameKey := []byte("user:name:" + username)
		if _, err := txn.Get(nameKey); err == nil {
			return errors.ErrUserExists
		}

		id, err := freeID(txn, "user:id:")
		if err != nil {
			return err
		}
		record.ID = domain.UserID(id)

		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err := txn.Set(nameKey, data); err != nil {
			return err
		}
		return txn.Set(idKey("user:id:", id), []byte(username))
	})
	if err != nil {
		return domain.User{}, err
	}

	if err := u.indexUsername(record.ID, username); err != nil {
		// The account exists; a stale index only degrades search.
		u.log.Warn("failed to index username", "user_id", record.ID, "error", err)
	}
	return domain.User{ID: record.ID, Username: record.Username}, nil
}

func (u *UserRepository) ByUsername(username string) (UserRecord, error) {
	var record UserRecord
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("user:name:" + username))
		if err != nil {
			return errors.ErrUserNotFound
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return UserRecord{}, err
	}
	return record, nil
}

func (u *UserRepository) ByID(id domain.UserID) (domain.User, error) {
	var username string
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey("user:id:", int64(id)))
		if err != nil {
			return errors.ErrUserNotFound
		}
		return item.Value(func(val []byte) error {
			username = string(val)
			return nil
		})
	})
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: id, Username: username}, nil
}

// Usernames resolves a batch of ids in one read transaction. Unknown ids
// are skipped, not errors: a chat may reference a deleted account.
func (u *UserRepository) Usernames(ids []domain.UserID) (map[domain.UserID]string, error) {
	names := make(map[domain.UserID]string, len(ids))
	err := u.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(idKey("user:id:", int64(id)))
			if err != nil {
				continue
			}
			err = item.Value(func(val []byte) error {
				names[id] = string(val)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// SearchPrefix answers the user-search box: usernames starting with the
// given prefix, case-insensitive, excluding the requesting user.
func (u *UserRepository) SearchPrefix(ctx context.Context, prefix string,
	excluding domain.UserID, limit int) ([]domain.User, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" || u.index == nil {
		return nil, nil
	}

	reader, err := u.index.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	query := bluge.NewPrefixQuery(prefix).SetField("username")
	// One extra hit absorbs the excluded requester.
	request := bluge.NewTopNSearch(limit+1, query)

	iter, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var users []domain.User
	for {
		match, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if match == nil || len(users) == limit {
			break
		}
		var id int64
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				id, _ = strconv.ParseInt(string(value), 10, 64)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		if id == 0 || domain.UserID(id) == excluding {
			continue
		}
		user, err := u.ByID(domain.UserID(id))
		if err != nil {
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

func (u *UserRepository) indexUsername(id domain.UserID, username string) error {
	if u.index == nil {
		return nil
	}
	doc := bluge.NewDocument(strconv.FormatInt(int64(id), 10))
	doc.AddField(bluge.NewTextField("username", strings.ToLower(username)))
	return u.index.Update(doc.ID(), doc)
}

// freeID draws random 8-digit identifiers until one is unused, matching
// the id scheme of the existing data set.
func freeID(txn *badger.Txn, keyPrefix string) (int64, error) {
	for i := 0; i < 100; i++ {
		id := 10000000 + rand.Int64N(90000000)
		if _, err := txn.Get(idKey(keyPrefix, id)); err == badger.ErrKeyNotFound {
			return id, nil
		}
	}
	return 0, fmt.Errorf("could not allocate a free id under %q", keyPrefix)
}

func idKey(prefix string, id int64) []byte {
	return []byte(prefix + strconv.FormatInt(id, 10))
}
