package repositories

import (
	"encoding/json"
	"testing"
	"time"

	"chat-hub/domain"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func openTestIndex(t *testing.T) *bluge.Writer {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return writer
}

// forceCreatedAt backdates a stored chat so ordering tests do not depend
// on the clock.
func forceCreatedAt(t *testing.T, db *badger.DB, id domain.RoomID, at time.Time) {
	t.Helper()
	err := db.Update(func(txn *badger.Txn) error {
		key := idKey("chat:", int64(id))
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		var disk diskChat
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		}); err != nil {
			return err
		}
		disk.CreatedAt = at.UTC().Unix()
		data, err := json.Marshal(disk)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	require.NoError(t, err)
}
