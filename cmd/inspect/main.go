// Command inspect dumps the store contents as a table for debugging.
// It opens BadgerDB read-only, so it can run next to a live server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"chat-hub/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, chat:, user:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			// Sequence counters are raw uint64s, not JSON rows
			if strings.HasPrefix(key, "seq:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				table.Append(describe(key, v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// describe picks the decoder by key prefix; undecodable values fall back
// to a raw dump so one corrupt row never hides the rest.
func describe(key string, value []byte) []string {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var m struct {
			Seq        uint64        `json:"seq"`
			Room       domain.RoomID `json:"room"`
			AuthorID   domain.UserID `json:"author_id"`
			AuthorName string        `json:"author_name"`
			Body       string        `json:"body"`
			At         int64         `json:"at"`
		}
		if err := json.Unmarshal(value, &m); err == nil {
			return []string{
				key, "MESSAGE",
				time.Unix(0, m.At).UTC().Format("15:04:05"),
				fmt.Sprintf("%d/%d", m.Room, m.Seq),
				fmt.Sprintf("%s: %s", m.AuthorName, m.Body),
			}
		}
	case strings.HasPrefix(key, "chat:"):
		var c struct {
			ID         domain.RoomID   `json:"id"`
			Name       string          `json:"name"`
			Recipients []domain.UserID `json:"recipients"`
			CreatedAt  int64           `json:"created_at"`
		}
		if err := json.Unmarshal(value, &c); err == nil {
			return []string{
				key, "CHAT",
				time.Unix(c.CreatedAt, 0).UTC().Format("2006-01-02 15:04"),
				fmt.Sprintf("%d", c.ID),
				fmt.Sprintf("%q recipients=%v", c.Name, c.Recipients),
			}
		}
	case strings.HasPrefix(key, "user:name:"):
		var u struct {
			ID        domain.UserID `json:"id"`
			Username  string        `json:"username"`
			CreatedAt int64         `json:"created_at"`
		}
		if err := json.Unmarshal(value, &u); err == nil {
			return []string{
				key, "USER",
				time.Unix(u.CreatedAt, 0).UTC().Format("2006-01-02 15:04"),
				fmt.Sprintf("%d", u.ID),
				u.Username,
			}
		}
	case strings.HasPrefix(key, "user:id:"):
		return []string{key, "USER_IDX", "", "", string(value)}
	}
	return []string{key, "RAW", "", "", fmt.Sprintf("%d bytes", len(value))}
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	return badger.Open(opts)
}
