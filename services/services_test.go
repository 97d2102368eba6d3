package services

import (
	"log/slog"
	"testing"
	"time"

	"chat-hub/auth"
	"chat-hub/repositories"
	"chat-hub/runtime"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

// fixture wires real repositories on a throwaway store, the way the
// server composes them.
type fixture struct {
	auths *AuthService
	chats *ChatService
	users repositories.IUserRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	index, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	log := slog.Default()
	users := repositories.NewUserRepository(db, index, log)
	chats := repositories.NewChatRepository(db)
	messages := repositories.NewMessageRepository(db, log, nil)
	t.Cleanup(func() { _ = messages.Close() })

	registry := runtime.NewRegistry()
	engine := runtime.NewEngine(log, registry, messages, chats, nil, 64)

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	return &fixture{
		auths: NewAuthService(users, tokens),
		chats: NewChatService(engine, chats, messages, users),
		users: users,
	}
}
