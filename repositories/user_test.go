package repositories

import (
	"context"
	"log/slog"
	"testing"

	"chat-hub/domain"
	"chat-hub/errors"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func Test_Create_And_Lookup_User(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t), openTestIndex(t), slog.Default())

	user, err := repo.Create("alice", "hash-of-secret")
	req.NoError(err)
	req.NotZero(user.ID)
	req.Equal("alice", user.Username)

	record, err := repo.ByUsername("alice")
	req.NoError(err)
	req.Equal(user.ID, record.ID)
	req.Equal("hash-of-secret", record.PasswordHash)

	resolved, err := repo.ByID(user.ID)
	req.NoError(err)
	req.Equal("alice", resolved.Username)
}

func Test_Create_Rejects_Duplicate_Username(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t), openTestIndex(t), slog.Default())

	_, err := repo.Create("alice", "hash")
	req.NoError(err)

	_, err = repo.Create("alice", "other-hash")
	req.ErrorIs(err, errors.ErrUserExists)
}

func Test_Lookup_Unknown_User(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t), openTestIndex(t), slog.Default())

	_, err := repo.ByUsername("nobody")
	req.ErrorIs(err, errors.ErrUserNotFound)

	_, err = repo.ByID(12345678)
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func Test_Usernames_Skips_Unknown_Ids(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t), openTestIndex(t), slog.Default())

	alice, err := repo.Create("alice", "hash")
	req.NoError(err)
	bob, err := repo.Create("bob", "hash")
	req.NoError(err)

	names, err := repo.Usernames([]domain.UserID{alice.ID, 99999999, bob.ID})
	req.NoError(err)
	req.Len(names, 2)
	req.Equal("alice", names[alice.ID])
	req.Equal("bob", names[bob.ID])
}

func Test_SearchPrefix_Finds_Users_Case_Insensitive(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t), openTestIndex(t), slog.Default())
	ctx := context.Background()

	alice, err := repo.Create("Alice", "hash")
	req.NoError(err)
	albert, err := repo.Create("albert", "hash")
	req.NoError(err)
	_, err = repo.Create("bob", "hash")
	req.NoError(err)

	found, err := repo.SearchPrefix(ctx, "AL", 0, 10)
	req.NoError(err)

	ids := lo.Map(found, func(u domain.User, _ int) domain.UserID { return u.ID })
	req.ElementsMatch([]domain.UserID{alice.ID, albert.ID}, ids)
}

func Test_SearchPrefix_Excludes_The_Requester(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t), openTestIndex(t), slog.Default())
	ctx := context.Background()

	alice, err := repo.Create("alice", "hash")
	req.NoError(err)
	albert, err := repo.Create("albert", "hash")
	req.NoError(err)

	found, err := repo.SearchPrefix(ctx, "al", alice.ID, 10)
	req.NoError(err)
	req.Len(found, 1)
	req.Equal(albert.ID, found[0].ID)
}

func Test_SearchPrefix_Empty_Query_Returns_Nothing(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t), openTestIndex(t), slog.Default())

	_, err := repo.Create("alice", "hash")
	req.NoError(err)

	found, err := repo.SearchPrefix(context.Background(), "   ", 0, 10)
	req.NoError(err)
	req.Empty(found)
}
