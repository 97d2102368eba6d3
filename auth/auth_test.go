package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chat-hub/domain"
	"chat-hub/errors"

	"github.com/stretchr/testify/require"
)

func Test_HashPassword_And_Compare(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("correct horse battery staple")
	req.NoError(err)
	req.NotEqual("correct horse battery staple", hash)

	match, err := ComparePassword("correct horse battery staple", hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("wrong password", hash)
	req.NoError(err)
	req.False(match)
}

func Test_HashPassword_Salts_Differ(t *testing.T) {
	req := require.New(t)

	first, err := HashPassword("same password")
	req.NoError(err)
	second, err := HashPassword("same password")
	req.NoError(err)
	req.NotEqual(first, second)
}

func Test_Token_Roundtrip(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager("test-secret", time.Hour)
	user := domain.User{ID: 10000001, Username: "alice"}

	token, err := tokens.Generate(user)
	req.NoError(err)

	resolved, err := tokens.Validate(token)
	req.NoError(err)
	req.Equal(user, resolved)
}

func Test_Token_Rejects_Wrong_Secret(t *testing.T) {
	req := require.New(t)
	user := domain.User{ID: 10000001, Username: "alice"}

	token, err := NewTokenManager("secret-a", time.Hour).Generate(user)
	req.NoError(err)

	_, err = NewTokenManager("secret-b", time.Hour).Validate(token)
	req.Error(err)
}

func Test_Token_Rejects_Expired(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager("test-secret", -time.Minute)

	token, err := tokens.Generate(domain.User{ID: 10000001, Username: "alice"})
	req.NoError(err)

	_, err = tokens.Validate(token)
	req.Error(err)
}

func Test_ValidateRegister(t *testing.T) {
	req := require.New(t)

	req.NoError(ValidateRegister(RegisterRequest{Username: "alice", Password: "long enough"}))

	err := ValidateRegister(RegisterRequest{Username: "al", Password: "long enough"})
	req.ErrorIs(err, errors.ErrInvalidRegister)

	err = ValidateRegister(RegisterRequest{Username: "alice", Password: "short"})
	req.ErrorIs(err, errors.ErrInvalidRegister)

	err = ValidateRegister(RegisterRequest{})
	req.ErrorIs(err, errors.ErrInvalidRegister)
}

func Test_Middleware_Resolves_Identity(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager("test-secret", time.Hour)
	user := domain.User{ID: 10000001, Username: "alice"}
	token, err := tokens.Generate(user)
	req.NoError(err)

	var seen domain.User
	handler := Middleware(tokens, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
	}))

	// Header transport
	rec := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/chats", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, request)
	req.Equal(http.StatusOK, rec.Code)
	req.Equal(user, seen)

	// Query parameter transport, used by the WebSocket upgrade
	seen = domain.User{}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
	req.Equal(http.StatusOK, rec.Code)
	req.Equal(user, seen)
}

func Test_Middleware_Rejects_Anonymous_And_Garbage(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager("test-secret", time.Hour)
	handler := Middleware(tokens, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chats", nil))
	req.Equal(http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/chats", nil)
	request.Header.Set("Authorization", "Bearer not-a-token")
	handler.ServeHTTP(rec, request)
	req.Equal(http.StatusUnauthorized, rec.Code)
}
