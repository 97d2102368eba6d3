package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"chat-hub/domain"
)

type contextKey string

const userKey contextKey = "user"

// WithUser injects the resolved identity into the request context.
func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext extracts the identity placed there by Middleware.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userKey).(domain.User)
	return user, ok
}

// Middleware resolves the session token on every request and rejects
// anonymous callers before the handler runs. The token travels either as
// "Authorization: Bearer <token>" or, for WebSocket upgrades where
// browsers cannot set headers, as the "token" query parameter.
func Middleware(tokens *TokenManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			unauthorized(w, "authorization token is missing")
			return
		}

		user, err := tokens.Validate(tokenStr)
		if err != nil {
			unauthorized(w, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": reason,
	})
}
