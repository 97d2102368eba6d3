package ws

import (
	"log/slog"
	"net/http"

	"chat-hub/auth"
	"chat-hub/errors"
	"chat-hub/runtime"

	"github.com/gorilla/websocket"
)

// Handler upgrades an authenticated HTTP request into a realtime
// session. Identity resolution happens in the auth middleware before the
// upgrade; a request that reaches ServeHTTP without an identity is
// rejected, so no anonymous connection ever enters the registry.
type Handler struct {
	log        *slog.Logger
	engine     *runtime.Engine
	upgrader   websocket.Upgrader
	bufferSize int
}

func NewHandler(log *slog.Logger, engine *runtime.Engine, bufferSize int) *Handler {
	return &Handler{
		log:    log,
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The browser client is served from arbitrary origins,
			// mirroring the permissive CORS of the HTTP surface.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		bufferSize: bufferSize,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Error(w, errors.ErrAuthFailed.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, user, h.engine, h.log, h.bufferSize)
	h.log.Info("connection established",
		"conn_id", client.ID(), "user_id", user.ID, "username", user.Username)

	go client.writePump()
	client.readPump(r.Context())
}
