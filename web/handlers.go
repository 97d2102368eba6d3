// Package web is the HTTP companion surface: account management, the
// chat catalogue, history reads, and a plain request/response send path.
// Realtime delivery lives on the WebSocket transport; everything here is
// stateless JSON over net/http.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"chat-hub/auth"
	"chat-hub/domain"
	"chat-hub/errors"
	"chat-hub/services"

	"github.com/samber/lo"
)

type Server struct {
	log   *slog.Logger
	auths services.IAuthService
	chats services.IChatService
}

func NewServer(log *slog.Logger, auths services.IAuthService, chats services.IChatService) *Server {
	return &Server{log: log, auths: auths, chats: chats}
}

// Routes assembles the full surface. Register and login are public;
// every other route, the realtime upgrade included, runs behind the
// token middleware.
func (s *Server) Routes(tokens *auth.TokenManager, realtime http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /login", s.handleLogin)

	protect := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(tokens, h)
	}
	mux.Handle("GET /chats", protect(s.handleListChats))
	mux.Handle("POST /create_chat", protect(s.handleCreateChat))
	mux.Handle("GET /chat/{id}", protect(s.handleChatHistory))
	mux.Handle("POST /send_message", protect(s.handleSendMessage))
	mux.Handle("GET /search_users", protect(s.handleSearchUsers))
	mux.Handle("DELETE /chat/{id}", protect(s.handleDeleteChat))
	mux.Handle("GET /ws", auth.Middleware(tokens, realtime))

	return mux
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}

	token, user, err := s.auths.Register(req.Username, req.Password)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	ok(w, payload{
		"token":    string(token),
		"user_id":  int64(user.ID),
		"username": user.Username,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}

	token, user, err := s.auths.Login(req.Username, req.Password)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	ok(w, payload{
		"token":    string(token),
		"user_id":  int64(user.ID),
		"username": user.Username,
	})
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	summaries, err := s.chats.ListChats(user)
	if err != nil {
		fail(w, s.log, err)
		return
	}

	rows := lo.Map(summaries, func(c services.ChatSummary, _ int) payload {
		row := payload{"id": int64(c.ID), "name": c.Name}
		if c.Latest != nil {
			row["latest_message"] = payload{
				"id":        c.Latest.Seq,
				"username":  c.Latest.Username,
				"message":   c.Latest.Body,
				"timestamp": c.Latest.At.Format(time.RFC3339Nano),
			}
		} else {
			row["latest_message"] = payload{"message": "No messages yet", "username": ""}
		}
		return row
	})
	ok(w, payload{"chats": rows})
}

type createChatRequest struct {
	Name       string  `json:"name"`
	Recipients []int64 `json:"recipients"`
	Message    string  `json:"message"`
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req createChatRequest
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}

	recipients := lo.Map(req.Recipients, func(id int64, _ int) domain.UserID {
		return domain.UserID(id)
	})
	chat, err := s.chats.CreateChat(r.Context(), user, req.Name, recipients, req.Message)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	ok(w, payload{"chat_id": int64(chat.ID)})
}

// handleChatHistory reads a chat either forward from ?since=<seq> or,
// without the parameter, as the newest page with a ?cursor= for the next
// one.
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	chatID, err := pathID(r)
	if err != nil {
		fail(w, s.log, err)
		return
	}

	if since := r.URL.Query().Get("since"); since != "" {
		seq, err := strconv.ParseUint(since, 10, 64)
		if err != nil {
			fail(w, s.log, errors.ErrBadRequest)
			return
		}
		messages, err := s.chats.History(user, chatID, seq)
		if err != nil {
			fail(w, s.log, err)
			return
		}
		ok(w, payload{"messages": messageRows(messages)})
		return
	}

	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}
	messages, next, err := s.chats.Recent(user, chatID, cursor)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	body := payload{"messages": messageRows(messages)}
	if next != nil {
		body["cursor"] = *next
	}
	ok(w, body)
}

type sendMessageRequest struct {
	ChatID  int64  `json:"chat_id"`
	Message string `json:"message"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req sendMessageRequest
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}

	msg, err := s.chats.Post(r.Context(), user, domain.RoomID(req.ChatID), req.Message)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	ok(w, payload{"message_id": msg.Seq})
}

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	query := r.URL.Query().Get("q")
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}

	users, err := s.chats.SearchUsers(r.Context(), user, query, limit)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	rows := lo.Map(users, func(u domain.User, _ int) payload {
		return payload{"id": int64(u.ID), "username": u.Username}
	})
	ok(w, payload{"users": rows})
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	chatID, err := pathID(r)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	if err := s.chats.Delete(user, chatID); err != nil {
		fail(w, s.log, err)
		return
	}
	ok(w, nil)
}

func decode(r *http.Request, dst any) error {
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.ErrBadRequest
	}
	return nil
}

func pathID(r *http.Request) (domain.RoomID, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, errors.ErrBadRequest
	}
	return domain.RoomID(id), nil
}

func messageRows(messages []domain.Message) []payload {
	return lo.Map(messages, func(m domain.Message, _ int) payload {
		return payload{
			"id":        m.Seq,
			"chat_id":   int64(m.Room),
			"user_id":   int64(m.AuthorID),
			"username":  m.AuthorName,
			"message":   m.Body,
			"timestamp": m.At.Format(time.RFC3339Nano),
		}
	})
}
