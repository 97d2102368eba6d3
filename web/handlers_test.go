package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-hub/auth"
	"chat-hub/repositories"
	"chat-hub/runtime"
	"chat-hub/runtime/workers"
	"chat-hub/services"
	"chat-hub/transport/ws"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// startServer boots the full surface on a test listener: real storage,
// real engine, real websocket transport.
func startServer(t *testing.T) *httptest.Server {
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

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = workers.NewPresenceFanout(log, registry, engine.Events()).Run(ctx)
	}()

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	authService := services.NewAuthService(users, tokens)
	chatService := services.NewChatService(engine, chats, messages, users)

	server := NewServer(log, authService, chatService)
	wsHandler := ws.NewHandler(log, engine, 64)

	ts := httptest.NewServer(server.Routes(tokens, wsHandler))
	t.Cleanup(ts.Close)
	return ts
}

type apiClient struct {
	t     *testing.T
	base  string
	token string
}

func (c *apiClient) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var parsed map[string]any
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp.StatusCode, parsed
}

func signUp(t *testing.T, ts *httptest.Server, name string) *apiClient {
	t.Helper()
	client := &apiClient{t: t, base: ts.URL}
	status, body := client.do(http.MethodPost, "/register",
		map[string]string{"username": name, "password": "a long password"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
	client.token = body["token"].(string)
	return client
}

func Test_Register_Login_Roundtrip(t *testing.T) {
	req := require.New(t)
	ts := startServer(t)
	client := &apiClient{t: t, base: ts.URL}

	status, body := client.do(http.MethodPost, "/register",
		map[string]string{"username": "alice", "password": "a long password"})
	req.Equal(http.StatusOK, status)
	req.Equal(true, body["success"])
	req.NotEmpty(body["token"])
	req.Equal("alice", body["username"])

	status, body = client.do(http.MethodPost, "/login",
		map[string]string{"username": "alice", "password": "a long password"})
	req.Equal(http.StatusOK, status)
	req.Equal(true, body["success"])

	status, body = client.do(http.MethodPost, "/login",
		map[string]string{"username": "alice", "password": "wrong"})
	req.Equal(http.StatusUnauthorized, status)
	req.Equal(false, body["success"])
	req.NotEmpty(body["message"])
}

func Test_Protected_Routes_Require_A_Token(t *testing.T) {
	req := require.New(t)
	ts := startServer(t)
	client := &apiClient{t: t, base: ts.URL}

	status, body := client.do(http.MethodGet, "/chats", nil)
	req.Equal(http.StatusUnauthorized, status)
	req.Equal(false, body["success"])
}

func Test_Chat_Lifecycle_Over_HTTP(t *testing.T) {
	req := require.New(t)
	ts := startServer(t)

	alice := signUp(t, ts, "alice")
	bob := signUp(t, ts, "bob")

	// Bob finds Alice via search
	status, body := bob.do(http.MethodGet, "/search_users?q=ali", nil)
	req.Equal(http.StatusOK, status)
	users := body["users"].([]any)
	req.Len(users, 1)
	aliceID := int64(users[0].(map[string]any)["id"].(float64))

	// Bob opens an unnamed chat with an opening message
	status, body = bob.do(http.MethodPost, "/create_chat", map[string]any{
		"recipients": []int64{aliceID},
		"message":    "hey alice",
	})
	req.Equal(http.StatusOK, status)
	chatID := int64(body["chat_id"].(float64))
	req.NotZero(chatID)

	// Alice sees the chat named after Bob, with the latest message
	status, body = alice.do(http.MethodGet, "/chats", nil)
	req.Equal(http.StatusOK, status)
	chats := body["chats"].([]any)
	req.Len(chats, 1)
	row := chats[0].(map[string]any)
	req.Equal("bob", row["name"])
	latest := row["latest_message"].(map[string]any)
	req.Equal("hey alice", latest["message"])

	// Alice replies over the request/response path
	status, body = alice.do(http.MethodPost, "/send_message", map[string]any{
		"chat_id": chatID,
		"message": "hey bob",
	})
	req.Equal(http.StatusOK, status)
	req.NotZero(body["message_id"])

	// Replay returns both messages in order
	status, body = bob.do(http.MethodGet, fmt.Sprintf("/chat/%d?since=0", chatID), nil)
	req.Equal(http.StatusOK, status)
	messages := body["messages"].([]any)
	req.Len(messages, 2)
	req.Equal("hey alice", messages[0].(map[string]any)["message"])
	req.Equal("hey bob", messages[1].(map[string]any)["message"])

	// A third party cannot read it
	mallory := signUp(t, ts, "mallory")
	status, _ = mallory.do(http.MethodGet, fmt.Sprintf("/chat/%d?since=0", chatID), nil)
	req.Equal(http.StatusForbidden, status)

	// Only the creator deletes it
	status, _ = alice.do(http.MethodDelete, fmt.Sprintf("/chat/%d", chatID), nil)
	req.Equal(http.StatusForbidden, status)
	status, body = bob.do(http.MethodDelete, fmt.Sprintf("/chat/%d", chatID), nil)
	req.Equal(http.StatusOK, status)
	req.Equal(true, body["success"])
}

func Test_Send_Message_Validation(t *testing.T) {
	req := require.New(t)
	ts := startServer(t)
	alice := signUp(t, ts, "alice")

	status, body := alice.do(http.MethodPost, "/create_chat", map[string]any{"name": "solo"})
	req.Equal(http.StatusOK, status)
	chatID := int64(body["chat_id"].(float64))

	status, body = alice.do(http.MethodPost, "/send_message", map[string]any{
		"chat_id": chatID,
		"message": "   ",
	})
	req.Equal(http.StatusBadRequest, status)
	req.Equal(false, body["success"])

	status, _ = alice.do(http.MethodPost, "/send_message", map[string]any{
		"chat_id": 99999999,
		"message": "hello?",
	})
	req.Equal(http.StatusNotFound, status)
}

func dialWS(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

// readUntil skips frames of other types; presence and message delivery
// are asynchronous relative to each other.
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		frame := readFrame(t, conn)
		if frame["type"] == frameType {
			return frame
		}
	}
	t.Fatalf("no %q frame received", frameType)
	return nil
}

func Test_Realtime_Delivery_Between_Two_Clients(t *testing.T) {
	req := require.New(t)
	ts := startServer(t)

	alice := signUp(t, ts, "alice")
	bob := signUp(t, ts, "bob")

	status, body := alice.do(http.MethodGet, "/search_users?q=bob", nil)
	req.Equal(http.StatusOK, status)
	bobID := int64(body["users"].([]any)[0].(map[string]any)["id"].(float64))

	status, body = alice.do(http.MethodPost, "/create_chat", map[string]any{
		"recipients": []int64{bobID},
	})
	req.Equal(http.StatusOK, status)
	chatID := int64(body["chat_id"].(float64))

	aliceWS := dialWS(t, ts, alice.token)
	bobWS := dialWS(t, ts, bob.token)

	join := func(conn *websocket.Conn) {
		frame, err := json.Marshal(map[string]any{"type": "join", "room_id": chatID})
		req.NoError(err)
		req.NoError(conn.WriteMessage(websocket.TextMessage, frame))
	}
	join(aliceWS)
	join(bobWS)

	// Alice observes Bob's join announcement (skipping her own)
	for {
		joined := readUntil(t, aliceWS, "joined")
		if joined["username"] == "bob" {
			break
		}
	}

	send, err := json.Marshal(map[string]any{
		"type": "send", "room_id": chatID, "body": "hello over the wire",
	})
	req.NoError(err)
	req.NoError(aliceWS.WriteMessage(websocket.TextMessage, send))

	for _, conn := range []*websocket.Conn{aliceWS, bobWS} {
		frame := readUntil(t, conn, "message")
		msg := frame["message"].(map[string]any)
		req.Equal("hello over the wire", msg["message"])
		req.Equal("alice", msg["username"])
		req.NotZero(msg["id"])
	}
}

func Test_Realtime_Join_Is_Authorized(t *testing.T) {
	req := require.New(t)
	ts := startServer(t)

	alice := signUp(t, ts, "alice")
	mallory := signUp(t, ts, "mallory")

	status, body := alice.do(http.MethodPost, "/create_chat", map[string]any{"name": "private"})
	req.Equal(http.StatusOK, status)
	chatID := int64(body["chat_id"].(float64))

	malloryWS := dialWS(t, ts, mallory.token)
	frame, err := json.Marshal(map[string]any{"type": "join", "room_id": chatID})
	req.NoError(err)
	req.NoError(malloryWS.WriteMessage(websocket.TextMessage, frame))

	reply := readFrame(t, malloryWS)
	req.Equal("error", reply["type"])
	req.Equal("not_authorized", reply["code"])
}

func Test_WS_Upgrade_Requires_A_Token(t *testing.T) {
	req := require.New(t)
	ts := startServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	req.Error(err)
	req.NotNil(resp)
	defer resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}
