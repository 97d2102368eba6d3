// Command client is a terminal chat client. It authenticates over HTTP,
// lists the user's chats, then joins one over the WebSocket transport and
// mirrors the room into a local timeline.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"chat-hub/domain"
	"chat-hub/projection"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/olekukonko/tablewriter"
)

func main() {
	username := flag.String("user", "", "Username")
	password := flag.String("pass", "", "Password")
	register := flag.Bool("register", false, "Create the account instead of logging in")
	chatID := flag.Int64("chat", 0, "Chat id to join (0 lists chats and exits)")
	flag.Parse()

	config, err := LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if *username == "" || *password == "" {
		log.Fatal("Both -user and -pass are required")
	}

	session, err := authenticate(config, *username, *password, *register)
	if err != nil {
		log.Fatalf("Authentication failed: %v", err)
	}

	if *chatID == 0 {
		if err := listChats(config, session); err != nil {
			log.Fatalf("Listing chats failed: %v", err)
		}
		return
	}

	if err := joinChat(config, session, domain.RoomID(*chatID)); err != nil {
		log.Fatalf("Chat session ended with error: %v", err)
	}
}

type session struct {
	Token    string
	UserID   int64
	Username string
}

func authenticate(config Config, username, password string, register bool) (session, error) {
	path := "/login"
	if register {
		path = "/register"
	}

	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(config.ServerURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return session{}, err
	}
	defer resp.Body.Close()

	var parsed struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		Token    string `json:"token"`
		UserID   int64  `json:"user_id"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return session{}, err
	}
	if !parsed.Success {
		return session{}, fmt.Errorf("%s", parsed.Message)
	}
	return session{Token: parsed.Token, UserID: parsed.UserID, Username: parsed.Username}, nil
}

func listChats(config Config, s session) error {
	var parsed struct {
		Chats []struct {
			ID            int64  `json:"id"`
			Name          string `json:"name"`
			LatestMessage struct {
				Username string `json:"username"`
				Message  string `json:"message"`
			} `json:"latest_message"`
		} `json:"chats"`
	}
	if err := get(config, s, "/chats", &parsed); err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Name", "Latest"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, chat := range parsed.Chats {
		latest := chat.LatestMessage.Message
		if chat.LatestMessage.Username != "" {
			latest = fmt.Sprintf("%s: %s", chat.LatestMessage.Username, latest)
		}
		table.Append([]string{fmt.Sprintf("%d", chat.ID), chat.Name, latest})
	}
	table.Render()
	fmt.Println("\nRun again with -chat <id> to join one.")
	return nil
}

// joinChat replays history into the timeline, then merges the live
// stream on top of it. Deduplication by sequence id makes the overlap
// between replay and live delivery harmless.
func joinChat(config Config, s session, chatID domain.RoomID) error {
	timeline := projection.NewTimeline()

	var history struct {
		Messages []wireMessage `json:"messages"`
	}
	if err := get(config, s, fmt.Sprintf("/chat/%d?since=0", chatID), &history); err != nil {
		return err
	}
	for _, m := range history.Messages {
		timeline.Add(m.toDomain())
	}
	for _, msg := range timeline.Messages(chatID) {
		printMessage(config, s, msg)
	}

	conn, err := dial(config, s)
	if err != nil {
		return err
	}
	defer conn.Close()

	join, _ := json.Marshal(map[string]any{"type": "join", "room_id": int64(chatID)})
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- readLoop(config, s, conn, chatID, timeline) }()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if text == "/quit" {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			frame, _ := json.Marshal(map[string]any{
				"type": "send", "room_id": int64(chatID), "body": text,
			})
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}()

	return <-done
}

func readLoop(config Config, s session, conn *websocket.Conn,
	chatID domain.RoomID, timeline *projection.Timeline) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}

		var frame struct {
			Type     string       `json:"type"`
			Message  *wireMessage `json:"message"`
			Username string       `json:"username"`
			Reason   string       `json:"reason"`
		}
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}

		switch frame.Type {
		case "message":
			if frame.Message == nil {
				continue
			}
			before := timeline.Len(chatID)
			timeline.Add(frame.Message.toDomain())
			if timeline.Len(chatID) > before {
				printMessage(config, s, frame.Message.toDomain())
			}
		case "joined":
			printSystem(config, fmt.Sprintf("%s joined", frame.Username))
		case "left":
			printSystem(config, fmt.Sprintf("%s left", frame.Username))
		case "error":
			printSystem(config, fmt.Sprintf("error: %s", frame.Reason))
		}
	}
}

type wireMessage struct {
	ID        uint64 `json:"id"`
	ChatID    int64  `json:"chat_id"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Body      string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (w wireMessage) toDomain() domain.Message {
	at, _ := time.Parse(time.RFC3339Nano, w.Timestamp)
	return domain.Message{
		Seq:        w.ID,
		Room:       domain.RoomID(w.ChatID),
		AuthorID:   domain.UserID(w.UserID),
		AuthorName: w.Username,
		Body:       w.Body,
		At:         at,
	}
}

func printMessage(config Config, s session, msg domain.Message) {
	stamp := msg.At.Local().Format("15:04")
	line := fmt.Sprintf("[%s] %s: %s", stamp, msg.AuthorName, msg.Body)
	if config.Colours {
		if msg.AuthorID == domain.UserID(s.UserID) {
			line = color.FgCyan.Render(line)
		} else {
			line = color.FgGreen.Render(line)
		}
	}
	fmt.Println(line)
}

func printSystem(config Config, text string) {
	line := "* " + text
	if config.Colours {
		line = color.FgGray.Render(line)
	}
	fmt.Println(line)
}

func dial(config Config, s session) (*websocket.Conn, error) {
	base, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, err
	}
	scheme := "ws"
	if base.Scheme == "https" {
		scheme = "wss"
	}
	wsURL := url.URL{Scheme: scheme, Host: base.Host, Path: "/ws",
		RawQuery: "token=" + url.QueryEscape(s.Token)}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	return conn, err
}

func get(config Config, s session, path string, dst any) error {
	req, err := http.NewRequest(http.MethodGet, config.ServerURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: %s: %s", path, resp.Status, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
