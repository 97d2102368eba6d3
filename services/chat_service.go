//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"strings"
	"time"

	"chat-hub/domain"
	"chat-hub/errors"
	"chat-hub/repositories"
	"chat-hub/runtime"

	"github.com/samber/lo"
)

// ChatSummary is one row of the chat list: resolved display name plus
// the latest message, if any.
type ChatSummary struct {
	ID     domain.RoomID
	Name   string
	Latest *LatestMessage
}

type LatestMessage struct {
	Seq      uint64
	Username string
	Body     string
	At       time.Time
}

type IChatService interface {
	CreateChat(ctx context.Context, creator domain.User, name string,
		recipients []domain.UserID, firstMessage string) (domain.Chat, error)
	ListChats(user domain.User) ([]ChatSummary, error)
	History(user domain.User, chatID domain.RoomID, sinceSeq uint64) ([]domain.Message, error)
	Recent(user domain.User, chatID domain.RoomID, cursor *string) ([]domain.Message, *string, error)
	Post(ctx context.Context, user domain.User, chatID domain.RoomID, body string) (domain.Message, error)
	Delete(user domain.User, chatID domain.RoomID) error
	SearchUsers(ctx context.Context, user domain.User, query string, limit int) ([]domain.User, error)
}

// ChatService is the request/response surface over the chat catalogue,
// message history, and user search. Message writes are delegated to the
// engine so the ordering and fan-out rules hold on every path.
type ChatService struct {
	engine   *runtime.Engine
	chats    repositories.IChatRepository
	messages repositories.IMessageRepository
	users    repositories.IUserRepository
}

func NewChatService(engine *runtime.Engine, chats repositories.IChatRepository,
	messages repositories.IMessageRepository, users repositories.IUserRepository) *ChatService {
	return &ChatService{engine: engine, chats: chats, messages: messages, users: users}
}

// CreateChat persists a chat with the creator folded into the recipient
// set, and posts the optional opening message through the engine.
func (s *ChatService) CreateChat(ctx context.Context, creator domain.User,
	name string, recipients []domain.UserID, firstMessage string) (domain.Chat, error) {
	chat, err := s.chats.Create(strings.TrimSpace(name), recipients, creator.ID)
	if err != nil {
		return domain.Chat{}, err
	}

	if strings.TrimSpace(firstMessage) != "" {
		if _, err := s.engine.Post(ctx, creator, chat.ID, firstMessage); err != nil {
			return domain.Chat{}, err
		}
	}
	return chat, nil
}

// ListChats returns the user's chats with display names resolved: an
// unnamed chat shows the usernames of the other recipients.
func (s *ChatService) ListChats(user domain.User) ([]ChatSummary, error) {
	chats, err := s.chats.ForUser(user.ID)
	if err != nil {
		return nil, err
	}

	var summaries []ChatSummary
	for _, chat := range chats {
		name, err := s.displayName(chat, user.ID)
		if err != nil {
			return nil, err
		}
		latest, err := s.latestMessage(chat.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, ChatSummary{ID: chat.ID, Name: name, Latest: latest})
	}
	return summaries, nil
}

// History replays a chat forward from a sequence id. Only recipients may
// read.
func (s *ChatService) History(user domain.User, chatID domain.RoomID,
	sinceSeq uint64) ([]domain.Message, error) {
	if err := s.authorize(user.ID, chatID); err != nil {
		return nil, err
	}
	return s.messages.History(chatID, sinceSeq)
}

// Recent pages a chat backwards from the newest message.
func (s *ChatService) Recent(user domain.User, chatID domain.RoomID,
	cursor *string) ([]domain.Message, *string, error) {
	if err := s.authorize(user.ID, chatID); err != nil {
		return nil, nil, err
	}
	return s.messages.Recent(chatID, cursor)
}

func (s *ChatService) Post(ctx context.Context, user domain.User,
	chatID domain.RoomID, body string) (domain.Message, error) {
	return s.engine.Post(ctx, user, chatID, body)
}

// Delete removes a chat and its message log. Creator only.
func (s *ChatService) Delete(user domain.User, chatID domain.RoomID) error {
	chat, err := s.chats.Get(chatID)
	if err != nil {
		return err
	}
	if chat.CreatorID != user.ID {
		return errors.ErrNotAuthorized
	}
	if err := s.chats.Delete(chatID); err != nil {
		return err
	}
	return s.messages.DeleteRoom(chatID)
}

func (s *ChatService) SearchUsers(ctx context.Context, user domain.User,
	query string, limit int) ([]domain.User, error) {
	return s.users.SearchPrefix(ctx, query, user.ID, limit)
}

func (s *ChatService) authorize(userID domain.UserID, chatID domain.RoomID) error {
	chat, err := s.chats.Get(chatID)
	if err != nil {
		return err
	}
	if !chat.HasRecipient(userID) {
		return errors.ErrNotAuthorized
	}
	return nil
}

func (s *ChatService) displayName(chat domain.Chat, viewer domain.UserID) (string, error) {
	if chat.Name != "" {
		return chat.Name, nil
	}
	others := lo.Filter(chat.Recipients, func(id domain.UserID, _ int) bool {
		return id != viewer
	})
	names, err := s.users.Usernames(others)
	if err != nil {
		return "", err
	}
	parts := lo.FilterMap(others, func(id domain.UserID, _ int) (string, bool) {
		name, ok := names[id]
		return name, ok
	})
	return strings.Join(parts, ", "), nil
}

func (s *ChatService) latestMessage(chatID domain.RoomID) (*LatestMessage, error) {
	messages, _, err := s.messages.Recent(chatID, nil)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}
	newest := messages[0]
	return &LatestMessage{
		Seq:      newest.Seq,
		Username: newest.AuthorName,
		Body:     newest.Body,
		At:       newest.At,
	}, nil
}
