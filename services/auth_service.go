//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"fmt"

	"chat-hub/auth"
	"chat-hub/domain"
	"chat-hub/errors"
	"chat-hub/repositories"
)

type Token string

type IAuthService interface {
	Register(username, password string) (Token, domain.User, error)
	Login(username, password string) (Token, domain.User, error)
}

type AuthService struct {
	users  repositories.IUserRepository
	tokens *auth.TokenManager
}

func NewAuthService(users repositories.IUserRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Register validates input, hashes the password, persists the account,
// and issues the initial session token. Hashing happens here so the
// repository never sees a plain password.
func (s *AuthService) Register(username, password string) (Token, domain.User, error) {
	req := auth.RegisterRequest{Username: username, Password: password}
	if err := auth.ValidateRegister(req); err != nil {
		return "", domain.User{}, err
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.users.Create(username, hashed)
	if err != nil {
		return "", domain.User{}, err // propagates ErrUserExists
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return "", domain.User{}, errors.ErrTokenGeneration
	}
	return Token(token), user, nil
}

// Login verifies credentials and returns a session token. Failures are
// reported as one generic error to prevent user enumeration.
func (s *AuthService) Login(username, password string) (Token, domain.User, error) {
	record, err := s.users.ByUsername(username)
	if err != nil {
		return "", domain.User{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, record.PasswordHash)
	if err != nil || !match {
		return "", domain.User{}, errors.ErrInvalidCredentials
	}

	user := domain.User{ID: record.ID, Username: record.Username}
	token, err := s.tokens.Generate(user)
	if err != nil {
		return "", domain.User{}, errors.ErrTokenGeneration
	}
	return Token(token), user, nil
}
