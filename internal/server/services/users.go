// Package services holds the server's business logic: authentication, the
// push/pull sync protocol and report file access.
package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/wassertech/fieldsync/internal/common"
	"github.com/wassertech/fieldsync/internal/server/auth"
	"github.com/wassertech/fieldsync/internal/server/config"
	"github.com/wassertech/fieldsync/internal/server/store"
)

// UserService authenticates accounts and issues session tokens.
type UserService struct {
	users  *store.Users
	config *config.Config
}

// NewUserService constructs a UserService.
func NewUserService(users *store.Users, cfg *config.Config) *UserService {
	return &UserService{users: users, config: cfg}
}

// Session is what a successful login returns.
type Session struct {
	Token    string
	Role     string
	ClientID string
}

// Login verifies the credentials and returns a signed session. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, common.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, user.Role, user.ClientID,
		[]byte(s.config.SecretKey), s.config.TokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Session{Token: token, Role: user.Role, ClientID: user.ClientID}, nil
}

// HashPassword produces the bcrypt hash stored for an account.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
