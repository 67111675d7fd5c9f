// Package service holds the thin application services sitting between the
// HTTP handlers and the repos.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aivon/aivon/internal/model"
	appErr "github.com/aivon/aivon/internal/pkg/errors"
	"github.com/aivon/aivon/internal/pkg/jwt"
	"github.com/aivon/aivon/internal/pkg/password"
	"github.com/aivon/aivon/internal/repo"
)

type AuthService struct {
	users  *repo.UserRepo
	secret []byte
	ttl    time.Duration
}

func NewAuthService(users *repo.UserRepo, secret string, ttl time.Duration) *AuthService {
	return &AuthService{users: users, secret: []byte(secret), ttl: ttl}
}

// Register creates an account. The first account ever created becomes the
// admin; everyone after that is a regular user.
func (s *AuthService) Register(ctx context.Context, email, plainPassword string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", appErr.ErrInvalid)
	}
	if len(plainPassword) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", appErr.ErrInvalid)
	}
	hash, err := password.Hash(plainPassword)
	if err != nil {
		return nil, err
	}
	existing, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	user := &model.User{
		ID:           NewID(),
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      existing == 0,
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and mints a token.
func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (string, *model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if appErr.IsNotFound(err) {
			return "", nil, appErr.ErrUnauthorized
		}
		return "", nil, err
	}
	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		return "", nil, appErr.ErrUnauthorized
	}
	token, err := jwt.GenerateToken(user.ID, user.IsAdmin, s.secret, s.ttl)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}
