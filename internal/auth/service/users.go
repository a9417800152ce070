package service

import (
	"context"
	"errors"
	"time"

	"github.com/tabsession/sessiond/internal/auth/domain"
	"github.com/tabsession/sessiond/internal/auth/store"
	"github.com/tabsession/sessiond/pkg/cryptox"
	"github.com/tabsession/sessiond/pkg/idx"
)

// ErrEmailTaken is returned by Register when the email already has an
// account.
var ErrEmailTaken = errors.New("email_taken")

// UserService covers the account surface the session flows depend on:
// registration and read-only lookup.
type UserService struct {
	Users store.Users
}

// Register hashes the credential and creates the account. Input shape
// validation happens at the transport boundary; uniqueness is enforced
// here via the store.
func (s *UserService) Register(
	ctx context.Context,
	email, password, displayName string,
) (domain.PublicUser, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.PublicUser{}, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.PublicUser{}, ErrEmailTaken
		}
		return domain.PublicUser{}, err
	}

	return user.Public(), nil
}

// GetByID fetches the sanitized view of a user.
func (s *UserService) GetByID(ctx context.Context, userID string) (domain.PublicUser, error) {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return domain.PublicUser{}, err
	}
	return user.Public(), nil
}
