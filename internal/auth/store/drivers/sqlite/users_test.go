package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/tabsession/sessiond/internal/auth/domain"
	"github.com/tabsession/sessiond/internal/auth/store"
	"github.com/tabsession/sessiond/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore("file:" + t.TempDir() + "/users.db?_busy_timeout=5000")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, email string) domain.User {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		DisplayName:  "Test User",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.Create(context.Background(), u))
	return u
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "a@x.com")

	t.Run("get by email", func(t *testing.T) {
		got, err := s.GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
		require.Equal(t, u.PasswordHash, got.PasswordHash)
	})

	t.Run("get by id", func(t *testing.T) {
		got, err := s.GetByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "a@x.com", got.Email)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := s.GetByEmail(ctx, "missing@x.com")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.GetByID(ctx, idx.New().String())
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestCreateDuplicateEmail(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seedUser(t, s, "dup@x.com")

	now := time.Now().UTC()
	err := s.Create(context.Background(), domain.User{
		ID:           idx.New().String(),
		Email:        "dup@x.com",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestPing(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}
