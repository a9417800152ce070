// Package store defines the persistence interfaces the auth service is
// built against. Users live in a relational user store; refresh-token
// lifecycle records live in a key-value store with native per-item expiry.
// The two are deliberately separate interfaces wired independently at
// startup, so either backend can be swapped or faked in tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tabsession/sessiond/internal/auth/domain"
)

var (
	// ErrNotFound is returned on lookups that match nothing. For refresh
	// tokens it deliberately covers absent, revoked, and expired alike so
	// callers cannot build an oracle over token state.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists signals a uniqueness violation (duplicate email).
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrUnavailable wraps timeouts and connectivity failures of the
	// backing store. Writes are never silently dropped.
	ErrUnavailable = errors.New("store: unavailable")
)

// Users is the external user store consumed mostly read-only by the
// session flows. Credential hash format is this store's concern.
type Users interface {
	// GetByEmail returns the user owning the unique email.
	GetByEmail(ctx context.Context, email string) (domain.User, error)

	// GetByID returns a user by id.
	GetByID(ctx context.Context, id string) (domain.User, error)

	// Create inserts a new user. Returns ErrAlreadyExists when the email
	// is taken.
	Create(ctx context.Context, u domain.User) error

	// Ping verifies the store connection is still alive.
	Ping(ctx context.Context) error
}

// RefreshTokens manages refresh-token lifecycle records keyed by token
// hash, with a secondary index on user id. Each operation is atomic with
// respect to a single record; bulk operations fan out independent
// per-record writes and report partial counts rather than pretending to be
// transactional.
type RefreshTokens interface {
	// Create hashes rawToken and writes a fresh record with the given
	// expiry horizon. Never silently drops the write.
	Create(ctx context.Context, userID, rawToken string, now time.Time, ttl time.Duration) (domain.RefreshToken, error)

	// FindActive hashes rawToken and returns its record only while the
	// record is active. Absent, revoked, and expired all yield ErrNotFound.
	FindActive(ctx context.Context, rawToken string, now time.Time) (domain.RefreshToken, error)

	// TouchLastUsed is best-effort bookkeeping; failures must not block
	// the surrounding request.
	TouchLastUsed(ctx context.Context, rawToken string, at time.Time) error

	// Revoke conditionally flips the record to revoked. Returns false
	// when the token is unknown or was already revoked, which is how the
	// loser of a concurrent rotation race is detected.
	Revoke(ctx context.Context, rawToken string) (bool, error)

	// RevokeAllForUser revokes every non-revoked record of the user. The
	// returned count reflects records actually flipped even when some
	// writes failed; the error then reports the partial failure.
	RevokeAllForUser(ctx context.Context, userID string) (int, error)

	// LimitActiveForUser orders the user's active records newest first
	// and, when their number reaches maxActive, revokes everything from
	// position maxActive-1 onward. This reserves one slot for the record
	// the caller is about to create. Returns the number revoked.
	LimitActiveForUser(ctx context.Context, userID string, maxActive int) (int, error)

	// SweepExpired physically deletes records whose expiry has passed.
	// Safe to run concurrently with everything else since it only removes
	// records that are already logically inactive.
	SweepExpired(ctx context.Context, now time.Time) (int, error)

	// Ping verifies the store connection is still alive.
	Ping(ctx context.Context) error
}
