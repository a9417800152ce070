// Package redis implements the refresh-token store on a Redis key-value
// backend. Records are JSON blobs keyed by token hash with a native TTL,
// plus two ZSET indexes: one per user (scored by creation time) and one
// global sweep index (scored by expiry). The native TTL is storage
// reclamation only; activity is always re-derived from the record itself.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tabsession/sessiond/internal/auth/store"
)

// DefaultTimeout bounds every store call when the caller does not
// configure one.
const DefaultTimeout = 3 * time.Second

const (
	recordKeyPrefix = "rt:"
	userKeyPrefix   = "rtu:"
	sweepKey        = "rtx"

	// sweepMemberSep joins userID and tokenHash in sweep index members.
	// Neither side can contain it: ULIDs are base32, hashes base64url.
	sweepMemberSep = "|"
)

// Store is the Redis-backed refresh-token store.
type Store struct {
	rdb     *redis.Client
	timeout time.Duration
}

// NewStore wraps an already-connected client. The timeout applies per
// operation; zero selects DefaultTimeout.
func NewStore(rdb *redis.Client, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{rdb: rdb, timeout: timeout}
}

// Ping verifies the Redis connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func recordKey(tokenHash string) string { return recordKeyPrefix + tokenHash }
func userKey(userID string) string      { return userKeyPrefix + userID }

// unavailable maps transport, timeout, and server errors onto the
// store.ErrUnavailable sentinel the orchestrator translates to a 500.
func unavailable(err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}
