package redis

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tabsession/sessiond/internal/auth/store"
	"github.com/tabsession/sessiond/pkg/cryptox"
	"github.com/tabsession/sessiond/pkg/idx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	return NewStore(rdb, time.Second)
}

func newRawToken(t *testing.T) string {
	t.Helper()

	buf := make([]byte, 32)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(buf)
}

func TestCreateAndFindActive(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	userID := idx.New().String()
	raw := newRawToken(t)
	now := time.Now()

	rec, err := s.Create(ctx, userID, raw, now, 7*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, userID, rec.UserID)
	require.Equal(t, cryptox.HashToken(raw), rec.TokenHash)
	require.False(t, rec.Revoked)
	require.WithinDuration(t, now.Add(7*24*time.Hour), rec.ExpiresAt, time.Second)

	t.Run("round trip", func(t *testing.T) {
		got, err := s.FindActive(ctx, raw, now)
		require.NoError(t, err)
		require.Equal(t, rec.ID, got.ID)
		require.Equal(t, rec.TokenHash, got.TokenHash)
	})

	t.Run("record key carries a ttl", func(t *testing.T) {
		ttl, err := s.rdb.TTL(ctx, recordKey(rec.TokenHash)).Result()
		require.NoError(t, err)
		require.Greater(t, ttl, time.Duration(0))
	})

	t.Run("unknown token misses", func(t *testing.T) {
		_, err := s.FindActive(ctx, newRawToken(t), now)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestFindActiveHonorsStoredExpiry(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	raw := newRawToken(t)
	now := time.Now()

	rec, err := s.Create(ctx, idx.New().String(), raw, now, time.Hour)
	require.NoError(t, err)

	// The record is still physically present (the native TTL has not fired)
	// but its stored expiry is in the past relative to the caller's clock.
	// Even with Revoked=false it must be treated as absent.
	require.False(t, rec.Revoked)
	_, err = s.FindActive(ctx, raw, now.Add(2*time.Hour))
	require.ErrorIs(t, err, store.ErrNotFound)

	exists, err := s.rdb.Exists(ctx, recordKey(rec.TokenHash)).Result()
	require.NoError(t, err)
	require.EqualValues(t, 1, exists)
}

func TestRevoke(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	raw := newRawToken(t)
	now := time.Now()

	_, err := s.Create(ctx, idx.New().String(), raw, now, time.Hour)
	require.NoError(t, err)

	t.Run("first revoke wins", func(t *testing.T) {
		ok, err := s.Revoke(ctx, raw)
		require.NoError(t, err)
		require.True(t, ok)

		_, err = s.FindActive(ctx, raw, now)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("second revoke is a no-op", func(t *testing.T) {
		ok, err := s.Revoke(ctx, raw)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("unknown token is a no-op", func(t *testing.T) {
		ok, err := s.Revoke(ctx, newRawToken(t))
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestRevokeConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	raw := newRawToken(t)

	_, err := s.Create(ctx, idx.New().String(), raw, time.Now(), time.Hour)
	require.NoError(t, err)

	const attempts = 16
	var (
		wg   sync.WaitGroup
		wins = make([]bool, attempts)
		errs = make([]error, attempts)
	)
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wins[i], errs[i] = s.Revoke(ctx, raw)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := range attempts {
		require.NoError(t, errs[i])
		if wins[i] {
			winners++
		}
	}
	require.Equal(t, 1, winners)
}

func TestRevokeAllForUser(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	userID := idx.New().String()
	now := time.Now()

	for range 3 {
		_, err := s.Create(ctx, userID, newRawToken(t), now, time.Hour)
		require.NoError(t, err)
	}

	// A different user's token must be untouched.
	otherRaw := newRawToken(t)
	_, err := s.Create(ctx, idx.New().String(), otherRaw, now, time.Hour)
	require.NoError(t, err)

	count, err := s.RevokeAllForUser(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	_, err = s.FindActive(ctx, otherRaw, now)
	require.NoError(t, err)

	t.Run("rerun is idempotent", func(t *testing.T) {
		count, err := s.RevokeAllForUser(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, 0, count)
	})
}

func TestLimitActiveForUser(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	userID := idx.New().String()
	base := time.Now()

	raws := make([]string, 7)
	for i := range raws {
		raws[i] = newRawToken(t)
		// Staggered creation times so newest-first ordering is meaningful.
		_, err := s.Create(ctx, userID, raws[i], base.Add(time.Duration(i)*time.Second), time.Hour)
		require.NoError(t, err)
	}

	revoked, err := s.LimitActiveForUser(ctx, userID, 5)
	require.NoError(t, err)
	require.Equal(t, 3, revoked)

	// The newest 4 survive; the oldest 3 are gone.
	now := base.Add(10 * time.Second)
	for i, raw := range raws {
		_, err := s.FindActive(ctx, raw, now)
		if i >= 3 {
			require.NoError(t, err, "token %d should remain active", i)
		} else {
			require.ErrorIs(t, err, store.ErrNotFound, "token %d should be revoked", i)
		}
	}

	t.Run("under the cap is a no-op", func(t *testing.T) {
		revoked, err := s.LimitActiveForUser(ctx, userID, 5)
		require.NoError(t, err)
		require.Equal(t, 0, revoked)
	})

	t.Run("rejects non-positive cap", func(t *testing.T) {
		_, err := s.LimitActiveForUser(ctx, userID, 0)
		require.Error(t, err)
	})
}

func TestSweepExpired(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	userID := idx.New().String()
	now := time.Now()

	expiredA, err := s.Create(ctx, userID, newRawToken(t), now.Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	expiredB, err := s.Create(ctx, userID, newRawToken(t), now.Add(-3*time.Hour), time.Hour)
	require.NoError(t, err)
	liveRaw := newRawToken(t)
	live, err := s.Create(ctx, userID, liveRaw, now, time.Hour)
	require.NoError(t, err)

	deleted, err := s.SweepExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 2, deleted)

	for _, hash := range []string{expiredA.TokenHash, expiredB.TokenHash} {
		exists, err := s.rdb.Exists(ctx, recordKey(hash)).Result()
		require.NoError(t, err)
		require.EqualValues(t, 0, exists)
	}

	// Index entries for swept records are gone too.
	members, err := s.rdb.ZRange(ctx, userKey(userID), 0, -1).Result()
	require.NoError(t, err)
	require.Equal(t, []string{live.TokenHash}, members)

	_, err = s.FindActive(ctx, liveRaw, now)
	require.NoError(t, err)

	t.Run("rerun deletes nothing", func(t *testing.T) {
		deleted, err := s.SweepExpired(ctx, now)
		require.NoError(t, err)
		require.Equal(t, 0, deleted)
	})
}

func TestTouchLastUsed(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	raw := newRawToken(t)
	now := time.Now()

	rec, err := s.Create(ctx, idx.New().String(), raw, now, time.Hour)
	require.NoError(t, err)

	used := now.Add(10 * time.Minute)
	require.NoError(t, s.TouchLastUsed(ctx, raw, used))

	got, err := s.FindActive(ctx, raw, now)
	require.NoError(t, err)
	require.WithinDuration(t, used, got.LastUsedAt, time.Second)

	// Touching must not clear the native TTL.
	ttl, err := s.rdb.TTL(ctx, recordKey(rec.TokenHash)).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	t.Run("revoked record is left alone", func(t *testing.T) {
		revoked, err := s.Revoke(ctx, raw)
		require.NoError(t, err)
		require.True(t, revoked)

		require.ErrorIs(t, s.TouchLastUsed(ctx, raw, now.Add(time.Hour)), store.ErrNotFound)

		got, err := s.getRecord(ctx, rec.TokenHash)
		require.NoError(t, err)
		require.True(t, got.Revoked)
		require.WithinDuration(t, used, got.LastUsedAt, time.Second)
	})

	t.Run("unknown token", func(t *testing.T) {
		require.ErrorIs(t, s.TouchLastUsed(ctx, newRawToken(t), now), store.ErrNotFound)
	})
}

// A touch racing a revoke must never write back a stale revoked=false.
// Both paths run as server-side scripts, so whatever the interleaving the
// record stays revoked once Revoke reports the transition.
func TestTouchCannotResurrectRevoked(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	const trials = 50
	for trial := range trials {
		raw := newRawToken(t)
		rec, err := s.Create(ctx, idx.New().String(), raw, now, time.Hour)
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			won       bool
			revokeErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.TouchLastUsed(ctx, raw, now.Add(time.Minute))
		}()
		go func() {
			defer wg.Done()
			won, revokeErr = s.Revoke(ctx, raw)
		}()
		wg.Wait()

		require.NoError(t, revokeErr, "trial %d", trial)
		require.True(t, won, "trial %d", trial)

		got, err := s.getRecord(ctx, rec.TokenHash)
		require.NoError(t, err, "trial %d", trial)
		require.True(t, got.Revoked, "trial %d", trial)
	}
}

func TestStoreUnavailable(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := NewStore(rdb, time.Second)

	ctx := context.Background()
	raw := newRawToken(t)
	_, err = s.Create(ctx, idx.New().String(), raw, time.Now(), time.Hour)
	require.NoError(t, err)

	// Kill the backend: every operation must surface ErrUnavailable, never
	// swallow the failure.
	mr.Close()

	_, err = s.Create(ctx, idx.New().String(), newRawToken(t), time.Now(), time.Hour)
	require.ErrorIs(t, err, store.ErrUnavailable)

	_, err = s.FindActive(ctx, raw, time.Now())
	require.ErrorIs(t, err, store.ErrUnavailable)

	_, err = s.Revoke(ctx, raw)
	require.ErrorIs(t, err, store.ErrUnavailable)

	require.ErrorIs(t, s.TouchLastUsed(ctx, raw, time.Now()), store.ErrUnavailable)

	require.ErrorIs(t, s.Ping(ctx), store.ErrUnavailable)
}
