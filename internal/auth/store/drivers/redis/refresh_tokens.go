package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tabsession/sessiond/internal/auth/domain"
	"github.com/tabsession/sessiond/internal/auth/store"
	"github.com/tabsession/sessiond/pkg/cryptox"
	"github.com/tabsession/sessiond/pkg/idx"
)

// revokeScript conditionally flips a record to revoked. It returns 1 only
// for the caller that actually performed the transition; an unknown key or
// an already-revoked record yields 0. Redis executes scripts serially, so
// concurrent rotations of the same token resolve to exactly one winner.
// The remaining TTL is carried over so revocation never extends residency.
var revokeScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
  return 0
end
local rec = cjson.decode(raw)
if rec.revoked then
  return 0
end
rec.revoked = true
local ttl = redis.call("TTL", KEYS[1])
if ttl > 0 then
  redis.call("SET", KEYS[1], cjson.encode(rec), "EX", ttl)
else
  redis.call("SET", KEYS[1], cjson.encode(rec))
end
return 1
`)

// touchScript stamps lastUsedAt without disturbing any other field. It
// runs server-side for the same reason revokeScript does: a client-side
// read-modify-write racing a revoke could write back a stale revoked=false
// and resurrect a dead token. A revoked or missing record is left alone.
var touchScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
  return 0
end
local rec = cjson.decode(raw)
if rec.revoked then
  return 0
end
rec.lastUsedAt = ARGV[1]
local ttl = redis.call("TTL", KEYS[1])
if ttl > 0 then
  redis.call("SET", KEYS[1], cjson.encode(rec), "EX", ttl)
else
  redis.call("SET", KEYS[1], cjson.encode(rec))
end
return 1
`)

// Create hashes rawToken and persists a fresh lifecycle record together
// with its index entries. The record key carries the native TTL.
func (s *Store) Create(
	ctx context.Context,
	userID, rawToken string,
	now time.Time,
	ttl time.Duration,
) (domain.RefreshToken, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rec := domain.RefreshToken{
		ID:         idx.New().String(),
		TokenHash:  cryptox.HashToken(rawToken),
		UserID:     userID,
		CreatedAt:  now.UTC(),
		LastUsedAt: now.UTC(),
		ExpiresAt:  now.UTC().Add(ttl),
		Revoked:    false,
	}

	blob, err := json.Marshal(rec)
	if err != nil {
		return domain.RefreshToken{}, err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, recordKey(rec.TokenHash), blob, ttl)
	pipe.ZAdd(ctx, userKey(userID), redis.Z{
		Score:  float64(rec.CreatedAt.UnixNano()),
		Member: rec.TokenHash,
	})
	pipe.ZAdd(ctx, sweepKey, redis.Z{
		Score:  float64(rec.ExpiresAt.Unix()),
		Member: userID + sweepMemberSep + rec.TokenHash,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.RefreshToken{}, unavailable(err)
	}

	return rec, nil
}

// FindActive looks a record up by the hash of rawToken. Absent, revoked,
// and expired records are indistinguishable to the caller: all ErrNotFound.
// Expiry is checked against the stored timestamp, not the key's TTL.
func (s *Store) FindActive(ctx context.Context, rawToken string, now time.Time) (domain.RefreshToken, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rec, err := s.getRecord(ctx, cryptox.HashToken(rawToken))
	if err != nil {
		return domain.RefreshToken{}, err
	}
	if !rec.Active(now) {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	return rec, nil
}

// TouchLastUsed updates the record's LastUsedAt bookkeeping timestamp.
// Best-effort: callers are expected to ignore the returned error. The
// update runs atomically server-side and never rewrites the revoked flag,
// so touching a token that a concurrent rotation is revoking is harmless.
func (s *Store) TouchLastUsed(ctx context.Context, rawToken string, at time.Time) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	stamp := at.UTC().Format(time.RFC3339Nano)
	res, err := touchScript.Run(ctx, s.rdb,
		[]string{recordKey(cryptox.HashToken(rawToken))}, stamp).Int64()
	if err != nil {
		return unavailable(err)
	}
	if res == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Revoke conditionally revokes the record for rawToken. Idempotent:
// unknown and already-revoked tokens return false without error.
func (s *Store) Revoke(ctx context.Context, rawToken string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	return s.revokeHash(ctx, cryptox.HashToken(rawToken))
}

func (s *Store) revokeHash(ctx context.Context, tokenHash string) (bool, error) {
	res, err := revokeScript.Run(ctx, s.rdb, []string{recordKey(tokenHash)}).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	return res == 1, nil
}

// RevokeAllForUser revokes every non-revoked record of the user. Per-record
// writes fan out concurrently and all settle before the count is reported;
// when some writes fail the count still reflects the records that actually
// flipped, and the error reports the partial failure. Safe to re-run.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	hashes, err := s.rdb.ZRange(ctx, userKey(userID), 0, -1).Result()
	if err != nil {
		return 0, unavailable(err)
	}

	return s.revokeHashes(ctx, hashes)
}

// LimitActiveForUser keeps the user's newest maxActive-1 active records and
// revokes the rest, reserving one slot for the record the caller is about
// to create. Returns the number revoked.
func (s *Store) LimitActiveForUser(ctx context.Context, userID string, maxActive int) (int, error) {
	if maxActive < 1 {
		return 0, errors.New("redis: maxActive must be at least 1")
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	// Newest first: the user index is scored by creation time.
	hashes, err := s.rdb.ZRevRange(ctx, userKey(userID), 0, -1).Result()
	if err != nil {
		return 0, unavailable(err)
	}

	now := time.Now()
	active := make([]string, 0, len(hashes))
	for _, h := range hashes {
		rec, err := s.getRecord(ctx, h)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if rec.Active(now) {
			active = append(active, h)
		}
	}

	if len(active) < maxActive {
		return 0, nil
	}

	return s.revokeHashes(ctx, active[maxActive-1:])
}

// SweepExpired physically removes records whose stored expiry has passed,
// along with their index entries. Records already reclaimed by the native
// TTL still get their indexes cleaned; they are not counted as deletions.
func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	members, err := s.rdb.ZRangeByScore(ctx, sweepKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, unavailable(err)
	}

	deleted := 0
	for _, member := range members {
		userID, tokenHash, ok := strings.Cut(member, sweepMemberSep)
		if !ok {
			// Corrupt index entry, drop it and move on.
			_ = s.rdb.ZRem(ctx, sweepKey, member).Err()
			continue
		}

		pipe := s.rdb.TxPipeline()
		del := pipe.Del(ctx, recordKey(tokenHash))
		pipe.ZRem(ctx, userKey(userID), tokenHash)
		pipe.ZRem(ctx, sweepKey, member)
		if _, err := pipe.Exec(ctx); err != nil {
			return deleted, unavailable(err)
		}
		if del.Val() > 0 {
			deleted++
		}
	}

	return deleted, nil
}

// revokeHashes fans out conditional revokes and waits for all to settle.
func (s *Store) revokeHashes(ctx context.Context, hashes []string) (int, error) {
	if len(hashes) == 0 {
		return 0, nil
	}

	var (
		wg      sync.WaitGroup
		revoked atomic.Int64
		errs    = make([]error, len(hashes))
	)

	for i, hash := range hashes {
		wg.Add(1)
		go func(i int, hash string) {
			defer wg.Done()

			ok, err := s.revokeHash(ctx, hash)
			if err != nil {
				errs[i] = err
				return
			}
			if ok {
				revoked.Add(1)
			}
		}(i, hash)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return int(revoked.Load()), unavailable(err)
	}
	return int(revoked.Load()), nil
}

func (s *Store) getRecord(ctx context.Context, tokenHash string) (domain.RefreshToken, error) {
	raw, err := s.rdb.Get(ctx, recordKey(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	if err != nil {
		return domain.RefreshToken{}, unavailable(err)
	}

	var rec domain.RefreshToken
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.RefreshToken{}, unavailable(err)
	}
	return rec, nil
}
