package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tabsession/sessiond/internal/auth/domain"
	"github.com/tabsession/sessiond/internal/auth/store"
	"github.com/tabsession/sessiond/pkg/cryptox"
	"github.com/tabsession/sessiond/pkg/jwtx"
	"github.com/tabsession/sessiond/pkg/slogx"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	// The two must be indistinguishable to the client, in shape and in
	// timing.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrInvalidRefresh marks a refresh token that failed signature or
	// structural verification.
	ErrInvalidRefresh = errors.New("invalid_refresh_token")

	// ErrRefreshExpired marks a well-formed, correctly signed refresh
	// token whose expiry has passed.
	ErrRefreshExpired = errors.New("refresh_token_expired")

	// ErrRefreshRevoked marks a refresh token with no active stored
	// record: revoked, rotated out, swept, or never issued. Deliberately
	// one outcome for all of those.
	ErrRefreshRevoked = errors.New("refresh_token_revoked_or_unknown")
)

// RevocationPolicy selects what happens to a user's existing sessions on a
// new login. Exactly one policy runs on the login path.
type RevocationPolicy string

const (
	// PolicyRevokeAll revokes every prior session on login. The
	// production default.
	PolicyRevokeAll RevocationPolicy = "revoke_all"

	// PolicyLimitActive caps concurrent sessions instead, keeping the
	// newest and reserving one slot for the login in progress.
	PolicyLimitActive RevocationPolicy = "limit_active"
)

// SessionService orchestrates the login, refresh-rotation, and logout
// flows over the user store, token codecs, and refresh-token store. It is
// the single translator from store/codec outcomes to the client-facing
// error taxonomy.
type SessionService struct {
	Users  store.Users
	Tokens store.RefreshTokens

	AccessCodec  *jwtx.Codec
	RefreshCodec *jwtx.Codec

	Policy            RevocationPolicy
	MaxActiveSessions int

	// dummyHash absorbs the password comparison for unknown emails so a
	// missing account costs the same as a wrong password.
	dummyHash string
}

// NewSessionService wires the orchestrator and precomputes the dummy
// credential hash used to equalize login timing.
func NewSessionService(
	users store.Users,
	tokens store.RefreshTokens,
	accessCodec, refreshCodec *jwtx.Codec,
	policy RevocationPolicy,
	maxActiveSessions int,
) (*SessionService, error) {
	switch policy {
	case PolicyRevokeAll, PolicyLimitActive:
	default:
		return nil, fmt.Errorf("service: unknown revocation policy %q", policy)
	}
	if policy == PolicyLimitActive && maxActiveSessions < 1 {
		return nil, errors.New("service: limit_active policy needs a positive session cap")
	}

	dummyHash, err := cryptox.HashPassword("sessiond.timing-equalizer")
	if err != nil {
		return nil, err
	}

	return &SessionService{
		Users:             users,
		Tokens:            tokens,
		AccessCodec:       accessCodec,
		RefreshCodec:      refreshCodec,
		Policy:            policy,
		MaxActiveSessions: maxActiveSessions,
		dummyHash:         dummyHash,
	}, nil
}

// Login verifies the credentials, applies the configured revocation policy
// to the user's prior sessions, and issues a fresh token pair.
func (s *SessionService) Login(
	ctx context.Context,
	email, password string,
) (domain.TokenPair, domain.PublicUser, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn the same hashing work a real comparison would, so
			// response timing does not reveal whether the account exists.
			_ = cryptox.VerifyPassword(password, s.dummyHash)
			return domain.TokenPair{}, domain.PublicUser{}, ErrInvalidCredentials
		}
		return domain.TokenPair{}, domain.PublicUser{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return domain.TokenPair{}, domain.PublicUser{}, ErrInvalidCredentials
	}

	s.applyRevocationPolicy(ctx, l, user.ID)

	pair, err := s.issuePair(ctx, user.ID, user.Email, now)
	if err != nil {
		return domain.TokenPair{}, domain.PublicUser{}, err
	}

	l.Info("login succeeded", slog.String("user_id", user.ID))
	return pair, user.Public(), nil
}

// Refresh rotates a refresh token: verify, look up the stored record,
// revoke it, then issue the replacement pair. Revocation happens before
// reissue so a raw refresh token is good for exactly one rotation; the
// loser of a concurrent race gets ErrRefreshRevoked, never a second pair.
func (s *SessionService) Refresh(ctx context.Context, rawRefresh string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	claims, err := s.RefreshCodec.Verify(rawRefresh)
	switch {
	case err == nil:
	case errors.Is(err, jwtx.ErrExpired):
		return domain.TokenPair{}, ErrRefreshExpired
	default:
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	// The stored record enforces expiry independently of the signed
	// claims; either check failing is sufficient to reject.
	rec, err := s.Tokens.FindActive(ctx, rawRefresh, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrRefreshRevoked
		}
		return domain.TokenPair{}, err
	}

	// Non-critical bookkeeping, never blocks the rotation.
	if err := s.Tokens.TouchLastUsed(ctx, rawRefresh, now); err != nil {
		l.Debug("refresh token touch failed", "err", err)
	}

	revoked, err := s.Tokens.Revoke(ctx, rawRefresh)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if !revoked {
		// A concurrent rotation got there first.
		l.Warn("refresh token replay detected", slog.String("user_id", rec.UserID))
		return domain.TokenPair{}, ErrRefreshRevoked
	}

	user, err := s.Users.GetByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrRefreshRevoked
		}
		return domain.TokenPair{}, err
	}

	if user.ID != claims.Subject {
		// The record and the signed claims disagree about the owner.
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	return s.issuePair(ctx, user.ID, user.Email, now)
}

// Logout revokes the presented refresh token. Idempotent from the client's
// perspective: an unknown or already-revoked token is the same terminal
// state as a fresh one.
func (s *SessionService) Logout(ctx context.Context, rawRefresh string) error {
	if rawRefresh == "" {
		return nil
	}

	revoked, err := s.Tokens.Revoke(ctx, rawRefresh)
	if err != nil {
		return err
	}

	if revoked {
		slogx.FromContext(ctx).Info("session logged out")
	}
	return nil
}

// LogoutAll revokes every session of the user and returns the count
// actually revoked, which may be partial when some writes failed.
func (s *SessionService) LogoutAll(ctx context.Context, userID string) (int, error) {
	count, err := s.Tokens.RevokeAllForUser(ctx, userID)

	l := slogx.FromContext(ctx)
	if err != nil {
		l.Error("logout-all partially failed",
			slog.String("user_id", userID),
			slog.Int("revoked", count),
			slog.Any("err", err),
		)
		return count, err
	}

	l.Info("logout-all", slog.String("user_id", userID), slog.Int("revoked", count))
	return count, nil
}

// applyRevocationPolicy runs before a login issues new tokens. Failures
// here are logged, not fatal: the subsequent create will surface a store
// outage on its own, and a missed revocation never blocks a valid login.
func (s *SessionService) applyRevocationPolicy(ctx context.Context, l *slog.Logger, userID string) {
	switch s.Policy {
	case PolicyLimitActive:
		revoked, err := s.Tokens.LimitActiveForUser(ctx, userID, s.MaxActiveSessions)
		if err != nil {
			l.Warn("limit-active revocation failed",
				slog.String("user_id", userID), slog.Int("revoked", revoked), slog.Any("err", err))
			return
		}
		if revoked > 0 {
			l.Info("capped active sessions", slog.String("user_id", userID), slog.Int("revoked", revoked))
		}
	default:
		revoked, err := s.Tokens.RevokeAllForUser(ctx, userID)
		if err != nil {
			l.Warn("revoke-all on login failed",
				slog.String("user_id", userID), slog.Int("revoked", revoked), slog.Any("err", err))
			return
		}
		if revoked > 0 {
			l.Info("revoked prior sessions", slog.String("user_id", userID), slog.Int("revoked", revoked))
		}
	}
}

// issuePair signs the access and refresh tokens and persists the refresh
// record. The refresh token's store expiry mirrors its signed expiry.
func (s *SessionService) issuePair(ctx context.Context, userID, email string, now time.Time) (domain.TokenPair, error) {
	access, err := s.AccessCodec.Issue(userID, email, now)
	if err != nil {
		return domain.TokenPair{}, err
	}

	refresh, err := s.RefreshCodec.Issue(userID, email, now)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if _, err := s.Tokens.Create(ctx, userID, refresh, now, s.RefreshCodec.TTL()); err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.AccessCodec.TTL(),
	}, nil
}
