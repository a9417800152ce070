// Package jwtx wraps signing and verification of the short-lived bearer
// tokens issued by the session service. Access and refresh tokens are both
// HS256 JWTs but are signed with distinct secrets, so a Codec built for one
// kind can never validate the other.
package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Short access tokens limit the blast radius of a leak;
// the refresh TTL bounds how long a stored record stays resident.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

var (
	// ErrExpired marks a token whose signature and structure are intact but
	// whose expiry has passed. Verify still returns the decoded claims
	// alongside this error so callers can inspect who the token belonged to.
	ErrExpired = errors.New("jwtx: token expired")

	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
)

// Claims carried by both access and refresh tokens: the subject user id
// (registered "sub") plus the account email.
type Claims struct {
	jwt.RegisteredClaims

	Email string `json:"email,omitempty"`
}

// Codec signs and verifies tokens of a single kind with a single secret.
// Build one per token kind and treat it as immutable after construction.
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewCodec validates the configuration and returns a ready Codec.
func NewCodec(secret []byte, issuer string, ttl time.Duration) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwtx: signing secret must not be empty")
	}
	if ttl <= 0 {
		return nil, errors.New("jwtx: token ttl must be positive")
	}
	return &Codec{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue signs a token for the given subject, expiring the codec's TTL from
// now. Pure function of its inputs plus the clock, no I/O.
func (c *Codec) Issue(subject, email string, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Email: email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify checks signature, structure, and time bounds.
//
// Outcomes:
//   - (claims, nil): valid token.
//   - (claims, ErrExpired): well-formed and correctly signed, expiry passed.
//   - (zero, ErrInvalidSig/ErrMalformed/ErrNotYetValid/ErrIssuer): reject.
//
// Expiry is surfaced separately because the orchestrator treats it as an
// ordinary expected outcome, not a protocol violation.
func (c *Codec) Verify(token string) (Claims, error) {
	var claims Claims

	_, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
	)
	if err == nil {
		return claims, nil
	}

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		// Signature verification happens before claim validation, so an
		// expired result implies the token is otherwise authentic.
		return claims, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return Claims{}, ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return Claims{}, ErrIssuer
	default:
		return Claims{}, ErrMalformed
	}
}
