package domain

import "time"

// TokenPair is what a successful login or refresh returns: the short-lived
// access JWT and the single-use refresh token. Not serialized directly;
// handlers own the wire shape and convert ExpiresIn to whole seconds.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// RefreshToken models the stored refresh-token lifecycle record. The raw
// token value is never persisted; TokenHash (base64url SHA-256) is the
// record's lookup key.
//
// A record is active iff !Revoked and ExpiresAt is in the future. Both
// conditions are checked on every read: the store's native expiry is
// best-effort reclamation, never the enforcement point. Revoked only moves
// false to true.
type RefreshToken struct {
	ID         string    `json:"id"`
	TokenHash  string    `json:"tokenHash"`
	UserID     string    `json:"userId"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Revoked    bool      `json:"revoked"`
}

// Active reports whether the record is usable at the given instant.
func (t RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
