package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashToken returns the deterministic SHA-256 digest of a raw token,
// base64url-encoded (43 chars). Stored records are keyed by this digest so
// the raw token value never touches the store.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
