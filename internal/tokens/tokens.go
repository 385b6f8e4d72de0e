package tokens

import (
	"crypto/rand"
	"encoding/hex"
)

// NewAccessToken mints an opaque bearer credential for the recipient signing
// surface. 32 random bytes keeps the token unguessable; it is never derived
// from recipient data so a resend always produces a fresh, unrelated value.
func NewAccessToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
