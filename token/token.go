// Package token generates and digests the opaque refresh tokens handed to
// clients. Plaintext tokens exist only in memory and in responses; storage
// and lookup always go through the digest.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
)

// DefaultLength is the number of random bytes in a generated token
// (32 bytes = 256 bits).
const DefaultLength = 32

// Pair is what the engine hands back to authentication handlers on issue
// and rotate: a short-lived access token and the plaintext refresh token
// with its absolute expiry.
type Pair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Generate returns a new high-entropy opaque token of length random bytes,
// hex encoded.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}
	tokenBytes := make([]byte, length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "token.Generate rand.Read")
	}
	return hex.EncodeToString(tokenBytes), nil
}
