package token

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the fixed-length hex digest stored and looked up in place of
// the plaintext token. Deterministic and unsalted: tokens are already
// high-entropy random secrets, and a salt would break lookup-by-hash.
func Hash(plaintext string) string {
	digest := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(digest[:])
}
