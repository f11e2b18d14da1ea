package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashRefreshToken is deterministic so the ledger can look records up by
// hash. It is not suitable for passwords.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
