package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash returns the hex SHA-256 of the given fields joined with "|".
// The same fields in the same order always produce the same hash, which is
// what makes repeated persistence of an unchanged entry a no-op.
func ContentHash(fields ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}
