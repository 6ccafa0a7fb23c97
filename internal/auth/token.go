package auth

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

const refreshTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const refreshTokenLength = 25

// newRefreshTokenString builds the opaque refresh-token secret: 25 random
// alphanumeric characters plus a UUID suffix. The random part makes the value
// unguessable, the UUID guarantees uniqueness across the ledger.
func newRefreshTokenString() (string, error) {
	buf := make([]byte, refreshTokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("refresh token entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = refreshTokenAlphabet[int(b)%len(refreshTokenAlphabet)]
	}
	return string(buf) + "." + uuid.NewString(), nil
}
