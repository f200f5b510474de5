package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Raw entropy sizes, in bytes, accepted by GenerateToken.
const (
	TokenSize128 = 16 // 22 chars once encoded
	TokenSize256 = 32 // 43 chars once encoded
)

// GenerateToken returns size bytes from crypto/rand, base64url encoded
// without padding. Refresh tokens and mfa_tokens both come from here.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("cryptox: token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken is the SHA-256 of token, base64url encoded. Stores only
// ever see fingerprints, never the bearer value itself.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
