package domain

import "time"

// SigningKey is a JWT signing key kept in storage so every replica, and
// every restart, signs with the same set.
type SigningKey struct {
	Kid                 string
	Algorithm           string // EdDSA or ES256
	PrivateKeyEncrypted []byte // AES-256-GCM sealed PKCS8 PEM
	CreatedAt           time.Time
}
