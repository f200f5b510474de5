package domain

import "time"

type User struct {
	ID           string
	Username     string
	PasswordHash string   // argon2id PHC or bcrypt
	Authorities  []string // e.g. ROLE_USER; never PRE_AUTH
	MFAEnabled   *time.Time
	MFASecret    *string // base32 TOTP secret, set iff MFAEnabled is
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasMFA reports whether the account requires a second factor. The enabled
// flag alone decides; a missing secret makes the second step fail instead.
func (u User) HasMFA() bool {
	return u.MFAEnabled != nil
}

// TOTPSecret returns the secret, or "" when MFA is off or none is stored.
func (u User) TOTPSecret() string {
	if !u.HasMFA() || u.MFASecret == nil {
		return ""
	}
	return *u.MFASecret
}
