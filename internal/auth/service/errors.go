package service

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/twostep/pkg/authsdk"
)

var (
	ErrInvalidCredentials   = errors.New("invalid_credentials")
	ErrInvalidRequest       = errors.New("invalid_request")
	ErrInvalidGrant         = errors.New("invalid_grant")
	ErrInvalidClient        = errors.New("invalid_client")
	ErrInvalidScope         = errors.New("invalid_scope")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")

	// Both refine ErrInvalidGrant so the HTTP layer answers them alike.
	ErrInvalidOrExpiredToken = fmt.Errorf("%w: invalid or expired token", ErrInvalidGrant)
	ErrInvalidCode           = fmt.Errorf("%w: invalid code", ErrInvalidGrant)

	// ErrInvalidSecret reports a stored TOTP secret that cannot be decoded.
	ErrInvalidSecret = errors.New("invalid totp secret")
)

// MFARequiredError is returned by the password grant for accounts with a
// second factor.
type MFARequiredError = authsdk.MFARequiredError
