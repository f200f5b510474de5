package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP parameters shared by every enrolled authenticator app.
const (
	TOTPPeriod = 30
	TOTPSkew   = 1
	TOTPDigits = otp.DigitsSix
)

// CodeVerifier checks a one-time code against a user's secret.
type CodeVerifier interface {
	VerifyCode(secret, code string, now time.Time) (bool, error)
}

// TOTPVerifier checks RFC 6238 codes (HMAC-SHA1, 30 s step, 6 digits),
// accepting the previous and next step to absorb clock drift.
type TOTPVerifier struct{}

var _ CodeVerifier = TOTPVerifier{}

// VerifyCode reports whether code matches secret at now. A code that is not
// exactly six digits yields ErrInvalidCode; an undecodable secret yields an
// error wrapping ErrInvalidSecret.
func (TOTPVerifier) VerifyCode(secret, code string, now time.Time) (bool, error) {
	code = strings.TrimSpace(code)
	if !isDigits(code, TOTPDigits.Length()) {
		return false, ErrInvalidCode
	}

	secret = strings.TrimSpace(secret)
	if secret == "" {
		return false, fmt.Errorf("%w: empty", ErrInvalidSecret)
	}

	ok, err := totp.ValidateCustom(code, secret, now.UTC(), totp.ValidateOpts{
		Period:    TOTPPeriod,
		Skew:      TOTPSkew,
		Digits:    TOTPDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return ok, nil
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
