package authsdk

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// refreshSkew renews access tokens this long before they expire.
const refreshSkew = 30 * time.Second

// OTPPrompt supplies the current TOTP code when the server asks for one.
type OTPPrompt func(ctx context.Context, challenge *MFARequiredError) (string, error)

// Session holds a token pair and refreshes the access token on demand.
type Session struct {
	client *SDKClient

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	scopes       []string
}

// AuthenticateWithPassword runs the password grant and, if the account has a
// second factor, the MFA grant with the code from prompt. A nil prompt turns
// an MFA challenge into an error.
func (c *SDKClient) AuthenticateWithPassword(
	ctx context.Context,
	username, password string,
	scopes []string,
	prompt OTPPrompt,
) (*Session, error) {
	tok, err := c.PasswordGrant(ctx, username, password, scopes)

	var mfa *MFARequiredError
	if errors.As(err, &mfa) {
		if prompt == nil {
			return nil, err
		}
		code, perr := prompt(ctx, mfa)
		if perr != nil {
			return nil, fmt.Errorf("authsdk: otp prompt: %w", perr)
		}
		tok, err = c.MFAGrant(ctx, mfa.MFAToken, code, nil)
	}
	if err != nil {
		return nil, err
	}

	return c.NewSession(tok), nil
}

// NewSession wraps an existing token response.
func (c *SDKClient) NewSession(tok *TokenResponse) *Session {
	s := &Session{client: c}
	s.apply(tok)
	return s
}

func (s *Session) apply(tok *TokenResponse) {
	s.accessToken = tok.AccessToken
	s.refreshToken = tok.RefreshToken
	s.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - refreshSkew)
	s.scopes = strings.Fields(tok.Scope)
}

// Token returns a usable access token, refreshing first if it is stale.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if s.refreshToken == "" {
		return "", errors.New("authsdk: access token expired and no refresh token")
	}

	tok, err := s.client.RefreshGrant(ctx, s.refreshToken, nil)
	if err != nil {
		return "", fmt.Errorf("authsdk: refresh: %w", err)
	}
	s.apply(tok)
	return s.accessToken, nil
}

// UserInfo calls /v1/userinfo with the session's token.
func (s *Session) UserInfo(ctx context.Context) (*UserInfoResponse, error) {
	tok, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.UserInfo(ctx, tok)
}

// Revoke invalidates the session's refresh token.
func (s *Session) Revoke(ctx context.Context) error {
	s.mu.Lock()
	rt := s.refreshToken
	s.refreshToken = ""
	s.mu.Unlock()

	if rt == "" {
		return errors.New("authsdk: no refresh token to revoke")
	}
	return s.client.RevokeToken(ctx, rt, "refresh_token")
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

// HasScope reports whether scope was granted.
func (s *Session) HasScope(scope string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.scopes, scope)
}
