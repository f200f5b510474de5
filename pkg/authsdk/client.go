package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Grant types accepted by the token endpoint.
const (
	GrantTypePassword     = "password"
	GrantTypeMFA          = "mfa"
	GrantTypeRefreshToken = "refresh_token"
)

// SDKClient talks to the token service on behalf of one OAuth2 client.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// ClientID and ClientSecret are sent with every grant. Both may be
	// empty for an anonymous public client.
	ClientID     string
	ClientSecret string
}

// NewSDKClient returns a client with a 10 second HTTP timeout.
func NewSDKClient(baseURL, clientID, clientSecret string) *SDKClient {
	return &SDKClient{
		BaseURL:      strings.TrimSuffix(baseURL, "/"),
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
}

// PasswordGrant performs step one. For MFA accounts the returned error is
// *MFARequiredError; pass it to MFAGrant with the user's code.
func (c *SDKClient) PasswordGrant(ctx context.Context, username, password string, scopes []string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type": {GrantTypePassword},
		"username":   {username},
		"password":   {password},
	}
	return c.requestToken(ctx, form, scopes)
}

// MFAGrant performs step two with the mfa_token from step one.
func (c *SDKClient) MFAGrant(ctx context.Context, mfaToken, code string, scopes []string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type": {GrantTypeMFA},
		"mfa_token":  {mfaToken},
		"mfa_code":   {code},
	}
	return c.requestToken(ctx, form, scopes)
}

// RefreshGrant rotates refreshToken. The old value stops working.
func (c *SDKClient) RefreshGrant(ctx context.Context, refreshToken string, scopes []string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {GrantTypeRefreshToken},
		"refresh_token": {refreshToken},
	}
	return c.requestToken(ctx, form, scopes)
}

// RevokeToken revokes a refresh token or an unused mfa_token. hint may be
// "refresh_token", "mfa_token" or empty.
func (c *SDKClient) RevokeToken(ctx context.Context, token, hint string) error {
	form := url.Values{"token": {token}}
	if hint != "" {
		form.Set("token_type_hint", hint)
	}
	c.addClient(form)

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/oauth2/revoke",
		strings.NewReader(form.Encode()), formHeaders)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusOK)
}

// Introspect asks about token, authenticating with accessToken.
func (c *SDKClient) Introspect(ctx context.Context, accessToken, token string) (*IntrospectionResponse, error) {
	form := url.Values{"token": {token}}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/oauth2/introspect",
		strings.NewReader(form.Encode()), map[string]string{
			"Content-Type":  "application/x-www-form-urlencoded",
			"Authorization": "Bearer " + accessToken,
		})
	if err != nil {
		return nil, err
	}

	var out IntrospectionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserInfo fetches the profile of the access token's subject.
func (c *SDKClient) UserInfo(ctx context.Context, accessToken string) (*UserInfoResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/userinfo", nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	if err != nil {
		return nil, err
	}

	var out UserInfoResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

var formHeaders = map[string]string{"Content-Type": "application/x-www-form-urlencoded"}

func (c *SDKClient) addClient(form url.Values) {
	if c.ClientID != "" {
		form.Set("client_id", c.ClientID)
	}
	if c.ClientSecret != "" {
		form.Set("client_secret", c.ClientSecret)
	}
}

func (c *SDKClient) requestToken(ctx context.Context, form url.Values, scopes []string) (*TokenResponse, error) {
	c.addClient(form)
	if len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/oauth2/token",
		strings.NewReader(form.Encode()), formHeaders)
	if err != nil {
		return nil, err
	}

	var out TokenResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
