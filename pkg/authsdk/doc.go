/*
Package authsdk is a Go client for the twostep token service.

Accounts without a second factor get tokens straight from the password
grant. Accounts with TOTP enabled get an *MFARequiredError instead, whose
MFAToken is exchanged together with a six digit code:

	c := authsdk.NewSDKClient("https://auth.example.com", "web", "")

	tok, err := c.PasswordGrant(ctx, "john", "pass", nil)
	var mfa *authsdk.MFARequiredError
	if errors.As(err, &mfa) {
		tok, err = c.MFAGrant(ctx, mfa.MFAToken, code, nil)
	}

The mfa_token is single use and short lived. A wrong code burns it and the
caller must start again with the password.

AuthenticateWithPassword wraps both steps and returns a Session that renews
its access token with the refresh grant:

	s, err := c.AuthenticateWithPassword(ctx, "john", "pass", nil,
		func(ctx context.Context, _ *authsdk.MFARequiredError) (string, error) {
			return readCode(ctx)
		})
	info, err := s.UserInfo(ctx)

Errors from the server are *OAuth2Error values and compare with errors.Is
against the exported sentinels, e.g. errors.Is(err, authsdk.ErrInvalidGrant).

Resource servers can verify access tokens locally with SyncKeySet and
jwtx.NewVerifier, and must refuse tokens whose authorities are PRE_AUTH;
httpx.AuthnMiddleware does this.
*/
package authsdk
