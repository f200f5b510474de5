package authsdk

import "github.com/aussiebroadwan/twostep/pkg/jwtx"

// ErrorResponse is the RFC 6749 error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// TokenResponse is the body of a successful token request.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

// IntrospectionResponse follows RFC 7662. Inactive tokens carry only
// Active=false. Intermediate MFA tokens come back with TokenType
// "mfa_token" and Authorities ["PRE_AUTH"].
type IntrospectionResponse struct {
	Active      bool     `json:"active"`
	Scope       string   `json:"scope,omitempty"`
	ClientID    string   `json:"client_id,omitempty"`
	Username    string   `json:"username,omitempty"`
	TokenType   string   `json:"token_type,omitempty"`
	Authorities []string `json:"authorities,omitempty"`
	Exp         int64    `json:"exp,omitempty"`
	Iat         int64    `json:"iat,omitempty"`
	Sub         string   `json:"sub,omitempty"`
	Aud         []string `json:"aud,omitempty"`
	Iss         string   `json:"iss,omitempty"`
	Jti         string   `json:"jti,omitempty"`
	SessionID   string   `json:"sid,omitempty"`
	AMR         []string `json:"amr,omitempty"`
}

// UserInfoResponse is returned by GET /v1/userinfo.
type UserInfoResponse struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	Authorities []string `json:"authorities"`
	AMR         []string `json:"amr,omitempty"`
	MFA         bool     `json:"mfa"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each dependency as "ok" or an error string.
type HealthChecks struct {
	Database   string `json:"database"`
	Signer     string `json:"signer"`
	Challenges string `json:"challenges"`
}

// JWKSResponse is the document at /.well-known/jwks.json.
type JWKSResponse jwtx.JWKS
