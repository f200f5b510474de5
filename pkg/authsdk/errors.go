package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/twostep/pkg/httpx"
)

// OAuth2 error codes (RFC 6749 section 5.2, RFC 6750 section 3) plus the
// mfa_required extension.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeInvalidScope         = "invalid_scope"
	ErrorCodeServerError          = "server_error"
	ErrorCodeInvalidToken         = "invalid_token"
	ErrorCodeInsufficientScope    = "insufficient_scope"
	ErrorCodeMFARequired          = "mfa_required"
)

// OAuth2Error is an RFC 6749 error body paired with its HTTP status. The
// server writes them and the SDK parses them back.
type OAuth2Error struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on Code so callers can write errors.Is(err, authsdk.ErrInvalidGrant)
// against parsed responses.
func (e *OAuth2Error) Is(target error) bool {
	t, ok := target.(*OAuth2Error)
	return ok && t.Code == e.Code
}

// WriteError writes e as the response.
func (e *OAuth2Error) WriteError(w http.ResponseWriter) {
	if e.StatusCode == http.StatusUnauthorized && e.Code == ErrorCodeInvalidClient {
		w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
	}
	httpx.WriteJSON(w, e.StatusCode, e)
}

// WithDescription copies e with a different description.
func (e *OAuth2Error) WithDescription(desc string) *OAuth2Error {
	c := *e
	c.Description = desc
	return &c
}

var (
	ErrInvalidRequest = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	ErrInvalidClient = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidClient,
		Description: "client authentication failed",
	}

	// ErrInvalidGrant covers bad passwords, unknown users, bad or reused
	// mfa_tokens and wrong codes alike. The description never says which.
	ErrInvalidGrant = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidGrant,
		Description: "the provided grant is invalid or expired",
	}

	ErrUnsupportedGrantType = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnsupportedGrantType,
		Description: "grant type not supported",
	}

	ErrInvalidScope = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidScope,
		Description: "requested scope is invalid",
	}

	ErrServerError = &OAuth2Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	ErrMethodNotAllowed = &OAuth2Error{
		StatusCode:  http.StatusMethodNotAllowed,
		Code:        ErrorCodeInvalidRequest,
		Description: "method not allowed",
	}

	ErrInvalidContentType = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "content-type must be application/x-www-form-urlencoded",
	}

	ErrInvalidToken = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the access token is missing, invalid or expired",
	}
)

// MFARequiredError is the outcome of a correct password for an account with
// a second factor. It is sent as 403 and carries the mfa_token needed for the
// follow-up grant_type=mfa request.
type MFARequiredError struct {
	MFAToken  string   `json:"mfa_token"`
	Methods   []string `json:"mfa_methods"`
	ExpiresIn int      `json:"expires_in"`
}

func (e *MFARequiredError) Error() string {
	return fmt.Sprintf("mfa required: methods=%v", e.Methods)
}

func (e *MFARequiredError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusForbidden, mfaRequiredBody{
		Error:            ErrorCodeMFARequired,
		ErrorDescription: "multi-factor authentication required",
		MFARequiredError: *e,
	})
}

type mfaRequiredBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	MFARequiredError
}

// parseErrorResponse turns a non-2xx response into *MFARequiredError or
// *OAuth2Error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode == http.StatusForbidden {
		var m mfaRequiredBody
		if err := json.Unmarshal(body, &m); err == nil &&
			m.Error == ErrorCodeMFARequired && m.MFAToken != "" {
			return &m.MFARequiredError
		}
	}

	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return &OAuth2Error{
			StatusCode:  resp.StatusCode,
			Code:        e.Error,
			Description: e.ErrorDescription,
		}
	}

	return &OAuth2Error{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
