package authsdk

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

// GetJWKS fetches the issuer's public signing keys.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/jwks.json", nil, nil)
	if err != nil {
		return nil, err
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}
	return &jwks, nil
}

// SyncKeySet loads the issuer's JWKS into keys, for resource servers that
// verify access tokens locally.
func (c *SDKClient) SyncKeySet(ctx context.Context, keys *jwtx.KeySet) error {
	jwks, err := c.GetJWKS(ctx)
	if err != nil {
		return err
	}
	return keys.ResetFromJWKS(jwtx.JWKS(*jwks))
}
