package authsdk

import (
	"context"
	"net/http"
)

// GetLiveness calls /livez.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness calls /readyz. A 503 comes back as an *OAuth2Error.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var h HealthResponse
	if err := decodeJSON(resp, &h, http.StatusOK); err != nil {
		return nil, err
	}
	return &h, nil
}
