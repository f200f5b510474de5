package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

func (c *SDKClient) doRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("authsdk: build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("authsdk: send request: %w", err)
	}
	return resp, nil
}

// decodeJSON reads resp into target, or returns the typed error body when
// the status is not want.
func decodeJSON(resp *http.Response, target any, want int) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("authsdk: read body: %w", err)
	}
	if resp.StatusCode != want {
		return parseErrorResponse(resp, body)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("authsdk: decode body: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response, want int) error {
	defer resp.Body.Close()

	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		return parseErrorResponse(resp, body)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
