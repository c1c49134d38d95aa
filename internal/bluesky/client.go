// Package bluesky is a small XRPC client. It reads the social graph from the
// public AppView and manages the feed generator record on the owner's PDS.
package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

const (
	DefaultPDS       = "https://bsky.social"
	DefaultPublicAPI = "https://public.api.bsky.app"
)

// Client talks XRPC to one service. Use NewClient(DefaultPublicAPI) for
// social graph reads and NewClient(DefaultPDS) for record management.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// populated after Login
	accessJwt string
	did       string
}

// NewClient creates a client for baseURL. If baseURL is empty, it defaults to
// https://bsky.social.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultPDS
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) get(ctx context.Context, method string, params url.Values, result any) error {
	u := c.baseURL + "/xrpc/" + method
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, method, result)
}

func (c *Client) post(ctx context.Context, method string, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/xrpc/"+method, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, method, result)
}

func (c *Client) do(req *http.Request, method string, result any) error {
	if c.accessJwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessJwt)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.ExternalAPIError{Service: method, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.ExternalAPIError{Service: method, Status: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.ExternalAPIError{Service: method, Status: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal %s response: %w", method, err)
		}
	}
	return nil
}
