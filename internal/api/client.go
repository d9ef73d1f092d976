package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goodtune/focusforge/internal/messaging"
	"github.com/goodtune/focusforge/internal/policy"
)

// Client talks to a running daemon's API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the daemon at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx API response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var status messaging.StatusResponse
		if json.Unmarshal(data, &status) == nil && status.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: status.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Health checks the daemon is up
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Usage fetches usage records for a range, with the aggregated summary
func (c *Client) Usage(ctx context.Context, rng string) (*messaging.UsageResponse, error) {
	q := url.Values{}
	if rng != "" {
		q.Set("range", rng)
	}
	q.Set("summary", "true")

	var resp messaging.UsageResponse
	if err := c.do(ctx, http.MethodGet, "/v1/usage?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResetUsage clears all usage data
func (c *Client) ResetUsage(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/usage", nil, nil)
}

// Config fetches the block configuration
func (c *Client) Config(ctx context.Context) (*messaging.ConfigResponse, error) {
	var resp messaging.ConfigResponse
	if err := c.do(ctx, http.MethodGet, "/v1/config", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetStudyMode turns study mode on or off
func (c *Client) SetStudyMode(ctx context.Context, enabled bool) (*messaging.ConfigResponse, error) {
	var resp messaging.ConfigResponse
	if err := c.do(ctx, http.MethodPut, "/v1/config", configUpdate{ModeEnabled: &enabled}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddSite adds a site to the block list
func (c *Client) AddSite(ctx context.Context, site string) (*messaging.ConfigResponse, error) {
	var resp messaging.ConfigResponse
	if err := c.do(ctx, http.MethodPost, "/v1/config/sites", map[string]string{"site": site}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RemoveSite removes a site from the block list
func (c *Client) RemoveSite(ctx context.Context, site string) (*messaging.ConfigResponse, error) {
	var resp messaging.ConfigResponse
	if err := c.do(ctx, http.MethodDelete, "/v1/config/sites/"+url.PathEscape(site), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Check asks whether a URL would be blocked
func (c *Client) Check(ctx context.Context, rawURL string) (*messaging.BlockedResponse, error) {
	var resp messaging.BlockedResponse
	if err := c.do(ctx, http.MethodGet, "/v1/check?url="+url.QueryEscape(rawURL), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Rules lists the installed rules
func (c *Client) Rules(ctx context.Context) ([]policy.Rule, error) {
	var resp struct {
		Rules []policy.Rule `json:"rules"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/rules", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rules, nil
}

// Suggest requests an AI suggestion built from usage in rng
func (c *Client) Suggest(ctx context.Context, rng string) (*messaging.SuggestionResponse, error) {
	var resp messaging.SuggestionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/suggestion", map[string]string{"range": rng}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
