// Package suggest asks a remote text-generation service for productivity
// advice based on the user's browsing statistics.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goodtune/focusforge/internal/metrics"
	"github.com/rs/zerolog"
)

var (
	// ErrNotConfigured is returned when no API key or endpoint is set.
	ErrNotConfigured = errors.New("suggest: not configured")

	// ErrTimeout is returned when the remote call exceeds the timeout.
	ErrTimeout = errors.New("suggest: request timed out")

	// ErrUnrecognizedSchema is returned when the response matches no known schema.
	ErrUnrecognizedSchema = errors.New("suggest: unrecognized response schema")

	// ErrEmptyResponse is returned when a known schema carries no text.
	ErrEmptyResponse = errors.New("suggest: response contained no text")

	// ErrEmptyPrompt is returned for a blank prompt.
	ErrEmptyPrompt = errors.New("suggest: empty prompt")
)

// HTTPError is returned for a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("suggest: remote returned %d: %s", e.StatusCode, e.Body)
}

const (
	// DefaultTimeout bounds one remote call
	DefaultTimeout = 20 * time.Second

	// DefaultAPIKeyHeader carries the API key
	DefaultAPIKeyHeader = "x-goog-api-key"

	maxErrorBody    = 512
	maxResponseBody = 1 << 20
)

// Config holds client configuration
type Config struct {
	Endpoint     string
	APIKey       string
	APIKeyHeader string
	Timeout      time.Duration
}

// Client performs text-generation calls
type Client struct {
	config     Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new suggestion client
func NewClient(config Config, logger zerolog.Logger) *Client {
	if config.APIKeyHeader == "" {
		config.APIKeyHeader = DefaultAPIKeyHeader
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{},
		logger:     logger.With().Str("component", "suggest").Logger(),
	}
}

// Configured reports whether the client has an endpoint and API key.
func (c *Client) Configured() bool {
	return c.config.Endpoint != "" && c.config.APIKey != ""
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// Suggest sends prompt and returns the generated text.
func (c *Client) Suggest(ctx context.Context, prompt string) (string, error) {
	text, err := c.suggest(ctx, prompt)
	metrics.Suggestions.WithLabelValues(resultLabel(err)).Inc()
	return text, err
}

func (c *Client) suggest(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.SuggestionDuration.Observe(time.Since(startTime).Seconds())
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.config.Timeout)
		}
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.config.Timeout)
		}
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(respBody)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(snippet)}
	}

	text, err := decodeResponse(respBody)
	if err != nil {
		c.logger.Warn().Err(err).Int("bytes", len(respBody)).Msg("Could not extract suggestion text")
		return "", err
	}

	c.logger.Debug().
		Dur("duration", time.Since(startTime)).
		Int("chars", len(text)).
		Msg("Suggestion received")

	return text, nil
}

func resultLabel(err error) string {
	var httpErr *HTTPError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnrecognizedSchema):
		return "unrecognized_schema"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	case errors.As(err, &httpErr):
		return "http_error"
	default:
		return "error"
	}
}
