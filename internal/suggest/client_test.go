package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestSuggestSendsPromptAndKey(t *testing.T) {
	var (
		gotKey  string
		gotBody generateRequest
	)
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotKey = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Take "},{"text":"a break."}]}}]}`))
	})

	client := NewClient(Config{Endpoint: server.URL, APIKey: "k123"}, zerolog.Nop())
	text, err := client.Suggest(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, "Take a break.", text)
	assert.Equal(t, "k123", gotKey)
	require.Len(t, gotBody.Contents, 1)
	require.Len(t, gotBody.Contents[0].Parts, 1)
	assert.Equal(t, "hello", gotBody.Contents[0].Parts[0].Text)
}

func TestSuggestCustomHeader(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"output_text":"ok"}`))
	})

	client := NewClient(Config{Endpoint: server.URL, APIKey: "Bearer k", APIKeyHeader: "Authorization"}, zerolog.Nop())
	text, err := client.Suggest(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestSuggestErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unknown schema", http.StatusOK, `{"result":"hi"}`, ErrUnrecognizedSchema},
		{"not json", http.StatusOK, `<html>`, ErrUnrecognizedSchema},
		{"wrong variant type", http.StatusOK, `{"candidates":"nope"}`, ErrUnrecognizedSchema},
		{"empty candidates", http.StatusOK, `{"candidates":[]}`, ErrEmptyResponse},
		{"blank choice", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`, ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			client := NewClient(Config{Endpoint: server.URL, APIKey: "k"}, zerolog.Nop())

			_, err := client.Suggest(context.Background(), "p")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSuggestChoicesSchema(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Close the tab."}}]}`))
	})
	client := NewClient(Config{Endpoint: server.URL, APIKey: "k"}, zerolog.Nop())

	text, err := client.Suggest(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "Close the tab.", text)
}

func TestSuggestHTTPError(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})
	client := NewClient(Config{Endpoint: server.URL, APIKey: "k"}, zerolog.Nop())

	_, err := client.Suggest(context.Background(), "p")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	assert.Equal(t, "quota exceeded", httpErr.Body)
}

func TestSuggestTimeout(t *testing.T) {
	release := make(chan struct{})
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	client := NewClient(Config{Endpoint: server.URL, APIKey: "k", Timeout: 50 * time.Millisecond}, zerolog.Nop())
	_, err := client.Suggest(context.Background(), "p")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSuggestNotConfigured(t *testing.T) {
	client := NewClient(Config{Endpoint: "http://127.0.0.1:1"}, zerolog.Nop())
	assert.False(t, client.Configured())

	_, err := client.Suggest(context.Background(), "p")
	assert.ErrorIs(t, err, ErrNotConfigured)

	configured := NewClient(Config{Endpoint: "http://127.0.0.1:1", APIKey: "k"}, zerolog.Nop())
	_, err = configured.Suggest(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}
