package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goodtune/focusforge/internal/browser"
	"github.com/goodtune/focusforge/internal/messaging"
	"github.com/goodtune/focusforge/internal/policy"
	"github.com/goodtune/focusforge/internal/policy/opa"
	"github.com/goodtune/focusforge/internal/rules"
	"github.com/goodtune/focusforge/internal/storage/bolt"
	"github.com/goodtune/focusforge/internal/usage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSuggester struct{}

func (stubSuggester) Suggest(ctx context.Context, prompt string) (string, error) {
	return "Put the phone away.", nil
}

func newTestAPI(t *testing.T, config Config) (*httptest.Server, *Client) {
	t.Helper()
	ctx := context.Background()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "focusforge.bolt"))
	require.NoError(t, err)

	registry := browser.NewRegistry()
	tracker := usage.NewTracker(store.Usage(), registry, usage.Config{}, zerolog.Nop())
	require.NoError(t, tracker.Load(ctx))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tracker.Run(runCtx)
	}()

	evaluator, err := policy.NewEngine(opa.Config{}, zerolog.Nop())
	require.NoError(t, err)
	engine, err := rules.NewMemoryEngine(evaluator, 0, zerolog.Nop())
	require.NoError(t, err)
	manager := rules.NewManager(store.Config(), rules.NewSynchronizer(engine, zerolog.Nop()), []string{"youtube.com"}, zerolog.Nop())
	require.NoError(t, manager.Load(ctx))

	router := messaging.NewRouter(messaging.Config{
		Tracker:   tracker,
		Tabs:      registry,
		Blocking:  manager,
		Checker:   engine,
		Suggester: stubSuggester{},
	}, zerolog.Nop())

	if config.AllowedOrigins == nil {
		config.AllowedOrigins = []string{"chrome-extension://*"}
	}
	server := NewServer(config, router, engine, zerolog.Nop())
	ts := httptest.NewServer(server.Handler(config))

	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
		_ = store.Close()
	})

	return ts, NewClient(ts.URL, 5*time.Second)
}

func TestClientRoundTrip(t *testing.T) {
	_, client := newTestAPI(t, Config{})
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))

	cfg, err := client.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"youtube.com"}, cfg.Sites)
	assert.False(t, cfg.ModeEnabled)

	cfg, err = client.AddSite(ctx, "reddit.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"youtube.com", "reddit.com"}, cfg.Sites)

	_, err = client.AddSite(ctx, "reddit.com")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	cfg, err = client.SetStudyMode(ctx, true)
	require.NoError(t, err)
	assert.True(t, cfg.ModeEnabled)

	installed, err := client.Rules(ctx)
	require.NoError(t, err)
	require.Len(t, installed, 2)
	assert.Equal(t, "||reddit.com^", installed[1].Condition.URLFilter)

	check, err := client.Check(ctx, "https://old.reddit.com/r/golang")
	require.NoError(t, err)
	assert.True(t, check.Blocked)
	assert.Equal(t, 2, check.RuleID)

	cfg, err = client.RemoveSite(ctx, "reddit.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"youtube.com"}, cfg.Sites)

	check, err = client.Check(ctx, "https://old.reddit.com/r/golang")
	require.NoError(t, err)
	assert.False(t, check.Blocked)
}

func TestUsageEndpoints(t *testing.T) {
	ts, client := newTestAPI(t, Config{})
	ctx := context.Background()

	post := func(body string) *http.Response {
		resp, err := http.Post(ts.URL+"/v1/message", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	assert.Equal(t, http.StatusOK, post(`{"event":"tabCreated","tab":{"id":3,"windowId":1,"url":"https://example.com/","active":true}}`).StatusCode)
	assert.Equal(t, http.StatusOK, post(`{"event":"tabActivated","tabId":3,"windowId":1}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(`{"event":"tabActivated"}`).StatusCode)

	resp, err := client.Usage(ctx, "today")
	require.NoError(t, err)
	require.Contains(t, resp.UsageData, "example.com")
	assert.Equal(t, int64(1), resp.UsageData["example.com"].Visits)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 1, resp.Summary.UniqueSites)

	_, err = client.Usage(ctx, "forever")
	assert.Error(t, err)

	require.NoError(t, client.ResetUsage(ctx))
	resp, err = client.Usage(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, resp.UsageData)
}

func TestSuggestionEndpointRateLimit(t *testing.T) {
	_, client := newTestAPI(t, Config{SuggestionsPerMinute: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		resp, err := client.Suggest(ctx, "week")
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, "Put the phone away.", resp.Data)
	}

	_, err := client.Suggest(ctx, "week")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestRequestIDAndCORS(t *testing.T) {
	ts, _ := newTestAPI(t, Config{})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/config", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "chrome-extension://abcdefghijklmnop")
	req.Header.Set(RequestIDHeader, "not-a-uuid")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "chrome-extension://abcdefghijklmnop", resp.Header.Get("Access-Control-Allow-Origin"))
	id := resp.Header.Get(RequestIDHeader)
	assert.NotEmpty(t, id)
	assert.NotEqual(t, "not-a-uuid", id)

	req, err = http.NewRequest(http.MethodGet, ts.URL+"/v1/config", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, time.Minute)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("b"))

	now = now.Add(2 * time.Minute)
	assert.True(t, limiter.Allow("a"))
}
