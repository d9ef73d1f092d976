// Package messaging dispatches extension messages to the daemon's
// components. It is shared by the native-messaging host and the HTTP API.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goodtune/focusforge/internal/browser"
	"github.com/goodtune/focusforge/internal/metrics"
	"github.com/goodtune/focusforge/internal/policy"
	"github.com/goodtune/focusforge/internal/rules"
	"github.com/goodtune/focusforge/internal/storage"
	"github.com/goodtune/focusforge/internal/suggest"
	"github.com/goodtune/focusforge/internal/usage"
	"github.com/rs/zerolog"
)

// Status strings returned to the extension
const (
	StatusUnknown       = "Unknown message"
	StatusContentActive = "Content script is active"
	StatusOK            = "ok"
	StatusError         = "error"
)

// Suggester produces AI suggestions
type Suggester interface {
	Suggest(ctx context.Context, prompt string) (string, error)
}

// BlockChecker answers whether a request is blocked
type BlockChecker interface {
	Check(ctx context.Context, req policy.Request) policy.Decision
}

// Router dispatches messages. It holds no state of its own.
type Router struct {
	tracker   *usage.Tracker
	tabs      *browser.Registry
	blocking  *rules.Manager
	checker   BlockChecker
	suggester Suggester
	clock     usage.Clock
	maxSites  int
	logger    zerolog.Logger
}

// Config holds router collaborators
type Config struct {
	Tracker   *usage.Tracker
	Tabs      *browser.Registry
	Blocking  *rules.Manager
	Checker   BlockChecker
	Suggester Suggester
	Clock     usage.Clock
	MaxSites  int
}

// NewRouter creates a new router
func NewRouter(config Config, logger zerolog.Logger) *Router {
	if config.Clock == nil {
		config.Clock = usage.RealClock{}
	}
	return &Router{
		tracker:   config.Tracker,
		tabs:      config.Tabs,
		blocking:  config.Blocking,
		checker:   config.Checker,
		suggester: config.Suggester,
		clock:     config.Clock,
		maxSites:  config.MaxSites,
		logger:    logger.With().Str("component", "router").Logger(),
	}
}

// HandleJSON decodes a raw message and dispatches it. The result is always
// a response value; failures are reported inside it.
func (r *Router) HandleJSON(ctx context.Context, transport string, raw []byte) interface{} {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		metrics.MessagesTotal.WithLabelValues("invalid", transport).Inc()
		return StatusResponse{Status: StatusError, Error: fmt.Sprintf("invalid message: %v", err)}
	}
	return r.Handle(ctx, transport, req)
}

// Handle dispatches one message.
func (r *Router) Handle(ctx context.Context, transport string, req Request) interface{} {
	kind := r.kind(req)
	metrics.MessagesTotal.WithLabelValues(kind, transport).Inc()

	r.logger.Debug().Str("kind", kind).Str("transport", transport).Msg("Handling message")

	switch kind {
	case "event":
		return r.handleEvent(ctx, req)
	case "suggestion":
		return r.handleSuggestion(ctx, req)
	case "content_check":
		return StatusResponse{Status: StatusContentActive}
	case "check_blocked":
		return r.handleCheckBlocked(ctx, req)
	case "get_config":
		return configResponse(StatusOK, r.blocking.Current())
	case "reset_usage":
		return r.handleResetUsage(ctx)
	case "usage":
		return r.handleUsageQuery(ctx, req)
	case "config":
		return r.handleConfig(ctx, req)
	default:
		return StatusResponse{Status: StatusUnknown}
	}
}

func (r *Router) kind(req Request) string {
	switch {
	case req.Event != "":
		return "event"
	case req.Action == ActionFetchSuggestion:
		return "suggestion"
	case req.Action == ActionContentCheck:
		return "content_check"
	case req.Action == ActionCheckBlocked:
		return "check_blocked"
	case req.Action == ActionGetConfig:
		return "get_config"
	case req.Action == ActionResetUsage:
		return "reset_usage"
	case req.Action != "":
		return "unknown"
	case req.isUsageQuery():
		return "usage"
	case req.isConfig():
		return "config"
	default:
		return "unknown"
	}
}

func (r *Router) handleConfig(ctx context.Context, req Request) interface{} {
	var (
		cfg     storage.BlockConfig
		err     error
		changes []string
	)

	err = func() error {
		sites := req.Sites
		if sites == nil {
			sites = req.BlockedSites
		}
		if sites != nil {
			if cfg, err = r.blocking.SetSites(ctx, *sites); err != nil {
				return err
			}
			changes = append(changes, "sites updated")
		}

		if req.AddSite != "" {
			if cfg, err = r.blocking.AddSite(ctx, req.AddSite); err != nil {
				return err
			}
			changes = append(changes, "site added")
		}

		if req.RemoveSite != "" {
			if cfg, err = r.blocking.RemoveSite(ctx, req.RemoveSite); err != nil {
				return err
			}
			changes = append(changes, "site removed")
		}

		mode := req.ModeEnabled
		if mode == nil {
			mode = req.StudyMode
		}
		if mode != nil {
			if cfg, err = r.blocking.SetStudyMode(ctx, *mode); err != nil {
				return err
			}
			changes = append(changes, fmt.Sprintf("study mode set to %t", *mode))
		}
		return nil
	}()

	if err != nil {
		r.logger.Warn().Err(err).Msg("Config update failed")
		return StatusResponse{Status: StatusError, Error: err.Error()}
	}

	status := StatusOK
	if len(changes) > 0 {
		status = changes[0]
		for _, c := range changes[1:] {
			status += ", " + c
		}
	}
	return configResponse(status, cfg)
}

func configResponse(status string, cfg storage.BlockConfig) ConfigResponse {
	sites := cfg.Sites
	if sites == nil {
		sites = []string{}
	}
	return ConfigResponse{Status: status, Sites: sites, ModeEnabled: cfg.StudyModeEnabled}
}

func (r *Router) handleUsageQuery(ctx context.Context, req Request) interface{} {
	rng, err := usage.ParseRange(req.Range)
	if err != nil {
		return StatusResponse{Status: StatusError, Error: err.Error()}
	}

	records, err := r.tracker.Snapshot(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Usage snapshot failed")
		return StatusResponse{Status: StatusError, Error: err.Error()}
	}

	now := r.clock.Now()
	resp := UsageResponse{UsageData: usage.Filter(records, now, rng)}
	if req.Summary {
		summary := usage.Summarize(records, now, rng)
		resp.Summary = &summary
	}
	return resp
}

func (r *Router) handleResetUsage(ctx context.Context) interface{} {
	if err := r.tracker.Reset(ctx); err != nil {
		return StatusResponse{Status: StatusError, Error: err.Error()}
	}
	return StatusResponse{Status: "usage data cleared"}
}

func (r *Router) handleSuggestion(ctx context.Context, req Request) interface{} {
	if r.suggester == nil {
		return SuggestionResponse{Error: suggest.ErrNotConfigured.Error()}
	}

	prompt := req.Prompt
	if prompt == "" {
		records, err := r.tracker.Snapshot(ctx)
		if err != nil {
			return SuggestionResponse{Error: err.Error()}
		}
		rng, err := usage.ParseRange(req.Range)
		if err != nil {
			return SuggestionResponse{Error: err.Error()}
		}
		cfg := r.blocking.Current()
		prompt = suggest.BuildPrompt(usage.Summarize(records, r.clock.Now(), rng), cfg.Sites, cfg.StudyModeEnabled, r.maxSites)
	}

	text, err := r.suggester.Suggest(ctx, prompt)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Suggestion failed")
		return SuggestionResponse{Error: err.Error()}
	}
	return SuggestionResponse{Success: true, Data: text}
}

func (r *Router) handleCheckBlocked(ctx context.Context, req Request) interface{} {
	if req.URL == "" {
		return StatusResponse{Status: StatusError, Error: "url is required"}
	}
	decision := r.checker.Check(ctx, policy.Request{URL: req.URL, ResourceType: policy.ResourceMainFrame})
	return BlockedResponse{
		Blocked: decision.Blocked,
		Host:    decision.Host,
		RuleID:  decision.RuleID,
		Reason:  decision.Reason,
	}
}

var errMissingField = errors.New("missing field")

func (r *Router) handleEvent(ctx context.Context, req Request) interface{} {
	if err := r.applyEvent(ctx, req); err != nil {
		r.logger.Debug().Err(err).Str("event", req.Event).Msg("Browser event not applied")
		return StatusResponse{Status: StatusError, Error: err.Error()}
	}
	return StatusResponse{Status: StatusOK}
}

func (r *Router) applyEvent(ctx context.Context, req Request) error {
	if req.Tab != nil {
		tab := *req.Tab
		if req.Status != "" {
			tab.Status = req.Status
		}
		r.tabs.Upsert(tab)
	}

	switch req.Event {
	case EventTabCreated:
		if req.Tab == nil {
			return fmt.Errorf("%s: %w: tab", req.Event, errMissingField)
		}
		return nil

	case EventTabActivated:
		tabID, err := tabIDOf(req)
		if err != nil {
			return err
		}
		if req.WindowID != nil {
			r.tabs.Activate(tabID, *req.WindowID)
		} else if tab, err := r.tabs.GetTab(ctx, tabID); err == nil {
			r.tabs.Activate(tabID, tab.WindowID)
		}
		return r.tracker.TabActivated(ctx, tabID)

	case EventTabUpdated:
		tabID, err := tabIDOf(req)
		if err != nil {
			return err
		}
		status := req.Status
		if status == "" && req.Tab != nil {
			status = req.Tab.Status
		}
		return r.tracker.TabUpdated(ctx, tabID, status)

	case EventWindowFocusChanged:
		if req.WindowID == nil {
			return fmt.Errorf("%s: %w: windowId", req.Event, errMissingField)
		}
		r.tabs.SetFocusedWindow(*req.WindowID)
		return r.tracker.WindowFocusChanged(ctx, *req.WindowID)

	case EventTabRemoved:
		tabID, err := tabIDOf(req)
		if err != nil {
			return err
		}
		// The tracker must see the tab before it is forgotten
		err = r.tracker.TabRemoved(ctx, tabID)
		r.tabs.Remove(tabID)
		return err

	default:
		return fmt.Errorf("unknown event %q", req.Event)
	}
}

func tabIDOf(req Request) (int, error) {
	if req.TabID != nil {
		return *req.TabID, nil
	}
	if req.Tab != nil {
		return req.Tab.ID, nil
	}
	return 0, fmt.Errorf("%s: %w: tabId", req.Event, errMissingField)
}
