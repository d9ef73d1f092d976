package messaging

import (
	"github.com/goodtune/focusforge/internal/browser"
	"github.com/goodtune/focusforge/internal/storage"
	"github.com/goodtune/focusforge/internal/usage"
)

// Browser event names carried in Request.Event
const (
	EventTabActivated       = "tabActivated"
	EventTabUpdated         = "tabUpdated"
	EventTabCreated         = "tabCreated"
	EventTabRemoved         = "tabRemoved"
	EventWindowFocusChanged = "windowFocusChanged"
)

// Actions carried in Request.Action
const (
	ActionFetchSuggestion = "fetchSuggestion"
	ActionContentCheck    = "contentCheck"
	ActionCheckBlocked    = "checkBlocked"
	ActionGetConfig       = "getConfig"
	ActionResetUsage      = "resetUsage"
)

// Request is any message the extension or CLI can send. The fields present
// select the kind of message.
type Request struct {
	// Config control
	Sites       *[]string `json:"sites,omitempty"`
	ModeEnabled *bool     `json:"modeEnabled,omitempty"`
	AddSite     string    `json:"addSite,omitempty"`
	RemoveSite  string    `json:"removeSite,omitempty"`

	// Older extension builds send these instead of sites/modeEnabled
	BlockedSites *[]string `json:"blockedSites,omitempty"`
	StudyMode    *bool     `json:"studyMode,omitempty"`

	// Usage query
	QueryUsage   bool   `json:"queryUsage,omitempty"`
	GetUsageData bool   `json:"getUsageData,omitempty"`
	Range        string `json:"range,omitempty"`
	Summary      bool   `json:"summary,omitempty"`

	// Actions
	Action string `json:"action,omitempty"`
	Prompt string `json:"prompt,omitempty"`
	URL    string `json:"url,omitempty"`

	// Browser events
	Event    string       `json:"event,omitempty"`
	Tab      *browser.Tab `json:"tab,omitempty"`
	TabID    *int         `json:"tabId,omitempty"`
	WindowID *int         `json:"windowId,omitempty"`
	Status   string       `json:"status,omitempty"`
}

func (r Request) isConfig() bool {
	return r.Sites != nil || r.ModeEnabled != nil || r.BlockedSites != nil ||
		r.StudyMode != nil || r.AddSite != "" || r.RemoveSite != ""
}

func (r Request) isUsageQuery() bool {
	return r.QueryUsage || r.GetUsageData
}

// StatusResponse acknowledges a message
type StatusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// UsageResponse answers a usage query
type UsageResponse struct {
	UsageData map[string]storage.UsageRecord `json:"usageData"`
	Summary   *usage.Summary                 `json:"summary,omitempty"`
}

// SuggestionResponse answers fetchSuggestion
type SuggestionResponse struct {
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BlockedResponse answers checkBlocked
type BlockedResponse struct {
	Blocked bool   `json:"blocked"`
	Host    string `json:"host,omitempty"`
	RuleID  int    `json:"ruleId,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ConfigResponse answers getConfig and echoes config updates
type ConfigResponse struct {
	Status      string   `json:"status"`
	Sites       []string `json:"sites"`
	ModeEnabled bool     `json:"modeEnabled"`
}
