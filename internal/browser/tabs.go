// Package browser mirrors the browser's tab and window state as reported by
// the extension, and answers the tab queries the usage tracker relies on.
package browser

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrTabNotFound is returned when a tab id no longer resolves to a live tab.
var ErrTabNotFound = errors.New("browser: tab not found")

// WindowIDNone is the window id the browser reports when no window has focus.
const WindowIDNone = -1

// Tab is the subset of the browser's tab object the daemon needs.
type Tab struct {
	ID       int    `json:"id"`
	WindowID int    `json:"windowId"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Active   bool   `json:"active"`
	Status   string `json:"status,omitempty"` // "loading" or "complete"
}

// TabQuerier resolves tabs. It is the only view of the browser the usage
// tracker has.
type TabQuerier interface {
	GetTab(ctx context.Context, tabID int) (Tab, error)
	ActiveTab(ctx context.Context, windowID int) (Tab, error)
}

var untrackablePrefixes = []string{
	"chrome://",
	"chrome-extension://",
	"chrome-search://",
	"chrome-untrusted://",
	"devtools://",
	"edge://",
	"brave://",
	"opera://",
	"vivaldi://",
	"moz-extension://",
	"about:",
	"view-source:",
	"file://",
	"data:",
	"blob:",
}

// IsTrackable reports whether a URL belongs to a real website rather than a
// browser-internal page.
func IsTrackable(rawURL string) bool {
	u := strings.ToLower(strings.TrimSpace(rawURL))
	if u == "" {
		return false
	}
	for _, prefix := range untrackablePrefixes {
		if strings.HasPrefix(u, prefix) {
			return false
		}
	}
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// Registry is an in-memory mirror of open tabs fed by extension events.
type Registry struct {
	mu      sync.RWMutex
	tabs    map[int]Tab
	focused int
}

// NewRegistry creates an empty registry with no focused window.
func NewRegistry() *Registry {
	return &Registry{
		tabs:    make(map[int]Tab),
		focused: WindowIDNone,
	}
}

// Upsert records the latest state of a tab. An active tab deactivates the
// other tabs of its window.
func (r *Registry) Upsert(tab Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tab.Active {
		r.deactivateWindowLocked(tab.WindowID, tab.ID)
	}
	r.tabs[tab.ID] = tab
}

// Activate marks tabID as the active tab of its window.
func (r *Registry) Activate(tabID, windowID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deactivateWindowLocked(windowID, tabID)
	tab, ok := r.tabs[tabID]
	if !ok {
		tab = Tab{ID: tabID}
	}
	tab.WindowID = windowID
	tab.Active = true
	r.tabs[tabID] = tab
}

func (r *Registry) deactivateWindowLocked(windowID, except int) {
	for id, t := range r.tabs {
		if id != except && t.WindowID == windowID && t.Active {
			t.Active = false
			r.tabs[id] = t
		}
	}
}

// Remove forgets a tab.
func (r *Registry) Remove(tabID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tabs, tabID)
}

// SetFocusedWindow records which window has focus (WindowIDNone for none).
func (r *Registry) SetFocusedWindow(windowID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.focused = windowID
}

// FocusedWindow returns the focused window id.
func (r *Registry) FocusedWindow() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.focused
}

// GetTab implements TabQuerier.
func (r *Registry) GetTab(ctx context.Context, tabID int) (Tab, error) {
	if err := ctx.Err(); err != nil {
		return Tab{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	tab, ok := r.tabs[tabID]
	if !ok {
		return Tab{}, ErrTabNotFound
	}
	return tab, nil
}

// ActiveTab implements TabQuerier.
func (r *Registry) ActiveTab(ctx context.Context, windowID int) (Tab, error) {
	if err := ctx.Err(); err != nil {
		return Tab{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tab := range r.tabs {
		if tab.WindowID == windowID && tab.Active {
			return tab, nil
		}
	}
	return Tab{}, ErrTabNotFound
}

// Len returns the number of known tabs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabs)
}
