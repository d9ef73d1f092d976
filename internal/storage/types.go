package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrDuplicateSite is returned when a site is already on the block list.
var ErrDuplicateSite = errors.New("storage: site already in block list")

// ErrInvalidHostname is returned when a value does not normalize to a hostname.
var ErrInvalidHostname = errors.New("storage: invalid hostname")

// DefaultBlockedSites is the block list used before the user saves one.
var DefaultBlockedSites = []string{"youtube.com", "tiktok.com", "instagram.com", "netflix.com"}

// BlockConfig is the user's block list and study mode switch.
type BlockConfig struct {
	Sites            []string `json:"sites"`
	StudyModeEnabled bool     `json:"studyModeEnabled"`
}

// DefaultBlockConfig returns the configuration used when nothing is stored.
func DefaultBlockConfig(sites []string) BlockConfig {
	if len(sites) == 0 {
		sites = DefaultBlockedSites
	}
	cfg := BlockConfig{}
	cfg.SetSites(sites)
	return cfg
}

// SetSites replaces the block list. Entries are normalized, empty entries are
// dropped and the first occurrence of a duplicate wins.
func (c *BlockConfig) SetSites(sites []string) {
	out := make([]string, 0, len(sites))
	seen := make(map[string]struct{}, len(sites))
	for _, site := range sites {
		host, err := NormalizeHostname(site)
		if err != nil {
			continue
		}
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		out = append(out, host)
	}
	c.Sites = out
}

// AddSite appends a site to the block list.
func (c *BlockConfig) AddSite(site string) (string, error) {
	host, err := NormalizeHostname(site)
	if err != nil {
		return "", err
	}
	if c.HasSite(host) {
		return host, ErrDuplicateSite
	}
	c.Sites = append(c.Sites, host)
	return host, nil
}

// RemoveSite removes a site and reports whether it was present.
func (c *BlockConfig) RemoveSite(site string) bool {
	host, err := NormalizeHostname(site)
	if err != nil {
		return false
	}
	for i, s := range c.Sites {
		if s == host {
			c.Sites = append(c.Sites[:i:i], c.Sites[i+1:]...)
			return true
		}
	}
	return false
}

// HasSite reports whether host is on the block list.
func (c *BlockConfig) HasSite(host string) bool {
	for _, s := range c.Sites {
		if s == host {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (c BlockConfig) Clone() BlockConfig {
	sites := make([]string, len(c.Sites))
	copy(sites, c.Sites)
	return BlockConfig{Sites: sites, StudyModeEnabled: c.StudyModeEnabled}
}

// UsageRecord is the per-hostname usage counter.
type UsageRecord struct {
	Hostname    string `json:"hostname"`
	Visits      int64  `json:"visits"`
	TotalTimeMs int64  `json:"totalTimeMs"`
	LastVisitAt int64  `json:"lastVisitAt"` // epoch milliseconds
}

// LastVisit returns LastVisitAt as a time.
func (r UsageRecord) LastVisit() time.Time {
	return time.UnixMilli(r.LastVisitAt)
}

// Validate checks the record invariants.
func (r UsageRecord) Validate() error {
	if r.Hostname == "" {
		return fmt.Errorf("%w: empty hostname", ErrInvalidHostname)
	}
	if r.Visits < 1 {
		return fmt.Errorf("usage record %s: visits must be at least 1", r.Hostname)
	}
	if r.TotalTimeMs < 0 {
		return fmt.Errorf("usage record %s: negative total time", r.Hostname)
	}
	return nil
}

// NormalizeHostname reduces a URL or bare domain to a lower-cased hostname
// with scheme, port, path and a leading "www." removed.
func NormalizeHostname(raw string) (string, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return "", ErrInvalidHostname
	}

	host := s
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidHostname, err)
		}
		host = u.Hostname()
	} else {
		if i := strings.IndexAny(host, "/?#"); i >= 0 {
			host = host[:i]
		}
		if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host, "]") {
			host = host[:i]
		}
	}

	host = strings.TrimSuffix(host, ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" || strings.ContainsAny(host, " \t") {
		return "", ErrInvalidHostname
	}
	return host, nil
}
