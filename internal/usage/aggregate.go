package usage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goodtune/focusforge/internal/storage"
)

// Range selects how far back an aggregation looks.
type Range string

const (
	RangeAll   Range = "all"
	RangeToday Range = "today"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
)

// ParseRange parses a range selector. The empty string means RangeAll.
func ParseRange(s string) (Range, error) {
	switch r := Range(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RangeAll, nil
	case RangeAll, RangeToday, RangeWeek, RangeMonth:
		return r, nil
	default:
		return "", fmt.Errorf("unknown range %q (must be today, week, month or all)", s)
	}
}

// Window returns the lookback duration, or 0 for RangeAll.
func (r Range) Window() time.Duration {
	switch r {
	case RangeToday:
		return 24 * time.Hour
	case RangeWeek:
		return 7 * 24 * time.Hour
	case RangeMonth:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Filter returns the records last visited within r of now.
func Filter(records map[string]storage.UsageRecord, now time.Time, r Range) map[string]storage.UsageRecord {
	window := r.Window()
	out := make(map[string]storage.UsageRecord, len(records))
	if window == 0 {
		for host, record := range records {
			out[host] = record
		}
		return out
	}

	threshold := now.Add(-window).UnixMilli()
	for host, record := range records {
		if record.LastVisitAt >= threshold {
			out[host] = record
		}
	}
	return out
}

// Summarize filters records by r and orders them by visits, most first.
// Ties are broken by hostname so the order is stable.
func Summarize(records map[string]storage.UsageRecord, now time.Time, r Range) Summary {
	filtered := Filter(records, now, r)

	summary := Summary{
		Range:       r,
		Sites:       make([]SiteStat, 0, len(filtered)),
		UniqueSites: len(filtered),
	}
	for host, record := range filtered {
		summary.Sites = append(summary.Sites, SiteStat{
			Hostname:    host,
			Visits:      record.Visits,
			TotalTimeMs: record.TotalTimeMs,
			LastVisitAt: record.LastVisitAt,
		})
		summary.TotalVisits += record.Visits
		summary.TotalTimeMs += record.TotalTimeMs
	}

	sort.Slice(summary.Sites, func(i, j int) bool {
		a, b := summary.Sites[i], summary.Sites[j]
		if a.Visits != b.Visits {
			return a.Visits > b.Visits
		}
		return a.Hostname < b.Hostname
	})

	return summary
}

// TopN returns at most n of the summary's sites.
func (s Summary) TopN(n int) []SiteStat {
	if n < 0 || n >= len(s.Sites) {
		return s.Sites
	}
	return s.Sites[:n]
}
