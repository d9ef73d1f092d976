package usage

import (
	"time"
)

// Session is the page currently being timed. The zero value is Idle.
type Session struct {
	TabID     int       `json:"tabId"`
	URL       string    `json:"url"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"startedAt"`
}

// Idle reports whether no page is being timed.
func (s Session) Idle() bool {
	return s.StartedAt.IsZero()
}

// SiteStat is one row of an aggregated usage summary.
type SiteStat struct {
	Hostname    string `json:"hostname"`
	Visits      int64  `json:"visits"`
	TotalTimeMs int64  `json:"totalTimeMs"`
	LastVisitAt int64  `json:"lastVisitAt"`
}

// AverageMinutes returns the mean dwell time per visit in minutes.
func (s SiteStat) AverageMinutes() float64 {
	if s.Visits == 0 {
		return 0
	}
	return float64(s.TotalTimeMs) / float64(s.Visits) / 60000
}

// TotalMinutes returns the total dwell time in minutes.
func (s SiteStat) TotalMinutes() float64 {
	return float64(s.TotalTimeMs) / 60000
}

// Summary is the aggregated view over a filtered usage store.
type Summary struct {
	Range       Range      `json:"range"`
	Sites       []SiteStat `json:"sites"`
	TotalVisits int64      `json:"totalVisits"`
	TotalTimeMs int64      `json:"totalTimeSpent"`
	UniqueSites int        `json:"uniqueSites"`
}
