package usage

import (
	"testing"
	"time"

	"github.com/goodtune/focusforge/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		input   string
		want    Range
		wantErr bool
	}{
		{"", RangeAll, false},
		{"all", RangeAll, false},
		{"today", RangeToday, false},
		{" Week ", RangeWeek, false},
		{"month", RangeMonth, false},
		{"year", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRange(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterByRange(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) int64 { return now.Add(-d).UnixMilli() }

	records := map[string]storage.UsageRecord{
		"hour.example":  {Hostname: "hour.example", Visits: 1, LastVisitAt: ago(time.Hour)},
		"edge.example":  {Hostname: "edge.example", Visits: 1, LastVisitAt: ago(24 * time.Hour)},
		"days.example":  {Hostname: "days.example", Visits: 1, LastVisitAt: ago(3 * 24 * time.Hour)},
		"weeks.example": {Hostname: "weeks.example", Visits: 1, LastVisitAt: ago(20 * 24 * time.Hour)},
		"old.example":   {Hostname: "old.example", Visits: 1, LastVisitAt: ago(90 * 24 * time.Hour)},
	}

	tests := []struct {
		r    Range
		want []string
	}{
		{RangeAll, []string{"hour.example", "edge.example", "days.example", "weeks.example", "old.example"}},
		{RangeToday, []string{"hour.example", "edge.example"}},
		{RangeWeek, []string{"hour.example", "edge.example", "days.example"}},
		{RangeMonth, []string{"hour.example", "edge.example", "days.example", "weeks.example"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.r), func(t *testing.T) {
			got := Filter(records, now, tt.r)
			assert.Len(t, got, len(tt.want))
			for _, host := range tt.want {
				assert.Contains(t, got, host)
			}
			for host, record := range got {
				if tt.r != RangeAll {
					assert.GreaterOrEqual(t, record.LastVisitAt, now.Add(-tt.r.Window()).UnixMilli(), host)
				}
			}
		})
	}

	// Filtering never mutates the input
	assert.Len(t, records, 5)
}

func TestSummarizeOrdersByVisits(t *testing.T) {
	records := map[string]storage.UsageRecord{
		"b.com": {Hostname: "b.com", Visits: 2, TotalTimeMs: 30000},
		"a.com": {Hostname: "a.com", Visits: 5, TotalTimeMs: 120000},
	}

	summary := Summarize(records, time.Now(), RangeAll)

	require.Len(t, summary.Sites, 2)
	assert.Equal(t, "a.com", summary.Sites[0].Hostname)
	assert.Equal(t, "b.com", summary.Sites[1].Hostname)
	assert.Equal(t, int64(7), summary.TotalVisits)
	assert.Equal(t, int64(150000), summary.TotalTimeMs)
	assert.Equal(t, 2, summary.UniqueSites)
	assert.InDelta(t, 0.4, summary.Sites[0].AverageMinutes(), 1e-9)
	assert.InDelta(t, 2.0, summary.Sites[0].TotalMinutes(), 1e-9)
}

func TestSummarizeTiesAndTopN(t *testing.T) {
	records := map[string]storage.UsageRecord{
		"c.com": {Hostname: "c.com", Visits: 3},
		"a.com": {Hostname: "a.com", Visits: 3},
		"b.com": {Hostname: "b.com", Visits: 9},
		"d.com": {Hostname: "d.com", Visits: 1},
	}

	summary := Summarize(records, time.Now(), RangeAll)
	top := summary.TopN(3)

	require.Len(t, top, 3)
	assert.Equal(t, []string{"b.com", "a.com", "c.com"}, []string{top[0].Hostname, top[1].Hostname, top[2].Hostname})
	assert.Len(t, summary.TopN(10), 4)
	assert.Empty(t, Summarize(nil, time.Now(), RangeToday).Sites)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0m 0s"},
		{999, "0m 0s"},
		{61000, "1m 1s"},
		{150000, "2m 30s"},
		{3 * 3600 * 1000, "180m 0s"},
		{-5, "0m 0s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.ms))
	}
}
