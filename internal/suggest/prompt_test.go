package suggest

import (
	"strings"
	"testing"
	"time"

	"github.com/goodtune/focusforge/internal/storage"
	"github.com/goodtune/focusforge/internal/usage"
	"github.com/stretchr/testify/assert"
)

func TestBuildPromptIsDeterministic(t *testing.T) {
	records := map[string]storage.UsageRecord{
		"b.com": {Hostname: "b.com", Visits: 2, TotalTimeMs: 36000},
		"a.com": {Hostname: "a.com", Visits: 5, TotalTimeMs: 120000},
		"c.com": {Hostname: "c.com", Visits: 1, TotalTimeMs: 6000},
	}
	summary := usage.Summarize(records, time.Now(), usage.RangeAll)

	first := BuildPrompt(summary, []string{"youtube.com", "netflix.com"}, true, 2)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, BuildPrompt(usage.Summarize(records, time.Now(), usage.RangeAll), []string{"youtube.com", "netflix.com"}, true, 2))
	}

	assert.Contains(t, first, "1. a.com: 5 visits, 2.0 minutes total, 0.4 minutes per visit")
	assert.Contains(t, first, "2. b.com: 2 visits, 0.6 minutes total, 0.3 minutes per visit")
	assert.NotContains(t, first, "c.com")
	assert.Contains(t, first, "Total visits: 8")
	assert.Contains(t, first, "Blocked sites: youtube.com, netflix.com")
	assert.Contains(t, first, "Study mode: on")
}

func TestBuildPromptWithoutActivity(t *testing.T) {
	prompt := BuildPrompt(usage.Summarize(nil, time.Now(), usage.RangeToday), nil, false, 10)

	assert.True(t, strings.Contains(prompt, "No browsing activity was recorded."))
	assert.Contains(t, prompt, "Blocked sites: none")
	assert.Contains(t, prompt, "Study mode: off")
	assert.Contains(t, prompt, "Range: today")
}
