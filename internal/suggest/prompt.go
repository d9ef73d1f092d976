package suggest

import (
	"fmt"
	"strings"

	"github.com/goodtune/focusforge/internal/usage"
)

// BuildPrompt renders a deterministic prompt from a usage summary. At most
// maxSites sites are listed (all when maxSites <= 0).
func BuildPrompt(summary usage.Summary, blocked []string, studyMode bool, maxSites int) string {
	var b strings.Builder

	b.WriteString("You are a productivity coach. Based on the browsing statistics below, ")
	b.WriteString("give the user three short, concrete suggestions for spending their time better.\n\n")

	fmt.Fprintf(&b, "Range: %s\n", summary.Range)
	fmt.Fprintf(&b, "Total visits: %d\n", summary.TotalVisits)
	fmt.Fprintf(&b, "Total time: %.1f minutes across %d sites\n\n", float64(summary.TotalTimeMs)/60000, summary.UniqueSites)

	sites := summary.TopN(maxSites)
	if len(sites) == 0 {
		b.WriteString("No browsing activity was recorded.\n")
	} else {
		b.WriteString("Most visited sites:\n")
		for i, site := range sites {
			fmt.Fprintf(&b, "%d. %s: %d visits, %.1f minutes total, %.1f minutes per visit\n",
				i+1, site.Hostname, site.Visits, site.TotalMinutes(), site.AverageMinutes())
		}
	}

	b.WriteString("\n")
	if len(blocked) == 0 {
		b.WriteString("Blocked sites: none\n")
	} else {
		fmt.Fprintf(&b, "Blocked sites: %s\n", strings.Join(blocked, ", "))
	}
	if studyMode {
		b.WriteString("Study mode: on\n")
	} else {
		b.WriteString("Study mode: off\n")
	}

	return b.String()
}
