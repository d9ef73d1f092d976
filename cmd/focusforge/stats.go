package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/focusforge/internal/usage"
	"github.com/spf13/cobra"
)

var (
	statsRange string
	statsTop   int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recorded browsing time per site",
	Long:  `Show visits and foreground time per site, most visited first.`,
	Example: `  focusforge stats
  focusforge stats --range today --top 5`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all recorded usage data",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

var resetYes bool

func init() {
	statsCmd.Flags().StringVar(&statsRange, "range", "all", "Time range: all, today, week or month")
	statsCmd.Flags().IntVar(&statsTop, "top", 0, "Only show the N most visited sites (0 shows all)")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resetCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	rng, err := usage.ParseRange(statsRange)
	if err != nil {
		return err
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}

	resp, err := client.Usage(cmd.Context(), string(rng))
	if err != nil {
		return err
	}
	if resp.Summary == nil {
		return fmt.Errorf("daemon returned no summary")
	}

	printSummary(*resp.Summary, statsTop)
	return nil
}

// printSummary prints the usage table with colors
func printSummary(summary usage.Summary, top int) {
	cyan := color.New(color.FgCyan, color.Bold)
	bold := color.New(color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Printf("USAGE (%s)\n", summary.Range)
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	if len(summary.Sites) == 0 {
		fmt.Println("No usage data recorded.")
		fmt.Println()
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	bold.Fprintln(w, "SITE\tVISITS\tTIME\tLAST VISIT")
	for _, site := range summary.TopN(top) {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			site.Hostname,
			site.Visits,
			usage.FormatDuration(site.TotalTimeMs),
			time.UnixMilli(site.LastVisitAt).Local().Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()

	fmt.Println()
	fmt.Printf("Sites:  %d\n", summary.UniqueSites)
	fmt.Printf("Visits: %d\n", summary.TotalVisits)
	fmt.Printf("Time:   %s\n", usage.FormatDuration(summary.TotalTimeMs))
	fmt.Println()
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		fmt.Print("This deletes all recorded usage data. Continue? [y/N] ")
		var answer string
		_, _ = fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	if err := client.ResetUsage(cmd.Context()); err != nil {
		return err
	}

	color.New(color.FgGreen).Println("Usage data cleared.")
	return nil
}
