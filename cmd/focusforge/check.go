package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/goodtune/focusforge/internal/messaging"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check URL",
	Short: "Check whether a URL would be blocked",
	Long:  `Check what the installed block rules would do with a top-level navigation to URL.`,
	Example: `  focusforge check https://www.youtube.com/watch
  focusforge --api http://127.0.0.1:7878 check reddit.com`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the installed block rules",
	Args:  cobra.NoArgs,
	RunE:  runRules,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	resp, err := client.Check(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	printCheckResult(args[0], resp)
	return nil
}

// printCheckResult prints the block decision with colors
func printCheckResult(rawURL string, resp *messaging.BlockedResponse) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("BLOCK CHECK")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("URL:        %s\n", rawURL)
	if resp.Host != "" {
		fmt.Printf("Host:       %s\n", resp.Host)
	}
	fmt.Println()

	fmt.Print("Decision:   ")
	if resp.Blocked {
		red.Println("BLOCK")
		fmt.Printf("            → Matched rule %d\n", resp.RuleID)
		fmt.Println("            → Navigation will be cancelled")
	} else {
		green.Println("ALLOW")
		fmt.Println("            → No installed rule matches")
	}
	if resp.Reason != "" {
		fmt.Printf("Reason:     %s\n", resp.Reason)
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}

func runRules(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	installed, err := client.Rules(cmd.Context())
	if err != nil {
		return err
	}

	if len(installed) == 0 {
		fmt.Println("No rules installed (study mode is off or the block list is empty).")
		return nil
	}
	for _, rule := range installed {
		fmt.Printf("%3d  %-6s  %s\n", rule.ID, rule.Action.Type, rule.Condition.URLFilter)
	}
	return nil
}
