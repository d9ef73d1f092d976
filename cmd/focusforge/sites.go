package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/goodtune/focusforge/internal/messaging"
	"github.com/spf13/cobra"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List and edit the blocked sites",
	Args:  cobra.NoArgs,
	RunE:  runSitesList,
}

var sitesAddCmd = &cobra.Command{
	Use:     "add SITE",
	Short:   "Add a site to the block list",
	Example: `  focusforge sites add reddit.com`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(cmd, func(c configUpdater) (*messaging.ConfigResponse, error) {
			return c.AddSite(cmd.Context(), args[0])
		})
	},
}

var sitesRemoveCmd = &cobra.Command{
	Use:     "remove SITE",
	Aliases: []string{"rm"},
	Short:   "Remove a site from the block list",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(cmd, func(c configUpdater) (*messaging.ConfigResponse, error) {
			return c.RemoveSite(cmd.Context(), args[0])
		})
	},
}

var studyCmd = &cobra.Command{
	Use:       "study on|off",
	Short:     "Turn study mode on or off",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled := args[0] == "on"
		return updateConfig(cmd, func(c configUpdater) (*messaging.ConfigResponse, error) {
			return c.SetStudyMode(cmd.Context(), enabled)
		})
	},
}

func init() {
	sitesCmd.AddCommand(sitesAddCmd)
	sitesCmd.AddCommand(sitesRemoveCmd)
	rootCmd.AddCommand(sitesCmd)
	rootCmd.AddCommand(studyCmd)
}

type configUpdater interface {
	AddSite(ctx context.Context, site string) (*messaging.ConfigResponse, error)
	RemoveSite(ctx context.Context, site string) (*messaging.ConfigResponse, error)
	SetStudyMode(ctx context.Context, enabled bool) (*messaging.ConfigResponse, error)
}

func updateConfig(cmd *cobra.Command, fn func(configUpdater) (*messaging.ConfigResponse, error)) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	resp, err := fn(client)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("%s\n", resp.Status)
	printBlockConfig(resp)
	return nil
}

func runSitesList(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	resp, err := client.Config(cmd.Context())
	if err != nil {
		return err
	}
	printBlockConfig(resp)
	return nil
}

// printBlockConfig prints study mode state and the block list
func printBlockConfig(resp *messaging.ConfigResponse) {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)

	fmt.Print("Study mode: ")
	if resp.ModeEnabled {
		green.Println("ON")
	} else {
		yellow.Println("OFF")
	}

	if len(resp.Sites) == 0 {
		fmt.Println("Blocked sites: (none)")
		return
	}
	fmt.Println("Blocked sites:")
	for _, site := range resp.Sites {
		fmt.Printf("  - %s\n", site)
	}
}
