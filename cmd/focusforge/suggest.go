package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/goodtune/focusforge/internal/usage"
	"github.com/spf13/cobra"
)

var suggestRange string

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Ask for suggestions based on recorded usage",
	Args:  cobra.NoArgs,
	RunE:  runSuggest,
}

func init() {
	suggestCmd.Flags().StringVar(&suggestRange, "range", "week", "Usage range to summarize: all, today, week or month")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	rng, err := usage.ParseRange(suggestRange)
	if err != nil {
		return err
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}

	resp, err := client.Suggest(cmd.Context(), string(rng))
	if err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Error)
	}

	color.New(color.FgCyan, color.Bold).Println("Suggestions")
	fmt.Println(resp.Data)
	return nil
}
