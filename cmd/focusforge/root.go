package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
	apiAddr    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "focusforge",
	Short: "FocusForge - study mode site blocker and browsing time tracker",
	Long: `FocusForge blocks distracting sites while study mode is on and records
how often and how long each site is in the foreground. It serves a browser
extension over native messaging or a loopback HTTP API, and can ask a
text-generation service for suggestions based on the recorded usage.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to serve command when no subcommand is provided
		return runServe(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "", "Daemon API base URL (defaults to the configured bind address and port)")
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "focusforge.yaml"
	}
	return filepath.Join(dir, "focusforge", "config.yaml")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
