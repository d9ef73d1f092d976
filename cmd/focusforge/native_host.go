package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goodtune/focusforge/internal/config"
	"github.com/goodtune/focusforge/internal/nativemsg"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var nativeHostCmd = &cobra.Command{
	Use:   "native-host [origin]",
	Short: "Serve the browser extension over native messaging",
	Long: `Serve the browser extension over stdin/stdout using the native messaging
protocol. The browser starts this command itself and passes the calling
extension origin as the first argument. Logs go to stderr.`,
	Args: cobra.ArbitraryArgs,
	RunE: runNativeHost,
}

func init() {
	rootCmd.AddCommand(nativeHostCmd)
}

func runNativeHost(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// stdout carries protocol frames
	logger := setupLogger(cfg.Logging, os.Stderr)
	log.Logger = logger

	origin := ""
	if len(args) > 0 {
		origin = args[0]
	}
	logger.Info().
		Str("version", version).
		Str("origin", origin).
		Msg("Starting FocusForge native messaging host")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(ctx, cfg, logger)
	if err != nil {
		return err
	}
	d.start()
	defer d.stop()

	host := nativemsg.NewHost(d.router, os.Stdin, os.Stdout, logger)
	if err := host.Serve(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
