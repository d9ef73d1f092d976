package main

import (
	"fmt"
	"time"

	"github.com/goodtune/focusforge/internal/api"
	"github.com/goodtune/focusforge/internal/config"
)

const clientTimeout = 30 * time.Second

// newAPIClient returns a client for the running daemon. The --api flag wins
// over the configured bind address and port.
func newAPIClient() (*api.Client, error) {
	if apiAddr != "" {
		return api.NewClient(apiAddr, clientTimeout), nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return api.NewClient(daemonURL(cfg.Server), clientTimeout), nil
}

func daemonURL(cfg config.ServerConfig) string {
	host := cfg.BindAddress
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.APIPort)
}
