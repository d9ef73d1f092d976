package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goodtune/focusforge/internal/browser"
	"github.com/goodtune/focusforge/internal/config"
	"github.com/goodtune/focusforge/internal/messaging"
	"github.com/goodtune/focusforge/internal/policy"
	"github.com/goodtune/focusforge/internal/policy/opa"
	"github.com/goodtune/focusforge/internal/rules"
	"github.com/goodtune/focusforge/internal/storage"
	"github.com/goodtune/focusforge/internal/storage/bolt"
	"github.com/goodtune/focusforge/internal/storage/redis"
	"github.com/goodtune/focusforge/internal/suggest"
	"github.com/goodtune/focusforge/internal/usage"
	"github.com/rs/zerolog"
)

// daemon wires the components shared by the HTTP and native-messaging
// front ends.
type daemon struct {
	store   storage.Store
	tabs    *browser.Registry
	tracker *usage.Tracker
	policy  *policy.Engine
	engine  *rules.MemoryEngine
	manager *rules.Manager
	router  *messaging.Router
	pruner  *usage.PruneScheduler // nil when retention is disabled

	trackerDone chan error
	cancel      context.CancelFunc
	logger      zerolog.Logger
}

func newDaemon(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*daemon, error) {
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	d := &daemon{store: store, logger: logger}
	if err := d.init(ctx, cfg); err != nil {
		_ = store.Close()
		return nil, err
	}
	return d, nil
}

func (d *daemon) init(ctx context.Context, cfg *config.Config) error {
	logger := d.logger

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	policyEngine, err := policy.NewEngine(opa.Config{PolicyDir: cfg.Blocking.PolicyDir}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Policy Engine: %w", err)
	}
	d.policy = policyEngine

	d.engine, err = rules.NewMemoryEngine(policyEngine, cfg.Blocking.RuleCacheSize, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize rule engine: %w", err)
	}

	d.manager = rules.NewManager(d.store.Config(), rules.NewSynchronizer(d.engine, logger), cfg.Blocking.DefaultSites, logger)
	if err := d.manager.Load(ctx); err != nil {
		return fmt.Errorf("failed to load block configuration: %w", err)
	}

	current := d.manager.Current()
	logger.Info().
		Int("sites", len(current.Sites)).
		Bool("study_mode", current.StudyModeEnabled).
		Msg("Block configuration loaded")

	d.tabs = browser.NewRegistry()
	d.tracker = usage.NewTracker(d.store.Usage(), d.tabs, usage.Config{
		MaxFlushDuration:  parseDuration(cfg.Usage.MaxFlushDuration, usage.DefaultMaxFlushDuration),
		MinCreditDuration: parseDuration(cfg.Usage.MinCreditDuration, usage.DefaultMinCreditDuration),
		QueueSize:         cfg.Usage.QueueSize,
		WriteRetries:      cfg.Usage.WriteRetries,
	}, logger)
	if err := d.tracker.Load(ctx); err != nil {
		return fmt.Errorf("failed to load usage data: %w", err)
	}

	suggestClient := suggest.NewClient(suggest.Config{
		Endpoint:     cfg.Suggest.Endpoint,
		APIKey:       cfg.Suggest.APIKey,
		APIKeyHeader: cfg.Suggest.APIKeyHeader,
		Timeout:      parseDuration(cfg.Suggest.Timeout, suggest.DefaultTimeout),
	}, logger)
	if !suggestClient.Configured() {
		logger.Warn().Msg("No suggestion API key configured, suggestions are disabled")
	}

	d.router = messaging.NewRouter(messaging.Config{
		Tracker:   d.tracker,
		Tabs:      d.tabs,
		Blocking:  d.manager,
		Checker:   d.engine,
		Suggester: suggestClient,
		MaxSites:  cfg.Suggest.MaxSites,
	}, logger)

	if cfg.Usage.RetentionDays > 0 {
		d.pruner, err = usage.NewPruneScheduler(d.tracker, cfg.Usage.PruneTime, cfg.Usage.RetentionDays, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize prune scheduler: %w", err)
		}
	}
	return nil
}

// start runs the tracker and the prune scheduler in the background.
func (d *daemon) start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.trackerDone = make(chan error, 1)
	go func() {
		d.trackerDone <- d.tracker.Run(ctx)
	}()

	if d.pruner != nil {
		d.pruner.Start()
	}
}

// stop flushes the open session and closes storage.
func (d *daemon) stop() {
	if d.pruner != nil {
		d.pruner.Stop()
	}

	if d.cancel != nil {
		d.cancel()
		select {
		case err := <-d.trackerDone:
			if err != nil {
				d.logger.Error().Err(err).Msg("Usage tracker stopped with error")
			}
		case <-time.After(10 * time.Second):
			d.logger.Error().Msg("Timed out waiting for usage tracker to stop")
		}
	}

	if err := d.store.Close(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to close storage")
	}
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (must be bolt or redis)", cfg.Type)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(out).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
