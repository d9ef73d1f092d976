package rules

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goodtune/focusforge/internal/storage"
	"github.com/rs/zerolog"
)

// Manager owns the in-memory block configuration. Every mutation is
// persisted to the config store and then pushed to the rule engine.
type Manager struct {
	store  storage.ConfigStore
	sync   *Synchronizer
	logger zerolog.Logger

	mu  sync.Mutex
	cfg storage.BlockConfig
}

// NewManager creates a manager holding the default configuration until
// Load is called.
func NewManager(store storage.ConfigStore, synchronizer *Synchronizer, defaultSites []string, logger zerolog.Logger) *Manager {
	return &Manager{
		store:  store,
		sync:   synchronizer,
		logger: logger.With().Str("component", "block-config").Logger(),
		cfg:    storage.DefaultBlockConfig(defaultSites),
	}
}

// Load reads the stored configuration, seeding the defaults when nothing is
// stored, and installs the matching rule set.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, err := m.store.GetBlockConfig(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if err := m.store.PutBlockConfig(ctx, m.cfg); err != nil {
			return fmt.Errorf("failed to seed block config: %w", err)
		}
		m.logger.Info().Strs("sites", m.cfg.Sites).Msg("Seeded default block config")
	case err != nil:
		return fmt.Errorf("failed to load block config: %w", err)
	default:
		cfg := storage.BlockConfig{StudyModeEnabled: stored.StudyModeEnabled}
		cfg.SetSites(stored.Sites)
		m.cfg = cfg
	}

	m.logger.Info().
		Int("sites", len(m.cfg.Sites)).
		Bool("study_mode", m.cfg.StudyModeEnabled).
		Msg("Block config loaded")

	return m.sync.Sync(ctx, m.cfg)
}

// Current returns a copy of the configuration.
func (m *Manager) Current() storage.BlockConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Clone()
}

// Update applies fn to a copy of the configuration, persists the result and
// resyncs the rules. If fn or the write fails nothing changes.
func (m *Manager) Update(ctx context.Context, fn func(*storage.BlockConfig) error) (storage.BlockConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.cfg.Clone()
	if err := fn(&next); err != nil {
		return m.cfg.Clone(), err
	}

	if err := m.store.PutBlockConfig(ctx, next); err != nil {
		return m.cfg.Clone(), fmt.Errorf("failed to save block config: %w", err)
	}
	m.cfg = next

	if err := m.sync.Sync(ctx, next); err != nil {
		return next.Clone(), err
	}
	return next.Clone(), nil
}

// SetSites replaces the block list.
func (m *Manager) SetSites(ctx context.Context, sites []string) (storage.BlockConfig, error) {
	return m.Update(ctx, func(cfg *storage.BlockConfig) error {
		cfg.SetSites(sites)
		return nil
	})
}

// SetStudyMode turns study mode on or off.
func (m *Manager) SetStudyMode(ctx context.Context, enabled bool) (storage.BlockConfig, error) {
	return m.Update(ctx, func(cfg *storage.BlockConfig) error {
		cfg.StudyModeEnabled = enabled
		return nil
	})
}

// AddSite appends a site to the block list.
func (m *Manager) AddSite(ctx context.Context, site string) (storage.BlockConfig, error) {
	return m.Update(ctx, func(cfg *storage.BlockConfig) error {
		_, err := cfg.AddSite(site)
		return err
	})
}

// RemoveSite removes a site from the block list.
func (m *Manager) RemoveSite(ctx context.Context, site string) (storage.BlockConfig, error) {
	return m.Update(ctx, func(cfg *storage.BlockConfig) error {
		if !cfg.RemoveSite(site) {
			return fmt.Errorf("%s: %w", site, storage.ErrNotFound)
		}
		return nil
	})
}
