package rules

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/goodtune/focusforge/internal/metrics"
	"github.com/goodtune/focusforge/internal/policy"
	"github.com/goodtune/focusforge/internal/storage"
	"github.com/rs/zerolog"
)

// BuildRules returns the rule set for cfg: rule i blocks main-frame
// navigations to the i-th site and its subdomains. Study mode off yields
// no rules.
func BuildRules(cfg storage.BlockConfig) []policy.Rule {
	if !cfg.StudyModeEnabled {
		return nil
	}

	rules := make([]policy.Rule, 0, len(cfg.Sites))
	for i, site := range cfg.Sites {
		rules = append(rules, policy.Rule{
			ID:       i + 1,
			Priority: 1,
			Action:   policy.RuleAction{Type: policy.ActionBlock},
			Condition: policy.RuleCondition{
				URLFilter:     policy.DomainFilter(site),
				ResourceTypes: []policy.ResourceType{policy.ResourceMainFrame},
			},
		})
	}
	return rules
}

// Synchronizer translates block configuration changes into rule set
// replacements on an Engine.
type Synchronizer struct {
	engine Engine
	logger zerolog.Logger

	mu sync.Mutex
}

// NewSynchronizer creates a synchronizer for engine
func NewSynchronizer(engine Engine, logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		engine: engine,
		logger: logger.With().Str("component", "rule-sync").Logger(),
	}
}

// Sync replaces every installed rule with the rule set for cfg.
func (s *Synchronizer) Sync(ctx context.Context, cfg storage.BlockConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mode := modeLabel(cfg.StudyModeEnabled)

	installed, err := s.engine.Rules(ctx)
	if err != nil {
		metrics.RuleSyncs.WithLabelValues(mode, "error").Inc()
		return fmt.Errorf("failed to list installed rules: %w", err)
	}

	add := BuildRules(cfg)

	// Remove everything installed plus the id range about to be added
	removeIDs := make([]int, 0, len(installed)+len(add))
	seen := make(map[int]struct{}, len(installed)+len(add))
	for _, rule := range installed {
		seen[rule.ID] = struct{}{}
		removeIDs = append(removeIDs, rule.ID)
	}
	for _, rule := range add {
		if _, ok := seen[rule.ID]; !ok {
			seen[rule.ID] = struct{}{}
			removeIDs = append(removeIDs, rule.ID)
		}
	}

	if err := s.engine.UpdateDynamicRules(ctx, removeIDs, add); err != nil {
		metrics.RuleSyncs.WithLabelValues(mode, "error").Inc()
		return fmt.Errorf("failed to update rules: %w", err)
	}

	metrics.RuleSyncs.WithLabelValues(mode, "success").Inc()
	s.logger.Info().
		Bool("study_mode", cfg.StudyModeEnabled).
		Int("sites", len(cfg.Sites)).
		Int("rules", len(add)).
		Msg("Block rules synchronized")

	return nil
}

func modeLabel(enabled bool) string {
	return "study_mode_" + strconv.FormatBool(enabled)
}
