// Package rules keeps the installed block rule set in step with the block
// configuration and answers whether a navigation is blocked.
package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goodtune/focusforge/internal/metrics"
	"github.com/goodtune/focusforge/internal/policy"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// Engine is a declarative rule engine that accepts replace-by-id rule sets.
type Engine interface {
	// UpdateDynamicRules removes the rules in removeIDs and installs add in
	// one step. Ids in add must not collide with rules left installed.
	UpdateDynamicRules(ctx context.Context, removeIDs []int, add []policy.Rule) error
	// Rules returns the installed rules ordered by id.
	Rules(ctx context.Context) ([]policy.Rule, error)
}

// DefaultCacheSize is the number of block decisions kept in memory
const DefaultCacheSize = 1024

type cacheKey struct {
	host         string
	resourceType policy.ResourceType
}

// MemoryEngine holds the installed rules in memory and evaluates requests
// against them with the policy engine.
type MemoryEngine struct {
	evaluator *policy.Engine
	logger    zerolog.Logger

	mu    sync.RWMutex
	rules map[int]policy.Rule

	// Decision cache, purged whenever the rule set changes
	cache *lru.Cache[cacheKey, policy.Decision]
}

// NewMemoryEngine creates an engine with no rules installed
func NewMemoryEngine(evaluator *policy.Engine, cacheSize int, logger zerolog.Logger) (*MemoryEngine, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, policy.Decision](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision cache: %w", err)
	}

	return &MemoryEngine{
		evaluator: evaluator,
		logger:    logger.With().Str("component", "rule-engine").Logger(),
		rules:     make(map[int]policy.Rule),
		cache:     cache,
	}, nil
}

// UpdateDynamicRules implements Engine.
func (e *MemoryEngine) UpdateDynamicRules(ctx context.Context, removeIDs []int, add []policy.Rule) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	removing := make(map[int]struct{}, len(removeIDs))
	for _, id := range removeIDs {
		removing[id] = struct{}{}
	}

	seen := make(map[int]struct{}, len(add))
	for _, rule := range add {
		if rule.ID < 1 {
			return fmt.Errorf("rule id %d must be positive", rule.ID)
		}
		if _, dup := seen[rule.ID]; dup {
			return fmt.Errorf("duplicate rule id %d", rule.ID)
		}
		seen[rule.ID] = struct{}{}
		if _, installed := e.rules[rule.ID]; installed {
			if _, removed := removing[rule.ID]; !removed {
				return fmt.Errorf("rule id %d is already installed", rule.ID)
			}
		}
	}

	for id := range removing {
		delete(e.rules, id)
	}
	for _, rule := range add {
		e.rules[rule.ID] = rule
	}
	e.cache.Purge()

	metrics.InstalledRules.Set(float64(len(e.rules)))
	e.logger.Debug().
		Int("removed", len(removeIDs)).
		Int("added", len(add)).
		Int("installed", len(e.rules)).
		Msg("Dynamic rules updated")

	return nil
}

// Rules implements Engine.
func (e *MemoryEngine) Rules(ctx context.Context) ([]policy.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.sortedLocked(), nil
}

func (e *MemoryEngine) sortedLocked() []policy.Rule {
	out := make([]policy.Rule, 0, len(e.rules))
	for _, rule := range e.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Check reports whether req is blocked by the installed rules.
func (e *MemoryEngine) Check(ctx context.Context, req policy.Request) policy.Decision {
	if req.ResourceType == "" {
		req.ResourceType = policy.ResourceMainFrame
	}

	host, err := policy.RequestHost(req.URL)
	if err != nil {
		metrics.BlockChecks.WithLabelValues("invalid").Inc()
		return policy.Decision{Reason: err.Error()}
	}

	// Held across evaluation so a concurrent update cannot leave a stale
	// decision in the cache
	e.mu.RLock()
	defer e.mu.RUnlock()

	key := cacheKey{host: host, resourceType: req.ResourceType}
	if decision, ok := e.cache.Get(key); ok {
		recordCheck(decision)
		return decision
	}

	decision := e.evaluator.Evaluate(ctx, e.sortedLocked(), req)
	e.cache.Add(key, decision)
	recordCheck(decision)

	return decision
}

// ReloadPolicy reloads the block policy from disk and drops cached decisions.
func (e *MemoryEngine) ReloadPolicy() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.evaluator.Reload(); err != nil {
		return err
	}
	e.cache.Purge()
	return nil
}

func recordCheck(decision policy.Decision) {
	if decision.Blocked {
		metrics.BlockChecks.WithLabelValues("blocked").Inc()
	} else {
		metrics.BlockChecks.WithLabelValues("allowed").Inc()
	}
}
