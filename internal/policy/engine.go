package policy

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goodtune/focusforge/internal/policy/opa"
	"github.com/rs/zerolog"
)

// Engine handles block evaluation by gathering facts and calling OPA
type Engine struct {
	opaEngine *opa.Engine
	logger    zerolog.Logger
}

// NewEngine creates a new fact-based policy engine
func NewEngine(opaConfig opa.Config, logger zerolog.Logger) (*Engine, error) {
	opaEngine, err := opa.NewEngine(opaConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OPA engine: %w", err)
	}

	return &Engine{
		opaEngine: opaEngine,
		logger:    logger.With().Str("component", "policy").Logger(),
	}, nil
}

// Evaluate decides whether req is blocked by rules.
// Just gathers facts and asks OPA.
func (e *Engine) Evaluate(ctx context.Context, rules []Rule, req Request) Decision {
	host, err := RequestHost(req.URL)
	if err != nil {
		return Decision{Reason: err.Error()}
	}

	resourceType := req.ResourceType
	if resourceType == "" {
		resourceType = ResourceMainFrame
	}

	decision, err := e.opaEngine.EvaluateBlock(ctx, buildFacts(rules, host, resourceType))
	if err != nil {
		e.logger.Error().Err(err).Str("host", host).Msg("OPA block evaluation failed, falling back to allow")
		return Decision{
			Host:   host,
			Reason: fmt.Sprintf("OPA evaluation error: %v", err),
		}
	}

	return Decision{
		Blocked: decision.Blocked,
		RuleID:  decision.RuleID,
		Host:    host,
		Reason:  decision.Reason,
	}
}

// Reload reloads the OPA policies
func (e *Engine) Reload() error {
	return e.opaEngine.Reload()
}

// buildFacts gathers the OPA input for one request
func buildFacts(rules []Rule, host string, resourceType ResourceType) map[string]interface{} {
	rulesArray := make([]interface{}, 0, len(rules))
	for _, rule := range rules {
		types := make([]interface{}, 0, len(rule.Condition.ResourceTypes))
		for _, t := range rule.Condition.ResourceTypes {
			types = append(types, string(t))
		}
		rulesArray = append(rulesArray, map[string]interface{}{
			"id":             rule.ID,
			"priority":       rule.Priority,
			"action":         string(rule.Action.Type),
			"domain":         rule.Domain(),
			"resource_types": types,
		})
	}

	return map[string]interface{}{
		"host":          host,
		"resource_type": string(resourceType),
		"rules":         rulesArray,
	}
}

// RequestHost extracts the lowercased hostname of a request URL
func RequestHost(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return host, nil
}
