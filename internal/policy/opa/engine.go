package opa

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"
)

//go:embed policies/*.rego
var embeddedPolicies embed.FS

const blockQuery = "data.focusforge.block.decision"

// Config selects where policy modules are loaded from
type Config struct {
	// PolicyDir overrides the built-in policies with the .rego files in
	// this directory when set
	PolicyDir string
}

// Engine wraps OPA rego engine for block decisions
type Engine struct {
	config Config
	logger zerolog.Logger

	mu         sync.RWMutex
	blockQuery rego.PreparedEvalQuery
	modules    map[string]*ast.Module
}

// NewEngine creates a new OPA engine
func NewEngine(config Config, logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		config: config,
		logger: logger.With().Str("component", "opa").Logger(),
	}

	if err := e.load(); err != nil {
		return nil, err
	}

	source := "embedded"
	if config.PolicyDir != "" {
		source = config.PolicyDir
	}
	e.logger.Info().Str("policy_source", source).Msg("OPA engine initialized")

	return e, nil
}

// load parses the policy modules and prepares the block query
func (e *Engine) load() error {
	modules, err := e.loadPolicies()
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	opts := make([]func(*rego.Rego), 0, len(modules)+1)
	opts = append(opts, rego.Query(blockQuery))
	for name, module := range modules {
		opts = append(opts, rego.ParsedModule(module))
		e.logger.Debug().Str("file", name).Str("package", module.Package.Path.String()).Msg("Loaded policy module")
	}

	query, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("failed to prepare block query: %w", err)
	}

	e.mu.Lock()
	e.modules = modules
	e.blockQuery = query
	e.mu.Unlock()

	return nil
}

// loadPolicies reads every .rego file from the configured source
func (e *Engine) loadPolicies() (map[string]*ast.Module, error) {
	sources := make(map[string]string)

	if e.config.PolicyDir != "" {
		files, err := filepath.Glob(filepath.Join(e.config.PolicyDir, "*.rego"))
		if err != nil {
			return nil, fmt.Errorf("failed to glob policy files: %w", err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no policy files found in %s", e.config.PolicyDir)
		}
		for _, file := range files {
			content, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("failed to read policy file %s: %w", file, err)
			}
			sources[file] = string(content)
		}
	} else {
		entries, err := embeddedPolicies.ReadDir("policies")
		if err != nil {
			return nil, fmt.Errorf("failed to list embedded policies: %w", err)
		}
		for _, entry := range entries {
			name := "policies/" + entry.Name()
			content, err := embeddedPolicies.ReadFile(name)
			if err != nil {
				return nil, fmt.Errorf("failed to read embedded policy %s: %w", name, err)
			}
			sources[name] = string(content)
		}
	}

	modules := make(map[string]*ast.Module, len(sources))
	for name, content := range sources {
		module, err := ast.ParseModule(name, content)
		if err != nil {
			return nil, fmt.Errorf("failed to parse policy file %s: %w", name, err)
		}
		modules[name] = module
	}

	return modules, nil
}

// BlockDecision represents a block policy decision
type BlockDecision struct {
	Blocked bool   `json:"blocked"`
	RuleID  int    `json:"rule_id"`
	Reason  string `json:"reason"`
}

// EvaluateBlock evaluates whether a request is blocked
func (e *Engine) EvaluateBlock(ctx context.Context, input map[string]interface{}) (*BlockDecision, error) {
	startTime := time.Now()

	e.mu.RLock()
	query := e.blockQuery
	e.mu.RUnlock()

	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("block query evaluation failed: %w", err)
	}

	duration := time.Since(startTime)
	e.logger.Debug().Dur("duration_ms", duration).Msg("Block query evaluated")

	if len(results) == 0 {
		return nil, fmt.Errorf("no results from block query")
	}

	if len(results[0].Expressions) == 0 {
		return nil, fmt.Errorf("no expressions in block query result")
	}

	resultBytes, err := json.Marshal(results[0].Expressions[0].Value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal block decision: %w", err)
	}

	var decision BlockDecision
	if err := json.Unmarshal(resultBytes, &decision); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block decision: %w", err)
	}

	return &decision, nil
}

// Reload reloads all policies from their source
func (e *Engine) Reload() error {
	e.logger.Info().Msg("Reloading OPA policies")

	if err := e.load(); err != nil {
		return fmt.Errorf("failed to reload policies: %w", err)
	}

	e.logger.Info().Msg("OPA policies reloaded successfully")
	return nil
}
