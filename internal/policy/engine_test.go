package policy

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/goodtune/focusforge/internal/policy/opa"
	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(opa.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func blockRule(id int, host string) Rule {
	return Rule{
		ID:       id,
		Priority: 1,
		Action:   RuleAction{Type: ActionBlock},
		Condition: RuleCondition{
			URLFilter:     DomainFilter(host),
			ResourceTypes: []ResourceType{ResourceMainFrame},
		},
	}
}

func TestEvaluateBlockList(t *testing.T) {
	engine := newTestEngine(t)
	rules := []Rule{blockRule(1, "youtube.com"), blockRule(2, "netflix.com")}

	tests := []struct {
		name     string
		req      Request
		blocked  bool
		ruleID   int
		wantHost string
	}{
		{"apex", Request{URL: "https://youtube.com/watch?v=1"}, true, 1, "youtube.com"},
		{"www subdomain", Request{URL: "https://www.YouTube.com/"}, true, 1, "www.youtube.com"},
		{"second site", Request{URL: "http://netflix.com:8080/browse"}, true, 2, "netflix.com"},
		{"other site", Request{URL: "https://golang.org/doc"}, false, 0, "golang.org"},
		{"sub frame", Request{URL: "https://youtube.com/embed", ResourceType: ResourceSubFrame}, false, 0, "youtube.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := engine.Evaluate(context.Background(), rules, tt.req)
			if decision.Blocked != tt.blocked {
				t.Errorf("Evaluate() blocked = %v, want %v (reason: %s)", decision.Blocked, tt.blocked, decision.Reason)
			}
			if decision.RuleID != tt.ruleID {
				t.Errorf("Evaluate() rule = %d, want %d", decision.RuleID, tt.ruleID)
			}
			if decision.Host != tt.wantHost {
				t.Errorf("Evaluate() host = %q, want %q", decision.Host, tt.wantHost)
			}
		})
	}
}

func TestEvaluateNoRulesAllowsEverything(t *testing.T) {
	engine := newTestEngine(t)

	decision := engine.Evaluate(context.Background(), nil, Request{URL: "https://youtube.com/"})
	if decision.Blocked {
		t.Errorf("expected allow, got %+v", decision)
	}
}

func TestEvaluateInvalidURL(t *testing.T) {
	engine := newTestEngine(t)

	decision := engine.Evaluate(context.Background(), []Rule{blockRule(1, "youtube.com")}, Request{URL: "not a url"})
	if decision.Blocked {
		t.Errorf("expected allow for unparsable url, got %+v", decision)
	}
}

func TestRuleDomain(t *testing.T) {
	tests := []struct {
		filter string
		want   string
	}{
		{"||youtube.com^", "youtube.com"},
		{"||YouTube.COM^", "youtube.com"},
		{"youtube.com", ""},
		{"||youtube.com", ""},
	}

	for _, tt := range tests {
		rule := Rule{Condition: RuleCondition{URLFilter: tt.filter}}
		if got := rule.Domain(); got != tt.want {
			t.Errorf("Domain(%q) = %q, want %q", tt.filter, got, tt.want)
		}
	}
}

func TestActionUnmarshal(t *testing.T) {
	var rule Rule
	if err := json.Unmarshal([]byte(`{"id":1,"action":{"type":"BLOCK"}}`), &rule); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rule.Action.Type != ActionBlock {
		t.Errorf("expected block action, got %q", rule.Action.Type)
	}

	if err := json.Unmarshal([]byte(`{"id":1,"action":{"type":"redirect"}}`), &rule); err == nil {
		t.Error("expected error for unsupported action")
	}
}
