package policy

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action represents what a rule does to a matching request
type Action string

const (
	ActionBlock Action = "block"
	ActionAllow Action = "allow"
)

// UnmarshalJSON implements json.Unmarshaler to normalize action to lowercase.
func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	normalized := Action(strings.ToLower(s))

	switch normalized {
	case ActionBlock, ActionAllow:
		*a = normalized
		return nil
	default:
		return fmt.Errorf("invalid action: %s (must be block or allow)", s)
	}
}

// ResourceType is the kind of request a rule applies to
type ResourceType string

const (
	ResourceMainFrame ResourceType = "main_frame"
	ResourceSubFrame  ResourceType = "sub_frame"
)

// RuleAction is the action half of a declarative rule
type RuleAction struct {
	Type Action `json:"type"`
}

// RuleCondition is the match half of a declarative rule
type RuleCondition struct {
	URLFilter     string         `json:"urlFilter"`     // "||youtube.com^"
	ResourceTypes []ResourceType `json:"resourceTypes"` // empty = all types
}

// Rule is one replace-by-id declarative network rule
type Rule struct {
	ID        int           `json:"id"`
	Priority  int           `json:"priority"`
	Action    RuleAction    `json:"action"`
	Condition RuleCondition `json:"condition"`
}

// Domain returns the hostname anchored by a "||host^" URL filter, or "" if
// the filter has another shape.
func (r Rule) Domain() string {
	f := r.Condition.URLFilter
	if !strings.HasPrefix(f, "||") || !strings.HasSuffix(f, "^") {
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(f, "||"), "^"))
}

// DomainFilter builds the URL filter matching host and its subdomains
func DomainFilter(host string) string {
	return "||" + host + "^"
}

// Request is a navigation to be evaluated
type Request struct {
	URL          string       `json:"url"`
	ResourceType ResourceType `json:"resourceType"`
}

// Decision represents the result of policy evaluation
type Decision struct {
	Blocked bool   `json:"blocked"`
	RuleID  int    `json:"ruleId,omitempty"`
	Host    string `json:"host"`
	Reason  string `json:"reason"`
}
