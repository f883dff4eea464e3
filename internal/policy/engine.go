package policy

import (
	"context"

	"github.com/stackwarden/warden/api"
)

// Engine is the interface for policy evaluation backends.
type Engine interface {
	// Evaluate checks an action request against loaded policies and returns
	// a decision. An error means the engine itself is unavailable; callers
	// must fail closed.
	Evaluate(ctx context.Context, input *EvalInput) (*api.PolicyDecision, error)

	// LookupRule resolves a (domain, profile, code) baseline mapping.
	// A missing mapping is not an error; ok is false.
	LookupRule(domain, profile, code string) (BaselineRule, bool)

	// Reload reloads policies from the source (file, remote, etc.).
	Reload(ctx context.Context) error
}

// RuleTable indexes baseline rules for LookupRule. Both engine backends
// embed one.
type RuleTable struct {
	rules map[string]BaselineRule
}

// NewRuleTable builds a lookup table from baseline rules.
func NewRuleTable(rules []BaselineRule) *RuleTable {
	t := &RuleTable{rules: make(map[string]BaselineRule, len(rules))}
	for _, r := range rules {
		t.rules[r.Domain+"/"+r.Profile+"/"+r.Code] = r
	}
	return t
}

// LookupRule resolves a baseline mapping; ok is false when absent.
func (t *RuleTable) LookupRule(domain, profile, code string) (BaselineRule, bool) {
	if t == nil || t.rules == nil {
		return BaselineRule{}, false
	}
	r, ok := t.rules[domain+"/"+profile+"/"+code]
	return r, ok
}
