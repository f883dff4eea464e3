package policy

import (
	"context"
	"testing"

	"github.com/stackwarden/warden/api"
)

func testPolicy() *PolicyFile {
	return &PolicyFile{
		Version: 1,
		Settings: Settings{
			DefaultDecision: api.DecisionDeny,
		},
		Rules: []Rule{
			// Deny rules before allow rules (first-match-wins, like iptables)
			{
				Name: "block-prod-deletes",
				Match: RuleMatch{
					Arguments: map[string]ArgumentMatch{
						"group": {Exact: "prod-locked"},
					},
				},
				Decision:    api.DecisionDeny,
				Reasons:     []string{"the prod-locked group is change-frozen"},
				Suggestions: []string{"target a non-frozen resource group"},
			},
			{
				Name: "warn-public-network",
				Match: RuleMatch{
					Arguments: map[string]ArgumentMatch{
						"_any_value": {Regex: `(?i)public`},
					},
				},
				Decision: api.DecisionWarn,
				Reasons:  []string{"request touches public network settings"},
				Controls: []string{"NET-01"},
			},
			{
				Name:     "allow-webapp-create",
				Match:    RuleMatch{Action: "webapp.create"},
				Decision: api.DecisionAllow,
			},
			{
				Name:     "allow-remediate",
				Match:    RuleMatch{Action: "remediate"},
				Decision: api.DecisionAllow,
			},
		},
		Baselines: []BaselineRule{
			{
				Domain:   "webApp",
				Profile:  "baseline-v1",
				Code:     "APP_TLS_MIN_BELOW_1_2",
				Controls: []string{"CIS-9.3", "NIST-SC-8"},
				Suggest:  "set the minimum TLS version to 1.2",
			},
		},
	}
}

func TestYAMLEngine_AllowCreate(t *testing.T) {
	engine, err := NewYAMLEngineFromPolicy(testPolicy())
	if err != nil {
		t.Fatal(err)
	}

	decision, err := engine.Evaluate(context.Background(), &EvalInput{Action: "webapp.create"})
	if err != nil {
		t.Fatal(err)
	}
	if decision.Decision != api.DecisionAllow {
		t.Errorf("expected allow, got %s", decision.Decision)
	}
	if decision.Rule != "allow-webapp-create" {
		t.Errorf("expected rule allow-webapp-create, got %s", decision.Rule)
	}
}

func TestYAMLEngine_DenyFrozenGroup(t *testing.T) {
	engine, err := NewYAMLEngineFromPolicy(testPolicy())
	if err != nil {
		t.Fatal(err)
	}

	decision, err := engine.Evaluate(context.Background(), &EvalInput{
		Action:    "webapp.create",
		Arguments: map[string]any{"group": "prod-locked", "name": "site"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if decision.Decision != api.DecisionDeny {
		t.Errorf("expected deny, got %s", decision.Decision)
	}
	if len(decision.Reasons) == 0 {
		t.Error("expected deny reasons to be carried")
	}
	if len(decision.Suggestions) == 0 {
		t.Error("expected deny suggestions to be carried")
	}
}

func TestYAMLEngine_WarnAnyValueRegex(t *testing.T) {
	engine, err := NewYAMLEngineFromPolicy(testPolicy())
	if err != nil {
		t.Fatal(err)
	}

	decision, err := engine.Evaluate(context.Background(), &EvalInput{
		Action:    "storage.restrict_network",
		Arguments: map[string]any{"publicNetworkAccess": "PublicEnabled"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if decision.Decision != api.DecisionWarn {
		t.Errorf("expected warn, got %s", decision.Decision)
	}
	if decision.Rule != "warn-public-network" {
		t.Errorf("expected rule warn-public-network, got %s", decision.Rule)
	}
	if len(decision.Controls) != 1 || decision.Controls[0] != "NET-01" {
		t.Errorf("expected control NET-01, got %v", decision.Controls)
	}
}

func TestYAMLEngine_DefaultDecision(t *testing.T) {
	engine, err := NewYAMLEngineFromPolicy(testPolicy())
	if err != nil {
		t.Fatal(err)
	}

	decision, err := engine.Evaluate(context.Background(), &EvalInput{Action: "unknown.action"})
	if err != nil {
		t.Fatal(err)
	}
	if decision.Decision != api.DecisionDeny {
		t.Errorf("expected default deny, got %s", decision.Decision)
	}
	if decision.Rule != "_default" {
		t.Errorf("expected rule _default, got %s", decision.Rule)
	}
}

func TestYAMLEngine_LookupRule(t *testing.T) {
	engine, err := NewYAMLEngineFromPolicy(testPolicy())
	if err != nil {
		t.Fatal(err)
	}

	rule, ok := engine.LookupRule("webApp", "baseline-v1", "APP_TLS_MIN_BELOW_1_2")
	if !ok {
		t.Fatal("expected baseline rule to resolve")
	}
	if rule.Suggest == "" {
		t.Error("expected a suggestion on the baseline rule")
	}
	if len(rule.Controls) != 2 {
		t.Errorf("expected 2 controls, got %d", len(rule.Controls))
	}

	if _, ok := engine.LookupRule("webApp", "baseline-v1", "NO_SUCH_CODE"); ok {
		t.Error("expected missing mapping to report ok=false")
	}
}
