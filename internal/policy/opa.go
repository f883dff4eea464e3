package policy

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/open-policy-agent/opa/topdown"

	"github.com/stackwarden/warden/api"
)

// OPAEngine implements the Engine interface using embedded OPA/Rego.
// Baseline rules still come from the YAML policy file; Rego only decides
// governed actions.
type OPAEngine struct {
	mu   sync.RWMutex
	path string

	table *RuleTable

	// Compiled query for evaluation
	query rego.PreparedEvalQuery
}

// NewOPAEngine creates a new OPA engine from a .rego policy file.
func NewOPAEngine(path string, baselines []BaselineRule) (*OPAEngine, error) {
	e := &OPAEngine{path: path, table: NewRuleTable(baselines)}
	if err := e.Reload(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// NewOPAEngineFromSource creates a new OPA engine from raw Rego source.
func NewOPAEngineFromSource(source string, baselines []BaselineRule) (*OPAEngine, error) {
	e := &OPAEngine{table: NewRuleTable(baselines)}
	if err := e.loadSource(source); err != nil {
		return nil, err
	}
	return e, nil
}

// Evaluate runs the OPA policy against the given input.
//
// The Rego policy must define the following in package warden:
//
//	decision: "allow" | "warn" | "deny"
//	rule_name: string (optional)
//	reasons: array of string (optional)
//	suggestions: array of string (optional)
//	controls: array of string (optional)
//
// Input available to the policy:
//
//	input.action: string
//	input.arguments: object
//	input.context: object
func (e *OPAEngine) Evaluate(ctx context.Context, input *EvalInput) (*api.PolicyDecision, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	inputMap := map[string]any{
		"action": input.Action,
	}
	if input.Arguments != nil {
		inputMap["arguments"] = input.Arguments
	}
	if input.Context != nil {
		inputMap["context"] = input.Context
	}

	rs, err := e.query.Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		// A policy runtime error still yields a decision: deny.
		if topdown.IsError(err) {
			return &api.PolicyDecision{
				Decision: api.DecisionDeny,
				Rule:     "_opa_error",
				Reasons:  []string{"OPA evaluation error: " + err.Error()},
			}, nil
		}
		return nil, fmt.Errorf("OPA evaluation failed: %w", err)
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return &api.PolicyDecision{
			Decision: api.DecisionDeny,
			Rule:     "_opa_default",
			Reasons:  []string{"OPA policy returned no result"},
		}, nil
	}

	resultMap, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return &api.PolicyDecision{
			Decision: api.DecisionDeny,
			Rule:     "_opa_parse_error",
			Reasons:  []string{"unexpected OPA result type"},
		}, nil
	}

	return parseOPAResult(resultMap), nil
}

// LookupRule resolves a baseline mapping from the table supplied at
// construction.
func (e *OPAEngine) LookupRule(domain, profile, code string) (BaselineRule, bool) {
	return e.table.LookupRule(domain, profile, code)
}

// Reload re-reads the Rego policy file from disk and recompiles.
func (e *OPAEngine) Reload(_ context.Context) error {
	if e.path == "" {
		return nil
	}
	data, err := os.ReadFile(e.path)
	if err != nil {
		return fmt.Errorf("reading OPA policy file: %w", err)
	}
	return e.loadSource(string(data))
}

func (e *OPAEngine) loadSource(source string) error {
	// Parse to validate
	_, err := ast.ParseModuleWithOpts("policy.rego", source, ast.ParserOptions{RegoVersion: ast.RegoV1})
	if err != nil {
		return fmt.Errorf("parsing Rego policy: %w", err)
	}

	store := inmem.New()

	r := rego.New(
		rego.Query("data.warden"),
		rego.Module("policy.rego", source),
		rego.Store(store),
	)

	query, err := r.PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("preparing OPA query: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.query = query

	return nil
}

func parseOPAResult(m map[string]any) *api.PolicyDecision {
	result := &api.PolicyDecision{
		Decision: api.DecisionDeny, // default if not set
	}

	if v, ok := m["decision"].(string); ok {
		switch v {
		case "allow":
			result.Decision = api.DecisionAllow
		case "warn":
			result.Decision = api.DecisionWarn
		case "deny":
			result.Decision = api.DecisionDeny
		}
	}

	if r, ok := m["rule_name"].(string); ok {
		result.Rule = r
	}
	result.Reasons = stringSlice(m["reasons"])
	result.Suggestions = stringSlice(m["suggestions"])
	result.Controls = stringSlice(m["controls"])

	return result
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
