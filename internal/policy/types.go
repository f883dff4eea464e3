package policy

import (
	"github.com/stackwarden/warden/api"
)

// PolicyFile represents the top-level YAML policy configuration.
type PolicyFile struct {
	Version   int            `yaml:"version" json:"version"`
	Settings  Settings       `yaml:"settings" json:"settings"`
	Rules     []Rule         `yaml:"rules" json:"rules"`
	Baselines []BaselineRule `yaml:"baselines,omitempty" json:"baselines,omitempty"`
}

// Settings contains global policy settings.
type Settings struct {
	DefaultDecision api.Decision       `yaml:"default_decision" json:"default_decision"`
	LogDir          string             `yaml:"log_dir" json:"log_dir"`
	Profile         string             `yaml:"profile,omitempty" json:"profile,omitempty"`
	OPAPolicy       string             `yaml:"opa_policy,omitempty" json:"opa_policy,omitempty"`
	WorkspaceID     string             `yaml:"workspace_id,omitempty" json:"workspace_id,omitempty"`
	MaxListPerKind  int                `yaml:"max_list_per_kind,omitempty" json:"max_list_per_kind,omitempty"`
	RateLimit       *RateLimitSettings `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	PlanTTL         string             `yaml:"plan_ttl,omitempty" json:"plan_ttl,omitempty"`
}

// RateLimitSettings configures rate limiting of mutating actions.
type RateLimitSettings struct {
	Global    *RateLimitRule            `yaml:"global,omitempty" json:"global,omitempty"`
	PerAction map[string]*RateLimitRule `yaml:"per_action,omitempty" json:"per_action,omitempty"`
}

// RateLimitRule defines a rate limit: max requests per time window.
type RateLimitRule struct {
	Max    int    `yaml:"max" json:"max"`
	Window string `yaml:"window" json:"window"`
}

// Rule represents a single action policy rule.
type Rule struct {
	Name        string       `yaml:"name" json:"name"`
	Match       RuleMatch    `yaml:"match" json:"match"`
	Decision    api.Decision `yaml:"decision" json:"decision"`
	Reasons     []string     `yaml:"reasons,omitempty" json:"reasons,omitempty"`
	Suggestions []string     `yaml:"suggestions,omitempty" json:"suggestions,omitempty"`
	Controls    []string     `yaml:"controls,omitempty" json:"controls,omitempty"`
}

// RuleMatch specifies conditions for matching an action request.
type RuleMatch struct {
	Action    string                   `yaml:"action,omitempty" json:"action,omitempty"`
	Arguments map[string]ArgumentMatch `yaml:"arguments,omitempty" json:"arguments,omitempty"`
}

// ArgumentMatch specifies a matching condition for a single argument.
type ArgumentMatch struct {
	Exact string `yaml:"exact,omitempty" json:"exact,omitempty"`
	Regex string `yaml:"regex,omitempty" json:"regex,omitempty"`
}

// BaselineRule maps a (domain, profile, code) triple to compliance controls
// and a remediation suggestion. Scans use it to enrich findings.
type BaselineRule struct {
	Domain   string   `yaml:"domain" json:"domain"`
	Profile  string   `yaml:"profile" json:"profile"`
	Code     string   `yaml:"code" json:"code"`
	Controls []string `yaml:"controls,omitempty" json:"controls,omitempty"`
	Suggest  string   `yaml:"suggest,omitempty" json:"suggest,omitempty"`
}

// EvalInput is the input to a policy engine evaluation.
type EvalInput struct {
	Action    string         `json:"action"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}
