package policy

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/stackwarden/warden/api"
)

// LoadFile reads and validates a YAML policy file.
func LoadFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates YAML policy data.
func LoadBytes(data []byte) (*PolicyFile, error) {
	var pf PolicyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}
	if err := validate(&pf); err != nil {
		return nil, err
	}
	return &pf, nil
}

func validate(pf *PolicyFile) error {
	if pf.Version != 1 {
		return fmt.Errorf("unsupported policy version: %d (expected 1)", pf.Version)
	}

	if pf.Settings.DefaultDecision == "" {
		pf.Settings.DefaultDecision = api.DecisionDeny
	}
	if !validDecision(pf.Settings.DefaultDecision) {
		return fmt.Errorf("invalid default_decision: %q", pf.Settings.DefaultDecision)
	}

	seen := make(map[string]bool, len(pf.Rules))
	for i, rule := range pf.Rules {
		if rule.Name == "" {
			return fmt.Errorf("rule %d: name is required", i)
		}
		if seen[rule.Name] {
			return fmt.Errorf("duplicate rule name: %q", rule.Name)
		}
		seen[rule.Name] = true

		if !validDecision(rule.Decision) {
			return fmt.Errorf("rule %q: invalid decision %q", rule.Name, rule.Decision)
		}

		for key, am := range rule.Match.Arguments {
			if am.Regex != "" {
				if _, err := regexp.Compile(am.Regex); err != nil {
					return fmt.Errorf("rule %q argument %q: invalid regex: %w", rule.Name, key, err)
				}
			}
		}
	}

	for i, b := range pf.Baselines {
		if b.Domain == "" || b.Profile == "" || b.Code == "" {
			return fmt.Errorf("baseline rule %d: domain, profile and code are required", i)
		}
	}

	return nil
}

func validDecision(d api.Decision) bool {
	switch d {
	case api.DecisionAllow, api.DecisionWarn, api.DecisionDeny:
		return true
	}
	return false
}
