package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stackwarden/warden/internal/config"
	"github.com/stackwarden/warden/internal/executor"
	"github.com/stackwarden/warden/internal/policy"
	"github.com/stackwarden/warden/internal/provider"
)

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return nil, fmt.Errorf("--config/-c is required")
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// buildEngine picks the policy backend: embedded OPA when the settings name
// a Rego file, the YAML rule engine otherwise. Baseline mappings always come
// from the YAML policy file.
func buildEngine(cfg *config.Config) (policy.Engine, error) {
	if cfg.PolicyFile.Settings.OPAPolicy != "" {
		engine, err := policy.NewOPAEngine(cfg.PolicyFile.Settings.OPAPolicy, cfg.PolicyFile.Baselines)
		if err != nil {
			return nil, fmt.Errorf("creating OPA policy engine: %w", err)
		}
		return engine, nil
	}
	engine, err := policy.NewYAMLEngineFromPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("creating policy engine: %w", err)
	}
	return engine, nil
}

func loadInventory(path string, noPartialUpdate bool) (provider.Client, error) {
	if path == "" {
		return nil, fmt.Errorf("--inventory is required")
	}
	client, err := provider.LoadStatic(path)
	if err != nil {
		return nil, fmt.Errorf("loading inventory: %w", err)
	}
	if noPartialUpdate {
		return provider.NoPatch{Client: client}, nil
	}
	return client, nil
}

// openPlanStore opens the file-backed plan store under the audit log
// directory so held plans survive between invocations.
func openPlanStore(cfg *config.Config) (*executor.PlanStore, error) {
	store, err := executor.LoadPlanStore(filepath.Join(cfg.LogDir, "plans.json"), cfg.PlanTTL)
	if err != nil {
		return nil, fmt.Errorf("opening plan store: %w", err)
	}
	return store, nil
}

func limiterConfig(cfg *config.Config) executor.RateLimitConfig {
	rl := executor.RateLimitConfigFromSettings(cfg.PolicyFile.Settings.RateLimit)
	if rl == nil {
		return executor.RateLimitConfig{}
	}
	return *rl
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
