package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stackwarden/warden/api"
	"github.com/stackwarden/warden/internal/policy"
)

// Config is the runtime configuration for Warden.
type Config struct {
	PolicyFile      *policy.PolicyFile
	PolicyPath      string
	LogDir          string
	Profile         string
	WorkspaceID     string
	MaxListPerKind  int
	PlanTTL         time.Duration
	DefaultDecision api.Decision
}

// Load reads a policy YAML file and produces a runtime Config.
func Load(path string) (*Config, error) {
	pf, err := policy.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return fromPolicy(pf, path)
}

// LoadBytes parses YAML data and produces a runtime Config.
func LoadBytes(data []byte) (*Config, error) {
	pf, err := policy.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return fromPolicy(pf, "")
}

func fromPolicy(pf *policy.PolicyFile, path string) (*Config, error) {
	cfg := &Config{
		PolicyFile:      pf,
		PolicyPath:      path,
		DefaultDecision: pf.Settings.DefaultDecision,
		WorkspaceID:     pf.Settings.WorkspaceID,
	}

	// Log directory
	cfg.LogDir = pf.Settings.LogDir
	if cfg.LogDir == "" {
		cfg.LogDir = DefaultLogDir()
	}
	cfg.LogDir = expandHome(cfg.LogDir)

	// Scan profile
	cfg.Profile = pf.Settings.Profile
	if cfg.Profile == "" {
		cfg.Profile = DefaultProfile
	}

	// Group scan cap
	cfg.MaxListPerKind = pf.Settings.MaxListPerKind
	if cfg.MaxListPerKind <= 0 {
		cfg.MaxListPerKind = DefaultMaxListPerKind
	}

	// Held-plan TTL
	if pf.Settings.PlanTTL != "" {
		d, err := time.ParseDuration(pf.Settings.PlanTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid plan_ttl %q: %w", pf.Settings.PlanTTL, err)
		}
		cfg.PlanTTL = d
	} else {
		cfg.PlanTTL = DefaultPlanTTL
	}

	return cfg, nil
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfig returns a config with defaults for when no config file is given.
func DefaultConfig() *Config {
	return &Config{
		PolicyFile: &policy.PolicyFile{
			Version: 1,
			Settings: policy.Settings{
				DefaultDecision: api.DecisionDeny,
			},
		},
		LogDir:          expandHome(DefaultLogDir()),
		Profile:         DefaultProfile,
		MaxListPerKind:  DefaultMaxListPerKind,
		PlanTTL:         DefaultPlanTTL,
		DefaultDecision: api.DecisionDeny,
	}
}

// MarshalYAML serializes the policy for display/export.
func (c *Config) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(c.PolicyFile)
}
