package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stackwarden/warden/api"
)

const minimalPolicy = `
version: 1
settings:
  default_decision: deny
`

func TestLoadBytes_AppliesDefaults(t *testing.T) {
	cfg, err := LoadBytes([]byte(minimalPolicy))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Profile != DefaultProfile {
		t.Errorf("profile = %q, want %q", cfg.Profile, DefaultProfile)
	}
	if cfg.MaxListPerKind != DefaultMaxListPerKind {
		t.Errorf("maxListPerKind = %d, want %d", cfg.MaxListPerKind, DefaultMaxListPerKind)
	}
	if cfg.PlanTTL != DefaultPlanTTL {
		t.Errorf("planTTL = %v, want %v", cfg.PlanTTL, DefaultPlanTTL)
	}
	if cfg.DefaultDecision != api.DecisionDeny {
		t.Errorf("defaultDecision = %q, want deny", cfg.DefaultDecision)
	}
	if strings.HasPrefix(cfg.LogDir, "~") {
		t.Errorf("log dir should be home-expanded, got %q", cfg.LogDir)
	}
}

func TestLoadBytes_ExplicitSettings(t *testing.T) {
	cfg, err := LoadBytes([]byte(`
version: 1
settings:
  default_decision: deny
  profile: strict-v2
  workspace_id: law-central
  max_list_per_kind: 50
  plan_ttl: 5m
  log_dir: /var/log/warden
`))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Profile != "strict-v2" {
		t.Errorf("profile = %q", cfg.Profile)
	}
	if cfg.WorkspaceID != "law-central" {
		t.Errorf("workspaceID = %q", cfg.WorkspaceID)
	}
	if cfg.MaxListPerKind != 50 {
		t.Errorf("maxListPerKind = %d", cfg.MaxListPerKind)
	}
	if cfg.PlanTTL != 5*time.Minute {
		t.Errorf("planTTL = %v", cfg.PlanTTL)
	}
	if cfg.LogDir != "/var/log/warden" {
		t.Errorf("logDir = %q", cfg.LogDir)
	}
}

func TestLoadBytes_InvalidPlanTTL(t *testing.T) {
	_, err := LoadBytes([]byte(`
version: 1
settings:
  default_decision: deny
  plan_ttl: soonish
`))
	if err == nil {
		t.Fatal("expected error for malformed plan_ttl")
	}
	if !strings.Contains(err.Error(), "plan_ttl") {
		t.Errorf("error should name the bad field, got %v", err)
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(minimalPolicy), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PolicyPath != path {
		t.Errorf("policyPath = %q, want %q", cfg.PolicyPath, path)
	}
	if cfg.PolicyFile == nil || cfg.PolicyFile.Version != 1 {
		t.Errorf("unexpected policy file: %+v", cfg.PolicyFile)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaultConfig_FailsClosed(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DefaultDecision != api.DecisionDeny {
		t.Errorf("default decision must be deny, got %q", cfg.DefaultDecision)
	}
	if cfg.PlanTTL != DefaultPlanTTL {
		t.Errorf("planTTL = %v", cfg.PlanTTL)
	}
}
