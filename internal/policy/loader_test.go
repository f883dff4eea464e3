package policy

import (
	"strings"
	"testing"

	"github.com/stackwarden/warden/api"
)

func TestLoadBytes_DefaultsToDeny(t *testing.T) {
	pf, err := LoadBytes([]byte("version: 1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if pf.Settings.DefaultDecision != api.DecisionDeny {
		t.Errorf("unset default_decision should become deny, got %q", pf.Settings.DefaultDecision)
	}
}

func TestLoadBytes_RejectsUnknownVersion(t *testing.T) {
	if _, err := LoadBytes([]byte("version: 2\n")); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestLoadBytes_RejectsDuplicateRuleNames(t *testing.T) {
	_, err := LoadBytes([]byte(`
version: 1
rules:
  - name: same
    decision: allow
  - name: same
    decision: deny
`))
	if err == nil || !strings.Contains(err.Error(), "duplicate rule name") {
		t.Errorf("expected duplicate-name error, got %v", err)
	}
}

func TestLoadBytes_RejectsInvalidRegex(t *testing.T) {
	_, err := LoadBytes([]byte(`
version: 1
rules:
  - name: bad-regex
    decision: deny
    match:
      action: webapp.create
      arguments:
        name:
          regex: "["
`))
	if err == nil || !strings.Contains(err.Error(), "invalid regex") {
		t.Errorf("expected regex error, got %v", err)
	}
}

func TestLoadBytes_RejectsInvalidDecision(t *testing.T) {
	_, err := LoadBytes([]byte(`
version: 1
rules:
  - name: weird
    decision: maybe
`))
	if err == nil || !strings.Contains(err.Error(), "invalid decision") {
		t.Errorf("expected decision error, got %v", err)
	}
}

func TestLoadBytes_RejectsIncompleteBaseline(t *testing.T) {
	_, err := LoadBytes([]byte(`
version: 1
baselines:
  - domain: webApp
    code: APP_TLS_MIN_BELOW_1_2
`))
	if err == nil || !strings.Contains(err.Error(), "baseline rule") {
		t.Errorf("expected baseline validation error, got %v", err)
	}
}
