// Package remediate turns baseline findings into a minimal, deduplicated set
// of corrective steps and applies them against a resource provider.
package remediate

import (
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/stackwarden/warden/api"
	"github.com/stackwarden/warden/internal/provider"
)

// Defaults carry external parameters that cannot be derived from a finding
// itself. A fix that needs an unset default is omitted with a suggestion, not
// guessed at.
type Defaults struct {
	WorkspaceID string
}

// ResourcePlan is the planned remediation for one resource.
type ResourcePlan struct {
	Kind        string                `json:"kind"`
	Resource    api.ResourceRef       `json:"resource"`
	Steps       []api.RemediationStep `json:"steps"`
	Suggestions []string              `json:"suggestions,omitempty"`
}

// Planner maps finding codes to remediation steps.
type Planner struct {
	defaults Defaults
	logger   *slog.Logger
}

// NewPlanner creates a Planner with the given defaults.
func NewPlanner(defaults Defaults, logger *slog.Logger) *Planner {
	return &Planner{defaults: defaults, logger: logger}
}

// fix describes how one finding code is corrected. A nil build entry means
// the code has no automated fix.
type fix struct {
	action string
	build  func(ref api.ResourceRef, d Defaults) (api.RemediationStep, string)
}

var fixes = map[string]fix{
	"APP_TLS_MIN_BELOW_1_2": {action: "webapp.set_min_tls", build: func(ref api.ResourceRef, _ Defaults) (api.RemediationStep, string) {
		return step("webapp.set_min_tls", ref, map[string]any{"minTlsVersion": "1.2"}), ""
	}},
	"APP_HTTPS_ONLY_DISABLED": {action: "webapp.set_https_only", build: func(ref api.ResourceRef, _ Defaults) (api.RemediationStep, string) {
		return step("webapp.set_https_only", ref, map[string]any{"httpsOnly": true}), ""
	}},
	"APP_FTPS_NOT_DISABLED": {action: "webapp.set_ftps_state", build: func(ref api.ResourceRef, _ Defaults) (api.RemediationStep, string) {
		return step("webapp.set_ftps_state", ref, map[string]any{"ftpsState": "Disabled"}), ""
	}},
	"APP_MSI_DISABLED": {action: "webapp.enable_identity", build: func(ref api.ResourceRef, _ Defaults) (api.RemediationStep, string) {
		return step("webapp.enable_identity", ref, map[string]any{"identityType": "SystemAssigned"}), ""
	}},
	"APP_SKU_FREE_TIER": {build: func(ref api.ResourceRef, _ Defaults) (api.RemediationStep, string) {
		// A SKU change has billing impact; never automated.
		return api.RemediationStep{}, "upgrade " + ref.String() + " off the free tier to unlock always-on and custom TLS"
	}},
	"APP_DIAG_NO_LAW": {action: "webapp.enable_diagnostics", build: func(ref api.ResourceRef, d Defaults) (api.RemediationStep, string) {
		if d.WorkspaceID == "" {
			return api.RemediationStep{}, "provide a log workspace ID to enable diagnostics for " + ref.String()
		}
		return step("webapp.enable_diagnostics", ref, map[string]any{"workspaceId": d.WorkspaceID}), ""
	}},
	"STG_TLS_MIN_BELOW_1_2": {action: "storage.set_min_tls", build: func(ref api.ResourceRef, _ Defaults) (api.RemediationStep, string) {
		return step("storage.set_min_tls", ref, map[string]any{"minimumTlsVersion": "TLS1_2"}), ""
	}},
	"STG_HTTPS_TRAFFIC_OFF": {action: "storage.require_https", build: func(ref api.ResourceRef, _ Defaults) (api.RemediationStep, string) {
		return step("storage.require_https", ref, map[string]any{"supportsHttpsTrafficOnly": true}), ""
	}},
	"STG_PUBLIC_NETWORK_OPEN": {action: "storage.restrict_network", build: func(ref api.ResourceRef, _ Defaults) (api.RemediationStep, string) {
		return step("storage.restrict_network", ref, map[string]any{"publicNetworkAccess": "Disabled"}), ""
	}},
	"STG_BLOB_PUBLIC_ACCESS": {action: "storage.block_blob_public", build: func(ref api.ResourceRef, _ Defaults) (api.RemediationStep, string) {
		return step("storage.block_blob_public", ref, map[string]any{"allowBlobPublicAccess": false}), ""
	}},
	"STG_DIAG_NO_LAW": {action: "storage.enable_diagnostics", build: func(ref api.ResourceRef, d Defaults) (api.RemediationStep, string) {
		if d.WorkspaceID == "" {
			return api.RemediationStep{}, "provide a log workspace ID to enable diagnostics for " + ref.String()
		}
		return step("storage.enable_diagnostics", ref, map[string]any{"workspaceId": d.WorkspaceID}), ""
	}},
}

func step(action string, ref api.ResourceRef, args map[string]any) api.RemediationStep {
	full := map[string]any{"group": ref.Group, "name": ref.Name}
	for k, v := range args {
		full[k] = v
	}
	return api.RemediationStep{Action: action, Arguments: full}
}

// Plan turns the findings for one resource into a deduplicated, ordered step
// list. Findings with no mapped fix contribute nothing; fixes missing a
// required default contribute a suggestion instead.
func (p *Planner) Plan(findings []api.Finding) ([]api.RemediationStep, []string) {
	var steps []api.RemediationStep
	var suggestions []string
	seenSteps := make(map[string]bool)
	seenSuggestions := make(map[string]bool)

	for _, f := range findings {
		fx, ok := fixes[f.Code]
		if !ok || fx.build == nil {
			continue
		}
		st, suggestion := fx.build(f.Resource, p.defaults)
		if suggestion != "" {
			if !seenSuggestions[suggestion] {
				seenSuggestions[suggestion] = true
				suggestions = append(suggestions, suggestion)
			}
			continue
		}
		k := canonicalKey(st)
		if seenSteps[k] {
			continue
		}
		seenSteps[k] = true
		steps = append(steps, st)
	}

	return steps, suggestions
}

// PlanGroup groups findings by target resource and kind, then plans each
// resource independently. Findings whose meta does not identify a kind are
// dropped from planning, not crashed on.
func (p *Planner) PlanGroup(findings []api.Finding) []ResourcePlan {
	type target struct {
		kind string
		ref  api.ResourceRef
	}

	grouped := make(map[target][]api.Finding)
	var order []target
	for _, f := range findings {
		if f.Kind == "" || f.Resource.Name == "" {
			p.logger.Warn("dropping unplannable finding", "code", f.Code, "resource", f.Resource)
			continue
		}
		t := target{kind: f.Kind, ref: f.Resource}
		if _, ok := grouped[t]; !ok {
			order = append(order, t)
		}
		grouped[t] = append(grouped[t], f)
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].kind != order[j].kind {
			return order[i].kind < order[j].kind
		}
		return order[i].ref.String() < order[j].ref.String()
	})

	var plans []ResourcePlan
	for _, t := range order {
		steps, suggestions := p.Plan(grouped[t])
		if len(steps) == 0 && len(suggestions) == 0 {
			continue
		}
		plans = append(plans, ResourcePlan{
			Kind:        t.kind,
			Resource:    t.ref,
			Steps:       steps,
			Suggestions: suggestions,
		})
	}
	return plans
}

// canonicalKey is the identity of a step: action plus the normalized subset
// of arguments that determine what is being changed on which resource.
// encoding/json sorts map keys, giving a stable byte form.
func canonicalKey(st api.RemediationStep) string {
	data, err := json.Marshal(st.Arguments)
	if err != nil {
		return st.Action
	}
	return st.Action + "|" + string(data)
}

// StepKind resolves which resource kind a step action targets.
func StepKind(action string) (provider.Kind, bool) {
	switch {
	case len(action) > 7 && action[:7] == "webapp.":
		return provider.KindWebApp, true
	case len(action) > 8 && action[:8] == "storage.":
		return provider.KindStorageAccount, true
	}
	return "", false
}
