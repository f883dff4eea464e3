package remediate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stackwarden/warden/api"
	"github.com/stackwarden/warden/internal/provider"
)

// Strategy is how the applier writes a changed field back to the provider.
// It is resolved once per client at construction, not re-checked per call.
type Strategy int

const (
	// PartialUpdate patches the single changed field in place.
	PartialUpdate Strategy = iota
	// FullRecreate fetches the full representation, overlays the changed
	// field, and reissues a full create/update. Used when the client has no
	// partial-update verb; reconstructing from current state avoids
	// clobbering unrelated configuration.
	FullRecreate
)

// patches maps each step action to the provider-side property overlay it
// performs.
var patches = map[string]func(args map[string]any) provider.Resource{
	"webapp.set_min_tls": func(a map[string]any) provider.Resource {
		return provider.Resource{"minTlsVersion": a["minTlsVersion"]}
	},
	"webapp.set_https_only": func(a map[string]any) provider.Resource {
		return provider.Resource{"httpsOnly": a["httpsOnly"]}
	},
	"webapp.set_ftps_state": func(a map[string]any) provider.Resource {
		return provider.Resource{"ftpsState": a["ftpsState"]}
	},
	"webapp.enable_identity": func(a map[string]any) provider.Resource {
		return provider.Resource{"identity": map[string]any{"type": a["identityType"]}}
	},
	"webapp.enable_diagnostics": func(a map[string]any) provider.Resource {
		return provider.Resource{"workspaceId": a["workspaceId"]}
	},
	"storage.set_min_tls": func(a map[string]any) provider.Resource {
		return provider.Resource{"minimumTlsVersion": a["minimumTlsVersion"]}
	},
	"storage.require_https": func(a map[string]any) provider.Resource {
		return provider.Resource{"supportsHttpsTrafficOnly": a["supportsHttpsTrafficOnly"]}
	},
	"storage.restrict_network": func(a map[string]any) provider.Resource {
		return provider.Resource{"publicNetworkAccess": a["publicNetworkAccess"]}
	},
	"storage.block_blob_public": func(a map[string]any) provider.Resource {
		return provider.Resource{"allowBlobPublicAccess": a["allowBlobPublicAccess"]}
	},
	"storage.enable_diagnostics": func(a map[string]any) provider.Resource {
		return provider.Resource{"workspaceId": a["workspaceId"]}
	},
}

// Applier executes remediation steps against a provider client.
type Applier struct {
	client   provider.Client
	patcher  provider.PartialUpdater
	strategy Strategy
	logger   *slog.Logger
}

// NewApplier creates an Applier, probing the client's partial-update
// capability exactly once.
func NewApplier(client provider.Client, logger *slog.Logger) *Applier {
	a := &Applier{client: client, strategy: FullRecreate, logger: logger}
	if patcher, ok := client.(provider.PartialUpdater); ok {
		a.patcher = patcher
		a.strategy = PartialUpdate
	}
	return a
}

// Strategy reports the write strategy resolved at construction.
func (a *Applier) Strategy() Strategy {
	return a.strategy
}

// Apply executes steps sequentially, never stopping on an individual step
// failure. With dryRun set, it performs zero provider calls and reports the
// planned steps only. applied + failed always equals len(steps) on a real
// run.
func (a *Applier) Apply(ctx context.Context, steps []api.RemediationStep, dryRun bool) ([]api.StepResult, *api.RemediationReport) {
	report := &api.RemediationReport{PlannedSteps: len(steps)}

	if dryRun {
		return nil, report
	}

	results := make([]api.StepResult, 0, len(steps))
	for _, st := range steps {
		res, err := a.applyStep(ctx, st)
		if err != nil {
			ae := provider.Normalize(err)
			report.Failed++
			report.Errors = append(report.Errors, *ae)
			results = append(results, api.StepResult{Step: st, OK: false, Error: ae})
			a.logger.Warn("remediation step failed", "action", st.Action, "error", ae)
			continue
		}
		report.Applied++
		results = append(results, api.StepResult{Step: st, OK: true, Result: res})
	}

	return results, report
}

func (a *Applier) applyStep(ctx context.Context, st api.RemediationStep) (provider.Resource, error) {
	kind, ok := StepKind(st.Action)
	if !ok {
		return nil, fmt.Errorf("unknown step action %q", st.Action)
	}
	buildPatch, ok := patches[st.Action]
	if !ok {
		return nil, fmt.Errorf("no patch mapping for step action %q", st.Action)
	}

	ref := api.ResourceRef{
		Group: str(st.Arguments, "group"),
		Name:  str(st.Arguments, "name"),
	}
	if ref.Group == "" || ref.Name == "" {
		return nil, fmt.Errorf("step %q: missing resource coordinates", st.Action)
	}

	patch := buildPatch(st.Arguments)

	if a.strategy == PartialUpdate {
		return a.patcher.Update(ctx, kind, ref, patch)
	}

	// Read-modify-recreate: rebuild every other field from current state.
	current, err := a.client.Get(ctx, kind, ref)
	if err != nil {
		return nil, err
	}
	full := current.Clone()
	for k, v := range patch {
		full[k] = v
	}
	return a.client.Create(ctx, kind, ref, full)
}

func str(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
