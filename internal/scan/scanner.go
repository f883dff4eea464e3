// Package scan inspects provisioned resources and emits findings describing
// deviations from a policy profile's baseline rules.
package scan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stackwarden/warden/api"
	"github.com/stackwarden/warden/internal/policy"
	"github.com/stackwarden/warden/internal/provider"
)

// Options configure one scan.
type Options struct {
	Profile         string
	TolerateMissing bool
	MinSeverity     api.Severity
	ExcludeCodes    []string
}

// Scanner evaluates baseline check tables against provider state.
type Scanner struct {
	client  provider.Client
	engine  policy.Engine
	logger  *slog.Logger
	profile string
	maxList int
}

// New creates a Scanner. profile is the process-wide default; maxList bounds
// each kind's result count in group scans.
func New(client provider.Client, engine policy.Engine, logger *slog.Logger, profile string, maxList int) *Scanner {
	return &Scanner{
		client:  client,
		engine:  engine,
		logger:  logger,
		profile: profile,
		maxList: maxList,
	}
}

// ScanResource scans a single resource. A missing resource is either a
// high-severity finding (TolerateMissing) or a scan-level error, never
// silently dropped.
func (s *Scanner) ScanResource(ctx context.Context, kind provider.Kind, ref api.ResourceRef, opts Options) (*api.ScanReport, error) {
	profile := s.resolveProfile(opts)

	res, err := s.client.Get(ctx, kind, ref)
	if err != nil {
		if provider.IsNotFound(err) {
			if !opts.TolerateMissing {
				return nil, fmt.Errorf("scanning %s %s: %w", kind, ref, err)
			}
			finding := s.enrich(api.Finding{
				Code:     CodeMissing,
				Severity: api.SeverityHigh,
				Kind:     string(kind),
				Resource: ref,
				Meta:     map[string]any{"reason": "provider reports resource not found"},
			}, profile)
			return s.report(profile, []api.Finding{finding}, opts, nil), nil
		}
		return nil, fmt.Errorf("scanning %s %s: %w", kind, ref, err)
	}

	findings := s.evaluate(kind, ref, res, profile)
	return s.report(profile, findings, opts, nil), nil
}

// ScanGroup scans every resource of every kind in a resource group. One bad
// resource records an error and the scan continues.
func (s *Scanner) ScanGroup(ctx context.Context, group string, opts Options) (*api.ScanReport, error) {
	profile := s.resolveProfile(opts)

	var findings []api.Finding
	var scanErrs []api.ActionError

	for _, kind := range provider.Kinds() {
		resources, err := s.client.List(ctx, kind, group)
		if err != nil {
			s.logger.Warn("listing resources failed", "kind", kind, "group", group, "error", err)
			scanErrs = append(scanErrs, *provider.Normalize(err))
			continue
		}
		if s.maxList > 0 && len(resources) > s.maxList {
			s.logger.Warn("truncating resource list", "kind", kind, "group", group, "cap", s.maxList)
			resources = resources[:s.maxList]
		}

		for _, res := range resources {
			ref := api.ResourceRef{Group: group, Name: res.Str("name", "")}
			findings = append(findings, s.evaluate(kind, ref, res, profile)...)
		}
	}

	return s.report(profile, findings, opts, scanErrs), nil
}

func (s *Scanner) evaluate(kind provider.Kind, ref api.ResourceRef, res provider.Resource, profile string) []api.Finding {
	var findings []api.Finding
	for _, check := range Checks(kind) {
		if !check.Failed(res) {
			continue
		}
		f := api.Finding{
			Code:     check.Code,
			Severity: check.Severity.Normalize(),
			Kind:     string(kind),
			Resource: ref,
		}
		if check.Meta != nil {
			f.Meta = check.Meta(res)
		}
		findings = append(findings, s.enrich(f, profile))
	}
	return findings
}

// enrich attaches suggestions and control IDs from the policy engine's rule
// table. A missing mapping degrades to empty lists, never a failed scan.
func (s *Scanner) enrich(f api.Finding, profile string) api.Finding {
	rule, ok := s.engine.LookupRule(f.Kind, profile, f.Code)
	if !ok {
		return f
	}
	f.Suggest = rule.Suggest
	f.Controls = rule.Controls
	return f
}

func (s *Scanner) report(profile string, findings []api.Finding, opts Options, scanErrs []api.ActionError) *api.ScanReport {
	kept, dropped := filterFindings(findings, opts)

	summary := api.ScanSummary{
		Total:      len(kept),
		BySeverity: make(map[api.Severity]int),
	}
	for _, f := range kept {
		summary.BySeverity[f.Severity]++
	}

	status := "ok"
	if len(scanErrs) > 0 {
		status = "partial"
	}

	return &api.ScanReport{
		Status:   status,
		Profile:  profile,
		Findings: kept,
		Summary:  summary,
		Filters: api.ScanFilters{
			MinSeverity:           opts.MinSeverity,
			ExcludeFindingsByCode: opts.ExcludeCodes,
			Dropped:               dropped,
		},
		Errors: scanErrs,
	}
}

func filterFindings(findings []api.Finding, opts Options) (kept []api.Finding, dropped int) {
	excluded := make(map[string]bool, len(opts.ExcludeCodes))
	for _, code := range opts.ExcludeCodes {
		excluded[code] = true
	}

	minRank := 0
	if opts.MinSeverity != "" {
		minRank = opts.MinSeverity.Rank()
	}

	kept = []api.Finding{}
	for _, f := range findings {
		if excluded[f.Code] || f.Severity.Rank() < minRank {
			dropped++
			continue
		}
		kept = append(kept, f)
	}
	return kept, dropped
}

func (s *Scanner) resolveProfile(opts Options) string {
	if opts.Profile != "" {
		return opts.Profile
	}
	return s.profile
}
