package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stackwarden/warden/api"
	"github.com/stackwarden/warden/internal/actions"
	"github.com/stackwarden/warden/internal/audit"
	"github.com/stackwarden/warden/internal/executor"
	"github.com/stackwarden/warden/internal/provider"
	"github.com/stackwarden/warden/internal/remediate"
	"github.com/stackwarden/warden/internal/scan"
)

var (
	remInventory       string
	remKind            string
	remGroup           string
	remName            string
	remProfile         string
	remWorkspace       string
	remApply           bool
	remConfirm         bool
	remNoPartialUpdate bool
)

var remediateCmd = &cobra.Command{
	Use:   "remediate",
	Short: "Plan and apply remediation for baseline drift",
	Long: `Scan resources, plan the minimal deduplicated set of corrective steps,
and optionally apply them. Without --apply the command is a dry run: it
prints the plan and performs zero provider writes. Applying is itself a
governed action and requires --confirm.`,
	Example: `  warden remediate -c policy.yaml --inventory prod.yaml --group prod
  warden remediate -c policy.yaml --inventory prod.yaml --kind webApp --group prod --name site --apply --confirm`,
	RunE: runRemediate,
}

func init() {
	remediateCmd.Flags().StringVar(&remInventory, "inventory", "", "resource inventory file (YAML)")
	remediateCmd.Flags().StringVar(&remKind, "kind", "", "resource kind (webApp, storageAccount)")
	remediateCmd.Flags().StringVar(&remGroup, "group", "", "resource group")
	remediateCmd.Flags().StringVar(&remName, "name", "", "resource name (remediate a single resource)")
	remediateCmd.Flags().StringVar(&remProfile, "profile", "", "baseline profile (defaults to config)")
	remediateCmd.Flags().StringVar(&remWorkspace, "workspace", "", "log workspace ID for diagnostics steps (defaults to config)")
	remediateCmd.Flags().BoolVar(&remApply, "apply", false, "apply the planned steps instead of printing them")
	remediateCmd.Flags().BoolVar(&remConfirm, "confirm", false, "confirm the governed apply")
	remediateCmd.Flags().BoolVar(&remNoPartialUpdate, "no-partial-update", false, "force the read-modify-recreate strategy")
	_ = remediateCmd.MarkFlagRequired("group")
	rootCmd.AddCommand(remediateCmd)
}

func runRemediate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	client, err := loadInventory(remInventory, remNoPartialUpdate)
	if err != nil {
		return err
	}

	scanner := scan.New(client, engine, logger, cfg.Profile, cfg.MaxListPerKind)
	opts := scan.Options{Profile: remProfile, TolerateMissing: true}

	var report *api.ScanReport
	if remName != "" {
		if remKind == "" {
			return fmt.Errorf("--kind is required when remediating a single resource")
		}
		ref := api.ResourceRef{Group: remGroup, Name: remName}
		report, err = scanner.ScanResource(cmd.Context(), provider.Kind(remKind), ref, opts)
	} else {
		report, err = scanner.ScanGroup(cmd.Context(), remGroup, opts)
	}
	if err != nil {
		return err
	}

	workspace := remWorkspace
	if workspace == "" {
		workspace = cfg.WorkspaceID
	}
	planner := remediate.NewPlanner(remediate.Defaults{WorkspaceID: workspace}, logger)
	plans := planner.PlanGroup(report.Findings)

	var steps []api.RemediationStep
	var suggestions []string
	for _, p := range plans {
		steps = append(steps, p.Steps...)
		suggestions = append(suggestions, p.Suggestions...)
	}

	if !remApply {
		return printJSON(map[string]any{
			"status": "plan",
			"steps":  steps,
			"report": map[string]any{
				"plannedSteps": len(steps),
				"suggestions":  suggestions,
			},
		})
	}

	// Applying is a governed action: the handler is the step applier.
	store, err := audit.NewJSONLStore(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("opening audit store: %w", err)
	}
	defer store.Close()

	held, err := openPlanStore(cfg)
	if err != nil {
		return err
	}

	limiter := executor.NewLimiter(limiterConfig(cfg))
	exec := executor.New(engine, audit.NewRecorder(store, logger), limiter, held, logger)

	applier := remediate.NewApplier(client, logger)
	service := actions.NewService(client)
	handler := service.Remediate(applier, steps)

	req := executor.Request{
		Action:  "remediate",
		Args:    map[string]any{"group": remGroup, "name": remName, "steps": len(steps)},
		Confirm: remConfirm,
	}
	outcome := exec.Execute(cmd.Context(), req, handler, executor.Options{})

	if outcome.Status == api.StatusPending {
		color.Yellow("held: resubmit with --confirm to apply %d step(s)", len(steps))
	}
	return printJSON(map[string]any{
		"outcome":     outcome,
		"suggestions": suggestions,
	})
}
