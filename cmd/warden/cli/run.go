package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackwarden/warden/internal/actions"
	"github.com/stackwarden/warden/internal/audit"
	"github.com/stackwarden/warden/internal/executor"
)

var (
	runInventory string
	runAction    string
	runArgs      string
	runConfirm   bool
	runDryRun    bool
	runPlanID    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a governed action through the safety pipeline",
	Long: `Run an action through policy evaluation, hold/confirm, execution,
verification and audit. Without --confirm the action is held and a plan is
returned; resubmit with --confirm (or --plan) to execute.`,
	Example: `  warden run -c policy.yaml --inventory prod.yaml --action webapp.create --args '{"group":"prod","name":"site"}'
  warden run -c policy.yaml --inventory prod.yaml --action webapp.create --args '{"group":"prod","name":"site"}' --confirm`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runInventory, "inventory", "", "resource inventory file (YAML)")
	runCmd.Flags().StringVar(&runAction, "action", "", "action name")
	runCmd.Flags().StringVar(&runArgs, "args", "", "JSON arguments")
	runCmd.Flags().BoolVar(&runConfirm, "confirm", false, "execute instead of holding a plan")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "always hold, never execute")
	runCmd.Flags().StringVar(&runPlanID, "plan", "", "confirm a previously held plan by ID")
	_ = runCmd.MarkFlagRequired("action")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	client, err := loadInventory(runInventory, false)
	if err != nil {
		return err
	}

	store, err := audit.NewJSONLStore(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("opening audit store: %w", err)
	}
	defer store.Close()

	plans, err := openPlanStore(cfg)
	if err != nil {
		return err
	}

	limiter := executor.NewLimiter(limiterConfig(cfg))
	exec := executor.New(engine, audit.NewRecorder(store, logger), limiter, plans, logger)

	service := actions.NewService(client)
	handler, opts, ok := service.Resolve(runAction)
	if !ok {
		return fmt.Errorf("unknown action %q", runAction)
	}

	req := executor.Request{
		Action:  runAction,
		Confirm: runConfirm,
		DryRun:  runDryRun,
	}
	if runArgs != "" {
		if err := json.Unmarshal([]byte(runArgs), &req.Args); err != nil {
			return fmt.Errorf("parsing --args: %w", err)
		}
	}

	var outcome *executor.Outcome
	if runPlanID != "" {
		outcome, err = exec.Confirm(cmd.Context(), runPlanID, handler, opts)
		if err != nil {
			return fmt.Errorf("confirming plan: %w", err)
		}
	} else {
		outcome = exec.Execute(cmd.Context(), req, handler, opts)
	}

	return printJSON(outcome)
}
