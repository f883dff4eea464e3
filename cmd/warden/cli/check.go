package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackwarden/warden/internal/policy"
)

var (
	checkAction string
	checkArgs   string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Dry-run a policy check without executing anything",
	Long: `Check what decision an action would receive without running it.
Useful for testing and debugging policy rules.`,
	Example: `  warden check -c policy.yaml --action webapp.create --args '{"group":"prod","name":"site"}'
  warden check -c policy.yaml --action storage.restrict_network`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkAction, "action", "", "action name to check")
	checkCmd.Flags().StringVar(&checkArgs, "args", "", "JSON arguments")
	_ = checkCmd.MarkFlagRequired("action")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	input := &policy.EvalInput{
		Action: checkAction,
	}
	if checkArgs != "" {
		if err := json.Unmarshal([]byte(checkArgs), &input.Arguments); err != nil {
			return fmt.Errorf("parsing --args: %w", err)
		}
	}

	decision, err := engine.Evaluate(cmd.Context(), input)
	if err != nil {
		return fmt.Errorf("evaluation error: %w", err)
	}

	return printJSON(decision)
}
