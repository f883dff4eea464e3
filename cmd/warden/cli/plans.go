package cli

import (
	"github.com/spf13/cobra"

	"github.com/stackwarden/warden/api"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List held plans awaiting confirmation",
	Example: `  warden plans -c policy.yaml
  warden run -c policy.yaml --inventory prod.yaml --plan <id> --confirm`,
	RunE: runPlans,
}

func init() {
	rootCmd.AddCommand(plansCmd)
}

func runPlans(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openPlanStore(cfg)
	if err != nil {
		return err
	}

	pending := store.Pending()
	if pending == nil {
		pending = []*api.Plan{}
	}
	return printJSON(pending)
}
