package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackwarden/warden/api"
	"github.com/stackwarden/warden/internal/audit"
)

var (
	auditAction string
	auditStatus string
	auditLimit  int
	auditStats  bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit trail of past governed actions",
	Example: `  warden audit -c policy.yaml --limit 20
  warden audit -c policy.yaml --action webapp.create --status error
  warden audit -c policy.yaml --stats`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditAction, "action", "", "filter by action name")
	auditCmd.Flags().StringVar(&auditStatus, "status", "", "filter by status (blocked, pending, done, error)")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "max records to show (most recent last)")
	auditCmd.Flags().BoolVar(&auditStats, "stats", false, "print aggregate statistics instead of records")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := audit.OpenDir(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("opening audit trail: %w", err)
	}
	defer store.Close()

	if auditStats {
		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(stats)
	}

	records, err := store.Query(cmd.Context(), api.QueryFilter{
		Action: auditAction,
		Status: api.OutcomeStatus(auditStatus),
	})
	if err != nil {
		return err
	}
	// Keep the most recent records when over the limit.
	if auditLimit > 0 && len(records) > auditLimit {
		records = records[len(records)-auditLimit:]
	}
	return printJSON(records)
}
