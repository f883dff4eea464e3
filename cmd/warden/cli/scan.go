package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stackwarden/warden/api"
	"github.com/stackwarden/warden/internal/provider"
	"github.com/stackwarden/warden/internal/scan"
)

var (
	scanInventory       string
	scanKind            string
	scanGroup           string
	scanName            string
	scanProfile         string
	scanMinSeverity     string
	scanExcludeCodes    []string
	scanTolerateMissing bool
	scanAsJSON          bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan resources for baseline configuration drift",
	Example: `  warden scan -c policy.yaml --inventory prod.yaml --group prod
  warden scan -c policy.yaml --inventory prod.yaml --kind webApp --group prod --name site
  warden scan -c policy.yaml --inventory prod.yaml --group prod --min-severity medium --json`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanInventory, "inventory", "", "resource inventory file (YAML)")
	scanCmd.Flags().StringVar(&scanKind, "kind", "", "resource kind (webApp, storageAccount)")
	scanCmd.Flags().StringVar(&scanGroup, "group", "", "resource group")
	scanCmd.Flags().StringVar(&scanName, "name", "", "resource name (scan a single resource)")
	scanCmd.Flags().StringVar(&scanProfile, "profile", "", "baseline profile (defaults to config)")
	scanCmd.Flags().StringVar(&scanMinSeverity, "min-severity", "", "drop findings below this severity")
	scanCmd.Flags().StringSliceVar(&scanExcludeCodes, "exclude", nil, "finding codes to exclude")
	scanCmd.Flags().BoolVar(&scanTolerateMissing, "tolerate-missing", false, "report a missing resource as a finding instead of an error")
	scanCmd.Flags().BoolVar(&scanAsJSON, "json", false, "emit the full report as JSON")
	_ = scanCmd.MarkFlagRequired("group")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	client, err := loadInventory(scanInventory, false)
	if err != nil {
		return err
	}

	scanner := scan.New(client, engine, logger, cfg.Profile, cfg.MaxListPerKind)
	opts := scan.Options{
		Profile:         scanProfile,
		TolerateMissing: scanTolerateMissing,
		MinSeverity:     api.Severity(scanMinSeverity),
		ExcludeCodes:    scanExcludeCodes,
	}

	var report *api.ScanReport
	if scanName != "" {
		if scanKind == "" {
			return fmt.Errorf("--kind is required when scanning a single resource")
		}
		ref := api.ResourceRef{Group: scanGroup, Name: scanName}
		report, err = scanner.ScanResource(cmd.Context(), provider.Kind(scanKind), ref, opts)
	} else {
		report, err = scanner.ScanGroup(cmd.Context(), scanGroup, opts)
	}
	if err != nil {
		return err
	}

	if scanAsJSON {
		return printJSON(report)
	}

	renderScanReport(report)
	return nil
}

var severityColors = map[api.Severity]*color.Color{
	api.SeverityHigh:    color.New(color.FgRed, color.Bold),
	api.SeverityMedium:  color.New(color.FgYellow),
	api.SeverityLow:     color.New(color.FgCyan),
	api.SeverityInfo:    color.New(color.FgWhite),
	api.SeverityUnknown: color.New(color.FgMagenta),
}

func renderScanReport(report *api.ScanReport) {
	fmt.Printf("profile: %s\n", report.Profile)
	for _, f := range report.Findings {
		c, ok := severityColors[f.Severity]
		if !ok {
			c = severityColors[api.SeverityUnknown]
		}
		fmt.Printf("%s  %-26s %s/%s", c.Sprintf("%-7s", f.Severity), f.Code, f.Kind, f.Resource)
		if f.Suggest != "" {
			fmt.Printf("  (%s)", f.Suggest)
		}
		fmt.Println()
	}
	fmt.Printf("total: %d", report.Summary.Total)
	for _, sev := range []api.Severity{api.SeverityHigh, api.SeverityMedium, api.SeverityLow, api.SeverityInfo, api.SeverityUnknown} {
		if n := report.Summary.BySeverity[sev]; n > 0 {
			fmt.Printf("  %s: %d", sev, n)
		}
	}
	fmt.Println()
	if report.Filters.Dropped > 0 {
		fmt.Printf("filtered out: %d\n", report.Filters.Dropped)
	}
	for _, e := range report.Errors {
		color.Red("scan error: %s", e.Message)
	}
}
