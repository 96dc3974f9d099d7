package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ashish-admin/stra-tech-sub002/internal/config"
	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/ledger"
	"github.com/ashish-admin/stra-tech-sub002/internal/store/sqlite"
)

// NewUsageCmd creates the 'usage' command.
func NewUsageCmd() *cobra.Command {
	var (
		envFile     string
		jsonOutput  bool
		showEntries bool
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show spend for the current budget period",
		Long:  `Read the cost ledger and print the period summary and budget threshold.`,
		Example: `  strategist usage
  strategist usage --entries
  strategist usage --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFrom(envFile)
			if err != nil {
				return err
			}
			return runUsage(cmd.Context(), cmd.OutOrStdout(), cfg, jsonOutput, showEntries)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Environment file to load")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.Flags().BoolVarP(&showEntries, "entries", "e", false, "List individual cost entries")

	return cmd
}

// UsageReport is the JSON form of the usage command output.
type UsageReport struct {
	Summary     domain.UsageSummary `json:"summary"`
	Remediation domain.Remediation  `json:"remediation"`
	Entries     []domain.CostEntry  `json:"entries,omitempty"`
}

func runUsage(ctx context.Context, out io.Writer, cfg *config.Config, jsonOutput, showEntries bool) error {
	store, err := sqlite.Open(cfg.LedgerDB.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	catalog, err := config.LoadCatalog(cfg)
	if err != nil {
		return err
	}

	l := ledger.NewLedger(cfg.Ledger, store, catalog, domain.NewStandardCostCalculator(), nil)
	summary, err := l.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("reading ledger: %w", err)
	}

	report := UsageReport{Summary: summary, Remediation: l.Remediation(ctx)}
	if showEntries {
		if report.Entries, err = l.Entries(ctx); err != nil {
			return fmt.Errorf("reading ledger: %w", err)
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printUsage(out, report)
	return nil
}

func printUsage(out io.Writer, report UsageReport) {
	p := message.NewPrinter(language.English)
	s := report.Summary

	fmt.Fprintln(out, renderTitle(fmt.Sprintf("BUDGET  %s", s.PeriodStart.Format("January 2006"))))
	fmt.Fprintln(out)

	rows := [][]string{
		{"Spend", p.Sprintf("$%.4f of $%.2f", s.TotalSpend, s.Limit)},
		{"Utilization", p.Sprintf("%.1f%%  ", s.Utilization*100) + renderBar(s.Utilization, barWidth)},
		{"Projected", p.Sprintf("$%.2f", s.ProjectedSpend)},
		{"Day", p.Sprintf("%.1f of %d", s.DaysElapsed, s.DaysInPeriod)},
		{"Threshold", thresholdStyle(report.Remediation.Threshold).Render(report.Remediation.Threshold.String())},
	}
	if report.Remediation.ThrottleFactor > 0 && report.Remediation.ThrottleFactor < 1 {
		rows = append(rows, []string{"Throttle", p.Sprintf("%.0f%% of normal admission", report.Remediation.ThrottleFactor*100)})
	}
	fmt.Fprintln(out, renderTable("", nil, rows))

	services := make([]string, 0, len(s.PerService))
	for name := range s.PerService {
		services = append(services, name)
	}
	sort.Slice(services, func(i, j int) bool {
		return s.PerService[services[i]] > s.PerService[services[j]]
	})

	if len(services) > 0 {
		byService := make([][]string, 0, len(services))
		for _, name := range services {
			share := 0.0
			if s.TotalSpend > 0 {
				share = s.PerService[name] / s.TotalSpend
			}
			byService = append(byService, []string{name, p.Sprintf("$%.4f", s.PerService[name]), p.Sprintf("%.1f%%", share*100)})
		}
		fmt.Fprintln(out, renderTable("By service", []string{"Service", "Spend", "Share"}, byService))
	}

	if len(report.Entries) > 0 {
		entries := make([][]string, 0, len(report.Entries))
		for _, e := range report.Entries {
			entries = append(entries, []string{
				e.CreatedAt.Format("2006-01-02 15:04:05"),
				e.Service,
				e.Operation,
				p.Sprintf("%d", e.Units),
				p.Sprintf("$%.4f", e.Cost),
				e.RequestID,
			})
		}
		fmt.Fprintln(out, renderTable(p.Sprintf("Entries (%d)", len(entries)),
			[]string{"Time", "Service", "Operation", "Units", "Cost", "Request"}, entries))
	}
}
