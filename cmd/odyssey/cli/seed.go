package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
)

func newSeedCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load narratives, cost centers and a chart of accounts",
		Long:  `seed loads a YAML chart (the built-in starter chart by default). Existing registry codes are skipped and accounts are only created into an empty catalog.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			chart, err := loadChart(file)
			if err != nil {
				return err
			}
			ledger, cfg, err := openLedger(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer ledger.Close()
			if cfg.UsesMemoryStore() {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: LEDGER_STORE=memory, seeded data is discarded on exit")
			}
			report, err := app.Seed(cmd.Context(), ledger, chart)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "narratives: %d created\n", report.Narratives)
			fmt.Fprintf(out, "cost centers: %d created\n", report.CostCenters)
			if report.SkippedAccounts {
				fmt.Fprintln(out, "accounts: skipped, catalog is not empty")
			} else {
				fmt.Fprintf(out, "accounts: %d created\n", report.Accounts)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "chart YAML file")
	return cmd
}

func loadChart(path string) (app.ChartFile, error) {
	if path == "" {
		return app.DefaultChart()
	}
	f, err := os.Open(path)
	if err != nil {
		return app.ChartFile{}, err
	}
	defer f.Close()
	return app.ParseChart(f)
}
