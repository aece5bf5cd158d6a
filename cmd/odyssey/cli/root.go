package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
)

const dateLayout = "2006-01-02"

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "odyssey",
		Short: "Double-entry general ledger",
		Long:  `odyssey serves the ledger API and provides operator commands for the chart of accounts, balances and background jobs.`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newAccountsCommand(),
		newBalanceCommand(),
		newTrialBalanceCommand(),
		newStatementsCommand(),
		newSeedCommand(),
		newJobsCommand(),
	)
	return root
}

// openLedger loads configuration and opens the ledger for a one-shot command.
// Logs go to stderr so stdout stays machine-readable.
func openLedger(ctx context.Context, cmd *cobra.Command) (*app.Ledger, *app.Config, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	ledger, err := app.OpenLedger(ctx, cfg, logger, nil)
	if err != nil {
		return nil, nil, err
	}
	return ledger, cfg, nil
}

// rangeFlags holds --from/--to values.
type rangeFlags struct {
	from, to string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "first day included (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "last day included (YYYY-MM-DD)")
}

func (f rangeFlags) parse() (accounting.DateRange, error) {
	var rng accounting.DateRange
	var err error
	if f.from != "" {
		if rng.From, err = time.Parse(dateLayout, f.from); err != nil {
			return rng, fmt.Errorf("invalid --from %q (expected YYYY-MM-DD)", f.from)
		}
	}
	if f.to != "" {
		if rng.To, err = time.Parse(dateLayout, f.to); err != nil {
			return rng, fmt.Errorf("invalid --to %q (expected YYYY-MM-DD)", f.to)
		}
	}
	return rng, rng.Validate()
}
