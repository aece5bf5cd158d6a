package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
)

// ErrOutOfBalance is returned when a trial balance does not net to zero.
var ErrOutOfBalance = errors.New("trial balance is out of balance")

// ReportOptions configures report rendering.
type ReportOptions struct {
	Range  accounting.DateRange
	Locale string
	JSON   bool
	Stdout io.Writer
}

func newBalanceCommand() *cobra.Command {
	var rng rangeFlags
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "balance <account-code>",
		Short: "Show debit, credit and net balance for one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dr, err := rng.parse()
			if err != nil {
				return err
			}
			ledger, cfg, err := openLedger(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer ledger.Close()
			return printBalance(cmd.Context(), ledger.Service, args[0], ReportOptions{Range: dr, Locale: cfg.LedgerLocale, JSON: asJSON, Stdout: cmd.OutOrStdout()})
		},
	}
	rng.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}

type balanceOutput struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Nature string `json:"nature"`
	Debit  string `json:"debit_total"`
	Credit string `json:"credit_total"`
	Net    string `json:"net_balance"`
}

func printBalance(ctx context.Context, svc *accounting.Service, code string, opts ReportOptions) error {
	acc, err := svc.GetAccountByCode(ctx, code)
	if err != nil {
		return err
	}
	bal, err := svc.GetBalance(ctx, acc.ID, opts.Range)
	if err != nil {
		return err
	}
	if opts.JSON {
		return json.NewEncoder(opts.Stdout).Encode(balanceOutput{
			Code:   acc.Code,
			Name:   acc.Description,
			Nature: string(bal.Nature),
			Debit:  bal.DebitTotal.StringFixed(2),
			Credit: bal.CreditTotal.StringFixed(2),
			Net:    bal.NetBalance.StringFixed(2),
		})
	}
	f, err := reports.NewFormatter(opts.Locale)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s %s (%s)\t\n", acc.Code, acc.Description, strings.ToLower(strings.ReplaceAll(string(bal.Nature), "_", "-")))
	fmt.Fprintf(tw, "debit\t%s\t\n", f.Amount(bal.DebitTotal))
	fmt.Fprintf(tw, "credit\t%s\t\n", f.Amount(bal.CreditTotal))
	fmt.Fprintf(tw, "net\t%s\t\n", f.Amount(bal.NetBalance))
	return tw.Flush()
}

func newTrialBalanceCommand() *cobra.Command {
	var rng rangeFlags
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Print the trial balance grouped by top-level account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dr, err := rng.parse()
			if err != nil {
				return err
			}
			ledger, cfg, err := openLedger(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer ledger.Close()
			return printTrialBalance(cmd.Context(), ledger.Service, ReportOptions{Range: dr, Locale: cfg.LedgerLocale, JSON: asJSON, Stdout: cmd.OutOrStdout()})
		},
	}
	rng.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}

func loadAccountBalances(ctx context.Context, svc *accounting.Service, rng accounting.DateRange) ([]reports.AccountBalance, error) {
	accounts, err := svc.ListAccounts(ctx, accounting.AccountFilter{IncludeInactive: true})
	if err != nil {
		return nil, err
	}
	balances, err := svc.GetBalances(ctx, rng)
	if err != nil {
		return nil, err
	}
	return reports.FromLedger(accounts, balances), nil
}

type trialBalanceRowOutput struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Debit  string `json:"debit"`
	Credit string `json:"credit"`
	Net    string `json:"net"`
}

type trialBalanceOutput struct {
	Rows        []trialBalanceRowOutput `json:"rows"`
	TotalDebit  string                  `json:"total_debit"`
	TotalCredit string                  `json:"total_credit"`
	Balanced    bool                    `json:"balanced"`
}

func printTrialBalance(ctx context.Context, svc *accounting.Service, opts ReportOptions) error {
	rows, err := loadAccountBalances(ctx, svc, opts.Range)
	if err != nil {
		return err
	}
	tb := reports.BuildTrialBalance(rows)

	if opts.JSON {
		out := trialBalanceOutput{
			Rows:        []trialBalanceRowOutput{},
			TotalDebit:  tb.TotalDebit.StringFixed(2),
			TotalCredit: tb.TotalCredit.StringFixed(2),
			Balanced:    tb.Balanced(),
		}
		for _, g := range tb.Groups {
			for _, r := range g.Rows {
				out.Rows = append(out.Rows, trialBalanceRowOutput{
					Code:   r.Code,
					Name:   r.Name,
					Debit:  r.Debit.StringFixed(2),
					Credit: r.Credit.StringFixed(2),
					Net:    r.Net.StringFixed(2),
				})
			}
		}
		if err := json.NewEncoder(opts.Stdout).Encode(out); err != nil {
			return err
		}
	} else {
		f, err := reports.NewFormatter(opts.Locale)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CODE\tACCOUNT\tDEBIT\tCREDIT\tNET")
		for _, g := range tb.Groups {
			for _, r := range g.Rows {
				name := strings.Repeat("  ", r.Level-1) + r.Name
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Code, name, f.Amount(r.Debit), f.Amount(r.Credit), f.Amount(r.Net))
			}
		}
		fmt.Fprintf(tw, "\tTOTAL\t%s\t%s\t\n", f.Amount(tb.TotalDebit), f.Amount(tb.TotalCredit))
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if !tb.Balanced() {
		return ErrOutOfBalance
	}
	return nil
}

func newStatementsCommand() *cobra.Command {
	var rng rangeFlags
	cmd := &cobra.Command{
		Use:   "statements",
		Short: "Print the income statement and balance sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dr, err := rng.parse()
			if err != nil {
				return err
			}
			ledger, cfg, err := openLedger(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer ledger.Close()
			return printStatements(cmd.Context(), ledger.Service, ReportOptions{Range: dr, Locale: cfg.LedgerLocale, Stdout: cmd.OutOrStdout()})
		},
	}
	rng.register(cmd)
	return cmd
}

func printStatements(ctx context.Context, svc *accounting.Service, opts ReportOptions) error {
	rows, err := loadAccountBalances(ctx, svc, opts.Range)
	if err != nil {
		return err
	}
	f, err := reports.NewFormatter(opts.Locale)
	if err != nil {
		return err
	}
	pl := reports.BuildProfitAndLoss(rows)
	bs := reports.BuildBalanceSheet(rows)

	tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INCOME STATEMENT\t\t")
	for _, section := range []reports.ProfitAndLossSection{pl.Revenue, pl.Expense} {
		fmt.Fprintf(tw, "%s\t\t\n", section.Label)
		for _, a := range section.Accounts {
			fmt.Fprintf(tw, "  %s %s\t%s\t\n", a.Code, a.Name, f.Amount(a.Amount))
		}
		fmt.Fprintf(tw, "  Total %s\t%s\t\n", strings.ToLower(section.Label), f.Amount(section.Total))
	}
	fmt.Fprintf(tw, "Net income\t%s\t\n", f.Amount(pl.NetIncome))
	fmt.Fprintln(tw, "\t\t")
	fmt.Fprintln(tw, "BALANCE SHEET\t\t")
	for _, section := range []reports.BalanceSheetSection{bs.Assets, bs.Liabilities, bs.Equity} {
		fmt.Fprintf(tw, "%s\t\t\n", section.Label)
		for _, a := range section.Accounts {
			fmt.Fprintf(tw, "  %s %s\t%s\t\n", a.Code, a.Name, f.Amount(a.Balance))
		}
		fmt.Fprintf(tw, "  Total %s\t%s\t\n", strings.ToLower(section.Label), f.Amount(section.Total))
	}
	fmt.Fprintf(tw, "Current earnings\t%s\t\n", f.Amount(bs.CurrentEarnings))
	fmt.Fprintf(tw, "Liabilities and equity\t%s\t\n", f.Amount(bs.TotalLiabilitiesAndEquity))
	if err := tw.Flush(); err != nil {
		return err
	}
	if !bs.Balanced() {
		return fmt.Errorf("balance sheet is out of balance by %s", bs.Assets.Total.Sub(bs.TotalLiabilitiesAndEquity).StringFixed(2))
	}
	return nil
}
