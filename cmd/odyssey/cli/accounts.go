package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

func newAccountsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect and extend the chart of accounts",
	}
	cmd.AddCommand(newAccountsTreeCommand(), newAccountsCreateCommand())
	return cmd
}

func newAccountsTreeCommand() *cobra.Command {
	var includeInactive bool
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the chart of accounts as a tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, _, err := openLedger(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer ledger.Close()
			return printTree(cmd.Context(), ledger.Service, includeInactive, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&includeInactive, "all", false, "include deactivated accounts")
	return cmd
}

func printTree(ctx context.Context, svc *accounting.Service, includeInactive bool, out io.Writer) error {
	tree, err := svc.AccountTree(ctx)
	if err != nil {
		return err
	}
	filter := accounting.AccountFilter{IncludeInactive: includeInactive}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tDESCRIPTION\tTYPE\tPOSTABLE\tACTIVE")
	tree.Walk(func(acc accounting.Account, depth int) bool {
		if !filter.Matches(acc) {
			return true
		}
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(tw, "%s\t%s%s\t%s\t%s\t%s\n", acc.Code, indent, acc.Description, acc.Type, yesNo(acc.AcceptsPostings), yesNo(acc.IsActive))
		return true
	})
	return tw.Flush()
}

func newAccountsCreateCommand() *cobra.Command {
	var (
		description, typ, parent, code string
		summary                        bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add an account to the chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, _, err := openLedger(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer ledger.Close()
			acc, err := createAccount(cmd.Context(), ledger.Service, description, typ, parent, code, !summary)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (id %d)\n", acc.Code, acc.Description, acc.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "account description (required)")
	_ = cmd.MarkFlagRequired("description")
	cmd.Flags().StringVar(&typ, "type", "", "ASSET, LIABILITY, EQUITY, REVENUE or EXPENSE; defaults to the parent's type")
	cmd.Flags().StringVar(&parent, "parent", "", "parent account code")
	cmd.Flags().StringVar(&code, "code", "", "explicit code; derived from the parent when empty")
	cmd.Flags().BoolVar(&summary, "summary", false, "create a non-postable grouping account")
	return cmd
}

func createAccount(ctx context.Context, svc *accounting.Service, description, typ, parentCode, code string, postable bool) (accounting.Account, error) {
	in := accounting.AccountInput{Description: description, Code: code, AcceptsPostings: &postable}
	if parentCode != "" {
		parent, err := svc.GetAccountByCode(ctx, parentCode)
		if err != nil {
			return accounting.Account{}, err
		}
		in.ParentID = &parent.ID
		in.Type = parent.Type
	}
	if typ != "" {
		parsed, err := accounting.ParseAccountType(strings.ToUpper(typ))
		if err != nil {
			return accounting.Account{}, err
		}
		in.Type = parsed
	}
	return svc.CreateAccount(ctx, in)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
