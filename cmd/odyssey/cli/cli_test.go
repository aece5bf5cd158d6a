package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
)

func seededLedger(t *testing.T) *app.Ledger {
	t.Helper()
	ctx := context.Background()
	ledger, err := app.OpenLedger(ctx, &app.Config{LedgerStore: app.StoreMemory}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(ledger.Close)

	chart, err := app.DefaultChart()
	require.NoError(t, err)
	_, err = app.Seed(ctx, ledger, chart)
	require.NoError(t, err)

	narratives, _, err := ledger.Registry.List(ctx, masterdata.KindNarrative, masterdata.ListFilters{Search: "SALE"})
	require.NoError(t, err)
	require.Len(t, narratives, 1)

	post := func(debitCode, creditCode, amount string) {
		debit, err := ledger.Service.GetAccountByCode(ctx, debitCode)
		require.NoError(t, err)
		credit, err := ledger.Service.GetAccountByCode(ctx, creditCode)
		require.NoError(t, err)
		_, err = ledger.Service.PostEntry(ctx, accounting.PostingInput{
			Date:        time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
			NarrativeID: narratives[0].ID,
			Lines: []accounting.LineInput{
				{AccountID: debit.ID, Side: accounting.SideDebit, Amount: decimal.RequireFromString(amount)},
				{AccountID: credit.ID, Side: accounting.SideCredit, Amount: decimal.RequireFromString(amount)},
			},
		})
		require.NoError(t, err)
	}
	post("1.1.1", "4.1", "1000")
	post("5.3", "1.1.1", "200")
	return ledger
}

func TestPrintTree(t *testing.T) {
	ledger := seededLedger(t)
	var out bytes.Buffer
	require.NoError(t, printTree(context.Background(), ledger.Service, false, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 21)
	require.True(t, strings.HasPrefix(lines[0], "CODE"))
	require.True(t, strings.HasPrefix(lines[1], "1 "))
	require.Contains(t, out.String(), "    Cash on hand")
	require.Contains(t, out.String(), "EXPENSE")
}

func TestCreateAccountInheritsParentType(t *testing.T) {
	ledger := seededLedger(t)
	ctx := context.Background()

	acc, err := createAccount(ctx, ledger.Service, "Petty cash", "", "1.1", "", true)
	require.NoError(t, err)
	require.Equal(t, "1.1.4", acc.Code)
	require.Equal(t, accounting.AccountTypeAsset, acc.Type)

	_, err = createAccount(ctx, ledger.Service, "Misc", "other", "", "", true)
	var verr *accounting.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, accounting.ReasonInvalidAccountType, verr.Reason)

	_, err = createAccount(ctx, ledger.Service, "Orphan", "asset", "9.9", "", true)
	require.ErrorIs(t, err, accounting.ErrNotFound)
}

func TestPrintBalance(t *testing.T) {
	ledger := seededLedger(t)
	var out bytes.Buffer
	err := printBalance(context.Background(), ledger.Service, "1.1.1", ReportOptions{Locale: "en-US", Stdout: &out})
	require.NoError(t, err)
	require.Contains(t, out.String(), "Cash on hand (debit-natured)")
	require.Contains(t, out.String(), "1,000.00")
	require.Contains(t, out.String(), "800.00")

	out.Reset()
	err = printBalance(context.Background(), ledger.Service, "1.1.1", ReportOptions{JSON: true, Stdout: &out})
	require.NoError(t, err)
	var got balanceOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Equal(t, balanceOutput{Code: "1.1.1", Name: "Cash on hand", Nature: "DEBIT_NATURED", Debit: "1000.00", Credit: "200.00", Net: "800.00"}, got)
}

func TestPrintBalanceRange(t *testing.T) {
	ledger := seededLedger(t)
	var out bytes.Buffer
	rng := accounting.DateRange{From: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	err := printBalance(context.Background(), ledger.Service, "1.1.1", ReportOptions{Range: rng, JSON: true, Stdout: &out})
	require.NoError(t, err)
	require.Contains(t, out.String(), `"net_balance":"0.00"`)
}

func TestPrintTrialBalance(t *testing.T) {
	ledger := seededLedger(t)
	var out bytes.Buffer
	err := printTrialBalance(context.Background(), ledger.Service, ReportOptions{JSON: true, Stdout: &out})
	require.NoError(t, err)

	var got trialBalanceOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.True(t, got.Balanced)
	require.Equal(t, "1200.00", got.TotalDebit)
	require.Equal(t, "1200.00", got.TotalCredit)
	require.Len(t, got.Rows, 20)
	require.Equal(t, trialBalanceRowOutput{Code: "1", Name: "Assets", Debit: "1000.00", Credit: "200.00", Net: "800.00"}, got.Rows[0])

	out.Reset()
	err = printTrialBalance(context.Background(), ledger.Service, ReportOptions{Locale: "pt-BR", Stdout: &out})
	require.NoError(t, err)
	require.Contains(t, out.String(), "1.200,00")
	require.Contains(t, out.String(), "TOTAL")
}

func TestPrintStatements(t *testing.T) {
	ledger := seededLedger(t)
	var out bytes.Buffer
	err := printStatements(context.Background(), ledger.Service, ReportOptions{Locale: "en-US", Stdout: &out})
	require.NoError(t, err)
	text := out.String()
	require.Contains(t, text, "INCOME STATEMENT")
	require.Contains(t, text, "4.1 Sales revenue")
	require.Regexp(t, `Net income\s+800\.00`, text)
	require.Regexp(t, `Liabilities and equity\s+800\.00`, text)
}

func TestRangeFlags(t *testing.T) {
	rng, err := rangeFlags{from: "2024-01-01", to: "2024-01-31"}.parse()
	require.NoError(t, err)
	require.Equal(t, 31, int(rng.To.Sub(rng.From).Hours()/24)+1)

	_, err = rangeFlags{from: "01/01/2024"}.parse()
	require.Error(t, err)

	_, err = rangeFlags{from: "2024-02-01", to: "2024-01-01"}.parse()
	require.ErrorIs(t, err, accounting.ErrValidation)
}

func TestSeedCommandWithMemoryStore(t *testing.T) {
	t.Setenv("LEDGER_STORE", "memory")

	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"seed"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	require.Contains(t, stdout.String(), "accounts: 20 created")
	require.Contains(t, stderr.String(), "discarded on exit")
}

func TestMigrateRefusesMemoryStore(t *testing.T) {
	t.Setenv("LEDGER_STORE", "memory")
	root := NewRootCommand()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"migrate"})
	require.ErrorContains(t, root.ExecuteContext(context.Background()), "no schema")
}

func TestRootCommandRejectsUnknownJob(t *testing.T) {
	_, err := (&JobsCLI{}).Trigger(context.Background(), "mail:send")
	require.Error(t, err)

	root := NewRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "accounts", "balance", "trial-balance", "statements", "seed", "jobs"} {
		require.True(t, names[want], want)
	}
}
