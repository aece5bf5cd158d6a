package reports

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func id(v int64) *int64 { return &v }

func sampleBalances() []AccountBalance {
	return []AccountBalance{
		{ID: 1, Code: "1", Name: "Assets", Type: accounting.AccountTypeAsset, Nature: accounting.NatureDebit, Level: 1, Debit: d("0"), Credit: d("0")},
		{ID: 2, ParentID: id(1), Code: "1.1", Name: "Cash", Type: accounting.AccountTypeAsset, Nature: accounting.NatureDebit, Level: 2, Debit: d("1200"), Credit: d("150")},
		{ID: 3, ParentID: id(1), Code: "1.2", Name: "Bank", Type: accounting.AccountTypeAsset, Nature: accounting.NatureDebit, Level: 2, Debit: d("300"), Credit: d("50")},
		{ID: 4, Code: "2", Name: "Liabilities", Type: accounting.AccountTypeLiability, Nature: accounting.NatureCredit, Level: 1, Debit: d("0"), Credit: d("0")},
		{ID: 5, ParentID: id(4), Code: "2.1", Name: "Payables", Type: accounting.AccountTypeLiability, Nature: accounting.NatureCredit, Level: 2, Debit: d("100"), Credit: d("400")},
		{ID: 6, Code: "3", Name: "Capital", Type: accounting.AccountTypeEquity, Nature: accounting.NatureCredit, Level: 1, Debit: d("0"), Credit: d("1000")},
		{ID: 7, Code: "4", Name: "Sales", Type: accounting.AccountTypeRevenue, Nature: accounting.NatureCredit, Level: 1, Debit: d("0"), Credit: d("500")},
		{ID: 8, Code: "5", Name: "Rent", Type: accounting.AccountTypeExpense, Nature: accounting.NatureDebit, Level: 1, Debit: d("200"), Credit: d("0")},
	}
}

func TestBuildTrialBalance(t *testing.T) {
	tb := BuildTrialBalance(sampleBalances())
	if len(tb.Groups) != 5 {
		t.Fatalf("expected 5 groups, got %d", len(tb.Groups))
	}
	if !tb.TotalDebit.Equal(d("1800")) {
		t.Fatalf("unexpected total debit: %s", tb.TotalDebit)
	}
	if !tb.TotalCredit.Equal(d("2100")) {
		t.Fatalf("unexpected total credit: %s", tb.TotalCredit)
	}
	if tb.Balanced() {
		t.Fatalf("sample totals should not balance")
	}

	assets := tb.Groups[0]
	if len(assets.Rows) != 3 {
		t.Fatalf("expected 3 asset rows, got %d", len(assets.Rows))
	}
	root := assets.Rows[0]
	if !root.Synthetic || root.Code != "1" {
		t.Fatalf("expected synthetic root row, got %+v", root)
	}
	if !root.Debit.Equal(d("1500")) || !root.Credit.Equal(d("200")) || !root.Net.Equal(d("1300")) {
		t.Fatalf("unexpected rolled-up root totals: %+v", root)
	}
	if assets.Rows[1].Synthetic {
		t.Fatalf("leaf row marked synthetic")
	}

	liabilities := tb.Groups[1]
	if !liabilities.Rows[0].Net.Equal(d("300")) {
		t.Fatalf("expected credit-natured net 300, got %s", liabilities.Rows[0].Net)
	}
}

func TestBuildTrialBalanceBalancedLedger(t *testing.T) {
	accounts := []AccountBalance{
		{ID: 1, Code: "1", Nature: accounting.NatureDebit, Debit: d("10.50"), Credit: d("0")},
		{ID: 2, Code: "2", Nature: accounting.NatureCredit, Debit: d("0"), Credit: d("10.50")},
	}
	if tb := BuildTrialBalance(accounts); !tb.Balanced() {
		t.Fatalf("expected balanced trial balance, got %s / %s", tb.TotalDebit, tb.TotalCredit)
	}
}

func TestBuildProfitAndLoss(t *testing.T) {
	pl := BuildProfitAndLoss(sampleBalances())
	if !pl.Revenue.Total.Equal(d("500")) {
		t.Fatalf("unexpected revenue total: %s", pl.Revenue.Total)
	}
	if !pl.Expense.Total.Equal(d("200")) {
		t.Fatalf("unexpected expense total: %s", pl.Expense.Total)
	}
	if !pl.NetIncome.Equal(d("300")) {
		t.Fatalf("unexpected net income: %s", pl.NetIncome)
	}
}

func TestBuildBalanceSheet(t *testing.T) {
	bs := BuildBalanceSheet(sampleBalances())
	if !bs.Assets.Total.Equal(d("1300")) {
		t.Fatalf("unexpected assets total: %s", bs.Assets.Total)
	}
	if !bs.Liabilities.Total.Equal(d("300")) {
		t.Fatalf("unexpected liabilities total: %s", bs.Liabilities.Total)
	}
	if !bs.Equity.Total.Equal(d("1000")) {
		t.Fatalf("unexpected equity total: %s", bs.Equity.Total)
	}
	if !bs.CurrentEarnings.Equal(d("300")) {
		t.Fatalf("unexpected current earnings: %s", bs.CurrentEarnings)
	}
	if !bs.TotalLiabilitiesAndEquity.Equal(d("1600")) {
		t.Fatalf("unexpected liabilities and equity: %s", bs.TotalLiabilitiesAndEquity)
	}
}

func TestFromLedger(t *testing.T) {
	accounts := []accounting.Account{
		{ID: 2, Code: "1.10", Description: "Later", Nature: accounting.NatureDebit},
		{ID: 1, Code: "1.2", Description: "Earlier", Nature: accounting.NatureDebit},
	}
	balances := []accounting.Balance{{AccountID: 1, DebitTotal: d("5"), CreditTotal: d("1")}}

	rows := FromLedger(accounts, balances)
	if len(rows) != 2 || rows[0].Code != "1.2" || rows[1].Code != "1.10" {
		t.Fatalf("expected numeric code order, got %+v", rows)
	}
	if !rows[0].Net().Equal(d("4")) {
		t.Fatalf("unexpected net: %s", rows[0].Net())
	}
	if !rows[1].Debit.IsZero() || !rows[1].Credit.IsZero() {
		t.Fatalf("expected zero totals for account without balance")
	}
}

func TestFormatter(t *testing.T) {
	en, err := NewFormatter("en-US")
	if err != nil {
		t.Fatalf("new formatter: %v", err)
	}
	if got := en.Amount(d("1234.5")); got != "1,234.50" {
		t.Fatalf("unexpected en-US amount: %q", got)
	}
	br, err := NewFormatter("pt-BR")
	if err != nil {
		t.Fatalf("new formatter: %v", err)
	}
	if got := br.Amount(d("1234.5")); got != "1.234,50" {
		t.Fatalf("unexpected pt-BR amount: %q", got)
	}
	if _, err := NewFormatter("not a locale!"); err == nil {
		t.Fatalf("expected error for invalid locale")
	}
}
