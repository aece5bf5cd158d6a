package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// AccountBalance models a ledger account with its own aggregated totals.
type AccountBalance struct {
	ID       int64
	ParentID *int64
	Code     string
	Name     string
	Type     accounting.AccountType
	Nature   accounting.Nature
	Level    int
	Debit    decimal.Decimal
	Credit   decimal.Decimal
}

// Net signs debit minus credit according to the account's nature.
func (a AccountBalance) Net() decimal.Decimal {
	if a.Nature == accounting.NatureCredit {
		return a.Credit.Sub(a.Debit)
	}
	return a.Debit.Sub(a.Credit)
}

// FromLedger joins catalog accounts with their balances. Accounts missing
// from balances get zero totals.
func FromLedger(accounts []accounting.Account, balances []accounting.Balance) []AccountBalance {
	byID := make(map[int64]accounting.Balance, len(balances))
	for _, b := range balances {
		byID[b.AccountID] = b
	}
	out := make([]AccountBalance, 0, len(accounts))
	for _, acc := range accounts {
		row := AccountBalance{
			ID:       acc.ID,
			ParentID: acc.ParentID,
			Code:     acc.Code,
			Name:     acc.Description,
			Type:     acc.Type,
			Nature:   acc.Nature,
			Level:    acc.Level,
			Debit:    decimal.Zero,
			Credit:   decimal.Zero,
		}
		if b, ok := byID[acc.ID]; ok {
			row.Debit, row.Credit = b.DebitTotal, b.CreditTotal
		}
		out = append(out, row)
	}
	sortByCode(out)
	return out
}

func sortByCode(rows []AccountBalance) {
	sort.SliceStable(rows, func(i, j int) bool {
		return accounting.CompareCodes(rows[i].Code, rows[j].Code) < 0
	})
}

func signed(nature accounting.Nature, debit, credit decimal.Decimal) decimal.Decimal {
	return AccountBalance{Nature: nature, Debit: debit, Credit: credit}.Net()
}
