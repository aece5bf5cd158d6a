package reports

import (
	"github.com/shopspring/decimal"
)

// TrialBalanceRow is one account in the trial balance. Debit and Credit
// include every descendant, so synthetic parents show their subtree totals.
type TrialBalanceRow struct {
	Code      string
	Name      string
	Level     int
	Synthetic bool
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Net       decimal.Decimal
}

// TrialBalanceGroup collects the rows under one root account.
type TrialBalanceGroup struct {
	Key    string
	Name   string
	Rows   []TrialBalanceRow
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// TrialBalance is the final structure rendered by the CLI and HTTP surfaces.
type TrialBalance struct {
	Groups      []TrialBalanceGroup
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Balanced reports whether total debits equal total credits.
func (tb TrialBalance) Balanced() bool {
	return tb.TotalDebit.Equal(tb.TotalCredit)
}

// BuildTrialBalance rolls account totals up the hierarchy and groups the
// rows by root account. Totals count each line once.
func BuildTrialBalance(accounts []AccountBalance) TrialBalance {
	rows := append([]AccountBalance(nil), accounts...)
	sortByCode(rows)

	index := make(map[int64]int, len(rows))
	for i, acc := range rows {
		index[acc.ID] = i
	}
	debit := make([]decimal.Decimal, len(rows))
	credit := make([]decimal.Decimal, len(rows))
	hasChildren := make([]bool, len(rows))
	for i := range rows {
		debit[i], credit[i] = decimal.Zero, decimal.Zero
	}
	result := TrialBalance{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for i, acc := range rows {
		result.TotalDebit = result.TotalDebit.Add(acc.Debit)
		result.TotalCredit = result.TotalCredit.Add(acc.Credit)
		n := i
		for steps := 0; n >= 0 && steps <= len(rows); steps++ {
			debit[n] = debit[n].Add(acc.Debit)
			credit[n] = credit[n].Add(acc.Credit)
			p := parentIndex(rows[n], index)
			if p >= 0 && n == i {
				hasChildren[p] = true
			}
			n = p
		}
	}

	var current *TrialBalanceGroup
	for i, acc := range rows {
		if parentIndex(acc, index) < 0 {
			result.Groups = append(result.Groups, TrialBalanceGroup{
				Key:    acc.Code,
				Name:   acc.Name,
				Debit:  debit[i],
				Credit: credit[i],
			})
			current = &result.Groups[len(result.Groups)-1]
		}
		if current == nil {
			continue
		}
		current.Rows = append(current.Rows, TrialBalanceRow{
			Code:      acc.Code,
			Name:      acc.Name,
			Level:     acc.Level,
			Synthetic: hasChildren[i],
			Debit:     debit[i],
			Credit:    credit[i],
			Net:       signed(acc.Nature, debit[i], credit[i]),
		})
	}
	return result
}

func parentIndex(acc AccountBalance, index map[int64]int) int {
	if acc.ParentID == nil {
		return -1
	}
	p, ok := index[*acc.ParentID]
	if !ok {
		return -1
	}
	return p
}
