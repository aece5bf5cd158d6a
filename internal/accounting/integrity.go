package accounting

import (
	"context"
	"fmt"
	"strings"
)

// IssueKind classifies an integrity finding.
type IssueKind string

const (
	IssueUnbalancedEntry IssueKind = "unbalanced_entry"
	IssueMissingSide     IssueKind = "missing_side"
	IssueNonPositiveLine IssueKind = "non_positive_line"
	IssueInvalidCode     IssueKind = "invalid_code"
	IssueLevelMismatch   IssueKind = "level_mismatch"
	IssueParentMismatch  IssueKind = "parent_mismatch"
	IssueNatureMismatch  IssueKind = "nature_mismatch"
)

// IntegrityIssue describes a committed record that breaks a ledger invariant.
type IntegrityIssue struct {
	Kind     IssueKind
	Entity   string
	EntityID int64
	Detail   string
}

// IntegrityReport summarises a scan over committed state.
type IntegrityReport struct {
	EntriesChecked  int
	AccountsChecked int
	Issues          []IntegrityIssue
}

// OK reports whether the scan found nothing.
func (r IntegrityReport) OK() bool { return len(r.Issues) == 0 }

// CheckIntegrity re-verifies the ledger invariants over one consistent
// snapshot of accounts and entries.
func (s *Service) CheckIntegrity(ctx context.Context) (IntegrityReport, error) {
	var (
		accounts []Account
		totals   []EntryTotals
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if accounts, err = tx.ListAccounts(ctx); err != nil {
			return err
		}
		totals, err = tx.ListEntryTotals(ctx)
		return err
	})
	if err != nil {
		return IntegrityReport{}, err
	}
	report := IntegrityReport{EntriesChecked: len(totals), AccountsChecked: len(accounts)}
	report.Issues = append(report.Issues, checkEntries(totals)...)
	report.Issues = append(report.Issues, checkAccounts(accounts)...)
	return report, nil
}

func checkEntries(totals []EntryTotals) []IntegrityIssue {
	var issues []IntegrityIssue
	for _, t := range totals {
		if !t.Debit.Equal(t.Credit) {
			issues = append(issues, IntegrityIssue{
				Kind: IssueUnbalancedEntry, Entity: "journal_entry", EntityID: t.EntryID,
				Detail: fmt.Sprintf("debit %s != credit %s", t.Debit.StringFixed(amountScale), t.Credit.StringFixed(amountScale)),
			})
		}
		if t.DebitLines == 0 || t.CreditLines == 0 {
			issues = append(issues, IntegrityIssue{
				Kind: IssueMissingSide, Entity: "journal_entry", EntityID: t.EntryID,
				Detail: fmt.Sprintf("%d debit lines, %d credit lines", t.DebitLines, t.CreditLines),
			})
		}
		if t.NonPositive > 0 {
			issues = append(issues, IntegrityIssue{
				Kind: IssueNonPositiveLine, Entity: "journal_entry", EntityID: t.EntryID,
				Detail: fmt.Sprintf("%d lines with non-positive amount", t.NonPositive),
			})
		}
	}
	return issues
}

func checkAccounts(accounts []Account) []IntegrityIssue {
	byID := make(map[int64]Account, len(accounts))
	for _, acc := range accounts {
		byID[acc.ID] = acc
	}
	var issues []IntegrityIssue
	add := func(kind IssueKind, acc Account, format string, args ...any) {
		issues = append(issues, IntegrityIssue{Kind: kind, Entity: "account", EntityID: acc.ID, Detail: fmt.Sprintf(format, args...)})
	}
	for _, acc := range accounts {
		if err := ValidateCode(acc.Code); err != nil {
			add(IssueInvalidCode, acc, "%v", err)
		}
		if acc.Level != CodeLevel(acc.Code) {
			add(IssueLevelMismatch, acc, "level %d for code %s", acc.Level, acc.Code)
		}
		if want, ok := NatureOf(acc.Type); !ok || want != acc.Nature {
			add(IssueNatureMismatch, acc, "type %s stored with nature %s", acc.Type, acc.Nature)
		}
		if acc.ParentID == nil {
			if acc.Level != 1 {
				add(IssueLevelMismatch, acc, "root account at level %d", acc.Level)
			}
			continue
		}
		parent, ok := byID[*acc.ParentID]
		switch {
		case !ok:
			add(IssueParentMismatch, acc, "parent %d missing", *acc.ParentID)
		case !strings.HasPrefix(acc.Code, parent.Code+"."):
			add(IssueParentMismatch, acc, "code %s not under parent %s", acc.Code, parent.Code)
		case acc.Level != parent.Level+1:
			add(IssueLevelMismatch, acc, "level %d under parent level %d", acc.Level, parent.Level)
		}
	}
	return issues
}
