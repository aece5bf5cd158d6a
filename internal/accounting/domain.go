package accounting

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// AccountTypes lists every account type in statement order.
var AccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeRevenue,
	AccountTypeExpense,
}

// Nature records which side increases an account.
type Nature string

const (
	NatureDebit  Nature = "DEBIT_NATURED"
	NatureCredit Nature = "CREDIT_NATURED"
)

// Side marks a journal line as debit or credit.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// Valid reports whether the side is one of the two known values.
func (s Side) Valid() bool {
	return s == SideDebit || s == SideCredit
}

// Account models a chart of accounts node.
type Account struct {
	ID              int64
	Code            string
	Description     string
	Type            AccountType
	Nature          Nature
	Level           int
	ParentID        *int64
	AcceptsPostings bool
	IsActive        bool
	// BalanceVersion is bumped in the same transaction that changes the
	// account's committed lines.
	BalanceVersion int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsRoot reports whether the account has no parent.
func (a Account) IsRoot() bool {
	return a.ParentID == nil
}

// Postable reports whether new journal lines may reference the account.
func (a Account) Postable() bool {
	return a.IsActive && a.AcceptsPostings
}

// AccountInput carries the caller-settable fields of a new account.
type AccountInput struct {
	Description string
	Type        AccountType
	ParentID    *int64
	// Code overrides the suggested code when non-empty.
	Code string
	// AcceptsPostings defaults to true when nil.
	AcceptsPostings *bool
}

// AccountUpdate lists the only fields that may change after creation.
type AccountUpdate struct {
	Description     *string
	AcceptsPostings *bool
	IsActive        *bool
}

// IsEmpty reports whether the update changes nothing.
func (u AccountUpdate) IsEmpty() bool {
	return u.Description == nil && u.AcceptsPostings == nil && u.IsActive == nil
}

// AccountFilter narrows catalog listings.
type AccountFilter struct {
	IncludeInactive bool
	PostableOnly    bool
	Type            AccountType
}

// Matches reports whether the account passes the filter.
func (f AccountFilter) Matches(a Account) bool {
	if !f.IncludeInactive && !a.IsActive {
		return false
	}
	if f.PostableOnly && !a.Postable() {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	return true
}

// JournalEntry captures a posted double-entry transaction.
type JournalEntry struct {
	ID          int64
	Date        time.Time
	NarrativeID int64
	Complement  string
	BatchNumber string
	PostedBy    int64
	SourceID    uuid.UUID
	Lines       []JournalLine
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AccountIDs returns the distinct accounts touched by the entry.
func (e JournalEntry) AccountIDs() []int64 {
	ids := make([]int64, 0, len(e.Lines))
	for _, line := range e.Lines {
		ids = append(ids, line.AccountID)
	}
	return uniqueIDs(ids)
}

// Totals sums the entry's debit and credit lines.
func (e JournalEntry) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range e.Lines {
		switch line.Side {
		case SideDebit:
			debit = debit.Add(line.Amount)
		case SideCredit:
			credit = credit.Add(line.Amount)
		}
	}
	return debit, credit
}

// JournalLine stores one leg of an entry.
type JournalLine struct {
	ID           int64
	EntryID      int64
	AccountID    int64
	Side         Side
	Amount       decimal.Decimal
	CostCenterID *int64
}

// LineInput describes a journal line for a posting request.
type LineInput struct {
	AccountID    int64
	Side         Side
	Amount       decimal.Decimal
	CostCenterID *int64
}

// PostingInput groups fields required to create or amend a journal entry.
type PostingInput struct {
	Date        time.Time
	NarrativeID int64
	Complement  string
	BatchNumber string
	PostedBy    int64
	// SourceID is an optional idempotency key; a repeated key is a conflict.
	SourceID uuid.UUID
	Lines    []LineInput
}

// AccountIDs returns the distinct accounts referenced by the input lines.
func (in PostingInput) AccountIDs() []int64 {
	ids := make([]int64, 0, len(in.Lines))
	for _, line := range in.Lines {
		ids = append(ids, line.AccountID)
	}
	return uniqueIDs(ids)
}

func (in PostingInput) normalized() PostingInput {
	in.Complement = strings.TrimSpace(in.Complement)
	in.BatchNumber = strings.TrimSpace(in.BatchNumber)
	in.Date = dateOnly(in.Date)
	return in
}

// dateOnly truncates t to its calendar date in UTC.
func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EntryFilter narrows journal listings.
type EntryFilter struct {
	Range       DateRange
	BatchNumber string
	AccountID   int64
	Page        int
	PerPage     int
}

// Offset returns the zero-based row offset for the filter's page.
func (f EntryFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

func (f EntryFilter) normalized() EntryFilter {
	f.Range = f.Range.Normalized()
	f.BatchNumber = strings.TrimSpace(f.BatchNumber)
	if f.PerPage <= 0 {
		f.PerPage = 20
	}
	if f.PerPage > 500 {
		f.PerPage = 500
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	return f
}

// DateRange is an inclusive entry-date window; zero bounds are open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Normalized truncates both bounds to calendar dates.
func (r DateRange) Normalized() DateRange {
	return DateRange{From: dateOnly(r.From), To: dateOnly(r.To)}
}

// IsOpen reports whether neither bound is set.
func (r DateRange) IsOpen() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Validate rejects inverted ranges.
func (r DateRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.From.After(r.To) {
		return invalid(ReasonInvalidRange, "range", "from %s is after to %s", r.From.Format(dateLayout), r.To.Format(dateLayout))
	}
	return nil
}

// Key renders the range as a stable cache key fragment.
func (r DateRange) Key() string {
	return boundKey(r.From) + ":" + boundKey(r.To)
}

func boundKey(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}

const dateLayout = "2006-01-02"

// Balance is the derived aggregate of an account's committed lines.
type Balance struct {
	AccountID   int64           `json:"account_id"`
	Code        string          `json:"code"`
	Nature      Nature          `json:"nature"`
	DebitTotal  decimal.Decimal `json:"debit_total"`
	CreditTotal decimal.Decimal `json:"credit_total"`
	NetBalance  decimal.Decimal `json:"net_balance"`
	Range       DateRange       `json:"range"`
}

// NewBalance signs the totals according to the account's nature. Amounts are
// normalised to two decimal places.
func NewBalance(acc Account, debit, credit decimal.Decimal, rng DateRange) Balance {
	debit, credit = debit.Round(amountScale), credit.Round(amountScale)
	net := debit.Sub(credit)
	if acc.Nature == NatureCredit {
		net = credit.Sub(debit)
	}
	return Balance{
		AccountID:   acc.ID,
		Code:        acc.Code,
		Nature:      acc.Nature,
		DebitTotal:  debit,
		CreditTotal: credit,
		NetBalance:  net,
		Range:       rng,
	}
}

// LineTotals holds per-account debit and credit sums.
type LineTotals struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Movement is a committed line joined with its entry header.
type Movement struct {
	LineID       int64
	EntryID      int64
	Date         time.Time
	NarrativeID  int64
	Complement   string
	Side         Side
	Amount       decimal.Decimal
	CostCenterID *int64
}

// EntryTotals summarises one committed entry for integrity scans.
type EntryTotals struct {
	EntryID     int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	DebitLines  int
	CreditLines int
	// NonPositive counts lines whose amount is zero or negative.
	NonPositive int
}

// ReferenceKind identifies a registry consulted by the journal engine.
type ReferenceKind string

const (
	ReferenceNarrative  ReferenceKind = "narrative"
	ReferenceCostCenter ReferenceKind = "cost_center"
)

// Reference is the slice of a registry record the engine needs.
type Reference struct {
	ID       int64
	Code     string
	IsActive bool
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sortIDs(out)
	return out
}
