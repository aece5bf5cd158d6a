// Package memstore keeps the ledger in process memory. Every transaction runs
// against a private copy of the state that replaces the committed state only
// when the transaction function returns nil.
package memstore

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type state struct {
	accounts map[int64]accounting.Account
	entries  map[int64]accounting.JournalEntry
	sources  map[uuid.UUID]int64
	refs     map[masterdata.Kind]map[int64]masterdata.Record

	nextAccount int64
	nextEntry   int64
	nextLine    int64
	nextRef     int64
}

func newState() *state {
	refs := make(map[masterdata.Kind]map[int64]masterdata.Record, len(masterdata.Kinds))
	for _, k := range masterdata.Kinds {
		refs[k] = make(map[int64]masterdata.Record)
	}
	return &state{
		accounts: make(map[int64]accounting.Account),
		entries:  make(map[int64]accounting.JournalEntry),
		sources:  make(map[uuid.UUID]int64),
		refs:     refs,
	}
}

func (s *state) clone() *state {
	out := &state{
		accounts:    make(map[int64]accounting.Account, len(s.accounts)),
		entries:     make(map[int64]accounting.JournalEntry, len(s.entries)),
		sources:     make(map[uuid.UUID]int64, len(s.sources)),
		refs:        make(map[masterdata.Kind]map[int64]masterdata.Record, len(s.refs)),
		nextAccount: s.nextAccount,
		nextEntry:   s.nextEntry,
		nextLine:    s.nextLine,
		nextRef:     s.nextRef,
	}
	for id, acc := range s.accounts {
		out.accounts[id] = acc
	}
	for id, e := range s.entries {
		e.Lines = append([]accounting.JournalLine(nil), e.Lines...)
		out.entries[id] = e
	}
	for k, v := range s.sources {
		out.sources[k] = v
	}
	for kind, recs := range s.refs {
		m := make(map[int64]masterdata.Record, len(recs))
		for id, rec := range recs {
			m[id] = rec
		}
		out.refs[kind] = m
	}
	return out
}

// Store is an in-memory ledger repository. Transactions are serialized.
type Store struct {
	mu    sync.Mutex
	state *state
	audit []shared.AuditLog
	now   func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{state: newState(), now: time.Now}
}

// WithTx runs fn against a copy of the state and commits it only on success.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.state.clone()
	if err := fn(ctx, &tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Record stores an audit log in memory.
func (s *Store) Record(_ context.Context, log shared.AuditLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, log)
	return nil
}

// AuditLogs returns the recorded audit trail in order.
func (s *Store) AuditLogs() []shared.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]shared.AuditLog(nil), s.audit...)
}

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) GetAccount(_ context.Context, id int64) (accounting.Account, error) {
	acc, ok := t.st.accounts[id]
	if !ok {
		return accounting.Account{}, &accounting.NotFoundError{Entity: "account", Key: strconv.FormatInt(id, 10)}
	}
	return acc, nil
}

func (t *tx) GetAccountByCode(_ context.Context, code string) (accounting.Account, error) {
	for _, acc := range t.st.accounts {
		if acc.Code == code {
			return acc, nil
		}
	}
	return accounting.Account{}, &accounting.NotFoundError{Entity: "account", Key: code}
}

func (t *tx) LockAccounts(_ context.Context, ids []int64) (map[int64]accounting.Account, error) {
	out := make(map[int64]accounting.Account, len(ids))
	for _, id := range ids {
		if acc, ok := t.st.accounts[id]; ok {
			out[id] = acc
		}
	}
	return out, nil
}

func (t *tx) ListAccounts(_ context.Context) ([]accounting.Account, error) {
	out := make([]accounting.Account, 0, len(t.st.accounts))
	for _, acc := range t.st.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *tx) ListChildCodes(_ context.Context, parentID *int64) ([]string, error) {
	var out []string
	for _, acc := range t.st.accounts {
		switch {
		case parentID == nil && acc.ParentID == nil:
			out = append(out, acc.Code)
		case parentID != nil && acc.ParentID != nil && *acc.ParentID == *parentID:
			out = append(out, acc.Code)
		}
	}
	return out, nil
}

func (t *tx) InsertAccount(_ context.Context, acc accounting.Account) (accounting.Account, error) {
	for _, existing := range t.st.accounts {
		if existing.Code == acc.Code {
			return accounting.Account{}, &accounting.ConflictError{Entity: "account code", Key: acc.Code}
		}
	}
	t.st.nextAccount++
	acc.ID = t.st.nextAccount
	acc.BalanceVersion = 0
	t.st.accounts[acc.ID] = acc
	return acc, nil
}

func (t *tx) UpdateAccount(_ context.Context, acc accounting.Account) (accounting.Account, error) {
	current, ok := t.st.accounts[acc.ID]
	if !ok {
		return accounting.Account{}, &accounting.NotFoundError{Entity: "account", Key: strconv.FormatInt(acc.ID, 10)}
	}
	current.Description = acc.Description
	current.AcceptsPostings = acc.AcceptsPostings
	current.IsActive = acc.IsActive
	current.UpdatedAt = acc.UpdatedAt
	t.st.accounts[acc.ID] = current
	return current, nil
}

func (t *tx) CountLines(_ context.Context, accountID int64) (int, error) {
	n := 0
	for _, e := range t.st.entries {
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				n++
			}
		}
	}
	return n, nil
}

func (t *tx) CountActiveChildren(_ context.Context, accountID int64) (int, error) {
	n := 0
	for _, acc := range t.st.accounts {
		if acc.ParentID != nil && *acc.ParentID == accountID && acc.IsActive {
			n++
		}
	}
	return n, nil
}

func (t *tx) BumpBalanceVersions(_ context.Context, ids []int64) error {
	for _, id := range ids {
		if acc, ok := t.st.accounts[id]; ok {
			acc.BalanceVersion++
			t.st.accounts[id] = acc
		}
	}
	return nil
}

func (t *tx) LookupReference(_ context.Context, kind accounting.ReferenceKind, id int64) (accounting.Reference, bool, error) {
	recs, ok := t.st.refs[masterdata.Kind(kind)]
	if !ok {
		return accounting.Reference{}, false, errors.New("memstore: unknown reference kind " + string(kind))
	}
	rec, ok := recs[id]
	if !ok {
		return accounting.Reference{}, false, nil
	}
	return accounting.Reference{ID: rec.ID, Code: rec.Code, IsActive: rec.IsActive}, true, nil
}

func (t *tx) InsertJournalEntry(_ context.Context, in accounting.PostingInput) (accounting.JournalEntry, error) {
	t.st.nextEntry++
	now := t.now()
	entry := accounting.JournalEntry{
		ID:          t.st.nextEntry,
		Date:        in.Date,
		NarrativeID: in.NarrativeID,
		Complement:  in.Complement,
		BatchNumber: in.BatchNumber,
		PostedBy:    in.PostedBy,
		SourceID:    in.SourceID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.st.entries[entry.ID] = entry
	return entry, nil
}

func (t *tx) UpdateJournalEntry(_ context.Context, id int64, in accounting.PostingInput) (accounting.JournalEntry, error) {
	entry, ok := t.st.entries[id]
	if !ok {
		return accounting.JournalEntry{}, entryNotFound(id)
	}
	entry.Date = in.Date
	entry.NarrativeID = in.NarrativeID
	entry.Complement = in.Complement
	entry.BatchNumber = in.BatchNumber
	entry.PostedBy = in.PostedBy
	entry.UpdatedAt = t.now()
	t.st.entries[id] = entry
	out := entry
	out.Lines = nil
	return out, nil
}

func (t *tx) InsertJournalLines(_ context.Context, entryID int64, lines []accounting.LineInput) ([]accounting.JournalLine, error) {
	entry, ok := t.st.entries[entryID]
	if !ok {
		return nil, entryNotFound(entryID)
	}
	out := make([]accounting.JournalLine, 0, len(lines))
	for _, in := range lines {
		t.st.nextLine++
		out = append(out, accounting.JournalLine{
			ID:           t.st.nextLine,
			EntryID:      entryID,
			AccountID:    in.AccountID,
			Side:         in.Side,
			Amount:       in.Amount.Round(2),
			CostCenterID: in.CostCenterID,
		})
	}
	entry.Lines = append(entry.Lines, out...)
	t.st.entries[entryID] = entry
	return append([]accounting.JournalLine(nil), out...), nil
}

func (t *tx) DeleteJournalLines(_ context.Context, entryID int64) error {
	entry, ok := t.st.entries[entryID]
	if !ok {
		return entryNotFound(entryID)
	}
	entry.Lines = nil
	t.st.entries[entryID] = entry
	return nil
}

func (t *tx) DeleteJournalEntry(_ context.Context, entryID int64) error {
	entry, ok := t.st.entries[entryID]
	if !ok {
		return entryNotFound(entryID)
	}
	delete(t.st.entries, entryID)
	if entry.SourceID != uuid.Nil {
		delete(t.st.sources, entry.SourceID)
	}
	return nil
}

func (t *tx) GetJournalWithLines(_ context.Context, entryID int64) (accounting.JournalEntry, error) {
	entry, ok := t.st.entries[entryID]
	if !ok {
		return accounting.JournalEntry{}, entryNotFound(entryID)
	}
	entry.Lines = append([]accounting.JournalLine(nil), entry.Lines...)
	return entry, nil
}

func (t *tx) LockJournal(ctx context.Context, entryID int64) (accounting.JournalEntry, error) {
	return t.GetJournalWithLines(ctx, entryID)
}

func (t *tx) ListJournalEntries(_ context.Context, filter accounting.EntryFilter) ([]accounting.JournalEntry, int, error) {
	var matched []accounting.JournalEntry
	for _, e := range t.st.entries {
		if !filter.Range.Contains(e.Date) {
			continue
		}
		if filter.BatchNumber != "" && e.BatchNumber != filter.BatchNumber {
			continue
		}
		if filter.AccountID != 0 && !touches(e, filter.AccountID) {
			continue
		}
		e.Lines = append([]accounting.JournalLine(nil), e.Lines...)
		matched = append(matched, e)
	}
	sortEntries(matched)
	total := len(matched)
	start := filter.Offset()
	if start > total {
		start = total
	}
	end := start + filter.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (t *tx) LinkSource(_ context.Context, ref uuid.UUID, entryID int64) error {
	if _, exists := t.st.sources[ref]; exists {
		return &accounting.ConflictError{Entity: "source", Key: ref.String()}
	}
	t.st.sources[ref] = entryID
	entry := t.st.entries[entryID]
	entry.SourceID = ref
	t.st.entries[entryID] = entry
	return nil
}

func (t *tx) SumLines(_ context.Context, accountID int64, rng accounting.DateRange) (accounting.LineTotals, error) {
	totals := accounting.LineTotals{Debit: decimal.Zero, Credit: decimal.Zero}
	for _, e := range t.st.entries {
		if !rng.Contains(e.Date) {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				totals = addLine(totals, l)
			}
		}
	}
	return totals, nil
}

func (t *tx) SumLinesByAccount(_ context.Context, rng accounting.DateRange) (map[int64]accounting.LineTotals, error) {
	out := make(map[int64]accounting.LineTotals)
	for _, e := range t.st.entries {
		if !rng.Contains(e.Date) {
			continue
		}
		for _, l := range e.Lines {
			totals, ok := out[l.AccountID]
			if !ok {
				totals = accounting.LineTotals{Debit: decimal.Zero, Credit: decimal.Zero}
			}
			out[l.AccountID] = addLine(totals, l)
		}
	}
	return out, nil
}

func (t *tx) ListMovements(_ context.Context, accountID int64, limit int) ([]accounting.Movement, error) {
	var entries []accounting.JournalEntry
	for _, e := range t.st.entries {
		if touches(e, accountID) {
			entries = append(entries, e)
		}
	}
	sortEntries(entries)
	var out []accounting.Movement
	for _, e := range entries {
		for i := len(e.Lines) - 1; i >= 0; i-- {
			l := e.Lines[i]
			if l.AccountID != accountID {
				continue
			}
			out = append(out, accounting.Movement{
				LineID:       l.ID,
				EntryID:      e.ID,
				Date:         e.Date,
				NarrativeID:  e.NarrativeID,
				Complement:   e.Complement,
				Side:         l.Side,
				Amount:       l.Amount,
				CostCenterID: l.CostCenterID,
			})
			if len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func (t *tx) ListEntryTotals(_ context.Context) ([]accounting.EntryTotals, error) {
	out := make([]accounting.EntryTotals, 0, len(t.st.entries))
	for _, e := range t.st.entries {
		totals := accounting.EntryTotals{EntryID: e.ID, Debit: decimal.Zero, Credit: decimal.Zero}
		for _, l := range e.Lines {
			switch l.Side {
			case accounting.SideDebit:
				totals.Debit = totals.Debit.Add(l.Amount)
				totals.DebitLines++
			case accounting.SideCredit:
				totals.Credit = totals.Credit.Add(l.Amount)
				totals.CreditLines++
			}
			if !l.Amount.IsPositive() {
				totals.NonPositive++
			}
		}
		out = append(out, totals)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryID < out[j].EntryID })
	return out, nil
}

// ListRecords implements masterdata.Repository.
func (s *Store) ListRecords(_ context.Context, kind masterdata.Kind, filters masterdata.ListFilters) ([]masterdata.Record, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	search := strings.ToLower(strings.TrimSpace(filters.Search))
	var matched []masterdata.Record
	for _, rec := range s.state.refs[kind] {
		if filters.IsActive != nil && rec.IsActive != *filters.IsActive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(rec.Code), search) &&
			!strings.Contains(strings.ToLower(rec.Description), search) {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Code < matched[j].Code })
	total := len(matched)
	start := (filters.Page - 1) * filters.Limit
	if start > total {
		start = total
	}
	end := start + filters.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// GetRecord implements masterdata.Repository.
func (s *Store) GetRecord(_ context.Context, kind masterdata.Kind, id int64) (masterdata.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.state.refs[kind][id]
	if !ok {
		return masterdata.Record{}, masterdata.NotFound(kind, id)
	}
	return rec, nil
}

// CreateRecord implements masterdata.Repository.
func (s *Store) CreateRecord(_ context.Context, rec masterdata.Record) (masterdata.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, ok := s.state.refs[rec.Kind]
	if !ok {
		return masterdata.Record{}, masterdata.NotFound(rec.Kind, 0)
	}
	for _, existing := range recs {
		if existing.Code == rec.Code {
			return masterdata.Record{}, masterdata.Duplicate(rec.Kind, rec.Code)
		}
	}
	s.state.nextRef++
	rec.ID = s.state.nextRef
	recs[rec.ID] = rec
	return rec, nil
}

// UpdateRecord implements masterdata.Repository.
func (s *Store) UpdateRecord(_ context.Context, kind masterdata.Kind, id int64, patch masterdata.Patch, at time.Time) (masterdata.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.state.refs[kind]
	current, ok := recs[id]
	if !ok {
		return masterdata.Record{}, masterdata.NotFound(kind, id)
	}
	if patch.Description != nil {
		current.Description = *patch.Description
	}
	if patch.IsActive != nil {
		current.IsActive = *patch.IsActive
	}
	current.UpdatedAt = at
	recs[id] = current
	return current, nil
}

func touches(e accounting.JournalEntry, accountID int64) bool {
	for _, l := range e.Lines {
		if l.AccountID == accountID {
			return true
		}
	}
	return false
}

func sortEntries(entries []accounting.JournalEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].ID > entries[j].ID
	})
}

func addLine(t accounting.LineTotals, l accounting.JournalLine) accounting.LineTotals {
	if l.Side == accounting.SideDebit {
		t.Debit = t.Debit.Add(l.Amount)
	} else {
		t.Credit = t.Credit.Add(l.Amount)
	}
	return t
}

func entryNotFound(id int64) error {
	return &accounting.NotFoundError{Entity: "journal entry", Key: strconv.FormatInt(id, 10)}
}
