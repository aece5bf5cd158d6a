package accounting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Recorder receives operation outcomes for metrics.
type Recorder interface {
	ObserveOperation(operation, outcome string)
	ObserveBalanceCache(result string)
}

// Service is the ledger facade: the single entry point collaborators use for
// catalog mutations, postings and balance reads.
type Service struct {
	catalog    *Catalog
	journal    *Journal
	aggregator *Aggregator
	repo       RepositoryPort
	audit      AuditPort
	logger     *slog.Logger
	metrics    Recorder
	now        func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{
		catalog:    NewCatalog(repo),
		journal:    NewJournal(repo),
		aggregator: NewAggregator(repo, nil),
		repo:       repo,
		audit:      audit,
		now:        time.Now,
	}
}

// WithCache enables balance caching.
func (s *Service) WithCache(cache BalanceCache) *Service {
	s.aggregator.cache = cache
	return s
}

// WithLogger sets the service logger.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
		s.aggregator.logger = logger
	}
	return s
}

// WithMetrics wires an outcome recorder.
func (s *Service) WithMetrics(rec Recorder) *Service {
	s.metrics = rec
	if rec != nil {
		s.aggregator.observer = rec
	}
	return s
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
		s.catalog.now = now
	}
	return s
}

// CreateAccount adds a node to the chart of accounts.
func (s *Service) CreateAccount(ctx context.Context, in AccountInput) (Account, error) {
	acc, err := s.catalog.CreateAccount(ctx, in)
	if s.done("account.create", err) != nil {
		return Account{}, err
	}
	s.log().Info("account created", slog.Int64("account_id", acc.ID), slog.String("code", acc.Code), slog.String("type", string(acc.Type)))
	s.record(ctx, 0, "account.create", "account", acc.ID, map[string]any{
		"code":   acc.Code,
		"type":   acc.Type,
		"nature": acc.Nature,
	})
	return acc, nil
}

// UpdateAccount changes description, posting eligibility or active state.
func (s *Service) UpdateAccount(ctx context.Context, id int64, upd AccountUpdate) (Account, error) {
	acc, err := s.catalog.UpdateAccount(ctx, id, upd)
	if s.done("account.update", err) != nil {
		return Account{}, err
	}
	meta := map[string]any{}
	if upd.Description != nil {
		meta["description"] = acc.Description
	}
	if upd.AcceptsPostings != nil {
		meta["accepts_postings"] = acc.AcceptsPostings
	}
	if upd.IsActive != nil {
		meta["active"] = acc.IsActive
	}
	if len(meta) > 0 {
		s.log().Info("account updated", slog.Int64("account_id", acc.ID), slog.String("code", acc.Code))
		s.record(ctx, 0, "account.update", "account", acc.ID, meta)
	}
	return acc, nil
}

// DeactivateAccount soft-deletes an account after dependency checks.
func (s *Service) DeactivateAccount(ctx context.Context, id int64) (Account, error) {
	acc, err := s.catalog.DeactivateAccount(ctx, id)
	if s.done("account.deactivate", err) != nil {
		return Account{}, err
	}
	s.log().Info("account deactivated", slog.Int64("account_id", acc.ID), slog.String("code", acc.Code))
	s.record(ctx, 0, "account.deactivate", "account", acc.ID, map[string]any{"code": acc.Code})
	return acc, nil
}

// GetAccount loads an account by id.
func (s *Service) GetAccount(ctx context.Context, id int64) (Account, error) {
	return s.catalog.GetAccount(ctx, id)
}

// GetAccountByCode loads an account by code.
func (s *Service) GetAccountByCode(ctx context.Context, code string) (Account, error) {
	return s.catalog.GetAccountByCode(ctx, code)
}

// ListAccounts lists accounts in code order.
func (s *Service) ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error) {
	return s.catalog.ListAccounts(ctx, filter)
}

// ListPostable lists accounts eligible for new journal lines.
func (s *Service) ListPostable(ctx context.Context) ([]Account, error) {
	return s.catalog.ListPostable(ctx)
}

// ListChildren lists direct children of parentID, or roots when nil.
func (s *Service) ListChildren(ctx context.Context, parentID *int64, includeInactive bool) ([]Account, error) {
	return s.catalog.ListChildren(ctx, parentID, includeInactive)
}

// IsDescendantOf reports whether a sits strictly below b.
func (s *Service) IsDescendantOf(ctx context.Context, a, b int64) (bool, error) {
	return s.catalog.IsDescendantOf(ctx, a, b)
}

// SuggestCode previews the code a new account under parentID would receive.
func (s *Service) SuggestCode(ctx context.Context, parentID *int64) (string, error) {
	return s.catalog.SuggestCode(ctx, parentID)
}

// AccountTree loads the chart of accounts arena.
func (s *Service) AccountTree(ctx context.Context) (*Tree, error) {
	return s.catalog.Tree(ctx)
}

// PostEntry validates and commits a balanced journal entry.
func (s *Service) PostEntry(ctx context.Context, in PostingInput) (JournalEntry, error) {
	entry, err := s.journal.Post(ctx, in)
	if s.done("journal.post", err) != nil {
		return JournalEntry{}, err
	}
	debit, _ := entry.Totals()
	s.log().Info("ledger entry posted",
		slog.Int64("entry_id", entry.ID),
		slog.Int("lines", len(entry.Lines)),
		slog.String("total", debit.StringFixed(amountScale)))
	s.record(ctx, entry.PostedBy, "journal.post", "journal_entry", entry.ID, map[string]any{
		"date":         entry.Date.Format(dateLayout),
		"batch_number": entry.BatchNumber,
		"source_id":    entry.SourceID.String(),
		"total":        debit.StringFixed(amountScale),
		"accounts":     entry.AccountIDs(),
	})
	return entry, nil
}

// AmendEntry replaces a posted entry's header and lines atomically.
func (s *Service) AmendEntry(ctx context.Context, id int64, in PostingInput) (JournalEntry, error) {
	entry, touched, err := s.journal.Amend(ctx, id, in)
	if s.done("journal.amend", err) != nil {
		return JournalEntry{}, err
	}
	s.log().Info("ledger entry amended", slog.Int64("entry_id", entry.ID), slog.Int("accounts", len(touched)))
	debit, _ := entry.Totals()
	s.record(ctx, in.PostedBy, "journal.amend", "journal_entry", entry.ID, map[string]any{
		"total":    debit.StringFixed(amountScale),
		"accounts": touched,
	})
	return entry, nil
}

// VoidEntry removes a posted entry and all of its lines.
func (s *Service) VoidEntry(ctx context.Context, id, actorID int64) error {
	removed, err := s.journal.Void(ctx, id)
	if s.done("journal.void", err) != nil {
		return err
	}
	s.log().Info("ledger entry voided", slog.Int64("entry_id", id))
	debit, _ := removed.Totals()
	s.record(ctx, actorID, "journal.void", "journal_entry", id, map[string]any{
		"date":     removed.Date.Format(dateLayout),
		"total":    debit.StringFixed(amountScale),
		"accounts": removed.AccountIDs(),
	})
	return nil
}

// GetEntry loads a posted entry.
func (s *Service) GetEntry(ctx context.Context, id int64) (JournalEntry, error) {
	return s.journal.Get(ctx, id)
}

// ListEntries returns a page of posted entries.
func (s *Service) ListEntries(ctx context.Context, filter EntryFilter) ([]JournalEntry, shared.Pagination, error) {
	entries, total, err := s.journal.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	filter = filter.normalized()
	return entries, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// AccountMovements returns the latest lines posted to an account.
func (s *Service) AccountMovements(ctx context.Context, accountID int64, limit int) ([]Movement, error) {
	return s.journal.Movements(ctx, accountID, limit)
}

// GetBalance returns an account's balance over an optional date range.
func (s *Service) GetBalance(ctx context.Context, accountID int64, rng DateRange) (Balance, error) {
	return s.aggregator.Balance(ctx, accountID, rng)
}

// GetBalances returns every account's balance over an optional date range.
func (s *Service) GetBalances(ctx context.Context, rng DateRange) ([]Balance, error) {
	return s.aggregator.Balances(ctx, rng)
}

// WarmBalances precomputes cached all-time balances for postable accounts
// and returns how many were computed.
func (s *Service) WarmBalances(ctx context.Context, concurrency int) (int, error) {
	accounts, err := s.catalog.ListPostable(ctx)
	if err != nil {
		return 0, err
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, acc := range accounts {
		id := acc.ID
		g.Go(func() error {
			_, err := s.aggregator.Balance(gctx, id, DateRange{})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(accounts), nil
}

// done records the outcome of a mutation and returns err unchanged.
func (s *Service) done(operation string, err error) error {
	outcome := "ok"
	switch {
	case err == nil:
	case isDomainError(err):
		outcome = "rejected"
		s.log().Debug("ledger request rejected", slog.String("operation", operation), slog.Any("error", err))
	default:
		outcome = "error"
		s.log().Error("ledger operation failed", slog.String("operation", operation), slog.Any("error", err))
	}
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, outcome)
	}
	return err
}

func (s *Service) record(ctx context.Context, actor int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.log().Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrConstraint)
}
