package accounting

import (
	"context"

	"github.com/google/uuid"
)

const defaultMovementLimit = 10

// Journal validates and commits balanced double-entry postings.
type Journal struct {
	repo RepositoryPort
}

// NewJournal constructs the journal engine.
func NewJournal(repo RepositoryPort) *Journal {
	return &Journal{repo: repo}
}

// Post validates and atomically persists a new journal entry.
func (j *Journal) Post(ctx context.Context, input PostingInput) (JournalEntry, error) {
	in := input.normalized()
	if err := validateShape(in); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := j.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ids := in.AccountIDs()
		accounts, err := tx.LockAccounts(ctx, ids)
		if err != nil {
			return err
		}
		if err := validateCommit(ctx, tx, in, accounts); err != nil {
			return err
		}
		inserted, err := tx.InsertJournalEntry(ctx, in)
		if err != nil {
			return err
		}
		lines, err := tx.InsertJournalLines(ctx, inserted.ID, in.Lines)
		if err != nil {
			return err
		}
		if in.SourceID != uuid.Nil {
			if err := tx.LinkSource(ctx, in.SourceID, inserted.ID); err != nil {
				return err
			}
		}
		if err := tx.BumpBalanceVersions(ctx, ids); err != nil {
			return err
		}
		inserted.Lines = lines
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// Amend re-validates a replacement entry and swaps it in for the posted one.
// The original source key is kept. touched lists every account whose balance
// changed, old and new.
func (j *Journal) Amend(ctx context.Context, id int64, input PostingInput) (entry JournalEntry, touched []int64, err error) {
	in := input.normalized()
	if err := validateShape(in); err != nil {
		return JournalEntry{}, nil, err
	}
	err = j.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockJournal(ctx, id)
		if err != nil {
			return err
		}
		in.SourceID = current.SourceID
		ids := uniqueIDs(append(current.AccountIDs(), in.AccountIDs()...))
		accounts, err := tx.LockAccounts(ctx, ids)
		if err != nil {
			return err
		}
		if err := validateCommit(ctx, tx, in, accounts); err != nil {
			return err
		}
		updated, err := tx.UpdateJournalEntry(ctx, id, in)
		if err != nil {
			return err
		}
		if err := tx.DeleteJournalLines(ctx, id); err != nil {
			return err
		}
		lines, err := tx.InsertJournalLines(ctx, id, in.Lines)
		if err != nil {
			return err
		}
		if err := tx.BumpBalanceVersions(ctx, ids); err != nil {
			return err
		}
		updated.Lines = lines
		entry = updated
		touched = ids
		return nil
	})
	if err != nil {
		return JournalEntry{}, nil, err
	}
	return entry, touched, nil
}

// Void removes a posted entry with all of its lines and returns what was
// removed.
func (j *Journal) Void(ctx context.Context, id int64) (JournalEntry, error) {
	var removed JournalEntry
	err := j.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockJournal(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteJournalEntry(ctx, id); err != nil {
			return err
		}
		if err := tx.BumpBalanceVersions(ctx, current.AccountIDs()); err != nil {
			return err
		}
		removed = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return removed, nil
}

// Get loads a posted entry with its lines.
func (j *Journal) Get(ctx context.Context, id int64) (JournalEntry, error) {
	var entry JournalEntry
	err := j.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetJournalWithLines(ctx, id)
		return err
	})
	return entry, err
}

// List returns a page of entries, newest date first, with the total count.
func (j *Journal) List(ctx context.Context, filter EntryFilter) ([]JournalEntry, int, error) {
	if err := filter.Range.Validate(); err != nil {
		return nil, 0, err
	}
	filter = filter.normalized()
	var (
		entries []JournalEntry
		total   int
	)
	err := j.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, total, err = tx.ListJournalEntries(ctx, filter)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Movements returns the latest lines posted to an account.
func (j *Journal) Movements(ctx context.Context, accountID int64, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	var moves []Movement
	err := j.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetAccount(ctx, accountID); err != nil {
			return err
		}
		var err error
		moves, err = tx.ListMovements(ctx, accountID, limit)
		return err
	})
	return moves, err
}
