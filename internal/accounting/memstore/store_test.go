package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func TestWithTxRollsBackOnError(t *testing.T) {
	store := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		_, err := tx.InsertAccount(ctx, accounting.Account{Code: "1", Level: 1})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = store.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		accounts, err := tx.ListAccounts(ctx)
		require.NoError(t, err)
		assert.Empty(t, accounts)
		return nil
	})
	require.NoError(t, err)
}

func TestWithTxHonoursCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := New().WithTx(ctx, func(context.Context, accounting.TxRepository) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestJournalLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()
	ref := uuid.New()

	var entryID int64
	err := store.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		a, err := tx.InsertAccount(ctx, accounting.Account{Code: "1", Level: 1, IsActive: true})
		require.NoError(t, err)
		b, err := tx.InsertAccount(ctx, accounting.Account{Code: "2", Level: 1, IsActive: true})
		require.NoError(t, err)

		_, err = tx.InsertAccount(ctx, accounting.Account{Code: "2"})
		assert.ErrorIs(t, err, accounting.ErrConflict)

		entry, err := tx.InsertJournalEntry(ctx, accounting.PostingInput{Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), NarrativeID: 1})
		require.NoError(t, err)
		_, err = tx.InsertJournalLines(ctx, entry.ID, []accounting.LineInput{
			{AccountID: a.ID, Side: accounting.SideDebit, Amount: decimal.RequireFromString("3.50")},
			{AccountID: b.ID, Side: accounting.SideCredit, Amount: decimal.RequireFromString("3.50")},
		})
		require.NoError(t, err)
		require.NoError(t, tx.LinkSource(ctx, ref, entry.ID))
		assert.ErrorIs(t, tx.LinkSource(ctx, ref, entry.ID), accounting.ErrConflict)
		require.NoError(t, tx.BumpBalanceVersions(ctx, []int64{a.ID, b.ID}))
		entryID = entry.ID
		return nil
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		acc, err := tx.GetAccountByCode(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), acc.BalanceVersion)

		n, err := tx.CountLines(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		totals, err := tx.SumLines(ctx, acc.ID, accounting.DateRange{From: time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)})
		require.NoError(t, err)
		assert.True(t, totals.Debit.IsZero())

		entryTotals, err := tx.ListEntryTotals(ctx)
		require.NoError(t, err)
		require.Len(t, entryTotals, 1)
		assert.Equal(t, 1, entryTotals[0].DebitLines)
		assert.True(t, entryTotals[0].Debit.Equal(entryTotals[0].Credit))

		entry, err := tx.GetJournalWithLines(ctx, entryID)
		require.NoError(t, err)
		assert.Equal(t, ref, entry.SourceID)
		return tx.DeleteJournalEntry(ctx, entryID)
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		_, err := tx.GetJournalWithLines(ctx, entryID)
		assert.ErrorIs(t, err, accounting.ErrNotFound)

		entry, err := tx.InsertJournalEntry(ctx, accounting.PostingInput{Date: time.Now(), NarrativeID: 1})
		require.NoError(t, err)
		assert.NoError(t, tx.LinkSource(ctx, ref, entry.ID), "voided source key is reusable")
		return nil
	})
	require.NoError(t, err)
}

func TestRegistryRecords(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, code := range []string{"B", "A", "C"} {
		_, err := store.CreateRecord(ctx, masterdata.Record{Kind: masterdata.KindNarrative, Code: code, Description: "desc " + code, IsActive: true})
		require.NoError(t, err)
	}
	_, err := store.CreateRecord(ctx, masterdata.Record{Kind: masterdata.KindNarrative, Code: "A"})
	assert.Error(t, err)

	recs, total, err := store.ListRecords(ctx, masterdata.KindNarrative, masterdata.ListFilters{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0].Code)

	recs, total, err = store.ListRecords(ctx, masterdata.KindNarrative, masterdata.ListFilters{Page: 1, Limit: 10, Search: "desc c"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "C", recs[0].Code)

	err = store.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		ref, ok, err := tx.LookupReference(ctx, accounting.ReferenceNarrative, recs[0].ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "C", ref.Code)

		_, ok, err = tx.LookupReference(ctx, accounting.ReferenceCostCenter, recs[0].ID)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestAuditLogs(t *testing.T) {
	store := New()
	ctx := context.Background()

	assert.Error(t, store.Record(ctx, shared.AuditLog{Action: "journal.post"}))
	require.NoError(t, store.Record(ctx, shared.AuditLog{Action: "journal.post", Entity: "journal_entry", EntityID: "1"}))
	logs := store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "journal.post", logs[0].Action)
}
