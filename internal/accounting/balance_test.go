package accounting_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

func newRedisCache(t *testing.T) (*accounting.RedisBalanceCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return accounting.NewRedisBalanceCache(client, time.Minute), mr
}

func TestRedisBalanceCacheRoundTrip(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	bal := accounting.NewBalance(
		accounting.Account{ID: 9, Code: "1.1", Nature: accounting.NatureDebit},
		dec("10.5"), dec("0.25"),
		accounting.DateRange{From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	)
	require.NoError(t, cache.Set(ctx, "k", bal))
	assert.True(t, mr.Exists("k"))
	assert.Equal(t, time.Minute, mr.TTL("k"))

	got, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bal.AccountID, got.AccountID)
	assert.True(t, got.NetBalance.Equal(dec("10.25")))
	assert.True(t, got.Range.From.Equal(bal.Range.From))
	assert.True(t, got.Range.To.IsZero())
}

func TestBalanceCacheInvalidatedByPosting(t *testing.T) {
	f := newFixture(t)
	cache, mr := newRedisCache(t)
	rec := newCountingRecorder()
	f.svc.WithCache(cache).WithMetrics(rec)
	ctx := context.Background()

	_, err := f.svc.PostEntry(ctx, f.entry(dr(f.cash, "40"), cr(f.sales, "40")))
	require.NoError(t, err)

	first, err := f.svc.GetBalance(ctx, f.cash.ID, accounting.DateRange{})
	require.NoError(t, err)
	second, err := f.svc.GetBalance(ctx, f.cash.ID, accounting.DateRange{})
	require.NoError(t, err)
	assert.True(t, first.NetBalance.Equal(second.NetBalance))
	assert.Equal(t, 1, rec.results["miss"])
	assert.Equal(t, 1, rec.results["hit"])

	acc, err := f.svc.GetAccount(ctx, f.cash.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(accounting.BalanceKey(acc.ID, acc.BalanceVersion, accounting.DateRange{})))

	_, err = f.svc.PostEntry(ctx, f.entry(dr(f.cash, "2.5"), cr(f.sales, "2.5")))
	require.NoError(t, err)
	third, err := f.svc.GetBalance(ctx, f.cash.ID, accounting.DateRange{})
	require.NoError(t, err)
	assert.True(t, third.NetBalance.Equal(dec("42.5")), third.NetBalance.String())
	assert.Equal(t, 2, rec.results["miss"])
}

func TestBalanceCacheInvalidatedByAmendAndVoid(t *testing.T) {
	f := newFixture(t)
	cache, _ := newRedisCache(t)
	rec := newCountingRecorder()
	f.svc.WithCache(cache).WithMetrics(rec)
	ctx := context.Background()

	entry, err := f.svc.PostEntry(ctx, f.entry(dr(f.cash, "60"), cr(f.sales, "60")))
	require.NoError(t, err)
	cash, err := f.svc.GetBalance(ctx, f.cash.ID, accounting.DateRange{})
	require.NoError(t, err)
	require.True(t, cash.NetBalance.Equal(dec("60")))
	_, err = f.svc.GetBalance(ctx, f.cash.ID, accounting.DateRange{})
	require.NoError(t, err)
	require.Equal(t, 1, rec.results["miss"])
	require.Equal(t, 1, rec.results["hit"])

	// The amendment moves the debit off cash, which must drop its cached 60.
	_, err = f.svc.AmendEntry(ctx, entry.ID, f.entry(dr(f.bank, "60"), cr(f.sales, "60")))
	require.NoError(t, err)
	cash, err = f.svc.GetBalance(ctx, f.cash.ID, accounting.DateRange{})
	require.NoError(t, err)
	assert.True(t, cash.NetBalance.IsZero(), cash.NetBalance.String())
	assert.Equal(t, 2, rec.results["miss"])

	bank, err := f.svc.GetBalance(ctx, f.bank.ID, accounting.DateRange{})
	require.NoError(t, err)
	assert.True(t, bank.NetBalance.Equal(dec("60")), bank.NetBalance.String())
	_, err = f.svc.GetBalance(ctx, f.bank.ID, accounting.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 3, rec.results["miss"])
	assert.Equal(t, 2, rec.results["hit"])

	require.NoError(t, f.svc.VoidEntry(ctx, entry.ID, 0))
	bank, err = f.svc.GetBalance(ctx, f.bank.ID, accounting.DateRange{})
	require.NoError(t, err)
	assert.True(t, bank.NetBalance.IsZero(), bank.NetBalance.String())
	assert.Equal(t, 4, rec.results["miss"])

	sales, err := f.svc.GetBalance(ctx, f.sales.ID, accounting.DateRange{})
	require.NoError(t, err)
	assert.True(t, sales.NetBalance.IsZero(), sales.NetBalance.String())

	assert.ErrorIs(t, f.svc.VoidEntry(ctx, entry.ID, 0), accounting.ErrNotFound)
}

func TestBalanceFallsBackWhenCacheFails(t *testing.T) {
	f := newFixture(t)
	cache, mr := newRedisCache(t)
	f.svc.WithCache(cache)
	ctx := context.Background()

	_, err := f.svc.PostEntry(ctx, f.entry(dr(f.cash, "7"), cr(f.sales, "7")))
	require.NoError(t, err)

	mr.Close()
	bal, err := f.svc.GetBalance(ctx, f.cash.ID, accounting.DateRange{})
	require.NoError(t, err)
	assert.True(t, bal.NetBalance.Equal(dec("7")))
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (accounting.Balance, bool, error) {
	return accounting.Balance{}, false, errors.New("boom")
}

func (failingCache) Set(context.Context, string, accounting.Balance) error {
	return errors.New("boom")
}

func TestWarmBalances(t *testing.T) {
	f := newFixture(t)
	cache, mr := newRedisCache(t)
	f.svc.WithCache(cache)
	ctx := context.Background()

	n, err := f.svc.WarmBalances(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Len(t, mr.Keys(), 4)

	f.svc.WithCache(failingCache{})
	n, err = f.svc.WarmBalances(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.svc.WarmBalances(canceled, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
