package accounting

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// BalanceCache stores computed balances under version-qualified keys.
type BalanceCache interface {
	Get(ctx context.Context, key string) (Balance, bool, error)
	Set(ctx context.Context, key string, balance Balance) error
}

// CacheObserver receives balance cache hit/miss outcomes.
type CacheObserver interface {
	ObserveBalanceCache(result string)
}

// Aggregator derives balances from committed journal lines. Cached values are
// keyed by the account's balance version, which every commit touching the
// account bumps, so a stale entry is never addressed again.
type Aggregator struct {
	repo     RepositoryPort
	cache    BalanceCache
	observer CacheObserver
	logger   *slog.Logger
	group    singleflight.Group
}

// NewAggregator constructs a balance aggregator. cache may be nil.
func NewAggregator(repo RepositoryPort, cache BalanceCache) *Aggregator {
	return &Aggregator{repo: repo, cache: cache}
}

// BalanceKey composes the cache key for an account at a given version.
func BalanceKey(accountID, version int64, rng DateRange) string {
	return "ledger:balance:" + strconv.FormatInt(accountID, 10) + ":v" + strconv.FormatInt(version, 10) + ":" + rng.Key()
}

// Balance returns the nature-signed balance of one account.
func (a *Aggregator) Balance(ctx context.Context, accountID int64, rng DateRange) (Balance, error) {
	rng = rng.Normalized()
	if err := rng.Validate(); err != nil {
		return Balance{}, err
	}
	if a.cache == nil {
		bal, _, err := a.compute(ctx, accountID, rng)
		return bal, err
	}
	acc, err := a.account(ctx, accountID)
	if err != nil {
		return Balance{}, err
	}
	key := BalanceKey(acc.ID, acc.BalanceVersion, rng)
	if bal, ok, err := a.cache.Get(ctx, key); err != nil {
		a.log().Warn("balance cache read failed", slog.String("key", key), slog.Any("error", err))
	} else if ok {
		a.observe("hit")
		return bal, nil
	}
	a.observe("miss")
	v, err, _ := a.group.Do(key, func() (interface{}, error) {
		bal, version, err := a.compute(ctx, accountID, rng)
		if err != nil {
			return nil, err
		}
		// compute reads the version in the same snapshot as the sums, so the
		// stored key always matches the data it was built from.
		fresh := BalanceKey(accountID, version, rng)
		if err := a.cache.Set(ctx, fresh, bal); err != nil {
			a.log().Warn("balance cache write failed", slog.String("key", fresh), slog.Any("error", err))
		}
		return bal, nil
	})
	if err != nil {
		return Balance{}, err
	}
	return v.(Balance), nil
}

// Balances returns the balance of every account for the range in one pass.
// Accounts without lines carry zero totals.
func (a *Aggregator) Balances(ctx context.Context, rng DateRange) ([]Balance, error) {
	rng = rng.Normalized()
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	var (
		accounts []Account
		sums     map[int64]LineTotals
	)
	err := a.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if accounts, err = tx.ListAccounts(ctx); err != nil {
			return err
		}
		sums, err = tx.SumLinesByAccount(ctx, rng)
		return err
	})
	if err != nil {
		return nil, err
	}
	tree := NewTree(accounts)
	out := make([]Balance, 0, tree.Len())
	for _, acc := range tree.Accounts() {
		t, ok := sums[acc.ID]
		if !ok {
			t = LineTotals{Debit: decimal.Zero, Credit: decimal.Zero}
		}
		out = append(out, NewBalance(acc, t.Debit, t.Credit, rng))
	}
	return out, nil
}

func (a *Aggregator) compute(ctx context.Context, accountID int64, rng DateRange) (Balance, int64, error) {
	var (
		bal     Balance
		version int64
	)
	err := a.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		totals, err := tx.SumLines(ctx, accountID, rng)
		if err != nil {
			return err
		}
		bal = NewBalance(acc, totals.Debit, totals.Credit, rng)
		version = acc.BalanceVersion
		return nil
	})
	return bal, version, err
}

func (a *Aggregator) account(ctx context.Context, id int64) (Account, error) {
	var acc Account
	err := a.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		acc, err = tx.GetAccount(ctx, id)
		return err
	})
	return acc, err
}

func (a *Aggregator) observe(result string) {
	if a.observer != nil {
		a.observer.ObserveBalanceCache(result)
	}
}

func (a *Aggregator) log() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.Default()
}
