package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Ledger bundles the services shared by the HTTP server, the worker and the CLI.
type Ledger struct {
	Service  *accounting.Service
	Registry *masterdata.Service
	Redis    *redis.Client

	closers []func()
}

// OpenLedger wires the ledger against the configured store. With Postgres, a
// reachable Redis enables the balance cache; an unreachable one only logs.
func OpenLedger(ctx context.Context, cfg *Config, logger *slog.Logger, metrics *observability.Metrics) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UsesMemoryStore() {
		store := memstore.New()
		svc := accounting.NewService(store, store).WithLogger(logger).WithMetrics(metrics.Ledger())
		logger.Info("ledger using in-memory store")
		return &Ledger{Service: svc, Registry: masterdata.NewService(store)}, nil
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	l := &Ledger{closers: []func(){pool.Close}}

	repo := accounting.NewRepository(pool, cfg.LedgerTxMaxRetries)
	svc := accounting.NewService(repo, shared.NewAuditLogger(pool)).WithLogger(logger).WithMetrics(metrics.Ledger())

	client, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("balance cache disabled", slog.Any("error", err))
	} else {
		l.Redis = client
		l.closers = append(l.closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		})
		svc.WithCache(accounting.NewRedisBalanceCache(client, cfg.LedgerBalanceCacheTTL))
	}

	l.Service = svc
	l.Registry = masterdata.NewService(masterdata.NewRepository(pool))
	return l, nil
}

// Close releases pooled connections in reverse order of acquisition.
func (l *Ledger) Close() {
	if l == nil {
		return
	}
	for i := len(l.closers) - 1; i >= 0; i-- {
		l.closers[i]()
	}
	l.closers = nil
}
