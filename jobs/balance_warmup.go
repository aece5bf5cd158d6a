package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

const (
	defaultWarmupConcurrency = 4
	warmupTimeout            = 2 * time.Minute
)

// BalanceWarmer precomputes cached balances.
type BalanceWarmer interface {
	WarmBalances(ctx context.Context, concurrency int) (int, error)
}

// BalanceWarmupJob pre-populates the balance cache for postable accounts.
type BalanceWarmupJob struct {
	Ledger  BalanceWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewBalanceWarmupJob wires dependencies for the warmup handler.
func NewBalanceWarmupJob(ledger BalanceWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *BalanceWarmupJob {
	return &BalanceWarmupJob{Ledger: ledger, Logger: logger, Metrics: metrics}
}

// Handle processes TaskBalanceWarmup tasks.
func (j *BalanceWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("balance warmup: handler not configured")
	}
	var payload BalanceWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Concurrency <= 0 {
		payload.Concurrency = defaultWarmupConcurrency
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskBalanceWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("concurrency", payload.Concurrency))
	logger.Info("starting balance warmup")

	warmCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()
	warmed, err := j.Ledger.WarmBalances(warmCtx, payload.Concurrency)
	if err != nil {
		resultErr = err
		logger.Error("balance warmup failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddWarmedBalances(warmed)

	logger.Info("completed balance warmup", slog.Int("accounts", warmed), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *BalanceWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBalanceWarmup))
	}
	return slog.Default().With(slog.String("job", TaskBalanceWarmup))
}

func (j *BalanceWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
