package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

const defaultMaxLogged = 50

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// IntegrityChecker scans committed ledger state.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context) (accounting.IntegrityReport, error)
}

// LedgerIntegrityJob runs the ledger integrity scan. Findings are logged and
// counted; the task itself only fails when the scan cannot run.
type LedgerIntegrityJob struct {
	Ledger  IntegrityChecker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerIntegrityJob wires dependencies for the integrity handler.
func NewLedgerIntegrityJob(ledger IntegrityChecker, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Ledger: ledger, Logger: logger, Metrics: metrics}
}

// Handle processes TaskLedgerIntegrity tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.MaxLogged <= 0 {
		payload.MaxLogged = defaultMaxLogged
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting ledger integrity scan")

	report, err := j.Ledger.CheckIntegrity(ctx)
	if err != nil {
		resultErr = err
		logger.Error("integrity scan failed", slog.Any("error", err))
		return resultErr
	}

	counts := make(map[accounting.IssueKind]int)
	for i, issue := range report.Issues {
		counts[issue.Kind]++
		if i < payload.MaxLogged {
			logger.Error("ledger invariant violated",
				slog.String("kind", string(issue.Kind)),
				slog.String("entity", issue.Entity),
				slog.Int64("entity_id", issue.EntityID),
				slog.String("detail", issue.Detail),
			)
		}
	}
	for kind, n := range counts {
		j.metrics().AddIntegrityIssues(string(kind), n)
	}

	logger.Info("completed ledger integrity scan",
		slog.Int("entries", report.EntriesChecked),
		slog.Int("accounts", report.AccountsChecked),
		slog.Int("issues", len(report.Issues)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
