package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

type stubChecker struct {
	report accounting.IntegrityReport
	err    error
}

func (s stubChecker) CheckIntegrity(context.Context) (accounting.IntegrityReport, error) {
	return s.report, s.err
}

func newTestMetrics(t *testing.T) (*jobmetrics.Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return jobmetrics.NewMetrics(reg), reg
}

func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			if c := m.GetCounter(); c != nil {
				total += c.GetValue()
			}
		}
	}
	return total
}

func TestLedgerIntegrityJobCountsIssuesByKind(t *testing.T) {
	metrics, reg := newTestMetrics(t)
	job := NewLedgerIntegrityJob(stubChecker{report: accounting.IntegrityReport{
		EntriesChecked:  3,
		AccountsChecked: 5,
		Issues: []accounting.IntegrityIssue{
			{Kind: accounting.IssueUnbalancedEntry, Entity: "journal_entry", EntityID: 1},
			{Kind: accounting.IssueUnbalancedEntry, Entity: "journal_entry", EntityID: 2},
			{Kind: accounting.IssueLevelMismatch, Entity: "account", EntityID: 9},
		},
	}}, nil, metrics)

	task, err := NewLedgerIntegrityTask(1)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, 2.0, metricValue(t, reg, "odyssey_ledger_integrity_issues_total", map[string]string{"kind": "unbalanced_entry"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "odyssey_ledger_integrity_issues_total", map[string]string{"kind": "level_mismatch"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "odyssey_jobs_total", map[string]string{"job": TaskLedgerIntegrity, "status": "success"}))
}

func TestLedgerIntegrityJobScanFailure(t *testing.T) {
	metrics, reg := newTestMetrics(t)
	boom := errors.New("connection refused")
	job := NewLedgerIntegrityJob(stubChecker{err: boom}, nil, metrics)

	err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, nil))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, metricValue(t, reg, "odyssey_jobs_failures_total", map[string]string{"job": TaskLedgerIntegrity}))
}

func TestLedgerIntegrityJobBadPayload(t *testing.T) {
	job := NewLedgerIntegrityJob(stubChecker{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestLedgerIntegrityJobAgainstCleanLedger(t *testing.T) {
	store := memstore.New()
	svc := accounting.NewService(store, store)
	_, err := svc.CreateAccount(context.Background(), accounting.AccountInput{Description: "Cash", Type: accounting.AccountTypeAsset})
	require.NoError(t, err)

	metrics, reg := newTestMetrics(t)
	job := NewLedgerIntegrityJob(svc, nil, metrics)
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, nil)))
	assert.Zero(t, metricValue(t, reg, "odyssey_ledger_integrity_issues_total", nil))
}

func TestBalanceWarmupJob(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := accounting.NewService(store, store)
	parent, err := svc.CreateAccount(ctx, accounting.AccountInput{Description: "Assets", Type: accounting.AccountTypeAsset, AcceptsPostings: new(bool)})
	require.NoError(t, err)
	for _, name := range []string{"Cash", "Bank"} {
		_, err := svc.CreateAccount(ctx, accounting.AccountInput{Description: name, Type: accounting.AccountTypeAsset, ParentID: &parent.ID})
		require.NoError(t, err)
	}

	metrics, reg := newTestMetrics(t)
	job := NewBalanceWarmupJob(svc, nil, metrics)
	task, err := NewBalanceWarmupTask(2)
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))
	assert.Equal(t, 2.0, metricValue(t, reg, "odyssey_ledger_balances_warmed_total", nil))
}

type failingWarmer struct{}

func (failingWarmer) WarmBalances(ctx context.Context, _ int) (int, error) {
	return 0, context.Canceled
}

func TestBalanceWarmupJobFailure(t *testing.T) {
	metrics, reg := newTestMetrics(t)
	job := NewBalanceWarmupJob(failingWarmer{}, nil, metrics)
	err := job.Handle(context.Background(), asynq.NewTask(TaskBalanceWarmup, nil))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1.0, metricValue(t, reg, "odyssey_jobs_total", map[string]string{"job": TaskBalanceWarmup, "status": "failure"}))
}

func TestNewTaskByName(t *testing.T) {
	task, err := NewTask(TaskBalanceWarmup)
	require.NoError(t, err)
	assert.Equal(t, TaskBalanceWarmup, task.Type())

	_, err = NewTask("mail:send")
	var unknown *UnknownTaskError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "mail:send", unknown.Name)
}

func TestLedgerHandlersSkipNil(t *testing.T) {
	handlers := LedgerHandlers(NewLedgerIntegrityJob(stubChecker{}, nil, nil), nil)
	require.Len(t, handlers, 1)
	assert.Equal(t, TaskLedgerIntegrity, handlers[0].Type)

	mux := NewServeMux(handlers)
	require.NoError(t, mux.ProcessTask(context.Background(), asynq.NewTask(TaskLedgerIntegrity, nil)))
}
