package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity re-verifies ledger invariants over committed state.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskBalanceWarmup precomputes cached balances for postable accounts.
	TaskBalanceWarmup = "ledger:balance-warmup"
)

// LedgerIntegrityPayload configures an integrity scan.
type LedgerIntegrityPayload struct {
	// MaxLogged caps how many individual issues are logged per run.
	MaxLogged int `json:"max_logged"`
}

// BalanceWarmupPayload configures a warmup run.
type BalanceWarmupPayload struct {
	Concurrency int `json:"concurrency"`
}

// NewLedgerIntegrityTask constructs an integrity scan task.
func NewLedgerIntegrityTask(maxLogged int) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerIntegrityPayload{MaxLogged: maxLogged})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// NewBalanceWarmupTask constructs a balance warmup task.
func NewBalanceWarmupTask(concurrency int) (*asynq.Task, error) {
	data, err := json.Marshal(BalanceWarmupPayload{Concurrency: concurrency})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBalanceWarmup, data), nil
}

// NewTask builds a task by name with its default payload.
func NewTask(name string) (*asynq.Task, error) {
	switch name {
	case TaskLedgerIntegrity:
		return NewLedgerIntegrityTask(0)
	case TaskBalanceWarmup:
		return NewBalanceWarmupTask(0)
	default:
		return nil, &UnknownTaskError{Name: name}
	}
}

// UnknownTaskError reports an unsupported task name.
type UnknownTaskError struct {
	Name string
}

func (e *UnknownTaskError) Error() string {
	return "jobs: unsupported task " + e.Name
}
