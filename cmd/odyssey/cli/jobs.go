package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &JobsCLI{client: client, inspector: asynq.NewInspector(opts)}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported job by name with default payload.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	return c.client.Enqueue(ctx, name, asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

func newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Enqueue and inspect background jobs",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:       "enqueue <" + jobs.TaskLedgerIntegrity + "|" + jobs.TaskBalanceWarmup + ">",
			Short:     "Enqueue a ledger job with its default payload",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{jobs.TaskLedgerIntegrity, jobs.TaskBalanceWarmup},
			RunE: func(cmd *cobra.Command, args []string) error {
				return withJobsCLI(func(c *JobsCLI) error {
					info, err := c.Trigger(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (id %s, queue %s)\n", info.Type, info.ID, info.Queue)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Show queue depth and scheduled tasks",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withJobsCLI(func(c *JobsCLI) error {
					stats, err := c.InspectQueue(cmd.Context())
					if err != nil {
						return err
					}
					scheduled, err := c.ListScheduled(cmd.Context(), 10)
					if err != nil {
						return err
					}
					return renderQueueStats(cmd.OutOrStdout(), stats, scheduled)
				})
			},
		},
	)
	return cmd
}

func withJobsCLI(fn func(*JobsCLI) error) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	c, err := NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func renderQueueStats(out io.Writer, stats QueueStats, scheduled []*asynq.TaskInfo) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "queue\t%s\n", stats.Queue)
	fmt.Fprintf(tw, "pending\t%d\n", stats.Pending)
	fmt.Fprintf(tw, "active\t%d\n", stats.Active)
	fmt.Fprintf(tw, "scheduled\t%d\n", stats.Scheduled)
	fmt.Fprintf(tw, "retry\t%d\n", stats.Retry)
	for _, t := range scheduled {
		fmt.Fprintf(tw, "  %s\t%s at %s\n", t.ID, t.Type, t.NextProcessAt.UTC().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
