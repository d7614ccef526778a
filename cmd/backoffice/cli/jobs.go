package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockline/backoffice/jobs"
)

// QueueInspector is the subset of *asynq.Inspector used by the CLI.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

// TaskEnqueuer is the subset of *asynq.Client used by the CLI.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    TaskEnqueuer
	inspector QueueInspector
	closers   []func() error
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client := asynq.NewClient(opts)
	inspector := asynq.NewInspector(opts)
	return &JobsCLI{
		client:    client,
		inspector: inspector,
		closers:   []func() error{inspector.Close, client.Close},
	}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	for _, closeFn := range c.closers {
		if closeErr := closeFn(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported periodic job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskUploadsRequeue:
		task, err = jobs.NewUploadsRequeueTask()
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(1))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
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
		stats.Archived = info.Archived
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

type scheduledTask struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	NextProcessAt time.Time `json:"next_process_at"`
}

type queueReport struct {
	QueueStats
	Upcoming []scheduledTask `json:"upcoming"`
}

// QueueCommand prints queue statistics and the next scheduled tasks.
func (c *JobsCLI) QueueCommand(ctx context.Context, out Output) int {
	out.defaults()
	stats, err := c.InspectQueue(ctx)
	if err != nil {
		return out.fail("queue", "%v", err)
	}
	infos, err := c.ListScheduled(ctx, 10)
	if err != nil {
		return out.fail("queue", "%v", err)
	}
	report := queueReport{QueueStats: stats, Upcoming: make([]scheduledTask, 0, len(infos))}
	for _, info := range infos {
		report.Upcoming = append(report.Upcoming, scheduledTask{ID: info.ID, Type: info.Type, NextProcessAt: info.NextProcessAt})
	}
	if out.JSONOutput {
		return encode(out, "queue", report)
	}
	_, _ = fmt.Fprintf(out.Stdout, "queue %s: pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	for _, task := range report.Upcoming {
		_, _ = fmt.Fprintf(out.Stdout, "  %s %s at %s\n", task.Type, task.ID, task.NextProcessAt.Format(time.RFC3339))
	}
	return 0
}

// RequeueCommand triggers an immediate sweep of stale pending uploads.
func (c *JobsCLI) RequeueCommand(ctx context.Context, out Output) int {
	out.defaults()
	info, err := c.Trigger(ctx, jobs.TaskUploadsRequeue)
	if err != nil {
		return out.fail("requeue", "%v", err)
	}
	_, _ = fmt.Fprintf(out.Stdout, "enqueued %s as %s\n", info.Type, info.ID)
	return 0
}
