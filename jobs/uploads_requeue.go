package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stockline/backoffice/internal/jobs"
)

// PendingRequeuer re-enqueues uploads that never reached the worker.
type PendingRequeuer interface {
	RequeuePending(ctx context.Context) (int, error)
}

// UploadsRequeueJob runs the periodic requeue of pending uploads.
type UploadsRequeueJob struct {
	Requeuer PendingRequeuer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewUploadsRequeueJob constructs the job handler.
func NewUploadsRequeueJob(requeuer PendingRequeuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *UploadsRequeueJob {
	return &UploadsRequeueJob{Requeuer: requeuer, Logger: logger, Metrics: metrics}
}

// Handle executes one requeue sweep.
func (j *UploadsRequeueJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Requeuer == nil {
		return errors.New("uploads requeue: dependencies not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskUploadsRequeue)
	n, err := j.Requeuer.RequeuePending(ctx)
	if err != nil {
		j.logger().Error("requeue pending uploads", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger().Debug("requeue sweep done", slog.Int("requeued", n))
	return tracker.End(nil)
}

func (j *UploadsRequeueJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskUploadsRequeue))
	}
	return slog.Default().With(slog.String("job", TaskUploadsRequeue))
}
