package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/stockline/backoffice/internal/catalog"
	jobmetrics "github.com/stockline/backoffice/internal/jobs"
	"github.com/stockline/backoffice/internal/platform/cache"
	"github.com/stockline/backoffice/internal/reconcile"
	"github.com/stockline/backoffice/internal/shared"
	"github.com/stockline/backoffice/internal/uploads"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// UploadProcessor loads and processes registered uploads.
type UploadProcessor interface {
	Get(ctx context.Context, id uuid.UUID) (uploads.Upload, error)
	Process(ctx context.Context, id uuid.UUID) (uploads.Upload, error)
}

// ShopLocker hands out cross-process locks.
type ShopLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*cache.Lock, error)
}

// StockReconcileJob reconciles one upload while holding the lock of its shop.
type StockReconcileJob struct {
	Uploads UploadProcessor
	Locker  ShopLocker
	LockTTL time.Duration
	// Heartbeat is how often the shop lock is extended while the upload
	// runs. Zero means a third of LockTTL.
	Heartbeat time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewStockReconcileJob constructs the job handler.
func NewStockReconcileJob(processor UploadProcessor, locker ShopLocker, lockTTL time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockReconcileJob {
	return &StockReconcileJob{Uploads: processor, Locker: locker, LockTTL: lockTTL, Logger: logger, Metrics: metrics}
}

// Handle executes the reconciliation of the upload named in the payload.
func (j *StockReconcileJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload StockReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.UploadID == uuid.Nil {
		return asynq.SkipRetry
	}
	_, err := j.Run(ctx, payload.UploadID)
	if err != nil && permanent(err) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

// Run reconciles one upload under the lock of its shop. An upload that already
// completed is returned unchanged. The operator CLI calls Run directly.
func (j *StockReconcileJob) Run(ctx context.Context, uploadID uuid.UUID) (upload uploads.Upload, resultErr error) {
	if j == nil || j.Uploads == nil || j.Locker == nil {
		return uploads.Upload{}, errors.New("stock reconcile: dependencies not configured")
	}
	tracker := j.metrics().Track(TaskStockReconcile)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("upload_id", uploadID.String()))
	upload, err := j.Uploads.Get(ctx, uploadID)
	if err != nil {
		if errors.Is(err, uploads.ErrUploadNotFound) {
			logger.Warn("upload not found")
		}
		return uploads.Upload{}, err
	}
	if upload.Status == uploads.StatusCompleted {
		logger.Info("upload already reconciled")
		return upload, nil
	}

	lock, err := j.Locker.Acquire(ctx, shared.ReconcileLockKey(upload.ShopID), j.lockTTL())
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			j.metrics().IncLockContention()
			logger.Info("shop busy, retrying later")
		}
		return upload, fmt.Errorf("stock reconcile: lock: %w", err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("release shop lock", slog.Any("error", err))
		}
	}()

	runCtx, cancel := context.WithCancelCause(ctx)
	stopHeartbeat := j.keepLock(runCtx, lock, cancel, logger)
	done, err := j.Uploads.Process(runCtx, uploadID)
	stopHeartbeat()
	cancel(nil)
	if cause := context.Cause(runCtx); errors.Is(cause, cache.ErrLockLost) && err != nil {
		err = fmt.Errorf("stock reconcile: %w: %w", cause, err)
	}
	if err != nil {
		if permanent(err) {
			logger.Error("upload rejected", slog.Any("error", err))
		} else {
			logger.Error("upload reconcile failed", slog.Any("error", err))
		}
		return done, err
	}
	if done.Summary != nil {
		j.record(*done.Summary)
		logger.Info("upload reconciled",
			slog.Int("processed", done.Summary.Processed),
			slog.Int("upserted", done.Summary.Upserted),
			slog.Int("failed", done.Summary.Failed))
	}
	return done, nil
}

// keepLock extends lock every heartbeat until the returned stop func is
// called. Losing the lock cancels ctx so a second run for the same shop never
// overlaps this one.
func (j *StockReconcileJob) keepLock(ctx context.Context, lock *cache.Lock, cancel context.CancelCauseFunc, logger *slog.Logger) func() {
	interval := j.Heartbeat
	if interval <= 0 {
		interval = lock.TTL() / 3
	}
	if interval <= 0 {
		return func() {}
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := lock.Extend(ctx)
				if errors.Is(err, cache.ErrLockLost) {
					logger.Error("shop lock lost, stopping run", slog.String("key", lock.Key()))
					cancel(err)
					return
				}
				if err != nil {
					logger.Warn("extend shop lock", slog.Any("error", err))
				}
			}
		}
	}()
	return func() {
		close(stop)
		<-done
	}
}

// permanent reports failures that a retry cannot fix.
func permanent(err error) bool {
	return reconcile.IsSourceFormat(err) ||
		errors.Is(err, reconcile.ErrShopRequired) ||
		errors.Is(err, catalog.ErrShopNotFound) ||
		errors.Is(err, uploads.ErrUploadNotFound)
}

func (j *StockReconcileJob) record(res reconcile.Result) {
	m := j.metrics()
	m.AddRows(jobmetrics.OutcomeUpserted, res.Upserted)
	m.AddRows(jobmetrics.OutcomeInapplicable, res.SkippedInapplicable)
	m.AddRows(jobmetrics.OutcomeAmbiguous, res.SkippedAmbiguous)
	m.AddRows(jobmetrics.OutcomeUnmatched, res.SkippedUnmatched)
	m.AddRows(jobmetrics.OutcomeFailed, res.Failed)
	m.AddProductsCreated(len(res.CreatedProducts))
}

func (j *StockReconcileJob) lockTTL() time.Duration {
	if j.LockTTL > 0 {
		return j.LockTTL
	}
	return 10 * time.Minute
}

func (j *StockReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStockReconcile))
	}
	return slog.Default().With(slog.String("job", TaskStockReconcile))
}

func (j *StockReconcileJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
