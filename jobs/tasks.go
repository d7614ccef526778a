package jobs

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockReconcile reconciles one registered stock upload.
	TaskStockReconcile = "stock:reconcile"
	// TaskUploadsRequeue re-enqueues uploads stuck in pending.
	TaskUploadsRequeue = "uploads:requeue"
)

// StockReconcilePayload identifies the upload to reconcile.
type StockReconcilePayload struct {
	UploadID uuid.UUID `json:"upload_id"`
}

// NewStockReconcileTask constructs the task for an upload. The task id is the
// upload id so an upload is queued at most once at a time.
func NewStockReconcileTask(uploadID uuid.UUID) (*asynq.Task, error) {
	if uploadID == uuid.Nil {
		return nil, errors.New("jobs: upload id required")
	}
	body, err := json.Marshal(StockReconcilePayload{UploadID: uploadID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockReconcile, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(StockReconcileTaskID(uploadID)),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Minute),
	), nil
}

// StockReconcileTaskID is the queue task id of an upload.
func StockReconcileTaskID(uploadID uuid.UUID) string {
	return TaskStockReconcile + ":" + uploadID.String()
}

// UploadsRequeuePayload carries scheduling metadata.
type UploadsRequeuePayload struct {
	ScheduledFor time.Time `json:"scheduled_for,omitempty"`
}

// NewUploadsRequeueTask constructs the periodic requeue task.
func NewUploadsRequeueTask() (*asynq.Task, error) {
	body, err := json.Marshal(UploadsRequeuePayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUploadsRequeue, body, asynq.Queue(QueueDefault)), nil
}
