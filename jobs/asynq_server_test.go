package jobs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/stockline/backoffice/internal/uploads"
)

func TestNewStockReconcileTask(t *testing.T) {
	id := uuid.New()
	task, err := NewStockReconcileTask(id)
	require.NoError(t, err)
	require.Equal(t, TaskStockReconcile, task.Type())

	var payload StockReconcilePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, id, payload.UploadID)

	_, err = NewStockReconcileTask(uuid.Nil)
	require.Error(t, err)
}

func TestClientEnqueuesUploadOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	id := uuid.New()
	require.NoError(t, client.EnqueueStockReconcile(context.Background(), id))
	require.ErrorIs(t, client.EnqueueStockReconcile(context.Background(), id), uploads.ErrAlreadyQueued)

	pending, err := mr.List("asynq:{" + QueueDefault + "}:pending")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, client.EnqueueStockReconcile(context.Background(), uuid.New()))
	pending, err = mr.List("asynq:{" + QueueDefault + "}:pending")
	require.NoError(t, err)
	require.Len(t, pending, 2)
}

func TestClientRevivesArchivedUploadTask(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := asynq.RedisClientOpt{Addr: mr.Addr()}
	client, err := NewClient(opts)
	require.NoError(t, err)
	defer client.Close()
	inspector := asynq.NewInspector(opts)
	defer inspector.Close()

	id := uuid.New()
	taskID := StockReconcileTaskID(id)
	require.NoError(t, client.EnqueueStockReconcile(context.Background(), id))
	require.NoError(t, inspector.ArchiveTask(QueueDefault, taskID))

	require.NoError(t, client.EnqueueStockReconcile(context.Background(), id))

	info, err := inspector.GetTaskInfo(QueueDefault, taskID)
	require.NoError(t, err)
	require.Equal(t, asynq.TaskStatePending, info.State)
	pending, err := mr.List("asynq:{" + QueueDefault + "}:pending")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.False(t, mr.Exists("asynq:{"+QueueDefault+"}:archived"))

	require.ErrorIs(t, client.EnqueueStockReconcile(context.Background(), id), uploads.ErrAlreadyQueued)
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}})
	require.Error(t, err)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, QueueDefault, body.Queue)
	require.Zero(t, body.Pending)
}
