package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stockline/backoffice/internal/catalog"
	"github.com/stockline/backoffice/internal/reconcile"
	"github.com/stockline/backoffice/internal/shared"
)

// RepositoryPort abstracts upload persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, upload Upload) (Upload, error)
	Get(ctx context.Context, id uuid.UUID) (Upload, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkCompleted(ctx context.Context, id uuid.UUID, summary reconcile.Result, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, msg string, summary *reconcile.Result, at time.Time) error
	ListPending(ctx context.Context, before time.Time, limit int) ([]Upload, error)
	ListRecent(ctx context.Context, shopID *uuid.UUID, limit int) ([]Upload, error)
}

// FileStore keeps the uploaded workbooks.
type FileStore interface {
	Save(id uuid.UUID, at time.Time, ext string, r io.Reader) (string, int64, error)
	Path(rel string) string
	Remove(rel string) error
}

// Reconciler runs the stock reconciliation for one workbook.
type Reconciler interface {
	Reconcile(ctx context.Context, shopID *uuid.UUID, source reconcile.Source) (reconcile.Result, error)
	Layout() reconcile.Layout
	AllowsUnassignedShop() bool
}

// ShopDirectory checks target shops at registration time.
type ShopDirectory interface {
	GetShop(ctx context.Context, id uuid.UUID) (catalog.Shop, error)
}

// Enqueuer schedules background processing of an upload.
type Enqueuer interface {
	EnqueueStockReconcile(ctx context.Context, uploadID uuid.UUID) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// RequeueAfter is how long an upload may stay pending before it is enqueued again.
	RequeueAfter time.Duration
	RequeueBatch int
}

const (
	defaultRequeueAfter = 10 * time.Minute
	defaultRequeueBatch = 100
	defaultListLimit    = 20
	maxListLimit        = 200
)

// Service registers uploads and drives their reconciliation.
type Service struct {
	repo     RepositoryPort
	files    FileStore
	shops    ShopDirectory
	engine   Reconciler
	queue    Enqueuer
	audit    AuditPort
	logger   *slog.Logger
	validate *validator.Validate
	cfg      ServiceConfig
	now      func() time.Time
}

// Deps wires the collaborators of Service. Queue and Audit are optional.
type Deps struct {
	Repo   RepositoryPort
	Files  FileStore
	Shops  ShopDirectory
	Engine Reconciler
	Queue  Enqueuer
	Audit  AuditPort
	Logger *slog.Logger
}

// NewService builds Service.
func NewService(deps Deps, cfg ServiceConfig) *Service {
	if cfg.RequeueAfter <= 0 {
		cfg.RequeueAfter = defaultRequeueAfter
	}
	if cfg.RequeueBatch <= 0 {
		cfg.RequeueBatch = defaultRequeueBatch
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     deps.Repo,
		files:    deps.Files,
		shops:    deps.Shops,
		engine:   deps.Engine,
		queue:    deps.Queue,
		audit:    deps.Audit,
		logger:   logger,
		validate: validator.New(),
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Register stores the workbook, records a pending upload and enqueues it.
// An enqueue failure is logged only; RequeuePending picks such uploads up.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Upload, error) {
	if err := s.validate.Struct(req); err != nil {
		return Upload{}, fmt.Errorf("uploads: invalid request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return Upload{}, err
	}
	if req.ShopID == nil && !s.engine.AllowsUnassignedShop() {
		return Upload{}, fmt.Errorf("uploads: register: %w", reconcile.ErrShopRequired)
	}
	if req.ShopID != nil {
		if _, err := s.shops.GetShop(ctx, *req.ShopID); err != nil {
			return Upload{}, fmt.Errorf("uploads: shop %s: %w", req.ShopID, err)
		}
	}

	now := s.now()
	id := uuid.New()
	name := filepath.Base(strings.TrimSpace(req.FileName))
	path, size, err := s.files.Save(id, now, filepath.Ext(name), req.Content)
	if err != nil {
		return Upload{}, err
	}
	upload, err := s.repo.Insert(ctx, Upload{
		ID:          id,
		ShopID:      req.ShopID,
		FileName:    name,
		StoragePath: path,
		SizeBytes:   size,
		Status:      StatusPending,
		CreatedAt:   now,
	})
	if err != nil {
		if rmErr := s.files.Remove(path); rmErr != nil {
			s.logger.Warn("remove orphaned upload file", slog.String("path", path), slog.Any("error", rmErr))
		}
		return Upload{}, err
	}
	s.logger.Info("upload registered", slog.String("upload_id", id.String()), slog.String("file", name), slog.Int64("size", size))

	if s.queue != nil {
		if err := s.queue.EnqueueStockReconcile(ctx, id); err != nil && !errors.Is(err, ErrAlreadyQueued) {
			s.logger.Warn("enqueue upload", slog.String("upload_id", id.String()), slog.Any("error", err))
		}
	}
	return upload, nil
}

// Process reconciles a registered upload and records the outcome. Completed
// uploads are returned unchanged.
func (s *Service) Process(ctx context.Context, id uuid.UUID) (Upload, error) {
	upload, err := s.repo.Get(ctx, id)
	if err != nil {
		return Upload{}, err
	}
	if upload.Status == StatusCompleted {
		return upload, nil
	}
	if err := s.repo.MarkProcessing(ctx, id, s.now()); err != nil {
		return upload, err
	}

	source := reconcile.NewXLSXFileSource(s.files.Path(upload.StoragePath), s.engine.Layout().Sheet)
	result, runErr := s.engine.Reconcile(ctx, upload.ShopID, source)
	// the outcome is recorded even when the run was cancelled
	writeCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		var partial *reconcile.Result
		if result.Processed > 0 {
			partial = &result
		}
		if err := s.repo.MarkFailed(writeCtx, id, runErr.Error(), partial, s.now()); err != nil {
			s.logger.Error("mark upload failed", slog.String("upload_id", id.String()), slog.Any("error", err))
		}
		s.logger.Warn("upload reconcile failed", slog.String("upload_id", id.String()), slog.Any("error", runErr))
		return upload, fmt.Errorf("uploads: process %s: %w", id, runErr)
	}

	if err := s.repo.MarkCompleted(writeCtx, id, result, s.now()); err != nil {
		return upload, err
	}
	s.recordReconciled(writeCtx, upload, result)
	return s.repo.Get(writeCtx, id)
}

// RequeuePending enqueues uploads that stayed pending longer than RequeueAfter.
func (s *Service) RequeuePending(ctx context.Context) (int, error) {
	if s.queue == nil {
		return 0, errors.New("uploads: queue not configured")
	}
	stale, err := s.repo.ListPending(ctx, s.now().Add(-s.cfg.RequeueAfter), s.cfg.RequeueBatch)
	if err != nil {
		return 0, err
	}
	requeued := 0
	for _, upload := range stale {
		if err := ctx.Err(); err != nil {
			return requeued, err
		}
		err := s.queue.EnqueueStockReconcile(ctx, upload.ID)
		if errors.Is(err, ErrAlreadyQueued) {
			continue
		}
		if err != nil {
			s.logger.Warn("requeue upload", slog.String("upload_id", upload.ID.String()), slog.Any("error", err))
			continue
		}
		requeued++
	}
	if requeued > 0 {
		s.logger.Info("pending uploads requeued", slog.Int("count", requeued))
	}
	return requeued, nil
}

// Get returns one upload.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Upload, error) {
	return s.repo.Get(ctx, id)
}

// ListRecent returns the newest uploads, optionally filtered by shop.
func (s *Service) ListRecent(ctx context.Context, shopID *uuid.UUID, limit int) ([]Upload, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.ListRecent(ctx, shopID, limit)
}

func (s *Service) recordReconciled(ctx context.Context, upload Upload, result reconcile.Result) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{
		"file":             upload.FileName,
		"processed":        result.Processed,
		"upserted":         result.Upserted,
		"skipped":          result.Skipped(),
		"failed":           result.Failed,
		"products_created": len(result.CreatedProducts),
	}
	if upload.ShopID != nil {
		meta["shop_id"] = upload.ShopID.String()
	}
	entry := shared.AuditLog{
		Actor:    shared.ActorSystem,
		Action:   "stock:reconciled",
		Entity:   "stock_upload",
		EntityID: upload.ID.String(),
		Meta:     meta,
		At:       s.now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit reconcile", slog.String("upload_id", entry.EntityID), slog.Any("error", err))
	}
}
