package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockline/backoffice/internal/reconcile"
)

// dbtx is the part of *pgxpool.Pool the repository uses.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists uploads in stock_uploads.
type Repository struct {
	pool dbtx
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		return &Repository{}
	}
	return &Repository{pool: pool}
}

const uploadColumns = `id, shop_id, file_name, storage_path, size_bytes, status, summary, COALESCE(error_message, ''), created_at, updated_at, processed_at`

// Insert stores a new pending upload.
func (r *Repository) Insert(ctx context.Context, upload Upload) (Upload, error) {
	if r == nil || r.pool == nil {
		return Upload{}, errors.New("uploads: repository not initialised")
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO stock_uploads (id, shop_id, file_name, storage_path, size_bytes, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
RETURNING `+uploadColumns,
		upload.ID, upload.ShopID, upload.FileName, upload.StoragePath, upload.SizeBytes, string(StatusPending), upload.CreatedAt)
	return scanUpload(row)
}

// Get loads one upload.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Upload, error) {
	if r == nil || r.pool == nil {
		return Upload{}, errors.New("uploads: repository not initialised")
	}
	upload, err := scanUpload(r.pool.QueryRow(ctx, `SELECT `+uploadColumns+` FROM stock_uploads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Upload{}, ErrUploadNotFound
	}
	return upload, err
}

// MarkProcessing claims an upload for a run. Completed uploads are not reprocessed.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID, at time.Time) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE stock_uploads
SET status = 'processing', error_message = NULL, updated_at = $2
WHERE id = $1 AND status <> 'completed'`, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}

// MarkCompleted stores the run summary.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, summary reconcile.Result, at time.Time) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	cmd, err := r.pool.Exec(ctx, `UPDATE stock_uploads
SET status = 'completed', summary = $2, error_message = NULL, processed_at = $3, updated_at = $3
WHERE id = $1 AND status = 'processing'`, id, payload, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}

// MarkFailed records why a run did not complete. summary may hold partial counts.
// A completed upload keeps its outcome.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, msg string, summary *reconcile.Result, at time.Time) error {
	var payload []byte
	if summary != nil {
		var err error
		if payload, err = json.Marshal(summary); err != nil {
			return err
		}
	}
	cmd, err := r.pool.Exec(ctx, `UPDATE stock_uploads
SET status = 'failed', summary = $2, error_message = $3, processed_at = $4, updated_at = $4
WHERE id = $1 AND status <> 'completed'`, id, payload, msg, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}

// ListPending returns pending uploads registered before the cutoff, oldest first.
func (r *Repository) ListPending(ctx context.Context, before time.Time, limit int) ([]Upload, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+uploadColumns+` FROM stock_uploads
WHERE status = 'pending' AND created_at < $1
ORDER BY created_at
LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	return collectUploads(rows)
}

// ListRecent returns the newest uploads, optionally for one shop.
func (r *Repository) ListRecent(ctx context.Context, shopID *uuid.UUID, limit int) ([]Upload, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+uploadColumns+` FROM stock_uploads
WHERE $1::uuid IS NULL OR shop_id = $1
ORDER BY created_at DESC
LIMIT $2`, shopID, limit)
	if err != nil {
		return nil, err
	}
	return collectUploads(rows)
}

func collectUploads(rows pgx.Rows) ([]Upload, error) {
	defer rows.Close()
	var out []Upload
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, upload)
	}
	return out, rows.Err()
}

func scanUpload(row pgx.Row) (Upload, error) {
	var (
		upload  Upload
		status  string
		summary []byte
	)
	if err := row.Scan(&upload.ID, &upload.ShopID, &upload.FileName, &upload.StoragePath, &upload.SizeBytes,
		&status, &summary, &upload.ErrorMessage, &upload.CreatedAt, &upload.UpdatedAt, &upload.ProcessedAt); err != nil {
		return Upload{}, err
	}
	upload.Status = Status(status)
	if len(summary) > 0 {
		var result reconcile.Result
		if err := json.Unmarshal(summary, &result); err != nil {
			return Upload{}, fmt.Errorf("uploads: decode summary: %w", err)
		}
		upload.Summary = &result
	}
	return upload, nil
}
