package uploads

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stockline/backoffice/internal/reconcile"
)

// Status captures the processing state of an upload.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Upload is a registered point-of-sale export waiting for or done with reconciliation.
type Upload struct {
	ID           uuid.UUID         `json:"id"`
	ShopID       *uuid.UUID        `json:"shop_id,omitempty"`
	FileName     string            `json:"file_name"`
	StoragePath  string            `json:"storage_path"`
	SizeBytes    int64             `json:"size_bytes"`
	Status       Status            `json:"status"`
	Summary      *reconcile.Result `json:"summary,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	ProcessedAt  *time.Time        `json:"processed_at,omitempty"`
}

// RegisterRequest carries a new export.
type RegisterRequest struct {
	ShopID   *uuid.UUID
	FileName string    `validate:"required,max=255"`
	Content  io.Reader `validate:"required"`
}

var allowedExtensions = map[string]bool{".xlsx": true, ".xlsm": true}

// Validate checks what struct tags cannot express.
func (r RegisterRequest) Validate() error {
	if strings.TrimSpace(r.FileName) == "" {
		return errors.New("uploads: file name required")
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(r.FileName))] {
		return ErrUnsupportedFile
	}
	if r.ShopID != nil && *r.ShopID == uuid.Nil {
		return errors.New("uploads: shop id must not be nil uuid")
	}
	return nil
}

var (
	// ErrUploadNotFound indicates the upload does not exist.
	ErrUploadNotFound = errors.New("uploads: upload not found")
	// ErrInvalidStatus indicates the upload cannot move to the requested status.
	ErrInvalidStatus = errors.New("uploads: invalid status transition")
	// ErrUnsupportedFile indicates a file that is not an xlsx workbook.
	ErrUnsupportedFile = errors.New("uploads: only .xlsx workbooks are supported")
	// ErrAlreadyQueued indicates the upload is already waiting in or running on the queue.
	ErrAlreadyQueued = errors.New("uploads: upload already queued")
)
