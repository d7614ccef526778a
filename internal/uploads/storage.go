package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage keeps uploaded workbooks on the local filesystem under
// <root>/<yyyy>/<mm>/<id>.xlsx. Stored paths are relative to root.
type Storage struct {
	root string
}

// NewStorage builds Storage rooted at dir.
func NewStorage(dir string) (*Storage, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("uploads: storage dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Storage{root: dir}, nil
}

// Save streams r into a new file and returns its relative path and size.
func (s *Storage) Save(id uuid.UUID, at time.Time, ext string, r io.Reader) (string, int64, error) {
	rel := filepath.Join(at.UTC().Format("2006"), at.UTC().Format("01"), id.String()+strings.ToLower(ext))
	dir := filepath.Join(s.root, filepath.Dir(rel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, err
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", 0, err
	}
	size, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("uploads: write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.root, rel)); err != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, err
	}
	return filepath.ToSlash(rel), size, nil
}

// Path resolves a stored relative path.
func (s *Storage) Path(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// Remove deletes a stored file; missing files are ignored.
func (s *Storage) Remove(rel string) error {
	err := os.Remove(s.Path(rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
