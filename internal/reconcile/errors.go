package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrShopRequired is returned when a run has no target shop and unassigned
	// stock is not allowed.
	ErrShopRequired = errors.New("reconcile: target shop required")
	// ErrAmbiguousMatch marks a row whose label matched several products and none by exact name.
	ErrAmbiguousMatch = errors.New("reconcile: ambiguous product match")
	// ErrUnmatched marks a row whose label matched nothing while auto-creation is off.
	ErrUnmatched = errors.New("reconcile: no matching product")
)

// SourceFormatError reports a spreadsheet that cannot be reconciled at all.
type SourceFormatError struct {
	Reason string
	Err    error
}

func (e *SourceFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reconcile: source format: %s: %v", e.Reason, e.Err)
	}
	return "reconcile: source format: " + e.Reason
}

func (e *SourceFormatError) Unwrap() error { return e.Err }

// CatalogReadError wraps a failed product lookup for one row.
type CatalogReadError struct {
	Label string
	Err   error
}

func (e *CatalogReadError) Error() string {
	return fmt.Sprintf("reconcile: catalog lookup %q: %v", e.Label, e.Err)
}

func (e *CatalogReadError) Unwrap() error { return e.Err }

// CatalogWriteError wraps a failed product creation for one row.
type CatalogWriteError struct {
	Label string
	Err   error
}

func (e *CatalogWriteError) Error() string {
	return fmt.Sprintf("reconcile: create product %q: %v", e.Label, e.Err)
}

func (e *CatalogWriteError) Unwrap() error { return e.Err }

// StockWriteError wraps a failed stock upsert for one row.
type StockWriteError struct {
	Key string
	Err error
}

func (e *StockWriteError) Error() string {
	return fmt.Sprintf("reconcile: upsert stock %s: %v", e.Key, e.Err)
}

func (e *StockWriteError) Unwrap() error { return e.Err }

// IsSourceFormat reports whether err is a SourceFormatError.
func IsSourceFormat(err error) bool {
	var sfe *SourceFormatError
	return errors.As(err, &sfe)
}
