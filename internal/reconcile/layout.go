package reconcile

import (
	"errors"
	"strings"
)

// Positions of the point-of-sale export, zero-based.
const (
	DefaultSheet        = "TDSheet"
	LabelColumnIndex    = 0
	PriceColumnIndex    = 12
	QuantityColumnIndex = 13
)

// Layout describes where the engine finds its inputs in a sheet.
type Layout struct {
	Sheet          string
	LabelColumn    int
	PriceColumn    int
	QuantityColumn int
}

// DefaultLayout returns the layout of the point-of-sale export.
func DefaultLayout() Layout {
	return Layout{
		Sheet:          DefaultSheet,
		LabelColumn:    LabelColumnIndex,
		PriceColumn:    PriceColumnIndex,
		QuantityColumn: QuantityColumnIndex,
	}
}

// Validate checks the columns are distinct and non-negative.
func (l Layout) Validate() error {
	if strings.TrimSpace(l.Sheet) == "" {
		return errors.New("reconcile: layout sheet required")
	}
	if l.LabelColumn < 0 || l.PriceColumn < 0 || l.QuantityColumn < 0 {
		return errors.New("reconcile: layout columns must be >= 0")
	}
	if l.LabelColumn == l.PriceColumn || l.LabelColumn == l.QuantityColumn || l.PriceColumn == l.QuantityColumn {
		return errors.New("reconcile: layout columns must be distinct")
	}
	return nil
}

// requiredWidth is the minimum number of columns a sheet needs.
func (l Layout) requiredWidth() int {
	return max(l.LabelColumn, l.PriceColumn, l.QuantityColumn) + 1
}
