package reconcile

import (
	"strconv"
	"strings"
)

// CellKind is the storage type of a spreadsheet cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellNumber
	CellText
	CellBool
	CellOther
)

// Cell is a raw cell value together with its storage type.
type Cell struct {
	Value string
	Kind  CellKind
}

// WholeNumber returns the cell as a non-negative integer. Anything else is absent:
// text that looks numeric, fractions, exponent notation, signs, booleans and dates
// are not coerced.
func (c Cell) WholeNumber() (int64, bool) {
	if c.Kind != CellNumber {
		return 0, false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" || v[0] == '+' || v[0] == '-' {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Row is one sheet row; Number is 1-based as shown by spreadsheet software.
type Row struct {
	Number int
	Cells  []Cell
}

// Cell returns the cell at a zero-based column, or an empty cell past the end.
func (r Row) Cell(col int) Cell {
	if col < 0 || col >= len(r.Cells) {
		return Cell{}
	}
	return r.Cells[col]
}

// Table is a fully loaded sheet.
type Table struct {
	Sheet string
	Rows  []Row
	Width int
}
