package reconcile

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Source yields the table of one uploaded spreadsheet. Implementations load the
// whole sheet so that format problems surface before any row is applied.
type Source interface {
	Read(ctx context.Context) (Table, error)
}

// XLSXSource reads a named sheet from an .xlsx workbook.
type XLSXSource struct {
	sheet string
	open  func() (*excelize.File, error)
}

// NewXLSXFileSource reads the workbook stored at path.
func NewXLSXFileSource(path, sheet string) *XLSXSource {
	return &XLSXSource{sheet: sheet, open: func() (*excelize.File, error) {
		return excelize.OpenFile(path)
	}}
}

// NewXLSXSource reads the workbook from r. r is consumed on the first Read.
func NewXLSXSource(r io.Reader, sheet string) *XLSXSource {
	return &XLSXSource{sheet: sheet, open: func() (*excelize.File, error) {
		return excelize.OpenReader(r)
	}}
}

// Read loads every row of the sheet with typed cells.
func (s *XLSXSource) Read(ctx context.Context) (Table, error) {
	f, err := s.open()
	if err != nil {
		return Table{}, &SourceFormatError{Reason: "unreadable workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	idx, err := f.GetSheetIndex(s.sheet)
	if err != nil || idx < 0 || idx >= len(sheets) {
		return Table{}, &SourceFormatError{Reason: fmt.Sprintf("sheet %q not found (have %s)", s.sheet, strings.Join(sheets, ", "))}
	}
	sheet := sheets[idx]

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return Table{}, &SourceFormatError{Reason: "read rows", Err: err}
	}

	r := &sheetReader{f: f, sheet: sheet, dateStyles: make(map[int]bool)}
	table := Table{Sheet: sheet, Rows: make([]Row, 0, len(raw))}
	for i, values := range raw {
		if err := ctx.Err(); err != nil {
			return Table{}, err
		}
		row := Row{Number: i + 1, Cells: make([]Cell, len(values))}
		for col, value := range values {
			cell, err := r.cell(col, row.Number, value)
			if err != nil {
				return Table{}, &SourceFormatError{Reason: fmt.Sprintf("row %d column %d", row.Number, col), Err: err}
			}
			row.Cells[col] = cell
		}
		table.Width = max(table.Width, len(values))
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

type sheetReader struct {
	f          *excelize.File
	sheet      string
	dateStyles map[int]bool
}

func (r *sheetReader) cell(col, rowNum int, value string) (Cell, error) {
	if value == "" {
		return Cell{}, nil
	}
	name, err := excelize.CoordinatesToCellName(col+1, rowNum)
	if err != nil {
		return Cell{}, err
	}
	typ, err := r.f.GetCellType(r.sheet, name)
	if err != nil {
		return Cell{}, err
	}
	kind := cellKind(typ)
	if kind == CellNumber {
		// serial dates are stored as plain numbers with a date format
		isDate, err := r.dateFormatted(name)
		if err != nil {
			return Cell{}, err
		}
		if isDate {
			kind = CellOther
		}
	}
	return Cell{Value: value, Kind: kind}, nil
}

func (r *sheetReader) dateFormatted(name string) (bool, error) {
	id, err := r.f.GetCellStyle(r.sheet, name)
	if err != nil || id == 0 {
		return false, err
	}
	if isDate, ok := r.dateStyles[id]; ok {
		return isDate, nil
	}
	style, err := r.f.GetStyle(id)
	if err != nil {
		return false, err
	}
	isDate := isDateFormat(style)
	r.dateStyles[id] = isDate
	return isDate, nil
}

var formatLiterals = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]|\\.`)

func isDateFormat(style *excelize.Style) bool {
	if style == nil {
		return false
	}
	switch n := style.NumFmt; {
	case n >= 14 && n <= 22, n >= 27 && n <= 36, n >= 45 && n <= 47, n >= 50 && n <= 58:
		return true
	}
	if style.CustomNumFmt == nil {
		return false
	}
	code := strings.ToLower(formatLiterals.ReplaceAllString(*style.CustomNumFmt, ""))
	return strings.ContainsAny(code, "dmyhs")
}

func cellKind(typ excelize.CellType) CellKind {
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		// numbers are usually stored without an explicit type attribute
		return CellNumber
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return CellText
	case excelize.CellTypeBool:
		return CellBool
	default:
		return CellOther
	}
}
