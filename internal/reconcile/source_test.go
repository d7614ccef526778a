package reconcile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes rows into a single sheet and returns the encoded file.
// nil cells are left blank.
func buildWorkbook(t *testing.T, sheet string, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for r, row := range rows {
		for c, value := range row {
			if value == nil {
				continue
			}
			name, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, name, value))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

// exportRow places label, price and quantity at the export positions.
func exportRow(label, price, qty any) []any {
	row := make([]any, QuantityColumnIndex+1)
	row[LabelColumnIndex] = label
	row[PriceColumnIndex] = price
	row[QuantityColumnIndex] = qty
	return row
}

func TestWholeNumber(t *testing.T) {
	cases := []struct {
		name string
		cell Cell
		want int64
		ok   bool
	}{
		{"integer", Cell{Value: "1500", Kind: CellNumber}, 1500, true},
		{"zero", Cell{Value: "0", Kind: CellNumber}, 0, true},
		{"padded", Cell{Value: " 20 ", Kind: CellNumber}, 20, true},
		{"fraction", Cell{Value: "1500.5", Kind: CellNumber}, 0, false},
		{"exponent", Cell{Value: "1E3", Kind: CellNumber}, 0, false},
		{"negative", Cell{Value: "-4", Kind: CellNumber}, 0, false},
		{"signed", Cell{Value: "+4", Kind: CellNumber}, 0, false},
		{"overflow", Cell{Value: "99999999999999999999", Kind: CellNumber}, 0, false},
		{"numeric text", Cell{Value: "1500", Kind: CellText}, 0, false},
		{"bool", Cell{Value: "1", Kind: CellBool}, 0, false},
		{"other", Cell{Value: "45000", Kind: CellOther}, 0, false},
		{"empty", Cell{}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.cell.WholeNumber()
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestRowCellPastEndIsEmpty(t *testing.T) {
	row := Row{Number: 3, Cells: []Cell{{Value: "x", Kind: CellText}}}
	require.Equal(t, "x", row.Cell(0).Value)
	require.Equal(t, Cell{}, row.Cell(13))
	require.Equal(t, Cell{}, row.Cell(-1))
}

func TestXLSXSourceTypesCells(t *testing.T) {
	buf := buildWorkbook(t, DefaultSheet,
		exportRow("Номенклатура", "Цена", "Остаток"),
		nil,
		exportRow("Welding Mask Pro", 2500, 7),
		exportRow("Electrode 3mm", "1500", true),
		exportRow("Flux Core Wire 1.2mm", 1500.5, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
	)

	table, err := NewXLSXSource(buf, DefaultSheet).Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, DefaultSheet, table.Sheet)
	require.Equal(t, QuantityColumnIndex+1, table.Width)
	require.Len(t, table.Rows, 5)

	header := table.Rows[0]
	require.Equal(t, 1, header.Number)
	require.Equal(t, CellText, header.Cell(PriceColumnIndex).Kind)

	require.Equal(t, 2, table.Rows[1].Number)
	require.Empty(t, table.Rows[1].Cells)

	mask := table.Rows[2]
	require.Equal(t, 3, mask.Number)
	require.Equal(t, "Welding Mask Pro", mask.Cell(LabelColumnIndex).Value)
	price, ok := mask.Cell(PriceColumnIndex).WholeNumber()
	require.True(t, ok)
	require.EqualValues(t, 2500, price)
	qty, ok := mask.Cell(QuantityColumnIndex).WholeNumber()
	require.True(t, ok)
	require.EqualValues(t, 7, qty)

	electrode := table.Rows[3]
	require.Equal(t, CellText, electrode.Cell(PriceColumnIndex).Kind)
	require.Equal(t, CellBool, electrode.Cell(QuantityColumnIndex).Kind)

	wire := table.Rows[4]
	_, ok = wire.Cell(PriceColumnIndex).WholeNumber()
	require.False(t, ok)
	require.Equal(t, CellOther, wire.Cell(QuantityColumnIndex).Kind)
}

func TestXLSXSourceMatchesSheetNameCaseInsensitively(t *testing.T) {
	buf := buildWorkbook(t, DefaultSheet, exportRow("Mask A", 10, 1))
	table, err := NewXLSXSource(buf, strings.ToLower(DefaultSheet)).Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, DefaultSheet, table.Sheet)
	require.Len(t, table.Rows, 1)
}

func TestXLSXSourceMissingSheet(t *testing.T) {
	buf := buildWorkbook(t, "Sheet1", exportRow("Mask A", 10, 1))
	_, err := NewXLSXSource(buf, DefaultSheet).Read(context.Background())
	require.Error(t, err)
	require.True(t, IsSourceFormat(err))
	require.Contains(t, err.Error(), "TDSheet")
}

func TestXLSXSourceUnreadableWorkbook(t *testing.T) {
	_, err := NewXLSXSource(strings.NewReader("not a workbook"), DefaultSheet).Read(context.Background())
	var sfe *SourceFormatError
	require.ErrorAs(t, err, &sfe)
	require.Equal(t, "unreadable workbook", sfe.Reason)
	require.Error(t, sfe.Unwrap())
}

func TestXLSXFileSource(t *testing.T) {
	buf := buildWorkbook(t, DefaultSheet, exportRow("Mask A", 10, 1))
	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	table, err := NewXLSXFileSource(path, DefaultSheet).Read(context.Background())
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)

	_, err = NewXLSXFileSource(path+".missing", DefaultSheet).Read(context.Background())
	require.True(t, IsSourceFormat(err))
}

func TestIsDateFormat(t *testing.T) {
	custom := func(code string) *excelize.Style { return &excelize.Style{CustomNumFmt: &code} }
	require.True(t, isDateFormat(&excelize.Style{NumFmt: 14}))
	require.True(t, isDateFormat(&excelize.Style{NumFmt: 22}))
	require.False(t, isDateFormat(&excelize.Style{NumFmt: 1}))
	require.True(t, isDateFormat(custom("yyyy-mm-dd")))
	require.False(t, isDateFormat(custom(`#,##0 "шт"`)))
	require.False(t, isDateFormat(custom("[Red]0")))
	require.False(t, isDateFormat(nil))
}

func TestLayoutValidate(t *testing.T) {
	require.NoError(t, DefaultLayout().Validate())
	require.Equal(t, 14, DefaultLayout().requiredWidth())

	l := DefaultLayout()
	l.PriceColumn = l.QuantityColumn
	require.Error(t, l.Validate())

	l = DefaultLayout()
	l.Sheet = " "
	require.Error(t, l.Validate())

	l = DefaultLayout()
	l.LabelColumn = -1
	require.Error(t, l.Validate())
}
