// Package reconcile applies point-of-sale spreadsheet exports to the catalog.
//
// A run reads one sheet, takes the label of every row as a candidate product
// name and the cells at fixed positions as price and quantity, resolves the
// label to a catalog product by token containment, and upserts the stock record
// for (shop, product).
//
// Column positions are a contract of the export format. They are never inferred
// from headers: header, subtotal and blank rows simply fail the whole-number
// check and are counted as inapplicable.
//
// Source level problems (unreadable workbook, missing sheet, table too narrow)
// fail the run before anything is written. Row level problems are recorded in
// the Result and the run continues.
package reconcile
