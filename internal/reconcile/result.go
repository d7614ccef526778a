package reconcile

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stockline/backoffice/internal/catalog"
)

// IssueKind classifies a row that was not applied.
type IssueKind string

const (
	IssueAmbiguousMatch IssueKind = "ambiguous_match"
	IssueUnmatched      IssueKind = "unmatched"
	IssueCatalogRead    IssueKind = "catalog_read"
	IssueCatalogWrite   IssueKind = "catalog_write"
	IssueStockWrite     IssueKind = "stock_write"
)

// RowIssue describes one skipped or failed row.
type RowIssue struct {
	Row     int       `json:"row"`
	Label   string    `json:"label"`
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// CreatedProduct records a product created from a row label.
type CreatedProduct struct {
	Row       int       `json:"row"`
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
}

// Result summarises one run. Processed always equals Upserted + SkippedInapplicable +
// SkippedAmbiguous + SkippedUnmatched + Failed.
type Result struct {
	ShopID              *uuid.UUID       `json:"shop_id,omitempty"`
	Sheet               string           `json:"sheet"`
	Processed           int              `json:"processed"`
	Upserted            int              `json:"upserted"`
	StockCreated        int              `json:"stock_created"`
	StockUpdated        int              `json:"stock_updated"`
	SkippedInapplicable int              `json:"skipped_inapplicable"`
	SkippedAmbiguous    int              `json:"skipped_ambiguous"`
	SkippedUnmatched    int              `json:"skipped_unmatched"`
	Failed              int              `json:"failed"`
	CreatedProducts     []CreatedProduct `json:"created_products,omitempty"`
	Issues              []RowIssue       `json:"issues,omitempty"`
	StartedAt           time.Time        `json:"started_at"`
	FinishedAt          time.Time        `json:"finished_at"`
}

// Skipped is the number of rows that were not applied without being failures.
func (r Result) Skipped() int {
	return r.SkippedInapplicable + r.SkippedAmbiguous + r.SkippedUnmatched
}

type outcomeKind int

const (
	outcomeNotRun outcomeKind = iota
	outcomeUpserted
	outcomeInapplicable
	outcomeAmbiguous
	outcomeUnmatched
	outcomeFailed
)

type rowOutcome struct {
	kind         outcomeKind
	label        string
	stockCreated bool
	created      *catalog.Product
	issueKind    IssueKind
	err          error
}

func (r *Result) add(row Row, o rowOutcome) {
	if o.kind == outcomeNotRun {
		return
	}
	r.Processed++
	switch o.kind {
	case outcomeUpserted:
		r.Upserted++
		if o.stockCreated {
			r.StockCreated++
		} else {
			r.StockUpdated++
		}
		if o.created != nil {
			r.CreatedProducts = append(r.CreatedProducts, CreatedProduct{Row: row.Number, ProductID: o.created.ID, Name: o.created.Name})
		}
		return
	case outcomeInapplicable:
		r.SkippedInapplicable++
		return
	case outcomeAmbiguous:
		r.SkippedAmbiguous++
	case outcomeUnmatched:
		r.SkippedUnmatched++
	case outcomeFailed:
		r.Failed++
	}
	r.Issues = append(r.Issues, RowIssue{Row: row.Number, Label: o.label, Kind: o.issueKind, Message: o.err.Error(), Err: o.err})
}

// classify maps a row error onto its outcome and issue kind.
func classify(label string, err error) rowOutcome {
	out := rowOutcome{label: label, err: err, kind: outcomeFailed}
	var (
		readErr  *CatalogReadError
		writeErr *CatalogWriteError
		stockErr *StockWriteError
	)
	switch {
	case errors.Is(err, ErrAmbiguousMatch):
		out.kind, out.issueKind = outcomeAmbiguous, IssueAmbiguousMatch
	case errors.Is(err, ErrUnmatched):
		out.kind, out.issueKind = outcomeUnmatched, IssueUnmatched
	case errors.As(err, &readErr):
		out.issueKind = IssueCatalogRead
	case errors.As(err, &writeErr):
		out.issueKind = IssueCatalogWrite
	case errors.As(err, &stockErr):
		out.issueKind = IssueStockWrite
	default:
		out.issueKind = IssueStockWrite
	}
	return out
}
