package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stockline/backoffice/internal/catalog"
	"github.com/stockline/backoffice/internal/shared"
	"github.com/stockline/backoffice/internal/stock"
)

// Catalog abstracts the product lookups and the create-if-absent primitive.
type Catalog interface {
	FindByNameContainingAllTokens(ctx context.Context, tokens []string) ([]catalog.Product, error)
	FindByExactName(ctx context.Context, name string) ([]catalog.Product, error)
	Create(ctx context.Context, name string) (catalog.Product, bool, error)
}

// ShopDirectory resolves the target shop of a run.
type ShopDirectory interface {
	GetShop(ctx context.Context, id uuid.UUID) (catalog.Shop, error)
}

// StockStore writes stock records.
type StockStore interface {
	Upsert(ctx context.Context, in stock.UpsertInput) (stock.Record, bool, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Config groups engine settings.
type Config struct {
	Layout              Layout
	Workers             int
	AutoCreateProducts  bool
	AllowUnassignedShop bool
}

// DefaultConfig returns the sequential, auto-creating configuration.
func DefaultConfig() Config {
	return Config{Layout: DefaultLayout(), Workers: 1, AutoCreateProducts: true}
}

// Engine reconciles spreadsheet rows against the catalog and stock store.
type Engine struct {
	catalog Catalog
	shops   ShopDirectory
	stock   StockStore
	audit   AuditPort
	logger  *slog.Logger
	cfg     Config
	clock   func() time.Time

	createMu sync.Mutex
	keys     *keyLocks
}

// NewEngine builds Engine. audit may be nil.
func NewEngine(cat Catalog, shops ShopDirectory, store StockStore, audit AuditPort, logger *slog.Logger, cfg Config) (*Engine, error) {
	if cat == nil || shops == nil || store == nil {
		return nil, errors.New("reconcile: catalog, shops and stock store required")
	}
	if err := cfg.Layout.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		catalog: cat,
		shops:   shops,
		stock:   store,
		audit:   audit,
		logger:  logger,
		cfg:     cfg,
		clock:   time.Now,
		keys:    newKeyLocks(),
	}, nil
}

// Layout returns the layout the engine reads rows with.
func (e *Engine) Layout() Layout {
	return e.cfg.Layout
}

// AllowsUnassignedShop reports whether uploads without a target shop are accepted.
func (e *Engine) AllowsUnassignedShop() bool {
	return e.cfg.AllowUnassignedShop
}

// Reconcile applies every row of source to the stock of shopID. Source level
// failures and target shop lookups abort before any write. On cancellation the
// rows finished so far are returned together with the context error.
func (e *Engine) Reconcile(ctx context.Context, shopID *uuid.UUID, source Source) (Result, error) {
	result := Result{ShopID: shopID, Sheet: e.cfg.Layout.Sheet, StartedAt: e.clock()}
	if source == nil {
		return result, &SourceFormatError{Reason: "no source"}
	}
	if shopID == nil {
		if !e.cfg.AllowUnassignedShop {
			return result, ErrShopRequired
		}
	} else if _, err := e.shops.GetShop(ctx, *shopID); err != nil {
		return result, fmt.Errorf("reconcile: shop %s: %w", shopID, err)
	}

	table, err := source.Read(ctx)
	if err != nil {
		if IsSourceFormat(err) {
			return result, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return result, &SourceFormatError{Reason: "read source", Err: err}
	}
	if len(table.Rows) == 0 {
		return result, &SourceFormatError{Reason: fmt.Sprintf("sheet %q is empty", table.Sheet)}
	}
	if need := e.cfg.Layout.requiredWidth(); table.Width < need {
		return result, &SourceFormatError{Reason: fmt.Sprintf("sheet %q has %d columns, need %d", table.Sheet, table.Width, need)}
	}
	if table.Sheet != "" {
		result.Sheet = table.Sheet
	}

	outcomes := make([]rowOutcome, len(table.Rows))
	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i, row := range table.Rows {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes[i] = e.processRow(ctx, shopID, row)
			return nil
		})
	}
	_ = g.Wait()

	for i, row := range table.Rows {
		result.add(row, outcomes[i])
	}
	result.FinishedAt = e.clock()

	attrs := []any{
		slog.String("sheet", result.Sheet),
		slog.Int("processed", result.Processed),
		slog.Int("upserted", result.Upserted),
		slog.Int("skipped", result.Skipped()),
		slog.Int("failed", result.Failed),
		slog.Int("products_created", len(result.CreatedProducts)),
	}
	if shopID != nil {
		attrs = append(attrs, slog.String("shop_id", shopID.String()))
	}
	if err := ctx.Err(); err != nil {
		e.logger.Warn("reconcile interrupted", append(attrs, slog.Any("error", err))...)
		return result, err
	}
	e.logger.Info("reconcile completed", attrs...)
	return result, nil
}

func (e *Engine) processRow(ctx context.Context, shopID *uuid.UUID, row Row) rowOutcome {
	if ctx.Err() != nil {
		return rowOutcome{}
	}
	layout := e.cfg.Layout
	label := row.Cell(layout.LabelColumn).Value
	price, okPrice := row.Cell(layout.PriceColumn).WholeNumber()
	qty, okQty := row.Cell(layout.QuantityColumn).WholeNumber()
	if !okPrice || !okQty {
		return rowOutcome{kind: outcomeInapplicable, label: label}
	}
	tokens := catalog.Tokenize(label)
	if len(tokens) == 0 {
		return rowOutcome{kind: outcomeInapplicable, label: label}
	}

	product, created, err := e.resolve(ctx, row.Number, label, tokens)
	if err != nil {
		e.logger.Warn("reconcile row skipped", slog.Int("row", row.Number), slog.String("label", label), slog.Any("error", err))
		return classify(label, err)
	}

	key := stock.KeyOf(shopID, product.ID)
	unlock := e.keys.lock(key)
	_, stockCreated, err := e.stock.Upsert(ctx, stock.UpsertInput{
		ShopID:    shopID,
		ProductID: product.ID,
		Price:     price,
		Quantity:  qty,
	})
	unlock()
	if err != nil {
		err = &StockWriteError{Key: key.String(), Err: err}
		e.logger.Error("reconcile row failed", slog.Int("row", row.Number), slog.String("label", label), slog.Any("error", err))
		return classify(label, err)
	}

	out := rowOutcome{kind: outcomeUpserted, label: label, stockCreated: stockCreated}
	if created {
		out.created = &product
	}
	return out
}

// resolve maps a label onto exactly one product.
func (e *Engine) resolve(ctx context.Context, rowNum int, label string, tokens []string) (catalog.Product, bool, error) {
	matches, err := e.catalog.FindByNameContainingAllTokens(ctx, tokens)
	if err != nil {
		return catalog.Product{}, false, &CatalogReadError{Label: label, Err: err}
	}
	if len(matches) == 0 {
		return e.createProduct(ctx, rowNum, label, tokens)
	}
	product, err := e.pick(ctx, label, matches)
	return product, false, err
}

func (e *Engine) pick(ctx context.Context, label string, matches []catalog.Product) (catalog.Product, error) {
	if len(matches) == 1 {
		return matches[0], nil
	}
	exact, err := e.catalog.FindByExactName(ctx, label)
	if err != nil {
		return catalog.Product{}, &CatalogReadError{Label: label, Err: err}
	}
	if len(exact) == 0 {
		return catalog.Product{}, fmt.Errorf("%w: %d products contain all tokens of %q, none is named exactly so", ErrAmbiguousMatch, len(matches), label)
	}
	return exact[0], nil
}

// createProduct runs under createMu so that concurrent rows cannot create
// products whose names overlap; the token query is repeated inside the lock.
func (e *Engine) createProduct(ctx context.Context, rowNum int, label string, tokens []string) (catalog.Product, bool, error) {
	if !e.cfg.AutoCreateProducts {
		return catalog.Product{}, false, fmt.Errorf("%w: %q", ErrUnmatched, strings.TrimSpace(label))
	}
	e.createMu.Lock()
	defer e.createMu.Unlock()

	if e.cfg.Workers > 1 {
		matches, err := e.catalog.FindByNameContainingAllTokens(ctx, tokens)
		if err != nil {
			return catalog.Product{}, false, &CatalogReadError{Label: label, Err: err}
		}
		if len(matches) > 0 {
			product, err := e.pick(ctx, label, matches)
			return product, false, err
		}
	}

	product, created, err := e.catalog.Create(ctx, label)
	if err != nil {
		return catalog.Product{}, false, &CatalogWriteError{Label: label, Err: err}
	}
	if created {
		e.logger.Info("product created from import", slog.Int("row", rowNum), slog.String("product_id", product.ID.String()), slog.String("name", product.Name))
		e.recordCreation(ctx, rowNum, product)
	}
	return product, created, nil
}

func (e *Engine) recordCreation(ctx context.Context, rowNum int, product catalog.Product) {
	if e.audit == nil {
		return
	}
	entry := shared.AuditLog{
		Actor:    shared.ActorSystem,
		Action:   "catalog:product_created",
		Entity:   "product",
		EntityID: product.ID.String(),
		Meta:     map[string]any{"name": product.Name, "row": rowNum},
		At:       e.clock(),
	}
	if err := e.audit.Record(ctx, entry); err != nil {
		e.logger.Warn("audit product creation", slog.String("product_id", entry.EntityID), slog.Any("error", err))
	}
}
