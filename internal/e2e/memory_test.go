package e2e

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stockline/backoffice/internal/catalog"
	"github.com/stockline/backoffice/internal/reconcile"
	"github.com/stockline/backoffice/internal/shared"
	"github.com/stockline/backoffice/internal/stock"
	"github.com/stockline/backoffice/internal/uploads"
)

// memCatalog mirrors the Postgres repository: the substring prefilter returns a
// superset and the service applies Unicode folding on top.
type memCatalog struct {
	mu       sync.Mutex
	products []catalog.Product
	shops    map[uuid.UUID]catalog.Shop
}

func newMemCatalog(names ...string) *memCatalog {
	c := &memCatalog{shops: make(map[uuid.UUID]catalog.Shop)}
	for _, name := range names {
		c.products = append(c.products, catalog.Product{ID: uuid.New(), Name: name, CreatedAt: time.Now()})
	}
	return c
}

func (c *memCatalog) ListProductsContaining(_ context.Context, tokens []string) ([]catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []catalog.Product
	for _, p := range c.products {
		if catalog.ContainsAllTokens(p.Name, tokens) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *memCatalog) ListProductsByName(_ context.Context, name string) ([]catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []catalog.Product
	for _, p := range c.products {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *memCatalog) CreateProductIfAbsent(_ context.Context, product catalog.Product) (catalog.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.products {
		if p.Name == product.Name {
			return p, false, nil
		}
	}
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	product.CreatedAt = time.Now()
	c.products = append(c.products, product)
	return product, true, nil
}

func (c *memCatalog) GetShop(_ context.Context, id uuid.UUID) (catalog.Shop, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	shop, ok := c.shops[id]
	if !ok {
		return catalog.Shop{}, catalog.ErrShopNotFound
	}
	return shop, nil
}

func (c *memCatalog) CreateShop(_ context.Context, shop catalog.Shop) (catalog.Shop, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if shop.ID == uuid.Nil {
		shop.ID = uuid.New()
	}
	shop.CreatedAt = time.Now()
	c.shops[shop.ID] = shop
	return shop, nil
}

func (c *memCatalog) ListShops(_ context.Context) ([]catalog.Shop, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]catalog.Shop, 0, len(c.shops))
	for _, s := range c.shops {
		out = append(out, s)
	}
	return out, nil
}

func (c *memCatalog) byName(name string) (catalog.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.products {
		if p.Name == name {
			return p, true
		}
	}
	return catalog.Product{}, false
}

type memStock struct {
	mu      sync.Mutex
	nextID  int64
	records map[stock.Key]stock.Record
}

func newMemStock() *memStock {
	return &memStock{records: make(map[stock.Key]stock.Record)}
}

func (s *memStock) Upsert(_ context.Context, record stock.Record) (stock.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := record.Key()
	existing, ok := s.records[key]
	if !ok {
		s.nextID++
		record.ID = s.nextID
		s.records[key] = record
		return record, true, nil
	}
	existing.Price, existing.Quantity = record.Price, record.Quantity
	if record.UpdatedAt.After(existing.UpdatedAt) {
		existing.UpdatedAt = record.UpdatedAt
	}
	s.records[key] = existing
	return existing, false, nil
}

func (s *memStock) Get(_ context.Context, key stock.Key) (stock.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	if !ok {
		return stock.Record{}, stock.ErrRecordNotFound
	}
	return r, nil
}

func (s *memStock) ListByShop(_ context.Context, shopID *uuid.UUID) ([]stock.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := stock.KeyOf(shopID, uuid.Nil).ShopID
	var out []stock.Record
	for key, r := range s.records {
		if key.ShopID == want {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memUploads struct {
	mu      sync.Mutex
	uploads map[uuid.UUID]uploads.Upload
}

func newMemUploads() *memUploads {
	return &memUploads{uploads: make(map[uuid.UUID]uploads.Upload)}
}

func (r *memUploads) Insert(_ context.Context, upload uploads.Upload) (uploads.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	upload.Status = uploads.StatusPending
	upload.UpdatedAt = upload.CreatedAt
	r.uploads[upload.ID] = upload
	return upload, nil
}

func (r *memUploads) Get(_ context.Context, id uuid.UUID) (uploads.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	upload, ok := r.uploads[id]
	if !ok {
		return uploads.Upload{}, uploads.ErrUploadNotFound
	}
	return upload, nil
}

func (r *memUploads) update(id uuid.UUID, fn func(*uploads.Upload) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	upload, ok := r.uploads[id]
	if !ok {
		return uploads.ErrUploadNotFound
	}
	if err := fn(&upload); err != nil {
		return err
	}
	r.uploads[id] = upload
	return nil
}

func (r *memUploads) MarkProcessing(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.update(id, func(u *uploads.Upload) error {
		if u.Status == uploads.StatusCompleted {
			return uploads.ErrInvalidStatus
		}
		u.Status, u.ErrorMessage, u.UpdatedAt = uploads.StatusProcessing, "", at
		return nil
	})
}

func (r *memUploads) MarkCompleted(_ context.Context, id uuid.UUID, summary reconcile.Result, at time.Time) error {
	return r.update(id, func(u *uploads.Upload) error {
		u.Status, u.Summary, u.ProcessedAt, u.UpdatedAt = uploads.StatusCompleted, &summary, &at, at
		return nil
	})
}

func (r *memUploads) MarkFailed(_ context.Context, id uuid.UUID, msg string, summary *reconcile.Result, at time.Time) error {
	return r.update(id, func(u *uploads.Upload) error {
		if u.Status == uploads.StatusCompleted {
			return uploads.ErrInvalidStatus
		}
		u.Status, u.ErrorMessage, u.Summary, u.ProcessedAt, u.UpdatedAt = uploads.StatusFailed, msg, summary, &at, at
		return nil
	})
}

func (r *memUploads) ListPending(_ context.Context, before time.Time, limit int) ([]uploads.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uploads.Upload
	for _, u := range r.uploads {
		if u.Status == uploads.StatusPending && u.CreatedAt.Before(before) && len(out) < limit {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memUploads) ListRecent(_ context.Context, shopID *uuid.UUID, limit int) ([]uploads.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uploads.Upload
	for _, u := range r.uploads {
		if shopID == nil || (u.ShopID != nil && *u.ShopID == *shopID) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []shared.AuditLog
}

func (a *memAudit) Record(_ context.Context, log shared.AuditLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, log)
	return nil
}

func (a *memAudit) count(action string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}
