package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockline/backoffice/internal/platform/db"
)

// Repository abstracts catalog persistence.
type Repository interface {
	ListProductsContaining(ctx context.Context, tokens []string) ([]Product, error)
	ListProductsByName(ctx context.Context, name string) ([]Product, error)
	CreateProductIfAbsent(ctx context.Context, product Product) (Product, bool, error)
	GetShop(ctx context.Context, id uuid.UUID) (Shop, error)
	CreateShop(ctx context.Context, shop Shop) (Shop, error)
	ListShops(ctx context.Context) ([]Shop, error)
}

// querier is the part of *pgxpool.Pool the repository uses.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	pool querier
}

// NewRepository returns a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ListProductsContaining(ctx context.Context, tokens []string) ([]Product, error) {
	if len(tokens) == 0 {
		return nil, ErrEmptyQuery
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM products WHERE name ILIKE ALL ($1::text[]) ORDER BY name`, likePatterns(tokens))
	if err != nil {
		return nil, fmt.Errorf("catalog: query products by tokens: %w", err)
	}
	return collectProducts(rows)
}

func (r *repository) ListProductsByName(ctx context.Context, name string) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM products WHERE name = $1 ORDER BY name`, name)
	if err != nil {
		return nil, fmt.Errorf("catalog: query products by name: %w", err)
	}
	return collectProducts(rows)
}

// CreateProductIfAbsent inserts the product unless the name is taken, in which case the
// existing row is returned with created=false. Both statements run outside a
// transaction so the lookup sees a product committed by a concurrent creator.
func (r *repository) CreateProductIfAbsent(ctx context.Context, product Product) (Product, bool, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	for attempt := 0; attempt < 3; attempt++ {
		var out Product
		err := r.pool.QueryRow(ctx, `INSERT INTO products (id, name, created_at) VALUES ($1, $2, NOW())
ON CONFLICT (name) DO NOTHING
RETURNING id, name, created_at`, product.ID, product.Name).Scan(&out.ID, &out.Name, &out.CreatedAt)
		if err == nil {
			return out, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return Product{}, false, fmt.Errorf("catalog: create product %q: %w", product.Name, err)
		}
		err = r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM products WHERE name = $1`, product.Name).
			Scan(&out.ID, &out.Name, &out.CreatedAt)
		if err == nil {
			return out, false, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return Product{}, false, fmt.Errorf("catalog: create product %q: %w", product.Name, err)
		}
		// the conflicting row was deleted before we could read it
	}
	return Product{}, false, fmt.Errorf("catalog: create product %q: name keeps conflicting", product.Name)
}

func (r *repository) GetShop(ctx context.Context, id uuid.UUID) (Shop, error) {
	var s Shop
	err := r.pool.QueryRow(ctx, `SELECT id, COALESCE(city, ''), COALESCE(address, ''), COALESCE(geo, ''), created_at FROM shops WHERE id = $1`, id).
		Scan(&s.ID, &s.City, &s.Address, &s.Geo, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shop{}, ErrShopNotFound
		}
		return Shop{}, fmt.Errorf("catalog: get shop: %w", err)
	}
	return s, nil
}

func (r *repository) CreateShop(ctx context.Context, shop Shop) (Shop, error) {
	if shop.ID == uuid.Nil {
		shop.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO shops (id, city, address, geo, created_at) VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NOW()) RETURNING created_at`,
		shop.ID, shop.City, shop.Address, shop.Geo).Scan(&shop.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Shop{}, fmt.Errorf("catalog: create shop %s: %w", shop.ID, ErrShopExists)
		}
		return Shop{}, fmt.Errorf("catalog: create shop: %w", err)
	}
	return shop, nil
}

func (r *repository) ListShops(ctx context.Context) ([]Shop, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, COALESCE(city, ''), COALESCE(address, ''), COALESCE(geo, ''), created_at FROM shops ORDER BY city DESC NULLS LAST, address`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list shops: %w", err)
	}
	defer rows.Close()
	var shops []Shop
	for rows.Next() {
		var s Shop
		if err := rows.Scan(&s.ID, &s.City, &s.Address, &s.Geo, &s.CreatedAt); err != nil {
			return nil, err
		}
		shops = append(shops, s)
	}
	return shops, rows.Err()
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
