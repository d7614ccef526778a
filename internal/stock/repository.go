package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists stock records.
type Repository interface {
	Upsert(ctx context.Context, record Record) (Record, bool, error)
	Get(ctx context.Context, key Key) (Record, error)
	ListByShop(ctx context.Context, shopID *uuid.UUID) ([]Record, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// Upsert writes the record keyed by (shop_id, product_id) in a single statement.
// updated_at never moves backwards. The boolean reports whether the row was inserted.
func (r *repository) Upsert(ctx context.Context, record Record) (Record, bool, error) {
	var (
		out      Record
		inserted bool
	)
	err := r.pool.QueryRow(ctx, `INSERT INTO stock_records (shop_id, product_id, price, quantity, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (shop_id, product_id) DO UPDATE
SET price = EXCLUDED.price, quantity = EXCLUDED.quantity, updated_at = GREATEST(stock_records.updated_at, EXCLUDED.updated_at)
RETURNING id, shop_id, product_id, price, quantity, updated_at, (xmax = 0) AS inserted`,
		record.ShopID, record.ProductID, record.Price, record.Quantity, record.UpdatedAt).
		Scan(&out.ID, &out.ShopID, &out.ProductID, &out.Price, &out.Quantity, &out.UpdatedAt, &inserted)
	if err != nil {
		return Record{}, false, fmt.Errorf("stock: upsert %s: %w", record.Key(), err)
	}
	return out, inserted, nil
}

func (r *repository) Get(ctx context.Context, key Key) (Record, error) {
	var out Record
	err := r.pool.QueryRow(ctx, `SELECT id, shop_id, product_id, price, quantity, updated_at FROM stock_records
WHERE shop_id IS NOT DISTINCT FROM $1 AND product_id = $2`, shopArg(key.ShopID), key.ProductID).
		Scan(&out.ID, &out.ShopID, &out.ProductID, &out.Price, &out.Quantity, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, fmt.Errorf("stock: get %s: %w", key, err)
	}
	return out, nil
}

func (r *repository) ListByShop(ctx context.Context, shopID *uuid.UUID) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.id, s.shop_id, s.product_id, s.price, s.quantity, s.updated_at
FROM stock_records s JOIN products p ON p.id = s.product_id
WHERE s.shop_id IS NOT DISTINCT FROM $1
ORDER BY p.name`, shopID)
	if err != nil {
		return nil, fmt.Errorf("stock: list: %w", err)
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.ShopID, &rec.ProductID, &rec.Price, &rec.Quantity, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func shopArg(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
