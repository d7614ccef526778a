package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service validates and timestamps stock writes.
type Service struct {
	repo  Repository
	clock func() time.Time
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: func() time.Time { return time.Now().UTC() }}
}

// Upsert creates or updates the record for (shop, product), refreshing its update
// time. The boolean reports whether a new record was created.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (Record, bool, error) {
	if in.ProductID == uuid.Nil {
		return Record{}, false, ErrProductRequired
	}
	if in.Price < 0 {
		return Record{}, false, ErrInvalidPrice
	}
	if in.Quantity < 0 {
		return Record{}, false, ErrInvalidQuantity
	}
	return s.repo.Upsert(ctx, Record{
		ShopID:    in.ShopID,
		ProductID: in.ProductID,
		Price:     in.Price,
		Quantity:  in.Quantity,
		UpdatedAt: s.clock(),
	})
}

// Get returns the record for key.
func (s *Service) Get(ctx context.Context, key Key) (Record, error) {
	return s.repo.Get(ctx, key)
}

// ListByShop lists records for a shop, or unassigned records when shopID is nil.
func (s *Service) ListByShop(ctx context.Context, shopID *uuid.UUID) ([]Record, error) {
	return s.repo.ListByShop(ctx, shopID)
}
