package catalog

import (
	"context"
	"errors"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Service exposes catalog lookups and the create-if-absent primitive used by imports.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// FindByNameContainingAllTokens returns products whose name contains every token,
// case-insensitively and in any order, sorted by name.
func (s *Service) FindByNameContainingAllTokens(ctx context.Context, tokens []string) ([]Product, error) {
	tokens = compact(tokens)
	if len(tokens) == 0 {
		return nil, ErrEmptyQuery
	}
	candidates, err := s.repo.ListProductsContaining(ctx, tokens)
	if err != nil {
		return nil, err
	}
	// ILIKE folding depends on the database collation; keep only Unicode-folded matches.
	matches := candidates[:0]
	for _, p := range candidates {
		if ContainsAllTokens(p.Name, tokens) {
			matches = append(matches, p)
		}
	}
	sortByName(matches)
	return matches, nil
}

// FindByExactName returns products whose name equals name byte for byte.
func (s *Service) FindByExactName(ctx context.Context, name string) ([]Product, error) {
	if name == "" {
		return nil, nil
	}
	products, err := s.repo.ListProductsByName(ctx, name)
	if err != nil {
		return nil, err
	}
	sortByName(products)
	return products, nil
}

// Create inserts a product named name unless one already exists. The boolean reports
// whether a new row was written.
func (s *Service) Create(ctx context.Context, name string) (Product, bool, error) {
	product := Product{Name: name}
	if err := s.validateProduct(product); err != nil {
		return Product{}, false, err
	}
	return s.repo.CreateProductIfAbsent(ctx, product)
}

// GetShop looks a shop up by id.
func (s *Service) GetShop(ctx context.Context, id uuid.UUID) (Shop, error) {
	if id == uuid.Nil {
		return Shop{}, ErrShopNotFound
	}
	shop, err := s.repo.GetShop(ctx, id)
	if err != nil {
		if errors.Is(err, ErrShopNotFound) {
			return Shop{}, ErrShopNotFound
		}
		return Shop{}, err
	}
	return shop, nil
}

// CreateShop registers a shop. Used by seeding and the embedding application.
func (s *Service) CreateShop(ctx context.Context, shop Shop) (Shop, error) {
	if err := s.validateShop(shop); err != nil {
		return Shop{}, err
	}
	return s.repo.CreateShop(ctx, shop)
}

// ListShops returns every shop.
func (s *Service) ListShops(ctx context.Context) ([]Shop, error) {
	return s.repo.ListShops(ctx)
}

func compact(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func sortByName(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].Name < products[j].Name
	})
}
