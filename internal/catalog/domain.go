package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ProductNameMaxLength bounds product names, counted in characters.
const ProductNameMaxLength = 100

// Product is a catalog item; Name is unique and doubles as the matching key for imports.
type Product struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name" validate:"required,max=100"`
	CreatedAt time.Time `json:"created_at"`
}

// Shop is a physical store that holds stock. Shops are managed outside the import flow.
type Shop struct {
	ID        uuid.UUID `json:"id"`
	City      string    `json:"city" validate:"max=100"`
	Address   string    `json:"address" validate:"max=100"`
	Geo       string    `json:"geo" validate:"max=20"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName renders the shop the way operators refer to it.
func (s Shop) DisplayName() string {
	switch {
	case s.City != "" && s.Address != "":
		return s.City + ", " + s.Address
	case s.City != "":
		return s.City
	case s.Address != "":
		return s.Address
	default:
		return s.ID.String()
	}
}

var (
	// ErrShopNotFound indicates a missing shop.
	ErrShopNotFound = errors.New("catalog: shop not found")
	// ErrShopExists indicates a shop id that is already registered.
	ErrShopExists = errors.New("catalog: shop already exists")
	// ErrInvalidProduct wraps product validation failures.
	ErrInvalidProduct = errors.New("catalog: invalid product")
	// ErrInvalidShop wraps shop validation failures.
	ErrInvalidShop = errors.New("catalog: invalid shop")
	// ErrEmptyQuery is returned when a token search has nothing to match on.
	ErrEmptyQuery = errors.New("catalog: at least one token required")
)
