package stock

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Record is the price and quantity of a product at a shop. At most one record exists
// per (shop, product); a nil ShopID is a record without shop association.
type Record struct {
	ID        int64      `json:"id"`
	ShopID    *uuid.UUID `json:"shop_id,omitempty"`
	ProductID uuid.UUID  `json:"product_id"`
	Price     int64      `json:"price"`
	Quantity  int64      `json:"quantity"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Key returns the identity of the record.
func (r Record) Key() Key {
	return KeyOf(r.ShopID, r.ProductID)
}

// UpsertInput carries the values written by an upsert.
type UpsertInput struct {
	ShopID    *uuid.UUID
	ProductID uuid.UUID
	Price     int64
	Quantity  int64
}

// Key identifies a stock record. Unassigned records use uuid.Nil as shop.
type Key struct {
	ShopID    uuid.UUID
	ProductID uuid.UUID
}

// KeyOf builds the key for a shop/product pair.
func KeyOf(shopID *uuid.UUID, productID uuid.UUID) Key {
	k := Key{ProductID: productID}
	if shopID != nil {
		k.ShopID = *shopID
	}
	return k
}

// String renders the key for logs and lock names.
func (k Key) String() string {
	shop := "unassigned"
	if k.ShopID != uuid.Nil {
		shop = k.ShopID.String()
	}
	return shop + "/" + k.ProductID.String()
}

var (
	// ErrRecordNotFound indicates no stock record for the key.
	ErrRecordNotFound = errors.New("stock: record not found")
	// ErrProductRequired indicates a missing product reference.
	ErrProductRequired = errors.New("stock: product required")
	// ErrInvalidPrice indicates a negative price.
	ErrInvalidPrice = errors.New("stock: price must be >= 0")
	// ErrInvalidQuantity indicates a negative quantity.
	ErrInvalidQuantity = errors.New("stock: quantity must be >= 0")
)
