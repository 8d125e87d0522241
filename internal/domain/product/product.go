package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for sale.
type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int
}

// Repository defines the product operations the order engine depends on.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetForUpdate loads a product and holds a write lock on its row until
	// the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Product, error)
	// AdjustStock applies a signed delta to the available stock. It must
	// never drive stock negative; an attempt to do so is reported as an
	// error, not clamped.
	AdjustStock(ctx context.Context, id string, delta int) error
}
