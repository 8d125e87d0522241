package customer

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Customer represents a registered customer with a store-credit wallet.
type Customer struct {
	ID      string
	Name    string
	Phone   string
	Balance decimal.Decimal
}

// Repository defines the customer operations the order engine depends on.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
	// GetForUpdate loads a customer and holds a write lock on its row until
	// the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Customer, error)
	// AdjustBalance applies a signed delta to the wallet balance. It must
	// never drive the balance negative; an attempt to do so is reported as
	// an error, not clamped.
	AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) error
}
