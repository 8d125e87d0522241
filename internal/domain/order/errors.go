package order

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for order validation and business rules.
var (
	ErrNotFound                 = errors.New("order not found")
	ErrLineNotFound             = errors.New("order detail not found")
	ErrEmptyItems               = errors.New("items required")
	ErrCashierRequired          = errors.New("cashier is required")
	ErrNegativeDiscount         = errors.New("discount must not be negative")
	ErrDiscountRequiresCustomer = errors.New("cannot apply a discount without a customer")
	ErrLastLine                 = errors.New("order must keep at least one detail; delete the order instead")
	ErrInvalidStatus            = errors.New("invalid order status")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InsufficientStockError indicates a product does not have enough stock to
// cover the requested quantity.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock for product %s is not enough: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

// InsufficientBalanceError indicates a customer's wallet cannot fund the
// requested discount.
type InsufficientBalanceError struct {
	CustomerID string
	Balance    decimal.Decimal
	Required   decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("customer %s balance %s is insufficient for discount %s",
		e.CustomerID, e.Balance, e.Required)
}
