package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status describes the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusServed     Status = "served"
	StatusPaid       Status = "paid"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the known order statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusServed, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// Line is a single product entry within an order. Price is a snapshot of the
// product price at the time of sale and never changes afterwards.
type Line struct {
	ID        string
	ProductID string
	Quantity  int
	Price     decimal.Decimal
	Subtotal  decimal.Decimal
}

// Order is an order header together with its lines, treated as one
// consistency unit. Total is the pre-discount sum of line subtotals;
// GrandTotal is the post-discount, post-tax payable amount.
// An empty CustomerID means a guest sale.
type Order struct {
	ID            string
	CustomerID    string
	CashierID     string
	OrderDate     time.Time
	Status        Status
	PaymentMethod string
	Total         decimal.Decimal
	Discount      decimal.Decimal
	TaxAmount     decimal.Decimal
	GrandTotal    decimal.Decimal
	ReceiptNumber string
	Lines         []Line
}

// Repository defines persistence operations for orders and their lines.
// Mutating methods participate in the transaction carried by the context.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// GetForUpdate loads the order under a row lock held for the rest of
	// the transaction, so concurrent mutations of the same order serialize
	// instead of acting on stale aggregates.
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	SearchByCustomerName(ctx context.Context, name string) ([]Order, error)
	UpdateHeader(ctx context.Context, o *Order) error
	ReplaceLines(ctx context.Context, orderID string, lines []Line) error
	InsertLine(ctx context.Context, orderID string, line Line) error
	DeleteLine(ctx context.Context, orderID, lineID string) error
	Delete(ctx context.Context, id string) error
	// CountByDate returns the number of orders dated on the same calendar
	// day as t, used for receipt number sequencing.
	CountByDate(ctx context.Context, t time.Time) (int, error)
}

// Tx runs fn within a single atomic storage transaction. Every mutation made
// through the repositories inside fn is committed together or not at all.
type Tx interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
