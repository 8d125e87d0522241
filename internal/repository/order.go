package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/pos-backoffice/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, customer_id, user_id, order_date, total,
			discount, tax_amount, grand_total, status, payment_method, receipt_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	insertLineSQL = `INSERT INTO order_details (id, order_id, product_id, quantity, price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)`

	getOrderSQL = `SELECT id, customer_id, user_id, order_date, total,
			discount, tax_amount, grand_total, status, payment_method, receipt_number
		FROM orders WHERE id = $1`

	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`

	listOrdersSQL = `SELECT id, customer_id, user_id, order_date, total,
			discount, tax_amount, grand_total, status, payment_method, receipt_number
		FROM orders ORDER BY order_date DESC, id DESC`

	searchOrdersSQL = `SELECT o.id, o.customer_id, o.user_id, o.order_date, o.total,
			o.discount, o.tax_amount, o.grand_total, o.status, o.payment_method, o.receipt_number
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE c.name ILIKE '%' || $1 || '%'
		ORDER BY o.order_date DESC, o.id DESC`

	getLinesSQL = `SELECT id, product_id, quantity, price, subtotal
		FROM order_details WHERE order_id = $1 ORDER BY id`

	updateOrderSQL = `UPDATE orders SET customer_id = $2, total = $3, discount = $4,
			tax_amount = $5, grand_total = $6, status = $7, payment_method = $8
		WHERE id = $1`

	deleteLinesSQL    = `DELETE FROM order_details WHERE order_id = $1`
	deleteLineSQL     = `DELETE FROM order_details WHERE order_id = $1 AND id = $2`
	deleteOrderSQL    = `DELETE FROM orders WHERE id = $1`
	countOrdersDaySQL = `SELECT count(*) FROM orders WHERE order_date >= $1 AND order_date < $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Mutating
// methods join the transaction carried by the context.
type OrderRepository struct {
	store *Store
}

// NewOrderRepository returns an OrderRepository that uses the given store.
func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{store: store}
}

// Create persists the order header and all of its lines.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	q := r.store.q(ctx)
	_, err := q.Exec(ctx, insertOrderSQL,
		o.ID, nullable(o.CustomerID), o.CashierID, o.OrderDate, o.Total,
		o.Discount, o.TaxAmount, o.GrandTotal, string(o.Status), o.PaymentMethod, o.ReceiptNumber,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, translateError(err))
	}
	for _, line := range o.Lines {
		if _, err := q.Exec(ctx, insertLineSQL,
			line.ID, o.ID, line.ProductID, line.Quantity, line.Price, line.Subtotal,
		); err != nil {
			return fmt.Errorf("creating order line %q: %w", line.ID, translateError(err))
		}
	}
	return nil
}

// Get returns one order with its lines.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, getOrderSQL, id)
}

// GetForUpdate locks the orders row for the rest of the transaction before
// returning the aggregate.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, getOrderForUpdateSQL, id)
}

func (r *OrderRepository) get(ctx context.Context, sql, id string) (*order.Order, error) {
	rows, err := r.store.q(ctx).Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	if o.Lines, err = r.lines(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns all orders with their lines, most recent first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	return r.listWith(ctx, listOrdersSQL)
}

// SearchByCustomerName returns orders whose customer name contains the given
// substring, case-insensitively, most recent first.
func (r *OrderRepository) SearchByCustomerName(ctx context.Context, name string) ([]order.Order, error) {
	return r.listWith(ctx, searchOrdersSQL, name)
}

func (r *OrderRepository) listWith(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.store.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	for i := range orders {
		if orders[i].Lines, err = r.lines(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// UpdateHeader persists the order header fields. Lines are managed through
// ReplaceLines, InsertLine, and DeleteLine.
func (r *OrderRepository) UpdateHeader(ctx context.Context, o *order.Order) error {
	tag, err := r.store.q(ctx).Exec(ctx, updateOrderSQL,
		o.ID, nullable(o.CustomerID), o.Total, o.Discount,
		o.TaxAmount, o.GrandTotal, string(o.Status), o.PaymentMethod,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ReplaceLines swaps the whole line set of an order.
func (r *OrderRepository) ReplaceLines(ctx context.Context, orderID string, lines []order.Line) error {
	q := r.store.q(ctx)
	if _, err := q.Exec(ctx, deleteLinesSQL, orderID); err != nil {
		return fmt.Errorf("clearing lines of %q: %w", orderID, err)
	}
	for _, line := range lines {
		if _, err := q.Exec(ctx, insertLineSQL,
			line.ID, orderID, line.ProductID, line.Quantity, line.Price, line.Subtotal,
		); err != nil {
			return fmt.Errorf("inserting line %q: %w", line.ID, translateError(err))
		}
	}
	return nil
}

// InsertLine appends one line to an order.
func (r *OrderRepository) InsertLine(ctx context.Context, orderID string, line order.Line) error {
	_, err := r.store.q(ctx).Exec(ctx, insertLineSQL,
		line.ID, orderID, line.ProductID, line.Quantity, line.Price, line.Subtotal,
	)
	if err != nil {
		return fmt.Errorf("inserting line %q: %w", line.ID, translateError(err))
	}
	return nil
}

// DeleteLine removes one line from an order.
func (r *OrderRepository) DeleteLine(ctx context.Context, orderID, lineID string) error {
	tag, err := r.store.q(ctx).Exec(ctx, deleteLineSQL, orderID, lineID)
	if err != nil {
		return fmt.Errorf("deleting line %q: %w", lineID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrLineNotFound
	}
	return nil
}

// Delete removes the order; its lines go with it via ON DELETE CASCADE.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.store.q(ctx).Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// CountByDate returns the number of orders dated on the same calendar day
// as t, in t's location.
func (r *OrderRepository) CountByDate(ctx context.Context, t time.Time) (int, error) {
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var n int
	err := r.store.q(ctx).QueryRow(ctx, countOrdersDaySQL, dayStart, dayEnd).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting orders: %w", err)
	}
	return n, nil
}

func (r *OrderRepository) lines(ctx context.Context, orderID string) ([]order.Line, error) {
	rows, err := r.store.q(ctx).Query(ctx, getLinesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting lines of %q: %w", orderID, err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Line, error) {
		var l order.Line
		err := row.Scan(&l.ID, &l.ProductID, &l.Quantity, &l.Price, &l.Subtotal)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting lines of %q: %w", orderID, err)
	}
	return lines, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o          order.Order
		customerID *string
		status     string
	)
	err := row.Scan(
		&o.ID, &customerID, &o.CashierID, &o.OrderDate, &o.Total,
		&o.Discount, &o.TaxAmount, &o.GrandTotal, &status, &o.PaymentMethod, &o.ReceiptNumber,
	)
	if customerID != nil {
		o.CustomerID = *customerID
	}
	o.Status = order.Status(status)
	return o, err
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
