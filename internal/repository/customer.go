package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/pos-backoffice/internal/domain/customer"
)

const (
	getCustomerByIDSQL = `SELECT id, name, phone, balance
		FROM customers WHERE id = $1`

	getCustomerForUpdateSQL = `SELECT id, name, phone, balance
		FROM customers WHERE id = $1 FOR UPDATE`

	adjustBalanceSQL = `UPDATE customers SET balance = balance + $2
		WHERE id = $1 AND balance + $2 >= 0`

	customerExistsSQL = `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	store *Store
}

// NewCustomerRepository returns a CustomerRepository that uses the given store.
func NewCustomerRepository(store *Store) *CustomerRepository {
	return &CustomerRepository{store: store}
}

// GetByID returns a single customer by its identifier.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	return r.get(ctx, getCustomerByIDSQL, id)
}

// GetForUpdate returns a customer while holding a write lock on its row for
// the remainder of the ambient transaction.
func (r *CustomerRepository) GetForUpdate(ctx context.Context, id string) (*customer.Customer, error) {
	return r.get(ctx, getCustomerForUpdateSQL, id)
}

func (r *CustomerRepository) get(ctx context.Context, sql, id string) (*customer.Customer, error) {
	rows, err := r.store.q(ctx).Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}
	return &c, nil
}

// AdjustBalance applies a signed delta to the customer's wallet. The
// statement refuses to drive the balance negative; losing that guard to a
// concurrent mutation surfaces as ErrConflict.
func (r *CustomerRepository) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) error {
	tag, err := r.store.q(ctx).Exec(ctx, adjustBalanceSQL, id, delta)
	if err != nil {
		return fmt.Errorf("adjusting balance of %q: %w", id, translateError(err))
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.store.q(ctx).QueryRow(ctx, customerExistsSQL, id).Scan(&exists); err != nil {
			return fmt.Errorf("adjusting balance of %q: %w", id, err)
		}
		if !exists {
			return customer.ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Balance)
	return c, err
}
