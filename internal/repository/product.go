package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/pos-backoffice/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, description, category, price, stock
		FROM products ORDER BY name`

	getProductByIDSQL = `SELECT id, name, description, category, price, stock
		FROM products WHERE id = $1`

	getProductForUpdateSQL = `SELECT id, name, description, category, price, stock
		FROM products WHERE id = $1 FOR UPDATE`

	adjustStockSQL = `UPDATE products SET stock = stock + $2
		WHERE id = $1 AND stock + $2 >= 0`

	productExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	store *Store
}

// NewProductRepository returns a ProductRepository that uses the given store.
func NewProductRepository(store *Store) *ProductRepository {
	return &ProductRepository{store: store}
}

// List returns all products ordered by name.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.store.q(ctx).Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	return r.get(ctx, getProductByIDSQL, id)
}

// GetForUpdate returns a product while holding a write lock on its row for
// the remainder of the ambient transaction.
func (r *ProductRepository) GetForUpdate(ctx context.Context, id string) (*product.Product, error) {
	return r.get(ctx, getProductForUpdateSQL, id)
}

func (r *ProductRepository) get(ctx context.Context, sql, id string) (*product.Product, error) {
	rows, err := r.store.q(ctx).Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// AdjustStock applies a signed delta to the product's stock. The statement
// refuses to drive stock negative; losing that guard to a concurrent
// mutation surfaces as ErrConflict.
func (r *ProductRepository) AdjustStock(ctx context.Context, id string, delta int) error {
	tag, err := r.store.q(ctx).Exec(ctx, adjustStockSQL, id, delta)
	if err != nil {
		return fmt.Errorf("adjusting stock of %q: %w", id, translateError(err))
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.store.q(ctx).QueryRow(ctx, productExistsSQL, id).Scan(&exists); err != nil {
			return fmt.Errorf("adjusting stock of %q: %w", id, err)
		}
		if !exists {
			return product.ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.Stock)
	return p, err
}
