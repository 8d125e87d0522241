// Command seed-db loads catalog products and customers into the database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/pos-backoffice/internal/repository"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type customerJSON struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Phone   string          `json:"phone"`
	Balance decimal.Decimal `json:"balance"`
}

func main() {
	var (
		databaseURL   string
		productsFile  string
		customersFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&customersFile, "customers-file", "db/seed/customers.json", "path to customers JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, customersFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, customersFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return errors.Wrap(seedProducts(ctx, pool, productsFile), "seed products")
	})
	g.Go(func() error {
		return errors.Wrap(seedCustomers(ctx, pool, customersFile), "seed customers")
	})

	return g.Wait()
}

const upsertProductSQL = `
INSERT INTO products (id, name, description, category, price, stock)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	category = EXCLUDED.category,
	price = EXCLUDED.price,
	stock = EXCLUDED.stock`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Description, p.Category, p.Price, p.Stock)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

const upsertCustomerSQL = `
INSERT INTO customers (id, name, phone, balance)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	phone = EXCLUDED.phone`

func seedCustomers(ctx context.Context, pool *pgxpool.Pool, customersFile string) error {
	slog.Info("reading customers file", slog.String("path", customersFile))

	data, err := os.ReadFile(customersFile)
	if err != nil {
		return errors.Wrap(err, "read customers file")
	}

	var customers []customerJSON
	if err := json.Unmarshal(data, &customers); err != nil {
		return errors.Wrap(err, "parse customers JSON")
	}

	slog.Info("upserting customers", slog.Int("count", len(customers)))

	// Balance is only set on first insert so reseeding never clobbers
	// store credit earned from orders.
	for _, c := range customers {
		_, err := pool.Exec(ctx, upsertCustomerSQL, c.ID, c.Name, c.Phone, c.Balance)
		if err != nil {
			return errors.Wrapf(err, "upsert customer %s", c.ID)
		}

		slog.Info("upserted customer", slog.String("id", c.ID), slog.String("name", c.Name))
	}

	return nil
}
