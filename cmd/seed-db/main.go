// Command seed-db loads demo catalog data into the database so the API can
// be exercised locally.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/renterra/rental-engine/internal/repository"
)

type productJSON struct {
	ID             string          `json:"id"`
	VendorID       string          `json:"vendorId"`
	Name           string          `json:"name"`
	QuantityOnHand int             `json:"quantityOnHand"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Unit           string          `json:"unit"`
}

const upsertProductSQL = `INSERT INTO products (id, vendor_id, name, quantity_on_hand, unit_price, rental_unit)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		vendor_id = EXCLUDED.vendor_id,
		name = EXCLUDED.name,
		quantity_on_hand = EXCLUDED.quantity_on_hand,
		unit_price = EXCLUDED.unit_price,
		rental_unit = EXCLUDED.rental_unit`

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
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

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
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

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products file")
	}

	for _, p := range products {
		_, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.VendorID, p.Name, p.QuantityOnHand, p.UnitPrice, p.Unit,
		)
		if err != nil {
			return errors.Wrapf(err, "seed product %s", p.ID)
		}
	}

	slog.Info("products seeded", slog.Int("count", len(products)))
	return nil
}
