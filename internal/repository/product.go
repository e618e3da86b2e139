package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renterra/rental-engine/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, vendor_id, name, quantity_on_hand, unit_price, rental_unit
		FROM products WHERE vendor_id = $1 ORDER BY id`

	getProductByIDSQL = `SELECT id, vendor_id, name, quantity_on_hand, unit_price, rental_unit
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, vendor_id, name, quantity_on_hand, unit_price, rental_unit
		FROM products WHERE id = ANY($1)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns the vendor's catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context, vendorID string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL, vendorID)
	if err != nil {
		return nil, fmt.Errorf("listing products for vendor %q: %w", vendorID, err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
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

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p    product.Product
		unit string
	)
	err := row.Scan(&p.ID, &p.VendorID, &p.Name, &p.QuantityOnHand, &p.UnitPrice, &unit)
	if err != nil {
		return product.Product{}, fmt.Errorf("scanning product: %w", err)
	}
	p.Unit = product.RentalUnit(unit)
	return p, nil
}
