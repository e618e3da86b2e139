package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renterra/rental-engine/internal/domain/invoice"
)

const (
	insertInvoiceSQL = `INSERT INTO invoices (id, order_id, number, amount_due, payment_token, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	updateInvoiceSQL = `UPDATE invoices SET amount_due = $2, payment_token = $3, sent_at = $4
		WHERE id = $1`

	getInvoiceByIDSQL = `SELECT id, order_id, number, amount_due, payment_token, sent_at, created_at
		FROM invoices WHERE id = $1`

	getInvoiceByOrderSQL = `SELECT id, order_id, number, amount_due, payment_token, sent_at, created_at
		FROM invoices WHERE order_id = $1`

	nextInvoiceNumberSQL = `SELECT nextval('invoice_number_seq')`
)

// uniqueViolation is the PostgreSQL error code raised on duplicate keys.
const uniqueViolation = "23505"

var _ invoice.Repository = (*InvoiceRepository)(nil)

// InvoiceRepository implements invoice.Repository backed by PostgreSQL.
type InvoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository returns an InvoiceRepository that uses the given pool.
func NewInvoiceRepository(pool *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

// Create persists a new invoice. The UNIQUE constraint on order_id backs the
// at-most-one rule even under concurrent issuing.
func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	_, err := r.pool.Exec(ctx, insertInvoiceSQL,
		inv.ID, inv.OrderID, inv.Number, inv.AmountDue, inv.PaymentToken, inv.SentAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return invoice.ErrAlreadyExists
		}
		return fmt.Errorf("creating invoice %q: %w", inv.ID, err)
	}
	return nil
}

// Update rewrites the invoice's mutable columns.
func (r *InvoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	tag, err := r.pool.Exec(ctx, updateInvoiceSQL,
		inv.ID, inv.AmountDue, inv.PaymentToken, inv.SentAt,
	)
	if err != nil {
		return fmt.Errorf("updating invoice %q: %w", inv.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return invoice.ErrNotFound
	}
	return nil
}

// GetByID returns an invoice by its identifier.
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.get(ctx, getInvoiceByIDSQL, id)
}

// GetByOrderID returns the order's invoice.
func (r *InvoiceRepository) GetByOrderID(ctx context.Context, orderID string) (*invoice.Invoice, error) {
	return r.get(ctx, getInvoiceByOrderSQL, orderID)
}

// NextNumber mints the next invoice number from the database sequence.
func (r *InvoiceRepository) NextNumber(ctx context.Context) (string, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, nextInvoiceNumberSQL).Scan(&n); err != nil {
		return "", fmt.Errorf("next invoice number: %w", err)
	}
	return fmt.Sprintf("INV-%05d", n), nil
}

func (r *InvoiceRepository) get(ctx context.Context, sql, arg string) (*invoice.Invoice, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}

	inv, err := pgx.CollectExactlyOneRow(rows, scanInvoice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrNotFound
		}
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return &inv, nil
}

func scanInvoice(row pgx.CollectableRow) (invoice.Invoice, error) {
	var inv invoice.Invoice
	err := row.Scan(
		&inv.ID, &inv.OrderID, &inv.Number, &inv.AmountDue,
		&inv.PaymentToken, &inv.SentAt, &inv.CreatedAt,
	)
	if err != nil {
		return invoice.Invoice{}, fmt.Errorf("scanning invoice: %w", err)
	}
	return inv, nil
}
