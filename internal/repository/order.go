package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renterra/rental-engine/internal/domain/inventory"
	"github.com/renterra/rental-engine/internal/domain/order"
	"github.com/renterra/rental-engine/internal/domain/product"
)

const (
	insertOrderSQL = `INSERT INTO orders (
			id, reference, customer_id, vendor_id, status, payment_status,
			discount, shipping, tax_rate, down_payment, total_amount,
			reject_reason, overridden, sent_at, returned_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	updateOrderSQL = `UPDATE orders SET
			status = $2, payment_status = $3, discount = $4, shipping = $5,
			tax_rate = $6, down_payment = $7, total_amount = $8,
			reject_reason = $9, overridden = $10, sent_at = $11,
			returned_at = $12, updated_at = now()
		WHERE id = $1`

	insertOrderLineSQL = `INSERT INTO order_lines (
			id, order_id, product_id, product_name, quantity, unit_price,
			rental_unit, rental_start, rental_end
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	deleteOrderLinesSQL = `DELETE FROM order_lines WHERE order_id = $1`

	getOrderByIDSQL = `SELECT id, reference, customer_id, vendor_id, status, payment_status,
			discount, shipping, tax_rate, down_payment, total_amount,
			reject_reason, overridden, sent_at, returned_at, created_at, updated_at
		FROM orders WHERE id = $1`

	listOrdersByVendorSQL = `SELECT id, reference, customer_id, vendor_id, status, payment_status,
			discount, shipping, tax_rate, down_payment, total_amount,
			reject_reason, overridden, sent_at, returned_at, created_at, updated_at
		FROM orders WHERE vendor_id = $1 ORDER BY created_at DESC`

	getOrderLinesSQL = `SELECT id, order_id, product_id, product_name, quantity, unit_price,
			rental_unit, rental_start, rental_end
		FROM order_lines WHERE order_id = ANY($1) ORDER BY id`

	nextOrderReferenceSQL = `SELECT nextval('order_reference_seq')`

	lockProductsSQL = `SELECT id FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	confirmOrderSQL = `UPDATE orders SET status = $2, overridden = $3, updated_at = now()
		WHERE id = $1`

	productOnHandSQL = `SELECT quantity_on_hand FROM products WHERE id = $1`

	committedQuantitySQL = `SELECT COALESCE(SUM(l.quantity), 0)
		FROM order_lines l
		JOIN orders o ON o.id = l.order_id
		WHERE l.product_id = $1
		  AND o.id <> $2
		  AND o.status IN ('CONFIRMED', 'INVOICED', 'PICKEDUP')
		  AND l.rental_start < $4
		  AND l.rental_end > $3`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order with its lines in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.Reference, o.CustomerID, o.VendorID, string(o.Status), string(o.PaymentStatus),
		o.Discount, o.Shipping, o.TaxRate, o.DownPayment, o.TotalAmount,
		o.RejectReason, o.Overridden, o.SentAt, o.ReturnedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	if err := insertLines(ctx, tx, o); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update rewrites the order row and replaces its lines.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, updateOrderSQL,
		o.ID, string(o.Status), string(o.PaymentStatus), o.Discount, o.Shipping,
		o.TaxRate, o.DownPayment, o.TotalAmount,
		o.RejectReason, o.Overridden, o.SentAt, o.ReturnedAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}

	if _, err := tx.Exec(ctx, deleteOrderLinesSQL, o.ID); err != nil {
		return fmt.Errorf("clearing lines of order %q: %w", o.ID, err)
	}
	if err := insertLines(ctx, tx, o); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByID returns an order with its lines.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
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

	if err := r.attachLines(ctx, []*order.Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByVendor returns the vendor's orders, newest first, with lines.
func (r *OrderRepository) ListByVendor(ctx context.Context, vendorID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByVendorSQL, vendorID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for vendor %q: %w", vendorID, err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for vendor %q: %w", vendorID, err)
	}

	refs := make([]*order.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := r.attachLines(ctx, refs); err != nil {
		return nil, err
	}
	return orders, nil
}

// NextReference mints the next order reference from the database sequence.
func (r *OrderRepository) NextReference(ctx context.Context) (string, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, nextOrderReferenceSQL).Scan(&n); err != nil {
		return "", fmt.Errorf("next order reference: %w", err)
	}
	return fmt.Sprintf("RNT-%05d", n), nil
}

// ConfirmReserving runs the conflict check and the status flip in one
// transaction. The products referenced by the order's lines are locked
// FOR UPDATE in ID order first, so concurrent confirms over shared stock
// serialize instead of double-booking, and deterministic lock order avoids
// deadlocks between multi-product orders.
func (r *OrderRepository) ConfirmReserving(ctx context.Context, o *order.Order, check order.ConfirmCheck) ([]inventory.Conflict, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	ids := make([]string, 0, len(o.Lines))
	seen := make(map[string]bool, len(o.Lines))
	for _, l := range o.Lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	rows, err := tx.Query(ctx, lockProductsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("locking products: %w", err)
	}
	locked, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var id string
		err := row.Scan(&id)
		return id, err
	})
	if err != nil {
		return nil, fmt.Errorf("locking products: %w", err)
	}
	if len(locked) != len(ids) {
		return nil, product.ErrNotFound
	}

	conflicts, err := check(ctx, &txLedger{tx: tx})
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		// Rolled back by the deferred Rollback; nothing was written.
		return conflicts, nil
	}

	tag, err := tx.Exec(ctx, confirmOrderSQL, o.ID, string(o.Status), o.Overridden)
	if err != nil {
		return nil, fmt.Errorf("confirming order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, order.ErrNotFound
	}
	return nil, tx.Commit(ctx)
}

// attachLines loads and distributes the lines of the given orders.
func (r *OrderRepository) attachLines(ctx context.Context, orders []*order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	byID := make(map[string]*order.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := r.pool.Query(ctx, getOrderLinesSQL, ids)
	if err != nil {
		return fmt.Errorf("getting order lines: %w", err)
	}
	lines, err := pgx.CollectRows(rows, scanOrderLine)
	if err != nil {
		return fmt.Errorf("getting order lines: %w", err)
	}

	for _, l := range lines {
		if o, ok := byID[l.OrderID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}
	return nil
}

func insertLines(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	for _, l := range o.Lines {
		_, err := tx.Exec(ctx, insertOrderLineSQL,
			l.ID, o.ID, l.ProductID, l.ProductName, l.Quantity, l.UnitPrice,
			string(l.Unit), l.RentalStart, l.RentalEnd,
		)
		if err != nil {
			return fmt.Errorf("creating line of order %q: %w", o.ID, err)
		}
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		status        string
		paymentStatus string
	)
	err := row.Scan(
		&o.ID, &o.Reference, &o.CustomerID, &o.VendorID, &status, &paymentStatus,
		&o.Discount, &o.Shipping, &o.TaxRate, &o.DownPayment, &o.TotalAmount,
		&o.RejectReason, &o.Overridden, &o.SentAt, &o.ReturnedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return order.Order{}, fmt.Errorf("scanning order: %w", err)
	}
	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	return o, nil
}

func scanOrderLine(row pgx.CollectableRow) (order.Line, error) {
	var (
		l    order.Line
		unit string
	)
	err := row.Scan(
		&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice,
		&unit, &l.RentalStart, &l.RentalEnd,
	)
	if err != nil {
		return order.Line{}, fmt.Errorf("scanning order line: %w", err)
	}
	l.Unit = product.RentalUnit(unit)
	return l, nil
}

var _ inventory.Ledger = (*txLedger)(nil)

// txLedger answers ledger queries inside the confirming transaction, so the
// committed quantities it reports include every reservation visible under
// the locks held by that transaction.
type txLedger struct {
	tx pgx.Tx
}

func (l *txLedger) OnHand(ctx context.Context, productID string) (int, error) {
	var n int
	err := l.tx.QueryRow(ctx, productOnHandSQL, productID).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, product.ErrNotFound
		}
		return 0, fmt.Errorf("on-hand quantity of product %q: %w", productID, err)
	}
	return n, nil
}

func (l *txLedger) CommittedQuantity(ctx context.Context, productID string, start, end time.Time, excludeOrderID string) (int, error) {
	var n int
	err := l.tx.QueryRow(ctx, committedQuantitySQL, productID, excludeOrderID, start, end).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("committed quantity of product %q: %w", productID, err)
	}
	return n, nil
}
