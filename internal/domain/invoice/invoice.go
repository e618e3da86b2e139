package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors for invoice persistence.
var (
	ErrNotFound      = fmt.Errorf("invoice not found")
	ErrAlreadyExists = fmt.Errorf("invoice already exists for order")
)

// Invoice is the billing record created when an order is confirmed.
// SentAt is nil while the invoice is drafted but not yet dispatched.
type Invoice struct {
	ID           string
	OrderID      string
	Number       string
	AmountDue    decimal.Decimal
	PaymentToken string
	SentAt       *time.Time
	CreatedAt    time.Time
}

// Repository defines persistence operations for invoices. Create must fail
// with ErrAlreadyExists when the order already has an invoice.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	Update(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id string) (*Invoice, error)
	GetByOrderID(ctx context.Context, orderID string) (*Invoice, error)
	NextNumber(ctx context.Context) (string, error)
}
