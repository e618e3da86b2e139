package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/renterra/rental-engine/internal/domain/inventory"
	"github.com/renterra/rental-engine/internal/domain/product"
)

// Status is the closed set of order lifecycle states.
type Status string

const (
	StatusQuotation Status = "QUOTATION"
	StatusApproved  Status = "APPROVED"
	StatusConfirmed Status = "CONFIRMED"
	StatusInvoiced  Status = "INVOICED"
	StatusPickedUp  Status = "PICKEDUP"
	StatusReturned  Status = "RETURNED"
	StatusCancelled Status = "CANCELLED"
	StatusRejected  Status = "REJECTED"
)

// transitions is the canonical lifecycle graph. Anything absent here is an
// invalid transition, no exceptions.
var transitions = map[Status]map[Status]bool{
	StatusQuotation: {StatusApproved: true, StatusCancelled: true, StatusRejected: true},
	StatusApproved:  {StatusConfirmed: true, StatusCancelled: true, StatusRejected: true},
	StatusConfirmed: {StatusInvoiced: true, StatusPickedUp: true, StatusCancelled: true},
	StatusInvoiced:  {StatusPickedUp: true, StatusCancelled: true},
	StatusPickedUp:  {StatusReturned: true},
	StatusReturned:  {},
	StatusCancelled: {},
	StatusRejected:  {},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	return transitions[s][next]
}

// HoldsReservation reports whether an order in this status claims stock.
// The inventory ledger only counts lines of reservation-holding orders;
// leaving one of these statuses is what releases the claim.
func (s Status) HoldsReservation() bool {
	switch s {
	case StatusConfirmed, StatusInvoiced, StatusPickedUp:
		return true
	}
	return false
}

// Terminal reports whether no further transitions exist from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// PaymentStatus tracks how much of the order's total has been settled.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
)

// Valid reports whether p is a known payment status.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentUnpaid, PaymentPartial, PaymentPaid:
		return true
	}
	return false
}

// Order is a rental order moving from quotation through return. TotalAmount
// is a persisted snapshot; recomputing it from the lines and the discount,
// shipping and tax fields always reproduces it absent data mutation.
type Order struct {
	ID            string
	Reference     string
	CustomerID    string
	VendorID      string
	Status        Status
	PaymentStatus PaymentStatus
	Discount      decimal.Decimal
	Shipping      decimal.Decimal
	TaxRate       decimal.Decimal
	DownPayment   decimal.Decimal
	TotalAmount   decimal.Decimal
	RejectReason  string
	Overridden    bool
	SentAt        *time.Time
	ReturnedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Lines         []Line
}

// Line is one rented product over a half-open date window. UnitPrice is the
// product price snapshotted at quote time and never silently tracks later
// catalog edits.
type Line struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Unit        product.RentalUnit
	RentalStart time.Time
	RentalEnd   time.Time
}

// Total returns quantity * unit price.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ReservationLines maps the order's lines to inventory candidates.
func (o *Order) ReservationLines() []inventory.Line {
	lines := make([]inventory.Line, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = inventory.Line{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			Start:       l.RentalStart,
			End:         l.RentalEnd,
		}
	}
	return lines
}

// ConfirmCheck validates a candidate reservation set against a ledger bound
// to the confirming transaction. It returns the conflicts that must abort
// the commit; an empty result lets the repository flip the status.
type ConfirmCheck func(ctx context.Context, ledger inventory.Ledger) ([]inventory.Conflict, error)

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Update(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByVendor(ctx context.Context, vendorID string) ([]Order, error)
	NextReference(ctx context.Context) (string, error)

	// ConfirmReserving atomically runs check against a transaction-scoped
	// ledger and, when it reports no conflicts, persists the order's status
	// and override flag in the same transaction. Product rows touched by the
	// order's lines are locked first, so two concurrent confirms over the
	// same stock serialize and the loser sees the winner's reservation.
	// A non-empty conflict list means the transaction rolled back and the
	// stored order is untouched.
	ConfirmReserving(ctx context.Context, o *Order, check ConfirmCheck) ([]inventory.Conflict, error)
}
