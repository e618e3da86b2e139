package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/renterra/rental-engine/internal/domain/inventory"
	"github.com/renterra/rental-engine/internal/domain/invoice"
	"github.com/renterra/rental-engine/internal/domain/notify"
	"github.com/renterra/rental-engine/internal/domain/payment"
	"github.com/renterra/rental-engine/internal/domain/pricing"
	"github.com/renterra/rental-engine/internal/domain/product"
)

// Role is the resolved role of the acting identity. Authentication happens
// upstream; the engine only re-validates ownership where state depends on it.
type Role string

const (
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Actor is the already-authenticated identity performing an operation.
type Actor struct {
	ID   string
	Role Role
}

// LineInput is one requested rental line when creating or editing a quotation.
type LineInput struct {
	ProductID   string
	Quantity    int
	RentalStart time.Time
	RentalEnd   time.Time
}

// CreateQuotationRequest holds the input for assembling a new quotation.
type CreateQuotationRequest struct {
	CustomerID  string
	Lines       []LineInput
	Discount    decimal.Decimal
	Shipping    decimal.Decimal
	TaxRate     decimal.Decimal
	DownPayment decimal.Decimal
}

// UpdateQuotationRequest replaces a quotation's lines and charge parameters.
type UpdateQuotationRequest struct {
	Lines       []LineInput
	Discount    decimal.Decimal
	Shipping    decimal.Decimal
	TaxRate     decimal.Decimal
	DownPayment decimal.Decimal
}

// ReturnResult is the outcome of the return transition.
type ReturnResult struct {
	Order   *Order
	LateFee decimal.Decimal
	Invoice *invoice.Invoice
}

// Service owns the order lifecycle. Every transition checks the current
// status against the lifecycle graph first and fails with a typed error on
// mismatch, never a silent no-op.
type Service struct {
	orders   Repository
	products product.Repository
	invoices *invoice.Issuer
	payments payment.Provider
	notifier notify.Notifier
	lateFees pricing.LateFeeTable
}

// NewService creates an order Service with the required collaborators.
// A nil lateFees table falls back to the default period lengths.
func NewService(
	orders Repository,
	products product.Repository,
	invoices *invoice.Issuer,
	payments payment.Provider,
	notifier notify.Notifier,
	lateFees pricing.LateFeeTable,
) *Service {
	if lateFees == nil {
		lateFees = pricing.DefaultLateFeeTable()
	}
	return &Service{
		orders:   orders,
		products: products,
		invoices: invoices,
		payments: payments,
		notifier: notifier,
		lateFees: lateFees,
	}
}

// CreateQuotation assembles a new order in QUOTATION from validated lines,
// snapshotting unit prices from the catalog. All lines must belong to one
// vendor; a vendor actor can only quote their own products.
func (s *Service) CreateQuotation(ctx context.Context, actor Actor, req CreateQuotationRequest) (*Order, error) {
	if req.CustomerID == "" {
		return nil, &ValidationError{Field: "customerId", Reason: "required"}
	}
	lines, vendorID, err := s.buildLines(ctx, "", req.Lines)
	if err != nil {
		return nil, err
	}
	if actor.Role == RoleVendor && actor.ID != vendorID {
		return nil, &AuthorizationError{ActorID: actor.ID}
	}

	reference, err := s.orders.NextReference(ctx)
	if err != nil {
		return nil, fmt.Errorf("next order reference: %w", err)
	}

	o := &Order{
		ID:            uuid.New().String(),
		Reference:     reference,
		CustomerID:    req.CustomerID,
		VendorID:      vendorID,
		Status:        StatusQuotation,
		PaymentStatus: PaymentUnpaid,
		Discount:      req.Discount,
		Shipping:      req.Shipping,
		TaxRate:       req.TaxRate,
		DownPayment:   req.DownPayment,
		Lines:         lines,
	}
	for i := range o.Lines {
		o.Lines[i].OrderID = o.ID
	}
	o.TotalAmount = s.total(o)

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return o, nil
}

// UpdateQuotation replaces the lines and charge parameters of an unsent
// quotation, re-snapshotting prices. A sent quotation is no longer editable.
func (s *Service) UpdateQuotation(ctx context.Context, actor Actor, orderID string, req UpdateQuotationRequest) (*Order, error) {
	o, err := s.load(ctx, actor, orderID, false)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(o, "update", StatusQuotation); err != nil {
		return nil, err
	}
	if o.SentAt != nil {
		return nil, &ValidationError{Field: "status", Reason: "quotation already sent"}
	}

	lines, vendorID, err := s.buildLines(ctx, o.ID, req.Lines)
	if err != nil {
		return nil, err
	}
	if vendorID != o.VendorID {
		return nil, &ValidationError{Field: "lines", Reason: "lines must stay with the order's vendor"}
	}

	o.Lines = lines
	o.Discount = req.Discount
	o.Shipping = req.Shipping
	o.TaxRate = req.TaxRate
	o.DownPayment = req.DownPayment
	o.TotalAmount = s.total(o)

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("update order %q: %w", o.ID, err)
	}
	return o, nil
}

// SendQuotation marks the quotation sent and notifies the customer. The
// status stays QUOTATION; sending only freezes editing.
func (s *Service) SendQuotation(ctx context.Context, actor Actor, orderID string) (*Order, error) {
	o, err := s.load(ctx, actor, orderID, false)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(o, "send", StatusQuotation); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	o.SentAt = &now
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("update order %q: %w", o.ID, err)
	}

	_ = s.notifier.Notify(ctx, notify.EventQuotationSent, o.ID)
	return o, nil
}

// Approve moves QUOTATION to APPROVED.
func (s *Service) Approve(ctx context.Context, actor Actor, orderID string) (*Order, error) {
	o, err := s.load(ctx, actor, orderID, true)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(o, "approve", StatusQuotation); err != nil {
		return nil, err
	}

	o.Status = StatusApproved
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("update order %q: %w", o.ID, err)
	}

	_ = s.notifier.Notify(ctx, notify.EventOrderApproved, o.ID)
	return o, nil
}

// Reject terminates a quotation or approved order. The reason is mandatory
// and persisted with the order.
func (s *Service) Reject(ctx context.Context, actor Actor, orderID, reason string) (*Order, error) {
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Reason: "required"}
	}

	o, err := s.load(ctx, actor, orderID, true)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(o, "reject", StatusQuotation, StatusApproved); err != nil {
		return nil, err
	}

	o.Status = StatusRejected
	o.RejectReason = reason
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("update order %q: %w", o.ID, err)
	}

	_ = s.notifier.Notify(ctx, notify.EventOrderRejected, o.ID)
	return o, nil
}

// Confirm is the reservation-committing transition. The conflict check and
// the status flip run in one transaction; on conflict nothing is committed,
// the order stays APPROVED and the caller receives the full conflict list.
func (s *Service) Confirm(ctx context.Context, actor Actor, orderID string) (*Order, error) {
	o, err := s.load(ctx, actor, orderID, false)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(o, "confirm", StatusApproved); err != nil {
		return nil, err
	}

	o.Status = StatusConfirmed
	conflicts, err := s.orders.ConfirmReserving(ctx, o, func(ctx context.Context, ledger inventory.Ledger) ([]inventory.Conflict, error) {
		return inventory.Detect(ctx, ledger, o.ReservationLines(), o.ID)
	})
	if err != nil {
		o.Status = StatusApproved
		return nil, fmt.Errorf("confirm order %q: %w", o.ID, err)
	}
	if len(conflicts) > 0 {
		o.Status = StatusApproved
		return nil, &StockConflictError{OrderID: o.ID, Conflicts: conflicts}
	}

	_ = s.notifier.Notify(ctx, notify.EventOrderConfirmed, o.ID)
	return o, nil
}

// ConfirmWithOverride commits a reservation despite known conflicts. The
// caller must echo back the exact conflicts being overridden; any detected
// conflict not acknowledged aborts the whole transition. The override is
// persisted on the order and logged, never silent.
func (s *Service) ConfirmWithOverride(ctx context.Context, actor Actor, orderID string, acknowledged []inventory.Conflict) (*Order, error) {
	if len(acknowledged) == 0 {
		return nil, &ValidationError{Field: "acknowledgedConflicts", Reason: "required"}
	}

	o, err := s.load(ctx, actor, orderID, false)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(o, "confirm", StatusApproved); err != nil {
		return nil, err
	}

	var overridden []inventory.Conflict
	o.Status = StatusConfirmed
	o.Overridden = true
	conflicts, err := s.orders.ConfirmReserving(ctx, o, func(ctx context.Context, ledger inventory.Ledger) ([]inventory.Conflict, error) {
		detected, err := inventory.Detect(ctx, ledger, o.ReservationLines(), o.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range detected {
			if !acknowledges(acknowledged, c) {
				// The situation moved since the caller saw the conflicts;
				// abort and report the current state.
				return detected, nil
			}
		}
		overridden = detected
		return nil, nil
	})
	if err != nil {
		o.Status = StatusApproved
		o.Overridden = false
		return nil, fmt.Errorf("confirm order %q with override: %w", o.ID, err)
	}
	if len(conflicts) > 0 {
		o.Status = StatusApproved
		o.Overridden = false
		return nil, &StockConflictError{OrderID: o.ID, Conflicts: conflicts}
	}

	zctx.From(ctx).Warn("stock conflict overridden",
		zap.String("order_id", o.ID),
		zap.String("actor_id", actor.ID),
		zap.Int("conflicts", len(overridden)),
	)
	_ = s.notifier.Notify(ctx, notify.EventOrderConfirmed, o.ID)
	return o, nil
}

// Cancel terminates an order before pickup. Cancelling a confirmed order
// releases its reservation implicitly: the ledger only counts lines of
// orders in reservation-holding statuses.
func (s *Service) Cancel(ctx context.Context, actor Actor, orderID string) (*Order, error) {
	o, err := s.load(ctx, actor, orderID, false)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(StatusCancelled) {
		return nil, &InvalidTransitionError{
			OrderID:  o.ID,
			Op:       "cancel",
			Current:  o.Status,
			Required: []Status{StatusQuotation, StatusApproved, StatusConfirmed, StatusInvoiced},
		}
	}

	o.Status = StatusCancelled
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("update order %q: %w", o.ID, err)
	}

	_ = s.notifier.Notify(ctx, notify.EventOrderCancelled, o.ID)
	return o, nil
}

// CreateInvoice moves CONFIRMED to INVOICED, drafting the order's single
// invoice with the calculator's current total as amount due.
func (s *Service) CreateInvoice(ctx context.Context, actor Actor, orderID string) (*invoice.Invoice, error) {
	o, err := s.load(ctx, actor, orderID, false)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(o, "invoice", StatusConfirmed); err != nil {
		return nil, err
	}

	inv, err := s.invoices.Create(ctx, o.ID, s.total(o))
	if errors.Is(err, invoice.ErrAlreadyExists) {
		// A previous attempt wrote the invoice but died before the status
		// flip. Resume with the existing invoice instead of wedging the
		// order in CONFIRMED forever.
		inv, err = s.invoices.ByOrder(ctx, o.ID)
	}
	if err != nil {
		return nil, err
	}

	o.Status = StatusInvoiced
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("update order %q: %w", o.ID, err)
	}
	return inv, nil
}

// DispatchInvoice sends the order's invoice to the customer with a fresh
// payment reference.
func (s *Service) DispatchInvoice(ctx context.Context, actor Actor, invoiceID string) (*invoice.Invoice, error) {
	inv, err := s.invoices.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, actor, inv.OrderID, false); err != nil {
		return nil, err
	}
	return s.invoices.Dispatch(ctx, invoiceID)
}

// Pickup marks physical handout. Handout is gated on payment: the engine
// refreshes the payment status from the gateway when it can, then requires
// PAID. The gate is enforced here, not in any UI.
func (s *Service) Pickup(ctx context.Context, actor Actor, orderID string) (*Order, error) {
	o, err := s.load(ctx, actor, orderID, false)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(o, "pickup", StatusConfirmed, StatusInvoiced); err != nil {
		return nil, err
	}

	s.refreshPaymentStatus(ctx, o)
	if o.PaymentStatus != PaymentPaid {
		return nil, &PaymentRequiredError{OrderID: o.ID, PaymentStatus: o.PaymentStatus}
	}

	o.Status = StatusPickedUp
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("update order %q: %w", o.ID, err)
	}

	_ = s.notifier.Notify(ctx, notify.EventOrderPickedUp, o.ID)
	return o, nil
}

// Return completes the lifecycle: computes the late fee against the latest
// rental end, reconciles the invoice, regresses the payment status when new
// money is owed, and releases the reservation by leaving PICKEDUP.
func (s *Service) Return(ctx context.Context, actor Actor, orderID string, returnedAt time.Time) (*ReturnResult, error) {
	o, err := s.load(ctx, actor, orderID, false)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(o, "return", StatusPickedUp); err != nil {
		return nil, err
	}

	fee := pricing.LateFee(s.priceLines(o), s.lateFees, returnedAt)

	inv, err := s.invoices.ReconcileOnReturn(ctx, o.ID, fee)
	if err != nil {
		return nil, fmt.Errorf("reconcile invoice for order %q: %w", o.ID, err)
	}

	o.Status = StatusReturned
	o.ReturnedAt = &returnedAt
	// Policy: a fully settled order owing a late fee regresses to PARTIAL.
	// The earlier payments still count; only the fee is outstanding.
	if !fee.IsZero() && o.PaymentStatus == PaymentPaid {
		o.PaymentStatus = PaymentPartial
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("update order %q: %w", o.ID, err)
	}

	_ = s.notifier.Notify(ctx, notify.EventOrderReturned, o.ID)
	return &ReturnResult{Order: o, LateFee: fee, Invoice: inv}, nil
}

// RecordPayment applies a settlement report from the payment collaborator.
func (s *Service) RecordPayment(ctx context.Context, actor Actor, orderID string, status PaymentStatus) (*Order, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "paymentStatus", Reason: "unknown value"}
	}

	o, err := s.load(ctx, actor, orderID, false)
	if err != nil {
		return nil, err
	}

	o.PaymentStatus = status
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("update order %q: %w", o.ID, err)
	}
	return o, nil
}

// Get returns an order the actor is allowed to see.
func (s *Service) Get(ctx context.Context, actor Actor, orderID string) (*Order, error) {
	return s.load(ctx, actor, orderID, true)
}

// ListByVendor returns the vendor's orders. Vendor actors can only list
// their own.
func (s *Service) ListByVendor(ctx context.Context, actor Actor, vendorID string) ([]Order, error) {
	if actor.Role == RoleVendor && actor.ID != vendorID {
		return nil, &AuthorizationError{ActorID: actor.ID}
	}
	return s.orders.ListByVendor(ctx, vendorID)
}

// --- internals ---

// load fetches the order and enforces ownership. Customers only pass when
// customerOK is set and the order is theirs; vendors must own the order;
// admins always pass.
func (s *Service) load(ctx context.Context, actor Actor, orderID string, customerOK bool) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case RoleAdmin:
	case RoleVendor:
		if actor.ID != o.VendorID {
			return nil, &AuthorizationError{ActorID: actor.ID, OrderID: o.ID}
		}
	case RoleCustomer:
		if !customerOK || actor.ID != o.CustomerID {
			return nil, &AuthorizationError{ActorID: actor.ID, OrderID: o.ID}
		}
	default:
		return nil, &AuthorizationError{ActorID: actor.ID, OrderID: o.ID}
	}
	return o, nil
}

// buildLines validates line inputs, batch-fetches their products and returns
// snapshot lines plus the single vendor they belong to.
func (s *Service) buildLines(ctx context.Context, orderID string, inputs []LineInput) ([]Line, string, error) {
	if len(inputs) == 0 {
		return nil, "", &ValidationError{Field: "lines", Reason: "at least one line required"}
	}

	ids := make([]string, len(inputs))
	for i, in := range inputs {
		if in.Quantity <= 0 {
			return nil, "", &ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be positive for product %s", in.ProductID)}
		}
		if !in.RentalStart.Before(in.RentalEnd) {
			return nil, "", &ValidationError{Field: "rentalEnd", Reason: fmt.Sprintf("must be after rentalStart for product %s", in.ProductID)}
		}
		ids[i] = in.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, "", fmt.Errorf("get products: %w", err)
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	vendorID := ""
	lines := make([]Line, len(inputs))
	for i, in := range inputs {
		p, ok := byID[in.ProductID]
		if !ok {
			return nil, "", product.ErrNotFound
		}
		if vendorID == "" {
			vendorID = p.VendorID
		} else if vendorID != p.VendorID {
			return nil, "", &ValidationError{Field: "lines", Reason: "all lines must belong to one vendor"}
		}
		lines[i] = Line{
			ID:          uuid.New().String(),
			OrderID:     orderID,
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    in.Quantity,
			UnitPrice:   p.UnitPrice,
			Unit:        p.Unit,
			RentalStart: in.RentalStart,
			RentalEnd:   in.RentalEnd,
		}
	}
	return lines, vendorID, nil
}

func (s *Service) priceLines(o *Order) []pricing.Line {
	lines := make([]pricing.Line, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = pricing.Line{
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Unit:      l.Unit,
			RentalEnd: l.RentalEnd,
		}
	}
	return lines
}

func (s *Service) total(o *Order) decimal.Decimal {
	return pricing.Calculate(s.priceLines(o), o.Discount, o.Shipping, o.TaxRate).Total
}

// refreshPaymentStatus opportunistically asks the gateway about the order's
// invoice. Gateway unavailability keeps the stored value.
func (s *Service) refreshPaymentStatus(ctx context.Context, o *Order) {
	inv, err := s.invoices.ByOrder(ctx, o.ID)
	if err != nil {
		return
	}
	st, err := s.payments.QueryPaymentStatus(ctx, inv.ID)
	if err != nil {
		return
	}
	switch st {
	case payment.StatusPaid:
		o.PaymentStatus = PaymentPaid
	case payment.StatusPartial:
		o.PaymentStatus = PaymentPartial
	case payment.StatusUnpaid:
		o.PaymentStatus = PaymentUnpaid
	}
}

func requireStatus(o *Order, op string, required ...Status) error {
	for _, r := range required {
		if o.Status == r {
			return nil
		}
	}
	return &InvalidTransitionError{
		OrderID:  o.ID,
		Op:       op,
		Current:  o.Status,
		Required: required,
	}
}

// acknowledges reports whether c matches one of the echoed-back conflicts.
// A match must agree on product, quantities and the exact window: a stale
// acknowledgment never covers a different shortfall.
func acknowledges(acks []inventory.Conflict, c inventory.Conflict) bool {
	for _, a := range acks {
		if a.ProductID == c.ProductID &&
			a.RequestedQty == c.RequestedQty &&
			a.AvailableQty == c.AvailableQty &&
			a.Start.Equal(c.Start) &&
			a.End.Equal(c.End) {
			return true
		}
	}
	return false
}
