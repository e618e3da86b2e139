package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/renterra/rental-engine/internal/domain/notify"
	"github.com/renterra/rental-engine/internal/domain/payment"
)

// Issuer creates, dispatches and settles invoices. It owns the at-most-one
// invoice per order rule; the order state machine decides when issuing is
// legal at all.
type Issuer struct {
	invoices Repository
	payments payment.Provider
	notifier notify.Notifier
}

// NewIssuer creates an Issuer with the required collaborators.
func NewIssuer(invoices Repository, payments payment.Provider, notifier notify.Notifier) *Issuer {
	return &Issuer{
		invoices: invoices,
		payments: payments,
		notifier: notifier,
	}
}

// Create drafts an invoice for the order with the given amount due. It fails
// with ErrAlreadyExists when the order is already invoiced.
func (i *Issuer) Create(ctx context.Context, orderID string, amountDue decimal.Decimal) (*Invoice, error) {
	if _, err := i.invoices.GetByOrderID(ctx, orderID); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check existing invoice for order %q: %w", orderID, err)
	}

	number, err := i.invoices.NextNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("next invoice number: %w", err)
	}

	inv := &Invoice{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		Number:    number,
		AmountDue: amountDue,
	}
	if err := i.invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice for order %q: %w", orderID, err)
	}
	return inv, nil
}

// Dispatch marks the invoice sent, mints a fresh payment reference and hands
// the event to the notification collaborator. Re-dispatching regenerates the
// payment link but never creates a second invoice; a notification failure
// does not undo the dispatch.
func (i *Issuer) Dispatch(ctx context.Context, invoiceID string) (*Invoice, error) {
	inv, err := i.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	token, err := i.payments.GeneratePaymentReference(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("generate payment reference for invoice %q: %w", inv.ID, err)
	}

	now := time.Now().UTC()
	inv.PaymentToken = token
	inv.SentAt = &now
	if err := i.invoices.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("update invoice %q: %w", inv.ID, err)
	}

	_ = i.notifier.Notify(ctx, notify.EventInvoiceDispatched, inv.ID)
	return inv, nil
}

// ReconcileOnReturn adds a nonzero late fee to the invoice's amount due at
// physical return. A zero fee leaves the invoice untouched. Orders without
// an invoice (returned before invoicing was required) reconcile to nothing.
func (i *Issuer) ReconcileOnReturn(ctx context.Context, orderID string, lateFee decimal.Decimal) (*Invoice, error) {
	inv, err := i.invoices.GetByOrderID(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if lateFee.IsZero() {
		return inv, nil
	}

	inv.AmountDue = inv.AmountDue.Add(lateFee)
	if err := i.invoices.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("reconcile invoice %q: %w", inv.ID, err)
	}
	return inv, nil
}

// Get returns an invoice by ID, or ErrNotFound.
func (i *Issuer) Get(ctx context.Context, invoiceID string) (*Invoice, error) {
	return i.invoices.GetByID(ctx, invoiceID)
}

// ByOrder returns the order's invoice, or ErrNotFound.
func (i *Issuer) ByOrder(ctx context.Context, orderID string) (*Invoice, error) {
	return i.invoices.GetByOrderID(ctx, orderID)
}
