// Package notify defines the outbound notification collaborator. Delivery is
// fire-and-forget: the engine calls Notify after a transition commits, and a
// delivery failure is never allowed to roll the transition back.
package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Event identifies a lifecycle event a customer or vendor should hear about.
type Event string

const (
	EventQuotationSent     Event = "quotation.sent"
	EventOrderApproved     Event = "order.approved"
	EventOrderRejected     Event = "order.rejected"
	EventOrderConfirmed    Event = "order.confirmed"
	EventOrderCancelled    Event = "order.cancelled"
	EventInvoiceDispatched Event = "invoice.dispatched"
	EventOrderPickedUp     Event = "order.pickedup"
	EventOrderReturned     Event = "order.returned"
)

// Notifier delivers an event concerning an order or invoice to the customer.
// Implementations must not block transitions: errors are for logging only.
type Notifier interface {
	Notify(ctx context.Context, event Event, refID string) error
}

// LogNotifier is a Notifier that only writes a structured log line. It stands
// in for the external delivery service in development and tests.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, event Event, refID string) error {
	zctx.From(ctx).Info("notify",
		zap.String("event", string(event)),
		zap.String("ref", refID),
	)
	return nil
}
