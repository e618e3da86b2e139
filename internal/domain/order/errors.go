package order

import (
	"fmt"
	"strings"

	"github.com/renterra/rental-engine/internal/domain/inventory"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = fmt.Errorf("order not found")

// InvalidTransitionError reports a transition attempted from the wrong
// status. It names both sides so the caller can re-fetch and retry.
type InvalidTransitionError struct {
	OrderID  string
	Op       string
	Current  Status
	Required []Status
}

func (e *InvalidTransitionError) Error() string {
	required := make([]string, len(e.Required))
	for i, s := range e.Required {
		required[i] = string(s)
	}
	return fmt.Sprintf("cannot %s order %s: status is %s, requires %s",
		e.Op, e.OrderID, e.Current, strings.Join(required, "|"))
}

// PaymentRequiredError gates physical handout on settlement. It is a
// transition failure, not a validation one: the order is in the right
// status but its payment state blocks the move.
type PaymentRequiredError struct {
	OrderID       string
	PaymentStatus PaymentStatus
}

func (e *PaymentRequiredError) Error() string {
	return fmt.Sprintf("cannot pick up order %s: payment status is %s, requires PAID",
		e.OrderID, e.PaymentStatus)
}

// StockConflictError carries the full conflict list from a failed confirm,
// in the same order as the order's lines.
type StockConflictError struct {
	OrderID   string
	Conflicts []inventory.Conflict
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("order %s: %d reservation conflict(s)", e.OrderID, len(e.Conflicts))
}

// ValidationError reports malformed input. Nothing is applied when one is
// returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthorizationError reports an actor without rights over the order.
type AuthorizationError struct {
	ActorID string
	OrderID string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %s is not allowed to act on order %s", e.ActorID, e.OrderID)
}
