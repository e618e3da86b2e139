// Package inventory answers "how many units of a product are already
// committed for a date window" and detects reservation conflicts before an
// order is allowed to commit stock.
//
// Committed quantity is always derived from the set of order lines whose
// order currently holds a reservation (CONFIRMED, INVOICED or PICKEDUP).
// There is no live counter to drift out of sync; releasing stock is implicit
// in an order leaving a reservation-holding status.
package inventory

import (
	"context"
	"time"
)

// Ledger is the read side of the reservation set. Implementations must be
// usable inside the same transaction that commits a reservation, so the
// conflict check and the status flip observe one consistent snapshot.
type Ledger interface {
	// OnHand returns the product's total unit count.
	OnHand(ctx context.Context, productID string) (int, error)

	// CommittedQuantity sums the quantities of all reservation-holding order
	// lines for productID whose [rentalStart, rentalEnd) window overlaps
	// [start, end). Lines belonging to excludeOrderID are ignored so an order
	// re-running its own confirm does not count against itself.
	CommittedQuantity(ctx context.Context, productID string, start, end time.Time, excludeOrderID string) (int, error)
}

// Line is a candidate reservation: a quantity of one product over a
// half-open date window.
type Line struct {
	ProductID   string
	ProductName string
	Quantity    int
	Start       time.Time
	End         time.Time
}

// Conflict describes a shortfall between requested and available quantity
// for one candidate line.
type Conflict struct {
	ProductID    string    `json:"productId"`
	ProductName  string    `json:"productName"`
	RequestedQty int       `json:"requestedQty"`
	AvailableQty int       `json:"availableQty"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
}

// Available returns on-hand minus committed for the window. The result can
// be negative when an overridden confirm has oversubscribed the product.
func Available(ctx context.Context, ledger Ledger, productID string, start, end time.Time, excludeOrderID string) (int, error) {
	onHand, err := ledger.OnHand(ctx, productID)
	if err != nil {
		return 0, err
	}
	committed, err := ledger.CommittedQuantity(ctx, productID, start, end, excludeOrderID)
	if err != nil {
		return 0, err
	}
	return onHand - committed, nil
}

// Detect checks every candidate line against the ledger and returns the full
// conflict list in input order. An empty result means the whole set can be
// committed without exceeding any product's on-hand quantity.
//
// The ledger never sees the candidate order's own lines, so each line is
// also charged for its earlier siblings: two lines of the same product over
// overlapping windows must fit the on-hand quantity together, not each in
// isolation.
func Detect(ctx context.Context, ledger Ledger, lines []Line, excludeOrderID string) ([]Conflict, error) {
	var conflicts []Conflict
	for i, l := range lines {
		available, err := Available(ctx, ledger, l.ProductID, l.Start, l.End, excludeOrderID)
		if err != nil {
			return nil, err
		}
		available -= siblingQuantity(lines[:i], l)
		if l.Quantity > available {
			conflicts = append(conflicts, Conflict{
				ProductID:    l.ProductID,
				ProductName:  l.ProductName,
				RequestedQty: l.Quantity,
				AvailableQty: available,
				Start:        l.Start,
				End:          l.End,
			})
		}
	}
	return conflicts, nil
}

// siblingQuantity sums the quantities of earlier candidate lines that hold
// the same product over a window overlapping l's.
func siblingQuantity(earlier []Line, l Line) int {
	total := 0
	for _, e := range earlier {
		if e.ProductID == l.ProductID && Overlaps(e.Start, e.End, l.Start, l.End) {
			total += e.Quantity
		}
	}
	return total
}

// Overlaps reports whether the half-open windows [aStart, aEnd) and
// [bStart, bEnd) share any instant. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
