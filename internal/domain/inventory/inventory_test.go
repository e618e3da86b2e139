package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementation ---

type reservation struct {
	orderID  string
	quantity int
	start    time.Time
	end      time.Time
}

type memLedger struct {
	onHand       map[string]int
	reservations map[string][]reservation
}

func (m *memLedger) OnHand(_ context.Context, productID string) (int, error) {
	return m.onHand[productID], nil
}

func (m *memLedger) CommittedQuantity(_ context.Context, productID string, start, end time.Time, excludeOrderID string) (int, error) {
	sum := 0
	for _, r := range m.reservations[productID] {
		if r.orderID == excludeOrderID {
			continue
		}
		if Overlaps(r.start, r.end, start, end) {
			sum += r.quantity
		}
	}
	return sum, nil
}

// --- Helpers ---

func day(n int) time.Time {
	return time.Date(2026, time.March, n, 0, 0, 0, 0, time.UTC)
}

func newLedger() *memLedger {
	return &memLedger{
		onHand:       map[string]int{"prod-x": 5},
		reservations: map[string][]reservation{},
	}
}

func (m *memLedger) reserve(orderID, productID string, qty int, start, end time.Time) {
	m.reservations[productID] = append(m.reservations[productID], reservation{
		orderID: orderID, quantity: qty, start: start, end: end,
	})
}

// --- Tests ---

func TestDetect_NoReservations(t *testing.T) {
	ledger := newLedger()

	conflicts, err := Detect(context.Background(), ledger, []Line{
		{ProductID: "prod-x", ProductName: "Excavator", Quantity: 5, Start: day(1), End: day(5)},
	}, "")

	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestDetect_OverlappingShortfall(t *testing.T) {
	ledger := newLedger()
	ledger.reserve("order-a", "prod-x", 3, day(1), day(5))

	conflicts, err := Detect(context.Background(), ledger, []Line{
		{ProductID: "prod-x", ProductName: "Excavator", Quantity: 3, Start: day(3), End: day(7)},
	}, "")

	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, 3, conflicts[0].RequestedQty)
	assert.Equal(t, 2, conflicts[0].AvailableQty)
	assert.Equal(t, "prod-x", conflicts[0].ProductID)
	assert.Equal(t, "Excavator", conflicts[0].ProductName)
}

func TestDetect_FitsWithinRemainder(t *testing.T) {
	ledger := newLedger()
	ledger.reserve("order-a", "prod-x", 3, day(1), day(5))

	conflicts, err := Detect(context.Background(), ledger, []Line{
		{ProductID: "prod-x", Quantity: 2, Start: day(3), End: day(7)},
	}, "")

	require.NoError(t, err)
	assert.Empty(t, conflicts)

	available, err := Available(context.Background(), ledger, "prod-x", day(3), day(5), "")
	require.NoError(t, err)
	assert.Equal(t, 2, available)
}

func TestDetect_TouchingWindowsDoNotConflict(t *testing.T) {
	ledger := newLedger()
	ledger.reserve("order-a", "prod-x", 5, day(1), day(5))

	// New window starts exactly where the reservation ends: half-open
	// semantics, no overlap.
	conflicts, err := Detect(context.Background(), ledger, []Line{
		{ProductID: "prod-x", Quantity: 5, Start: day(5), End: day(9)},
	}, "")

	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestDetect_OneSecondOverlapConflicts(t *testing.T) {
	ledger := newLedger()
	ledger.reserve("order-a", "prod-x", 5, day(1), day(5))

	start := day(5).Add(-time.Second)
	conflicts, err := Detect(context.Background(), ledger, []Line{
		{ProductID: "prod-x", Quantity: 1, Start: start, End: day(9)},
	}, "")

	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, 0, conflicts[0].AvailableQty)
}

func TestDetect_ExcludesOwnOrder(t *testing.T) {
	ledger := newLedger()
	ledger.reserve("order-a", "prod-x", 5, day(1), day(5))

	// Re-confirming order-a must not double-count its own reservation.
	conflicts, err := Detect(context.Background(), ledger, []Line{
		{ProductID: "prod-x", Quantity: 5, Start: day(1), End: day(5)},
	}, "order-a")

	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestDetect_ReportsAllConflictsInInputOrder(t *testing.T) {
	ledger := newLedger()
	ledger.onHand["prod-y"] = 1
	ledger.reserve("order-a", "prod-x", 5, day(1), day(5))
	ledger.reserve("order-a", "prod-y", 1, day(1), day(5))

	conflicts, err := Detect(context.Background(), ledger, []Line{
		{ProductID: "prod-y", Quantity: 1, Start: day(2), End: day(4)},
		{ProductID: "prod-x", Quantity: 2, Start: day(2), End: day(4)},
	}, "")

	require.NoError(t, err)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "prod-y", conflicts[0].ProductID)
	assert.Equal(t, "prod-x", conflicts[1].ProductID)
}

func TestDetect_SiblingLinesShareOnHand(t *testing.T) {
	ledger := newLedger()

	// The ledger never sees the candidate order's own lines, so two lines
	// of the same product over the same window must be charged against
	// each other, not pass independently.
	conflicts, err := Detect(context.Background(), ledger, []Line{
		{ProductID: "prod-x", ProductName: "Excavator", Quantity: 3, Start: day(1), End: day(5)},
		{ProductID: "prod-x", ProductName: "Excavator", Quantity: 3, Start: day(1), End: day(5)},
	}, "order-a")

	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, 3, conflicts[0].RequestedQty)
	assert.Equal(t, 2, conflicts[0].AvailableQty)
}

func TestDetect_SiblingLinesWithDisjointWindows(t *testing.T) {
	ledger := newLedger()

	// Back-to-back windows within one order reuse the same units.
	conflicts, err := Detect(context.Background(), ledger, []Line{
		{ProductID: "prod-x", Quantity: 5, Start: day(1), End: day(5)},
		{ProductID: "prod-x", Quantity: 5, Start: day(5), End: day(9)},
	}, "order-a")

	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestAvailable_NegativeAfterOversubscription(t *testing.T) {
	ledger := newLedger()
	ledger.reserve("order-a", "prod-x", 4, day(1), day(5))
	ledger.reserve("order-b", "prod-x", 3, day(1), day(5))

	available, err := Available(context.Background(), ledger, "prod-x", day(1), day(5), "")
	require.NoError(t, err)
	assert.Equal(t, -2, available)
}
