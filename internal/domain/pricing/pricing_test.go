package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renterra/rental-engine/internal/domain/product"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(day int) time.Time {
	return time.Date(2026, time.March, day, 0, 0, 0, 0, time.UTC)
}

func TestCalculate_Breakdown(t *testing.T) {
	// One line: unitPrice=100, quantity=2, discount=20, shipping=10, taxRate=10.
	lines := []Line{
		{Quantity: 2, UnitPrice: d("100"), Unit: product.UnitDay, RentalEnd: date(10)},
	}

	charges := Calculate(lines, d("20"), d("10"), d("10"))

	assert.True(t, d("200").Equal(charges.Subtotal), "subtotal = %s", charges.Subtotal)
	assert.True(t, d("20").Equal(charges.TaxAmount), "tax = %s", charges.TaxAmount)
	assert.True(t, d("210").Equal(charges.Total), "total = %s", charges.Total)
}

func TestCalculate_Idempotent(t *testing.T) {
	lines := []Line{
		{Quantity: 3, UnitPrice: d("19.99"), Unit: product.UnitDay},
		{Quantity: 1, UnitPrice: d("250.50"), Unit: product.UnitWeek},
	}

	first := Calculate(lines, d("5.25"), d("12.00"), d("7.5"))
	second := Calculate(lines, d("5.25"), d("12.00"), d("7.5"))

	assert.True(t, first.Subtotal.Equal(second.Subtotal))
	assert.True(t, first.TaxAmount.Equal(second.TaxAmount))
	assert.True(t, first.Total.Equal(second.Total))
}

func TestCalculate_RoundsFinalTotalOnly(t *testing.T) {
	// 3 * 0.111 = 0.333, tax 10% = 0.0333, total 0.3663 → 0.37 half-up.
	lines := []Line{
		{Quantity: 3, UnitPrice: d("0.111"), Unit: product.UnitHour},
	}

	charges := Calculate(lines, decimal.Zero, decimal.Zero, d("10"))

	assert.True(t, d("0.333").Equal(charges.Subtotal), "subtotal must stay unrounded, got %s", charges.Subtotal)
	assert.True(t, d("0.37").Equal(charges.Total), "total = %s", charges.Total)
}

func TestCalculate_NoLines(t *testing.T) {
	charges := Calculate(nil, decimal.Zero, d("10"), d("10"))

	assert.True(t, decimal.Zero.Equal(charges.Subtotal))
	assert.True(t, d("10").Equal(charges.Total))
}

func TestLateFee_OnTimeReturn(t *testing.T) {
	lines := []Line{
		{Quantity: 1, UnitPrice: d("100"), Unit: product.UnitDay, RentalEnd: date(10)},
	}

	fee := LateFee(lines, DefaultLateFeeTable(), date(10))
	assert.True(t, fee.IsZero(), "fee = %s", fee)

	fee = LateFee(lines, DefaultLateFeeTable(), date(8))
	assert.True(t, fee.IsZero(), "early return fee = %s", fee)
}

func TestLateFee_TwoDaysOverdue(t *testing.T) {
	// DAY unit at 100/day, rentalEnd day 10, returned day 12, quantity 1.
	lines := []Line{
		{Quantity: 1, UnitPrice: d("100"), Unit: product.UnitDay, RentalEnd: date(10)},
	}

	fee := LateFee(lines, DefaultLateFeeTable(), date(12))
	assert.True(t, d("200").Equal(fee), "fee = %s", fee)
}

func TestLateFee_PartialPeriodRoundsUp(t *testing.T) {
	lines := []Line{
		{Quantity: 2, UnitPrice: d("100"), Unit: product.UnitDay, RentalEnd: date(10)},
	}

	// One hour late on a daily rental bills a full day for both units.
	fee := LateFee(lines, DefaultLateFeeTable(), date(10).Add(time.Hour))
	assert.True(t, d("200").Equal(fee), "fee = %s", fee)
}

func TestLateFee_MeasuredAgainstLatestEnd(t *testing.T) {
	lines := []Line{
		{Quantity: 1, UnitPrice: d("50"), Unit: product.UnitDay, RentalEnd: date(8)},
		{Quantity: 1, UnitPrice: d("100"), Unit: product.UnitDay, RentalEnd: date(10)},
	}

	// Returned on day 10: within the latest window, no fee even though the
	// first line's own end has passed.
	fee := LateFee(lines, DefaultLateFeeTable(), date(10))
	assert.True(t, fee.IsZero(), "fee = %s", fee)

	// One day past the latest end: both lines bill one period.
	fee = LateFee(lines, DefaultLateFeeTable(), date(11))
	assert.True(t, d("150").Equal(fee), "fee = %s", fee)
}

func TestLateFee_MixedUnits(t *testing.T) {
	end := date(10)
	lines := []Line{
		{Quantity: 1, UnitPrice: d("10"), Unit: product.UnitHour, RentalEnd: end},
		{Quantity: 1, UnitPrice: d("100"), Unit: product.UnitDay, RentalEnd: end},
	}

	// 25 hours late: 25 hourly periods, 2 daily periods.
	fee := LateFee(lines, DefaultLateFeeTable(), end.Add(25*time.Hour))
	require.True(t, d("450").Equal(fee), "fee = %s", fee)
}

func TestLateFee_EmptyOrder(t *testing.T) {
	fee := LateFee(nil, DefaultLateFeeTable(), date(12))
	assert.True(t, fee.IsZero())
}
