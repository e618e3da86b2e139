// Package pricing holds the financial calculations of the rental engine.
// Every function is pure: totals can be recomputed from persisted order
// lines at any time and always yield the same result.
//
// All money math runs on shopspring decimals. Rounding to the currency's
// minor unit (2 places, half-up) happens once, at the final amount, never
// at intermediate steps.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/renterra/rental-engine/internal/domain/product"
)

// Line carries the pricing-relevant fields of one order line. UnitPrice is
// the snapshot taken at quote time, not the product's current price.
type Line struct {
	Quantity  int
	UnitPrice decimal.Decimal
	Unit      product.RentalUnit
	RentalEnd time.Time
}

// Charges is the breakdown of an order's price.
type Charges struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// LineTotal returns quantity * unit price for a single line.
func LineTotal(l Line) decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Calculate derives subtotal, tax and total from order lines and the order's
// discount, shipping and tax rate (a percentage, e.g. 10 for 10%).
//
//	subtotal = Σ quantity * unitPrice
//	tax      = subtotal * taxRate / 100
//	total    = round2(subtotal - discount + shipping + tax)
func Calculate(lines []Line, discount, shipping, taxRate decimal.Decimal) Charges {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(LineTotal(l))
	}

	tax := subtotal.Mul(taxRate).Div(decimal.NewFromInt(100))
	total := subtotal.Sub(discount).Add(shipping).Add(tax)

	return Charges{
		Subtotal:  subtotal,
		TaxAmount: tax,
		Total:     total.Round(2),
	}
}

// LateFeeTable maps a rental unit to the duration of one billing period.
// The overage rate itself is each line's snapshot unit price; only the
// period lengths are configuration.
type LateFeeTable map[product.RentalUnit]time.Duration

// DefaultLateFeeTable returns the standard period lengths. A MONTH bills as
// 30 days.
func DefaultLateFeeTable() LateFeeTable {
	return LateFeeTable{
		product.UnitHour:  time.Hour,
		product.UnitDay:   24 * time.Hour,
		product.UnitWeek:  7 * 24 * time.Hour,
		product.UnitMonth: 30 * 24 * time.Hour,
	}
}

// LateFee computes the charge for returning an order late. The overage is
// measured against the latest rental end across all lines; each line then
// bills that overage at its own unit price and period length, with partial
// periods rounded up. Returning on time (or early) costs nothing.
func LateFee(lines []Line, table LateFeeTable, actualReturn time.Time) decimal.Decimal {
	var latestEnd time.Time
	for _, l := range lines {
		if l.RentalEnd.After(latestEnd) {
			latestEnd = l.RentalEnd
		}
	}
	if len(lines) == 0 || !actualReturn.After(latestEnd) {
		return decimal.Zero
	}

	overage := actualReturn.Sub(latestEnd)

	fee := decimal.Zero
	for _, l := range lines {
		period, ok := table[l.Unit]
		if !ok || period <= 0 {
			period = 24 * time.Hour
		}
		fee = fee.Add(LineTotal(l).Mul(decimal.NewFromInt(overagePeriods(overage, period))))
	}
	return fee.Round(2)
}

// overagePeriods returns how many whole billing periods cover the overage,
// rounding partial periods up. An hour late on a daily rental bills one day.
func overagePeriods(overage, period time.Duration) int64 {
	n := int64(overage / period)
	if overage%period != 0 {
		n++
	}
	return n
}
