package product

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a product does not exist.
var ErrNotFound = fmt.Errorf("product not found")

// RentalUnit is the billing period a product is rented by.
type RentalUnit string

const (
	UnitHour  RentalUnit = "HOUR"
	UnitDay   RentalUnit = "DAY"
	UnitWeek  RentalUnit = "WEEK"
	UnitMonth RentalUnit = "MONTH"
)

// Valid reports whether u is one of the known rental units.
func (u RentalUnit) Valid() bool {
	switch u {
	case UnitHour, UnitDay, UnitWeek, UnitMonth:
		return true
	}
	return false
}

// Product is a rentable catalog item. QuantityOnHand is the total number of
// units the vendor owns, not a live counter; availability for a date window
// is always derived from it and the active reservations.
type Product struct {
	ID             string
	VendorID       string
	Name           string
	QuantityOnHand int
	UnitPrice      decimal.Decimal
	Unit           RentalUnit
}

// Repository defines read access to the product catalog. The rental engine
// never mutates products; vendor-side catalog edits happen elsewhere.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	List(ctx context.Context, vendorID string) ([]Product, error)
}
