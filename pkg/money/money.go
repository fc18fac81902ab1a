// Package money holds the rounding and quantity rules shared by pricing,
// checkout validation and inventory adjustment.
package money

import (
	"errors"
	"math"
)

var ErrInvalidPrice = errors.New("product price is not valid for checkout")

// Round rounds a KES amount to 2 decimal places. Every arithmetic boundary
// (line totals, subtotals, order totals) must pass through this so floating
// error never accumulates across items.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

// OrderQuantity clamps a client-supplied quantity to a positive integer.
func OrderQuantity(v float64) int {
	q := int(math.Floor(v))
	if q < 1 {
		return 1
	}
	return q
}

// StockQuantity clamps a quantity for inventory decrements, where zero is a
// valid no-op.
func StockQuantity(v float64) int {
	q := int(math.Floor(v))
	if q < 0 {
		return 0
	}
	return q
}

// UnitPrice resolves the effective unit price: the sale price when one is set,
// otherwise the regular price. Returns ErrInvalidPrice when the resolved
// price is not positive.
func UnitPrice(salePrice, regularPrice float64) (float64, error) {
	price := regularPrice
	if salePrice > 0 {
		price = salePrice
	}
	price = Round(price)
	if price <= 0 {
		return 0, ErrInvalidPrice
	}
	return price, nil
}

// LineTotal computes quantity * unitPrice rounded to cents.
func LineTotal(unitPrice float64, quantity int) float64 {
	return Round(unitPrice * float64(quantity))
}

// Total computes the order total from its components, flooring at zero.
func Total(subtotal, shipping, tax, discount float64) float64 {
	return Round(math.Max(0, subtotal+shipping+tax-discount))
}
