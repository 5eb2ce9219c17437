// Package pricing computes checkout money amounts. Everything here is pure:
// no I/O, no clock, rounding fixed at two decimal places.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be >= 1")
	ErrNegativePrice   = errors.New("price must not be negative")
	ErrNegativeTaxRate = errors.New("tax rate must not be negative")
	ErrNegativeAmount  = errors.New("amount must not be negative")
)

// Line is a single cart line. UnitPrice is the caller-supplied authoritative
// price (base price plus size adjustment, as shown to the customer); add-on
// charges are frozen per item and do not roll into the subtotal.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int32
}

// Totals is the fully derived money breakdown for one order.
// Total == Subtotal + Tax - Discount - Loyalty always holds.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Loyalty  decimal.Decimal
	Total    decimal.Decimal
}

// LineTotal returns unit price x quantity rounded to two decimals.
func LineTotal(l Line) (decimal.Decimal, error) {
	if l.Quantity < 1 {
		return decimal.Zero, ErrInvalidQuantity
	}
	if l.UnitPrice.IsNegative() {
		return decimal.Zero, ErrNegativePrice
	}
	return l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity)).Round(2), nil
}

// Compute derives subtotal, tax and total from the cart lines. Discounts and
// loyalty redemptions reduce the subtotal before tax is applied; the final
// total is clamped at zero.
func Compute(lines []Line, taxRate, discountAmount, loyaltyAmount decimal.Decimal) (Totals, error) {
	if taxRate.IsNegative() {
		return Totals{}, ErrNegativeTaxRate
	}
	if discountAmount.IsNegative() || loyaltyAmount.IsNegative() {
		return Totals{}, ErrNegativeAmount
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		lt, err := LineTotal(l)
		if err != nil {
			return Totals{}, err
		}
		subtotal = subtotal.Add(lt)
	}

	taxable := subtotal.Sub(discountAmount).Sub(loyaltyAmount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	tax := taxable.Mul(taxRate).Round(2)

	total := subtotal.Add(tax).Sub(discountAmount).Sub(loyaltyAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal.Round(2),
		Tax:      tax,
		Discount: discountAmount.Round(2),
		Loyalty:  loyaltyAmount.Round(2),
		Total:    total.Round(2),
	}, nil
}

// EarnedPoints is the loyalty accrual policy: one point per whole currency
// unit of the final total.
func EarnedPoints(total decimal.Decimal) int32 {
	if total.IsNegative() {
		return 0
	}
	return int32(total.IntPart())
}

// RedemptionValue converts redeemed points to money: 1 point = 0.01.
func RedemptionValue(points int32) decimal.Decimal {
	if points <= 0 {
		return decimal.Zero
	}
	return decimal.New(int64(points), -2)
}
