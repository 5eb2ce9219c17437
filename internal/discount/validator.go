// Package discount holds the stateless coupon eligibility check. The same
// validation runs at "apply code" time in the UI flow and again inside the
// checkout transaction against a locked row.
package discount

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Rejection reasons, in the order the rules are checked. The first failing
// rule determines the reported reason.
var (
	ErrInactive     = errors.New("discount is not active")
	ErrBelowMinimum = errors.New("order subtotal is below the discount minimum")
	ErrLimitReached = errors.New("discount usage limit reached")
	ErrNotStarted   = errors.New("discount is not valid yet")
	ErrExpired      = errors.New("discount has expired")
	ErrUnknownType  = errors.New("unknown discount type")
)

const (
	TypePercentage = "PERCENTAGE"
	TypeFixed      = "FIXED"
)

// Snapshot is the immutable view of a discount row used for validation.
type Snapshot struct {
	Type              string
	Value             decimal.Decimal
	MinOrderAmount    decimal.Decimal
	MaxDiscountAmount decimal.Decimal
	HasMaxDiscount    bool
	UsageLimit        int32
	HasUsageLimit     bool
	UsedCount         int32
	StartsAt          time.Time
	HasStartsAt       bool
	ExpiresAt         time.Time
	HasExpiresAt      bool
	IsActive          bool
}

// Validate checks eligibility against the given subtotal and returns the
// discount amount. Rules run in a fixed order; the activity window is
// inclusive of the whole start and expiry days.
func Validate(d Snapshot, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !d.IsActive {
		return decimal.Zero, ErrInactive
	}
	if subtotal.LessThan(d.MinOrderAmount) {
		return decimal.Zero, ErrBelowMinimum
	}
	if d.HasUsageLimit && d.UsedCount >= d.UsageLimit {
		return decimal.Zero, ErrLimitReached
	}
	if d.HasStartsAt && now.Before(startOfDay(d.StartsAt)) {
		return decimal.Zero, ErrNotStarted
	}
	if d.HasExpiresAt && now.After(endOfDay(d.ExpiresAt)) {
		return decimal.Zero, ErrExpired
	}
	return Amount(d, subtotal)
}

// Amount computes the discount value for an eligible subtotal. Percentage
// discounts are capped at MaxDiscountAmount when set; neither type ever
// exceeds the subtotal, so a total can never go negative from a coupon.
func Amount(d Snapshot, subtotal decimal.Decimal) (decimal.Decimal, error) {
	switch d.Type {
	case TypePercentage:
		amount := subtotal.Mul(d.Value).Div(decimal.NewFromInt(100)).Round(2)
		if d.HasMaxDiscount && amount.GreaterThan(d.MaxDiscountAmount) {
			amount = d.MaxDiscountAmount.Round(2)
		}
		if amount.GreaterThan(subtotal) {
			amount = subtotal.Round(2)
		}
		return amount, nil
	case TypeFixed:
		amount := d.Value
		if amount.GreaterThan(subtotal) {
			amount = subtotal
		}
		return amount.Round(2), nil
	}
	return decimal.Zero, ErrUnknownType
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
