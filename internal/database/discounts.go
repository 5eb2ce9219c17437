package database

import (
	"context"

	"github.com/google/uuid"
)

const discountColumns = `id, restaurant_id, code, name, type, value, min_order_amount, max_discount_amount, usage_limit, used_count, starts_at, expires_at, is_active, created_at, updated_at`

type GetDiscountByCodeParams struct {
	RestaurantID uuid.UUID
	Code         string
}

const getDiscountByCode = `
SELECT ` + discountColumns + `
FROM discounts
WHERE restaurant_id = $1 AND code = $2
`

func (q *Queries) GetDiscountByCode(ctx context.Context, arg GetDiscountByCodeParams) (Discount, error) {
	row := q.db.QueryRow(ctx, getDiscountByCode, arg.RestaurantID, arg.Code)
	return scanDiscount(row)
}

// getDiscountByCodeForUpdate locks the discount row so the eligibility check
// and the used_count increment happen against the same committed value.
const getDiscountByCodeForUpdate = `
SELECT ` + discountColumns + `
FROM discounts
WHERE restaurant_id = $1 AND code = $2
FOR NO KEY UPDATE
`

func (q *Queries) GetDiscountByCodeForUpdate(ctx context.Context, arg GetDiscountByCodeParams) (Discount, error) {
	row := q.db.QueryRow(ctx, getDiscountByCodeForUpdate, arg.RestaurantID, arg.Code)
	return scanDiscount(row)
}

const incrementDiscountUsage = `
UPDATE discounts
SET used_count = used_count + 1, updated_at = now()
WHERE id = $1
RETURNING ` + discountColumns + `

`

func (q *Queries) IncrementDiscountUsage(ctx context.Context, id uuid.UUID) (Discount, error) {
	row := q.db.QueryRow(ctx, incrementDiscountUsage, id)
	return scanDiscount(row)
}

func scanDiscount(row interface{ Scan(dest ...any) error }) (Discount, error) {
	var d Discount
	err := row.Scan(&d.ID, &d.RestaurantID, &d.Code, &d.Name, &d.Type, &d.Value,
		&d.MinOrderAmount, &d.MaxDiscountAmount, &d.UsageLimit, &d.UsedCount,
		&d.StartsAt, &d.ExpiresAt, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}
