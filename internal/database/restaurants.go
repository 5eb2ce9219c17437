package database

import (
	"context"

	"github.com/google/uuid"
)

const getRestaurant = `
SELECT id, name, tax_rate, created_at, updated_at
FROM restaurants
WHERE id = $1
`

func (q *Queries) GetRestaurant(ctx context.Context, id uuid.UUID) (Restaurant, error) {
	row := q.db.QueryRow(ctx, getRestaurant, id)
	var r Restaurant
	err := row.Scan(&r.ID, &r.Name, &r.TaxRate, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}
