package database

import (
	"context"

	"github.com/google/uuid"
)

type GetTableParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

const getTable = `
SELECT id, restaurant_id, number, status, created_at, updated_at
FROM dining_tables
WHERE id = $1 AND restaurant_id = $2
`

func (q *Queries) GetTable(ctx context.Context, arg GetTableParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx, getTable, arg.ID, arg.RestaurantID)
	var t DiningTable
	err := row.Scan(&t.ID, &t.RestaurantID, &t.Number, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

type UpdateTableStatusParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Status       string
}

const updateTableStatus = `
UPDATE dining_tables
SET status = $3, updated_at = now()
WHERE id = $1 AND restaurant_id = $2
RETURNING id, restaurant_id, number, status, created_at, updated_at
`

func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx, updateTableStatus, arg.ID, arg.RestaurantID, arg.Status)
	var t DiningTable
	err := row.Scan(&t.ID, &t.RestaurantID, &t.Number, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
