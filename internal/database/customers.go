package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const customerColumns = `id, restaurant_id, name, phone, loyalty_points, created_at, updated_at`

type GetCustomerParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

const getCustomer = `
SELECT ` + customerColumns + `
FROM customers
WHERE id = $1 AND restaurant_id = $2
`

func (q *Queries) GetCustomer(ctx context.Context, arg GetCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, getCustomer, arg.ID, arg.RestaurantID)
	return scanCustomer(row)
}

// getCustomerForUpdate locks the customer row for the balance
// read-modify-write during redeem/earn.
const getCustomerForUpdate = `
SELECT ` + customerColumns + `
FROM customers
WHERE id = $1 AND restaurant_id = $2
FOR NO KEY UPDATE
`

func (q *Queries) GetCustomerForUpdate(ctx context.Context, arg GetCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, getCustomerForUpdate, arg.ID, arg.RestaurantID)
	return scanCustomer(row)
}

type UpdateCustomerPointsParams struct {
	ID            uuid.UUID
	LoyaltyPoints int32
}

const updateCustomerPoints = `
UPDATE customers
SET loyalty_points = $2, updated_at = now()
WHERE id = $1
`

func (q *Queries) UpdateCustomerPoints(ctx context.Context, arg UpdateCustomerPointsParams) error {
	_, err := q.db.Exec(ctx, updateCustomerPoints, arg.ID, arg.LoyaltyPoints)
	return err
}

type CreateLoyaltyTransactionParams struct {
	CustomerID uuid.UUID
	Type       string
	Points     int32
	OrderID    pgtype.UUID
	Note       pgtype.Text
}

const createLoyaltyTransaction = `
INSERT INTO loyalty_transactions (customer_id, type, points, order_id, note)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, customer_id, type, points, order_id, note, created_at
`

func (q *Queries) CreateLoyaltyTransaction(ctx context.Context, arg CreateLoyaltyTransactionParams) (LoyaltyTransaction, error) {
	row := q.db.QueryRow(ctx, createLoyaltyTransaction, arg.CustomerID, arg.Type, arg.Points, arg.OrderID, arg.Note)
	return scanLoyaltyTransaction(row)
}

const listLoyaltyTransactionsByCustomer = `
SELECT id, customer_id, type, points, order_id, note, created_at
FROM loyalty_transactions
WHERE customer_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListLoyaltyTransactionsByCustomer(ctx context.Context, customerID uuid.UUID) ([]LoyaltyTransaction, error) {
	rows, err := q.db.Query(ctx, listLoyaltyTransactionsByCustomer, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []LoyaltyTransaction
	for rows.Next() {
		tx, err := scanLoyaltyTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanCustomer(row interface{ Scan(dest ...any) error }) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.RestaurantID, &c.Name, &c.Phone, &c.LoyaltyPoints, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanLoyaltyTransaction(row interface{ Scan(dest ...any) error }) (LoyaltyTransaction, error) {
	var tx LoyaltyTransaction
	err := row.Scan(&tx.ID, &tx.CustomerID, &tx.Type, &tx.Points, &tx.OrderID, &tx.Note, &tx.CreatedAt)
	return tx, err
}
