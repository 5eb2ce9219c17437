package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, restaurant_id, order_number, customer_id, table_id, discount_id, order_type, status, kitchen_status, subtotal, tax_amount, discount_amount, loyalty_amount, total_amount, notes, completed_at, created_by, created_at, updated_at`

type CreateOrderParams struct {
	RestaurantID   uuid.UUID
	OrderNumber    string
	CustomerID     pgtype.UUID
	TableID        pgtype.UUID
	DiscountID     pgtype.UUID
	OrderType      string
	Status         string
	KitchenStatus  string
	Subtotal       pgtype.Numeric
	TaxAmount      pgtype.Numeric
	DiscountAmount pgtype.Numeric
	LoyaltyAmount  pgtype.Numeric
	TotalAmount    pgtype.Numeric
	Notes          pgtype.Text
	CreatedBy      uuid.UUID
}

const createOrder = `
INSERT INTO orders (restaurant_id, order_number, customer_id, table_id, discount_id, order_type, status, kitchen_status, subtotal, tax_amount, discount_amount, loyalty_amount, total_amount, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING ` + orderColumns + `
`

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.RestaurantID, arg.OrderNumber, arg.CustomerID, arg.TableID, arg.DiscountID,
		arg.OrderType, arg.Status, arg.KitchenStatus,
		arg.Subtotal, arg.TaxAmount, arg.DiscountAmount, arg.LoyaltyAmount, arg.TotalAmount,
		arg.Notes, arg.CreatedBy)
	return scanOrder(row)
}

type CreateOrderItemParams struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	SizeID    pgtype.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
	Total     pgtype.Numeric
	Addons    []byte
	Notes     pgtype.Text
}

const createOrderItem = `
INSERT INTO order_items (order_id, product_id, size_id, quantity, unit_price, total, addons, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, order_id, product_id, size_id, quantity, unit_price, total, addons, notes, created_at
`

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.ProductID, arg.SizeID, arg.Quantity,
		arg.UnitPrice, arg.Total, arg.Addons, arg.Notes)
	return scanOrderItem(row)
}

type CreatePaymentParams struct {
	OrderID       uuid.UUID
	Method        string
	Amount        pgtype.Numeric
	Status        string
	TransactionID string
}

const createPayment = `
INSERT INTO payments (order_id, method, amount, status, transaction_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, order_id, method, amount, status, transaction_id, processed_at
`

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPayment, arg.OrderID, arg.Method, arg.Amount, arg.Status, arg.TransactionID)
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Method, &p.Amount, &p.Status, &p.TransactionID, &p.ProcessedAt)
	return p, err
}

type GetOrderParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

const getOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND restaurant_id = $2
`

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, arg.ID, arg.RestaurantID)
	return scanOrder(row)
}

type ListOrdersParams struct {
	RestaurantID uuid.UUID
	Status       pgtype.Text
	Limit        int32
	Offset       int32
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE restaurant_id = $1
  AND ($2::text IS NULL OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.RestaurantID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const listOrderItemsByOrder = `
SELECT id, order_id, product_id, size_id, quantity, unit_price, total, addons, notes, created_at
FROM order_items
WHERE order_id = $1
ORDER BY created_at
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const getPaymentByOrder = `
SELECT id, order_id, method, amount, status, transaction_id, processed_at
FROM payments
WHERE order_id = $1
`

func (q *Queries) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (Payment, error) {
	row := q.db.QueryRow(ctx, getPaymentByOrder, orderID)
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Method, &p.Amount, &p.Status, &p.TransactionID, &p.ProcessedAt)
	return p, err
}

type UpdateOrderStatusParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Status       string
}

const updateOrderStatus = `
UPDATE orders
SET status = $3, updated_at = now()
WHERE id = $1 AND restaurant_id = $2
RETURNING ` + orderColumns + `
`

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.RestaurantID, arg.Status)
	return scanOrder(row)
}

type UpdateKitchenStatusParams struct {
	ID            uuid.UUID
	RestaurantID  uuid.UUID
	KitchenStatus string
	CompletedAt   pgtype.Timestamptz
}

const updateKitchenStatus = `
UPDATE orders
SET kitchen_status = $3, completed_at = COALESCE($4, completed_at), updated_at = now()
WHERE id = $1 AND restaurant_id = $2
RETURNING ` + orderColumns + `
`

func (q *Queries) UpdateKitchenStatus(ctx context.Context, arg UpdateKitchenStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateKitchenStatus, arg.ID, arg.RestaurantID, arg.KitchenStatus, arg.CompletedAt)
	return scanOrder(row)
}

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.RestaurantID, &o.OrderNumber, &o.CustomerID, &o.TableID, &o.DiscountID,
		&o.OrderType, &o.Status, &o.KitchenStatus,
		&o.Subtotal, &o.TaxAmount, &o.DiscountAmount, &o.LoyaltyAmount, &o.TotalAmount,
		&o.Notes, &o.CompletedAt, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func scanOrderItem(row interface{ Scan(dest ...any) error }) (OrderItem, error) {
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.SizeID, &it.Quantity,
		&it.UnitPrice, &it.Total, &it.Addons, &it.Notes, &it.CreatedAt)
	return it, err
}
