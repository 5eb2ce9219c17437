package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type GetProductForOrderParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

const productColumns = `id, restaurant_id, name, base_price, track_quantity, quantity, stock_alert, is_active, created_at, updated_at`

const getProductForOrder = `
SELECT ` + productColumns + `
FROM products
WHERE id = $1 AND restaurant_id = $2 AND is_active = true
`

func (q *Queries) GetProductForOrder(ctx context.Context, arg GetProductForOrderParams) (Product, error) {
	row := q.db.QueryRow(ctx, getProductForOrder, arg.ID, arg.RestaurantID)
	return scanProduct(row)
}

type GetProductForUpdateParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

// getProductForUpdate takes a row lock so the read-compute-write on quantity
// is serialized against concurrent checkouts.
const getProductForUpdate = `
SELECT ` + productColumns + `
FROM products
WHERE id = $1 AND restaurant_id = $2
FOR NO KEY UPDATE
`

func (q *Queries) GetProductForUpdate(ctx context.Context, arg GetProductForUpdateParams) (Product, error) {
	row := q.db.QueryRow(ctx, getProductForUpdate, arg.ID, arg.RestaurantID)
	return scanProduct(row)
}

type UpdateProductQuantityParams struct {
	ID       uuid.UUID
	Quantity int32
}

const updateProductQuantity = `
UPDATE products
SET quantity = $2, updated_at = now()
WHERE id = $1
`

func (q *Queries) UpdateProductQuantity(ctx context.Context, arg UpdateProductQuantityParams) error {
	_, err := q.db.Exec(ctx, updateProductQuantity, arg.ID, arg.Quantity)
	return err
}

func scanProduct(row interface{ Scan(dest ...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.RestaurantID, &p.Name, &p.BasePrice, &p.TrackQuantity, &p.Quantity, &p.StockAlert, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const getSizeForOrder = `
SELECT id, product_id, name, price_adjustment
FROM product_sizes
WHERE id = $1
`

func (q *Queries) GetSizeForOrder(ctx context.Context, id uuid.UUID) (ProductSize, error) {
	row := q.db.QueryRow(ctx, getSizeForOrder, id)
	var s ProductSize
	err := row.Scan(&s.ID, &s.ProductID, &s.Name, &s.PriceAdjustment)
	return s, err
}

// GetAddonForOrderRow carries the addon link plus the linked product's name
// and resolved price (override if set, otherwise the product's base price).
type GetAddonForOrderRow struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	AddonProductID uuid.UUID
	Name           string
	ResolvedPrice  pgtype.Numeric
}

const getAddonForOrder = `
SELECT pa.id, pa.product_id, pa.addon_product_id, p.name, COALESCE(pa.price, p.base_price) AS resolved_price
FROM product_addons pa
JOIN products p ON p.id = pa.addon_product_id
WHERE pa.id = $1
`

func (q *Queries) GetAddonForOrder(ctx context.Context, id uuid.UUID) (GetAddonForOrderRow, error) {
	row := q.db.QueryRow(ctx, getAddonForOrder, id)
	var a GetAddonForOrderRow
	err := row.Scan(&a.ID, &a.ProductID, &a.AddonProductID, &a.Name, &a.ResolvedPrice)
	return a, err
}

type CreateStockLogParams struct {
	ProductID      uuid.UUID
	QuantityBefore int32
	QuantityChange int32
	QuantityAfter  int32
	Type           string
	Note           pgtype.Text
	OrderID        pgtype.UUID
	CreatedBy      pgtype.UUID
}

const createStockLog = `
INSERT INTO stock_logs (product_id, quantity_before, quantity_change, quantity_after, type, note, order_id, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, product_id, quantity_before, quantity_change, quantity_after, type, note, order_id, created_by, created_at
`

func (q *Queries) CreateStockLog(ctx context.Context, arg CreateStockLogParams) (StockLog, error) {
	row := q.db.QueryRow(ctx, createStockLog,
		arg.ProductID, arg.QuantityBefore, arg.QuantityChange, arg.QuantityAfter,
		arg.Type, arg.Note, arg.OrderID, arg.CreatedBy)
	return scanStockLog(row)
}

type ListStockLogsByProductParams struct {
	ProductID uuid.UUID
	Limit     int32
	Offset    int32
}

const listStockLogsByProduct = `
SELECT id, product_id, quantity_before, quantity_change, quantity_after, type, note, order_id, created_by, created_at
FROM stock_logs
WHERE product_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

func (q *Queries) ListStockLogsByProduct(ctx context.Context, arg ListStockLogsByProductParams) ([]StockLog, error) {
	rows, err := q.db.Query(ctx, listStockLogsByProduct, arg.ProductID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []StockLog
	for rows.Next() {
		l, err := scanStockLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func scanStockLog(row interface{ Scan(dest ...any) error }) (StockLog, error) {
	var l StockLog
	err := row.Scan(&l.ID, &l.ProductID, &l.QuantityBefore, &l.QuantityChange, &l.QuantityAfter, &l.Type, &l.Note, &l.OrderID, &l.CreatedBy, &l.CreatedAt)
	return l, err
}

const countLowStockProducts = `
SELECT COUNT(*)
FROM products
WHERE restaurant_id = $1 AND track_quantity = true AND is_active = true AND quantity <= stock_alert
`

func (q *Queries) CountLowStockProducts(ctx context.Context, restaurantID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countLowStockProducts, restaurantID)
	var n int64
	err := row.Scan(&n)
	return n, err
}

type GetProductParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

// getProduct fetches without the is_active filter; stock history and status
// views still apply to retired products.
const getProduct = `
SELECT ` + productColumns + `
FROM products
WHERE id = $1 AND restaurant_id = $2
`

func (q *Queries) GetProduct(ctx context.Context, arg GetProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, getProduct, arg.ID, arg.RestaurantID)
	return scanProduct(row)
}
