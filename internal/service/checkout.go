package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/sajikita/pos-api/internal/database"
	"github.com/sajikita/pos-api/internal/discount"
	"github.com/sajikita/pos-api/internal/enum"
	"github.com/sajikita/pos-api/internal/pricing"
)

// Validation errors (bad request shape).
var (
	ErrEmptyItems           = errors.New("order must contain at least one item")
	ErrInvalidOrderType     = errors.New("invalid order type")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidProductID     = errors.New("invalid product id")
	ErrInvalidSizeID        = errors.New("invalid size id")
	ErrInvalidAddonID       = errors.New("invalid addon id")
	ErrInvalidCustomerID    = errors.New("invalid customer id")
	ErrInvalidTableID       = errors.New("invalid table id")
	ErrInvalidPrice         = errors.New("invalid item price")
	ErrTableRequired        = errors.New("dine-in orders require a table")
	ErrCustomerRequired     = errors.New("loyalty redemption requires a customer")
)

// Business / reference errors.
var (
	ErrRestaurantNotFound  = errors.New("restaurant not found")
	ErrProductNotFound     = errors.New("product not found in restaurant")
	ErrSizeNotFound        = errors.New("size not found")
	ErrSizeMismatch        = errors.New("size does not belong to product")
	ErrAddonNotFound       = errors.New("addon not found")
	ErrAddonMismatch       = errors.New("addon does not belong to product")
	ErrTableNotFound       = errors.New("table not found in restaurant")
	ErrDiscountNotFound    = errors.New("discount code not found")
	ErrDiscountNotAllowed  = errors.New("role may not apply discounts")
	ErrLoyaltyNotAllowed   = errors.New("role may not redeem loyalty points")
	ErrOrderNumberConflict = errors.New("could not allocate a unique order number")
)

const maxOrderNumberRetries = 3

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CheckoutStore is every query the checkout transaction touches. Satisfied
// by *database.Queries.
type CheckoutStore interface {
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	GetProductForOrder(ctx context.Context, arg database.GetProductForOrderParams) (database.Product, error)
	GetSizeForOrder(ctx context.Context, id uuid.UUID) (database.ProductSize, error)
	GetAddonForOrder(ctx context.Context, id uuid.UUID) (database.GetAddonForOrderRow, error)
	GetDiscountByCodeForUpdate(ctx context.Context, arg database.GetDiscountByCodeParams) (database.Discount, error)
	IncrementDiscountUsage(ctx context.Context, id uuid.UUID) (database.Discount, error)
	GetTable(ctx context.Context, arg database.GetTableParams) (database.DiningTable, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.DiningTable, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)

	StockStore
	LoyaltyStore
}

// NewCheckoutStore creates a CheckoutStore bound to a pool or transaction.
type NewCheckoutStore func(db database.DBTX) CheckoutStore

type CheckoutService struct {
	pool     TxBeginner
	newStore NewCheckoutStore
}

func NewCheckoutService(pool TxBeginner, newStore NewCheckoutStore) *CheckoutService {
	return &CheckoutService{pool: pool, newStore: newStore}
}

// Capabilities are what the caller's role allows; the handler derives them
// from the JWT and the orchestrator enforces them.
type Capabilities struct {
	ApplyDiscount bool
	RedeemLoyalty bool
}

type CheckoutAddonRequest struct {
	ID       string `json:"id"`
	Quantity int32  `json:"quantity"`
}

type CheckoutItemRequest struct {
	ProductID string                 `json:"product_id"`
	SizeID    string                 `json:"size_id,omitempty"`
	Quantity  int32                  `json:"quantity"`
	Price     string                 `json:"price"`
	Notes     string                 `json:"notes,omitempty"`
	Addons    []CheckoutAddonRequest `json:"addons,omitempty"`
}

type CheckoutRequest struct {
	RestaurantID          uuid.UUID
	CreatedBy             uuid.UUID
	OrderType             string
	PaymentMethod         string
	TableID               string
	CustomerID            string
	DiscountCode          string
	LoyaltyPointsRedeemed int32
	Notes                 string
	Items                 []CheckoutItemRequest
	Capabilities          Capabilities
}

type CheckoutResult struct {
	Order   database.Order
	Items   []database.OrderItem
	Payment database.Payment
}

// addonSnapshot is the frozen copy of an addon stored on the order item;
// later price or catalog changes never touch committed orders.
type addonSnapshot struct {
	AddonID  uuid.UUID `json:"addon_id"`
	Name     string    `json:"name"`
	Price    string    `json:"price"`
	Quantity int32     `json:"quantity"`
}

// checkoutItem is a request item after shape validation, before catalog
// resolution.
type checkoutItem struct {
	ProductID uuid.UUID
	SizeID    uuid.UUID // uuid.Nil when absent
	Quantity  int32
	UnitPrice decimal.Decimal
	Notes     string
	Addons    []checkoutAddon
}

type checkoutAddon struct {
	ID       uuid.UUID
	Quantity int32
}

// resolvedItem pairs a validated item with its catalog rows.
type resolvedItem struct {
	req       checkoutItem
	product   database.Product
	lineTotal decimal.Decimal
	addonsRaw []byte
}

// Checkout runs the whole order transaction: resolve, price, re-validate the
// discount under lock, move stock and loyalty, persist order, items and
// payment, and mark the table. Everything commits or nothing does. A
// collision on the generated order number retries the full transaction.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	parsed, err := validateCheckoutRequest(req)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.checkoutTx(ctx, req, parsed)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: %v", ErrOrderNumberConflict, lastErr)
}

type parsedCheckout struct {
	items      []checkoutItem
	customerID uuid.UUID
	tableID    uuid.UUID
	redeem     int32
}

func validateCheckoutRequest(req CheckoutRequest) (parsedCheckout, error) {
	var p parsedCheckout

	switch req.OrderType {
	case enum.OrderTypeDineIn, enum.OrderTypeTakeaway, enum.OrderTypeDelivery:
	default:
		return p, ErrInvalidOrderType
	}
	switch req.PaymentMethod {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodOnline:
	default:
		return p, ErrInvalidPaymentMethod
	}
	if len(req.Items) == 0 {
		return p, ErrEmptyItems
	}

	if req.DiscountCode != "" && !req.Capabilities.ApplyDiscount {
		return p, ErrDiscountNotAllowed
	}
	if req.LoyaltyPointsRedeemed > 0 && !req.Capabilities.RedeemLoyalty {
		return p, ErrLoyaltyNotAllowed
	}
	if req.LoyaltyPointsRedeemed < 0 {
		return p, ErrInvalidPoints
	}
	p.redeem = req.LoyaltyPointsRedeemed

	if req.OrderType == enum.OrderTypeDineIn && req.TableID == "" {
		return p, ErrTableRequired
	}
	if req.TableID != "" {
		id, err := uuid.Parse(req.TableID)
		if err != nil {
			return p, ErrInvalidTableID
		}
		p.tableID = id
	}
	if req.CustomerID != "" {
		id, err := uuid.Parse(req.CustomerID)
		if err != nil {
			return p, ErrInvalidCustomerID
		}
		p.customerID = id
	}
	if p.redeem > 0 && p.customerID == uuid.Nil {
		return p, ErrCustomerRequired
	}

	p.items = make([]checkoutItem, 0, len(req.Items))
	for i, it := range req.Items {
		productID, err := uuid.Parse(it.ProductID)
		if err != nil {
			return p, fmt.Errorf("items[%d]: %w", i, ErrInvalidProductID)
		}
		if it.Quantity < 1 {
			return p, fmt.Errorf("items[%d]: %w", i, pricing.ErrInvalidQuantity)
		}
		price, err := decimal.NewFromString(it.Price)
		if err != nil {
			return p, fmt.Errorf("items[%d]: %w", i, ErrInvalidPrice)
		}
		if price.IsNegative() {
			return p, fmt.Errorf("items[%d]: %w", i, pricing.ErrNegativePrice)
		}

		item := checkoutItem{
			ProductID: productID,
			Quantity:  it.Quantity,
			UnitPrice: price,
			Notes:     it.Notes,
		}
		if it.SizeID != "" {
			sizeID, err := uuid.Parse(it.SizeID)
			if err != nil {
				return p, fmt.Errorf("items[%d]: %w", i, ErrInvalidSizeID)
			}
			item.SizeID = sizeID
		}
		for _, a := range it.Addons {
			addonID, err := uuid.Parse(a.ID)
			if err != nil {
				return p, fmt.Errorf("items[%d]: %w", i, ErrInvalidAddonID)
			}
			qty := a.Quantity
			if qty < 1 {
				qty = 1
			}
			item.Addons = append(item.Addons, checkoutAddon{ID: addonID, Quantity: qty})
		}
		p.items = append(p.items, item)
	}

	return p, nil
}

func (s *CheckoutService) checkoutTx(ctx context.Context, req CheckoutRequest, parsed parsedCheckout) (*CheckoutResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	restaurant, err := store.GetRestaurant(ctx, req.RestaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	taxRate := numericToDecimal(restaurant.TaxRate)

	resolved, subtotal, err := s.resolveItems(ctx, store, req.RestaurantID, parsed.items)
	if err != nil {
		return nil, err
	}

	// Discount: validated against the locked row so the usage counter can
	// never pass its limit under concurrency.
	var discountAmount decimal.Decimal
	var discountRow database.Discount
	if req.DiscountCode != "" {
		discountRow, err = store.GetDiscountByCodeForUpdate(ctx, database.GetDiscountByCodeParams{
			RestaurantID: req.RestaurantID,
			Code:         req.DiscountCode,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrDiscountNotFound
			}
			return nil, fmt.Errorf("lock discount: %w", err)
		}
		discountAmount, err = discount.Validate(discountSnapshot(discountRow), subtotal, time.Now())
		if err != nil {
			return nil, err
		}
	}

	loyaltyAmount := decimal.Zero
	if parsed.redeem > 0 {
		loyaltyAmount = pricing.RedemptionValue(parsed.redeem)
	}

	lines := make([]pricing.Line, len(resolved))
	for i, r := range resolved {
		lines[i] = pricing.Line{UnitPrice: r.req.UnitPrice, Quantity: r.req.Quantity}
	}
	totals, err := pricing.Compute(lines, taxRate, discountAmount, loyaltyAmount)
	if err != nil {
		return nil, err
	}

	// Resolve the order's row references up front; a dangling id must surface
	// as a not-found error, not as a foreign key violation from the insert.
	if req.OrderType == enum.OrderTypeDineIn {
		if _, err := store.GetTable(ctx, database.GetTableParams{ID: parsed.tableID, RestaurantID: req.RestaurantID}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrTableNotFound
			}
			return nil, fmt.Errorf("get table: %w", err)
		}
	}
	if parsed.customerID != uuid.Nil {
		// Locked read: holds the customer row for the redeem/earn writes below.
		if _, err := store.GetCustomerForUpdate(ctx, database.GetCustomerParams{ID: parsed.customerID, RestaurantID: req.RestaurantID}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrCustomerNotFound
			}
			return nil, fmt.Errorf("lock customer: %w", err)
		}
	}

	orderArg := database.CreateOrderParams{
		RestaurantID:   req.RestaurantID,
		OrderNumber:    generateOrderNumber(),
		OrderType:      req.OrderType,
		Status:         enum.OrderStatusPaid,
		KitchenStatus:  enum.KitchenStatusPending,
		Subtotal:       decimalToNumeric(totals.Subtotal),
		TaxAmount:      decimalToNumeric(totals.Tax),
		DiscountAmount: decimalToNumeric(totals.Discount),
		LoyaltyAmount:  decimalToNumeric(totals.Loyalty),
		TotalAmount:    decimalToNumeric(totals.Total),
		CreatedBy:      req.CreatedBy,
	}
	if parsed.customerID != uuid.Nil {
		orderArg.CustomerID = pgtypeUUID(parsed.customerID)
	}
	if parsed.tableID != uuid.Nil {
		orderArg.TableID = pgtypeUUID(parsed.tableID)
	}
	if req.DiscountCode != "" {
		orderArg.DiscountID = pgtypeUUID(discountRow.ID)
	}
	if req.Notes != "" {
		orderArg.Notes = pgtypeText(req.Notes)
	}

	order, err := store.CreateOrder(ctx, orderArg)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]database.OrderItem, 0, len(resolved))
	for i, r := range resolved {
		itemArg := database.CreateOrderItemParams{
			OrderID:   order.ID,
			ProductID: r.product.ID,
			Quantity:  r.req.Quantity,
			UnitPrice: decimalToNumeric(r.req.UnitPrice),
			Total:     decimalToNumeric(r.lineTotal),
			Addons:    r.addonsRaw,
		}
		if r.req.SizeID != uuid.Nil {
			itemArg.SizeID = pgtypeUUID(r.req.SizeID)
		}
		if r.req.Notes != "" {
			itemArg.Notes = pgtypeText(r.req.Notes)
		}
		item, err := store.CreateOrderItem(ctx, itemArg)
		if err != nil {
			return nil, fmt.Errorf("create order item %d: %w", i, err)
		}
		items = append(items, item)
	}

	// Payment is modeled as already authorized; capture is synchronous.
	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		OrderID:       order.ID,
		Method:        req.PaymentMethod,
		Amount:        decimalToNumeric(totals.Total),
		Status:        enum.PaymentStatusCompleted,
		TransactionID: uuid.New().String(),
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	for i, r := range resolved {
		if !r.product.TrackQuantity {
			continue
		}
		if _, err := applyStockChange(ctx, store, stockChange{
			ProductID:    r.product.ID,
			RestaurantID: req.RestaurantID,
			Delta:        -r.req.Quantity,
			Type:         enum.StockLogTypeSale,
			OrderID:      order.ID,
			CreatedBy:    req.CreatedBy,
		}); err != nil {
			return nil, fmt.Errorf("items[%d] stock: %w", i, err)
		}
	}

	if req.DiscountCode != "" {
		if _, err := store.IncrementDiscountUsage(ctx, discountRow.ID); err != nil {
			return nil, fmt.Errorf("increment discount usage: %w", err)
		}
	}

	if parsed.customerID != uuid.Nil {
		if parsed.redeem > 0 {
			if _, err := applyLoyaltyRedeem(ctx, store, req.RestaurantID, parsed.customerID, parsed.redeem, order.ID); err != nil {
				return nil, err
			}
		}
		if earned := pricing.EarnedPoints(totals.Total); earned > 0 {
			if _, err := applyLoyaltyEarn(ctx, store, req.RestaurantID, parsed.customerID, earned, order.ID); err != nil {
				return nil, err
			}
		}
	}

	if req.OrderType == enum.OrderTypeDineIn {
		if _, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
			ID:           parsed.tableID,
			RestaurantID: req.RestaurantID,
			Status:       enum.TableStatusOccupied,
		}); err != nil {
			return nil, fmt.Errorf("update table status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CheckoutResult{Order: order, Items: items, Payment: payment}, nil
}

// resolveItems loads and checks every catalog row the cart references, builds
// the frozen addon snapshots, and returns the summed subtotal.
func (s *CheckoutService) resolveItems(ctx context.Context, store CheckoutStore, restaurantID uuid.UUID, items []checkoutItem) ([]resolvedItem, decimal.Decimal, error) {
	resolved := make([]resolvedItem, 0, len(items))
	subtotal := decimal.Zero

	for i, it := range items {
		product, err := store.GetProductForOrder(ctx, database.GetProductForOrderParams{
			ID:           it.ProductID,
			RestaurantID: restaurantID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrProductNotFound)
			}
			return nil, decimal.Zero, fmt.Errorf("items[%d] get product: %w", i, err)
		}

		if it.SizeID != uuid.Nil {
			size, err := store.GetSizeForOrder(ctx, it.SizeID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrSizeNotFound)
				}
				return nil, decimal.Zero, fmt.Errorf("items[%d] get size: %w", i, err)
			}
			if size.ProductID != product.ID {
				return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrSizeMismatch)
			}
		}

		var snapshots []addonSnapshot
		for _, a := range it.Addons {
			addon, err := store.GetAddonForOrder(ctx, a.ID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrAddonNotFound)
				}
				return nil, decimal.Zero, fmt.Errorf("items[%d] get addon: %w", i, err)
			}
			if addon.ProductID != product.ID {
				return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrAddonMismatch)
			}
			snapshots = append(snapshots, addonSnapshot{
				AddonID:  addon.ID,
				Name:     addon.Name,
				Price:    numericToDecimal(addon.ResolvedPrice).StringFixed(2),
				Quantity: a.Quantity,
			})
		}

		var addonsRaw []byte
		if len(snapshots) > 0 {
			addonsRaw, err = json.Marshal(snapshots)
			if err != nil {
				return nil, decimal.Zero, fmt.Errorf("items[%d] marshal addons: %w", i, err)
			}
		}

		lineTotal, err := pricing.LineTotal(pricing.Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity})
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, err)
		}
		subtotal = subtotal.Add(lineTotal)

		resolved = append(resolved, resolvedItem{
			req:       it,
			product:   product,
			lineTotal: lineTotal,
			addonsRaw: addonsRaw,
		})
	}

	return resolved, subtotal, nil
}

// generateOrderNumber builds a human-facing order number; uniqueness comes
// from the DB constraint, collisions retry the transaction.
func generateOrderNumber() string {
	return fmt.Sprintf("SJK-%s-%04d", time.Now().Format("20060102"), rand.IntN(10000))
}

func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_restaurant_id_order_number_key"
	}
	return false
}

func discountSnapshot(d database.Discount) discount.Snapshot {
	snap := discount.Snapshot{
		Type:           d.Type,
		Value:          numericToDecimal(d.Value),
		MinOrderAmount: numericToDecimal(d.MinOrderAmount),
		UsedCount:      d.UsedCount,
		IsActive:       d.IsActive,
	}
	if d.MaxDiscountAmount.Valid {
		snap.MaxDiscountAmount = numericToDecimal(d.MaxDiscountAmount)
		snap.HasMaxDiscount = true
	}
	if d.UsageLimit.Valid {
		snap.UsageLimit = d.UsageLimit.Int32
		snap.HasUsageLimit = true
	}
	if d.StartsAt.Valid {
		snap.StartsAt = d.StartsAt.Time
		snap.HasStartsAt = true
	}
	if d.ExpiresAt.Valid {
		snap.ExpiresAt = d.ExpiresAt.Time
		snap.HasExpiresAt = true
	}
	return snap
}
