package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/sajikita/pos-api/internal/database"
	"github.com/sajikita/pos-api/internal/discount"
	"github.com/sajikita/pos-api/internal/enum"
	"github.com/sajikita/pos-api/internal/middleware"
	"github.com/sajikita/pos-api/internal/pricing"
	"github.com/sajikita/pos-api/internal/service"
	"github.com/sajikita/pos-api/internal/ws"
)

// CheckoutServicer defines the service methods needed by order handlers.
// Satisfied by *service.CheckoutService; narrow interface for testability.
type CheckoutServicer interface {
	Checkout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error)
}

// OrderStore defines the database methods needed by order read/update handlers.
type OrderStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (database.Payment, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateKitchenStatus(ctx context.Context, arg database.UpdateKitchenStatusParams) (database.Order, error)
}

// OrderBroadcaster pushes order events to the front-of-house boards.
// Satisfied by *ws.Hub.
type OrderBroadcaster interface {
	BroadcastToRestaurant(restaurantID uuid.UUID, event ws.Event)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   CheckoutServicer
	store OrderStore
	hub   OrderBroadcaster
}

func NewOrderHandler(svc CheckoutServicer, store OrderStore, hub OrderBroadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a restaurant-scoped subrouter:
// /restaurants/{rid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Checkout)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Patch("/{id}/kitchen-status", h.UpdateKitchenStatus)
}

// --- Request / Response types ---

type checkoutRequest struct {
	OrderType             string                        `json:"order_type"`
	PaymentMethod         string                        `json:"payment_method"`
	TableID               string                        `json:"table_id"`
	CustomerID            string                        `json:"customer_id"`
	DiscountCode          string                        `json:"discount_code"`
	LoyaltyPointsRedeemed int32                         `json:"loyalty_points_redeemed"`
	Notes                 string                        `json:"notes"`
	Items                 []service.CheckoutItemRequest `json:"items"`
}

type orderResponse struct {
	ID             uuid.UUID           `json:"id"`
	RestaurantID   uuid.UUID           `json:"restaurant_id"`
	OrderNumber    string              `json:"order_number"`
	CustomerID     *string             `json:"customer_id"`
	TableID        *string             `json:"table_id"`
	DiscountID     *string             `json:"discount_id"`
	OrderType      string              `json:"order_type"`
	Status         string              `json:"status"`
	KitchenStatus  string              `json:"kitchen_status"`
	Subtotal       string              `json:"subtotal"`
	TaxAmount      string              `json:"tax_amount"`
	DiscountAmount string              `json:"discount_amount"`
	LoyaltyAmount  string              `json:"loyalty_amount"`
	TotalAmount    string              `json:"total_amount"`
	Notes          *string             `json:"notes"`
	CompletedAt    *time.Time          `json:"completed_at"`
	CreatedBy      uuid.UUID           `json:"created_by"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Items          []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	SizeID    *string         `json:"size_id"`
	Quantity  int32           `json:"quantity"`
	UnitPrice string          `json:"unit_price"`
	Total     string          `json:"total"`
	Addons    json.RawMessage `json:"addons"`
	Notes     *string         `json:"notes"`
}

type paymentResponse struct {
	ID            uuid.UUID `json:"id"`
	OrderID       uuid.UUID `json:"order_id"`
	Method        string    `json:"method"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// orderDetailResponse extends orderResponse with the payment for detail reads.
type orderDetailResponse struct {
	orderResponse
	Payment *paymentResponse `json:"payment"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type updateKitchenStatusRequest struct {
	KitchenStatus string `json:"kitchen_status"`
}

// --- Handlers ---

// Checkout handles POST /restaurants/{rid}/orders. The whole cart commits
// atomically in the service; this layer only shapes I/O and maps errors.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.Checkout(r.Context(), service.CheckoutRequest{
		RestaurantID:          restaurantID,
		CreatedBy:             claims.UserID,
		OrderType:             req.OrderType,
		PaymentMethod:         req.PaymentMethod,
		TableID:               req.TableID,
		CustomerID:            req.CustomerID,
		DiscountCode:          req.DiscountCode,
		LoyaltyPointsRedeemed: req.LoyaltyPointsRedeemed,
		Notes:                 req.Notes,
		Items:                 req.Items,
		Capabilities:          capabilitiesForRole(claims.Role),
	})
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	resp := toCheckoutResponse(result)
	h.broadcast(restaurantID, "order.created", resp)
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /restaurants/{rid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		RestaurantID: restaurantID,
		Limit:        int32(limit),
		Offset:       int32(offset),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		if !validOrderStatus(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Limit: limit, Offset: offset})
}

// Get handles GET /restaurants/{rid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{ID: orderID, RestaurantID: restaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	detail := orderDetailResponse{orderResponse: dbOrderToResponse(order)}
	detail.Items = make([]orderItemResponse, len(items))
	for i, item := range items {
		detail.Items[i] = dbOrderItemToResponse(item)
	}

	payment, err := h.store.GetPaymentByOrder(r.Context(), orderID)
	switch {
	case err == nil:
		p := dbPaymentToResponse(payment)
		detail.Payment = &p
	case errors.Is(err, pgx.ErrNoRows):
		// no payment row; leave null
	default:
		log.Printf("ERROR: get payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// UpdateStatus handles PATCH /restaurants/{rid}/orders/{id}/status.
// Any of the six statuses may be assigned; only membership is checked.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !validOrderStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	order, err := h.store.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{
		ID:           orderID,
		RestaurantID: restaurantID,
		Status:       req.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: update order status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbOrderToResponse(order)
	h.broadcast(restaurantID, "order.status_updated", resp)
	writeJSON(w, http.StatusOK, resp)
}

// UpdateKitchenStatus handles PATCH /restaurants/{rid}/orders/{id}/kitchen-status.
// COMPLETED stamps completed_at; the stamp survives later reassignments.
func (h *OrderHandler) UpdateKitchenStatus(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateKitchenStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !validKitchenStatus(req.KitchenStatus) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid kitchen status"})
		return
	}

	arg := database.UpdateKitchenStatusParams{
		ID:            orderID,
		RestaurantID:  restaurantID,
		KitchenStatus: req.KitchenStatus,
	}
	if req.KitchenStatus == enum.KitchenStatusCompleted {
		arg.CompletedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	}

	order, err := h.store.UpdateKitchenStatus(r.Context(), arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: update kitchen status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbOrderToResponse(order)
	h.broadcast(restaurantID, "order.kitchen_status_updated", resp)
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// capabilitiesForRole maps the JWT role onto what the checkout may do.
// Kitchen and waiter staff ring up orders but cannot apply discounts or
// touch loyalty balances.
func capabilitiesForRole(role string) service.Capabilities {
	switch role {
	case enum.UserRoleOwner, enum.UserRoleManager, enum.UserRoleCashier:
		return service.Capabilities{ApplyDiscount: true, RedeemLoyalty: true}
	default:
		return service.Capabilities{}
	}
}

func validOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusPreparing, enum.OrderStatusReady,
		enum.OrderStatusServed, enum.OrderStatusPaid, enum.OrderStatusCancelled:
		return true
	}
	return false
}

func validKitchenStatus(s string) bool {
	switch s {
	case enum.KitchenStatusPending, enum.KitchenStatusPreparing,
		enum.KitchenStatusReady, enum.KitchenStatusCompleted:
		return true
	}
	return false
}

func (h *OrderHandler) broadcast(restaurantID uuid.UUID, eventType string, payload any) {
	if h.hub == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	h.hub.BroadcastToRestaurant(restaurantID, ws.Event{Type: eventType, Payload: raw})
}

// writeCheckoutError maps service errors onto the HTTP taxonomy: malformed
// input and unknown references 400, rejected business rules 422, exhausted
// order-number retries 409, everything else 500.
func (h *OrderHandler) writeCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case isCheckoutValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case isBusinessRuleError(err):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNumberConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: checkout: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func isCheckoutValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidOrderType) ||
		errors.Is(err, service.ErrInvalidPaymentMethod) ||
		errors.Is(err, service.ErrInvalidProductID) ||
		errors.Is(err, service.ErrInvalidSizeID) ||
		errors.Is(err, service.ErrInvalidAddonID) ||
		errors.Is(err, service.ErrInvalidCustomerID) ||
		errors.Is(err, service.ErrInvalidTableID) ||
		errors.Is(err, service.ErrInvalidPrice) ||
		errors.Is(err, service.ErrInvalidPoints) ||
		errors.Is(err, service.ErrTableRequired) ||
		errors.Is(err, service.ErrCustomerRequired) ||
		errors.Is(err, service.ErrRestaurantNotFound) ||
		errors.Is(err, service.ErrProductNotFound) ||
		errors.Is(err, service.ErrSizeNotFound) ||
		errors.Is(err, service.ErrSizeMismatch) ||
		errors.Is(err, service.ErrAddonNotFound) ||
		errors.Is(err, service.ErrAddonMismatch) ||
		errors.Is(err, service.ErrTableNotFound) ||
		errors.Is(err, service.ErrCustomerNotFound) ||
		errors.Is(err, service.ErrDiscountNotFound) ||
		errors.Is(err, pricing.ErrInvalidQuantity) ||
		errors.Is(err, pricing.ErrNegativePrice) ||
		errors.Is(err, pricing.ErrNegativeTaxRate) ||
		errors.Is(err, pricing.ErrNegativeAmount)
}

func isBusinessRuleError(err error) bool {
	return errors.Is(err, discount.ErrInactive) ||
		errors.Is(err, discount.ErrBelowMinimum) ||
		errors.Is(err, discount.ErrLimitReached) ||
		errors.Is(err, discount.ErrNotStarted) ||
		errors.Is(err, discount.ErrExpired) ||
		errors.Is(err, discount.ErrUnknownType) ||
		errors.Is(err, service.ErrInsufficientPoints) ||
		errors.Is(err, service.ErrDiscountNotAllowed) ||
		errors.Is(err, service.ErrLoyaltyNotAllowed)
}

func toCheckoutResponse(result *service.CheckoutResult) orderDetailResponse {
	detail := orderDetailResponse{orderResponse: dbOrderToResponse(result.Order)}
	detail.Items = make([]orderItemResponse, len(result.Items))
	for i, item := range result.Items {
		detail.Items[i] = dbOrderItemToResponse(item)
	}
	p := dbPaymentToResponse(result.Payment)
	detail.Payment = &p
	return detail
}

func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		RestaurantID:   o.RestaurantID,
		OrderNumber:    o.OrderNumber,
		OrderType:      o.OrderType,
		Status:         o.Status,
		KitchenStatus:  o.KitchenStatus,
		Subtotal:       numericToString(o.Subtotal),
		TaxAmount:      numericToString(o.TaxAmount),
		DiscountAmount: numericToString(o.DiscountAmount),
		LoyaltyAmount:  numericToString(o.LoyaltyAmount),
		TotalAmount:    numericToString(o.TotalAmount),
		CreatedBy:      o.CreatedBy,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	if o.CustomerID.Valid {
		s := uuid.UUID(o.CustomerID.Bytes).String()
		resp.CustomerID = &s
	}
	if o.TableID.Valid {
		s := uuid.UUID(o.TableID.Bytes).String()
		resp.TableID = &s
	}
	if o.DiscountID.Valid {
		s := uuid.UUID(o.DiscountID.Bytes).String()
		resp.DiscountID = &s
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	if o.CompletedAt.Valid {
		t := o.CompletedAt.Time
		resp.CompletedAt = &t
	}
	return resp
}

func dbOrderItemToResponse(item database.OrderItem) orderItemResponse {
	resp := orderItemResponse{
		ID:        item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		UnitPrice: numericToString(item.UnitPrice),
		Total:     numericToString(item.Total),
	}
	if item.SizeID.Valid {
		s := uuid.UUID(item.SizeID.Bytes).String()
		resp.SizeID = &s
	}
	if len(item.Addons) > 0 {
		resp.Addons = json.RawMessage(item.Addons)
	}
	if item.Notes.Valid {
		resp.Notes = &item.Notes.String
	}
	return resp
}

func dbPaymentToResponse(p database.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Method:        p.Method,
		Amount:        numericToString(p.Amount),
		Status:        p.Status,
		TransactionID: p.TransactionID,
		ProcessedAt:   p.ProcessedAt,
	}
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
