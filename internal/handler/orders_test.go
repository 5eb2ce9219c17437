package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sajikita/pos-api/internal/auth"
	"github.com/sajikita/pos-api/internal/database"
	"github.com/sajikita/pos-api/internal/discount"
	"github.com/sajikita/pos-api/internal/enum"
	"github.com/sajikita/pos-api/internal/handler"
	"github.com/sajikita/pos-api/internal/middleware"
	"github.com/sajikita/pos-api/internal/service"
	"github.com/sajikita/pos-api/internal/ws"
)

// --- Mocks ---

type mockCheckoutService struct {
	checkoutFn func(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error)
}

func (m *mockCheckoutService) Checkout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error) {
	return m.checkoutFn(ctx, req)
}

type mockOrderStore struct {
	getOrderFn              func(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	listOrdersFn            func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	listOrderItemsByOrderFn func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	getPaymentByOrderFn     func(ctx context.Context, orderID uuid.UUID) (database.Payment, error)
	updateOrderStatusFn     func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	updateKitchenStatusFn   func(ctx context.Context, arg database.UpdateKitchenStatusParams) (database.Order, error)
}

func (m *mockOrderStore) GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, arg)
	}
	return database.Order{}, pgx.ErrNoRows
}
func (m *mockOrderStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, arg)
	}
	return []database.Order{}, nil
}
func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	if m.listOrderItemsByOrderFn != nil {
		return m.listOrderItemsByOrderFn(ctx, orderID)
	}
	return []database.OrderItem{}, nil
}
func (m *mockOrderStore) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (database.Payment, error) {
	if m.getPaymentByOrderFn != nil {
		return m.getPaymentByOrderFn(ctx, orderID)
	}
	return database.Payment{}, pgx.ErrNoRows
}
func (m *mockOrderStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	if m.updateOrderStatusFn != nil {
		return m.updateOrderStatusFn(ctx, arg)
	}
	return database.Order{}, pgx.ErrNoRows
}
func (m *mockOrderStore) UpdateKitchenStatus(ctx context.Context, arg database.UpdateKitchenStatusParams) (database.Order, error) {
	if m.updateKitchenStatusFn != nil {
		return m.updateKitchenStatusFn(ctx, arg)
	}
	return database.Order{}, pgx.ErrNoRows
}

// mockBroadcaster records broadcast events instead of pushing to sockets.
type mockBroadcaster struct {
	events []ws.Event
	rooms  []uuid.UUID
}

func (m *mockBroadcaster) BroadcastToRestaurant(restaurantID uuid.UUID, event ws.Event) {
	m.rooms = append(m.rooms, restaurantID)
	m.events = append(m.events, event)
}

// --- Test helpers ---

const testJWTSecret = "test-secret-for-orders"

func setupOrderRouter(svc *mockCheckoutService, store *mockOrderStore, hub *mockBroadcaster) *chi.Mux {
	var b handler.OrderBroadcaster
	if hub != nil {
		b = hub
	}
	h := handler.NewOrderHandler(svc, store, b)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/restaurants/{rid}/orders", h.RegisterRoutes)
	return r
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	token, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.RestaurantID, claims.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func testClaims(restaurantID uuid.UUID) *auth.Claims {
	return &auth.Claims{
		UserID:       uuid.New(),
		RestaurantID: restaurantID,
		Role:         enum.UserRoleCashier,
	}
}

func testNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func testCheckoutResult(restaurantID, userID uuid.UUID) *service.CheckoutResult {
	orderID := uuid.New()
	now := time.Now()
	return &service.CheckoutResult{
		Order: database.Order{
			ID:             orderID,
			RestaurantID:   restaurantID,
			OrderNumber:    "SJK-20260829-0042",
			OrderType:      enum.OrderTypeTakeaway,
			Status:         enum.OrderStatusPaid,
			KitchenStatus:  enum.KitchenStatusPending,
			Subtotal:       testNumeric("20.00"),
			TaxAmount:      testNumeric("2.00"),
			DiscountAmount: testNumeric("0.00"),
			LoyaltyAmount:  testNumeric("0.00"),
			TotalAmount:    testNumeric("22.00"),
			CreatedBy:      userID,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		Items: []database.OrderItem{
			{
				ID:        uuid.New(),
				OrderID:   orderID,
				ProductID: uuid.New(),
				Quantity:  2,
				UnitPrice: testNumeric("10.00"),
				Total:     testNumeric("20.00"),
			},
		},
		Payment: database.Payment{
			ID:            uuid.New(),
			OrderID:       orderID,
			Method:        enum.PaymentMethodCash,
			Amount:        testNumeric("22.00"),
			Status:        enum.PaymentStatusCompleted,
			TransactionID: uuid.New().String(),
			ProcessedAt:   now,
		},
	}
}

func checkoutBody(productID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"order_type":     "TAKEAWAY",
		"payment_method": "CASH",
		"items": []map[string]interface{}{
			{"product_id": productID.String(), "quantity": 2, "price": "10.00"},
		},
	}
}

// --- Checkout tests ---

func TestCheckoutEndpoint_HappyPath(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	hub := &mockBroadcaster{}

	svc := &mockCheckoutService{
		checkoutFn: func(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error) {
			if req.RestaurantID != restaurantID {
				t.Errorf("restaurant_id: got %v, want %v", req.RestaurantID, restaurantID)
			}
			if req.CreatedBy != claims.UserID {
				t.Errorf("created_by: got %v, want %v", req.CreatedBy, claims.UserID)
			}
			if !req.Capabilities.ApplyDiscount || !req.Capabilities.RedeemLoyalty {
				t.Errorf("cashier capabilities: got %+v", req.Capabilities)
			}
			return testCheckoutResult(restaurantID, claims.UserID), nil
		},
	}

	router := setupOrderRouter(svc, &mockOrderStore{}, hub)
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/orders", checkoutBody(uuid.New()), claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeJSONBody(t, rr)
	if resp["order_number"] != "SJK-20260829-0042" {
		t.Errorf("order_number: got %v", resp["order_number"])
	}
	if resp["total_amount"] != "22.00" {
		t.Errorf("total_amount: got %v, want 22.00", resp["total_amount"])
	}
	payment, ok := resp["payment"].(map[string]interface{})
	if !ok {
		t.Fatal("payment missing from response")
	}
	if payment["status"] != "COMPLETED" {
		t.Errorf("payment status: got %v", payment["status"])
	}

	if len(hub.events) != 1 || hub.events[0].Type != "order.created" {
		t.Errorf("expected one order.created broadcast, got %+v", hub.events)
	}
	if len(hub.rooms) != 1 || hub.rooms[0] != restaurantID {
		t.Errorf("broadcast room: got %v", hub.rooms)
	}
}

func TestCheckoutEndpoint_WaiterHasNoDiscountCapability(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	claims.Role = enum.UserRoleWaiter

	svc := &mockCheckoutService{
		checkoutFn: func(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error) {
			if req.Capabilities.ApplyDiscount || req.Capabilities.RedeemLoyalty {
				t.Errorf("waiter capabilities: got %+v, want none", req.Capabilities)
			}
			return testCheckoutResult(restaurantID, claims.UserID), nil
		},
	}

	router := setupOrderRouter(svc, &mockOrderStore{}, nil)
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/orders", checkoutBody(uuid.New()), claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
}

func TestCheckoutEndpoint_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"empty items", service.ErrEmptyItems, http.StatusBadRequest},
		{"unknown product", service.ErrProductNotFound, http.StatusBadRequest},
		{"unknown table", service.ErrTableNotFound, http.StatusBadRequest},
		{"unknown customer", service.ErrCustomerNotFound, http.StatusBadRequest},
		{"discount limit reached", discount.ErrLimitReached, http.StatusUnprocessableEntity},
		{"discount expired", discount.ErrExpired, http.StatusUnprocessableEntity},
		{"insufficient points", service.ErrInsufficientPoints, http.StatusUnprocessableEntity},
		{"order number exhaustion", service.ErrOrderNumberConflict, http.StatusConflict},
		{"infrastructure", errors.New("connection refused"), http.StatusInternalServerError},
	}

	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCheckoutService{
				checkoutFn: func(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error) {
					return nil, tt.err
				},
			}
			router := setupOrderRouter(svc, &mockOrderStore{}, nil)
			rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/orders", checkoutBody(uuid.New()), claims)
			if rr.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
}

// --- Read endpoints ---

func TestOrderGet_WithItemsAndPayment(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	result := testCheckoutResult(restaurantID, claims.UserID)
	orderID := result.Order.ID

	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
			if arg.ID == orderID && arg.RestaurantID == restaurantID {
				return result.Order, nil
			}
			return database.Order{}, pgx.ErrNoRows
		},
		listOrderItemsByOrderFn: func(ctx context.Context, id uuid.UUID) ([]database.OrderItem, error) {
			return result.Items, nil
		},
		getPaymentByOrderFn: func(ctx context.Context, id uuid.UUID) (database.Payment, error) {
			return result.Payment, nil
		},
	}

	router := setupOrderRouter(&mockCheckoutService{}, store, nil)
	rr := doAuthRequest(t, router, "GET", "/restaurants/"+restaurantID.String()+"/orders/"+orderID.String(), nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeJSONBody(t, rr)
	items, ok := resp["items"].([]interface{})
	if !ok || len(items) != 1 {
		t.Fatalf("items: got %v", resp["items"])
	}
	if resp["payment"] == nil {
		t.Fatal("payment missing")
	}
}

func TestOrderGet_NotFound(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	router := setupOrderRouter(&mockCheckoutService{}, &mockOrderStore{}, nil)

	rr := doAuthRequest(t, router, "GET", "/restaurants/"+restaurantID.String()+"/orders/"+uuid.New().String(), nil, claims)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
}

func TestOrderGet_TenantScoped(t *testing.T) {
	restaurantID := uuid.New()
	otherRestaurant := uuid.New()
	claims := testClaims(restaurantID)
	result := testCheckoutResult(otherRestaurant, claims.UserID)

	// The order exists, but under a different restaurant; the scoped query
	// must miss and the handler must 404 rather than leak it.
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
			if arg.ID == result.Order.ID && arg.RestaurantID == otherRestaurant {
				return result.Order, nil
			}
			return database.Order{}, pgx.ErrNoRows
		},
	}

	router := setupOrderRouter(&mockCheckoutService{}, store, nil)
	rr := doAuthRequest(t, router, "GET", "/restaurants/"+restaurantID.String()+"/orders/"+result.Order.ID.String(), nil, claims)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
}

func TestOrderList_InvalidStatusFilter(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	router := setupOrderRouter(&mockCheckoutService{}, &mockOrderStore{}, nil)

	rr := doAuthRequest(t, router, "GET", "/restaurants/"+restaurantID.String()+"/orders?status=BOGUS", nil, claims)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

func TestOrderList_PassesStatusFilter(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)

	var captured database.ListOrdersParams
	store := &mockOrderStore{
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			captured = arg
			return nil, nil
		},
	}
	router := setupOrderRouter(&mockCheckoutService{}, store, nil)

	rr := doAuthRequest(t, router, "GET", "/restaurants/"+restaurantID.String()+"/orders?status=PAID&limit=5", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if !captured.Status.Valid || captured.Status.String != enum.OrderStatusPaid {
		t.Errorf("status filter: got %+v", captured.Status)
	}
	if captured.Limit != 5 {
		t.Errorf("limit: got %d, want 5", captured.Limit)
	}
}

// --- Status updates ---

func TestUpdateStatus_AnyAllowedValue(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	orderID := uuid.New()
	hub := &mockBroadcaster{}

	// PAID -> PENDING is fine: reassignment only checks membership.
	store := &mockOrderStore{
		updateOrderStatusFn: func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
			if arg.Status != enum.OrderStatusPending {
				t.Errorf("status: got %s", arg.Status)
			}
			o := testCheckoutResult(restaurantID, claims.UserID).Order
			o.ID = arg.ID
			o.Status = arg.Status
			return o, nil
		},
	}

	router := setupOrderRouter(&mockCheckoutService{}, store, hub)
	rr := doAuthRequest(t, router, "PATCH", "/restaurants/"+restaurantID.String()+"/orders/"+orderID.String()+"/status",
		map[string]string{"status": "PENDING"}, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if len(hub.events) != 1 || hub.events[0].Type != "order.status_updated" {
		t.Errorf("expected status_updated broadcast, got %+v", hub.events)
	}
}

func TestUpdateStatus_RejectsUnknownValue(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	router := setupOrderRouter(&mockCheckoutService{}, &mockOrderStore{}, nil)

	rr := doAuthRequest(t, router, "PATCH", "/restaurants/"+restaurantID.String()+"/orders/"+uuid.New().String()+"/status",
		map[string]string{"status": "ARCHIVED"}, claims)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

func TestUpdateKitchenStatus_CompletedStampsTimestamp(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	orderID := uuid.New()

	var captured database.UpdateKitchenStatusParams
	store := &mockOrderStore{
		updateKitchenStatusFn: func(ctx context.Context, arg database.UpdateKitchenStatusParams) (database.Order, error) {
			captured = arg
			o := testCheckoutResult(restaurantID, claims.UserID).Order
			o.KitchenStatus = arg.KitchenStatus
			o.CompletedAt = arg.CompletedAt
			return o, nil
		},
	}

	router := setupOrderRouter(&mockCheckoutService{}, store, nil)
	rr := doAuthRequest(t, router, "PATCH", "/restaurants/"+restaurantID.String()+"/orders/"+orderID.String()+"/kitchen-status",
		map[string]string{"kitchen_status": "COMPLETED"}, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if !captured.CompletedAt.Valid {
		t.Error("expected completed_at to be stamped")
	}

	resp := decodeJSONBody(t, rr)
	if resp["completed_at"] == nil {
		t.Error("completed_at missing from response")
	}
}

func TestUpdateKitchenStatus_NonCompletedLeavesTimestamp(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)

	var captured database.UpdateKitchenStatusParams
	store := &mockOrderStore{
		updateKitchenStatusFn: func(ctx context.Context, arg database.UpdateKitchenStatusParams) (database.Order, error) {
			captured = arg
			return testCheckoutResult(restaurantID, claims.UserID).Order, nil
		},
	}

	router := setupOrderRouter(&mockCheckoutService{}, store, nil)
	rr := doAuthRequest(t, router, "PATCH", "/restaurants/"+restaurantID.String()+"/orders/"+uuid.New().String()+"/kitchen-status",
		map[string]string{"kitchen_status": "READY"}, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if captured.CompletedAt.Valid {
		t.Error("completed_at must not be stamped for READY")
	}
}

func TestUpdateKitchenStatus_RejectsUnknownValue(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	router := setupOrderRouter(&mockCheckoutService{}, &mockOrderStore{}, nil)

	rr := doAuthRequest(t, router, "PATCH", "/restaurants/"+restaurantID.String()+"/orders/"+uuid.New().String()+"/kitchen-status",
		map[string]string{"kitchen_status": "SERVED"}, claims)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}
