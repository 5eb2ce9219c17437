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

	"github.com/sajikita/pos-api/internal/database"
	"github.com/sajikita/pos-api/internal/middleware"
	"github.com/sajikita/pos-api/internal/service"
)

// StockServicer defines the service methods needed by stock handlers.
// Satisfied by *service.StockService.
type StockServicer interface {
	Adjust(ctx context.Context, req service.AdjustStockRequest) (database.StockLog, error)
}

// StockReadStore defines the database methods needed by stock read handlers.
type StockReadStore interface {
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	ListStockLogsByProduct(ctx context.Context, arg database.ListStockLogsByProductParams) ([]database.StockLog, error)
	CountLowStockProducts(ctx context.Context, restaurantID uuid.UUID) (int64, error)
}

// StockHandler handles manual stock adjustments and stock reads.
type StockHandler struct {
	svc   StockServicer
	store StockReadStore
	caps  database.Capabilities
}

func NewStockHandler(svc StockServicer, store StockReadStore, caps database.Capabilities) *StockHandler {
	return &StockHandler{svc: svc, store: store, caps: caps}
}

// --- Request / Response types ---

type adjustStockRequest struct {
	ProductID      string `json:"product_id"`
	QuantityChange int32  `json:"quantity_change"`
	Type           string `json:"type"`
	Note           string `json:"note"`
}

type stockLogResponse struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	QuantityBefore int32     `json:"quantity_before"`
	QuantityChange int32     `json:"quantity_change"`
	QuantityAfter  int32     `json:"quantity_after"`
	Type           string    `json:"type"`
	Note           *string   `json:"note"`
	OrderID        *string   `json:"order_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type stockLogListResponse struct {
	Product struct {
		ID          uuid.UUID `json:"id"`
		Name        string    `json:"name"`
		Quantity    int32     `json:"quantity"`
		StockStatus string    `json:"stock_status"`
	} `json:"product"`
	Logs   []stockLogResponse `json:"logs"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// --- Handlers ---

// Adjust handles POST /restaurants/{rid}/stock/adjustments.
func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
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

	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
		return
	}

	stockLog, err := h.svc.Adjust(r.Context(), service.AdjustStockRequest{
		RestaurantID:   restaurantID,
		ProductID:      productID,
		QuantityChange: req.QuantityChange,
		Type:           req.Type,
		Note:           req.Note,
		CreatedBy:      claims.UserID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrZeroQuantityChange),
			errors.Is(err, service.ErrInvalidStockLogType),
			errors.Is(err, service.ErrStockProductNotFound):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrStockNotTracked):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: adjust stock: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, dbStockLogToResponse(stockLog))
}

// LowCount handles GET /restaurants/{rid}/stock/low-count. Available only
// when the schema carries stock alert thresholds (probed at startup).
func (h *StockHandler) LowCount(w http.ResponseWriter, r *http.Request) {
	if !h.caps.StockAlerts {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "stock alerts are not supported by this deployment"})
		return
	}

	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	count, err := h.store.CountLowStockProducts(r.Context(), restaurantID)
	if err != nil {
		log.Printf("ERROR: count low stock: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"low_stock_count": count})
}

// ListLogs handles GET /restaurants/{rid}/products/{id}/stock-logs.
func (h *StockHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}
	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	product, err := h.store.GetProduct(r.Context(), database.GetProductParams{
		ID:           productID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 200 {
		limit = 200
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	logs, err := h.store.ListStockLogsByProduct(r.Context(), database.ListStockLogsByProductParams{
		ProductID: productID,
		Limit:     int32(limit),
		Offset:    int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list stock logs: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := stockLogListResponse{Limit: limit, Offset: offset}
	resp.Product.ID = product.ID
	resp.Product.Name = product.Name
	resp.Product.Quantity = product.Quantity
	resp.Product.StockStatus = service.StockStatus(product)
	resp.Logs = make([]stockLogResponse, len(logs))
	for i, l := range logs {
		resp.Logs[i] = dbStockLogToResponse(l)
	}

	writeJSON(w, http.StatusOK, resp)
}

func dbStockLogToResponse(l database.StockLog) stockLogResponse {
	resp := stockLogResponse{
		ID:             l.ID,
		ProductID:      l.ProductID,
		QuantityBefore: l.QuantityBefore,
		QuantityChange: l.QuantityChange,
		QuantityAfter:  l.QuantityAfter,
		Type:           l.Type,
		CreatedAt:      l.CreatedAt,
	}
	if l.Note.Valid {
		resp.Note = &l.Note.String
	}
	if l.OrderID.Valid {
		s := uuid.UUID(l.OrderID.Bytes).String()
		resp.OrderID = &s
	}
	return resp
}
