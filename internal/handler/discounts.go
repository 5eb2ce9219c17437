package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/sajikita/pos-api/internal/database"
	"github.com/sajikita/pos-api/internal/discount"
)

// DiscountStore defines the database methods needed by discount handlers.
type DiscountStore interface {
	GetDiscountByCode(ctx context.Context, arg database.GetDiscountByCodeParams) (database.Discount, error)
}

// DiscountHandler handles the advisory apply-check endpoint. The answer here
// is a preview only; checkout re-validates against a locked row.
type DiscountHandler struct {
	store DiscountStore
}

func NewDiscountHandler(store DiscountStore) *DiscountHandler {
	return &DiscountHandler{store: store}
}

func (h *DiscountHandler) RegisterRoutes(r chi.Router) {
	r.Post("/discounts/check", h.Check)
}

type discountCheckRequest struct {
	Code     string `json:"code"`
	Subtotal string `json:"subtotal"`
}

type discountCheckResponse struct {
	Valid          bool   `json:"valid"`
	Code           string `json:"code"`
	DiscountAmount string `json:"discount_amount,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Check handles POST /restaurants/{rid}/discounts/check.
func (h *DiscountHandler) Check(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	var req discountCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code is required"})
		return
	}
	subtotal, err := decimal.NewFromString(req.Subtotal)
	if err != nil || subtotal.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid subtotal"})
		return
	}

	d, err := h.store.GetDiscountByCode(r.Context(), database.GetDiscountByCodeParams{
		RestaurantID: restaurantID,
		Code:         req.Code,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "discount code not found"})
			return
		}
		log.Printf("ERROR: get discount: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	amount, err := discount.Validate(snapshotFromRow(d), subtotal, time.Now())
	if err != nil {
		writeJSON(w, http.StatusOK, discountCheckResponse{Valid: false, Code: d.Code, Reason: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, discountCheckResponse{
		Valid:          true,
		Code:           d.Code,
		DiscountAmount: amount.StringFixed(2),
	})
}

func snapshotFromRow(d database.Discount) discount.Snapshot {
	snap := discount.Snapshot{
		Type:           d.Type,
		Value:          numericToDecimalValue(d.Value),
		MinOrderAmount: numericToDecimalValue(d.MinOrderAmount),
		UsedCount:      d.UsedCount,
		IsActive:       d.IsActive,
	}
	if d.MaxDiscountAmount.Valid {
		snap.MaxDiscountAmount = numericToDecimalValue(d.MaxDiscountAmount)
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

func numericToDecimalValue(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}
