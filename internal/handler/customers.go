package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sajikita/pos-api/internal/database"
)

// CustomerStore defines the database methods needed by customer handlers.
type CustomerStore interface {
	GetCustomer(ctx context.Context, arg database.GetCustomerParams) (database.Customer, error)
	ListLoyaltyTransactionsByCustomer(ctx context.Context, customerID uuid.UUID) ([]database.LoyaltyTransaction, error)
}

// CustomerHandler exposes loyalty balances and history.
type CustomerHandler struct {
	store CustomerStore
}

func NewCustomerHandler(store CustomerStore) *CustomerHandler {
	return &CustomerHandler{store: store}
}

func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/customers/{id}/loyalty", h.Loyalty)
}

type loyaltyTransactionResponse struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Points    int32     `json:"points"`
	OrderID   *string   `json:"order_id"`
	Note      *string   `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

type loyaltyResponse struct {
	CustomerID    uuid.UUID                    `json:"customer_id"`
	Name          string                       `json:"name"`
	LoyaltyPoints int32                        `json:"loyalty_points"`
	Transactions  []loyaltyTransactionResponse `json:"transactions"`
}

// Loyalty handles GET /restaurants/{rid}/customers/{id}/loyalty.
func (h *CustomerHandler) Loyalty(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}
	customerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer ID"})
		return
	}

	customer, err := h.store.GetCustomer(r.Context(), database.GetCustomerParams{
		ID:           customerID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Printf("ERROR: get customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	txs, err := h.store.ListLoyaltyTransactionsByCustomer(r.Context(), customerID)
	if err != nil {
		log.Printf("ERROR: list loyalty transactions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := loyaltyResponse{
		CustomerID:    customer.ID,
		Name:          customer.Name,
		LoyaltyPoints: customer.LoyaltyPoints,
		Transactions:  make([]loyaltyTransactionResponse, len(txs)),
	}
	for i, tx := range txs {
		t := loyaltyTransactionResponse{
			ID:        tx.ID,
			Type:      tx.Type,
			Points:    tx.Points,
			CreatedAt: tx.CreatedAt,
		}
		if tx.OrderID.Valid {
			s := uuid.UUID(tx.OrderID.Bytes).String()
			t.OrderID = &s
		}
		if tx.Note.Valid {
			t.Note = &tx.Note.String
		}
		resp.Transactions[i] = t
	}

	writeJSON(w, http.StatusOK, resp)
}
