package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sajikita/pos-api/internal/database"
	"github.com/sajikita/pos-api/internal/enum"
)

// Errors returned by stock operations.
var (
	ErrStockProductNotFound = errors.New("product not found in restaurant")
	ErrStockNotTracked      = errors.New("product does not track quantity")
	ErrZeroQuantityChange   = errors.New("quantity_change must not be zero")
	ErrInvalidStockLogType  = errors.New("invalid stock log type")
)

// StockStore defines the DB methods the stock ledger needs.
// Satisfied by *database.Queries (and its WithTx variant).
type StockStore interface {
	GetProductForUpdate(ctx context.Context, arg database.GetProductForUpdateParams) (database.Product, error)
	UpdateProductQuantity(ctx context.Context, arg database.UpdateProductQuantityParams) error
	CreateStockLog(ctx context.Context, arg database.CreateStockLogParams) (database.StockLog, error)
}

type stockChange struct {
	ProductID    uuid.UUID
	RestaurantID uuid.UUID
	Delta        int32
	Type         string
	Note         string
	OrderID      uuid.UUID // zero UUID when not order-driven
	CreatedBy    uuid.UUID
}

// applyStockChange is the single mutation path for a product's quantity: a
// locked read, a clamped write, and the paired ledger row, all on the
// caller's transaction. The ledger keeps the true signed delta even when the
// counter clamps at zero (over-selling is logged, not blocked).
func applyStockChange(ctx context.Context, store StockStore, c stockChange) (database.StockLog, error) {
	product, err := store.GetProductForUpdate(ctx, database.GetProductForUpdateParams{
		ID:           c.ProductID,
		RestaurantID: c.RestaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.StockLog{}, ErrStockProductNotFound
		}
		return database.StockLog{}, fmt.Errorf("lock product: %w", err)
	}
	if !product.TrackQuantity {
		return database.StockLog{}, ErrStockNotTracked
	}

	before := product.Quantity
	after := before + c.Delta
	if after < 0 {
		after = 0
	}

	if err := store.UpdateProductQuantity(ctx, database.UpdateProductQuantityParams{
		ID:       c.ProductID,
		Quantity: after,
	}); err != nil {
		return database.StockLog{}, fmt.Errorf("update quantity: %w", err)
	}

	arg := database.CreateStockLogParams{
		ProductID:      c.ProductID,
		QuantityBefore: before,
		QuantityChange: c.Delta,
		QuantityAfter:  after,
		Type:           c.Type,
	}
	if c.Note != "" {
		arg.Note = pgtype.Text{String: c.Note, Valid: true}
	}
	if c.OrderID != uuid.Nil {
		arg.OrderID = pgtype.UUID{Bytes: c.OrderID, Valid: true}
	}
	if c.CreatedBy != uuid.Nil {
		arg.CreatedBy = pgtype.UUID{Bytes: c.CreatedBy, Valid: true}
	}

	log, err := store.CreateStockLog(ctx, arg)
	if err != nil {
		return database.StockLog{}, fmt.Errorf("create stock log: %w", err)
	}
	return log, nil
}

// NewStockStore creates a StockStore from a DBTX (pool or tx).
type NewStockStore func(db database.DBTX) StockStore

// StockService handles manual stock adjustments outside checkout.
type StockService struct {
	pool     TxBeginner
	newStore NewStockStore
}

func NewStockService(pool TxBeginner, newStore NewStockStore) *StockService {
	return &StockService{pool: pool, newStore: newStore}
}

// AdjustStockRequest is the validated input for a manual adjustment.
type AdjustStockRequest struct {
	RestaurantID   uuid.UUID
	ProductID      uuid.UUID
	QuantityChange int32
	Type           string
	Note           string
	CreatedBy      uuid.UUID
}

// Adjust applies a manual restock/adjustment in its own transaction.
func (s *StockService) Adjust(ctx context.Context, req AdjustStockRequest) (database.StockLog, error) {
	if req.QuantityChange == 0 {
		return database.StockLog{}, ErrZeroQuantityChange
	}
	switch req.Type {
	case enum.StockLogTypeRestock, enum.StockLogTypeAdjustment:
	default:
		return database.StockLog{}, ErrInvalidStockLogType
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.StockLog{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	log, err := applyStockChange(ctx, s.newStore(tx), stockChange{
		ProductID:    req.ProductID,
		RestaurantID: req.RestaurantID,
		Delta:        req.QuantityChange,
		Type:         req.Type,
		Note:         req.Note,
		CreatedBy:    req.CreatedBy,
	})
	if err != nil {
		return database.StockLog{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.StockLog{}, fmt.Errorf("commit tx: %w", err)
	}
	return log, nil
}

// StockStatus classifies a tracked product's quantity against its alert
// threshold. Untracked products are always OK.
func StockStatus(p database.Product) string {
	if !p.TrackQuantity {
		return enum.StockStatusOK
	}
	switch {
	case p.Quantity <= 0:
		return enum.StockStatusOut
	case p.Quantity <= p.StockAlert:
		return enum.StockStatusLow
	default:
		return enum.StockStatusOK
	}
}
