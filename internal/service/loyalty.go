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

var (
	ErrCustomerNotFound   = errors.New("customer not found in restaurant")
	ErrInsufficientPoints = errors.New("insufficient loyalty points")
	ErrInvalidPoints      = errors.New("points must be > 0")
)

// LoyaltyStore defines the DB methods the loyalty ledger needs.
type LoyaltyStore interface {
	GetCustomerForUpdate(ctx context.Context, arg database.GetCustomerParams) (database.Customer, error)
	UpdateCustomerPoints(ctx context.Context, arg database.UpdateCustomerPointsParams) error
	CreateLoyaltyTransaction(ctx context.Context, arg database.CreateLoyaltyTransactionParams) (database.LoyaltyTransaction, error)
}

// applyLoyaltyRedeem debits points under a row lock. The balance check runs
// against the locked row, so a redemption that was valid when the cart was
// built still fails here if a concurrent checkout drained the balance.
func applyLoyaltyRedeem(ctx context.Context, store LoyaltyStore, restaurantID, customerID uuid.UUID, points int32, orderID uuid.UUID) (database.LoyaltyTransaction, error) {
	if points <= 0 {
		return database.LoyaltyTransaction{}, ErrInvalidPoints
	}

	customer, err := lockCustomer(ctx, store, restaurantID, customerID)
	if err != nil {
		return database.LoyaltyTransaction{}, err
	}
	if customer.LoyaltyPoints < points {
		return database.LoyaltyTransaction{}, ErrInsufficientPoints
	}

	return writeLoyaltyEntry(ctx, store, customer, enum.LoyaltyTxTypeRedeemed, -points, orderID)
}

// applyLoyaltyEarn credits points under a row lock.
func applyLoyaltyEarn(ctx context.Context, store LoyaltyStore, restaurantID, customerID uuid.UUID, points int32, orderID uuid.UUID) (database.LoyaltyTransaction, error) {
	if points <= 0 {
		return database.LoyaltyTransaction{}, ErrInvalidPoints
	}

	customer, err := lockCustomer(ctx, store, restaurantID, customerID)
	if err != nil {
		return database.LoyaltyTransaction{}, err
	}

	return writeLoyaltyEntry(ctx, store, customer, enum.LoyaltyTxTypeEarned, points, orderID)
}

func lockCustomer(ctx context.Context, store LoyaltyStore, restaurantID, customerID uuid.UUID) (database.Customer, error) {
	customer, err := store.GetCustomerForUpdate(ctx, database.GetCustomerParams{
		ID:           customerID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Customer{}, ErrCustomerNotFound
		}
		return database.Customer{}, fmt.Errorf("lock customer: %w", err)
	}
	return customer, nil
}

// writeLoyaltyEntry updates the balance and appends the ledger row together;
// the two are never written independently.
func writeLoyaltyEntry(ctx context.Context, store LoyaltyStore, customer database.Customer, txType string, delta int32, orderID uuid.UUID) (database.LoyaltyTransaction, error) {
	newBalance := customer.LoyaltyPoints + delta
	if newBalance < 0 {
		return database.LoyaltyTransaction{}, ErrInsufficientPoints
	}

	if err := store.UpdateCustomerPoints(ctx, database.UpdateCustomerPointsParams{
		ID:            customer.ID,
		LoyaltyPoints: newBalance,
	}); err != nil {
		return database.LoyaltyTransaction{}, fmt.Errorf("update points: %w", err)
	}

	arg := database.CreateLoyaltyTransactionParams{
		CustomerID: customer.ID,
		Type:       txType,
		Points:     delta,
	}
	if orderID != uuid.Nil {
		arg.OrderID = pgtype.UUID{Bytes: orderID, Valid: true}
	}

	entry, err := store.CreateLoyaltyTransaction(ctx, arg)
	if err != nil {
		return database.LoyaltyTransaction{}, fmt.Errorf("create loyalty transaction: %w", err)
	}
	return entry, nil
}
