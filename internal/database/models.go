package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Restaurant struct {
	ID        uuid.UUID
	Name      string
	TaxRate   pgtype.Numeric
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID             uuid.UUID
	RestaurantID   uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type DiningTable struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Number       string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Customer struct {
	ID            uuid.UUID
	RestaurantID  uuid.UUID
	Name          string
	Phone         pgtype.Text
	LoyaltyPoints int32
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Product struct {
	ID            uuid.UUID
	RestaurantID  uuid.UUID
	Name          string
	BasePrice     pgtype.Numeric
	TrackQuantity bool
	Quantity      int32
	StockAlert    int32
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ProductSize struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	Name            string
	PriceAdjustment pgtype.Numeric
}

// ProductAddon links a product to another sellable product, optionally
// overriding its price for the attachment.
type ProductAddon struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	AddonProductID uuid.UUID
	Price          pgtype.Numeric
}

type Discount struct {
	ID                uuid.UUID
	RestaurantID      uuid.UUID
	Code              string
	Name              string
	Type              string
	Value             pgtype.Numeric
	MinOrderAmount    pgtype.Numeric
	MaxDiscountAmount pgtype.Numeric
	UsageLimit        pgtype.Int4
	UsedCount         int32
	StartsAt          pgtype.Date
	ExpiresAt         pgtype.Date
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Order struct {
	ID             uuid.UUID
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
	CompletedAt    pgtype.Timestamptz
	CreatedBy      uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	SizeID    pgtype.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
	Total     pgtype.Numeric
	Addons    []byte
	Notes     pgtype.Text
	CreatedAt time.Time
}

type Payment struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	Method        string
	Amount        pgtype.Numeric
	Status        string
	TransactionID string
	ProcessedAt   time.Time
}

type StockLog struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	QuantityBefore int32
	QuantityChange int32
	QuantityAfter  int32
	Type           string
	Note           pgtype.Text
	OrderID        pgtype.UUID
	CreatedBy      pgtype.UUID
	CreatedAt      time.Time
}

type LoyaltyTransaction struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	Type       string
	Points     int32
	OrderID    pgtype.UUID
	Note       pgtype.Text
	CreatedAt  time.Time
}
