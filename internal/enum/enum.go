package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "PENDING"
	OrderStatusPreparing = "PREPARING"
	OrderStatusReady     = "READY"
	OrderStatusServed    = "SERVED"
	OrderStatusPaid      = "PAID"
	OrderStatusCancelled = "CANCELLED"
)

const (
	KitchenStatusPending   = "PENDING"
	KitchenStatusPreparing = "PREPARING"
	KitchenStatusReady     = "READY"
	KitchenStatusCompleted = "COMPLETED"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
)

const (
	TableStatusAvailable   = "AVAILABLE"
	TableStatusOccupied    = "OCCUPIED"
	TableStatusReserved    = "RESERVED"
	TableStatusMaintenance = "MAINTENANCE"
)

// ── Ledger row tags (CHECK constrained in DB) ──

const (
	StockLogTypeSale       = "SALE"
	StockLogTypeRestock    = "RESTOCK"
	StockLogTypeAdjustment = "ADJUSTMENT"
	StockLogTypeInitial    = "INITIAL"
)

const (
	LoyaltyTxTypeEarned     = "EARNED"
	LoyaltyTxTypeRedeemed   = "REDEEMED"
	LoyaltyTxTypeAdjustment = "ADJUSTMENT"
	LoyaltyTxTypeRefund     = "REFUND"
)

// ── Configurable labels ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
	UserRoleKitchen = "KITCHEN"
	UserRoleWaiter  = "WAITER"
)

const (
	OrderTypeDineIn   = "DINE_IN"
	OrderTypeTakeaway = "TAKEAWAY"
	OrderTypeDelivery = "DELIVERY"
)

const (
	PaymentMethodCash   = "CASH"
	PaymentMethodCard   = "CARD"
	PaymentMethodOnline = "ONLINE"
)

const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED"
)

// ── Derived stock classification (not persisted) ──

const (
	StockStatusOut = "OUT"
	StockStatusLow = "LOW"
	StockStatusOK  = "OK"
)
