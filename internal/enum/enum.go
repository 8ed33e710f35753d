package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusPlaced    = "PLACED"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

const (
	StockStatusInStock    = "IN_STOCK"
	StockStatusLowStock   = "LOW_STOCK"
	StockStatusOutOfStock = "OUT_OF_STOCK"
)

// ── Borderline (CHECK constrained in DB) ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
)

const (
	ConsumptionModeDineIn   = "DINE_IN"
	ConsumptionModeTakeaway = "TAKEAWAY"
)

const (
	TemperatureHot  = "HOT"
	TemperatureIced = "ICED"
	TemperatureNone = "NONE"
)

// ── Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash     = "CASH"
	PaymentMethodQRIS     = "QRIS"
	PaymentMethodCard     = "CARD"
	PaymentMethodTransfer = "TRANSFER"
)

const (
	MenuCategoryCoffee  = "COFFEE"
	MenuCategoryTea     = "TEA"
	MenuCategoryFood    = "FOOD"
	MenuCategoryDessert = "DESSERT"
	MenuCategoryOther   = "OTHER"
)
