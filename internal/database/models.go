package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Shop struct {
	ID        uuid.UUID
	Name      string
	Address   pgtype.Text
	Phone     pgtype.Text
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID             uuid.UUID
	ShopID         uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Customer struct {
	ID        uuid.UUID
	ShopID    uuid.UUID
	Name      string
	Phone     pgtype.Text
	CreatedAt time.Time
}

// Ingredient is a ledger row. Quantity counts stocking units; UnitValue and
// Unit describe the measured content of one such unit; Used accumulates
// consumption in Unit terms.
type Ingredient struct {
	ID          uuid.UUID
	ShopID      uuid.UUID
	Name        string
	Quantity    float64
	UnitValue   float64
	Unit        string
	Used        float64
	MinQuantity float64
	CostPrice   pgtype.Numeric
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type MenuItem struct {
	ID        uuid.UUID
	ShopID    uuid.UUID
	Name      string
	Price     pgtype.Numeric
	Category  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type RecipeLine struct {
	ID           uuid.UUID
	MenuItemID   uuid.UUID
	IngredientID uuid.UUID
	Amount       float64
	Unit         string
}

type Order struct {
	ID              uuid.UUID
	ShopID          uuid.UUID
	OrderNumber     string
	CustomerID      pgtype.UUID
	Status          string
	Subtotal        pgtype.Numeric
	DiscountPercent pgtype.Numeric
	DiscountAmount  pgtype.Numeric
	TotalAmount     pgtype.Numeric
	PaymentMethod   string
	Note            pgtype.Text
	CreatedBy       uuid.UUID
	CreatedAt       time.Time
}

type OrderItem struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	MenuItemID      uuid.UUID
	Name            string
	Quantity        int32
	UnitPrice       pgtype.Numeric
	Subtotal        pgtype.Numeric
	Note            pgtype.Text
	Temperature     string
	ConsumptionMode string
}

// DailyRevenue is the per-shop per-day rollup. Histograms are stored as
// JSONB and manipulated in Go under a row lock.
type DailyRevenue struct {
	ID                 uuid.UUID
	ShopID             uuid.UUID
	Day                time.Time
	OrderCount         int64
	TotalRevenue       pgtype.Numeric
	AvgOrderValue      pgtype.Numeric
	HourlyRevenue      []byte
	WeekdayRevenue     []byte
	PaymentMethods     []byte
	ItemSales          []byte
	NewCustomers       int32
	ReturningCustomers int32
	UpdatedAt          time.Time
}
