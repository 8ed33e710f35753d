package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopiraya-pos/api/internal/database"
	"github.com/kopiraya-pos/api/internal/enum"
	"github.com/kopiraya-pos/api/internal/inventory"
	"github.com/kopiraya-pos/api/internal/measure"
	"github.com/shopspring/decimal"
)

const maxTxRetries = 3

// TxBeginner starts a new database transaction with explicit options.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to place orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextOrderNumber(ctx context.Context, shopID uuid.UUID) (int32, error)
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	ListRecipeLines(ctx context.Context, menuItemID uuid.UUID) ([]database.ListRecipeLinesRow, error)
	GetIngredientForUpdate(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	UpdateIngredientUsed(ctx context.Context, arg database.UpdateIngredientUsedParams) error
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// PlaceOrderRequest is the input for placing an order.
type PlaceOrderRequest struct {
	ShopID          uuid.UUID
	CreatedBy       uuid.UUID
	CustomerID      string
	PaymentMethod   string
	DiscountPercent string
	Note            string
	Items           []PlaceOrderItemRequest
}

// PlaceOrderItemRequest is a single line in the order.
type PlaceOrderItemRequest struct {
	MenuItemID      string
	Quantity        int32
	Note            string
	Temperature     string
	ConsumptionMode string
}

// LowStockAlert is emitted when a commit pushes an ingredient to or below
// its threshold. It is a side artifact computed from post-write state, not
// part of the atomic commit.
type LowStockAlert struct {
	IngredientID uuid.UUID
	Name         string
	Available    measure.Measurement
	Status       string
}

// PlaceOrderResult is the committed order with items and any alerts raised.
type PlaceOrderResult struct {
	Order  database.Order
	Items  []database.OrderItem
	Alerts []LowStockAlert
}

// OrderService validates orders and commits their ingredient consumption
// atomically. It holds no in-process locks; the database transaction is the
// sole serialization point, so it is safe to run from multiple instances.
type OrderService struct {
	pool          TxBeginner
	newStore      NewOrderStore
	maxOrderTotal decimal.Decimal
}

// NewOrderService creates a new OrderService. maxOrderTotal is the
// configurable order-total ceiling.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, maxOrderTotal float64) *OrderService {
	return &OrderService{
		pool:          pool,
		newStore:      newStore,
		maxOrderTotal: decimal.NewFromFloat(maxOrderTotal),
	}
}

// requirement is the aggregated amount of one ingredient an order consumes,
// accumulated across every order line and recipe line that references it.
type requirement struct {
	ingredientID uuid.UUID
	name         string
	total        measure.Measurement
	// convertible is false when any contributing line's unit could not be
	// combined; the requirement is then treated as unsatisfiable.
	convertible bool
}

// PlaceOrder validates the order, then commits its ingredient consumption,
// the order row, and its items as one atomic unit. Retries the whole
// transaction on serialization conflicts with fresh reads; never retries
// only the write phase.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if errs := validateShape(req); len(errs) > 0 {
		return nil, errs
	}

	var lastErr error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		result, err := s.placeOrderTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isRetryableConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", ErrTransactionConflict, lastErr)
}

// isRetryableConflict reports whether the whole transaction should be retried
// with fresh reads: serialization failures, deadlocks, and the per-day order
// number unique race.
func isRetryableConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	case "23505":
		return pgErr.ConstraintName == "orders_shop_id_order_number_key"
	}
	return false
}

// placeOrderTx executes the full consumption protocol in a single
// transaction: aggregate requirements (read phase), gate on sufficiency,
// apply decrements (write phase), insert the order, commit.
func (s *OrderService) placeOrderTx(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	nextNum, err := store.GetNextOrderNumber(ctx, req.ShopID)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("KPR-%03d", nextNum)

	// --- Read phase: resolve menu items, price lines, aggregate requirements ---
	subtotal := decimal.Zero
	var itemParams []database.CreateOrderItemParams
	var verrs ValidationErrors
	reqs := make(map[uuid.UUID]*requirement)

	for i, item := range req.Items {
		menuItemID, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidMenuItemID)
		}

		menuItem, err := store.GetMenuItem(ctx, database.GetMenuItemParams{
			ID:     menuItemID,
			ShopID: req.ShopID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get menu item: %w", i, err)
		}

		price := numericToDecimal(menuItem.Price)
		if !price.IsPositive() {
			verrs = append(verrs, ValidationError{
				Field:   fmt.Sprintf("items[%d].price", i),
				Message: "menu item price must be positive",
			})
		}

		qty := decimal.NewFromInt32(item.Quantity)
		lineSubtotal := price.Mul(qty)
		subtotal = subtotal.Add(lineSubtotal)

		lines, err := store.ListRecipeLines(ctx, menuItemID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: list recipe lines: %w", i, err)
		}
		aggregateRequirements(reqs, lines, float64(item.Quantity))

		itemParams = append(itemParams, database.CreateOrderItemParams{
			MenuItemID:      menuItemID,
			Name:            menuItem.Name,
			Quantity:        item.Quantity,
			UnitPrice:       decimalToNumeric(price),
			Subtotal:        decimalToNumeric(lineSubtotal),
			Note:            textOrNull(item.Note),
			Temperature:     defaultString(item.Temperature, enum.TemperatureNone),
			ConsumptionMode: defaultString(item.ConsumptionMode, enum.ConsumptionModeDineIn),
		})
	}

	// --- Order totals ---
	discountPercent := decimal.Zero
	if req.DiscountPercent != "" {
		// Range already validated in validateShape.
		discountPercent, _ = decimal.NewFromString(req.DiscountPercent)
	}
	discountAmount := subtotal.Mul(discountPercent).Div(decimal.NewFromInt(100))
	totalAmount := subtotal.Sub(discountAmount)
	if totalAmount.IsNegative() {
		totalAmount = decimal.Zero
	}
	if totalAmount.GreaterThan(s.maxOrderTotal) {
		verrs = append(verrs, ValidationError{
			Field:   "total_amount",
			Message: fmt.Sprintf("order total exceeds ceiling of %s", s.maxOrderTotal),
		})
	}
	if len(verrs) > 0 {
		return nil, verrs
	}

	// --- Sufficiency gate + apply pass ---
	alerts, err := s.consume(ctx, store, reqs)
	if err != nil {
		return nil, err
	}

	// --- Insert order ---
	customerID := pgtype.UUID{}
	if req.CustomerID != "" {
		cid, err := uuid.Parse(req.CustomerID)
		if err != nil {
			return nil, ErrInvalidCustomerID
		}
		customerID = pgtype.UUID{Bytes: cid, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		ShopID:          req.ShopID,
		OrderNumber:     orderNumber,
		CustomerID:      customerID,
		Status:          enum.OrderStatusPlaced,
		Subtotal:        decimalToNumeric(subtotal),
		DiscountPercent: decimalToNumeric(discountPercent),
		DiscountAmount:  decimalToNumeric(discountAmount),
		TotalAmount:     decimalToNumeric(totalAmount),
		PaymentMethod:   req.PaymentMethod,
		Note:            textOrNull(req.Note),
		CreatedBy:       req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var items []database.OrderItem
	for _, p := range itemParams {
		p.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &PlaceOrderResult{Order: order, Items: items, Alerts: alerts}, nil
}

// aggregateRequirements folds one menu item's recipe lines (scaled by the
// order line quantity) into the per-ingredient running totals. An ingredient
// referenced by several order lines or recipe lines accumulates into a
// single requirement so it is read and checked exactly once.
func aggregateRequirements(reqs map[uuid.UUID]*requirement, lines []database.ListRecipeLinesRow, servings float64) {
	for _, line := range lines {
		amount := measure.New(line.Amount, measure.Unit(line.Unit)).MulScalar(servings)

		existing, ok := reqs[line.IngredientID]
		if !ok {
			reqs[line.IngredientID] = &requirement{
				ingredientID: line.IngredientID,
				name:         line.IngredientName,
				total:        amount,
				convertible:  true,
			}
			continue
		}
		if !existing.convertible {
			continue
		}
		sum, err := existing.total.Add(amount)
		if err != nil {
			// Recipe lines disagree on unit class for the same ingredient;
			// fail closed at the sufficiency gate.
			log.Printf("WARN: unit mismatch aggregating ingredient %s (%s): %v",
				existing.name, existing.ingredientID, err)
			existing.convertible = false
			continue
		}
		existing.total = sum
	}
}

// consume runs the sufficiency gate and the write phase over the aggregated
// requirements. Ledger rows are read under row locks in id order so
// concurrent orders over overlapping ingredients serialize deterministically.
// Returns the low-stock alerts raised by the writes.
func (s *OrderService) consume(ctx context.Context, store OrderStore, reqs map[uuid.UUID]*requirement) ([]LowStockAlert, error) {
	ids := make([]uuid.UUID, 0, len(reqs))
	for id := range reqs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})

	var alerts []LowStockAlert
	for _, id := range ids {
		r := reqs[id]

		row, err := store.GetIngredientForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("ingredient %s (%s): %w", r.name, id, ErrIngredientNotFound)
			}
			return nil, fmt.Errorf("read ingredient %s: %w", r.name, err)
		}
		entry := ledgerEntryFromRow(row)

		if !r.convertible {
			return nil, &InsufficientStockError{Ingredient: r.name}
		}
		required, err := r.total.Convert(entry.PerUnit.Unit)
		if err != nil {
			// Recipe and ledger disagree on unit class: a data-modeling
			// problem, treated as insufficiency.
			log.Printf("WARN: unit mismatch for ingredient %s (%s): %v", r.name, id, err)
			return nil, &InsufficientStockError{Ingredient: r.name}
		}
		if entry.Available().Less(required) {
			return nil, &InsufficientStockError{Ingredient: r.name}
		}

		wasLow := entry.IsLowStock()
		entry.Used += required.Value
		if err := store.UpdateIngredientUsed(ctx, database.UpdateIngredientUsedParams{
			ID:   id,
			Used: entry.Used,
		}); err != nil {
			return nil, fmt.Errorf("update ingredient %s: %w", r.name, err)
		}

		if !wasLow && entry.IsLowStock() {
			alerts = append(alerts, LowStockAlert{
				IngredientID: id,
				Name:         entry.Name,
				Available:    entry.Available(),
				Status:       entry.Status(),
			})
		}
	}
	return alerts, nil
}

// ledgerEntryFromRow maps a database row onto the inventory model.
func ledgerEntryFromRow(row database.Ingredient) inventory.LedgerEntry {
	return inventory.LedgerEntry{
		ID:          row.ID,
		ShopID:      row.ShopID,
		Name:        row.Name,
		Quantity:    row.Quantity,
		PerUnit:     measure.New(row.UnitValue, measure.Unit(row.Unit)),
		Used:        row.Used,
		MinQuantity: row.MinQuantity,
		CostPrice:   numericToDecimal(row.CostPrice).InexactFloat64(),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
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

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
