package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, shop_id, order_number, customer_id, status, subtotal,
	discount_percent, discount_amount, total_amount, payment_method, note, created_by, created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.ShopID, &o.OrderNumber, &o.CustomerID, &o.Status, &o.Subtotal,
		&o.DiscountPercent, &o.DiscountAmount, &o.TotalAmount, &o.PaymentMethod,
		&o.Note, &o.CreatedBy, &o.CreatedAt,
	)
	return o, err
}

// GetNextOrderNumber returns the next per-shop display sequence number.
// Concurrent transactions can observe the same MAX; the caller retries on the
// resulting unique violation.
func (q *Queries) GetNextOrderNumber(ctx context.Context, shopID uuid.UUID) (int32, error) {
	const sql = `SELECT COALESCE(MAX(CAST(SUBSTRING(order_number FROM '[0-9]+$') AS INT)), 0) + 1
		FROM orders WHERE shop_id = $1 AND created_at::date = CURRENT_DATE`
	var n int32
	err := q.db.QueryRow(ctx, sql, shopID).Scan(&n)
	return n, err
}

type CreateOrderParams struct {
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
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	const sql = `INSERT INTO orders (shop_id, order_number, customer_id, status, subtotal,
			discount_percent, discount_amount, total_amount, payment_method, note, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql,
		arg.ShopID, arg.OrderNumber, arg.CustomerID, arg.Status, arg.Subtotal,
		arg.DiscountPercent, arg.DiscountAmount, arg.TotalAmount, arg.PaymentMethod,
		arg.Note, arg.CreatedBy))
}

type CreateOrderItemParams struct {
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

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	const sql = `INSERT INTO order_items (order_id, menu_item_id, name, quantity, unit_price,
			subtotal, note, temperature, consumption_mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, order_id, menu_item_id, name, quantity, unit_price, subtotal, note, temperature, consumption_mode`
	var i OrderItem
	err := q.db.QueryRow(ctx, sql,
		arg.OrderID, arg.MenuItemID, arg.Name, arg.Quantity, arg.UnitPrice,
		arg.Subtotal, arg.Note, arg.Temperature, arg.ConsumptionMode,
	).Scan(&i.ID, &i.OrderID, &i.MenuItemID, &i.Name, &i.Quantity, &i.UnitPrice,
		&i.Subtotal, &i.Note, &i.Temperature, &i.ConsumptionMode)
	return i, err
}

type GetOrderParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	const sql = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND shop_id = $2`
	return scanOrder(q.db.QueryRow(ctx, sql, arg.ID, arg.ShopID))
}

type ListOrdersParams struct {
	ShopID uuid.UUID
	Limit  int32
	Offset int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	const sql = `SELECT ` + orderColumns + `
		FROM orders WHERE shop_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := q.db.Query(ctx, sql, arg.ShopID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (q *Queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	const sql = `SELECT id, order_id, menu_item_id, name, quantity, unit_price, subtotal, note, temperature, consumption_mode
		FROM order_items WHERE order_id = $1`
	rows, err := q.db.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(&i.ID, &i.OrderID, &i.MenuItemID, &i.Name, &i.Quantity,
			&i.UnitPrice, &i.Subtotal, &i.Note, &i.Temperature, &i.ConsumptionMode); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type CountOrdersByCustomerParams struct {
	ShopID     uuid.UUID
	CustomerID uuid.UUID
}

// CountOrdersByCustomer is used by the revenue aggregator to classify a
// customer as new or returning at commit time.
func (q *Queries) CountOrdersByCustomer(ctx context.Context, arg CountOrdersByCustomerParams) (int64, error) {
	const sql = `SELECT COUNT(*) FROM orders WHERE shop_id = $1 AND customer_id = $2`
	var n int64
	err := q.db.QueryRow(ctx, sql, arg.ShopID, arg.CustomerID).Scan(&n)
	return n, err
}
