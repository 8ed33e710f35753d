package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const dailyRevenueColumns = `id, shop_id, day, order_count, total_revenue, avg_order_value,
	hourly_revenue, weekday_revenue, payment_methods, item_sales,
	new_customers, returning_customers, updated_at`

func scanDailyRevenue(row pgx.Row) (DailyRevenue, error) {
	var d DailyRevenue
	err := row.Scan(
		&d.ID, &d.ShopID, &d.Day, &d.OrderCount, &d.TotalRevenue, &d.AvgOrderValue,
		&d.HourlyRevenue, &d.WeekdayRevenue, &d.PaymentMethods, &d.ItemSales,
		&d.NewCustomers, &d.ReturningCustomers, &d.UpdatedAt,
	)
	return d, err
}

type GetDailyRevenueForUpdateParams struct {
	ShopID uuid.UUID
	Day    time.Time
}

// GetDailyRevenueForUpdate locks the day's rollup row for in-place
// accumulation. Must be called inside a transaction.
func (q *Queries) GetDailyRevenueForUpdate(ctx context.Context, arg GetDailyRevenueForUpdateParams) (DailyRevenue, error) {
	const sql = `SELECT ` + dailyRevenueColumns + `
		FROM daily_revenue WHERE shop_id = $1 AND day = $2 FOR UPDATE`
	return scanDailyRevenue(q.db.QueryRow(ctx, sql, arg.ShopID, arg.Day))
}

type CreateDailyRevenueParams struct {
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
}

func (q *Queries) CreateDailyRevenue(ctx context.Context, arg CreateDailyRevenueParams) (DailyRevenue, error) {
	const sql = `INSERT INTO daily_revenue (shop_id, day, order_count, total_revenue, avg_order_value,
			hourly_revenue, weekday_revenue, payment_methods, item_sales, new_customers, returning_customers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + dailyRevenueColumns
	return scanDailyRevenue(q.db.QueryRow(ctx, sql,
		arg.ShopID, arg.Day, arg.OrderCount, arg.TotalRevenue, arg.AvgOrderValue,
		arg.HourlyRevenue, arg.WeekdayRevenue, arg.PaymentMethods, arg.ItemSales,
		arg.NewCustomers, arg.ReturningCustomers))
}

type UpdateDailyRevenueParams struct {
	ID                 uuid.UUID
	OrderCount         int64
	TotalRevenue       pgtype.Numeric
	AvgOrderValue      pgtype.Numeric
	HourlyRevenue      []byte
	WeekdayRevenue     []byte
	PaymentMethods     []byte
	ItemSales          []byte
	NewCustomers       int32
	ReturningCustomers int32
}

func (q *Queries) UpdateDailyRevenue(ctx context.Context, arg UpdateDailyRevenueParams) error {
	const sql = `UPDATE daily_revenue SET order_count = $2, total_revenue = $3, avg_order_value = $4,
			hourly_revenue = $5, weekday_revenue = $6, payment_methods = $7, item_sales = $8,
			new_customers = $9, returning_customers = $10, updated_at = now()
		WHERE id = $1`
	_, err := q.db.Exec(ctx, sql,
		arg.ID, arg.OrderCount, arg.TotalRevenue, arg.AvgOrderValue,
		arg.HourlyRevenue, arg.WeekdayRevenue, arg.PaymentMethods, arg.ItemSales,
		arg.NewCustomers, arg.ReturningCustomers)
	return err
}

type ListDailyRevenueParams struct {
	ShopID  uuid.UUID
	FromDay time.Time
	ToDay   time.Time
}

func (q *Queries) ListDailyRevenue(ctx context.Context, arg ListDailyRevenueParams) ([]DailyRevenue, error) {
	const sql = `SELECT ` + dailyRevenueColumns + `
		FROM daily_revenue
		WHERE shop_id = $1 AND day >= $2 AND day < $3
		ORDER BY day`
	rows, err := q.db.Query(ctx, sql, arg.ShopID, arg.FromDay, arg.ToDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DailyRevenue
	for rows.Next() {
		d, err := scanDailyRevenue(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, d)
	}
	return records, rows.Err()
}
