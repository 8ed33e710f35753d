package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kopiraya-pos/api/internal/database"
	"github.com/shopspring/decimal"
)

// RevenueStore defines the DB methods needed to maintain daily rollups.
type RevenueStore interface {
	GetDailyRevenueForUpdate(ctx context.Context, arg database.GetDailyRevenueForUpdateParams) (database.DailyRevenue, error)
	CreateDailyRevenue(ctx context.Context, arg database.CreateDailyRevenueParams) (database.DailyRevenue, error)
	UpdateDailyRevenue(ctx context.Context, arg database.UpdateDailyRevenueParams) error
	CountOrdersByCustomer(ctx context.Context, arg database.CountOrdersByCustomerParams) (int64, error)
}

// NewRevenueStore creates a RevenueStore from a DBTX (pool or tx).
type NewRevenueStore func(db database.DBTX) RevenueStore

// RevenueService accumulates completed orders into per-shop per-day rollups.
// Rollups live in their own transaction, separate from the inventory commit:
// an order whose rollup write fails is still a valid order.
type RevenueService struct {
	pool     TxBeginner
	newStore NewRevenueStore
}

func NewRevenueService(pool TxBeginner, newStore NewRevenueStore) *RevenueService {
	return &RevenueService{pool: pool, newStore: newStore}
}

// histogram is a JSONB counter map keyed by bucket label.
type histogram map[string]string

func decodeHistogram(raw []byte) histogram {
	h := histogram{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &h)
	}
	return h
}

func (h histogram) addAmount(key string, amount decimal.Decimal) {
	cur, _ := decimal.NewFromString(h[key])
	h[key] = cur.Add(amount).String()
}

func (h histogram) addCount(key string, n int64) {
	cur, _ := strconv.ParseInt(h[key], 10, 64)
	h[key] = strconv.FormatInt(cur+n, 10)
}

func (h histogram) bytes() []byte {
	b, _ := json.Marshal(h)
	return b
}

// RecordOrder folds one committed order into its day's rollup. The day bucket
// is the order's creation time in UTC. Concurrent writers serialize on the
// rollup row lock; the first order of a day creates the row.
func (s *RevenueService) RecordOrder(ctx context.Context, order database.Order, items []database.OrderItem) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	day := order.CreatedAt.UTC().Truncate(24 * time.Hour)
	total := numericToDecimal(order.TotalAmount)
	hour := strconv.Itoa(order.CreatedAt.UTC().Hour())
	weekday := order.CreatedAt.UTC().Weekday().String()

	newCustomer, returningCustomer, err := classifyCustomer(ctx, store, order)
	if err != nil {
		return err
	}

	existing, err := store.GetDailyRevenueForUpdate(ctx, database.GetDailyRevenueForUpdateParams{
		ShopID: order.ShopID,
		Day:    day,
	})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("get daily revenue: %w", err)
	}
	seeding := errors.Is(err, pgx.ErrNoRows)

	hourly := decodeHistogram(existing.HourlyRevenue)
	weekdays := decodeHistogram(existing.WeekdayRevenue)
	payments := decodeHistogram(existing.PaymentMethods)
	itemSales := decodeHistogram(existing.ItemSales)

	hourly.addAmount(hour, total)
	weekdays.addAmount(weekday, total)
	payments.addCount(order.PaymentMethod, 1)
	for _, item := range items {
		itemSales.addCount(item.Name, int64(item.Quantity))
	}

	orderCount := existing.OrderCount + 1
	totalRevenue := numericToDecimal(existing.TotalRevenue).Add(total)
	avgOrderValue := totalRevenue.Div(decimal.NewFromInt(orderCount)).Round(2)

	if seeding {
		_, err = store.CreateDailyRevenue(ctx, database.CreateDailyRevenueParams{
			ShopID:             order.ShopID,
			Day:                day,
			OrderCount:         orderCount,
			TotalRevenue:       decimalToNumeric(totalRevenue),
			AvgOrderValue:      decimalToNumeric(avgOrderValue),
			HourlyRevenue:      hourly.bytes(),
			WeekdayRevenue:     weekdays.bytes(),
			PaymentMethods:     payments.bytes(),
			ItemSales:          itemSales.bytes(),
			NewCustomers:       newCustomer,
			ReturningCustomers: returningCustomer,
		})
		if err != nil {
			return fmt.Errorf("create daily revenue: %w", err)
		}
	} else {
		err = store.UpdateDailyRevenue(ctx, database.UpdateDailyRevenueParams{
			ID:                 existing.ID,
			OrderCount:         orderCount,
			TotalRevenue:       decimalToNumeric(totalRevenue),
			AvgOrderValue:      decimalToNumeric(avgOrderValue),
			HourlyRevenue:      hourly.bytes(),
			WeekdayRevenue:     weekdays.bytes(),
			PaymentMethods:     payments.bytes(),
			ItemSales:          itemSales.bytes(),
			NewCustomers:       existing.NewCustomers + newCustomer,
			ReturningCustomers: existing.ReturningCustomers + returningCustomer,
		})
		if err != nil {
			return fmt.Errorf("update daily revenue: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// classifyCustomer decides whether this order's customer counts as new or
// returning for the day. Anonymous orders count as neither. The order being
// classified is already persisted, so a first-time customer has exactly one
// order on record.
func classifyCustomer(ctx context.Context, store RevenueStore, order database.Order) (newC, returningC int32, err error) {
	if !order.CustomerID.Valid {
		return 0, 0, nil
	}
	n, err := store.CountOrdersByCustomer(ctx, database.CountOrdersByCustomerParams{
		ShopID:     order.ShopID,
		CustomerID: uuid.UUID(order.CustomerID.Bytes),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("count customer orders: %w", err)
	}
	if n <= 1 {
		return 1, 0, nil
	}
	return 0, 1, nil
}
