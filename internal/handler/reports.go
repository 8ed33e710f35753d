package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kopiraya-pos/api/internal/database"
)

// ReportStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportStore interface {
	ListDailyRevenue(ctx context.Context, arg database.ListDailyRevenueParams) ([]database.DailyRevenue, error)
}

// ReportHandler serves the daily revenue rollups.
type ReportHandler struct {
	store ReportStore
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(store ReportStore) *ReportHandler {
	return &ReportHandler{store: store}
}

// RegisterRoutes registers report endpoints on the given Chi router.
// Expected to be mounted inside a shop-scoped subrouter: /shops/{sid}/reports
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily-revenue", h.DailyRevenue)
}

type dailyRevenueResponse struct {
	Day                string            `json:"day"`
	OrderCount         int64             `json:"order_count"`
	TotalRevenue       string            `json:"total_revenue"`
	AvgOrderValue      string            `json:"avg_order_value"`
	HourlyRevenue      map[string]string `json:"hourly_revenue"`
	WeekdayRevenue     map[string]string `json:"weekday_revenue"`
	PaymentMethods     map[string]string `json:"payment_methods"`
	ItemSales          map[string]string `json:"item_sales"`
	NewCustomers       int32             `json:"new_customers"`
	ReturningCustomers int32             `json:"returning_customers"`
}

// DailyRevenue handles GET /shops/{sid}/reports/daily-revenue.
// Accepts from/to query params (YYYY-MM-DD, UTC, to exclusive); defaults to
// the last 30 days.
func (h *ReportHandler) DailyRevenue(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	from := now.AddDate(0, 0, -30)
	to := now.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from date, use YYYY-MM-DD"})
			return
		}
		from = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to date, use YYYY-MM-DD"})
			return
		}
		to = t
	}
	if !to.After(from) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to must be after from"})
		return
	}

	records, err := h.store.ListDailyRevenue(r.Context(), database.ListDailyRevenueParams{
		ShopID:  shopID,
		FromDay: from,
		ToDay:   to,
	})
	if err != nil {
		log.Printf("ERROR: list daily revenue: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]dailyRevenueResponse, len(records))
	for i, rec := range records {
		resp[i] = toDailyRevenueResponse(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": resp})
}

func toDailyRevenueResponse(rec database.DailyRevenue) dailyRevenueResponse {
	return dailyRevenueResponse{
		Day:                rec.Day.Format("2006-01-02"),
		OrderCount:         rec.OrderCount,
		TotalRevenue:       numericToString(rec.TotalRevenue),
		AvgOrderValue:      numericToString(rec.AvgOrderValue),
		HourlyRevenue:      decodeJSONMap(rec.HourlyRevenue),
		WeekdayRevenue:     decodeJSONMap(rec.WeekdayRevenue),
		PaymentMethods:     decodeJSONMap(rec.PaymentMethods),
		ItemSales:          decodeJSONMap(rec.ItemSales),
		NewCustomers:       rec.NewCustomers,
		ReturningCustomers: rec.ReturningCustomers,
	}
}

func decodeJSONMap(raw []byte) map[string]string {
	m := map[string]string{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &m)
	}
	return m
}
