package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kopiraya-pos/api/internal/database"
	"github.com/kopiraya-pos/api/internal/middleware"
	"github.com/kopiraya-pos/api/internal/service"
	"github.com/kopiraya-pos/api/internal/ws"
)

// OrderPlacer defines the service methods needed by the order write handler.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*service.PlaceOrderResult, error)
}

// RevenueRecorder folds committed orders into daily rollups.
// Satisfied by *service.RevenueService.
type RevenueRecorder interface {
	RecordOrder(ctx context.Context, order database.Order, items []database.OrderItem) error
}

// Broadcaster pushes events to a shop's websocket subscribers.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToShop(shopID uuid.UUID, event ws.Event)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc     OrderPlacer
	revenue RevenueRecorder
	store   OrderStore
	hub     Broadcaster
}

// NewOrderHandler creates a new OrderHandler. revenue and hub may be nil in
// tests; both are post-commit side channels.
func NewOrderHandler(svc OrderPlacer, revenue RevenueRecorder, store OrderStore, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, revenue: revenue, store: store, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a shop-scoped subrouter: /shops/{sid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// --- Request / Response types ---

type placeOrderRequest struct {
	CustomerID      string                  `json:"customer_id"`
	PaymentMethod   string                  `json:"payment_method"`
	DiscountPercent string                  `json:"discount_percent"`
	Note            string                  `json:"note"`
	Items           []placeOrderItemRequest `json:"items"`
}

type placeOrderItemRequest struct {
	MenuItemID      string `json:"menu_item_id"`
	Quantity        int32  `json:"quantity"`
	Note            string `json:"note"`
	Temperature     string `json:"temperature"`
	ConsumptionMode string `json:"consumption_mode"`
}

type orderResponse struct {
	ID              uuid.UUID           `json:"id"`
	ShopID          uuid.UUID           `json:"shop_id"`
	OrderNumber     string              `json:"order_number"`
	CustomerID      *string             `json:"customer_id"`
	Status          string              `json:"status"`
	Subtotal        string              `json:"subtotal"`
	DiscountPercent string              `json:"discount_percent"`
	DiscountAmount  string              `json:"discount_amount"`
	TotalAmount     string              `json:"total_amount"`
	PaymentMethod   string              `json:"payment_method"`
	Note            *string             `json:"note"`
	CreatedBy       uuid.UUID           `json:"created_by"`
	CreatedAt       time.Time           `json:"created_at"`
	Items           []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ID              uuid.UUID `json:"id"`
	MenuItemID      uuid.UUID `json:"menu_item_id"`
	Name            string    `json:"name"`
	Quantity        int32     `json:"quantity"`
	UnitPrice       string    `json:"unit_price"`
	Subtotal        string    `json:"subtotal"`
	Note            *string   `json:"note"`
	Temperature     string    `json:"temperature"`
	ConsumptionMode string    `json:"consumption_mode"`
}

type lowStockAlertResponse struct {
	IngredientID uuid.UUID `json:"ingredient_id"`
	Name         string    `json:"name"`
	Available    float64   `json:"available"`
	Unit         string    `json:"unit"`
	Status       string    `json:"status"`
}

type placeOrderResponse struct {
	orderResponse
	Alerts []lowStockAlertResponse `json:"low_stock_alerts"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// --- Handlers ---

// Create handles POST /shops/{sid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	svcItems := make([]service.PlaceOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		svcItems[i] = service.PlaceOrderItemRequest{
			MenuItemID:      item.MenuItemID,
			Quantity:        item.Quantity,
			Note:            item.Note,
			Temperature:     item.Temperature,
			ConsumptionMode: item.ConsumptionMode,
		}
	}

	result, err := h.svc.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		ShopID:          shopID,
		CreatedBy:       claims.UserID,
		CustomerID:      req.CustomerID,
		PaymentMethod:   req.PaymentMethod,
		DiscountPercent: req.DiscountPercent,
		Note:            req.Note,
		Items:           svcItems,
	})
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	// The order already committed; a client disconnect must not cancel
	// the rollup or the broadcasts.
	h.afterCommit(context.WithoutCancel(r.Context()), result)

	resp := placeOrderResponse{
		orderResponse: toOrderResponse(result.Order, result.Items),
		Alerts:        make([]lowStockAlertResponse, len(result.Alerts)),
	}
	for i, a := range result.Alerts {
		resp.Alerts[i] = lowStockAlertResponse{
			IngredientID: a.IngredientID,
			Name:         a.Name,
			Available:    a.Available.Value,
			Unit:         string(a.Available.Unit),
			Status:       a.Status,
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// writeOrderError maps service errors onto HTTP status codes.
func (h *OrderHandler) writeOrderError(w http.ResponseWriter, err error) {
	var verrs service.ValidationErrors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"violations": verrs,
		})
		return
	}

	var insuffErr *service.InsufficientStockError
	if errors.As(err, &insuffErr) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":      "insufficient stock",
			"ingredient": insuffErr.Ingredient,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrTransactionConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrMenuItemNotFound),
		errors.Is(err, service.ErrInvalidMenuItemID),
		errors.Is(err, service.ErrInvalidCustomerID):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: place order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// afterCommit runs the post-commit side channels: the daily revenue rollup
// and websocket notifications. Both are best-effort; the order already
// committed and is never rolled back here.
func (h *OrderHandler) afterCommit(ctx context.Context, result *service.PlaceOrderResult) {
	if h.revenue != nil {
		if err := h.revenue.RecordOrder(ctx, result.Order, result.Items); err != nil {
			log.Printf("ERROR: record revenue for order %s: %v", result.Order.OrderNumber, err)
		}
	}

	if h.hub == nil {
		return
	}
	shopID := result.Order.ShopID

	payload, _ := json.Marshal(map[string]string{"order_number": result.Order.OrderNumber})
	h.hub.BroadcastToShop(shopID, ws.Event{Type: ws.EventStockChanged, Payload: payload})

	for _, a := range result.Alerts {
		payload, _ := json.Marshal(lowStockAlertResponse{
			IngredientID: a.IngredientID,
			Name:         a.Name,
			Available:    a.Available.Value,
			Unit:         string(a.Available.Unit),
			Status:       a.Status,
		})
		h.hub.BroadcastToShop(shopID, ws.Event{Type: ws.EventLowStockAlert, Payload: payload})
	}
	if len(result.Alerts) > 0 {
		// An alert means an ingredient crossed its threshold, which can flip
		// menu availability. Clients refetch the menu on this event.
		h.hub.BroadcastToShop(shopID, ws.Event{Type: ws.EventAvailabilityChanged, Payload: nil})
	}
}

// List handles GET /shops/{sid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		ShopID: shopID,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o, nil)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /shops/{sid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{
		ID:     orderID,
		ShopID: shopID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItems(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order, items))
}

// --- Helpers ---

func toOrderResponse(o database.Order, items []database.OrderItem) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		ShopID:          o.ShopID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		Subtotal:        numericToString(o.Subtotal),
		DiscountPercent: numericToString(o.DiscountPercent),
		DiscountAmount:  numericToString(o.DiscountAmount),
		TotalAmount:     numericToString(o.TotalAmount),
		PaymentMethod:   o.PaymentMethod,
		CreatedBy:       o.CreatedBy,
		CreatedAt:       o.CreatedAt,
		Items:           make([]orderItemResponse, len(items)),
	}
	if o.CustomerID.Valid {
		s := uuid.UUID(o.CustomerID.Bytes).String()
		resp.CustomerID = &s
	}
	if o.Note.Valid {
		resp.Note = &o.Note.String
	}
	for i, item := range items {
		resp.Items[i] = toOrderItemResponse(item)
	}
	return resp
}

func toOrderItemResponse(item database.OrderItem) orderItemResponse {
	resp := orderItemResponse{
		ID:              item.ID,
		MenuItemID:      item.MenuItemID,
		Name:            item.Name,
		Quantity:        item.Quantity,
		UnitPrice:       numericToString(item.UnitPrice),
		Subtotal:        numericToString(item.Subtotal),
		Temperature:     item.Temperature,
		ConsumptionMode: item.ConsumptionMode,
	}
	if item.Note.Valid {
		resp.Note = &item.Note.String
	}
	return resp
}
