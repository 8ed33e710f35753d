package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopiraya-pos/api/internal/database"
	"github.com/kopiraya-pos/api/internal/inventory"
	"github.com/kopiraya-pos/api/internal/measure"
	"github.com/kopiraya-pos/api/internal/ws"
	"github.com/shopspring/decimal"
)

// InventoryStore defines the database methods needed by inventory handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type InventoryStore interface {
	ListIngredients(ctx context.Context, shopID uuid.UUID) ([]database.Ingredient, error)
	ListLowStockIngredients(ctx context.Context, shopID uuid.UUID) ([]database.Ingredient, error)
	GetIngredient(ctx context.Context, arg database.GetIngredientParams) (database.Ingredient, error)
	CreateIngredient(ctx context.Context, arg database.CreateIngredientParams) (database.Ingredient, error)
	RestockIngredient(ctx context.Context, arg database.RestockIngredientParams) (database.Ingredient, error)
}

// InventoryHandler handles ingredient ledger endpoints.
type InventoryHandler struct {
	store InventoryStore
	hub   Broadcaster
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(store InventoryStore, hub Broadcaster) *InventoryHandler {
	return &InventoryHandler{store: store, hub: hub}
}

// RegisterRoutes registers ingredient endpoints on the given Chi router.
// Expected to be mounted inside a shop-scoped subrouter: /shops/{sid}/ingredients
func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/low-stock", h.ListLowStock)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/restock", h.Restock)
}

// --- Request / Response types ---

type createIngredientRequest struct {
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	UnitValue   float64 `json:"unit_value"`
	Unit        string  `json:"unit"`
	MinQuantity float64 `json:"min_quantity"`
	CostPrice   string  `json:"cost_price"`
}

type restockRequest struct {
	AddQuantity float64 `json:"add_quantity"`
}

type ingredientResponse struct {
	ID           uuid.UUID `json:"id"`
	ShopID       uuid.UUID `json:"shop_id"`
	Name         string    `json:"name"`
	Quantity     float64   `json:"quantity"`
	UnitValue    float64   `json:"unit_value"`
	Unit         string    `json:"unit"`
	Used         float64   `json:"used"`
	Available    float64   `json:"available"`
	MinQuantity  float64   `json:"min_quantity"`
	Status       string    `json:"status"`
	UsagePercent float64   `json:"usage_percent"`
	CostPrice    string    `json:"cost_price"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// --- Handlers ---

// List handles GET /shops/{sid}/ingredients.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	rows, err := h.store.ListIngredients(r.Context(), shopID)
	if err != nil {
		log.Printf("ERROR: list ingredients: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]ingredientResponse, len(rows))
	for i, row := range rows {
		resp[i] = toIngredientResponse(row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ingredients": resp})
}

// ListLowStock handles GET /shops/{sid}/ingredients/low-stock.
func (h *InventoryHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	rows, err := h.store.ListLowStockIngredients(r.Context(), shopID)
	if err != nil {
		log.Printf("ERROR: list low stock: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]ingredientResponse, len(rows))
	for i, row := range rows {
		resp[i] = toIngredientResponse(row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ingredients": resp})
}

// Get handles GET /shops/{sid}/ingredients/{id}.
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient ID"})
		return
	}

	row, err := h.store.GetIngredient(r.Context(), database.GetIngredientParams{ID: id, ShopID: shopID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ingredient not found"})
			return
		}
		log.Printf("ERROR: get ingredient: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toIngredientResponse(row))
}

// Create handles POST /shops/{sid}/ingredients.
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	var req createIngredientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if _, err := measure.ParseUnit(req.Unit); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit"})
		return
	}
	if req.Quantity < 0 || req.UnitValue <= 0 || req.MinQuantity < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity, unit_value and min_quantity must be non-negative, unit_value positive"})
		return
	}

	costPrice := pgtype.Numeric{}
	if req.CostPrice != "" {
		d, err := decimal.NewFromString(req.CostPrice)
		if err != nil || d.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cost_price"})
			return
		}
		_ = costPrice.Scan(d.StringFixed(2))
	}

	row, err := h.store.CreateIngredient(r.Context(), database.CreateIngredientParams{
		ShopID:      shopID,
		Name:        req.Name,
		Quantity:    req.Quantity,
		UnitValue:   req.UnitValue,
		Unit:        req.Unit,
		MinQuantity: req.MinQuantity,
		CostPrice:   costPrice,
	})
	if err != nil {
		log.Printf("ERROR: create ingredient: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toIngredientResponse(row))
}

// Restock handles POST /shops/{sid}/ingredients/{id}/restock.
func (h *InventoryHandler) Restock(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient ID"})
		return
	}

	var req restockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.AddQuantity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "add_quantity must be positive"})
		return
	}

	row, err := h.store.RestockIngredient(r.Context(), database.RestockIngredientParams{
		ID:          id,
		ShopID:      shopID,
		AddQuantity: req.AddQuantity,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ingredient not found"})
			return
		}
		log.Printf("ERROR: restock ingredient: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if h.hub != nil {
		payload, _ := json.Marshal(map[string]string{"ingredient_id": id.String()})
		h.hub.BroadcastToShop(shopID, ws.Event{Type: ws.EventStockChanged, Payload: payload})
		// restock can bring sold-out menu items back
		h.hub.BroadcastToShop(shopID, ws.Event{Type: ws.EventAvailabilityChanged, Payload: nil})
	}

	writeJSON(w, http.StatusOK, toIngredientResponse(row))
}

// --- Helpers ---

func toIngredientResponse(row database.Ingredient) ingredientResponse {
	entry := inventory.LedgerEntry{
		ID:          row.ID,
		ShopID:      row.ShopID,
		Name:        row.Name,
		Quantity:    row.Quantity,
		PerUnit:     measure.New(row.UnitValue, measure.Unit(row.Unit)),
		Used:        row.Used,
		MinQuantity: row.MinQuantity,
	}
	return ingredientResponse{
		ID:           row.ID,
		ShopID:       row.ShopID,
		Name:         row.Name,
		Quantity:     row.Quantity,
		UnitValue:    row.UnitValue,
		Unit:         row.Unit,
		Used:         row.Used,
		Available:    entry.Available().Value,
		MinQuantity:  row.MinQuantity,
		Status:       entry.Status(),
		UsagePercent: entry.UsagePercent(),
		CostPrice:    numericToString(row.CostPrice),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}
