package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopiraya-pos/api/internal/database"
	"github.com/kopiraya-pos/api/internal/enum"
	"github.com/kopiraya-pos/api/internal/inventory"
	"github.com/kopiraya-pos/api/internal/measure"
	"github.com/shopspring/decimal"
)

// MenuStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	ListMenuItems(ctx context.Context, shopID uuid.UUID) ([]database.MenuItem, error)
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	GetIngredient(ctx context.Context, arg database.GetIngredientParams) (database.Ingredient, error)
	ListRecipeLines(ctx context.Context, menuItemID uuid.UUID) ([]database.ListRecipeLinesRow, error)
	ListIngredients(ctx context.Context, shopID uuid.UUID) ([]database.Ingredient, error)
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	CreateRecipeLine(ctx context.Context, arg database.CreateRecipeLineParams) error
}

// MenuHandler handles menu endpoints. Availability is derived from the
// ingredient ledger at read time rather than stored, so it can never go
// stale: a menu item is available if one serving of its recipe is satisfied.
type MenuHandler struct {
	store MenuStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterRoutes registers menu endpoints on the given Chi router.
// Expected to be mounted inside a shop-scoped subrouter: /shops/{sid}/menu
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
}

// --- Request / Response types ---

type createMenuItemRequest struct {
	Name     string                  `json:"name"`
	Price    string                  `json:"price"`
	Category string                  `json:"category"`
	Recipe   []createRecipeLineInput `json:"recipe"`
}

type createRecipeLineInput struct {
	IngredientID string  `json:"ingredient_id"`
	Amount       float64 `json:"amount"`
	Unit         string  `json:"unit"`
}

type recipeLineResponse struct {
	IngredientID   uuid.UUID `json:"ingredient_id"`
	IngredientName string    `json:"ingredient_name"`
	Amount         float64   `json:"amount"`
	Unit           string    `json:"unit"`
}

type menuItemResponse struct {
	ID        uuid.UUID            `json:"id"`
	ShopID    uuid.UUID            `json:"shop_id"`
	Name      string               `json:"name"`
	Price     string               `json:"price"`
	Category  string               `json:"category"`
	Available bool                 `json:"available"`
	Recipe    []recipeLineResponse `json:"recipe,omitempty"`
}

// --- Handlers ---

// List handles GET /shops/{sid}/menu.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	items, err := h.store.ListMenuItems(r.Context(), shopID)
	if err != nil {
		log.Printf("ERROR: list menu items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	index, err := h.ledgerIndex(r.Context(), shopID)
	if err != nil {
		log.Printf("ERROR: load ledger for availability: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, item := range items {
		lines, err := h.store.ListRecipeLines(r.Context(), item.ID)
		if err != nil {
			log.Printf("ERROR: list recipe lines: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp[i] = toMenuItemResponse(item, lines, index)
	}

	writeJSON(w, http.StatusOK, map[string]any{"menu": resp})
}

// Get handles GET /shops/{sid}/menu/{id}.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	item, err := h.store.GetMenuItem(r.Context(), database.GetMenuItemParams{ID: id, ShopID: shopID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	lines, err := h.store.ListRecipeLines(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list recipe lines: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	index, err := h.ledgerIndex(r.Context(), shopID)
	if err != nil {
		log.Printf("ERROR: load ledger for availability: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(item, lines, index))
}

// Create handles POST /shops/{sid}/menu.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	var req createMenuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || !price.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be a positive number"})
		return
	}

	type parsedLine struct {
		ingredientID uuid.UUID
		amount       float64
		unit         string
	}
	parsed := make([]parsedLine, len(req.Recipe))
	for i, line := range req.Recipe {
		ingredientID, err := uuid.Parse(line.IngredientID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient_id in recipe"})
			return
		}
		if line.Amount <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "recipe amounts must be positive"})
			return
		}
		if _, err := measure.ParseUnit(line.Unit); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit in recipe"})
			return
		}
		// Recipe lines may only reference this shop's ledger. The
		// consumption path trusts recipe rows, so ownership is enforced here.
		if _, err := h.store.GetIngredient(r.Context(), database.GetIngredientParams{
			ID:     ingredientID,
			ShopID: shopID,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ingredient not found in this shop"})
				return
			}
			log.Printf("ERROR: verify recipe ingredient ownership: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		parsed[i] = parsedLine{ingredientID: ingredientID, amount: line.Amount, unit: line.Unit}
	}

	var priceNumeric pgtype.Numeric
	_ = priceNumeric.Scan(price.StringFixed(2))

	item, err := h.store.CreateMenuItem(r.Context(), database.CreateMenuItemParams{
		ShopID:   shopID,
		Name:     req.Name,
		Price:    priceNumeric,
		Category: defaultCategory(req.Category),
	})
	if err != nil {
		log.Printf("ERROR: create menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	for _, line := range parsed {
		err := h.store.CreateRecipeLine(r.Context(), database.CreateRecipeLineParams{
			MenuItemID:   item.ID,
			IngredientID: line.ingredientID,
			Amount:       line.amount,
			Unit:         line.unit,
		})
		if err != nil {
			log.Printf("ERROR: create recipe line: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	lines, err := h.store.ListRecipeLines(r.Context(), item.ID)
	if err != nil {
		log.Printf("ERROR: list recipe lines: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	index, err := h.ledgerIndex(r.Context(), shopID)
	if err != nil {
		log.Printf("ERROR: load ledger for availability: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toMenuItemResponse(item, lines, index))
}

// --- Helpers ---

func defaultCategory(s string) string {
	if s == "" {
		return enum.MenuCategoryOther
	}
	return s
}

// ledgerIndex loads the shop's ledger into an in-memory index for
// availability checks. One read serves the whole menu listing.
func (h *MenuHandler) ledgerIndex(ctx context.Context, shopID uuid.UUID) (inventory.Index, error) {
	rows, err := h.store.ListIngredients(ctx, shopID)
	if err != nil {
		return nil, err
	}
	index := make(inventory.Index, len(rows))
	for _, row := range rows {
		index[row.ID] = inventory.LedgerEntry{
			ID:          row.ID,
			ShopID:      row.ShopID,
			Name:        row.Name,
			Quantity:    row.Quantity,
			PerUnit:     measure.New(row.UnitValue, measure.Unit(row.Unit)),
			Used:        row.Used,
			MinQuantity: row.MinQuantity,
		}
	}
	return index, nil
}

func toMenuItemResponse(item database.MenuItem, lines []database.ListRecipeLinesRow, index inventory.Index) menuItemResponse {
	recipe := make([]inventory.RecipeLine, len(lines))
	recipeResp := make([]recipeLineResponse, len(lines))
	for i, line := range lines {
		recipe[i] = inventory.RecipeLine{
			IngredientID:   line.IngredientID,
			IngredientName: line.IngredientName,
			Required:       measure.New(line.Amount, measure.Unit(line.Unit)),
		}
		recipeResp[i] = recipeLineResponse{
			IngredientID:   line.IngredientID,
			IngredientName: line.IngredientName,
			Amount:         line.Amount,
			Unit:           line.Unit,
		}
	}
	return menuItemResponse{
		ID:        item.ID,
		ShopID:    item.ShopID,
		Name:      item.Name,
		Price:     numericToString(item.Price),
		Category:  item.Category,
		Available: inventory.Available(recipe, index),
		Recipe:    recipeResp,
	}
}
