package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const ingredientColumns = `id, shop_id, name, quantity, unit_value, unit, used, min_quantity, cost_price, created_at, updated_at`

func scanIngredient(row pgx.Row) (Ingredient, error) {
	var i Ingredient
	err := row.Scan(
		&i.ID, &i.ShopID, &i.Name, &i.Quantity, &i.UnitValue, &i.Unit,
		&i.Used, &i.MinQuantity, &i.CostPrice, &i.CreatedAt, &i.UpdatedAt,
	)
	return i, err
}

type GetIngredientParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

func (q *Queries) GetIngredient(ctx context.Context, arg GetIngredientParams) (Ingredient, error) {
	const sql = `SELECT ` + ingredientColumns + `
		FROM ingredients WHERE id = $1 AND shop_id = $2`
	return scanIngredient(q.db.QueryRow(ctx, sql, arg.ID, arg.ShopID))
}

// GetIngredientForUpdate reads a ledger row under a row lock. Must be called
// inside a transaction; the lock is held until commit or rollback.
func (q *Queries) GetIngredientForUpdate(ctx context.Context, id uuid.UUID) (Ingredient, error) {
	const sql = `SELECT ` + ingredientColumns + `
		FROM ingredients WHERE id = $1 FOR UPDATE`
	return scanIngredient(q.db.QueryRow(ctx, sql, id))
}

func (q *Queries) ListIngredients(ctx context.Context, shopID uuid.UUID) ([]Ingredient, error) {
	const sql = `SELECT ` + ingredientColumns + `
		FROM ingredients WHERE shop_id = $1 ORDER BY name`
	rows, err := q.db.Query(ctx, sql, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Ingredient
	for rows.Next() {
		i, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// ListLowStockIngredients returns entries whose remaining amount has fallen
// to or below the threshold, including out-of-stock rows.
func (q *Queries) ListLowStockIngredients(ctx context.Context, shopID uuid.UUID) ([]Ingredient, error) {
	const sql = `SELECT ` + ingredientColumns + `
		FROM ingredients
		WHERE shop_id = $1
		  AND (quantity <= 0 OR quantity * unit_value - used <= min_quantity * unit_value)
		ORDER BY name`
	rows, err := q.db.Query(ctx, sql, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Ingredient
	for rows.Next() {
		i, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type UpdateIngredientUsedParams struct {
	ID   uuid.UUID
	Used float64
}

// UpdateIngredientUsed overwrites the cumulative used amount. Callers must
// hold the row lock taken by GetIngredientForUpdate in the same transaction.
func (q *Queries) UpdateIngredientUsed(ctx context.Context, arg UpdateIngredientUsedParams) error {
	const sql = `UPDATE ingredients SET used = $2, updated_at = now() WHERE id = $1`
	_, err := q.db.Exec(ctx, sql, arg.ID, arg.Used)
	return err
}

type RestockIngredientParams struct {
	ID          uuid.UUID
	ShopID      uuid.UUID
	AddQuantity float64
}

// RestockIngredient adds stocking units to a ledger row atomically.
func (q *Queries) RestockIngredient(ctx context.Context, arg RestockIngredientParams) (Ingredient, error) {
	const sql = `UPDATE ingredients
		SET quantity = quantity + $3, updated_at = now()
		WHERE id = $1 AND shop_id = $2
		RETURNING ` + ingredientColumns
	return scanIngredient(q.db.QueryRow(ctx, sql, arg.ID, arg.ShopID, arg.AddQuantity))
}

type CreateIngredientParams struct {
	ShopID      uuid.UUID
	Name        string
	Quantity    float64
	UnitValue   float64
	Unit        string
	MinQuantity float64
	CostPrice   pgtype.Numeric
}

func (q *Queries) CreateIngredient(ctx context.Context, arg CreateIngredientParams) (Ingredient, error) {
	const sql = `INSERT INTO ingredients (shop_id, name, quantity, unit_value, unit, min_quantity, cost_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + ingredientColumns
	return scanIngredient(q.db.QueryRow(ctx, sql,
		arg.ShopID, arg.Name, arg.Quantity, arg.UnitValue, arg.Unit, arg.MinQuantity, arg.CostPrice))
}
