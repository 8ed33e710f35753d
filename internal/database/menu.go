package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, shop_id, name, price, category, is_active, created_at, updated_at`

func scanMenuItem(row pgx.Row) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(&m.ID, &m.ShopID, &m.Name, &m.Price, &m.Category, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

type GetMenuItemParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

func (q *Queries) GetMenuItem(ctx context.Context, arg GetMenuItemParams) (MenuItem, error) {
	const sql = `SELECT ` + menuItemColumns + `
		FROM menu_items WHERE id = $1 AND shop_id = $2 AND is_active = true`
	return scanMenuItem(q.db.QueryRow(ctx, sql, arg.ID, arg.ShopID))
}

func (q *Queries) ListMenuItems(ctx context.Context, shopID uuid.UUID) ([]MenuItem, error) {
	const sql = `SELECT ` + menuItemColumns + `
		FROM menu_items WHERE shop_id = $1 AND is_active = true ORDER BY category, name`
	rows, err := q.db.Query(ctx, sql, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// ListRecipeLinesRow joins the ingredient name so callers can build recipe
// lines without a second read.
type ListRecipeLinesRow struct {
	IngredientID   uuid.UUID
	IngredientName string
	Amount         float64
	Unit           string
}

func (q *Queries) ListRecipeLines(ctx context.Context, menuItemID uuid.UUID) ([]ListRecipeLinesRow, error) {
	const sql = `SELECT r.ingredient_id, i.name, r.amount, r.unit
		FROM recipe_lines r
		JOIN ingredients i ON i.id = r.ingredient_id
		WHERE r.menu_item_id = $1
		ORDER BY r.ingredient_id`
	rows, err := q.db.Query(ctx, sql, menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []ListRecipeLinesRow
	for rows.Next() {
		var l ListRecipeLinesRow
		if err := rows.Scan(&l.IngredientID, &l.IngredientName, &l.Amount, &l.Unit); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

type CreateMenuItemParams struct {
	ShopID   uuid.UUID
	Name     string
	Price    pgtype.Numeric
	Category string
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	const sql = `INSERT INTO menu_items (shop_id, name, price, category)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + menuItemColumns
	return scanMenuItem(q.db.QueryRow(ctx, sql, arg.ShopID, arg.Name, arg.Price, arg.Category))
}

type CreateRecipeLineParams struct {
	MenuItemID   uuid.UUID
	IngredientID uuid.UUID
	Amount       float64
	Unit         string
}

func (q *Queries) CreateRecipeLine(ctx context.Context, arg CreateRecipeLineParams) error {
	const sql = `INSERT INTO recipe_lines (menu_item_id, ingredient_id, amount, unit)
		VALUES ($1, $2, $3, $4)`
	_, err := q.db.Exec(ctx, sql, arg.MenuItemID, arg.IngredientID, arg.Amount, arg.Unit)
	return err
}
