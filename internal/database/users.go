package database

import (
	"context"

	"github.com/google/uuid"
)

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const sql = `SELECT id, shop_id, email, hashed_password, full_name, role, is_active, created_at, updated_at
		FROM users WHERE email = $1 AND is_active = true`
	var u User
	err := q.db.QueryRow(ctx, sql, email).Scan(
		&u.ID, &u.ShopID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	const sql = `SELECT id, shop_id, email, hashed_password, full_name, role, is_active, created_at, updated_at
		FROM users WHERE id = $1 AND is_active = true`
	var u User
	err := q.db.QueryRow(ctx, sql, id).Scan(
		&u.ID, &u.ShopID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}
