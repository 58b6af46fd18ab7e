// Package groups exposes group membership queries. Access policies with a
// conditional control function delegate their predicate here.
package groups

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides read access to group membership.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// IsManagerOfAnyGroup reports whether the user manages at least one group.
func (r *Repository) IsManagerOfAnyGroup(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
	SELECT 1 FROM groups_users WHERE user_id = $1 AND is_admin
)`, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
