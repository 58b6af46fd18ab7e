package roles

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for roles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

const roleColumns = `id, name, description, created, modified, created_by, modified_by, deleted, deleted_by`

func scanRole(row pgx.Row) (*Role, error) {
	var r Role
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Created, &r.Modified, &r.CreatedBy, &r.ModifiedBy, &r.Deleted, &r.DeletedBy); err != nil {
		return nil, err
	}
	return &r, nil
}

// Get returns an active role by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles
WHERE id = $1 AND deleted IS NULL`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return role, nil
}

// ListActive returns all non-deleted roles ordered by name.
func (r *Repository) ListActive(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles
WHERE deleted IS NULL ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// CountActive returns the number of non-deleted roles.
func (r *Repository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles WHERE deleted IS NULL`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Insert persists a new role. A unique violation on the name maps to
// ErrNameTaken.
func (r *Repository) Insert(ctx context.Context, role Role) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO roles (id, name, description, created, modified, created_by, modified_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		role.ID, role.Name, role.Description, role.Created, role.Modified, role.CreatedBy, role.ModifiedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrNameTaken
		}
		return err
	}
	return nil
}

// Update persists name, description and modification stamps of a role.
func (r *Repository) Update(ctx context.Context, role Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE roles
SET name = $2, description = $3, modified = $4, modified_by = $5
WHERE id = $1 AND deleted IS NULL`,
		role.ID, role.Name, role.Description, role.Modified, role.ModifiedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrNameTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete stamps the role as deleted. Already deleted roles map to
// ErrNotFound.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID, deletedBy uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE roles
SET deleted = $2, deleted_by = $3, modified = $2, modified_by = $3
WHERE id = $1 AND deleted IS NULL`, id, at, deletedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
