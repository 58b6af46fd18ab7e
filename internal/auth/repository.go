package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides read access to user accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

const userQuery = `SELECT u.id, u.username, u.password_hash, u.role_id, r.name, u.active, u.created, u.modified
FROM users u
JOIN roles r ON r.id = u.role_id AND r.deleted IS NULL`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.RoleID, &u.RoleName, &u.Active, &u.Created, &u.Modified); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByUsername returns the user with the given username, with its active
// role resolved. Unknown usernames map to ErrInvalidCredentials so the login
// path cannot distinguish a missing account from a wrong password.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, userQuery+` WHERE u.username = $1`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return u, nil
}

// FindByID returns the user with the given id, with its active role resolved.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, userQuery+` WHERE u.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}
