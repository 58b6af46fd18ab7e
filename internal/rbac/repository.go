package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaultry/vaultry/internal/platform/db"
	"github.com/vaultry/vaultry/internal/shared"
)

// Repository provides PostgreSQL backed persistence for policies and
// controlled actions. It is the sole owner of the rbacs table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

const policyColumns = `id, role_id, foreign_model, foreign_id, control_function, created, modified, created_by, modified_by`

func scanPolicy(row pgx.Row) (*Policy, error) {
	var p Policy
	var kind, fn string
	if err := row.Scan(&p.ID, &p.RoleID, &kind, &p.ActionID, &fn, &p.Created, &p.Modified, &p.CreatedBy, &p.ModifiedBy); err != nil {
		return nil, err
	}
	p.Kind = ActionKind(kind)
	p.ControlFunction = ControlFunction(fn)
	return &p, nil
}

// FindByRoleAndAction returns the policy governing a (role, kind, action)
// tuple. The unique index guarantees at most one row; the first match wins.
func (r *Repository) FindByRoleAndAction(ctx context.Context, roleID uuid.UUID, kind ActionKind, actionID uuid.UUID) (*Policy, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+policyColumns+` FROM rbacs
WHERE role_id = $1 AND foreign_model = $2 AND foreign_id = $3 LIMIT 1`, roleID, string(kind), actionID)
	p, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListByRole returns all policies attached to a role.
func (r *Repository) ListByRole(ctx context.Context, roleID uuid.UUID) ([]Policy, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+policyColumns+` FROM rbacs WHERE role_id = $1 ORDER BY created`, roleID)
	if err != nil {
		return nil, err
	}
	return collectPolicies(rows)
}

// ListByRoleName returns all policies attached to the active role with the
// given name. Used to load the clone template on role creation.
func (r *Repository) ListByRoleName(ctx context.Context, roleName string) ([]Policy, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.id, r.role_id, r.foreign_model, r.foreign_id, r.control_function, r.created, r.modified, r.created_by, r.modified_by
FROM rbacs r
JOIN roles ON roles.id = r.role_id
WHERE roles.name = $1 AND roles.deleted IS NULL
ORDER BY r.created`, roleName)
	if err != nil {
		return nil, err
	}
	return collectPolicies(rows)
}

func collectPolicies(rows pgx.Rows) ([]Policy, error) {
	defer rows.Close()
	var policies []Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return policies, nil
}

// List returns every policy joined with its controlled action display name.
func (r *Repository) List(ctx context.Context) ([]PolicyView, error) {
	return r.listViews(ctx, `SELECT r.id, r.role_id, r.foreign_model, r.foreign_id, r.control_function, r.created, r.modified, r.created_by, r.modified_by, a.name
FROM rbacs r
JOIN controlled_actions a ON a.id = r.foreign_id AND a.foreign_model = r.foreign_model
ORDER BY a.name, r.created`)
}

// ListViewsByRole returns a role's policies joined with action display names.
func (r *Repository) ListViewsByRole(ctx context.Context, roleID uuid.UUID) ([]PolicyView, error) {
	return r.listViews(ctx, `SELECT r.id, r.role_id, r.foreign_model, r.foreign_id, r.control_function, r.created, r.modified, r.created_by, r.modified_by, a.name
FROM rbacs r
JOIN controlled_actions a ON a.id = r.foreign_id AND a.foreign_model = r.foreign_model
WHERE r.role_id = $1
ORDER BY a.name`, roleID)
}

func (r *Repository) listViews(ctx context.Context, query string, args ...any) ([]PolicyView, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var views []PolicyView
	for rows.Next() {
		var v PolicyView
		var kind, fn string
		if err := rows.Scan(&v.ID, &v.RoleID, &kind, &v.ActionID, &fn, &v.Created, &v.Modified, &v.CreatedBy, &v.ModifiedBy, &v.ActionName); err != nil {
			return nil, err
		}
		v.Kind = ActionKind(kind)
		v.ControlFunction = ControlFunction(fn)
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return views, nil
}

// DeleteAllForRole hard-deletes every policy attached to a role. Deleting a
// role with zero policies is a successful no-op.
func (r *Repository) DeleteAllForRole(ctx context.Context, roleID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rbacs WHERE role_id = $1`, roleID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GovernedRoleIDs returns the ids of all active roles subject to explicit
// per-action policies, i.e. everything except guest and admin.
func (r *Repository) GovernedRoleIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM roles
WHERE name NOT IN ($1, $2) AND deleted IS NULL`, shared.RoleGuest, shared.RoleAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// UncoveredBackendActions resolves names to registered backend actions that
// do not yet have any backend-action policy. Seeding skips covered actions,
// which makes reruns idempotent.
func (r *Repository) UncoveredBackendActions(ctx context.Context, names []string) ([]ControlledAction, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.name FROM controlled_actions a
WHERE a.foreign_model = $1 AND a.name = ANY($2)
AND NOT EXISTS (
	SELECT 1 FROM rbacs WHERE foreign_model = $1 AND foreign_id = a.id
)
ORDER BY a.name`, string(KindBackendAction), names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var actions []ControlledAction
	for rows.Next() {
		var a ControlledAction
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, err
		}
		a.Kind = KindBackendAction
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return actions, nil
}

// InsertAction inserts a controlled action row, reporting whether a row was
// actually created. The deterministic id makes concurrent registration of the
// same name collapse into a single row.
func (r *Repository) InsertAction(ctx context.Context, action ControlledAction) (bool, error) {
	tag, err := r.pool.Exec(ctx, `INSERT INTO controlled_actions (id, name, foreign_model)
VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`, action.ID, action.Name, string(action.Kind))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FindAction returns a controlled action by kind and id.
func (r *Repository) FindAction(ctx context.Context, kind ActionKind, id uuid.UUID) (*ControlledAction, error) {
	var a ControlledAction
	var model string
	err := r.pool.QueryRow(ctx, `SELECT id, name, foreign_model FROM controlled_actions
WHERE id = $1 AND foreign_model = $2`, id, string(kind)).Scan(&a.ID, &a.Name, &model)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrActionNotFound
		}
		return nil, err
	}
	a.Kind = ActionKind(model)
	return &a, nil
}

// WithTx wraps fn in a repeatable-read transaction over the policy table.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

type txStore struct {
	tx pgx.Tx
}

// Get returns a policy by id, locking the row for the transaction.
func (t *txStore) Get(ctx context.Context, id uuid.UUID) (*Policy, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+policyColumns+` FROM rbacs WHERE id = $1 FOR UPDATE`, id)
	p, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// UpdateControlFunction applies a new control function and audit stamp.
func (t *txStore) UpdateControlFunction(ctx context.Context, id uuid.UUID, fn ControlFunction, actorID uuid.UUID) (*Policy, error) {
	row := t.tx.QueryRow(ctx, `UPDATE rbacs
SET control_function = $2, modified = $3, modified_by = $4
WHERE id = $1
RETURNING `+policyColumns, id, string(fn), time.Now().UTC(), actorID)
	p, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// InsertMany bulk-inserts policies inside the transaction.
func (t *txStore) InsertMany(ctx context.Context, policies []Policy) (int64, error) {
	if len(policies) == 0 {
		return 0, nil
	}
	rows := make([][]any, 0, len(policies))
	for _, p := range policies {
		rows = append(rows, []any{
			p.ID, p.RoleID, string(p.Kind), p.ActionID, string(p.ControlFunction),
			p.Created, p.Modified, p.CreatedBy, p.ModifiedBy,
		})
	}
	count, err := t.tx.CopyFrom(ctx, pgx.Identifier{"rbacs"},
		[]string{"id", "role_id", "foreign_model", "foreign_id", "control_function", "created", "modified", "created_by", "modified_by"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("rbac: insert policies: %w", err)
	}
	return count, nil
}
