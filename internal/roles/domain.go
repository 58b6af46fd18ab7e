// Package roles manages the role catalog: admin-only CRUD over soft-deleted
// roles, with lifecycle hooks so dependent features can react to role
// creation and deletion.
package roles

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vaultry/vaultry/internal/shared"
)

// MaxActiveRoles bounds the number of non-deleted roles.
const MaxActiveRoles = 5

// reservedNames cannot be created or deleted through the API.
var reservedNames = []string{shared.RoleGuest, shared.RoleUser, shared.RoleAdmin, "root"}

// IsReservedName reports whether a role name is reserved.
func IsReservedName(name string) bool {
	for _, reserved := range reservedNames {
		if name == reserved {
			return true
		}
	}
	return false
}

// Role is a named set of capabilities users are assigned to. Roles are soft
// deleted: a deleted role keeps its row with a deletion stamp.
type Role struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	Created     time.Time  `json:"created"`
	Modified    time.Time  `json:"modified"`
	CreatedBy   *uuid.UUID `json:"created_by,omitempty"`
	ModifiedBy  *uuid.UUID `json:"modified_by,omitempty"`
	Deleted     *time.Time `json:"deleted,omitempty"`
	DeletedBy   *uuid.UUID `json:"deleted_by,omitempty"`
}

// Active reports whether the role has not been deleted.
func (r *Role) Active() bool {
	return r.Deleted == nil
}

// CreateRoleRequest carries the payload for creating a role.
type CreateRoleRequest struct {
	Name        string  `json:"name" validate:"required,printascii,max=50"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=255"`
}

// UpdateRoleRequest carries the payload for updating a role.
type UpdateRoleRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,printascii,max=50"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=255"`
}

// Sentinel errors.
var (
	ErrNotFound     = errors.New("roles: role not found")
	ErrNameTaken    = errors.New("roles: a role already exists for the given name")
	ErrNameReserved = errors.New("roles: the name is a reserved role name")
	ErrTooManyRoles = errors.New("roles: maximum number of active roles reached")
	ErrForbidden    = errors.New("roles: administrator role required")
	ErrMissingActor = errors.New("roles: acting user required")
)

// LifecycleHooks receive notifications after role transitions commit. The
// access control reactor implements this to keep policies in sync.
type LifecycleHooks interface {
	OnRoleCreated(ctx context.Context, actor shared.Actor, roleID uuid.UUID) error
	OnRoleDeleted(ctx context.Context, actor shared.Actor, roleID uuid.UUID) error
}

// Store is the persistence port for roles.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Role, error)
	ListActive(ctx context.Context) ([]Role, error)
	CountActive(ctx context.Context) (int, error)
	Insert(ctx context.Context, role Role) error
	Update(ctx context.Context, role Role) error
	SoftDelete(ctx context.Context, id uuid.UUID, deletedBy uuid.UUID, at time.Time) error
}
