// Package rbac implements role-based access control for controlled actions:
// the catalog of governable actions, per-role policies, policy evaluation,
// default-deny seeding and role lifecycle maintenance.
package rbac

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ControlFunction is the verb applied to a (role, action) pair.
type ControlFunction string

const (
	ControlFunctionAllow ControlFunction = "Allow"
	ControlFunctionDeny  ControlFunction = "Deny"
	// ControlFunctionAllowIfGroupManagerInOneGroup permits the action only when
	// the acting user manages at least one group.
	ControlFunctionAllowIfGroupManagerInOneGroup ControlFunction = "AllowIfGroupManagerInOneGroup"
)

// Known reports whether f is part of the closed control function enumeration.
func (f ControlFunction) Known() bool {
	switch f {
	case ControlFunctionAllow, ControlFunctionDeny, ControlFunctionAllowIfGroupManagerInOneGroup:
		return true
	}
	return false
}

// Conditional reports whether f requires delegating to a predicate evaluated
// against the acting user.
func (f ControlFunction) Conditional() bool {
	return f == ControlFunctionAllowIfGroupManagerInOneGroup
}

// ActionKind discriminates the two families of controlled actions.
type ActionKind string

const (
	// KindUIAction is a client capability (copy secret, import resources, ...).
	KindUIAction ActionKind = "UiAction"
	// KindBackendAction is a guarded server endpoint.
	KindBackendAction ActionKind = "Action"
)

// Known reports whether k is a recognized action kind.
func (k ActionKind) Known() bool {
	return k == KindUIAction || k == KindBackendAction
}

// ControlledAction is a catalog entry whose access is governed by policies.
type ControlledAction struct {
	ID   uuid.UUID
	Name string
	Kind ActionKind
}

// ActionID derives the identifier of a controlled action from its name.
// The derivation is deterministic, so registering the same name twice always
// targets the same row and duplicate registrations collapse into no-ops.
func ActionID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(name))
}

// Policy binds a role to a controlled action through a control function.
// At most one policy exists per (role, kind, action) tuple.
type Policy struct {
	ID              uuid.UUID       `json:"id"`
	RoleID          uuid.UUID       `json:"role_id"`
	Kind            ActionKind      `json:"foreign_model"`
	ActionID        uuid.UUID       `json:"foreign_id"`
	ControlFunction ControlFunction `json:"control_function"`
	Created         time.Time       `json:"created"`
	Modified        time.Time       `json:"modified"`
	CreatedBy       *uuid.UUID      `json:"created_by,omitempty"`
	ModifiedBy      *uuid.UUID      `json:"modified_by,omitempty"`
}

// PolicyView is a policy joined with the display name of its controlled action.
type PolicyView struct {
	Policy
	ActionName string `json:"action_name"`
}

// PolicyUpdate is one entry of a bulk control function change.
type PolicyUpdate struct {
	ID              uuid.UUID       `json:"id" validate:"required"`
	ControlFunction ControlFunction `json:"control_function" validate:"required"`
}

// Decision is the outcome of evaluating a (role, action) pair.
type Decision int

const (
	DecisionDeny Decision = iota
	DecisionAllow
)

// Sentinel errors.
var (
	// ErrNotFound indicates a referenced policy does not exist.
	ErrNotFound = errors.New("rbac: policy not found")
	// ErrActionNotFound indicates a controlled action id is not in the catalog.
	ErrActionNotFound = errors.New("rbac: controlled action not found")
	// ErrAccessDenied is the normal negative outcome of an access check. It is
	// never logged as an error and maps to a 403 at the HTTP boundary.
	ErrAccessDenied = errors.New("rbac: access denied")
	// ErrMissingEventData indicates a lifecycle hook was invoked without the
	// required actor or role payload. This is a programming error.
	ErrMissingEventData = errors.New("rbac: lifecycle event data missing")
	// ErrPolicyMisconfigured indicates a stored control function that is not
	// legal for its action. This is a data integrity problem, not a deny.
	ErrPolicyMisconfigured = errors.New("rbac: control function not allowed for action")
)

// FieldControlFunctionAllowed is the field path reported when a bulk update
// carries a control function outside the action's allowed set.
const FieldControlFunctionAllowed = "control_function.isControlFunctionAllowed"

// ValidationError reports a rejected field in a bulk policy update.
type ValidationError struct {
	PolicyID uuid.UUID
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	return "rbac: " + e.Field + ": " + e.Message
}

// Store is the persistence port for policies and controlled actions.
type Store interface {
	FindByRoleAndAction(ctx context.Context, roleID uuid.UUID, kind ActionKind, actionID uuid.UUID) (*Policy, error)
	ListByRole(ctx context.Context, roleID uuid.UUID) ([]Policy, error)
	ListByRoleName(ctx context.Context, roleName string) ([]Policy, error)
	List(ctx context.Context) ([]PolicyView, error)
	ListViewsByRole(ctx context.Context, roleID uuid.UUID) ([]PolicyView, error)
	DeleteAllForRole(ctx context.Context, roleID uuid.UUID) (int64, error)
	GovernedRoleIDs(ctx context.Context) ([]uuid.UUID, error)
	UncoveredBackendActions(ctx context.Context, names []string) ([]ControlledAction, error)
	InsertAction(ctx context.Context, action ControlledAction) (bool, error)
	FindAction(ctx context.Context, kind ActionKind, id uuid.UUID) (*ControlledAction, error)
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
}

// TxStore exposes the operations that must run inside a single transaction.
type TxStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Policy, error)
	UpdateControlFunction(ctx context.Context, id uuid.UUID, fn ControlFunction, actorID uuid.UUID) (*Policy, error)
	InsertMany(ctx context.Context, policies []Policy) (int64, error)
}
