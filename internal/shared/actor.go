package shared

import "github.com/google/uuid"

// Reserved role names. Guest and admin sit outside per-action policies; user is
// the canonical template cloned onto newly created roles.
const (
	RoleGuest = "guest"
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Actor identifies the authenticated user performing a request, together with
// the role the authorization engine evaluates against. It is the audit identity
// stamped on created_by/modified_by columns.
type Actor struct {
	UserID   uuid.UUID
	RoleID   uuid.UUID
	RoleName string
}

// IsAdmin reports whether the actor holds the reserved admin role.
func (a Actor) IsAdmin() bool {
	return a.RoleName == RoleAdmin
}

// Valid reports whether the actor carries a usable identity.
func (a Actor) Valid() bool {
	return a.UserID != uuid.Nil && a.RoleID != uuid.Nil
}
