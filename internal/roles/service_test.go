package roles

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultry/vaultry/internal/shared"
)

type mockStore struct {
	roles     map[uuid.UUID]*Role
	insertErr error
}

func newMockStore() *mockStore {
	return &mockStore{roles: make(map[uuid.UUID]*Role)}
}

func (m *mockStore) seed(name string) *Role {
	role := &Role{ID: uuid.New(), Name: name, Created: time.Now(), Modified: time.Now()}
	m.roles[role.ID] = role
	return role
}

func (m *mockStore) Get(ctx context.Context, id uuid.UUID) (*Role, error) {
	role, ok := m.roles[id]
	if !ok || role.Deleted != nil {
		return nil, ErrNotFound
	}
	copied := *role
	return &copied, nil
}

func (m *mockStore) ListActive(ctx context.Context) ([]Role, error) {
	var out []Role
	for _, role := range m.roles {
		if role.Deleted == nil {
			out = append(out, *role)
		}
	}
	return out, nil
}

func (m *mockStore) CountActive(ctx context.Context) (int, error) {
	count := 0
	for _, role := range m.roles {
		if role.Deleted == nil {
			count++
		}
	}
	return count, nil
}

func (m *mockStore) Insert(ctx context.Context, role Role) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, existing := range m.roles {
		if existing.Name == role.Name {
			return ErrNameTaken
		}
	}
	copied := role
	m.roles[role.ID] = &copied
	return nil
}

func (m *mockStore) Update(ctx context.Context, role Role) error {
	existing, ok := m.roles[role.ID]
	if !ok || existing.Deleted != nil {
		return ErrNotFound
	}
	copied := role
	m.roles[role.ID] = &copied
	return nil
}

func (m *mockStore) SoftDelete(ctx context.Context, id uuid.UUID, deletedBy uuid.UUID, at time.Time) error {
	role, ok := m.roles[id]
	if !ok || role.Deleted != nil {
		return ErrNotFound
	}
	role.Deleted = &at
	role.DeletedBy = &deletedBy
	return nil
}

type mockHooks struct {
	created []uuid.UUID
	deleted []uuid.UUID
	err     error
}

func (m *mockHooks) OnRoleCreated(ctx context.Context, actor shared.Actor, roleID uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, roleID)
	return nil
}

func (m *mockHooks) OnRoleDeleted(ctx context.Context, actor shared.Actor, roleID uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, roleID)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func adminActor() shared.Actor {
	return shared.Actor{UserID: uuid.New(), RoleID: uuid.New(), RoleName: shared.RoleAdmin}
}

func userActor() shared.Actor {
	return shared.Actor{UserID: uuid.New(), RoleID: uuid.New(), RoleName: shared.RoleUser}
}

func TestCreateRole(t *testing.T) {
	store := newMockStore()
	hooks := &mockHooks{}
	service := NewService(store, hooks, testLogger())
	admin := adminActor()

	role, err := service.Create(context.Background(), admin, CreateRoleRequest{Name: "auditor"})
	require.NoError(t, err)
	assert.Equal(t, "auditor", role.Name)
	require.NotNil(t, role.CreatedBy)
	assert.Equal(t, admin.UserID, *role.CreatedBy)
	require.Len(t, hooks.created, 1)
	assert.Equal(t, role.ID, hooks.created[0])
}

func TestCreateRoleRequiresAdmin(t *testing.T) {
	service := NewService(newMockStore(), &mockHooks{}, testLogger())

	_, err := service.Create(context.Background(), userActor(), CreateRoleRequest{Name: "auditor"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = service.Create(context.Background(), shared.Actor{}, CreateRoleRequest{Name: "auditor"})
	assert.ErrorIs(t, err, ErrMissingActor)
}

func TestCreateRoleReservedName(t *testing.T) {
	service := NewService(newMockStore(), &mockHooks{}, testLogger())

	for _, name := range []string{shared.RoleGuest, shared.RoleUser, shared.RoleAdmin, "root"} {
		_, err := service.Create(context.Background(), adminActor(), CreateRoleRequest{Name: name})
		assert.ErrorIs(t, err, ErrNameReserved, name)
	}
}

func TestCreateRoleDuplicateName(t *testing.T) {
	store := newMockStore()
	store.seed("auditor")
	service := NewService(store, &mockHooks{}, testLogger())

	_, err := service.Create(context.Background(), adminActor(), CreateRoleRequest{Name: "auditor"})
	assert.ErrorIs(t, err, ErrNameTaken)
}

func TestCreateRoleCeiling(t *testing.T) {
	store := newMockStore()
	for _, name := range []string{"guest", "user", "admin", "auditor", "operator"} {
		store.seed(name)
	}
	service := NewService(store, &mockHooks{}, testLogger())

	_, err := service.Create(context.Background(), adminActor(), CreateRoleRequest{Name: "overflow"})
	assert.ErrorIs(t, err, ErrTooManyRoles)
}

func TestCreateRoleCeilingIgnoresDeleted(t *testing.T) {
	store := newMockStore()
	hooks := &mockHooks{}
	for _, name := range []string{"guest", "user", "admin", "auditor"} {
		store.seed(name)
	}
	gone := store.seed("operator")
	now := time.Now()
	gone.Deleted = &now

	service := NewService(store, hooks, testLogger())
	_, err := service.Create(context.Background(), adminActor(), CreateRoleRequest{Name: "analyst"})
	require.NoError(t, err)
}

func TestUpdateRole(t *testing.T) {
	store := newMockStore()
	role := store.seed("auditor")
	service := NewService(store, &mockHooks{}, testLogger())
	admin := adminActor()

	name := "compliance"
	updated, err := service.Update(context.Background(), admin, role.ID, UpdateRoleRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "compliance", updated.Name)
	require.NotNil(t, updated.ModifiedBy)
	assert.Equal(t, admin.UserID, *updated.ModifiedBy)
}

func TestUpdateRoleReserved(t *testing.T) {
	store := newMockStore()
	builtin := store.seed(shared.RoleUser)
	custom := store.seed("auditor")
	service := NewService(store, &mockHooks{}, testLogger())

	desc := "changed"
	_, err := service.Update(context.Background(), adminActor(), builtin.ID, UpdateRoleRequest{Description: &desc})
	assert.ErrorIs(t, err, ErrNameReserved)

	name := "admin"
	_, err = service.Update(context.Background(), adminActor(), custom.ID, UpdateRoleRequest{Name: &name})
	assert.ErrorIs(t, err, ErrNameReserved)
}

func TestDeleteRole(t *testing.T) {
	store := newMockStore()
	hooks := &mockHooks{}
	role := store.seed("auditor")
	service := NewService(store, hooks, testLogger())

	require.NoError(t, service.Delete(context.Background(), adminActor(), role.ID))
	assert.NotNil(t, store.roles[role.ID].Deleted, "role must be soft deleted")
	require.Len(t, hooks.deleted, 1)
	assert.Equal(t, role.ID, hooks.deleted[0])

	// A second delete sees the role as gone.
	err := service.Delete(context.Background(), adminActor(), role.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRoleReserved(t *testing.T) {
	store := newMockStore()
	role := store.seed(shared.RoleAdmin)
	service := NewService(store, &mockHooks{}, testLogger())

	err := service.Delete(context.Background(), adminActor(), role.ID)
	assert.ErrorIs(t, err, ErrNameReserved)
	assert.Nil(t, store.roles[role.ID].Deleted)
}
