package rbac

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultry/vaultry/internal/shared"
)

func newTestService(store *mockStore) *Service {
	return NewService(store, NewRegistry(store, DefaultCatalog()), nil, testLogger())
}

func TestBulkUpdateControlFunction(t *testing.T) {
	store := newMockStore()
	service := newTestService(store)
	admin := testActor(store, shared.RoleAdmin)
	role := store.addRole(shared.RoleUser)

	_, err := service.registry.RegisterBackendActions(context.Background(), []string{NameGroupsAdd})
	require.NoError(t, err)
	_, err = service.registry.RegisterUIActions(context.Background(), []string{NameSecretsCopy})
	require.NoError(t, err)

	p1 := store.addPolicy(role, KindBackendAction, NameGroupsAdd, ControlFunctionDeny)
	p2 := store.addPolicy(role, KindUIAction, NameSecretsCopy, ControlFunctionDeny)

	updated, err := service.BulkUpdateControlFunction(context.Background(), admin, []PolicyUpdate{
		{ID: p1.ID, ControlFunction: ControlFunctionAllow},
		{ID: p2.ID, ControlFunction: ControlFunctionAllow},
	})
	require.NoError(t, err)
	require.Len(t, updated, 2)

	assert.Equal(t, ControlFunctionAllow, store.policies[p1.ID].ControlFunction)
	assert.Equal(t, ControlFunctionAllow, store.policies[p2.ID].ControlFunction)
	require.NotNil(t, store.policies[p1.ID].ModifiedBy)
	assert.Equal(t, admin.UserID, *store.policies[p1.ID].ModifiedBy)
}

func TestBulkUpdateRejectsIllegalFunctionAtomically(t *testing.T) {
	store := newMockStore()
	service := newTestService(store)
	admin := testActor(store, shared.RoleAdmin)
	role := store.addRole(shared.RoleUser)

	_, err := service.registry.RegisterBackendActions(context.Background(), []string{NameGroupsAdd})
	require.NoError(t, err)

	p1 := store.addPolicy(role, KindBackendAction, NameGroupsAdd, ControlFunctionDeny)
	p2 := store.addPolicy(role, KindBackendAction, NameAccountRecoveryRequestsIndex, ControlFunctionDeny)
	_, err = service.registry.RegisterBackendActions(context.Background(), []string{NameAccountRecoveryRequestsIndex})
	require.NoError(t, err)

	// The conditional function is not in GroupsAdd.addPost's allowed set.
	_, err = service.BulkUpdateControlFunction(context.Background(), admin, []PolicyUpdate{
		{ID: p2.ID, ControlFunction: ControlFunctionAllow},
		{ID: p1.ID, ControlFunction: ControlFunctionAllowIfGroupManagerInOneGroup},
	})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, p1.ID, verr.PolicyID)
	assert.Equal(t, FieldControlFunctionAllowed, verr.Field)

	// The whole batch rolled back, including the valid first entry.
	assert.Equal(t, ControlFunctionDeny, store.policies[p1.ID].ControlFunction)
	assert.Equal(t, ControlFunctionDeny, store.policies[p2.ID].ControlFunction)
}

func TestBulkUpdateUnknownPolicy(t *testing.T) {
	store := newMockStore()
	service := newTestService(store)
	admin := testActor(store, shared.RoleAdmin)

	_, err := service.BulkUpdateControlFunction(context.Background(), admin, []PolicyUpdate{
		{ID: uuid.New(), ControlFunction: ControlFunctionAllow},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBulkUpdateRequiresAdmin(t *testing.T) {
	store := newMockStore()
	service := newTestService(store)
	user := testActor(store, shared.RoleUser)

	_, err := service.BulkUpdateControlFunction(context.Background(), user, []PolicyUpdate{
		{ID: uuid.New(), ControlFunction: ControlFunctionAllow},
	})
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = service.List(context.Background(), user)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestBulkUpdateEmptyBatch(t *testing.T) {
	store := newMockStore()
	service := newTestService(store)
	admin := testActor(store, shared.RoleAdmin)

	updated, err := service.BulkUpdateControlFunction(context.Background(), admin, nil)
	require.NoError(t, err)
	assert.Empty(t, updated)
	assert.Zero(t, store.txCommits)
}

func TestListForRole(t *testing.T) {
	store := newMockStore()
	service := newTestService(store)
	actor := testActor(store, shared.RoleUser)

	_, err := service.registry.RegisterUIActions(context.Background(), []string{NameSecretsCopy})
	require.NoError(t, err)
	store.addPolicy(actor.RoleID, KindUIAction, NameSecretsCopy, ControlFunctionAllow)
	store.addPolicy(store.addRole("other"), KindUIAction, NameSecretsCopy, ControlFunctionDeny)

	views, err := service.ListForRole(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, actor.RoleID, views[0].RoleID)
	assert.Equal(t, NameSecretsCopy, views[0].ActionName)
}
