package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedDefaultPolicies(t *testing.T) {
	store := newMockStore()
	store.governed = append(store.governed, store.addRole("user"), store.addRole("auditor"))
	registry := NewRegistry(store, DefaultCatalog())
	seeder := NewSeeder(store, registry, nil, 0, testLogger())

	count, err := seeder.SeedDefaultPolicies(context.Background())
	require.NoError(t, err)

	backendActions := len(registry.Catalog().BackendActionNames())
	assert.Equal(t, int64(backendActions*2), count)

	for _, p := range store.policies {
		assert.Equal(t, ControlFunctionDeny, p.ControlFunction)
		assert.Equal(t, KindBackendAction, p.Kind)
	}
}

func TestSeedDefaultPoliciesIdempotent(t *testing.T) {
	store := newMockStore()
	store.governed = append(store.governed, store.addRole("user"))
	registry := NewRegistry(store, DefaultCatalog())
	seeder := NewSeeder(store, registry, nil, 0, testLogger())

	first, err := seeder.SeedDefaultPolicies(context.Background())
	require.NoError(t, err)
	require.Positive(t, first)

	second, err := seeder.SeedDefaultPolicies(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second, "rerun must not duplicate policies")
	assert.Len(t, store.policies, int(first))
}

func TestSeedDefaultPoliciesNoGovernedRoles(t *testing.T) {
	store := newMockStore()
	registry := NewRegistry(store, DefaultCatalog())
	seeder := NewSeeder(store, registry, nil, 0, testLogger())

	count, err := seeder.SeedDefaultPolicies(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, store.policies)
	// Actions are still registered so a later run can cover them.
	assert.Len(t, store.actions, len(registry.Catalog().BackendActionNames()))
}

func TestSeedDefaultPoliciesSkipsCoveredActions(t *testing.T) {
	store := newMockStore()
	userRole := store.addRole("user")
	store.governed = append(store.governed, userRole)
	registry := NewRegistry(store, DefaultCatalog())

	// Pre-cover one backend action with an explicit allow.
	_, err := registry.RegisterBackendActions(context.Background(), []string{NameGroupsAdd})
	require.NoError(t, err)
	existing := store.addPolicy(userRole, KindBackendAction, NameGroupsAdd, ControlFunctionAllow)

	seeder := NewSeeder(store, registry, nil, 0, testLogger())
	count, err := seeder.SeedDefaultPolicies(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(len(registry.Catalog().BackendActionNames())-1), count)
	assert.Equal(t, ControlFunctionAllow, store.policies[existing.ID].ControlFunction,
		"an existing policy must not be overwritten")
}

func TestSeedDefaultPoliciesBatches(t *testing.T) {
	store := newMockStore()
	for i := 0; i < 3; i++ {
		store.governed = append(store.governed, store.addRole("custom"))
	}
	registry := NewRegistry(store, DefaultCatalog())
	seeder := NewSeeder(store, registry, nil, 2, testLogger())

	count, err := seeder.SeedDefaultPolicies(context.Background())
	require.NoError(t, err)

	expected := int64(len(registry.Catalog().BackendActionNames()) * 3)
	assert.Equal(t, expected, count)
	// 12 policies in batches of 2.
	assert.Equal(t, int(expected/2), store.txCommits)
}
