package rbac

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// mockStore is an in-memory Store. WithTx stages mutations on a copy and only
// publishes them when the callback succeeds, mirroring transactional rollback.
type mockStore struct {
	policies  map[uuid.UUID]Policy
	actions   map[uuid.UUID]ControlledAction
	roleNames map[uuid.UUID]string
	governed  []uuid.UUID

	findErr     error
	txErr       error
	insertErr   error
	txInsertErr error

	txCommits int
}

func newMockStore() *mockStore {
	return &mockStore{
		policies:  make(map[uuid.UUID]Policy),
		actions:   make(map[uuid.UUID]ControlledAction),
		roleNames: make(map[uuid.UUID]string),
	}
}

func (m *mockStore) addRole(name string) uuid.UUID {
	id := uuid.New()
	m.roleNames[id] = name
	return id
}

func (m *mockStore) addPolicy(roleID uuid.UUID, kind ActionKind, actionName string, fn ControlFunction) Policy {
	p := Policy{
		ID:              uuid.New(),
		RoleID:          roleID,
		Kind:            kind,
		ActionID:        ActionID(actionName),
		ControlFunction: fn,
		Created:         time.Now().UTC(),
		Modified:        time.Now().UTC(),
	}
	m.policies[p.ID] = p
	return p
}

func (m *mockStore) FindByRoleAndAction(ctx context.Context, roleID uuid.UUID, kind ActionKind, actionID uuid.UUID) (*Policy, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, p := range m.policies {
		if p.RoleID == roleID && p.Kind == kind && p.ActionID == actionID {
			found := p
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockStore) ListByRole(ctx context.Context, roleID uuid.UUID) ([]Policy, error) {
	var out []Policy
	for _, p := range m.policies {
		if p.RoleID == roleID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockStore) ListByRoleName(ctx context.Context, roleName string) ([]Policy, error) {
	var out []Policy
	for _, p := range m.policies {
		if m.roleNames[p.RoleID] == roleName {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockStore) List(ctx context.Context) ([]PolicyView, error) {
	var out []PolicyView
	for _, p := range m.policies {
		out = append(out, PolicyView{Policy: p, ActionName: m.actions[p.ActionID].Name})
	}
	return out, nil
}

func (m *mockStore) ListViewsByRole(ctx context.Context, roleID uuid.UUID) ([]PolicyView, error) {
	var out []PolicyView
	for _, p := range m.policies {
		if p.RoleID == roleID {
			out = append(out, PolicyView{Policy: p, ActionName: m.actions[p.ActionID].Name})
		}
	}
	return out, nil
}

func (m *mockStore) DeleteAllForRole(ctx context.Context, roleID uuid.UUID) (int64, error) {
	var n int64
	for id, p := range m.policies {
		if p.RoleID == roleID {
			delete(m.policies, id)
			n++
		}
	}
	return n, nil
}

func (m *mockStore) GovernedRoleIDs(ctx context.Context) ([]uuid.UUID, error) {
	return m.governed, nil
}

func (m *mockStore) UncoveredBackendActions(ctx context.Context, names []string) ([]ControlledAction, error) {
	covered := make(map[uuid.UUID]bool)
	for _, p := range m.policies {
		if p.Kind == KindBackendAction {
			covered[p.ActionID] = true
		}
	}
	var out []ControlledAction
	for _, name := range names {
		id := ActionID(name)
		action, ok := m.actions[id]
		if ok && action.Kind == KindBackendAction && !covered[id] {
			out = append(out, action)
		}
	}
	return out, nil
}

func (m *mockStore) InsertAction(ctx context.Context, action ControlledAction) (bool, error) {
	if m.insertErr != nil {
		return false, m.insertErr
	}
	if _, exists := m.actions[action.ID]; exists {
		return false, nil
	}
	m.actions[action.ID] = action
	return true, nil
}

func (m *mockStore) FindAction(ctx context.Context, kind ActionKind, id uuid.UUID) (*ControlledAction, error) {
	action, ok := m.actions[id]
	if !ok || action.Kind != kind {
		return nil, ErrActionNotFound
	}
	return &action, nil
}

func (m *mockStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	if m.txErr != nil {
		return m.txErr
	}
	staged := make(map[uuid.UUID]Policy, len(m.policies))
	for id, p := range m.policies {
		staged[id] = p
	}
	tx := &mockTxStore{policies: staged, insertErr: m.txInsertErr}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.policies = staged
	m.txCommits++
	return nil
}

type mockTxStore struct {
	policies  map[uuid.UUID]Policy
	insertErr error
}

func (t *mockTxStore) Get(ctx context.Context, id uuid.UUID) (*Policy, error) {
	p, ok := t.policies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (t *mockTxStore) UpdateControlFunction(ctx context.Context, id uuid.UUID, fn ControlFunction, actorID uuid.UUID) (*Policy, error) {
	p, ok := t.policies[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.ControlFunction = fn
	p.Modified = time.Now().UTC()
	p.ModifiedBy = &actorID
	t.policies[id] = p
	return &p, nil
}

func (t *mockTxStore) InsertMany(ctx context.Context, policies []Policy) (int64, error) {
	if t.insertErr != nil {
		return 0, t.insertErr
	}
	for _, p := range policies {
		t.policies[p.ID] = p
	}
	return int64(len(policies)), nil
}
