package rbac

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Backend actions governed by RBAC. Names follow the controller.action
// convention used by the API layer.
const (
	NameGroupsAdd                      = "GroupsAdd.addPost"
	NameAccountRecoveryRequestsIndex   = "AccountRecoveryRequestsIndex.index"
	NameAccountRecoveryRequestsView    = "AccountRecoveryRequestsView.view"
	NameAccountRecoveryResponsesCreate = "AccountRecoveryResponsesCreate.post"
)

// UI actions governed by RBAC. These gate capabilities of the client
// applications rather than server endpoints.
const (
	NameResourcesImport = "Resources.import"
	NameResourcesExport = "Resources.export"
	NameSecretsPreview  = "Secrets.preview"
	NameSecretsCopy     = "Secrets.copy"
	NameFoldersUse      = "Folders.use"
	NameTagsUse         = "Tags.use"
	NameShareView       = "Share.viewList"
	NameUsersView       = "Users.viewWorkspace"
	NameGroupsEdit      = "Groups.edit"
	NameMobileTransfer  = "Mobile.transfer"
	NameDesktopTransfer = "Desktop.transferData"
)

// Catalog maps, per action kind, an action name to the control functions that
// may legally be applied to it. The catalog is injected at construction so
// tests can run against alternate action sets.
type Catalog map[ActionKind]map[string][]ControlFunction

// DefaultCatalog returns the built-in catalog of controlled actions.
func DefaultCatalog() Catalog {
	allowDeny := []ControlFunction{ControlFunctionAllow, ControlFunctionDeny}
	return Catalog{
		KindBackendAction: {
			NameGroupsAdd:                      allowDeny,
			NameAccountRecoveryRequestsIndex:   allowDeny,
			NameAccountRecoveryRequestsView:    allowDeny,
			NameAccountRecoveryResponsesCreate: allowDeny,
		},
		KindUIAction: {
			NameResourcesImport: allowDeny,
			NameResourcesExport: allowDeny,
			NameSecretsPreview:  allowDeny,
			NameSecretsCopy:     allowDeny,
			NameFoldersUse:      allowDeny,
			NameTagsUse:         allowDeny,
			NameShareView:       allowDeny,
			NameUsersView:       allowDeny,
			NameGroupsEdit: []ControlFunction{
				ControlFunctionAllow,
				ControlFunctionDeny,
				ControlFunctionAllowIfGroupManagerInOneGroup,
			},
			NameMobileTransfer:  allowDeny,
			NameDesktopTransfer: allowDeny,
		},
	}
}

// BackendActionNames returns the catalog's backend action names.
func (c Catalog) BackendActionNames() []string {
	return c.names(KindBackendAction)
}

// UIActionNames returns the catalog's UI action names.
func (c Catalog) UIActionNames() []string {
	return c.names(KindUIAction)
}

func (c Catalog) names(kind ActionKind) []string {
	entries := c[kind]
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	return names
}

// AllowedFunctions returns the legal control functions for an action name.
func (c Catalog) AllowedFunctions(kind ActionKind, name string) ([]ControlFunction, bool) {
	entries, ok := c[kind]
	if !ok {
		return nil, false
	}
	fns, ok := entries[name]
	return fns, ok
}

// Allows reports whether fn is legal for the named action.
func (c Catalog) Allows(kind ActionKind, name string, fn ControlFunction) bool {
	fns, ok := c.AllowedFunctions(kind, name)
	if !ok {
		return false
	}
	for _, allowed := range fns {
		if allowed == fn {
			return true
		}
	}
	return false
}

// Registry holds the closed catalog of controlled actions and keeps the
// persisted action rows in sync with it.
type Registry struct {
	store   Store
	catalog Catalog
}

// NewRegistry constructs a Registry over the given store and catalog.
func NewRegistry(store Store, catalog Catalog) *Registry {
	return &Registry{store: store, catalog: catalog}
}

// Catalog exposes the injected catalog.
func (r *Registry) Catalog() Catalog {
	return r.catalog
}

// RegisterBackendActions inserts catalog rows for the given backend action
// names. Names already registered are silently skipped; only newly inserted
// actions are returned. Safe to call repeatedly and under concurrent
// invocation: the deterministic id acts as the uniqueness key.
func (r *Registry) RegisterBackendActions(ctx context.Context, names []string) ([]ControlledAction, error) {
	return r.register(ctx, KindBackendAction, names)
}

// RegisterUIActions inserts catalog rows for the given UI action names, with
// the same idempotency contract as RegisterBackendActions.
func (r *Registry) RegisterUIActions(ctx context.Context, names []string) ([]ControlledAction, error) {
	return r.register(ctx, KindUIAction, names)
}

func (r *Registry) register(ctx context.Context, kind ActionKind, names []string) ([]ControlledAction, error) {
	var inserted []ControlledAction
	for _, name := range names {
		action := ControlledAction{ID: ActionID(name), Name: name, Kind: kind}
		ok, err := r.store.InsertAction(ctx, action)
		if err != nil {
			return nil, fmt.Errorf("rbac: register action %q: %w", name, err)
		}
		if ok {
			inserted = append(inserted, action)
		}
	}
	return inserted, nil
}

// IsControlFunctionLegal reports whether fn may be applied to the action
// identified by actionID. An unset control function or action reference
// skips the check: the rule only constrains values that are present, and the
// evaluator rejects illegal functions at resolution time anyway. Unknown
// action ids yield ErrActionNotFound.
func (r *Registry) IsControlFunctionLegal(ctx context.Context, kind ActionKind, actionID uuid.UUID, fn ControlFunction) (bool, error) {
	if fn == "" || actionID == uuid.Nil {
		return true, nil
	}
	action, err := r.store.FindAction(ctx, kind, actionID)
	if err != nil {
		return false, err
	}
	return r.catalog.Allows(kind, action.Name, fn), nil
}
