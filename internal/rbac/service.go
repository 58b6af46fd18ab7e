package rbac

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vaultry/vaultry/internal/shared"
)

// Service provides the policy management operations behind the /rbacs API.
type Service struct {
	store    Store
	registry *Registry
	cache    *DecisionCache
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(store Store, registry *Registry, cache *DecisionCache, logger *slog.Logger) *Service {
	return &Service{store: store, registry: registry, cache: cache, logger: logger}
}

// List returns every policy with its action name. Admin only.
func (s *Service) List(ctx context.Context, actor shared.Actor) ([]PolicyView, error) {
	if !actor.IsAdmin() {
		return nil, ErrAccessDenied
	}
	views, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbac: list policies: %w", err)
	}
	return views, nil
}

// ListForRole returns the policies of the actor's own role. Any authenticated
// user may read these; clients use them to toggle UI capabilities.
func (s *Service) ListForRole(ctx context.Context, actor shared.Actor) ([]PolicyView, error) {
	views, err := s.store.ListViewsByRole(ctx, actor.RoleID)
	if err != nil {
		return nil, fmt.Errorf("rbac: list policies for role: %w", err)
	}
	return views, nil
}

// BulkUpdateControlFunction applies a set of control function changes in a
// single transaction. Every entry is validated against the action catalog
// before any write; one illegal entry rejects the whole batch and no policy
// changes. Admin only.
func (s *Service) BulkUpdateControlFunction(ctx context.Context, actor shared.Actor, updates []PolicyUpdate) ([]Policy, error) {
	if !actor.IsAdmin() {
		return nil, ErrAccessDenied
	}
	if len(updates) == 0 {
		return nil, nil
	}

	var updated []Policy
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		for _, u := range updates {
			policy, err := tx.Get(ctx, u.ID)
			if err != nil {
				return fmt.Errorf("rbac: load policy %s: %w", u.ID, err)
			}
			legal, err := s.registry.IsControlFunctionLegal(ctx, policy.Kind, policy.ActionID, u.ControlFunction)
			if err != nil {
				return fmt.Errorf("rbac: check control function for policy %s: %w", u.ID, err)
			}
			if !legal {
				return &ValidationError{
					PolicyID: u.ID,
					Field:    FieldControlFunctionAllowed,
					Message:  "the control function is not allowed for this action",
				}
			}
			result, err := tx.UpdateControlFunction(ctx, u.ID, u.ControlFunction, actor.UserID)
			if err != nil {
				return fmt.Errorf("rbac: update policy %s: %w", u.ID, err)
			}
			updated = append(updated, *result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("rbac cache bump failed", slog.Any("error", err))
	}
	s.logger.Info("updated control functions",
		slog.Int("count", len(updated)),
		slog.String("actor_id", actor.UserID.String()))
	return updated, nil
}
