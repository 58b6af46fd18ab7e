package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vaultry/vaultry/internal/shared"
)

// Reactor maintains policies across role lifecycle transitions. The roles
// feature invokes it after a role is created or deleted.
type Reactor struct {
	store  Store
	cache  *DecisionCache
	logger *slog.Logger
}

// NewReactor constructs a Reactor.
func NewReactor(store Store, cache *DecisionCache, logger *slog.Logger) *Reactor {
	return &Reactor{store: store, cache: cache, logger: logger}
}

// OnRoleCreated clones the policy set of the built-in user role onto the new
// role, stamping the acting admin as creator. The clone runs in a single
// transaction; a new role never becomes visible with a partial policy set.
//
// An invalid actor or a nil role id is a programming error in the caller and
// yields ErrMissingEventData.
func (r *Reactor) OnRoleCreated(ctx context.Context, actor shared.Actor, roleID uuid.UUID) error {
	if !actor.Valid() || roleID == uuid.Nil {
		return ErrMissingEventData
	}

	template, err := r.store.ListByRoleName(ctx, shared.RoleUser)
	if err != nil {
		return fmt.Errorf("rbac: load policy template: %w", err)
	}
	if len(template) == 0 {
		// Nothing to clone before bootstrap seeding has run.
		return nil
	}

	now := time.Now().UTC()
	actorID := actor.UserID
	clones := make([]Policy, 0, len(template))
	for _, p := range template {
		clones = append(clones, Policy{
			ID:              uuid.New(),
			RoleID:          roleID,
			Kind:            p.Kind,
			ActionID:        p.ActionID,
			ControlFunction: p.ControlFunction,
			Created:         now,
			Modified:        now,
			CreatedBy:       &actorID,
			ModifiedBy:      &actorID,
		})
	}

	err = r.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		_, err := tx.InsertMany(ctx, clones)
		return err
	})
	if err != nil {
		return fmt.Errorf("rbac: clone policies onto role %s: %w", roleID, err)
	}

	r.logger.Info("cloned policies for new role",
		slog.String("role_id", roleID.String()),
		slog.Int("count", len(clones)))
	return nil
}

// OnRoleDeleted hard-deletes all policies attached to the role. Roles are
// soft-deleted but their policies are not kept; recreating a role of the same
// name starts from a fresh clone. Deleting a role without policies is a
// no-op.
func (r *Reactor) OnRoleDeleted(ctx context.Context, actor shared.Actor, roleID uuid.UUID) error {
	if !actor.Valid() || roleID == uuid.Nil {
		return ErrMissingEventData
	}

	n, err := r.store.DeleteAllForRole(ctx, roleID)
	if err != nil {
		return fmt.Errorf("rbac: delete policies for role %s: %w", roleID, err)
	}
	if n > 0 {
		if err := r.cache.Bump(ctx); err != nil {
			r.logger.Warn("rbac cache bump failed", slog.Any("error", err))
		}
		r.logger.Info("deleted policies for removed role",
			slog.String("role_id", roleID.String()),
			slog.Int64("count", n))
	}
	return nil
}
