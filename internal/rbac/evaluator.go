package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vaultry/vaultry/internal/shared"
)

// GroupMembershipChecker answers whether a user manages at least one group.
// The groups feature implements it; the evaluator only needs the predicate.
type GroupMembershipChecker interface {
	IsManagerOfAnyGroup(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Evaluator decides whether an actor may perform a controlled action.
//
// Resolution is fail-closed: a missing policy or a failing predicate results
// in a deny. A stored control function outside the action's legal set is not
// a deny but an ErrPolicyMisconfigured, since it indicates corrupted policy
// data rather than a normal authorization outcome. Admins bypass policy
// lookup entirely.
type Evaluator struct {
	store   Store
	catalog Catalog
	groups  GroupMembershipChecker
	cache   *DecisionCache
	logger  *slog.Logger
}

// NewEvaluator constructs an Evaluator. cache may be nil to disable caching.
func NewEvaluator(store Store, catalog Catalog, groups GroupMembershipChecker, cache *DecisionCache, logger *slog.Logger) *Evaluator {
	return &Evaluator{store: store, catalog: catalog, groups: groups, cache: cache, logger: logger}
}

// CanAccess evaluates the policy for (actor.RoleID, kind, action name).
func (e *Evaluator) CanAccess(ctx context.Context, actor shared.Actor, kind ActionKind, name string) (Decision, error) {
	if actor.IsAdmin() {
		return DecisionAllow, nil
	}

	fn, err := e.resolveControlFunction(ctx, actor.RoleID, kind, name)
	if err != nil {
		return DecisionDeny, err
	}

	return e.apply(ctx, actor, fn, name)
}

// Authorize is CanAccess collapsed into an error: nil on allow,
// ErrAccessDenied on deny.
func (e *Evaluator) Authorize(ctx context.Context, actor shared.Actor, kind ActionKind, name string) error {
	decision, err := e.CanAccess(ctx, actor, kind, name)
	if err != nil {
		return err
	}
	if decision != DecisionAllow {
		return ErrAccessDenied
	}
	return nil
}

// resolveControlFunction loads the control function bound to the role and
// action, consulting the cache first. Only the resolved control function is
// cached, never the outcome of a conditional predicate.
func (e *Evaluator) resolveControlFunction(ctx context.Context, roleID uuid.UUID, kind ActionKind, name string) (ControlFunction, error) {
	if e.cache != nil {
		if fn, ok, err := e.cache.Get(ctx, roleID, kind, name); err != nil {
			e.logger.Warn("rbac cache read failed", slog.Any("error", err))
		} else if ok {
			return fn, nil
		}
	}

	policy, err := e.store.FindByRoleAndAction(ctx, roleID, kind, ActionID(name))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// No policy for the pair: deny by default.
			if e.cache != nil {
				if cerr := e.cache.Set(ctx, roleID, kind, name, ControlFunctionDeny); cerr != nil {
					e.logger.Warn("rbac cache write failed", slog.Any("error", cerr))
				}
			}
			return ControlFunctionDeny, nil
		}
		return "", fmt.Errorf("rbac: resolve policy for %q: %w", name, err)
	}

	if !policy.ControlFunction.Known() || !e.catalog.Allows(kind, name, policy.ControlFunction) {
		return "", fmt.Errorf("rbac: policy %s binds %q to control function %q: %w",
			policy.ID, name, policy.ControlFunction, ErrPolicyMisconfigured)
	}

	if e.cache != nil {
		if cerr := e.cache.Set(ctx, roleID, kind, name, policy.ControlFunction); cerr != nil {
			e.logger.Warn("rbac cache write failed", slog.Any("error", cerr))
		}
	}
	return policy.ControlFunction, nil
}

func (e *Evaluator) apply(ctx context.Context, actor shared.Actor, fn ControlFunction, name string) (Decision, error) {
	switch fn {
	case ControlFunctionAllow:
		return DecisionAllow, nil
	case ControlFunctionDeny:
		return DecisionDeny, nil
	case ControlFunctionAllowIfGroupManagerInOneGroup:
		manages, err := e.groups.IsManagerOfAnyGroup(ctx, actor.UserID)
		if err != nil {
			return DecisionDeny, fmt.Errorf("rbac: evaluate group manager predicate for %q: %w", name, err)
		}
		if manages {
			return DecisionAllow, nil
		}
		return DecisionDeny, nil
	default:
		return DecisionDeny, nil
	}
}
