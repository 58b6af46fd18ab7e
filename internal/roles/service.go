package roles

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vaultry/vaultry/internal/shared"
)

// Service provides business logic for role management. Mutations are
// admin-only; the assertion lives here so every entry point is covered
// regardless of transport.
type Service struct {
	repo   Store
	hooks  LifecycleHooks
	logger *slog.Logger
}

// NewService constructs a roles service. hooks may be nil.
func NewService(repo Store, hooks LifecycleHooks, logger *slog.Logger) *Service {
	return &Service{repo: repo, hooks: hooks, logger: logger}
}

// List returns all active roles. Any authenticated user may list roles.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	roles, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// Get returns an active role by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Role, error) {
	return s.repo.Get(ctx, id)
}

// Create adds a new custom role and fires the creation hook. Reserved names
// are rejected, as is exceeding the active role ceiling.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateRoleRequest) (*Role, error) {
	if err := s.assertAdmin(actor); err != nil {
		return nil, err
	}
	if IsReservedName(req.Name) {
		return nil, ErrNameReserved
	}

	count, err := s.repo.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("count roles: %w", err)
	}
	if count >= MaxActiveRoles {
		return nil, ErrTooManyRoles
	}

	now := time.Now().UTC()
	actorID := actor.UserID
	role := Role{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Created:     now,
		Modified:    now,
		CreatedBy:   &actorID,
		ModifiedBy:  &actorID,
	}
	if err := s.repo.Insert(ctx, role); err != nil {
		return nil, err
	}

	if s.hooks != nil {
		if err := s.hooks.OnRoleCreated(ctx, actor, role.ID); err != nil {
			return nil, fmt.Errorf("role created hook: %w", err)
		}
	}

	s.logger.Info("role created",
		slog.String("role_id", role.ID.String()),
		slog.String("name", role.Name),
		slog.String("actor_id", actor.UserID.String()))
	return &role, nil
}

// Update changes a role's name or description. Renaming to or from a
// reserved name is rejected.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id uuid.UUID, req UpdateRoleRequest) (*Role, error) {
	if err := s.assertAdmin(actor); err != nil {
		return nil, err
	}

	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsReservedName(role.Name) {
		return nil, ErrNameReserved
	}

	if req.Name != nil {
		if IsReservedName(*req.Name) {
			return nil, ErrNameReserved
		}
		role.Name = *req.Name
	}
	if req.Description != nil {
		role.Description = req.Description
	}
	role.Modified = time.Now().UTC()
	actorID := actor.UserID
	role.ModifiedBy = &actorID

	if err := s.repo.Update(ctx, *role); err != nil {
		return nil, err
	}
	return role, nil
}

// Delete soft-deletes a role and fires the deletion hook. Reserved roles
// cannot be deleted.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id uuid.UUID) error {
	if err := s.assertAdmin(actor); err != nil {
		return err
	}

	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if IsReservedName(role.Name) {
		return ErrNameReserved
	}

	if err := s.repo.SoftDelete(ctx, id, actor.UserID, time.Now().UTC()); err != nil {
		return err
	}

	if s.hooks != nil {
		if err := s.hooks.OnRoleDeleted(ctx, actor, id); err != nil {
			return fmt.Errorf("role deleted hook: %w", err)
		}
	}

	s.logger.Info("role deleted",
		slog.String("role_id", id.String()),
		slog.String("name", role.Name),
		slog.String("actor_id", actor.UserID.String()))
	return nil
}

func (s *Service) assertAdmin(actor shared.Actor) error {
	if !actor.Valid() {
		return ErrMissingActor
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
