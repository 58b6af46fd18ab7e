package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vaultry/vaultry/internal/shared"
)

// Service provides credential verification and actor resolution.
type Service struct {
	repo Store
}

// NewService constructs an auth service.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Authenticate verifies a username and password pair. Unknown accounts and
// wrong passwords both surface as ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.Active {
		return nil, ErrUserInactive
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// ResolveActor maps a stored session user id to the acting identity used by
// authorization checks and audit stamps.
func (s *Service) ResolveActor(ctx context.Context, userID uuid.UUID) (shared.Actor, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return shared.Actor{}, err
	}
	if !user.Active {
		return shared.Actor{}, ErrUserInactive
	}
	return shared.Actor{UserID: user.ID, RoleID: user.RoleID, RoleName: user.RoleName}, nil
}

// HashPassword derives the stored bcrypt hash for a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
