// Package auth implements session based authentication and resolves the
// acting user for downstream authorization checks.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// User is an account that can sign in.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	RoleID       uuid.UUID `json:"role_id"`
	RoleName     string    `json:"role"`
	Active       bool      `json:"active"`
	Created      time.Time `json:"created"`
	Modified     time.Time `json:"modified"`
}

// LoginRequest carries the credentials posted to the login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// Store is the persistence port for user accounts.
type Store interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// Sentinel errors.
var (
	ErrInvalidCredentials = errors.New("auth: invalid username or password")
	ErrUserInactive       = errors.New("auth: account disabled")
	ErrUserNotFound       = errors.New("auth: user not found")
)
