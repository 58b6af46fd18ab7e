package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/vaultry/vaultry/internal/platform/httpx"
	"github.com/vaultry/vaultry/internal/shared"
)

// Middleware resolves the acting user from the request session.
type Middleware struct {
	service *Service
	logger  *slog.Logger
}

// NewMiddleware constructs a Middleware.
func NewMiddleware(service *Service, logger *slog.Logger) *Middleware {
	return &Middleware{service: service, logger: logger}
}

// ResolveActor attaches the actor to the request context when the session
// carries a valid user. Requests without one pass through anonymously.
func (m *Middleware) ResolveActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := uuid.Parse(sess.User())
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		actor, err := m.service.ResolveActor(r.Context(), userID)
		if err != nil {
			if !errors.Is(err, ErrUserNotFound) && !errors.Is(err, ErrUserInactive) {
				m.logger.Error("resolve actor", slog.Any("error", err))
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

// RequireAuth denies requests without an authenticated actor.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.ActorFromContext(r.Context()); !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
