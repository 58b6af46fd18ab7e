package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vaultry/vaultry/internal/platform/httpx"
	"github.com/vaultry/vaultry/internal/shared"
)

// Middleware guards HTTP endpoints with policy evaluation.
type Middleware struct {
	evaluator *Evaluator
	logger    *slog.Logger
}

// NewMiddleware constructs a Middleware.
func NewMiddleware(evaluator *Evaluator, logger *slog.Logger) *Middleware {
	return &Middleware{evaluator: evaluator, logger: logger}
}

// RequireActionAccess denies the request unless the actor's role allows the
// named backend action. Requests without an authenticated actor get 401.
func (m *Middleware) RequireActionAccess(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			err := m.evaluator.Authorize(r.Context(), actor, KindBackendAction, name)
			if err != nil {
				if errors.Is(err, ErrAccessDenied) {
					httpx.RespondError(w, httpx.ErrForbidden)
					return
				}
				m.logger.Error("action access evaluation failed",
					slog.String("action", name),
					slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly denies the request unless the actor holds the admin role.
func (m *Middleware) AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := shared.ActorFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		if !actor.IsAdmin() {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
