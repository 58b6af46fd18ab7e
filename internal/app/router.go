package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vaultry/vaultry/internal/auth"
	"github.com/vaultry/vaultry/internal/rbac"
	"github.com/vaultry/vaultry/internal/roles"
	"github.com/vaultry/vaultry/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	AuthHandler    *auth.Handler
	AuthMiddleware *auth.Middleware
	RolesHandler   *roles.Handler
	RbacHandler    *rbac.Handler
}

// NewRouter constructs the chi.Router with Vaultry defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(params.AuthMiddleware.ResolveActor)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	params.AuthHandler.MountRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.RequireAuth)
		params.RolesHandler.MountRoutes(r)
		params.RbacHandler.MountRoutes(r)
	})

	return r
}
