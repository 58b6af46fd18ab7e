package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vaultry/vaultry/internal/platform/httpx"
	"github.com/vaultry/vaultry/internal/shared"
)

// Handler wires the policy management endpoints.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	middleware *Middleware
	validator  *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, middleware *Middleware) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		middleware: middleware,
		validator:  validator.New(),
	}
}

// MountRoutes registers policy routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/rbacs/me", h.listMine)
	r.Group(func(r chi.Router) {
		r.Use(h.middleware.AdminOnly)
		r.Get("/rbacs", h.list)
		r.Put("/rbacs", h.bulkUpdate)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	views, err := h.service.List(r.Context(), actor)
	if err != nil {
		h.respondServiceError(w, "list policies", err)
		return
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	views, err := h.service.ListForRole(r.Context(), actor)
	if err != nil {
		h.respondServiceError(w, "list own policies", err)
		return
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) bulkUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	var updates []PolicyUpdate
	if err := httpx.DecodeJSON(r, &updates); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be a JSON array of policy updates")
		return
	}
	for _, u := range updates {
		if err := h.validator.Struct(u); err != nil {
			fields := make(map[string]string)
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fieldErr := range verrs {
					fields[fieldErr.Field()] = fieldErr.Tag()
				}
			}
			httpx.ValidationProblem(w, "policy update entry is incomplete", fields)
			return
		}
	}

	updated, err := h.service.BulkUpdateControlFunction(r.Context(), actor, updates)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			httpx.ValidationProblem(w, "could not validate rbac data", map[string]string{
				verr.Field: verr.Message,
			})
			return
		}
		h.respondServiceError(w, "bulk update policies", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrAccessDenied):
		httpx.RespondError(w, httpx.ErrForbidden)
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
