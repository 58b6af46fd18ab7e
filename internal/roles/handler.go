package roles

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vaultry/vaultry/internal/platform/httpx"
	"github.com/vaultry/vaultry/internal/shared"
)

// Handler wires the role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers role routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/roles", h.list)
	r.Get("/roles/{id}", h.get)
	r.Post("/roles", h.create)
	r.Put("/roles/{id}", h.update)
	r.Delete("/roles/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context())
	if err != nil {
		h.respondServiceError(w, "list roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Identifier", "the role identifier should be a valid UUID")
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	var req CreateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if fields, ok := h.validate(req); !ok {
		httpx.ValidationProblem(w, "could not validate role data", fields)
		return
	}

	role, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.respondServiceError(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Identifier", "the role identifier should be a valid UUID")
		return
	}

	var req UpdateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if fields, ok := h.validate(req); !ok {
		httpx.ValidationProblem(w, "could not validate role data", fields)
		return
	}

	role, err := h.service.Update(r.Context(), actor, id, req)
	if err != nil {
		h.respondServiceError(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Identifier", "the role identifier should be a valid UUID")
		return
	}

	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.respondServiceError(w, "delete role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) validate(payload any) (map[string]string, bool) {
	err := h.validator.Struct(payload)
	if err == nil {
		return nil, true
	}
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fieldErr := range verrs {
			fields[fieldErr.Field()] = fieldErr.Tag()
		}
	}
	return fields, false
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrNameTaken):
		httpx.RespondError(w, httpx.ErrDuplicate)
	case errors.Is(err, ErrNameReserved), errors.Is(err, ErrTooManyRoles):
		httpx.ValidationProblem(w, err.Error(), nil)
	case errors.Is(err, ErrForbidden):
		httpx.RespondError(w, httpx.ErrForbidden)
	case errors.Is(err, ErrMissingActor):
		httpx.RespondError(w, httpx.ErrUnauthorized)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
