package assignment

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/flowhub-io/flowhub-authz/internal/catalog"
	"github.com/flowhub-io/flowhub-authz/internal/platform/httpx"
	"github.com/flowhub-io/flowhub-authz/internal/shared"
)

// Handler manages the assignment management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers assignment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.updateRole)
	r.Delete("/{id}", h.remove)
}

type createRequest struct {
	UserID    string  `json:"user_id" validate:"required,uuid"`
	Role      string  `json:"role" validate:"required"`
	ScopeKind string  `json:"scope_kind" validate:"required"`
	ScopeID   *string `json:"scope_id,omitempty"`
	Immutable bool    `json:"immutable"`
}

type updateRequest struct {
	Role string `json:"role" validate:"required"`
}

type assignmentResponse struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Role        string     `json:"role"`
	ScopeKind   string     `json:"scope_kind"`
	ScopeID     *uuid.UUID `json:"scope_id,omitempty"`
	IsImmutable bool       `json:"is_immutable"`
	CreatedAt   time.Time  `json:"created_at"`
	CreatedBy   *uuid.UUID `json:"created_by,omitempty"`
}

func toResponse(a Assignment) assignmentResponse {
	resp := assignmentResponse{
		ID:          a.ID,
		UserID:      a.UserID,
		Role:        a.RoleName,
		ScopeKind:   string(a.Scope.Kind),
		IsImmutable: a.IsImmutable,
		CreatedAt:   a.CreatedAt,
		CreatedBy:   a.CreatedBy,
	}
	if !a.Scope.IsGlobal() {
		id := a.Scope.ResourceID
		resp.ScopeID = &id
	}
	return resp
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor identity")
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id must be a UUID")
		return
	}
	scope, err := parseScope(req.ScopeKind, req.ScopeID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Scope", err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), CreateInput{
		UserID:    userID,
		RoleName:  req.Role,
		Scope:     scope,
		Immutable: req.Immutable,
		ActorID:   &actorID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor identity")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	updated, err := h.service.UpdateRole(r.Context(), id, req.Role, &actorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor identity")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	if err := h.service.Remove(r.Context(), id, &actorID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(a))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter ListFilter
	if raw := strings.TrimSpace(q.Get("user_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id must be a UUID")
			return
		}
		filter.UserID = &id
	}
	filter.RoleName = strings.TrimSpace(q.Get("role"))
	if raw := strings.TrimSpace(q.Get("scope_kind")); raw != "" {
		kind, err := catalog.ParseScopeKind(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Scope", err.Error())
			return
		}
		filter.ScopeKind = kind
	}

	rows, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]assignmentResponse, 0, len(rows))
	for _, a := range rows {
		out = append(out, toResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": out})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Assignment Not Found", err.Error())
	case errors.Is(err, ErrRoleNotFound):
		httpx.Problem(w, http.StatusNotFound, "Role Not Found", err.Error())
	case errors.Is(err, ErrResourceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Resource Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate Assignment", err.Error())
	case errors.Is(err, ErrImmutable):
		httpx.Problem(w, http.StatusConflict, "Immutable Assignment", err.Error())
	case errors.Is(err, catalog.ErrInvalidScope):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Scope", err.Error())
	default:
		h.logger.Error("assignment request", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseScope(rawKind string, rawID *string) (catalog.Scope, error) {
	kind, err := catalog.ParseScopeKind(rawKind)
	if err != nil {
		return catalog.Scope{}, err
	}
	var resourceID *uuid.UUID
	if rawID != nil && strings.TrimSpace(*rawID) != "" {
		id, err := uuid.Parse(*rawID)
		if err != nil {
			return catalog.Scope{}, err
		}
		resourceID = &id
	}
	return catalog.NewScope(kind, resourceID)
}
