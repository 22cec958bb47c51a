package authz

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/flowhub-io/flowhub-authz/internal/catalog"
	"github.com/flowhub-io/flowhub-authz/internal/platform/httpx"
)

// Handler exposes the check endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers check routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.check)
	r.Post("/batch", h.batchCheck)
}

type checkEntry struct {
	Permission string  `json:"permission" validate:"required"`
	ScopeKind  string  `json:"scope_kind" validate:"required"`
	ScopeID    *string `json:"scope_id,omitempty"`
}

type checkRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	checkEntry
}

type batchCheckRequest struct {
	UserID string       `json:"user_id" validate:"required,uuid"`
	Checks []checkEntry `json:"checks" validate:"dive"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
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
	check, err := toCheck(req.checkEntry)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Scope", err.Error())
		return
	}

	allowed, err := h.service.CanAccess(r.Context(), userID, check.Permission, check.Scope)
	if err != nil {
		h.logger.Error("authz check", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"allowed": allowed})
}

func (h *Handler) batchCheck(w http.ResponseWriter, r *http.Request) {
	var req batchCheckRequest
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
	checks := make([]Check, 0, len(req.Checks))
	for _, entry := range req.Checks {
		check, err := toCheck(entry)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Scope", err.Error())
			return
		}
		checks = append(checks, check)
	}

	results, err := h.service.BatchCanAccess(r.Context(), userID, checks)
	if err != nil {
		if errors.Is(err, ErrBatchTooLarge) {
			httpx.Problem(w, http.StatusBadRequest, "Batch Too Large", err.Error())
			return
		}
		h.logger.Error("authz batch check", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": results})
}

func toCheck(entry checkEntry) (Check, error) {
	kind, err := catalog.ParseScopeKind(entry.ScopeKind)
	if err != nil {
		return Check{}, err
	}
	var resourceID *uuid.UUID
	if entry.ScopeID != nil && strings.TrimSpace(*entry.ScopeID) != "" {
		id, err := uuid.Parse(*entry.ScopeID)
		if err != nil {
			return Check{}, err
		}
		resourceID = &id
	}
	scope, err := catalog.NewScope(kind, resourceID)
	if err != nil {
		return Check{}, err
	}
	return Check{Permission: entry.Permission, Scope: scope}, nil
}
