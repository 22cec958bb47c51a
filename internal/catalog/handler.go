package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flowhub-io/flowhub-authz/internal/platform/httpx"
)

// Handler exposes the read-only catalog listing endpoints.
type Handler struct {
	logger  *slog.Logger
	catalog *Catalog
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, catalog *Catalog) *Handler {
	return &Handler{logger: logger, catalog: catalog}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/roles", h.listRoles)
	r.Get("/permissions", h.listPermissions)
}

type roleResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsSystem    bool   `json:"is_system"`
}

type permissionResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ScopeKind   string `json:"scope_kind"`
	Description string `json:"description"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles := h.catalog.Roles()
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, roleResponse{
			ID:          role.ID,
			Name:        role.Name,
			Description: role.Description,
			IsSystem:    role.IsSystem,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms := h.catalog.Permissions()
	out := make([]permissionResponse, 0, len(perms))
	for _, perm := range perms {
		out = append(out, permissionResponse{
			ID:          perm.ID,
			Name:        perm.Name,
			ScopeKind:   string(perm.ScopeKind),
			Description: perm.Description,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out})
}
