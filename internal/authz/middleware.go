package authz

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/flowhub-io/flowhub-authz/internal/catalog"
	"github.com/flowhub-io/flowhub-authz/internal/shared"
)

// Middleware wires permission checks into HTTP handlers for callers that
// embed this service.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require guards a route with one permission check. For project and flow
// kinds the resource id is read from the named chi URL parameter; pass an
// empty urlParam for global-kind checks. A request without an actor, with a
// malformed resource id, or without the grant is rejected with 403.
func (m Middleware) Require(permission string, kind catalog.ScopeKind, urlParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := shared.ActorFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}

			scope, ok := m.scopeFromRequest(r, kind, urlParam)
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}

			allowed, err := m.Service.CanAccess(r.Context(), userID, permission, scope)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz require", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !allowed {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) scopeFromRequest(r *http.Request, kind catalog.ScopeKind, urlParam string) (catalog.Scope, bool) {
	if kind == catalog.ScopeGlobal {
		return catalog.GlobalScope(), true
	}
	raw := chi.URLParam(r, urlParam)
	resourceID, err := uuid.Parse(raw)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Warn("authz parse resource id", slog.String("value", raw))
		}
		return catalog.Scope{}, false
	}
	scope, err := catalog.NewScope(kind, &resourceID)
	if err != nil {
		return catalog.Scope{}, false
	}
	return scope, true
}
