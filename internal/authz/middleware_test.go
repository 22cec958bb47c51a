package authz

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/flowhub-io/flowhub-authz/internal/catalog"
	"github.com/flowhub-io/flowhub-authz/internal/shared"
)

func newGuardedRouter(f *resolverFixture) chi.Router {
	mw := Middleware{Service: f.service, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	r := chi.NewRouter()
	r.Use(shared.ActorMiddleware)
	r.With(mw.Require(catalog.PermRead, catalog.ScopeFlow, "flowID")).
		Get("/flows/{flowID}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	r.With(mw.Require(catalog.PermCreate, catalog.ScopeGlobal, "")).
		Post("/projects", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
	return r
}

func TestRequireRejectsAnonymousRequests(t *testing.T) {
	f := newResolverFixture(t)
	router := newGuardedRouter(f)

	req := httptest.NewRequest(http.MethodGet, "/flows/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireAllowsGrantedActor(t *testing.T) {
	f := newResolverFixture(t)
	user := f.addUser(false)
	projectID := uuid.New()
	flowID := uuid.New()
	f.resources.flows[flowID] = projectID
	f.store.assign(user, catalog.ProjectScope(projectID), f.roleID(t, catalog.RoleViewer))
	router := newGuardedRouter(f)

	req := httptest.NewRequest(http.MethodGet, "/flows/"+flowID.String(), nil)
	req.Header.Set(shared.ActorHeader, user.String())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireDeniesMissingGrant(t *testing.T) {
	f := newResolverFixture(t)
	user := f.addUser(false)
	projectID := uuid.New()
	flowID := uuid.New()
	f.resources.flows[flowID] = projectID
	f.store.assign(user, catalog.ProjectScope(projectID), f.roleID(t, catalog.RoleViewer))
	router := newGuardedRouter(f)

	// Viewer cannot create at global scope.
	req := httptest.NewRequest(http.MethodPost, "/projects", nil)
	req.Header.Set(shared.ActorHeader, user.String())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireRejectsMalformedResourceID(t *testing.T) {
	f := newResolverFixture(t)
	user := f.addUser(true)
	router := newGuardedRouter(f)

	req := httptest.NewRequest(http.MethodGet, "/flows/not-a-uuid", nil)
	req.Header.Set(shared.ActorHeader, user.String())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}
