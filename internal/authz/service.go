package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/flowhub-io/flowhub-authz/internal/catalog"
	"github.com/flowhub-io/flowhub-authz/internal/directory"
)

// Service answers permission checks. It is a pure read surface: resolution
// never mutates assignment rows, so any number of goroutines may share one
// Service.
type Service struct {
	store     Store
	catalog   *catalog.Catalog
	users     directory.Users
	resources directory.Resources
	cache     *DecisionCache
	metrics   *Metrics
	logger    *slog.Logger
}

// NewService builds Service instance. cache and metrics may be nil.
func NewService(store Store, cat *catalog.Catalog, users directory.Users, resources directory.Resources, cache *DecisionCache, metrics *Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		catalog:   cat,
		users:     users,
		resources: resources,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
	}
}

// CanAccess decides whether the user may perform the permission within the
// scope. The design is default-deny: missing user, assignment or grant
// resolves to false; only infrastructure failures surface as errors.
func (s *Service) CanAccess(ctx context.Context, userID uuid.UUID, permission string, scope catalog.Scope) (bool, error) {
	allowed, err := s.cache.Fetch(ctx, userID, permission, scope, func(ctx context.Context) (bool, error) {
		return s.resolve(ctx, userID, permission, scope)
	})
	if err != nil {
		return false, err
	}
	s.metrics.ObserveDecision(allowed)
	return allowed, nil
}

// resolve is the uncached single-check algorithm: superuser bypass, then
// global-admin bypass, then scope resolution with one level of flow-to-
// project inheritance, then the catalog grant check.
func (s *Service) resolve(ctx context.Context, userID uuid.UUID, permission string, scope catalog.Scope) (bool, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	if user.IsSuperuser {
		return true, nil
	}

	isAdmin, err := s.isGlobalAdmin(ctx, userID)
	if err != nil {
		return false, err
	}
	if isAdmin {
		return true, nil
	}

	roleID, found, err := s.effectiveRole(ctx, userID, scope)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	return s.catalog.HasGrant(roleID, permission, scope.Kind), nil
}

// effectiveRole finds the role governing the scope: an explicit assignment
// wins; a flow without one falls back to its owning project. Inheritance is
// a bounded two-step lookup, never general recursion.
func (s *Service) effectiveRole(ctx context.Context, userID uuid.UUID, scope catalog.Scope) (int64, bool, error) {
	roleID, found, err := s.store.RoleAt(ctx, userID, scope)
	if err != nil || found {
		return roleID, found, err
	}
	if scope.Kind != catalog.ScopeFlow {
		return 0, false, nil
	}

	projectID, err := s.resources.FlowOwningProject(ctx, scope.ResourceID)
	if err != nil {
		if errors.Is(err, directory.ErrFlowNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return s.store.RoleAt(ctx, userID, catalog.ProjectScope(projectID))
}

func (s *Service) isGlobalAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	admin, ok := s.catalog.RoleByName(catalog.RoleAdmin)
	if !ok {
		return false, fmt.Errorf("authz: admin role missing from catalog")
	}
	return s.store.HasGlobalRole(ctx, userID, admin.ID)
}
