package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/flowhub-io/flowhub-authz/internal/catalog"
)

func TestBatchCanAccessEmpty(t *testing.T) {
	f := newResolverFixture(t)
	user := f.addUser(false)

	results, err := f.service.BatchCanAccess(context.Background(), user, nil)
	require.NoError(t, err)
	require.NotNil(t, results)
	require.Empty(t, results)
}

func TestBatchCanAccessCap(t *testing.T) {
	f := newResolverFixture(t)
	user := f.addUser(false)

	checks := make([]Check, MaxBatchSize+1)
	for i := range checks {
		checks[i] = Check{Permission: catalog.PermRead, Scope: catalog.GlobalScope()}
	}

	_, err := f.service.BatchCanAccess(context.Background(), user, checks)
	require.True(t, errors.Is(err, ErrBatchTooLarge))
	// Rejected before any lookup runs.
	require.Equal(t, 0, f.users.getCalls)
	require.Equal(t, 0, f.store.rolesAtScopeCalls)
}

func TestBatchCanAccessSuperuserShortCircuit(t *testing.T) {
	f := newResolverFixture(t)
	root := f.addUser(true)

	checks := []Check{
		{Permission: catalog.PermDelete, Scope: catalog.FlowScope(uuid.New())},
		{Permission: catalog.PermCreate, Scope: catalog.ProjectScope(uuid.New())},
		{Permission: catalog.PermRead, Scope: catalog.GlobalScope()},
	}
	results, err := f.service.BatchCanAccess(context.Background(), root, checks)
	require.NoError(t, err)
	require.Equal(t, []bool{true, true, true}, results)
	require.Equal(t, 0, f.store.rolesAtScopeCalls)
}

func TestBatchCanAccessMatchesSequential(t *testing.T) {
	f := newResolverFixture(t)

	projectA := uuid.New()
	projectB := uuid.New()
	flowA1 := uuid.New()
	flowA2 := uuid.New()
	flowB1 := uuid.New()
	orphanFlow := uuid.New()
	f.resources.flows[flowA1] = projectA
	f.resources.flows[flowA2] = projectA
	f.resources.flows[flowB1] = projectB

	editor := f.addUser(false)
	f.store.assign(editor, catalog.ProjectScope(projectA), f.roleID(t, catalog.RoleEditor))
	f.store.assign(editor, catalog.FlowScope(flowB1), f.roleID(t, catalog.RoleViewer))

	viewer := f.addUser(false)
	f.store.assign(viewer, catalog.GlobalScope(), f.roleID(t, catalog.RoleViewer))

	admin := f.addUser(false)
	f.store.assign(admin, catalog.GlobalScope(), f.roleID(t, catalog.RoleAdmin))

	nobody := f.addUser(false)

	checks := []Check{
		{Permission: catalog.PermRead, Scope: catalog.FlowScope(flowA1)},
		{Permission: catalog.PermUpdate, Scope: catalog.FlowScope(flowA2)},
		{Permission: catalog.PermDelete, Scope: catalog.FlowScope(flowA1)},
		{Permission: catalog.PermRead, Scope: catalog.FlowScope(flowB1)},
		{Permission: catalog.PermUpdate, Scope: catalog.FlowScope(flowB1)},
		{Permission: catalog.PermRead, Scope: catalog.FlowScope(orphanFlow)},
		{Permission: catalog.PermCreate, Scope: catalog.ProjectScope(projectA)},
		{Permission: catalog.PermDelete, Scope: catalog.ProjectScope(projectB)},
		{Permission: catalog.PermRead, Scope: catalog.GlobalScope()},
	}

	for _, userID := range []uuid.UUID{editor, viewer, admin, nobody, uuid.New()} {
		batch, err := f.service.BatchCanAccess(context.Background(), userID, checks)
		require.NoError(t, err)
		require.Len(t, batch, len(checks))

		for i, check := range checks {
			single, err := f.service.CanAccess(context.Background(), userID, check.Permission, check.Scope)
			require.NoError(t, err)
			require.Equal(t, single, batch[i], "user %s check %d (%s on %s)", userID, i, check.Permission, check.Scope)
		}
	}
}

func TestBatchCanAccessConstantRoundTrips(t *testing.T) {
	f := newResolverFixture(t)
	user := f.addUser(false)

	projects := make([]uuid.UUID, 10)
	for i := range projects {
		projects[i] = uuid.New()
	}
	f.store.assign(user, catalog.ProjectScope(projects[0]), f.roleID(t, catalog.RoleEditor))

	var checks []Check
	for i := 0; i < 50; i++ {
		flowID := uuid.New()
		f.resources.flows[flowID] = projects[i%len(projects)]
		checks = append(checks, Check{Permission: catalog.PermRead, Scope: catalog.FlowScope(flowID)})
	}

	results, err := f.service.BatchCanAccess(context.Background(), user, checks)
	require.NoError(t, err)
	require.Len(t, results, 50)

	// One user fetch, one bypass probe, one parent prefetch, one assignment
	// query. No per-check lookups.
	require.Equal(t, 1, f.users.getCalls)
	require.Equal(t, 1, f.store.hasGlobalCalls)
	require.Equal(t, 1, f.resources.batchParentCalls)
	require.Equal(t, 1, f.store.rolesAtScopeCalls)
	require.Equal(t, 0, f.store.roleAtCalls)
	require.Equal(t, 0, f.resources.parentCalls)

	// Flows over the assigned project resolve through inheritance.
	for i, check := range checks {
		want := f.resources.flows[check.Scope.ResourceID] == projects[0]
		require.Equal(t, want, results[i], "check %d", i)
	}
}

func TestBatchCanAccessUsesRequestedScopeKindForGrants(t *testing.T) {
	f := newResolverFixture(t)
	user := f.addUser(false)
	projectID := uuid.New()
	flowID := uuid.New()
	f.resources.flows[flowID] = projectID
	f.store.assign(user, catalog.ProjectScope(projectID), f.roleID(t, catalog.RoleEditor))

	results, err := f.service.BatchCanAccess(context.Background(), user, []Check{
		{Permission: catalog.PermCreate, Scope: catalog.FlowScope(flowID)},
		{Permission: catalog.PermDelete, Scope: catalog.FlowScope(flowID)},
	})
	require.NoError(t, err)
	require.Equal(t, []bool{true, false}, results)
}
