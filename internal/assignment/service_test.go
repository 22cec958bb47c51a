package assignment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/flowhub-io/flowhub-authz/internal/audit"
	"github.com/flowhub-io/flowhub-authz/internal/catalog"
)

type memoryRepo struct {
	assignments map[uuid.UUID]Assignment
	order       []uuid.UUID
	listCalls   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{assignments: make(map[uuid.UUID]Assignment)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTxRepo{repo: m})
}

func (m *memoryRepo) Get(ctx context.Context, id uuid.UUID) (Assignment, error) {
	a, ok := m.assignments[id]
	if !ok {
		return Assignment{}, ErrNotFound
	}
	return a, nil
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Assignment, error) {
	m.listCalls++
	result := []Assignment{}
	for _, id := range m.order {
		a, ok := m.assignments[id]
		if !ok {
			continue
		}
		if filter.UserID != nil && a.UserID != *filter.UserID {
			continue
		}
		if filter.RoleName != "" && a.RoleName != filter.RoleName {
			continue
		}
		if filter.ScopeKind != "" && a.Scope.Kind != filter.ScopeKind {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

type memoryTxRepo struct {
	repo *memoryRepo
}

func (t *memoryTxRepo) Get(ctx context.Context, id uuid.UUID) (Assignment, error) {
	return t.repo.Get(ctx, id)
}

func (t *memoryTxRepo) Insert(ctx context.Context, a Assignment) (Assignment, error) {
	for _, existing := range t.repo.assignments {
		if existing.UserID == a.UserID && existing.RoleID == a.RoleID && existing.Scope == a.Scope {
			return Assignment{}, ErrDuplicate
		}
	}
	a.CreatedAt = time.Now().UTC()
	t.repo.assignments[a.ID] = a
	t.repo.order = append(t.repo.order, a.ID)
	return a, nil
}

func (t *memoryTxRepo) UpdateRole(ctx context.Context, id uuid.UUID, roleID int64) error {
	a, ok := t.repo.assignments[id]
	if !ok {
		return ErrNotFound
	}
	a.RoleID = roleID
	t.repo.assignments[id] = a
	return nil
}

func (t *memoryTxRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.repo.assignments[id]; !ok {
		return ErrNotFound
	}
	delete(t.repo.assignments, id)
	return nil
}

type stubRecorder struct {
	entries []audit.Entry
	fail    error
}

func (s *stubRecorder) Record(ctx context.Context, entry audit.Entry) error {
	if s.fail != nil {
		return s.fail
	}
	s.entries = append(s.entries, entry)
	return nil
}

type stubInvalidator struct {
	invalidated []uuid.UUID
}

func (s *stubInvalidator) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	s.invalidated = append(s.invalidated, userID)
	return nil
}

type stubResources struct {
	projects map[uuid.UUID]bool
	flows    map[uuid.UUID]uuid.UUID
}

func (s *stubResources) ProjectExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.projects[id], nil
}

func (s *stubResources) FlowExists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := s.flows[id]
	return ok, nil
}

func (s *stubResources) FlowOwningProject(ctx context.Context, flowID uuid.UUID) (uuid.UUID, error) {
	projectID, ok := s.flows[flowID]
	if !ok {
		return uuid.Nil, errors.New("stub: flow not found")
	}
	return projectID, nil
}

func (s *stubResources) FlowOwningProjects(ctx context.Context, flowIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	result := make(map[uuid.UUID]uuid.UUID)
	for _, id := range flowIDs {
		if projectID, ok := s.flows[id]; ok {
			result[id] = projectID
		}
	}
	return result, nil
}

type serviceFixture struct {
	service     *Service
	repo        *memoryRepo
	recorder    *stubRecorder
	invalidator *stubInvalidator
	resources   *stubResources
	projectID   uuid.UUID
	flowID      uuid.UUID
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	projectID := uuid.New()
	flowID := uuid.New()
	f := &serviceFixture{
		repo:        newMemoryRepo(),
		recorder:    &stubRecorder{},
		invalidator: &stubInvalidator{},
		resources: &stubResources{
			projects: map[uuid.UUID]bool{projectID: true},
			flows:    map[uuid.UUID]uuid.UUID{flowID: projectID},
		},
		projectID: projectID,
		flowID:    flowID,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.service = NewService(f.repo, catalog.BuildSeeded(), f.resources, f.recorder, f.invalidator, logger)
	return f
}

func TestCreateAssignment(t *testing.T) {
	f := newServiceFixture(t)
	userID := uuid.New()
	actorID := uuid.New()

	created, err := f.service.Create(context.Background(), CreateInput{
		UserID:   userID,
		RoleName: catalog.RoleEditor,
		Scope:    catalog.ProjectScope(f.projectID),
		ActorID:  &actorID,
	})
	require.NoError(t, err)
	require.Equal(t, catalog.RoleEditor, created.RoleName)
	require.Equal(t, userID, created.UserID)
	require.False(t, created.CreatedAt.IsZero())
	require.NotNil(t, created.CreatedBy)

	require.Len(t, f.recorder.entries, 1)
	entry := f.recorder.entries[0]
	require.Equal(t, audit.OpAssignmentCreate, entry.Operation)
	require.Equal(t, userID, entry.Snapshot.UserID)
	require.Equal(t, "project", entry.Snapshot.ScopeKind)
	require.NotNil(t, entry.Snapshot.ScopeID)
	require.Equal(t, f.projectID, *entry.Snapshot.ScopeID)

	require.Equal(t, []uuid.UUID{userID}, f.invalidator.invalidated)
}

func TestCreateUnknownRole(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Create(context.Background(), CreateInput{
		UserID:   uuid.New(),
		RoleName: "Superhero",
		Scope:    catalog.GlobalScope(),
	})
	require.True(t, errors.Is(err, ErrRoleNotFound))
	require.Empty(t, f.recorder.entries)
}

func TestCreateMissingResource(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Create(context.Background(), CreateInput{
		UserID:   uuid.New(),
		RoleName: catalog.RoleViewer,
		Scope:    catalog.ProjectScope(uuid.New()),
	})
	require.True(t, errors.Is(err, ErrResourceNotFound))

	_, err = f.service.Create(context.Background(), CreateInput{
		UserID:   uuid.New(),
		RoleName: catalog.RoleViewer,
		Scope:    catalog.FlowScope(uuid.New()),
	})
	require.True(t, errors.Is(err, ErrResourceNotFound))
}

func TestCreateDuplicate(t *testing.T) {
	f := newServiceFixture(t)
	userID := uuid.New()
	input := CreateInput{
		UserID:   userID,
		RoleName: catalog.RoleViewer,
		Scope:    catalog.FlowScope(f.flowID),
	}

	_, err := f.service.Create(context.Background(), input)
	require.NoError(t, err)

	_, err = f.service.Create(context.Background(), input)
	require.True(t, errors.Is(err, ErrDuplicate))
	require.Len(t, f.recorder.entries, 1)
}

func TestCreateStarterOwnershipIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	userID := uuid.New()
	scope := catalog.ProjectScope(f.projectID)

	created, err := f.service.CreateStarterOwnership(context.Background(), userID, scope)
	require.NoError(t, err)
	require.Equal(t, catalog.RoleOwner, created.RoleName)
	require.True(t, created.IsImmutable)
	require.Nil(t, created.CreatedBy)

	// Retried bootstrap is a no-op, not an error.
	_, err = f.service.CreateStarterOwnership(context.Background(), userID, scope)
	require.NoError(t, err)
	require.Len(t, f.recorder.entries, 1)
}

func TestUpdateRole(t *testing.T) {
	f := newServiceFixture(t)
	userID := uuid.New()
	actorID := uuid.New()

	created, err := f.service.Create(context.Background(), CreateInput{
		UserID:   userID,
		RoleName: catalog.RoleViewer,
		Scope:    catalog.ProjectScope(f.projectID),
		ActorID:  &actorID,
	})
	require.NoError(t, err)

	updated, err := f.service.UpdateRole(context.Background(), created.ID, catalog.RoleEditor, &actorID)
	require.NoError(t, err)
	require.Equal(t, catalog.RoleEditor, updated.RoleName)
	require.Equal(t, created.UserID, updated.UserID)
	require.Equal(t, created.Scope, updated.Scope)

	require.Len(t, f.recorder.entries, 2)
	require.Equal(t, audit.OpAssignmentUpdate, f.recorder.entries[1].Operation)
	require.Equal(t, []uuid.UUID{userID, userID}, f.invalidator.invalidated)
}

func TestUpdateRoleGuards(t *testing.T) {
	f := newServiceFixture(t)
	actorID := uuid.New()

	_, err := f.service.UpdateRole(context.Background(), uuid.New(), catalog.RoleEditor, &actorID)
	require.True(t, errors.Is(err, ErrNotFound))

	created, err := f.service.Create(context.Background(), CreateInput{
		UserID:   uuid.New(),
		RoleName: catalog.RoleViewer,
		Scope:    catalog.GlobalScope(),
		ActorID:  &actorID,
	})
	require.NoError(t, err)

	_, err = f.service.UpdateRole(context.Background(), created.ID, "Superhero", &actorID)
	require.True(t, errors.Is(err, ErrRoleNotFound))
}

func TestImmutableAssignmentRejectsMutation(t *testing.T) {
	f := newServiceFixture(t)
	actorID := uuid.New()

	owned, err := f.service.CreateStarterOwnership(context.Background(), uuid.New(), catalog.ProjectScope(f.projectID))
	require.NoError(t, err)

	_, err = f.service.UpdateRole(context.Background(), owned.ID, catalog.RoleViewer, &actorID)
	require.True(t, errors.Is(err, ErrImmutable))

	err = f.service.Remove(context.Background(), owned.ID, &actorID)
	require.True(t, errors.Is(err, ErrImmutable))

	// The row survives untouched.
	current, err := f.service.Get(context.Background(), owned.ID)
	require.NoError(t, err)
	require.Equal(t, catalog.RoleOwner, current.RoleName)
}

func TestRemoveAssignment(t *testing.T) {
	f := newServiceFixture(t)
	userID := uuid.New()
	actorID := uuid.New()

	created, err := f.service.Create(context.Background(), CreateInput{
		UserID:   userID,
		RoleName: catalog.RoleViewer,
		Scope:    catalog.FlowScope(f.flowID),
		ActorID:  &actorID,
	})
	require.NoError(t, err)

	require.NoError(t, f.service.Remove(context.Background(), created.ID, &actorID))

	_, err = f.service.Get(context.Background(), created.ID)
	require.True(t, errors.Is(err, ErrNotFound))

	err = f.service.Remove(context.Background(), created.ID, &actorID)
	require.True(t, errors.Is(err, ErrNotFound))

	require.Equal(t, audit.OpAssignmentDelete, f.recorder.entries[1].Operation)
}

func TestListFilters(t *testing.T) {
	f := newServiceFixture(t)
	alice := uuid.New()
	bob := uuid.New()

	_, err := f.service.Create(context.Background(), CreateInput{UserID: alice, RoleName: catalog.RoleViewer, Scope: catalog.ProjectScope(f.projectID)})
	require.NoError(t, err)
	_, err = f.service.Create(context.Background(), CreateInput{UserID: alice, RoleName: catalog.RoleEditor, Scope: catalog.FlowScope(f.flowID)})
	require.NoError(t, err)
	_, err = f.service.Create(context.Background(), CreateInput{UserID: bob, RoleName: catalog.RoleViewer, Scope: catalog.GlobalScope()})
	require.NoError(t, err)

	all, err := f.service.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	mine, err := f.service.List(context.Background(), ListFilter{UserID: &alice})
	require.NoError(t, err)
	require.Len(t, mine, 2)

	viewers, err := f.service.List(context.Background(), ListFilter{RoleName: catalog.RoleViewer})
	require.NoError(t, err)
	require.Len(t, viewers, 2)

	flows, err := f.service.List(context.Background(), ListFilter{ScopeKind: catalog.ScopeFlow})
	require.NoError(t, err)
	require.Len(t, flows, 1)
}

func TestListUnknownRoleNameShortCircuits(t *testing.T) {
	f := newServiceFixture(t)

	rows, err := f.service.List(context.Background(), ListFilter{RoleName: "Superhero"})
	require.NoError(t, err)
	require.Empty(t, rows)
	require.Equal(t, 0, f.repo.listCalls)
}

func TestAuditFailureDoesNotRollBackMutation(t *testing.T) {
	f := newServiceFixture(t)
	f.recorder.fail = errors.New("audit store down")

	created, err := f.service.Create(context.Background(), CreateInput{
		UserID:   uuid.New(),
		RoleName: catalog.RoleViewer,
		Scope:    catalog.GlobalScope(),
	})
	require.NoError(t, err)

	_, err = f.service.Get(context.Background(), created.ID)
	require.NoError(t, err)
}
