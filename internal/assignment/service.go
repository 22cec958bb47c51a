package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flowhub-io/flowhub-authz/internal/audit"
	"github.com/flowhub-io/flowhub-authz/internal/catalog"
	"github.com/flowhub-io/flowhub-authz/internal/directory"
)

// Recorder receives one audit entry per successful mutation.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Invalidator drops cached authorization decisions for a user after that
// user's assignments change.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
}

// Service owns the assignment write path and its invariants.
type Service struct {
	repo        RepositoryPort
	catalog     *catalog.Catalog
	resources   directory.Resources
	recorder    Recorder
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService builds Service instance. invalidator may be nil when no
// decision cache is configured.
func NewService(repo RepositoryPort, cat *catalog.Catalog, resources directory.Resources, recorder Recorder, invalidator Invalidator, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		catalog:     cat,
		resources:   resources,
		recorder:    recorder,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Create validates and persists a new assignment.
func (s *Service) Create(ctx context.Context, input CreateInput) (Assignment, error) {
	role, ok := s.catalog.RoleByName(input.RoleName)
	if !ok {
		return Assignment{}, fmt.Errorf("%w: %s", ErrRoleNotFound, input.RoleName)
	}
	if err := s.checkResource(ctx, input.Scope); err != nil {
		return Assignment{}, err
	}

	created := Assignment{
		ID:          uuid.New(),
		UserID:      input.UserID,
		RoleID:      role.ID,
		RoleName:    role.Name,
		Scope:       input.Scope,
		IsImmutable: input.Immutable,
		CreatedBy:   input.ActorID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.Insert(ctx, created)
		if err != nil {
			return err
		}
		created.CreatedAt = inserted.CreatedAt
		return nil
	})
	if err != nil {
		return Assignment{}, err
	}

	s.afterMutation(ctx, audit.OpAssignmentCreate, input.ActorID, created)
	return created, nil
}

// CreateStarterOwnership grants the creator of a new resource an immutable
// Owner assignment. A retried bootstrap is a no-op.
func (s *Service) CreateStarterOwnership(ctx context.Context, userID uuid.UUID, scope catalog.Scope) (Assignment, error) {
	created, err := s.Create(ctx, CreateInput{
		UserID:    userID,
		RoleName:  catalog.RoleOwner,
		Scope:     scope,
		Immutable: true,
	})
	if errors.Is(err, ErrDuplicate) {
		return Assignment{}, nil
	}
	return created, err
}

// UpdateRole re-points an assignment to a different role. User and scope are
// fixed; changing them means delete and recreate.
func (s *Service) UpdateRole(ctx context.Context, id uuid.UUID, roleName string, actorID *uuid.UUID) (Assignment, error) {
	role, ok := s.catalog.RoleByName(roleName)
	if !ok {
		return Assignment{}, fmt.Errorf("%w: %s", ErrRoleNotFound, roleName)
	}

	var updated Assignment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.IsImmutable {
			return ErrImmutable
		}
		if err := tx.UpdateRole(ctx, id, role.ID); err != nil {
			return err
		}
		updated = current
		updated.RoleID = role.ID
		updated.RoleName = role.Name
		return nil
	})
	if err != nil {
		return Assignment{}, err
	}

	s.afterMutation(ctx, audit.OpAssignmentUpdate, actorID, updated)
	return updated, nil
}

// Remove deletes an assignment.
func (s *Service) Remove(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) error {
	var removed Assignment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.IsImmutable {
			return ErrImmutable
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		removed = current
		return nil
	})
	if err != nil {
		return err
	}

	s.afterMutation(ctx, audit.OpAssignmentDelete, actorID, removed)
	return nil
}

// List returns assignments matching the filter, with role names decorated
// from the catalog.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Assignment, error) {
	if filter.RoleName != "" {
		if _, ok := s.catalog.RoleByName(filter.RoleName); !ok {
			return []Assignment{}, nil
		}
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if role, ok := s.catalog.RoleByID(rows[i].RoleID); ok {
			rows[i].RoleName = role.Name
		}
	}
	return rows, nil
}

// Get fetches one assignment by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Assignment, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if role, ok := s.catalog.RoleByID(a.RoleID); ok {
		a.RoleName = role.Name
	}
	return a, nil
}

func (s *Service) checkResource(ctx context.Context, scope catalog.Scope) error {
	switch scope.Kind {
	case catalog.ScopeProject:
		exists, err := s.resources.ProjectExists(ctx, scope.ResourceID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: project %s", ErrResourceNotFound, scope.ResourceID)
		}
	case catalog.ScopeFlow:
		exists, err := s.resources.FlowExists(ctx, scope.ResourceID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: flow %s", ErrResourceNotFound, scope.ResourceID)
		}
	}
	return nil
}

// afterMutation emits the audit record and drops cached decisions for the
// affected user. Neither failure rolls back the committed mutation.
func (s *Service) afterMutation(ctx context.Context, operation string, actorID *uuid.UUID, a Assignment) {
	entry := audit.Entry{
		Operation: operation,
		ActorID:   actorID,
		Snapshot:  snapshot(a),
		At:        time.Now().UTC(),
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		s.logger.Error("audit record", slog.String("operation", operation), slog.Any("error", err))
	}
	if s.invalidator != nil {
		if err := s.invalidator.InvalidateUser(ctx, a.UserID); err != nil {
			s.logger.Warn("cache invalidate", slog.String("user_id", a.UserID.String()), slog.Any("error", err))
		}
	}
}

func snapshot(a Assignment) audit.AssignmentSnapshot {
	snap := audit.AssignmentSnapshot{
		ID:          a.ID,
		UserID:      a.UserID,
		RoleID:      a.RoleID,
		RoleName:    a.RoleName,
		ScopeKind:   string(a.Scope.Kind),
		IsImmutable: a.IsImmutable,
		CreatedAt:   a.CreatedAt,
		CreatedBy:   a.CreatedBy,
	}
	if !a.Scope.IsGlobal() {
		id := a.Scope.ResourceID
		snap.ScopeID = &id
	}
	return snap
}
