package assignment

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/flowhub-io/flowhub-authz/internal/catalog"
)

// Failure modes of the assignment write path. The read path (authz) never
// surfaces these; absence of data resolves to a deny there.
var (
	ErrRoleNotFound     = errors.New("assignment: role not found")
	ErrResourceNotFound = errors.New("assignment: resource not found")
	ErrNotFound         = errors.New("assignment: not found")
	ErrDuplicate        = errors.New("assignment: duplicate assignment")
	ErrImmutable        = errors.New("assignment: immutable assignment")
)

// Assignment binds a user to a role within a scope. User and scope are fixed
// once created; only the role can change, and nothing can change when
// IsImmutable is set.
type Assignment struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	RoleID      int64
	RoleName    string
	Scope       catalog.Scope
	IsImmutable bool
	CreatedAt   time.Time
	// CreatedBy is nil for system-made assignments (bootstrap ownership).
	CreatedBy *uuid.UUID
}

// CreateInput carries a create request into the service.
type CreateInput struct {
	UserID    uuid.UUID
	RoleName  string
	Scope     catalog.Scope
	Immutable bool
	// ActorID is the authenticated caller; nil means the system itself.
	ActorID *uuid.UUID
}

// ListFilter narrows List results. Nil/empty fields are wildcards.
type ListFilter struct {
	UserID    *uuid.UUID
	RoleName  string
	ScopeKind catalog.ScopeKind
}
