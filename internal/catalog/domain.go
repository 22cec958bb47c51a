package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidScope indicates a scope kind / resource id mismatch.
var ErrInvalidScope = errors.New("catalog: invalid scope")

// ScopeKind enumerates the resource contexts an assignment or check applies to.
type ScopeKind string

const (
	ScopeGlobal  ScopeKind = "global"
	ScopeProject ScopeKind = "project"
	ScopeFlow    ScopeKind = "flow"
)

// ParseScopeKind normalizes and validates a scope kind string.
func ParseScopeKind(raw string) (ScopeKind, error) {
	kind := ScopeKind(strings.ToLower(strings.TrimSpace(raw)))
	switch kind {
	case ScopeGlobal, ScopeProject, ScopeFlow:
		return kind, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidScope, raw)
}

// Scope pairs a kind with the resource it refers to. The zero ResourceID is
// only legal for the global kind; NewScope enforces that at construction so
// an invalid scope cannot circulate.
type Scope struct {
	Kind       ScopeKind
	ResourceID uuid.UUID
}

// NewScope builds a Scope, rejecting kind/id mismatches.
func NewScope(kind ScopeKind, resourceID *uuid.UUID) (Scope, error) {
	switch kind {
	case ScopeGlobal:
		if resourceID != nil && *resourceID != uuid.Nil {
			return Scope{}, fmt.Errorf("%w: global scope must not carry a resource id", ErrInvalidScope)
		}
		return Scope{Kind: ScopeGlobal}, nil
	case ScopeProject, ScopeFlow:
		if resourceID == nil || *resourceID == uuid.Nil {
			return Scope{}, fmt.Errorf("%w: %s scope requires a resource id", ErrInvalidScope, kind)
		}
		return Scope{Kind: kind, ResourceID: *resourceID}, nil
	}
	return Scope{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidScope, kind)
}

// GlobalScope returns the scope covering the whole platform.
func GlobalScope() Scope {
	return Scope{Kind: ScopeGlobal}
}

// ProjectScope returns the scope for one project.
func ProjectScope(id uuid.UUID) Scope {
	return Scope{Kind: ScopeProject, ResourceID: id}
}

// FlowScope returns the scope for one flow.
func FlowScope(id uuid.UUID) Scope {
	return Scope{Kind: ScopeFlow, ResourceID: id}
}

// IsGlobal reports whether the scope has no resource binding.
func (s Scope) IsGlobal() bool {
	return s.Kind == ScopeGlobal
}

func (s Scope) String() string {
	if s.IsGlobal() {
		return string(ScopeGlobal)
	}
	return fmt.Sprintf("%s:%s", s.Kind, s.ResourceID)
}

// Fixed role names. The catalog is reference data: no custom roles exist.
const (
	RoleAdmin  = "Admin"
	RoleOwner  = "Owner"
	RoleEditor = "Editor"
	RoleViewer = "Viewer"
)

// Permission action names.
const (
	PermCreate = "Create"
	PermRead   = "Read"
	PermUpdate = "Update"
	PermDelete = "Delete"
)

// Role is a named bundle of permission grants.
type Role struct {
	ID          int64
	Name        string
	Description string
	IsSystem    bool
}

// Permission is one action applied to one resource kind.
type Permission struct {
	ID          int64
	Name        string
	ScopeKind   ScopeKind
	Description string
}

// RolePermission links a role to a permission it grants.
type RolePermission struct {
	RoleID       int64
	PermissionID int64
}

// Grant identifies a permission by name and resource kind, independent of
// database ids. Resolver hot-path lookups key on this.
type Grant struct {
	Permission string
	ScopeKind  ScopeKind
}
