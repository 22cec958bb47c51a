package audit

import (
	"time"

	"github.com/google/uuid"
)

// Operation names for assignment mutations.
const (
	OpAssignmentCreate = "assignment.create"
	OpAssignmentUpdate = "assignment.update"
	OpAssignmentDelete = "assignment.delete"
)

// AssignmentSnapshot is the full state of an assignment at mutation time.
// It is stored as JSON so records stay meaningful if rows are later deleted.
type AssignmentSnapshot struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	RoleID      int64      `json:"role_id"`
	RoleName    string     `json:"role_name"`
	ScopeKind   string     `json:"scope_kind"`
	ScopeID     *uuid.UUID `json:"scope_id,omitempty"`
	IsImmutable bool       `json:"is_immutable"`
	CreatedAt   time.Time  `json:"created_at"`
	CreatedBy   *uuid.UUID `json:"created_by,omitempty"`
}

// Entry is one append-only audit record.
type Entry struct {
	Operation string
	// ActorID is nil for system-made mutations (bootstrap ownership).
	ActorID  *uuid.UUID
	Snapshot AssignmentSnapshot
	At       time.Time
}

// TimelineRow is a read-model row for the operator timeline.
type TimelineRow struct {
	At        time.Time          `json:"at"`
	Operation string             `json:"operation"`
	ActorID   *uuid.UUID         `json:"actor_id,omitempty"`
	Snapshot  AssignmentSnapshot `json:"snapshot"`
}

// TimelineFilters narrows the timeline query. Zero values are wildcards.
type TimelineFilters struct {
	From      time.Time
	To        time.Time
	ActorID   *uuid.UUID
	Operation string
	Page      int
	PageSize  int
}

// PagingInfo describes the returned window.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}
