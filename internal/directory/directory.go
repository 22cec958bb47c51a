// Package directory exposes the platform entities the authorization core
// reasons about: users, projects and flows. Their lifecycle is owned by the
// rest of the platform; this service only reads them.
package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrUserNotFound indicates the user id does not exist.
	ErrUserNotFound = errors.New("directory: user not found")
	// ErrFlowNotFound indicates the flow id does not exist.
	ErrFlowNotFound = errors.New("directory: flow not found")
)

// User is the slice of the platform user the resolver needs.
type User struct {
	ID          uuid.UUID
	Email       string
	IsSuperuser bool
	IsActive    bool
}

// Users resolves user identities.
type Users interface {
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
}

// Resources answers existence and ownership questions about projects and
// flows. FlowOwningProjects is the batched form used by batch resolution.
type Resources interface {
	ProjectExists(ctx context.Context, id uuid.UUID) (bool, error)
	FlowExists(ctx context.Context, id uuid.UUID) (bool, error)
	FlowOwningProject(ctx context.Context, flowID uuid.UUID) (uuid.UUID, error)
	FlowOwningProjects(ctx context.Context, flowIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
}
