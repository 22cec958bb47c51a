package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed lookups against the platform's
// shared users/projects/flows tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetUser fetches a user by id.
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, is_superuser, is_active FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.Email, &user.IsSuperuser, &user.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("directory: get user: %w", err)
	}
	return user, nil
}

// ProjectExists reports whether the project id exists.
func (r *Repository) ProjectExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("directory: project exists: %w", err)
	}
	return exists, nil
}

// FlowExists reports whether the flow id exists.
func (r *Repository) FlowExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM flows WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("directory: flow exists: %w", err)
	}
	return exists, nil
}

// FlowOwningProject resolves the project a flow belongs to.
func (r *Repository) FlowOwningProject(ctx context.Context, flowID uuid.UUID) (uuid.UUID, error) {
	var projectID uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT project_id FROM flows WHERE id = $1`, flowID).Scan(&projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrFlowNotFound
		}
		return uuid.Nil, fmt.Errorf("directory: flow owning project: %w", err)
	}
	return projectID, nil
}

// FlowOwningProjects resolves owning projects for many flows in one query.
// Unknown flow ids are simply absent from the result map.
func (r *Repository) FlowOwningProjects(ctx context.Context, flowIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	result := make(map[uuid.UUID]uuid.UUID, len(flowIDs))
	if len(flowIDs) == 0 {
		return result, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, project_id FROM flows WHERE id = ANY($1)`, flowIDs)
	if err != nil {
		return nil, fmt.Errorf("directory: flow owning projects: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var flowID, projectID uuid.UUID
		if err := rows.Scan(&flowID, &projectID); err != nil {
			return nil, fmt.Errorf("directory: scan flow project: %w", err)
		}
		result[flowID] = projectID
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
