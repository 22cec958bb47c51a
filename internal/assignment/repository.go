package assignment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowhub-io/flowhub-authz/internal/catalog"
	"github.com/flowhub-io/flowhub-authz/internal/platform/db"
)

// RepositoryPort defines data access for assignments. Mutations run through
// WithTx so invariant checks and writes share one transaction; the unique
// index is the backstop against concurrent duplicate creates.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (Assignment, error)
	List(ctx context.Context, filter ListFilter) ([]Assignment, error)
}

// TxRepository is the transaction-scoped slice of the repository.
type TxRepository interface {
	Get(ctx context.Context, id uuid.UUID) (Assignment, error)
	Insert(ctx context.Context, a Assignment) (Assignment, error)
	UpdateRole(ctx context.Context, id uuid.UUID, roleID int64) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx runs fn inside one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// Get fetches an assignment by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Assignment, error) {
	return getAssignment(ctx, r.pool, id)
}

func (t *txRepository) Get(ctx context.Context, id uuid.UUID) (Assignment, error) {
	return getAssignment(ctx, t.tx, id)
}

func getAssignment(ctx context.Context, q querier, id uuid.UUID) (Assignment, error) {
	row := q.QueryRow(ctx, `
		SELECT id, user_id, role_id, scope_kind, scope_id, is_immutable, created_at, created_by
		FROM user_role_assignments
		WHERE id = $1`, id)
	a, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, ErrNotFound
		}
		return Assignment{}, fmt.Errorf("assignment: get: %w", err)
	}
	return a, nil
}

// Insert persists a new assignment. A unique-index violation maps to
// ErrDuplicate.
func (t *txRepository) Insert(ctx context.Context, a Assignment) (Assignment, error) {
	var scopeID *uuid.UUID
	if !a.Scope.IsGlobal() {
		id := a.Scope.ResourceID
		scopeID = &id
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO user_role_assignments (id, user_id, role_id, scope_kind, scope_id, is_immutable, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		a.ID, a.UserID, a.RoleID, string(a.Scope.Kind), scopeID, a.IsImmutable, a.CreatedBy).
		Scan(&a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Assignment{}, ErrDuplicate
		}
		return Assignment{}, fmt.Errorf("assignment: insert: %w", err)
	}
	return a, nil
}

// UpdateRole re-points the role reference.
func (t *txRepository) UpdateRole(ctx context.Context, id uuid.UUID, roleID int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE user_role_assignments SET role_id = $2 WHERE id = $1`, id, roleID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("assignment: update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the assignment row.
func (t *txRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM user_role_assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("assignment: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns assignments matching the filter.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Assignment, error) {
	var kind *string
	if filter.ScopeKind != "" {
		s := string(filter.ScopeKind)
		kind = &s
	}
	// RoleName is translated to a role id by the service; the filter carries
	// it only for callers that bypass the service in tests.
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.user_id, a.role_id, a.scope_kind, a.scope_id, a.is_immutable, a.created_at, a.created_by
		FROM user_role_assignments a
		JOIN roles r ON r.id = a.role_id
		WHERE ($1::uuid IS NULL OR a.user_id = $1)
		  AND ($2::text IS NULL OR r.name = $2)
		  AND ($3::text IS NULL OR a.scope_kind = $3)
		ORDER BY a.created_at, a.id`,
		filter.UserID, optionalString(filter.RoleName), kind)
	if err != nil {
		return nil, fmt.Errorf("assignment: list: %w", err)
	}
	defer rows.Close()

	var result []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("assignment: scan: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanAssignment(row pgx.Row) (Assignment, error) {
	var (
		a       Assignment
		kind    string
		scopeID *uuid.UUID
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.RoleID, &kind, &scopeID, &a.IsImmutable, &a.CreatedAt, &a.CreatedBy); err != nil {
		return Assignment{}, err
	}
	scopeKind, err := catalog.ParseScopeKind(kind)
	if err != nil {
		return Assignment{}, err
	}
	scope, err := catalog.NewScope(scopeKind, scopeID)
	if err != nil {
		return Assignment{}, err
	}
	a.Scope = scope
	return a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
