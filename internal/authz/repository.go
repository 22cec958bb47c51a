package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowhub-io/flowhub-authz/internal/catalog"
)

// Store defines the assignment lookups resolution needs. All methods are
// read-only.
type Store interface {
	// RoleAt returns the effective role id assigned at exactly the given
	// scope, if any.
	RoleAt(ctx context.Context, userID uuid.UUID, scope catalog.Scope) (int64, bool, error)
	// HasGlobalRole reports whether the user holds roleID at global scope.
	HasGlobalRole(ctx context.Context, userID uuid.UUID, roleID int64) (bool, error)
	// RolesAtScopes fetches assignments across all given scopes in one
	// query, expressed as a disjunction over the scope pairs.
	RolesAtScopes(ctx context.Context, userID uuid.UUID, scopes []catalog.Scope) (map[catalog.Scope]int64, error)
}

// PGStore reads user_role_assignments from PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// RoleAt picks the strongest role at the exact scope. Seed order ranks
// roles from most to least privileged, so the lowest role id wins when a
// user holds several roles at one scope.
func (s *PGStore) RoleAt(ctx context.Context, userID uuid.UUID, scope catalog.Scope) (int64, bool, error) {
	var roleID int64
	err := s.pool.QueryRow(ctx, `
		SELECT role_id FROM user_role_assignments
		WHERE user_id = $1 AND scope_kind = $2 AND scope_id IS NOT DISTINCT FROM $3
		ORDER BY role_id
		LIMIT 1`,
		userID, string(scope.Kind), scopeIDParam(scope)).Scan(&roleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("authz: role at scope: %w", err)
	}
	return roleID, true, nil
}

// HasGlobalRole reports whether the user holds the role at global scope.
func (s *PGStore) HasGlobalRole(ctx context.Context, userID uuid.UUID, roleID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_role_assignments
			WHERE user_id = $1 AND role_id = $2 AND scope_kind = $3
		)`, userID, roleID, string(catalog.ScopeGlobal)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("authz: global role: %w", err)
	}
	return exists, nil
}

// RolesAtScopes fetches every assignment matching the scope union in a
// single round trip. Rows arrive ordered by role id so the strongest role
// per scope is recorded first.
func (s *PGStore) RolesAtScopes(ctx context.Context, userID uuid.UUID, scopes []catalog.Scope) (map[catalog.Scope]int64, error) {
	result := make(map[catalog.Scope]int64, len(scopes))
	if len(scopes) == 0 {
		return result, nil
	}

	conds := make([]string, 0, len(scopes))
	args := make([]any, 0, 2*len(scopes)+1)
	args = append(args, userID)
	for _, scope := range scopes {
		args = append(args, string(scope.Kind), scopeIDParam(scope))
		conds = append(conds, fmt.Sprintf("(scope_kind = $%d AND scope_id IS NOT DISTINCT FROM $%d)", len(args)-1, len(args)))
	}
	query := `
		SELECT scope_kind, scope_id, role_id FROM user_role_assignments
		WHERE user_id = $1 AND (` + strings.Join(conds, " OR ") + `)
		ORDER BY role_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("authz: roles at scopes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind    string
			scopeID *uuid.UUID
			roleID  int64
		)
		if err := rows.Scan(&kind, &scopeID, &roleID); err != nil {
			return nil, fmt.Errorf("authz: scan role: %w", err)
		}
		scopeKind, err := catalog.ParseScopeKind(kind)
		if err != nil {
			return nil, err
		}
		scope, err := catalog.NewScope(scopeKind, scopeID)
		if err != nil {
			return nil, err
		}
		if _, seen := result[scope]; !seen {
			result[scope] = roleID
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scopeIDParam(scope catalog.Scope) *uuid.UUID {
	if scope.IsGlobal() {
		return nil
	}
	id := scope.ResourceID
	return &id
}
