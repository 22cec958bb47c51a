package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type seedRole struct {
	name        string
	description string
}

type seedPermission struct {
	name        string
	kind        ScopeKind
	description string
}

var seedRoles = []seedRole{
	{RoleAdmin, "Full platform administration"},
	{RoleOwner, "Owns a resource and everything in it"},
	{RoleEditor, "Can create and modify, cannot delete"},
	{RoleViewer, "Read-only access"},
}

var seedPermissions = []seedPermission{
	{PermCreate, ScopeFlow, "Create flows"},
	{PermRead, ScopeFlow, "Read, run and export flows"},
	{PermUpdate, ScopeFlow, "Modify flows"},
	{PermDelete, ScopeFlow, "Delete flows"},
	{PermCreate, ScopeProject, "Create projects"},
	{PermRead, ScopeProject, "Read and export projects"},
	{PermUpdate, ScopeProject, "Modify projects"},
	{PermDelete, ScopeProject, "Delete projects"},
}

// grantMatrix maps each role to the permissions it grants, per scope kind.
var grantMatrix = map[string][]Grant{
	RoleAdmin: {
		{PermCreate, ScopeFlow}, {PermRead, ScopeFlow}, {PermUpdate, ScopeFlow}, {PermDelete, ScopeFlow},
		{PermCreate, ScopeProject}, {PermRead, ScopeProject}, {PermUpdate, ScopeProject}, {PermDelete, ScopeProject},
	},
	RoleOwner: {
		{PermCreate, ScopeFlow}, {PermRead, ScopeFlow}, {PermUpdate, ScopeFlow}, {PermDelete, ScopeFlow},
		{PermCreate, ScopeProject}, {PermRead, ScopeProject}, {PermUpdate, ScopeProject}, {PermDelete, ScopeProject},
	},
	RoleEditor: {
		{PermCreate, ScopeFlow}, {PermRead, ScopeFlow}, {PermUpdate, ScopeFlow},
		{PermCreate, ScopeProject}, {PermRead, ScopeProject}, {PermUpdate, ScopeProject},
	},
	RoleViewer: {
		{PermRead, ScopeFlow},
		{PermRead, ScopeProject},
	},
}

// Seed upserts the fixed role/permission reference rows. It is idempotent
// and runs at every startup before Load.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	roleIDs := make(map[string]int64, len(seedRoles))
	for _, role := range seedRoles {
		var id int64
		err := pool.QueryRow(ctx, `
			INSERT INTO roles (name, description, is_system)
			VALUES ($1, $2, TRUE)
			ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
			RETURNING id`, role.name, role.description).Scan(&id)
		if err != nil {
			return fmt.Errorf("catalog: seed role %s: %w", role.name, err)
		}
		roleIDs[role.name] = id
	}

	permIDs := make(map[Grant]int64, len(seedPermissions))
	for _, perm := range seedPermissions {
		var id int64
		err := pool.QueryRow(ctx, `
			INSERT INTO permissions (name, scope_kind, description)
			VALUES ($1, $2, $3)
			ON CONFLICT (name, scope_kind) DO UPDATE SET description = EXCLUDED.description
			RETURNING id`, perm.name, string(perm.kind), perm.description).Scan(&id)
		if err != nil {
			return fmt.Errorf("catalog: seed permission %s/%s: %w", perm.name, perm.kind, err)
		}
		permIDs[Grant{Permission: perm.name, ScopeKind: perm.kind}] = id
	}

	for roleName, grants := range grantMatrix {
		roleID := roleIDs[roleName]
		for _, grant := range grants {
			permID, ok := permIDs[grant]
			if !ok {
				return fmt.Errorf("catalog: grant matrix references unknown permission %s/%s", grant.Permission, grant.ScopeKind)
			}
			_, err := pool.Exec(ctx, `
				INSERT INTO role_permissions (role_id, permission_id)
				VALUES ($1, $2)
				ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, permID)
			if err != nil {
				return fmt.Errorf("catalog: seed grant %s -> %s/%s: %w", roleName, grant.Permission, grant.ScopeKind, err)
			}
		}
	}

	return nil
}

// Load reads the reference tables and builds the in-memory catalog.
func Load(ctx context.Context, pool *pgxpool.Pool) (*Catalog, error) {
	rows, err := pool.Query(ctx, `SELECT id, name, description, is_system FROM roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: load roles: %w", err)
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem); err != nil {
			return nil, fmt.Errorf("catalog: scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	permRows, err := pool.Query(ctx, `SELECT id, name, scope_kind, description FROM permissions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: load permissions: %w", err)
	}
	defer permRows.Close()
	var permissions []Permission
	for permRows.Next() {
		var perm Permission
		var kind string
		if err := permRows.Scan(&perm.ID, &perm.Name, &kind, &perm.Description); err != nil {
			return nil, fmt.Errorf("catalog: scan permission: %w", err)
		}
		perm.ScopeKind, err = ParseScopeKind(kind)
		if err != nil {
			return nil, err
		}
		permissions = append(permissions, perm)
	}
	if err := permRows.Err(); err != nil {
		return nil, err
	}

	linkRows, err := pool.Query(ctx, `SELECT role_id, permission_id FROM role_permissions`)
	if err != nil {
		return nil, fmt.Errorf("catalog: load role permissions: %w", err)
	}
	defer linkRows.Close()
	var links []RolePermission
	for linkRows.Next() {
		var link RolePermission
		if err := linkRows.Scan(&link.RoleID, &link.PermissionID); err != nil {
			return nil, fmt.Errorf("catalog: scan role permission: %w", err)
		}
		links = append(links, link)
	}
	if err := linkRows.Err(); err != nil {
		return nil, err
	}

	return Build(roles, permissions, links)
}

// BuildSeeded assembles a catalog straight from the seed data without a
// database, assigning synthetic ids. Tests and tooling use it.
func BuildSeeded() *Catalog {
	var (
		roles []Role
		perms []Permission
		links []RolePermission
	)
	roleIDs := make(map[string]int64, len(seedRoles))
	for i, role := range seedRoles {
		id := int64(i + 1)
		roleIDs[role.name] = id
		roles = append(roles, Role{ID: id, Name: role.name, Description: role.description, IsSystem: true})
	}
	permIDs := make(map[Grant]int64, len(seedPermissions))
	for i, perm := range seedPermissions {
		id := int64(i + 1)
		permIDs[Grant{Permission: perm.name, ScopeKind: perm.kind}] = id
		perms = append(perms, Permission{ID: id, Name: perm.name, ScopeKind: perm.kind, Description: perm.description})
	}
	for roleName, grants := range grantMatrix {
		for _, grant := range grants {
			links = append(links, RolePermission{RoleID: roleIDs[roleName], PermissionID: permIDs[grant]})
		}
	}
	built, err := Build(roles, perms, links)
	if err != nil {
		// Seed data is static; a failure here is a programming error.
		panic(err)
	}
	return built
}
