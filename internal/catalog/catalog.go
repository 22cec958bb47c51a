package catalog

import (
	"fmt"
	"sort"
)

// Catalog is the immutable in-memory view of the role/permission reference
// data. It is built once at startup and shared read-only across goroutines.
type Catalog struct {
	roles       []Role
	permissions []Permission
	rolesByID   map[int64]Role
	rolesByName map[string]Role
	grants      map[int64]map[Grant]struct{}
}

// Build assembles a Catalog from loaded reference rows.
func Build(roles []Role, permissions []Permission, links []RolePermission) (*Catalog, error) {
	c := &Catalog{
		roles:       append([]Role(nil), roles...),
		permissions: append([]Permission(nil), permissions...),
		rolesByID:   make(map[int64]Role, len(roles)),
		rolesByName: make(map[string]Role, len(roles)),
		grants:      make(map[int64]map[Grant]struct{}, len(roles)),
	}
	sort.Slice(c.roles, func(i, j int) bool { return c.roles[i].ID < c.roles[j].ID })
	sort.Slice(c.permissions, func(i, j int) bool { return c.permissions[i].ID < c.permissions[j].ID })

	for _, role := range c.roles {
		if _, dup := c.rolesByName[role.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate role name %q", role.Name)
		}
		c.rolesByID[role.ID] = role
		c.rolesByName[role.Name] = role
		c.grants[role.ID] = make(map[Grant]struct{})
	}

	permsByID := make(map[int64]Permission, len(permissions))
	for _, perm := range c.permissions {
		permsByID[perm.ID] = perm
	}

	for _, link := range links {
		grantSet, ok := c.grants[link.RoleID]
		if !ok {
			return nil, fmt.Errorf("catalog: grant references unknown role %d", link.RoleID)
		}
		perm, ok := permsByID[link.PermissionID]
		if !ok {
			return nil, fmt.Errorf("catalog: grant references unknown permission %d", link.PermissionID)
		}
		grantSet[Grant{Permission: perm.Name, ScopeKind: perm.ScopeKind}] = struct{}{}
	}

	return c, nil
}

// Roles returns all roles ordered by id.
func (c *Catalog) Roles() []Role {
	return append([]Role(nil), c.roles...)
}

// Permissions returns all permissions ordered by id.
func (c *Catalog) Permissions() []Permission {
	return append([]Permission(nil), c.permissions...)
}

// RoleByName resolves a role by its unique name.
func (c *Catalog) RoleByName(name string) (Role, bool) {
	role, ok := c.rolesByName[name]
	return role, ok
}

// RoleByID resolves a role by id.
func (c *Catalog) RoleByID(id int64) (Role, bool) {
	role, ok := c.rolesByID[id]
	return role, ok
}

// Grants returns the grant set for a role. The returned map is shared;
// callers must treat it as read-only.
func (c *Catalog) Grants(roleID int64) map[Grant]struct{} {
	return c.grants[roleID]
}

// HasGrant reports whether the role grants the permission for the kind.
func (c *Catalog) HasGrant(roleID int64, permission string, kind ScopeKind) bool {
	grantSet, ok := c.grants[roleID]
	if !ok {
		return false
	}
	_, ok = grantSet[Grant{Permission: permission, ScopeKind: kind}]
	return ok
}
