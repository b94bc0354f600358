package rbac

import "fmt"

// The permission catalog is a closed, process-wide constant table. There is
// no registration API: a permission either ships with the binary or it does
// not exist.

// System role names seeded by InitializeSystemRoles.
const (
	RoleSuperAdmin  = "super-admin"
	RoleTenantAdmin = "tenant-admin"
	RoleManager     = "manager"
	RoleAgent       = "agent"
	RoleViewer      = "viewer"
)

// SystemRoleNames lists every bootstrap-managed role.
var SystemRoleNames = []string{
	RoleSuperAdmin,
	RoleTenantAdmin,
	RoleManager,
	RoleAgent,
	RoleViewer,
}

// Permission identifiers.
const (
	PermLeadsCreate = "leads:create"
	PermLeadsRead   = "leads:read"
	PermLeadsUpdate = "leads:update"
	PermLeadsDelete = "leads:delete"
	PermLeadsAssign = "leads:assign"
	PermLeadsExport = "leads:export"

	PermTenantsCreate = "tenants:create"
	PermTenantsRead   = "tenants:read"
	PermTenantsUpdate = "tenants:update"
	PermTenantsDelete = "tenants:delete"

	PermUsersCreate = "users:create"
	PermUsersRead   = "users:read"
	PermUsersUpdate = "users:update"
	PermUsersDelete = "users:delete"

	PermRolesCreate = "roles:create"
	PermRolesRead   = "roles:read"
	PermRolesUpdate = "roles:update"
	PermRolesDelete = "roles:delete"
	PermRolesAssign = "roles:assign"

	PermTimeCreate  = "time:create"
	PermTimeRead    = "time:read"
	PermTimeUpdate  = "time:update"
	PermTimeDelete  = "time:delete"
	PermTimeApprove = "time:approve"

	PermAnalyticsRead   = "analytics:read"
	PermAnalyticsExport = "analytics:export"

	PermSettingsRead   = "settings:read"
	PermSettingsUpdate = "settings:update"
)

var allPermissions = []string{
	PermLeadsCreate, PermLeadsRead, PermLeadsUpdate, PermLeadsDelete, PermLeadsAssign, PermLeadsExport,
	PermTenantsCreate, PermTenantsRead, PermTenantsUpdate, PermTenantsDelete,
	PermUsersCreate, PermUsersRead, PermUsersUpdate, PermUsersDelete,
	PermRolesCreate, PermRolesRead, PermRolesUpdate, PermRolesDelete, PermRolesAssign,
	PermTimeCreate, PermTimeRead, PermTimeUpdate, PermTimeDelete, PermTimeApprove,
	PermAnalyticsRead, PermAnalyticsExport,
	PermSettingsRead, PermSettingsUpdate,
}

var permissionSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(allPermissions))
	for _, p := range allPermissions {
		set[p] = struct{}{}
	}
	return set
}()

var systemRolePermissions = map[string][]string{
	RoleSuperAdmin: allPermissions,
	RoleTenantAdmin: {
		PermLeadsCreate, PermLeadsRead, PermLeadsUpdate, PermLeadsDelete, PermLeadsAssign, PermLeadsExport,
		PermTenantsRead, PermTenantsUpdate,
		PermUsersCreate, PermUsersRead, PermUsersUpdate, PermUsersDelete,
		PermRolesCreate, PermRolesRead, PermRolesUpdate, PermRolesDelete, PermRolesAssign,
		PermTimeCreate, PermTimeRead, PermTimeUpdate, PermTimeDelete, PermTimeApprove,
		PermAnalyticsRead, PermAnalyticsExport,
		PermSettingsRead, PermSettingsUpdate,
	},
	RoleManager: {
		PermLeadsCreate, PermLeadsRead, PermLeadsUpdate, PermLeadsAssign, PermLeadsExport,
		PermUsersRead,
		PermTimeRead, PermTimeApprove,
		PermAnalyticsRead, PermAnalyticsExport,
	},
	RoleAgent: {
		PermLeadsCreate, PermLeadsRead, PermLeadsUpdate,
		PermTimeCreate, PermTimeRead, PermTimeUpdate,
	},
	RoleViewer: {
		PermLeadsRead,
		PermTimeRead,
		PermAnalyticsRead,
	},
}

// Permissions returns a copy of the full catalog.
func Permissions() []string {
	out := make([]string, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// IsValidPermission reports whether id is part of the catalog.
func IsValidPermission(id string) bool {
	_, ok := permissionSet[id]
	return ok
}

// DefaultPermissionsFor returns the bootstrap permission set of a system
// role, or ErrUnknownSystemRole for any other name.
func DefaultPermissionsFor(name string) ([]string, error) {
	perms, ok := systemRolePermissions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSystemRole, name)
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out, nil
}

// invalidPermissions returns every entry of perms that is not in the
// catalog, in input order, deduplicated.
func invalidPermissions(perms []string) []string {
	var invalid []string
	seen := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		if IsValidPermission(p) {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		invalid = append(invalid, p)
	}
	return invalid
}
