package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newResolverFixture(t *testing.T) (*RoleService, *AssignmentService, *Resolver, *memoryAssignmentStore) {
	t.Helper()
	roles, assignments := newMemoryStores()
	return NewRoleService(roles, assignments),
		NewAssignmentService(roles, assignments),
		NewResolver(roles, assignments),
		assignments
}

func TestUserPermissionsDirect(t *testing.T) {
	roleSvc, assignSvc, resolver, _ := newResolverFixture(t)
	ctx := context.Background()

	role, err := roleSvc.Create(ctx, CreateRoleInput{
		Name:        "agent",
		Permissions: []string{PermLeadsRead, PermLeadsUpdate},
	}, "tenant-1", "admin")
	require.NoError(t, err)
	_, err = assignSvc.Assign(ctx, "u1", role.ID, "tenant-1", "admin", AssignOptions{})
	require.NoError(t, err)

	perms, err := resolver.UserPermissions(ctx, "u1", "tenant-1")
	require.NoError(t, err)
	require.Equal(t, []string{PermLeadsRead, PermLeadsUpdate}, perms)
}

func TestUserPermissionsNoGrants(t *testing.T) {
	_, _, resolver, _ := newResolverFixture(t)
	perms, err := resolver.UserPermissions(context.Background(), "nobody", "")
	require.NoError(t, err)
	require.Empty(t, perms)
}

func TestUserPermissionsUnionAcrossRoles(t *testing.T) {
	roleSvc, assignSvc, resolver, _ := newResolverFixture(t)
	ctx := context.Background()

	a, err := roleSvc.Create(ctx, CreateRoleInput{Name: "a", Permissions: []string{PermLeadsRead, PermTimeRead}}, "", "admin")
	require.NoError(t, err)
	b, err := roleSvc.Create(ctx, CreateRoleInput{Name: "b", Permissions: []string{PermTimeRead, PermAnalyticsRead}}, "", "admin")
	require.NoError(t, err)
	_, err = assignSvc.Assign(ctx, "u1", a.ID, "", "admin", AssignOptions{})
	require.NoError(t, err)
	_, err = assignSvc.Assign(ctx, "u1", b.ID, "", "admin", AssignOptions{})
	require.NoError(t, err)

	perms, err := resolver.UserPermissions(ctx, "u1", "")
	require.NoError(t, err)
	require.Equal(t, []string{PermAnalyticsRead, PermLeadsRead, PermTimeRead}, perms, "deduplicated union")
}

func TestUserPermissionsOneLevelInheritance(t *testing.T) {
	// BASE <- MID <- TOP. A holder of TOP gets TOP's and MID's direct
	// permissions, but not BASE's: inheritance expands exactly one level.
	roleSvc, assignSvc, resolver, _ := newResolverFixture(t)
	ctx := context.Background()

	_, err := roleSvc.Create(ctx, CreateRoleInput{Name: "BASE", Permissions: []string{PermLeadsRead}}, "", "admin")
	require.NoError(t, err)
	_, err = roleSvc.Create(ctx, CreateRoleInput{Name: "MID", Permissions: []string{PermLeadsUpdate}, InheritedRoles: []string{"BASE"}}, "", "admin")
	require.NoError(t, err)
	top, err := roleSvc.Create(ctx, CreateRoleInput{Name: "TOP", Permissions: []string{PermLeadsExport}, InheritedRoles: []string{"MID"}}, "", "admin")
	require.NoError(t, err)

	_, err = assignSvc.Assign(ctx, "u1", top.ID, "", "admin", AssignOptions{})
	require.NoError(t, err)

	perms, err := resolver.UserPermissions(ctx, "u1", "")
	require.NoError(t, err)
	require.Equal(t, []string{PermLeadsExport, PermLeadsUpdate}, perms)
	require.NotContains(t, perms, PermLeadsRead)
}

func TestUserPermissionsInheritedRoleGoneInactive(t *testing.T) {
	roleSvc, assignSvc, resolver, _ := newResolverFixture(t)
	ctx := context.Background()

	parent, err := roleSvc.Create(ctx, CreateRoleInput{Name: "parent", Permissions: []string{PermAnalyticsRead}}, "", "admin")
	require.NoError(t, err)
	child, err := roleSvc.Create(ctx, CreateRoleInput{Name: "child", Permissions: []string{PermLeadsRead}, InheritedRoles: []string{"parent"}}, "", "admin")
	require.NoError(t, err)
	_, err = assignSvc.Assign(ctx, "u1", child.ID, "", "admin", AssignOptions{})
	require.NoError(t, err)

	perms, err := resolver.UserPermissions(ctx, "u1", "")
	require.NoError(t, err)
	require.Contains(t, perms, PermAnalyticsRead)

	// Deactivating the parent silently prunes the inheritance link.
	_, err = roleSvc.Update(ctx, parent.ID, UpdateRolePatch{IsActive: ptr(false)}, "admin")
	require.NoError(t, err)

	perms, err = resolver.UserPermissions(ctx, "u1", "")
	require.NoError(t, err)
	require.Equal(t, []string{PermLeadsRead}, perms)
}

func TestUserPermissionsDanglingInheritedRoleSkipped(t *testing.T) {
	// A role deleted out from under an inheritance reference must not
	// break resolution: the dangling name is skipped, not raised.
	roleSvc, assignSvc, resolver, _ := newResolverFixture(t)
	ctx := context.Background()

	parent, err := roleSvc.Create(ctx, CreateRoleInput{Name: "parent", Permissions: []string{PermAnalyticsRead}}, "", "admin")
	require.NoError(t, err)
	child, err := roleSvc.Create(ctx, CreateRoleInput{Name: "child", Permissions: []string{PermLeadsRead}, InheritedRoles: []string{"parent"}}, "", "admin")
	require.NoError(t, err)
	_, err = assignSvc.Assign(ctx, "u1", child.ID, "", "admin", AssignOptions{})
	require.NoError(t, err)

	require.NoError(t, roleSvc.Delete(ctx, parent.ID, "admin"))

	perms, err := resolver.UserPermissions(ctx, "u1", "")
	require.NoError(t, err)
	require.Equal(t, []string{PermLeadsRead}, perms)
}

func TestUserPermissionsInheritanceScopedToTenant(t *testing.T) {
	// The inherited name resolves in the holding role's tenant scope; a
	// same-named role in another scope must not leak in.
	roleSvc, assignSvc, resolver, _ := newResolverFixture(t)
	ctx := context.Background()

	_, err := roleSvc.Create(ctx, CreateRoleInput{Name: "parent", Permissions: []string{PermTenantsDelete}}, "", "admin")
	require.NoError(t, err)
	_, err = roleSvc.Create(ctx, CreateRoleInput{Name: "parent", Permissions: []string{PermAnalyticsRead}}, "tenant-1", "admin")
	require.NoError(t, err)
	child, err := roleSvc.Create(ctx, CreateRoleInput{Name: "child", InheritedRoles: []string{"parent"}}, "tenant-1", "admin")
	require.NoError(t, err)
	_, err = assignSvc.Assign(ctx, "u1", child.ID, "tenant-1", "admin", AssignOptions{})
	require.NoError(t, err)

	perms, err := resolver.UserPermissions(ctx, "u1", "tenant-1")
	require.NoError(t, err)
	require.Equal(t, []string{PermAnalyticsRead}, perms)
}

func TestUserPermissionsExpiredGrant(t *testing.T) {
	roleSvc, _, resolver, assignments := newResolverFixture(t)
	ctx := context.Background()

	role, err := roleSvc.Create(ctx, CreateRoleInput{Name: "agent", Permissions: []string{PermLeadsRead}}, "", "admin")
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	grant, err := assignments.Insert(ctx, UserRole{
		UserID: "u1", RoleID: role.ID, IsActive: true, ExpiresAt: &past,
	})
	require.NoError(t, err)
	require.True(t, grant.IsActive, "expiry does not flip the stored flag")

	perms, err := resolver.UserPermissions(ctx, "u1", "")
	require.NoError(t, err)
	require.Empty(t, perms)
}

func TestHasPermission(t *testing.T) {
	roleSvc, assignSvc, resolver, _ := newResolverFixture(t)
	ctx := context.Background()

	role, err := roleSvc.Create(ctx, CreateRoleInput{Name: "agent", Permissions: []string{PermLeadsRead, PermTimeRead}}, "", "admin")
	require.NoError(t, err)
	_, err = assignSvc.Assign(ctx, "u1", role.ID, "", "admin", AssignOptions{})
	require.NoError(t, err)

	ok, err := resolver.HasPermission(ctx, "u1", PermLeadsRead, "")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = resolver.HasPermission(ctx, "u1", PermLeadsDelete, "")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = resolver.HasAnyPermission(ctx, "u1", []string{PermLeadsDelete, PermTimeRead}, "")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = resolver.HasAllPermissions(ctx, "u1", []string{PermLeadsRead, PermTimeRead}, "")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = resolver.HasAllPermissions(ctx, "u1", []string{PermLeadsRead, PermLeadsDelete}, "")
	require.NoError(t, err)
	require.False(t, ok)
}
