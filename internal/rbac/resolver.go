package rbac

import (
	"context"
	"slices"
	"time"
)

// Resolver computes effective permission sets. Every call reflects the
// current store state: the core path has no caching (see CachedResolver for
// the optional memoized front).
type Resolver struct {
	roles       RoleStore
	assignments AssignmentStore
	now         func() time.Time
}

// NewResolver returns a Resolver reading role and grant state from the
// given stores.
func NewResolver(roles RoleStore, assignments AssignmentStore) *Resolver {
	return &Resolver{roles: roles, assignments: assignments, now: time.Now}
}

// UserPermissions returns the user's effective permission set in the given
// tenant scope: the union of each active, unexpired grant's role permissions
// with the permissions of the roles it inherits by name.
//
// Inheritance expands exactly one level. If an inherited role lists further
// inherited roles of its own, those are not followed. An inherited name that
// does not resolve, or resolves to an inactive role, is silently skipped:
// resolution stays total even when a role was deleted out from under a
// reference. The result is sorted and carries no role attribution.
func (r *Resolver) UserPermissions(ctx context.Context, userID, tenantID string) ([]string, error) {
	grants, err := r.assignments.FindActiveByUser(ctx, userID, tenantID, r.now())
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return []string{}, nil
	}

	roleIDs := make([]string, 0, len(grants))
	seen := make(map[string]struct{}, len(grants))
	for _, g := range grants {
		if _, ok := seen[g.RoleID]; ok {
			continue
		}
		seen[g.RoleID] = struct{}{}
		roleIDs = append(roleIDs, g.RoleID)
	}
	roles, err := r.roles.FindByIDs(ctx, roleIDs)
	if err != nil {
		return nil, err
	}

	result := make(map[string]struct{})
	parentNames := make(map[string]struct{})
	for _, role := range roles {
		for _, p := range role.Permissions {
			result[p] = struct{}{}
		}
		for _, name := range role.InheritedRoles {
			parentNames[name] = struct{}{}
		}
	}

	if len(parentNames) > 0 {
		names := make([]string, 0, len(parentNames))
		for name := range parentNames {
			names = append(names, name)
		}
		// Single expansion point: a deeper inheritance policy would
		// loop here with a visited set keyed by role id.
		parents, err := r.roles.FindByNamesAndScope(ctx, names, tenantID)
		if err != nil {
			return nil, err
		}
		for _, parent := range parents {
			if !parent.IsActive {
				continue
			}
			for _, p := range parent.Permissions {
				result[p] = struct{}{}
			}
		}
	}

	perms := make([]string, 0, len(result))
	for p := range result {
		perms = append(perms, p)
	}
	slices.Sort(perms)
	return perms, nil
}

// HasPermission reports whether the permission is in the user's effective set.
func (r *Resolver) HasPermission(ctx context.Context, userID, permission, tenantID string) (bool, error) {
	perms, err := r.UserPermissions(ctx, userID, tenantID)
	if err != nil {
		return false, err
	}
	return slices.Contains(perms, permission), nil
}

// HasAnyPermission reports whether the user holds at least one of the given
// permissions.
func (r *Resolver) HasAnyPermission(ctx context.Context, userID string, permissions []string, tenantID string) (bool, error) {
	perms, err := r.UserPermissions(ctx, userID, tenantID)
	if err != nil {
		return false, err
	}
	for _, p := range permissions {
		if slices.Contains(perms, p) {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions reports whether the user holds every one of the given
// permissions.
func (r *Resolver) HasAllPermissions(ctx context.Context, userID string, permissions []string, tenantID string) (bool, error) {
	perms, err := r.UserPermissions(ctx, userID, tenantID)
	if err != nil {
		return false, err
	}
	for _, p := range permissions {
		if !slices.Contains(perms, p) {
			return false, nil
		}
	}
	return true, nil
}
