package rbac

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRoleNotFound indicates that a role id or name does not resolve.
	ErrRoleNotFound = errors.New("rbac: role not found")
	// ErrDuplicateRoleName indicates a name collision within a tenant scope.
	ErrDuplicateRoleName = errors.New("rbac: role name already exists in scope")
	// ErrSystemRoleImmutable indicates an update or delete attempt on a system role.
	ErrSystemRoleImmutable = errors.New("rbac: system roles cannot be modified or deleted")
	// ErrRoleInUse indicates a delete attempt while active grants still reference the role.
	ErrRoleInUse = errors.New("rbac: role is referenced by active assignments")
	// ErrInactiveRoleAssignment indicates a grant attempt against an inactive role.
	ErrInactiveRoleAssignment = errors.New("rbac: role is inactive and cannot be assigned")
	// ErrDuplicateAssignment indicates an active grant already exists for the
	// (user, role, tenant) triple.
	ErrDuplicateAssignment = errors.New("rbac: user already has an active assignment for this role")
	// ErrAssignmentNotFound indicates a revoke attempt with no matching active grant.
	ErrAssignmentNotFound = errors.New("rbac: no active assignment found")
	// ErrUnknownSystemRole indicates a system role name outside the fixed list.
	ErrUnknownSystemRole = errors.New("rbac: unknown system role")
)

// InvalidPermissionError reports every permission id that is not part of the
// catalog, not just the first one encountered.
type InvalidPermissionError struct {
	Permissions []string
}

func (e *InvalidPermissionError) Error() string {
	return fmt.Sprintf("rbac: invalid permissions: %s", strings.Join(e.Permissions, ", "))
}

// UnknownInheritedRoleError reports an inherited-role name that does not
// resolve to an existing, active role in the owning role's tenant scope.
type UnknownInheritedRoleError struct {
	Name string
}

func (e *UnknownInheritedRoleError) Error() string {
	return fmt.Sprintf("rbac: inherited role %q does not resolve to an active role in scope", e.Name)
}
