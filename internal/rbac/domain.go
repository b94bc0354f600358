package rbac

import "time"

// RoleKind distinguishes bootstrap-managed roles from user-defined ones.
type RoleKind string

const (
	// RoleKindSystem marks roles seeded at bootstrap. They are immutable
	// and cannot be deleted.
	RoleKindSystem RoleKind = "system"
	// RoleKindCustom marks roles created through the role service.
	RoleKindCustom RoleKind = "custom"
)

// Role is a named, reusable bundle of permissions, optionally scoped to a
// tenant and optionally inheriting other roles by name.
type Role struct {
	ID          string
	Name        string
	DisplayName string
	Description string
	Kind        RoleKind
	// TenantID scopes the role to a single tenant. Empty means global:
	// the role is visible to every tenant.
	TenantID    string
	Permissions []string
	// InheritedRoles holds role names, not ids. They are resolved against
	// the same tenant scope as this role at read time, so a role going
	// inactive silently prunes the link.
	InheritedRoles []string
	IsActive       bool
	Metadata       map[string]any
	CreatedBy      string
	UpdatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserRole is a time-bounded grant of a role to a user within an optional
// tenant scope. Grants are soft-deleted: revocation flips IsActive and stamps
// the revocation fields, the row is kept for history.
type UserRole struct {
	ID         string
	UserID     string
	RoleID     string
	TenantID   string
	IsActive   bool
	AssignedAt time.Time
	AssignedBy string
	ExpiresAt  *time.Time
	RevokedAt  *time.Time
	RevokedBy  string
	Reason     string
	Metadata   map[string]any
}

// GrantState is the derived lifecycle state of a grant. Expired is computed
// from ExpiresAt, never stored: an expired grant keeps IsActive true until
// somebody revokes it.
type GrantState string

const (
	GrantStateActive  GrantState = "active"
	GrantStateRevoked GrantState = "revoked"
	GrantStateExpired GrantState = "expired"
)

// State reports the grant's lifecycle state at the given instant.
func (g UserRole) State(now time.Time) GrantState {
	if !g.IsActive {
		return GrantStateRevoked
	}
	if g.ExpiresAt != nil && !g.ExpiresAt.After(now) {
		return GrantStateExpired
	}
	return GrantStateActive
}

// CreateRoleInput carries the caller-supplied fields for a new role.
type CreateRoleInput struct {
	Name           string `validate:"required"`
	DisplayName    string
	Description    string
	Permissions    []string
	InheritedRoles []string
	IsActive       *bool
	Metadata       map[string]any
}

// UpdateRolePatch carries partial updates for an existing role. Nil fields
// are left untouched. Name and Kind are deliberately absent: neither can be
// changed after creation.
type UpdateRolePatch struct {
	DisplayName    *string
	Description    *string
	Permissions    []string
	InheritedRoles []string
	IsActive       *bool
	Metadata       map[string]any
}

// AssignOptions carries the optional fields of a new grant.
type AssignOptions struct {
	ExpiresAt *time.Time
	Reason    string
	Metadata  map[string]any
}

// RoleFilter selects roles for a search. Zero values mean "any".
type RoleFilter struct {
	// TenantID narrows the search to a tenant's own roles; empty selects
	// global roles.
	TenantID string
	// Search matches name, display name and description,
	// case-insensitively.
	Search   string
	Kind     RoleKind
	IsActive *bool
}

// RoleSortField names a sortable column for role searches.
type RoleSortField string

const (
	RoleSortByName      RoleSortField = "name"
	RoleSortByCreatedAt RoleSortField = "created_at"
	RoleSortByUpdatedAt RoleSortField = "updated_at"
)

// RoleSort describes the single sort key of a role search.
type RoleSort struct {
	Field RoleSortField
	Desc  bool
}
