package rbac

import (
	"context"
	"time"
)

// RoleStore defines data access methods for roles. Absent records are
// reported as a nil pointer, not an error, so the services can run
// existence checks without error-type juggling.
//
// The store is expected to enforce name uniqueness per tenant scope and to
// surface a violation as ErrDuplicateRoleName: the create path is
// check-then-insert, so two concurrent creators can both pass the check and
// the constraint decides the loser.
type RoleStore interface {
	FindByNameAndScope(ctx context.Context, name, tenantID string) (*Role, error)
	FindByID(ctx context.Context, id string) (*Role, error)
	// FindByIDs and FindByNamesAndScope return only the roles that exist;
	// missing ids/names are silently absent from the result.
	FindByIDs(ctx context.Context, ids []string) ([]Role, error)
	FindByNamesAndScope(ctx context.Context, names []string, tenantID string) ([]Role, error)
	// FindMany returns one page plus the total match count, computed
	// independently of the page bounds.
	FindMany(ctx context.Context, filter RoleFilter, sort RoleSort, offset, limit int) ([]Role, int, error)
	Insert(ctx context.Context, role Role) (Role, error)
	Update(ctx context.Context, role Role) (Role, error)
	// DeleteByID hard-deletes and reports whether a record was removed.
	// The service's count-then-delete pair is only the read phase: the
	// store re-runs the active-grant guard atomically with the removal
	// and reports ErrRoleInUse when a grant slipped in between.
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// AssignmentStore defines data access methods for user-role grants. Grants
// are never hard-deleted; revocation goes through Update.
//
// The store is expected to enforce at most one active grant per
// (user, role, tenant) triple and to surface a violation as
// ErrDuplicateAssignment.
type AssignmentStore interface {
	// FindActive returns the active grant for the triple, ignoring
	// expiry: an expired but unrevoked grant is still "active" here.
	FindActive(ctx context.Context, userID, roleID, tenantID string) (*UserRole, error)
	// FindActiveByUser filters server-side on active AND unexpired
	// relative to now.
	FindActiveByUser(ctx context.Context, userID, tenantID string, now time.Time) ([]UserRole, error)
	// CountActiveByRole counts rows with IsActive true across all scopes,
	// irrespective of expiry.
	CountActiveByRole(ctx context.Context, roleID string) (int, error)
	Insert(ctx context.Context, grant UserRole) (UserRole, error)
	Update(ctx context.Context, grant UserRole) (UserRole, error)
}
