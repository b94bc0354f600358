package rbac

import (
	"context"
	"errors"
	"time"
)

// CacheInvalidator drops cached permission sets after a grant mutation.
// Implemented by CachedResolver; optional.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID, tenantID string) error
}

// AssignmentService grants and revokes roles. Grants are soft-deleted:
// revocation closes the record in place and keeps it for history.
type AssignmentService struct {
	roles       RoleStore
	assignments AssignmentStore
	cache       CacheInvalidator
	now         func() time.Time
}

// AssignmentOption configures an AssignmentService.
type AssignmentOption func(*AssignmentService)

// WithCacheInvalidator wires a permission cache to be invalidated after
// successful assign/revoke calls.
func WithCacheInvalidator(cache CacheInvalidator) AssignmentOption {
	return func(s *AssignmentService) {
		s.cache = cache
	}
}

// NewAssignmentService constructs an AssignmentService, applying any options.
func NewAssignmentService(roles RoleStore, assignments AssignmentStore, opts ...AssignmentOption) *AssignmentService {
	s := &AssignmentService{roles: roles, assignments: assignments, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assign grants a role to a user within a tenant scope. Precondition order:
// the role must exist, the role must be active, and no active grant may
// already exist for the triple. The duplicate check does not consult expiry,
// so an expired but unrevoked grant still blocks a fresh one:
// revoke-then-reassign is the required flow.
func (s *AssignmentService) Assign(ctx context.Context, userID, roleID, tenantID, actor string, opts AssignOptions) (UserRole, error) {
	if userID == "" || roleID == "" {
		return UserRole{}, errors.New("rbac: user id and role id required")
	}

	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		return UserRole{}, err
	}
	if role == nil {
		return UserRole{}, ErrRoleNotFound
	}
	if !role.IsActive {
		return UserRole{}, ErrInactiveRoleAssignment
	}

	existing, err := s.assignments.FindActive(ctx, userID, roleID, tenantID)
	if err != nil {
		return UserRole{}, err
	}
	if existing != nil {
		return UserRole{}, ErrDuplicateAssignment
	}

	grant := UserRole{
		UserID:     userID,
		RoleID:     roleID,
		TenantID:   tenantID,
		IsActive:   true,
		AssignedAt: s.now(),
		AssignedBy: actor,
		ExpiresAt:  opts.ExpiresAt,
		Reason:     opts.Reason,
		Metadata:   opts.Metadata,
	}
	stored, err := s.assignments.Insert(ctx, grant)
	if err != nil {
		return UserRole{}, err
	}
	s.invalidate(ctx, userID, tenantID)
	return stored, nil
}

// Revoke soft-closes the active grant for the triple: IsActive goes false and
// the revocation fields are stamped. The record is retained.
func (s *AssignmentService) Revoke(ctx context.Context, userID, roleID, tenantID, actor, reason string) error {
	grant, err := s.assignments.FindActive(ctx, userID, roleID, tenantID)
	if err != nil {
		return err
	}
	if grant == nil {
		return ErrAssignmentNotFound
	}

	now := s.now()
	grant.IsActive = false
	grant.RevokedAt = &now
	grant.RevokedBy = actor
	grant.Reason = reason
	if _, err := s.assignments.Update(ctx, *grant); err != nil {
		return err
	}
	s.invalidate(ctx, userID, tenantID)
	return nil
}

// UserRoles returns the role records behind the user's active, unexpired
// grants in the given scope. Ordering is store-defined.
func (s *AssignmentService) UserRoles(ctx context.Context, userID, tenantID string) ([]Role, error) {
	grants, err := s.assignments.FindActiveByUser(ctx, userID, tenantID, s.now())
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(grants))
	seen := make(map[string]struct{}, len(grants))
	for _, g := range grants {
		if _, ok := seen[g.RoleID]; ok {
			continue
		}
		seen[g.RoleID] = struct{}{}
		ids = append(ids, g.RoleID)
	}
	return s.roles.FindByIDs(ctx, ids)
}

// invalidate is best effort: grant state in the store is authoritative and a
// stale cache entry expires on its own TTL.
func (s *AssignmentService) invalidate(ctx context.Context, userID, tenantID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, userID, tenantID)
}
