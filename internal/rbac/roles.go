package rbac

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/meridian-crm/meridian/internal/shared"
)

var validate = validator.New()

// RoleService owns role lifecycle: creation, mutation, search and deletion,
// together with the invariants guarding them.
type RoleService struct {
	roles       RoleStore
	assignments AssignmentStore
	now         func() time.Time
}

// NewRoleService constructs a RoleService backed by the provided stores.
func NewRoleService(roles RoleStore, assignments AssignmentStore) *RoleService {
	return &RoleService{roles: roles, assignments: assignments, now: time.Now}
}

// Create validates and persists a new custom role in the given tenant scope.
// Validation order: name uniqueness in scope, permission validity against the
// catalog, inherited-role resolution against the same scope.
func (s *RoleService) Create(ctx context.Context, input CreateRoleInput, tenantID, actor string) (Role, error) {
	return s.create(ctx, input, RoleKindCustom, tenantID, actor)
}

// create is shared with bootstrap, which is the only caller allowed to mint
// system roles.
func (s *RoleService) create(ctx context.Context, input CreateRoleInput, kind RoleKind, tenantID, actor string) (Role, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validate.Struct(input); err != nil {
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}

	existing, err := s.roles.FindByNameAndScope(ctx, input.Name, tenantID)
	if err != nil {
		return Role{}, err
	}
	if existing != nil {
		return Role{}, ErrDuplicateRoleName
	}

	perms := normalizeSet(input.Permissions)
	if invalid := invalidPermissions(perms); len(invalid) > 0 {
		return Role{}, &InvalidPermissionError{Permissions: invalid}
	}

	inherited := normalizeSet(input.InheritedRoles)
	if err := s.checkInheritedRoles(ctx, inherited, tenantID); err != nil {
		return Role{}, err
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	now := s.now()
	role := Role{
		Name:           input.Name,
		DisplayName:    input.DisplayName,
		Description:    input.Description,
		Kind:           kind,
		TenantID:       tenantID,
		Permissions:    perms,
		InheritedRoles: inherited,
		IsActive:       active,
		Metadata:       input.Metadata,
		CreatedBy:      actor,
		UpdatedBy:      actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return s.roles.Insert(ctx, role)
}

// Update merges the patch into an existing role. System roles are rejected
// outright. Patched permissions and inherited roles go through the same
// validation as Create, inherited roles against the stored role's own scope.
func (s *RoleService) Update(ctx context.Context, roleID string, patch UpdateRolePatch, actor string) (Role, error) {
	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	if role == nil {
		return Role{}, ErrRoleNotFound
	}
	if role.Kind == RoleKindSystem {
		return Role{}, ErrSystemRoleImmutable
	}

	if patch.Permissions != nil {
		perms := normalizeSet(patch.Permissions)
		if invalid := invalidPermissions(perms); len(invalid) > 0 {
			return Role{}, &InvalidPermissionError{Permissions: invalid}
		}
		role.Permissions = perms
	}
	if patch.InheritedRoles != nil {
		inherited := normalizeSet(patch.InheritedRoles)
		if err := s.checkInheritedRoles(ctx, inherited, role.TenantID); err != nil {
			return Role{}, err
		}
		role.InheritedRoles = inherited
	}
	if patch.DisplayName != nil {
		role.DisplayName = *patch.DisplayName
	}
	if patch.Description != nil {
		role.Description = *patch.Description
	}
	if patch.IsActive != nil {
		role.IsActive = *patch.IsActive
	}
	if patch.Metadata != nil {
		role.Metadata = patch.Metadata
	}
	role.UpdatedBy = actor
	role.UpdatedAt = s.now()

	return s.roles.Update(ctx, *role)
}

// GetByID fetches a role by id.
func (s *RoleService) GetByID(ctx context.Context, roleID string) (Role, error) {
	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	if role == nil {
		return Role{}, ErrRoleNotFound
	}
	return *role, nil
}

// SearchOptions bounds and orders a role search.
type SearchOptions struct {
	Page    int
	PerPage int
	Sort    RoleSort
}

// Search returns one page of roles matching the filter plus pagination
// metadata whose total is computed independently of the page bounds.
func (s *RoleService) Search(ctx context.Context, filter RoleFilter, opts SearchOptions) ([]Role, shared.Pagination, error) {
	bounds := shared.NewPagination(opts.Page, opts.PerPage, 0)
	roles, total, err := s.roles.FindMany(ctx, filter, opts.Sort, bounds.Offset(), bounds.PerPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return roles, shared.NewPagination(opts.Page, opts.PerPage, total), nil
}

// Delete hard-deletes a custom role. The role must have zero active grants;
// the check counts IsActive rows irrespective of expiry, so an expired but
// unrevoked grant still blocks deletion. Revocation and deletion are separate
// operations.
func (s *RoleService) Delete(ctx context.Context, roleID, actor string) error {
	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		return err
	}
	if role == nil {
		return ErrRoleNotFound
	}
	if role.Kind == RoleKindSystem {
		return ErrSystemRoleImmutable
	}

	active, err := s.assignments.CountActiveByRole(ctx, roleID)
	if err != nil {
		return err
	}
	if active > 0 {
		return ErrRoleInUse
	}

	deleted, err := s.roles.DeleteByID(ctx, roleID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrRoleNotFound
	}
	return nil
}

// checkInheritedRoles requires every name to resolve to an existing, active
// role in the given scope.
func (s *RoleService) checkInheritedRoles(ctx context.Context, names []string, tenantID string) error {
	for _, name := range names {
		parent, err := s.roles.FindByNameAndScope(ctx, name, tenantID)
		if err != nil {
			return err
		}
		if parent == nil || !parent.IsActive {
			return &UnknownInheritedRoleError{Name: name}
		}
	}
	return nil
}

// normalizeSet trims entries, drops empties, collapses duplicates and sorts
// for deterministic storage.
func normalizeSet(values []string) []string {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
