package rbac

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// In-memory stores for the service tests. They enforce the same uniqueness
// contracts the SQL stores get from their indexes, so the conflict paths are
// exercisable without a database.

type memoryRoleStore struct {
	mu    sync.Mutex
	roles map[string]Role
	// assignments backs the delete guard, mirroring the SQL store's
	// in-transaction re-check.
	assignments *memoryAssignmentStore
}

func newMemoryStores() (*memoryRoleStore, *memoryAssignmentStore) {
	assignments := newMemoryAssignmentStore()
	return &memoryRoleStore{roles: make(map[string]Role), assignments: assignments}, assignments
}

func (s *memoryRoleStore) FindByNameAndScope(ctx context.Context, name, tenantID string) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range s.roles {
		if role.Name == name && role.TenantID == tenantID {
			r := role
			return &r, nil
		}
	}
	return nil, nil
}

func (s *memoryRoleStore) FindByID(ctx context.Context, id string) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role, ok := s.roles[id]; ok {
		r := role
		return &r, nil
	}
	return nil, nil
}

func (s *memoryRoleStore) FindByIDs(ctx context.Context, ids []string) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Role
	for _, id := range ids {
		if role, ok := s.roles[id]; ok {
			out = append(out, role)
		}
	}
	return out, nil
}

func (s *memoryRoleStore) FindByNamesAndScope(ctx context.Context, names []string, tenantID string) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Role
	for _, name := range names {
		for _, role := range s.roles {
			if role.Name == name && role.TenantID == tenantID {
				out = append(out, role)
				break
			}
		}
	}
	return out, nil
}

func (s *memoryRoleStore) FindMany(ctx context.Context, filter RoleFilter, sortKey RoleSort, offset, limit int) ([]Role, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []Role
	for _, role := range s.roles {
		if role.TenantID != filter.TenantID {
			continue
		}
		if filter.Kind != "" && role.Kind != filter.Kind {
			continue
		}
		if filter.IsActive != nil && role.IsActive != *filter.IsActive {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			hay := strings.ToLower(role.Name + " " + role.DisplayName + " " + role.Description)
			if !strings.Contains(hay, needle) {
				continue
			}
		}
		matched = append(matched, role)
	}
	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch sortKey.Field {
		case RoleSortByCreatedAt:
			less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
		case RoleSortByUpdatedAt:
			less = matched[i].UpdatedAt.Before(matched[j].UpdatedAt)
		default:
			less = matched[i].Name < matched[j].Name
		}
		if sortKey.Desc {
			return !less
		}
		return less
	})
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *memoryRoleStore) Insert(ctx context.Context, role Role) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.Name == role.Name && existing.TenantID == role.TenantID {
			return Role{}, ErrDuplicateRoleName
		}
	}
	role.ID = uuid.NewString()
	s.roles[role.ID] = role
	return role, nil
}

func (s *memoryRoleStore) Update(ctx context.Context, role Role) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role.ID]; !ok {
		return Role{}, ErrRoleNotFound
	}
	s.roles[role.ID] = role
	return role, nil
}

func (s *memoryRoleStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return false, nil
	}
	if s.assignments != nil {
		active, err := s.assignments.CountActiveByRole(ctx, id)
		if err != nil {
			return false, err
		}
		if active > 0 {
			return false, ErrRoleInUse
		}
	}
	delete(s.roles, id)
	return true, nil
}

type memoryAssignmentStore struct {
	mu     sync.Mutex
	grants map[string]UserRole
}

func newMemoryAssignmentStore() *memoryAssignmentStore {
	return &memoryAssignmentStore{grants: make(map[string]UserRole)}
}

func (s *memoryAssignmentStore) FindActive(ctx context.Context, userID, roleID, tenantID string) (*UserRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, grant := range s.grants {
		if grant.UserID == userID && grant.RoleID == roleID && grant.TenantID == tenantID && grant.IsActive {
			g := grant
			return &g, nil
		}
	}
	return nil, nil
}

func (s *memoryAssignmentStore) FindActiveByUser(ctx context.Context, userID, tenantID string, now time.Time) ([]UserRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []UserRole
	for _, grant := range s.grants {
		if grant.UserID != userID || grant.TenantID != tenantID || !grant.IsActive {
			continue
		}
		if grant.ExpiresAt != nil && !grant.ExpiresAt.After(now) {
			continue
		}
		out = append(out, grant)
	}
	return out, nil
}

func (s *memoryAssignmentStore) CountActiveByRole(ctx context.Context, roleID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, grant := range s.grants {
		if grant.RoleID == roleID && grant.IsActive {
			count++
		}
	}
	return count, nil
}

func (s *memoryAssignmentStore) Insert(ctx context.Context, grant UserRole) (UserRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if grant.IsActive {
		for _, existing := range s.grants {
			if existing.UserID == grant.UserID && existing.RoleID == grant.RoleID && existing.TenantID == grant.TenantID && existing.IsActive {
				return UserRole{}, ErrDuplicateAssignment
			}
		}
	}
	grant.ID = uuid.NewString()
	s.grants[grant.ID] = grant
	return grant, nil
}

func (s *memoryAssignmentStore) Update(ctx context.Context, grant UserRole) (UserRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[grant.ID]; !ok {
		return UserRole{}, ErrAssignmentNotFound
	}
	s.grants[grant.ID] = grant
	return grant, nil
}

func (s *memoryAssignmentStore) get(id string) (UserRole, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[id]
	return grant, ok
}
