package rbac

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BootstrapActor is recorded as the creator of seeded system roles.
const BootstrapActor = "system"

// InitializeSystemRoles idempotently seeds the fixed system roles as global,
// active roles with their catalog default permissions. Each role is an
// independent existence-check-then-create, so the names are seeded in
// parallel. A concurrent seeder losing the insert race is treated as
// success, the same as finding the role already present. Returns the roles
// created by this call; a second call returns none.
func (s *RoleService) InitializeSystemRoles(ctx context.Context) ([]Role, error) {
	var (
		mu      sync.Mutex
		created []Role
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range SystemRoleNames {
		name := name
		g.Go(func() error {
			existing, err := s.roles.FindByNameAndScope(ctx, name, "")
			if err != nil {
				return err
			}
			if existing != nil {
				return nil
			}
			perms, err := DefaultPermissionsFor(name)
			if err != nil {
				return err
			}
			role, err := s.create(ctx, CreateRoleInput{
				Name:        name,
				DisplayName: name,
				Permissions: perms,
			}, RoleKindSystem, "", BootstrapActor)
			if err != nil {
				if errors.Is(err, ErrDuplicateRoleName) {
					return nil
				}
				return err
			}
			mu.Lock()
			created = append(created, role)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return created, nil
}
