package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian/internal/platform/db"
)

// PostgreSQL-backed stores. Uniqueness is enforced by the database: a unique
// index on (name, tenant_id) for roles and a partial unique index on
// (user_id, role_id, tenant_id) WHERE is_active for grants. The services run
// check-then-insert, so under concurrency both callers can pass the check and
// the index decides the loser; the 23505 translation below turns that into
// the same domain error the check would have produced.

const roleColumns = `id, name, display_name, description, kind, tenant_id, permissions, inherited_roles, is_active, metadata, created_by, updated_by, created_at, updated_at`

// RoleRepository provides PostgreSQL backed persistence for roles.
type RoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository constructs a repository.
func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

// FindByNameAndScope returns the role with the given name in the scope, or
// nil when absent.
func (r *RoleRepository) FindByNameAndScope(ctx context.Context, name, tenantID string) (*Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM rbac_roles WHERE name = $1 AND tenant_id = $2`, name, tenantID)
	return scanOptionalRole(row)
}

// FindByID returns the role with the given id, or nil when absent.
func (r *RoleRepository) FindByID(ctx context.Context, id string) (*Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM rbac_roles WHERE id = $1`, id)
	return scanOptionalRole(row)
}

// FindByIDs returns the roles that exist among ids, in one round trip.
func (r *RoleRepository) FindByIDs(ctx context.Context, ids []string) ([]Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM rbac_roles WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	return scanRoles(rows)
}

// FindByNamesAndScope returns the roles among names that exist in the scope,
// in one round trip. Missing names are simply absent from the result.
func (r *RoleRepository) FindByNamesAndScope(ctx context.Context, names []string, tenantID string) ([]Role, error) {
	if len(names) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM rbac_roles WHERE name = ANY($1) AND tenant_id = $2`, names, tenantID)
	if err != nil {
		return nil, err
	}
	return scanRoles(rows)
}

// FindMany returns one page of roles matching the filter plus the total
// match count.
func (r *RoleRepository) FindMany(ctx context.Context, filter RoleFilter, sort RoleSort, offset, limit int) ([]Role, int, error) {
	where := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR display_name ILIKE $%d OR description ILIKE $%d)", n, n, n))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rbac_roles WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageArgs := append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM rbac_roles WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		roleColumns, cond, orderBy(sort), len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	roles, err := scanRoles(rows)
	if err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

// Insert persists a new role under a fresh id. A (name, tenant_id) collision
// surfaces as ErrDuplicateRoleName.
func (r *RoleRepository) Insert(ctx context.Context, role Role) (Role, error) {
	role.ID = uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rbac_roles (id, name, display_name, description, kind, tenant_id, permissions, inherited_roles, is_active, metadata, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		role.ID, role.Name, role.DisplayName, role.Description, string(role.Kind), role.TenantID,
		role.Permissions, role.InheritedRoles, role.IsActive, metadataOrEmpty(role.Metadata),
		role.CreatedBy, role.UpdatedBy, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		return Role{}, translateRoleConflict(err)
	}
	return role, nil
}

// Update rewrites the mutable columns of an existing role.
func (r *RoleRepository) Update(ctx context.Context, role Role) (Role, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE rbac_roles
		SET display_name = $2, description = $3, permissions = $4, inherited_roles = $5, is_active = $6, metadata = $7, updated_by = $8, updated_at = $9
		WHERE id = $1`,
		role.ID, role.DisplayName, role.Description, role.Permissions, role.InheritedRoles,
		role.IsActive, metadataOrEmpty(role.Metadata), role.UpdatedBy, role.UpdatedAt)
	if err != nil {
		return Role{}, err
	}
	if tag.RowsAffected() == 0 {
		return Role{}, ErrRoleNotFound
	}
	return role, nil
}

// DeleteByID hard-deletes a role and reports whether a row was removed. The
// active-grant guard is re-run in the same transaction as the delete, so a
// grant inserted after the service's read phase still surfaces as
// ErrRoleInUse instead of leaving a live grant pointing at a deleted role.
func (r *RoleRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var active int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM rbac_user_roles WHERE role_id = $1 AND is_active`, id).Scan(&active); err != nil {
			return err
		}
		if active > 0 {
			return ErrRoleInUse
		}
		tag, err := tx.Exec(ctx, `DELETE FROM rbac_roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

const grantColumns = `id, user_id, role_id, tenant_id, is_active, assigned_at, assigned_by, expires_at, revoked_at, revoked_by, reason, metadata`

// AssignmentRepository provides PostgreSQL backed persistence for grants.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository constructs a repository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

// FindActive returns the active grant for the triple, or nil. Expiry is not
// consulted here: an expired but unrevoked grant is still active.
func (r *AssignmentRepository) FindActive(ctx context.Context, userID, roleID, tenantID string) (*UserRole, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+grantColumns+` FROM rbac_user_roles WHERE user_id = $1 AND role_id = $2 AND tenant_id = $3 AND is_active`, userID, roleID, tenantID)
	return scanOptionalGrant(row)
}

// FindActiveByUser returns the user's active, unexpired grants in the scope.
func (r *AssignmentRepository) FindActiveByUser(ctx context.Context, userID, tenantID string, now time.Time) ([]UserRole, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+grantColumns+` FROM rbac_user_roles WHERE user_id = $1 AND tenant_id = $2 AND is_active AND (expires_at IS NULL OR expires_at > $3)`, userID, tenantID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []UserRole
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

// CountActiveByRole counts active grants referencing the role across all
// scopes, irrespective of expiry.
func (r *AssignmentRepository) CountActiveByRole(ctx context.Context, roleID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rbac_user_roles WHERE role_id = $1 AND is_active`, roleID).Scan(&count)
	return count, err
}

// Insert persists a new grant under a fresh id. A second active grant for
// the triple surfaces as ErrDuplicateAssignment.
func (r *AssignmentRepository) Insert(ctx context.Context, grant UserRole) (UserRole, error) {
	grant.ID = uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rbac_user_roles (id, user_id, role_id, tenant_id, is_active, assigned_at, assigned_by, expires_at, revoked_at, revoked_by, reason, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		grant.ID, grant.UserID, grant.RoleID, grant.TenantID, grant.IsActive,
		grant.AssignedAt, grant.AssignedBy, grant.ExpiresAt, grant.RevokedAt,
		grant.RevokedBy, grant.Reason, metadataOrEmpty(grant.Metadata))
	if err != nil {
		return UserRole{}, translateGrantConflict(err)
	}
	return grant, nil
}

// Update rewrites the revocation-relevant columns of an existing grant.
func (r *AssignmentRepository) Update(ctx context.Context, grant UserRole) (UserRole, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE rbac_user_roles
		SET is_active = $2, expires_at = $3, revoked_at = $4, revoked_by = $5, reason = $6, metadata = $7
		WHERE id = $1`,
		grant.ID, grant.IsActive, grant.ExpiresAt, grant.RevokedAt, grant.RevokedBy, grant.Reason, metadataOrEmpty(grant.Metadata))
	if err != nil {
		return UserRole{}, err
	}
	if tag.RowsAffected() == 0 {
		return UserRole{}, ErrAssignmentNotFound
	}
	return grant, nil
}

func orderBy(sort RoleSort) string {
	col := "name"
	switch sort.Field {
	case RoleSortByCreatedAt:
		col = "created_at"
	case RoleSortByUpdatedAt:
		col = "updated_at"
	}
	if sort.Desc {
		return col + " DESC"
	}
	return col + " ASC"
}

func translateRoleConflict(err error) error {
	if isUniqueViolation(err) {
		return ErrDuplicateRoleName
	}
	return err
}

func translateGrantConflict(err error) error {
	if isUniqueViolation(err) {
		return ErrDuplicateAssignment
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (Role, error) {
	var (
		role Role
		kind string
	)
	err := row.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description, &kind, &role.TenantID,
		&role.Permissions, &role.InheritedRoles, &role.IsActive, &role.Metadata,
		&role.CreatedBy, &role.UpdatedBy, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return Role{}, err
	}
	role.Kind = RoleKind(kind)
	return role, nil
}

func scanOptionalRole(row rowScanner) (*Role, error) {
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

func scanRoles(rows pgx.Rows) ([]Role, error) {
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func scanGrant(row rowScanner) (UserRole, error) {
	var grant UserRole
	err := row.Scan(&grant.ID, &grant.UserID, &grant.RoleID, &grant.TenantID, &grant.IsActive,
		&grant.AssignedAt, &grant.AssignedBy, &grant.ExpiresAt, &grant.RevokedAt,
		&grant.RevokedBy, &grant.Reason, &grant.Metadata)
	if err != nil {
		return UserRole{}, err
	}
	return grant, nil
}

func scanOptionalGrant(row rowScanner) (*UserRole, error) {
	grant, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &grant, nil
}
