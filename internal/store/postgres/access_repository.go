// Copyright 2026 The Coachgrid Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/identity"
	"github.com/coachgrid/coachgrid/internal/tenant"
	"github.com/jackc/pgx/v5"
)

var (
	_ authz.SuperAdminRepository = (*SuperAdminRepository)(nil)
	_ authz.GrantRepository      = (*GrantRepository)(nil)
	_ identity.ProfileRepository = (*ProfileRepository)(nil)
	_ tenant.Repository          = (*TenantRepository)(nil)
)

// SuperAdminRepository implements authz.SuperAdminRepository
type SuperAdminRepository struct {
	db *DB
}

// NewSuperAdminRepository creates a new super admin repository
func NewSuperAdminRepository(db *DB) *SuperAdminRepository {
	return &SuperAdminRepository{db: db}
}

// IsSuperAdmin reports membership in the super-admin set
func (r *SuperAdminRepository) IsSuperAdmin(ctx context.Context, principalID string) (bool, error) {
	var exists bool
	err := r.db.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM super_admins WHERE principal_id = $1)
	`, principalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check super admin: %w", err)
	}
	return exists, nil
}

// AddSuperAdmin inserts a member; existing members are left as they are
func (r *SuperAdminRepository) AddSuperAdmin(ctx context.Context, principalID string) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO super_admins (principal_id, created_at)
		VALUES ($1, $2)
		ON CONFLICT (principal_id) DO NOTHING
	`, principalID, time.Now())
	if err != nil {
		if isForeignKeyViolation(err) {
			return identity.ErrPrincipalNotFound
		}
		return fmt.Errorf("failed to add super admin: %w", err)
	}
	return nil
}

// CountSuperAdmins returns the size of the set
func (r *SuperAdminRepository) CountSuperAdmins(ctx context.Context) (int, error) {
	var n int
	if err := r.db.pool.QueryRow(ctx, `SELECT count(*) FROM super_admins`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count super admins: %w", err)
	}
	return n, nil
}

// GrantRepository implements authz.GrantRepository
type GrantRepository struct {
	db *DB
}

// NewGrantRepository creates a new grant repository
func NewGrantRepository(db *DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// HasGrant reads the permission table directly; decisions are never cached
func (r *GrantRepository) HasGrant(ctx context.Context, tenantID string, permission authz.Permission) (bool, error) {
	var exists bool
	err := r.db.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM permission_grants WHERE tenant_id = $1 AND permission = $2
		)
	`, tenantID, string(permission)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check grant: %w", err)
	}
	return exists, nil
}

// ListGrants returns the tenant's grant set ordered by key
func (r *GrantRepository) ListGrants(ctx context.Context, tenantID string) ([]authz.Permission, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT permission FROM permission_grants
		WHERE tenant_id = $1
		ORDER BY permission
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var perms []authz.Permission
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		perms = append(perms, authz.Permission(p))
	}
	return perms, rows.Err()
}

// Grant inserts a grant; an existing grant is left untouched
func (r *GrantRepository) Grant(ctx context.Context, tenantID string, permission authz.Permission, grantedBy string) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO permission_grants (tenant_id, permission, granted_by, granted_at)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (tenant_id, permission) DO NOTHING
	`, tenantID, string(permission), grantedBy, time.Now())
	if err != nil {
		if isForeignKeyViolation(err) {
			return tenant.ErrTenantNotFound
		}
		return fmt.Errorf("failed to grant permission: %w", err)
	}
	return nil
}

// Revoke deletes a grant; revoking a missing grant is not an error
func (r *GrantRepository) Revoke(ctx context.Context, tenantID string, permission authz.Permission) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM permission_grants WHERE tenant_id = $1 AND permission = $2
	`, tenantID, string(permission))
	if err != nil {
		return fmt.Errorf("failed to revoke permission: %w", err)
	}
	return nil
}

// ProfileRepository implements identity.ProfileRepository
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `principal_id, email, full_name, admin_id, is_admin, created_at, updated_at`

func scanProfile(row scanner) (*identity.Profile, error) {
	var p identity.Profile
	if err := row.Scan(&p.PrincipalID, &p.Email, &p.FullName, &p.AdminID, &p.IsAdmin, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func getProfile(ctx context.Context, q dbtx, principalID string) (*identity.Profile, error) {
	p, err := scanProfile(q.QueryRow(ctx, `
		SELECT `+profileColumns+` FROM profiles WHERE principal_id = $1
	`, principalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// GetProfile retrieves the profile of a principal
func (r *ProfileRepository) GetProfile(ctx context.Context, principalID string) (*identity.Profile, error) {
	return getProfile(ctx, r.db.pool, principalID)
}

// GetProfileByEmail retrieves a profile by case-insensitive email
func (r *ProfileRepository) GetProfileByEmail(ctx context.Context, email string) (*identity.Profile, error) {
	p, err := scanProfile(r.db.pool.QueryRow(ctx, `
		SELECT `+profileColumns+` FROM profiles WHERE lower(email) = $1
	`, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile by email: %w", err)
	}
	return p, nil
}

// ListProfilesByTenant retrieves every profile scoped to a tenant
func (r *ProfileRepository) ListProfilesByTenant(ctx context.Context, tenantID string) ([]*identity.Profile, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+profileColumns+` FROM profiles
		WHERE admin_id = $1
		ORDER BY created_at, principal_id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*identity.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// TenantRepository implements tenant.Repository
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = `id, owner_id, name, active, created_at, updated_at`

func scanTenant(row scanner) (*tenant.Tenant, error) {
	var t tenant.Tenant
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func getTenant(ctx context.Context, q dbtx, where string, arg string) (*tenant.Tenant, error) {
	t, err := scanTenant(q.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE `+where+` = $1`, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

// GetByID retrieves a tenant by ID
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	return getTenant(ctx, r.db.pool, "id", id)
}

// GetByOwner retrieves the tenant owned by a principal
func (r *TenantRepository) GetByOwner(ctx context.Context, principalID string) (*tenant.Tenant, error) {
	return getTenant(ctx, r.db.pool, "owner_id", principalID)
}

// List retrieves tenants with pagination
func (r *TenantRepository) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+tenantColumns+` FROM tenants
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}
