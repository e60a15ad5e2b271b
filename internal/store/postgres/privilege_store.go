package postgres

import (
	"context"
	"fmt"

	"github.com/coachgrid/coachgrid/internal/identity"
	"github.com/coachgrid/coachgrid/internal/privilege"
	"github.com/coachgrid/coachgrid/internal/tenant"
	"github.com/jackc/pgx/v5"
)

// privilegeQueries implements privilege.Queries over the pool or a transaction
type privilegeQueries struct {
	q dbtx
}

func (p privilegeQueries) GetProfile(ctx context.Context, principalID string) (*identity.Profile, error) {
	return getProfile(ctx, p.q, principalID)
}

func (p privilegeQueries) SetAdminFlag(ctx context.Context, principalID string, isAdmin bool) error {
	result, err := p.q.Exec(ctx, `
		UPDATE profiles SET is_admin = $2, updated_at = now() WHERE principal_id = $1
	`, principalID, isAdmin)
	if err != nil {
		return fmt.Errorf("failed to set admin flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrProfileNotFound
	}
	return nil
}

func (p privilegeQueries) InsertProfile(ctx context.Context, profile *identity.Profile) error {
	_, err := p.q.Exec(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		profile.PrincipalID, profile.Email, profile.FullName, profile.AdminID,
		profile.IsAdmin, profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("profile references a missing principal or tenant: %w", err)
		}
		if isUniqueViolation(err) {
			return identity.ErrPrincipalAlreadyExists
		}
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

func (p privilegeQueries) CreatePrincipal(ctx context.Context, principal *identity.Principal, creds *identity.Credentials) error {
	_, err := p.q.Exec(ctx, `
		INSERT INTO principals (id, email, created_at) VALUES ($1, $2, $3)
	`, principal.ID, principal.Email, principal.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return identity.ErrPrincipalAlreadyExists
		}
		return fmt.Errorf("failed to create principal: %w", err)
	}

	_, err = p.q.Exec(ctx, `
		INSERT INTO credentials (principal_id, password_hash, updated_at) VALUES ($1, $2, $3)
	`, creds.PrincipalID, creds.PasswordHash, creds.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return nil
}

func (p privilegeQueries) GetTenantByOwner(ctx context.Context, principalID string) (*tenant.Tenant, error) {
	return getTenant(ctx, p.q, "owner_id", principalID)
}

func (p privilegeQueries) InsertTenant(ctx context.Context, t *tenant.Tenant) error {
	_, err := p.q.Exec(ctx, `
		INSERT INTO tenants (`+tenantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.OwnerID, t.Name, t.Active, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tenant: %w", err)
	}
	return nil
}

func (p privilegeQueries) SetTenantActive(ctx context.Context, tenantID string, active bool) error {
	result, err := p.q.Exec(ctx, `
		UPDATE tenants SET active = $2, updated_at = now() WHERE id = $1
	`, tenantID, active)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

var _ privilege.Store = (*PrivilegeStore)(nil)

// PrivilegeStore implements privilege.Store
type PrivilegeStore struct {
	privilegeQueries
	db *DB
}

// NewPrivilegeStore creates a new privilege store
func NewPrivilegeStore(db *DB) *PrivilegeStore {
	return &PrivilegeStore{privilegeQueries: privilegeQueries{q: db.pool}, db: db}
}

// WithTx runs fn in one transaction
func (s *PrivilegeStore) WithTx(ctx context.Context, fn func(q privilege.Queries) error) error {
	return s.db.withTx(ctx, func(tx pgx.Tx) error {
		return fn(privilegeQueries{q: tx})
	})
}
