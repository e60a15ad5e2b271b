package memory

import (
	"context"
	"time"

	"github.com/coachgrid/coachgrid/internal/identity"
	"github.com/coachgrid/coachgrid/internal/privilege"
	"github.com/coachgrid/coachgrid/internal/tenant"
)

type privilegeQueries struct {
	st *state
}

func (q privilegeQueries) GetProfile(ctx context.Context, principalID string) (*identity.Profile, error) {
	return getProfile(q.st, principalID)
}

func (q privilegeQueries) SetAdminFlag(ctx context.Context, principalID string, isAdmin bool) error {
	p, ok := q.st.profiles[principalID]
	if !ok {
		return identity.ErrProfileNotFound
	}
	p.IsAdmin = isAdmin
	p.UpdatedAt = time.Now()
	return nil
}

func (q privilegeQueries) InsertProfile(ctx context.Context, p *identity.Profile) error {
	if _, ok := q.st.principals[p.PrincipalID]; !ok {
		return identity.ErrPrincipalNotFound
	}
	if p.AdminID != nil {
		if _, ok := q.st.tenants[*p.AdminID]; !ok {
			return tenant.ErrTenantNotFound
		}
	}
	q.st.profiles[p.PrincipalID] = cloneProfile(p)
	return nil
}

func (q privilegeQueries) CreatePrincipal(ctx context.Context, p *identity.Principal, c *identity.Credentials) error {
	for _, existing := range q.st.principals {
		if existing.Email == p.Email {
			return identity.ErrPrincipalAlreadyExists
		}
	}
	principal := *p
	creds := *c
	q.st.principals[p.ID] = &principal
	q.st.credentials[p.ID] = &creds
	return nil
}

func (q privilegeQueries) GetTenantByOwner(ctx context.Context, principalID string) (*tenant.Tenant, error) {
	return tenantByOwner(q.st, principalID)
}

func (q privilegeQueries) InsertTenant(ctx context.Context, t *tenant.Tenant) error {
	v := *t
	q.st.tenants[t.ID] = &v
	return nil
}

func (q privilegeQueries) SetTenantActive(ctx context.Context, tenantID string, active bool) error {
	t, ok := q.st.tenants[tenantID]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	t.Active = active
	t.UpdatedAt = time.Now()
	return nil
}

// privilegeStore implements privilege.Store
type privilegeStore struct {
	s *Store
}

// Privilege returns the privilege.Store view of the store
func (s *Store) Privilege() privilege.Store {
	return privilegeStore{s: s}
}

func (ps privilegeStore) WithTx(ctx context.Context, fn func(q privilege.Queries) error) error {
	return ps.s.tx(privilegeScope, func(st *state) error {
		return fn(privilegeQueries{st: st})
	})
}

func (ps privilegeStore) GetProfile(ctx context.Context, principalID string) (*identity.Profile, error) {
	return ps.s.GetProfile(ctx, principalID)
}

func (ps privilegeStore) SetAdminFlag(ctx context.Context, principalID string, isAdmin bool) error {
	return ps.WithTx(ctx, func(q privilege.Queries) error { return q.SetAdminFlag(ctx, principalID, isAdmin) })
}

func (ps privilegeStore) InsertProfile(ctx context.Context, p *identity.Profile) error {
	return ps.WithTx(ctx, func(q privilege.Queries) error { return q.InsertProfile(ctx, p) })
}

func (ps privilegeStore) CreatePrincipal(ctx context.Context, p *identity.Principal, c *identity.Credentials) error {
	return ps.WithTx(ctx, func(q privilege.Queries) error { return q.CreatePrincipal(ctx, p, c) })
}

func (ps privilegeStore) GetTenantByOwner(ctx context.Context, principalID string) (*tenant.Tenant, error) {
	return ps.s.Tenants().GetByOwner(ctx, principalID)
}

func (ps privilegeStore) InsertTenant(ctx context.Context, t *tenant.Tenant) error {
	return ps.WithTx(ctx, func(q privilege.Queries) error { return q.InsertTenant(ctx, t) })
}

func (ps privilegeStore) SetTenantActive(ctx context.Context, tenantID string, active bool) error {
	return ps.WithTx(ctx, func(q privilege.Queries) error { return q.SetTenantActive(ctx, tenantID, active) })
}

// Credentials returns the stored credentials of a principal. It exists for tests.
func (s *Store) Credentials(principalID string) (*identity.Credentials, bool) {
	var out *identity.Credentials
	_ = s.read(func(st *state) error {
		if c, ok := st.credentials[principalID]; ok {
			v := *c
			out = &v
		}
		return nil
	})
	return out, out != nil
}
