package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/identity"
	"github.com/coachgrid/coachgrid/internal/tenant"
)

// IsSuperAdmin implements authz.SuperAdminRepository
func (s *Store) IsSuperAdmin(ctx context.Context, principalID string) (bool, error) {
	var ok bool
	err := s.read(func(st *state) error {
		_, ok = st.superAdmins[principalID]
		return nil
	})
	return ok, err
}

// AddSuperAdmin implements authz.SuperAdminRepository
func (s *Store) AddSuperAdmin(ctx context.Context, principalID string) error {
	return s.write(func(st *state) error {
		if _, ok := st.superAdmins[principalID]; !ok {
			st.superAdmins[principalID] = time.Now()
		}
		return nil
	})
}

// CountSuperAdmins implements authz.SuperAdminRepository
func (s *Store) CountSuperAdmins(ctx context.Context) (int, error) {
	var n int
	err := s.read(func(st *state) error {
		n = len(st.superAdmins)
		return nil
	})
	return n, err
}

// HasGrant implements authz.GrantRepository
func (s *Store) HasGrant(ctx context.Context, tenantID string, permission authz.Permission) (bool, error) {
	var ok bool
	err := s.read(func(st *state) error {
		_, ok = st.grants[tenantID][permission]
		return nil
	})
	return ok, err
}

// ListGrants implements authz.GrantRepository
func (s *Store) ListGrants(ctx context.Context, tenantID string) ([]authz.Permission, error) {
	var perms []authz.Permission
	err := s.read(func(st *state) error {
		for p := range st.grants[tenantID] {
			perms = append(perms, p)
		}
		return nil
	})
	slices.Sort(perms)
	return perms, err
}

// Grant implements authz.GrantRepository
func (s *Store) Grant(ctx context.Context, tenantID string, permission authz.Permission, grantedBy string) error {
	return s.write(func(st *state) error {
		set, ok := st.grants[tenantID]
		if !ok {
			set = make(map[authz.Permission]grant)
			st.grants[tenantID] = set
		}
		if _, exists := set[permission]; !exists {
			set[permission] = grant{grantedBy: grantedBy, grantedAt: time.Now()}
		}
		return nil
	})
}

// Revoke implements authz.GrantRepository
func (s *Store) Revoke(ctx context.Context, tenantID string, permission authz.Permission) error {
	return s.write(func(st *state) error {
		delete(st.grants[tenantID], permission)
		return nil
	})
}

// GetProfile implements identity.ProfileRepository
func (s *Store) GetProfile(ctx context.Context, principalID string) (*identity.Profile, error) {
	var p *identity.Profile
	err := s.read(func(st *state) (err error) {
		p, err = getProfile(st, principalID)
		return err
	})
	return p, err
}

// GetProfileByEmail implements identity.ProfileRepository
func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*identity.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var p *identity.Profile
	err := s.read(func(st *state) error {
		for _, candidate := range st.profiles {
			if candidate.Email == email {
				p = cloneProfile(candidate)
				return nil
			}
		}
		return identity.ErrProfileNotFound
	})
	return p, err
}

// ListProfilesByTenant implements identity.ProfileRepository
func (s *Store) ListProfilesByTenant(ctx context.Context, tenantID string) ([]*identity.Profile, error) {
	var out []*identity.Profile
	err := s.read(func(st *state) error {
		for _, p := range st.profiles {
			if p.TenantID() == tenantID {
				out = append(out, cloneProfile(p))
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *identity.Profile) int { return strings.Compare(a.Email, b.Email) })
	return out, err
}

type tenantRepo struct {
	s *Store
}

// Tenants returns the tenant.Repository view of the store
func (s *Store) Tenants() tenant.Repository {
	return tenantRepo{s: s}
}

// GetByID implements tenant.Repository
func (r tenantRepo) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	var t *tenant.Tenant
	err := r.s.read(func(st *state) error {
		found, ok := st.tenants[id]
		if !ok {
			return tenant.ErrTenantNotFound
		}
		v := *found
		t = &v
		return nil
	})
	return t, err
}

// GetByOwner implements tenant.Repository
func (r tenantRepo) GetByOwner(ctx context.Context, principalID string) (*tenant.Tenant, error) {
	var t *tenant.Tenant
	err := r.s.read(func(st *state) (err error) {
		t, err = tenantByOwner(st, principalID)
		return err
	})
	return t, err
}

// List implements tenant.Repository
func (r tenantRepo) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	var all []*tenant.Tenant
	err := r.s.read(func(st *state) error {
		for _, t := range st.tenants {
			v := *t
			all = append(all, &v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(all, func(a, b *tenant.Tenant) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if offset >= len(all) {
		return []*tenant.Tenant{}, nil
	}
	return all[offset:min(len(all), offset+limit)], nil
}

// PutProfile inserts or replaces a profile and its principal. It is meant for
// seeding development data and tests.
func (s *Store) PutProfile(p *identity.Profile) {
	_ = s.write(func(st *state) error {
		st.principals[p.PrincipalID] = &identity.Principal{ID: p.PrincipalID, Email: p.Email, CreatedAt: p.CreatedAt}
		st.profiles[p.PrincipalID] = cloneProfile(p)
		return nil
	})
}

// PutTenant inserts or replaces a tenant. It is meant for seeding.
func (s *Store) PutTenant(t *tenant.Tenant) {
	_ = s.write(func(st *state) error {
		v := *t
		st.tenants[t.ID] = &v
		return nil
	})
}

func getProfile(st *state, principalID string) (*identity.Profile, error) {
	p, ok := st.profiles[principalID]
	if !ok {
		return nil, identity.ErrProfileNotFound
	}
	return cloneProfile(p), nil
}

func tenantByOwner(st *state, principalID string) (*tenant.Tenant, error) {
	for _, t := range st.tenants {
		if t.OwnerID == principalID {
			v := *t
			return &v, nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}
