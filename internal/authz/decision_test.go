package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/coachgrid/coachgrid/internal/identity"
	"github.com/coachgrid/coachgrid/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates how each filter scope admits rows by tenant and owner.
// Scope: Unit Test
// Security: Row-level Isolation (CWE-639)
// Expected: Unrestricted admits all; tenant admits its admin_id; self admits owned rows and, when allowed, unowned rows.
// Test Case ID: AZ-08
func TestFilter_Permits(t *testing.T) {
	me, other := "u1", "u2"
	unrestricted := Filter{scope: scopeUnrestricted}
	tenantOnly := Filter{scope: scopeTenant, tenantID: "t1"}
	self := Filter{scope: scopeSelf, tenantID: "t1", userID: me}

	assert.True(t, unrestricted.Permits("t2", &other, false))

	assert.True(t, tenantOnly.Permits("t1", &other, false))
	assert.False(t, tenantOnly.Permits("t2", nil, true))

	assert.True(t, self.Permits("t1", &me, false))
	assert.False(t, self.Permits("t1", &other, true))
	assert.True(t, self.Permits("t1", nil, true))
	assert.False(t, self.Permits("t1", nil, false))
	assert.False(t, self.Permits("t2", &me, true))

	assert.False(t, Filter{}.Permits("t1", nil, true))
	assert.Equal(t, "admin_id=t1 AND user_id=u1", self.String())
}

// TestPurpose: Validates that the permission enumeration is closed and classified.
// Scope: Unit Test
// Expected: Grantable keys parse and are grantable; self and platform keys are valid but not grantable; unknown strings fail.
// Test Case ID: AZ-09
func TestPermission_Classes(t *testing.T) {
	assert.Len(t, GrantablePermissions, 12)
	for _, p := range GrantablePermissions {
		parsed, err := ParsePermission(string(p))
		require.NoError(t, err)
		assert.True(t, parsed.Grantable())
	}

	assert.True(t, ViewOwnWorkouts.SelfAccess())
	assert.False(t, ViewOwnWorkouts.Grantable())
	assert.True(t, ManagePermissions.Valid())
	assert.False(t, ManagePermissions.Grantable())

	_, err := ParsePermission("manage_everything")
	assert.ErrorIs(t, err, ErrInvalidPermission)
}

type mockSuperAdmins struct {
	mock.Mock
}

func (m *mockSuperAdmins) IsSuperAdmin(ctx context.Context, principalID string) (bool, error) {
	args := m.Called(ctx, principalID)
	return args.Bool(0), args.Error(1)
}

func (m *mockSuperAdmins) AddSuperAdmin(ctx context.Context, principalID string) error {
	return m.Called(ctx, principalID).Error(0)
}

func (m *mockSuperAdmins) CountSuperAdmins(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockProfiles struct {
	mock.Mock
}

func (m *mockProfiles) GetProfile(ctx context.Context, principalID string) (*identity.Profile, error) {
	args := m.Called(ctx, principalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Profile), args.Error(1)
}

func (m *mockProfiles) GetProfileByEmail(ctx context.Context, email string) (*identity.Profile, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Profile), args.Error(1)
}

func (m *mockProfiles) ListProfilesByTenant(ctx context.Context, tenantID string) ([]*identity.Profile, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]*identity.Profile), args.Error(1)
}

type mockTenants struct {
	mock.Mock
}

func (m *mockTenants) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Tenant), args.Error(1)
}

func (m *mockTenants) GetByOwner(ctx context.Context, principalID string) (*tenant.Tenant, error) {
	args := m.Called(ctx, principalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Tenant), args.Error(1)
}

func (m *mockTenants) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*tenant.Tenant), args.Error(1)
}

// TestPurpose: Validates that store failures surface as errors rather than as denials or grants.
// Scope: Unit Test
// Security: Fail Closed (CWE-636)
// Expected: Authorize returns an error wrapping the store failure and a denied zero Decision.
// Test Case ID: AZ-10
func TestGuard_StoreFailurePropagates(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")

	supers := new(mockSuperAdmins)
	supers.On("IsSuperAdmin", ctx, "p1").Return(false, boom)

	guard := NewGuard(NewResolver(supers, new(mockProfiles), new(mockTenants)), nil, nil)
	d, err := guard.Authorize(ctx, "p1", ManageWorkouts, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	_, ok := d.Allowed()
	assert.False(t, ok)
	supers.AssertExpectations(t)
}

// TestPurpose: Validates that an admin whose tenant row is missing resolves NotFound.
// Scope: Unit Test
// Expected: Resolve wraps ErrNotFound when the reverse lookup principal->tenant fails.
// Test Case ID: AZ-11
func TestResolver_AdminWithoutTenant(t *testing.T) {
	ctx := context.Background()

	supers := new(mockSuperAdmins)
	supers.On("IsSuperAdmin", ctx, "a1").Return(false, nil)
	profiles := new(mockProfiles)
	profiles.On("GetProfile", ctx, "a1").Return(&identity.Profile{PrincipalID: "a1", IsAdmin: true}, nil)
	tenants := new(mockTenants)
	tenants.On("GetByOwner", ctx, "a1").Return(nil, tenant.ErrTenantNotFound)

	_, err := NewResolver(supers, profiles, tenants).Resolve(ctx, "a1")
	assert.ErrorIs(t, err, ErrNotFound)
	tenants.AssertExpectations(t)
}
