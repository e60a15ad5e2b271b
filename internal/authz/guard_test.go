package authz_test

import (
	"context"
	"testing"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T) (*authz.Guard, *memory.Store, memory.Demo) {
	t.Helper()
	store := memory.New()
	demo, err := memory.SeedDemo(context.Background(), store)
	require.NoError(t, err)
	resolver := authz.NewResolver(store, store, store.Tenants())
	return authz.NewGuard(resolver, store, nil), store, demo
}

func ptr(s string) *string { return &s }

// TestPurpose: Validates role precedence in the resolver: super-admin set, then admin flag, then tenant user.
// Scope: Unit Test
// Security: Privilege Resolution (CWE-269)
// Expected: Each seeded principal resolves to its kind and tenant; unknown principals are NotFound.
// Test Case ID: AZ-01
func TestResolver_Resolve(t *testing.T) {
	guard, _, demo := newGuard(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		principal string
		kind      authz.Kind
		tenant    string
	}{
		{"super admin", demo.SuperAdminID, authz.KindSuperAdmin, ""},
		{"admin", demo.Admin1ID, authz.KindAdmin, demo.Tenant1ID},
		{"user", demo.User1ID, authz.KindUser, demo.Tenant1ID},
		{"other tenant user", demo.User2ID, authz.KindUser, demo.Tenant2ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, err := guard.ResolveRole(ctx, tt.principal)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, role.Kind)
			assert.Equal(t, tt.tenant, role.TenantID)
		})
	}

	_, err := guard.ResolveRole(ctx, "no-such-principal")
	assert.ErrorIs(t, err, authz.ErrNotFound)
}

// TestPurpose: Validates that super admins are allowed every permission against every tenant.
// Scope: Unit Test
// Security: Super-admin bypass centralization
// Expected: Allowed with an unrestricted filter for all permissions and resource tenants.
// Test Case ID: AZ-02
func TestGuard_SuperAdminBypass(t *testing.T) {
	guard, _, demo := newGuard(t)
	ctx := context.Background()

	perms := append([]authz.Permission{authz.ManagePermissions, authz.ManageTenants, authz.ViewOwnProfile}, authz.GrantablePermissions...)
	for _, perm := range perms {
		for _, tenantID := range []*string{nil, ptr(demo.Tenant1ID), ptr(demo.Tenant2ID), ptr("unknown")} {
			d, err := guard.Authorize(ctx, demo.SuperAdminID, perm, tenantID)
			require.NoError(t, err)
			f, ok := d.Allowed()
			require.True(t, ok, "permission %s", perm)
			assert.True(t, f.Unrestricted())
			assert.NoError(t, d.Err())
		}
	}
}

// TestPurpose: Validates admin decisions: grants are required, the filter is the admin's tenant, and cross-tenant targets are denied.
// Scope: Unit Test
// Security: Tenant Isolation (CWE-639)
// Expected: Granted permissions allow with admin_id filter; missing grants deny PermissionDenied; other tenants deny CrossTenantAccess.
// Test Case ID: AZ-03
func TestGuard_AdminDecisions(t *testing.T) {
	guard, _, demo := newGuard(t)
	ctx := context.Background()

	d, err := guard.Authorize(ctx, demo.Admin1ID, authz.ManageWorkouts, nil)
	require.NoError(t, err)
	f, ok := d.Allowed()
	require.True(t, ok)
	assert.False(t, f.Unrestricted())
	assert.Equal(t, demo.Tenant1ID, f.TenantID())

	d, err = guard.Authorize(ctx, demo.Admin1ID, authz.ManageWorkouts, ptr(demo.Tenant1ID))
	require.NoError(t, err)
	assert.NoError(t, d.Err())

	d, err = guard.Authorize(ctx, demo.Admin1ID, authz.ManageWorkouts, ptr(demo.Tenant2ID))
	require.NoError(t, err)
	_, ok = d.Allowed()
	assert.False(t, ok)
	assert.ErrorIs(t, d.Err(), authz.ErrCrossTenantAccess)

	d, err = guard.Authorize(ctx, demo.Admin2ID, authz.ManageProducts, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Err(), authz.ErrPermissionDenied)

	d, err = guard.Authorize(ctx, demo.Admin1ID, authz.ManagePermissions, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Err(), authz.ErrPermissionDenied)

	d, err = guard.Authorize(ctx, demo.Admin2ID, authz.ViewOwnProfile, nil)
	require.NoError(t, err)
	f, ok = d.Allowed()
	require.True(t, ok)
	assert.Equal(t, demo.Tenant2ID, f.TenantID())
	assert.False(t, f.SelfScoped())
}

// TestPurpose: Validates that plain users only receive self-access decisions narrowed to themselves.
// Scope: Unit Test
// Security: Least Privilege (CWE-272)
// Expected: Management keys deny PermissionDenied; self keys allow with admin_id AND user_id filter.
// Test Case ID: AZ-04
func TestGuard_UserDecisions(t *testing.T) {
	guard, store, demo := newGuard(t)
	ctx := context.Background()

	// Grants belong to the tenant's admin account, never to its users.
	require.NoError(t, store.Grant(ctx, demo.Tenant1ID, authz.ManageWorkouts, demo.SuperAdminID))

	d, err := guard.Authorize(ctx, demo.User1ID, authz.ManageWorkouts, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Err(), authz.ErrPermissionDenied)

	d, err = guard.Authorize(ctx, demo.User1ID, authz.ViewOwnAppointments, nil)
	require.NoError(t, err)
	f, ok := d.Allowed()
	require.True(t, ok)
	assert.True(t, f.SelfScoped())
	assert.Equal(t, demo.Tenant1ID, f.TenantID())
	assert.Equal(t, demo.User1ID, f.UserID())

	d, err = guard.Authorize(ctx, demo.User1ID, authz.ViewOwnWorkouts, ptr(demo.Tenant2ID))
	require.NoError(t, err)
	assert.ErrorIs(t, d.Err(), authz.ErrCrossTenantAccess)
}

// TestPurpose: Validates default-deny for unknown principals and permission keys outside the enumeration.
// Scope: Unit Test
// Security: Default Deny (CWE-276)
// Expected: Unknown principal denies NotFound; unknown permission denies PermissionDenied even for super admins.
// Test Case ID: AZ-05
func TestGuard_DefaultDeny(t *testing.T) {
	guard, _, demo := newGuard(t)
	ctx := context.Background()

	d, err := guard.Authorize(ctx, "ghost", authz.ManageWorkouts, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Err(), authz.ErrNotFound)

	d, err = guard.Authorize(ctx, demo.SuperAdminID, authz.Permission("drop_tables"), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Err(), authz.ErrPermissionDenied)

	var zero authz.Decision
	_, ok := zero.Allowed()
	assert.False(t, ok)
	assert.ErrorIs(t, zero.Err(), authz.ErrPermissionDenied)
}

// TestPurpose: Validates that a revoked grant takes effect on the very next decision.
// Scope: Unit Test
// Security: Stale Authorization (CWE-613)
// Expected: Allowed before revoke, PermissionDenied immediately after.
// Test Case ID: AZ-06
func TestGuard_RevocationIsImmediate(t *testing.T) {
	guard, store, demo := newGuard(t)
	ctx := context.Background()

	d, err := guard.Authorize(ctx, demo.Admin1ID, authz.ManageExercises, nil)
	require.NoError(t, err)
	assert.NoError(t, d.Err())

	require.NoError(t, store.Revoke(ctx, demo.Tenant1ID, authz.ManageExercises))

	d, err = guard.Authorize(ctx, demo.Admin1ID, authz.ManageExercises, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Err(), authz.ErrPermissionDenied)
}

// TestPurpose: Validates that a demoted admin falls back to its profile scope.
// Scope: Unit Test
// Security: Privilege Revocation (CWE-269)
// Expected: An admin without admin_id resolves NotFound once the admin flag is cleared.
// Test Case ID: AZ-07
func TestGuard_DemotedAdminLosesTenant(t *testing.T) {
	guard, store, demo := newGuard(t)
	ctx := context.Background()

	p, err := store.GetProfile(ctx, demo.Admin1ID)
	require.NoError(t, err)
	p.IsAdmin = false
	store.PutProfile(p)

	d, err := guard.Authorize(ctx, demo.Admin1ID, authz.ManageWorkouts, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Err(), authz.ErrNotFound)
}
