package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/identity"
	"github.com/coachgrid/coachgrid/internal/tenant"
)

// Demo holds the identifiers created by SeedDemo
type Demo struct {
	SuperAdminID string
	Tenant1ID    string
	Admin1ID     string
	User1ID      string
	User1bID     string
	Tenant2ID    string
	Admin2ID     string
	User2ID      string
}

// SeedDemo populates two tenants with one admin and plain users each, plus
// one super admin. Tenant 1 holds the common management grants; tenant 2
// holds manage_workouts only.
func SeedDemo(ctx context.Context, s *Store) (Demo, error) {
	d := Demo{
		SuperAdminID: "00000000-0000-7000-8000-000000000001",
		Tenant1ID:    "00000000-0000-7000-8000-0000000000a1",
		Admin1ID:     "00000000-0000-7000-8000-000000000011",
		User1ID:      "00000000-0000-7000-8000-000000000012",
		User1bID:     "00000000-0000-7000-8000-000000000013",
		Tenant2ID:    "00000000-0000-7000-8000-0000000000a2",
		Admin2ID:     "00000000-0000-7000-8000-000000000021",
		User2ID:      "00000000-0000-7000-8000-000000000022",
	}
	now := time.Now()

	s.PutProfile(&identity.Profile{PrincipalID: d.SuperAdminID, Email: "root@coachgrid.test", FullName: "Platform Root", CreatedAt: now, UpdatedAt: now})
	if err := s.AddSuperAdmin(ctx, d.SuperAdminID); err != nil {
		return Demo{}, fmt.Errorf("failed to seed super admin: %w", err)
	}

	for _, t := range []struct {
		tenantID, adminID, adminEmail, name string
		users                               map[string]string
	}{
		{d.Tenant1ID, d.Admin1ID, "coach@north.test", "North Gym", map[string]string{d.User1ID: "ana@north.test", d.User1bID: "ben@north.test"}},
		{d.Tenant2ID, d.Admin2ID, "coach@south.test", "South Gym", map[string]string{d.User2ID: "cy@south.test"}},
	} {
		s.PutProfile(&identity.Profile{PrincipalID: t.adminID, Email: t.adminEmail, FullName: t.name + " Coach", IsAdmin: true, CreatedAt: now, UpdatedAt: now})
		s.PutTenant(&tenant.Tenant{ID: t.tenantID, OwnerID: t.adminID, Name: t.name, Active: true, CreatedAt: now, UpdatedAt: now})
		for userID, email := range t.users {
			tenantID := t.tenantID
			s.PutProfile(&identity.Profile{PrincipalID: userID, Email: email, AdminID: &tenantID, CreatedAt: now, UpdatedAt: now})
		}
	}

	grants := map[string][]authz.Permission{
		d.Tenant1ID: {
			authz.ManageWorkouts, authz.ManageExercises, authz.ManageCategories,
			authz.ManageProducts, authz.ManageAppointments, authz.ManageUsers,
		},
		d.Tenant2ID: {authz.ManageWorkouts},
	}
	for tenantID, perms := range grants {
		for _, p := range perms {
			if err := s.Grant(ctx, tenantID, p, d.SuperAdminID); err != nil {
				return Demo{}, fmt.Errorf("failed to seed grant %s: %w", p, err)
			}
		}
	}

	return d, nil
}
