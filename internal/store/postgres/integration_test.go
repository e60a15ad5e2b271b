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

//go:build integration
// +build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/catalog"
	"github.com/coachgrid/coachgrid/internal/identity"
	"github.com/coachgrid/coachgrid/internal/privilege"
	"github.com/coachgrid/coachgrid/internal/schedule"
	"github.com/coachgrid/coachgrid/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type fixture struct {
	ctx     context.Context
	db      *DB
	guard   *authz.Guard
	engine  *schedule.Engine
	catalog *catalog.Catalog
	superID string
	tenant1 string
	admin1  string
	user1   string
	user1b  string
	tenant2 string
	admin2  string
	user2   string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("coachgrid"),
		postgrescontainer.WithUsername("coachgrid"),
		postgrescontainer.WithPassword("coachgrid"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("Skipping integration test: failed to start postgres: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx, InitialSchema))

	f := &fixture{ctx: ctx, db: db}
	store := NewPrivilegeStore(db)
	now := time.Now().UTC()

	newPrincipal := func(email string) string {
		p := &identity.Principal{ID: email, Email: email, CreatedAt: now}
		require.NoError(t, store.CreatePrincipal(ctx, p, &identity.Credentials{PrincipalID: p.ID, PasswordHash: "x", UpdatedAt: now}))
		return p.ID
	}
	newTenant := func(owner, name string) string {
		id := "tenant-" + name
		require.NoError(t, store.InsertTenant(ctx, &tenant.Tenant{ID: id, OwnerID: owner, Name: name, Active: true, CreatedAt: now, UpdatedAt: now}))
		require.NoError(t, store.InsertProfile(ctx, &identity.Profile{PrincipalID: owner, Email: owner, IsAdmin: true, CreatedAt: now, UpdatedAt: now}))
		return id
	}
	newUser := func(email, tenantID string) string {
		id := newPrincipal(email)
		require.NoError(t, store.InsertProfile(ctx, &identity.Profile{PrincipalID: id, Email: email, AdminID: &tenantID, CreatedAt: now, UpdatedAt: now}))
		return id
	}

	f.superID = newPrincipal("root@coachgrid.test")
	require.NoError(t, store.InsertProfile(ctx, &identity.Profile{PrincipalID: f.superID, Email: f.superID, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, NewSuperAdminRepository(db).AddSuperAdmin(ctx, f.superID))

	f.admin1 = newPrincipal("coach@north.test")
	f.tenant1 = newTenant(f.admin1, "north")
	f.user1 = newUser("ana@north.test", f.tenant1)
	f.user1b = newUser("ben@north.test", f.tenant1)
	f.admin2 = newPrincipal("coach@south.test")
	f.tenant2 = newTenant(f.admin2, "south")
	f.user2 = newUser("cy@south.test", f.tenant2)

	grants := NewGrantRepository(db)
	for _, p := range []authz.Permission{authz.ManageWorkouts, authz.ManageCategories, authz.ManageExercises} {
		require.NoError(t, grants.Grant(ctx, f.tenant1, p, f.superID))
	}
	require.NoError(t, grants.Grant(ctx, f.tenant2, authz.ManageWorkouts, f.superID))

	profiles := NewProfileRepository(db)
	f.guard = authz.NewGuard(authz.NewResolver(NewSuperAdminRepository(db), profiles, NewTenantRepository(db)), grants, nil)
	f.engine = schedule.NewEngine(NewScheduleStore(db), Workouts(db), schedule.ReferencesFrom(CatalogBackends(db)), profiles, nil, nil)
	f.catalog = catalog.New(CatalogBackends(db))
	return f
}

func (f *fixture) decide(t *testing.T, principal string, perm authz.Permission) authz.Decision {
	t.Helper()
	d, err := f.guard.Authorize(f.ctx, principal, perm, nil)
	require.NoError(t, err)
	require.NoError(t, d.Err())
	return d
}

func day(d schedule.Day) *schedule.Day { return &d }

// TestPurpose: Validates tenant isolation and owner filtering against PostgreSQL.
// Scope: Database Integration Test
// Security: Multi-tenant Data Separation (CWE-284)
// Expected: Another tenant's admin and users get NotFound; exclusive workouts are hidden from other users of the same tenant.
// Test Case ID: PG-01
func TestPostgres_TenantIsolation(t *testing.T) {
	f := setup(t)
	admin := f.decide(t, f.admin1, authz.ManageWorkouts)

	w, err := f.engine.Workouts().Create(f.ctx, admin, &schedule.Workout{Title: "North only"})
	require.NoError(t, err)

	_, err = f.engine.Workouts().Get(f.ctx, f.decide(t, f.admin2, authz.ManageWorkouts), w.ID)
	assert.ErrorIs(t, err, schedule.ErrNotFound)
	_, err = f.engine.Workouts().Get(f.ctx, f.decide(t, f.user2, authz.ViewOwnWorkouts), w.ID)
	assert.ErrorIs(t, err, schedule.ErrNotFound)

	_, err = f.engine.AssignWorkoutToUser(f.ctx, admin, w.ID, f.user1)
	require.NoError(t, err)

	_, err = f.engine.Workouts().Get(f.ctx, f.decide(t, f.user1, authz.ViewOwnWorkouts), w.ID)
	assert.NoError(t, err)
	_, err = f.engine.Workouts().Get(f.ctx, f.decide(t, f.user1b, authz.ViewOwnWorkouts), w.ID)
	assert.ErrorIs(t, err, schedule.ErrNotFound)

	recs, err := f.engine.Recommended(f.ctx, f.decide(t, f.user1, authz.ViewOwnWorkouts))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, w.ID, recs[0].ID)
}

// TestPurpose: Validates reorder and clone against the deferred position constraint.
// Scope: Database Integration Test
// Expected: Reorder commits a permutation; clone copies rows with fresh ids and leaves the source untouched.
// Test Case ID: PG-02
func TestPostgres_ReorderAndClone(t *testing.T) {
	f := setup(t)
	admin := f.decide(t, f.admin1, authz.ManageWorkouts)

	w, err := f.engine.Workouts().Create(f.ctx, admin, &schedule.Workout{Title: "Legs"})
	require.NoError(t, err)

	var ids []string
	for _, note := range []string{"Squat", "Lunge", "Bridge"} {
		e, err := f.engine.AddExercise(f.ctx, admin, w.ID, &schedule.WorkoutExercise{DayOfWeek: day(schedule.Monday), Notes: note})
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	_, err = f.engine.AddExercise(f.ctx, admin, w.ID, &schedule.WorkoutExercise{DayOfWeek: day(schedule.Monday), OrderPosition: 2})
	assert.ErrorIs(t, err, schedule.ErrConflictingOrder)

	require.NoError(t, f.engine.Reorder(f.ctx, admin, ids[2], 1))
	rows, err := f.engine.ListByDay(f.ctx, admin, w.ID, day(schedule.Monday))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Bridge", "Squat", "Lunge"}, []string{rows[0].Notes, rows[1].Notes, rows[2].Notes})
	assert.Equal(t, []int{1, 2, 3}, []int{rows[0].OrderPosition, rows[1].OrderPosition, rows[2].OrderPosition})

	report, err := f.engine.CloneDay(f.ctx, admin, w.ID, schedule.Monday, []schedule.Day{schedule.Wednesday, schedule.Friday})
	require.NoError(t, err)
	assert.Equal(t, map[schedule.Day]int{schedule.Wednesday: 3, schedule.Friday: 3}, report.Counts())

	wed, err := f.engine.ListByDay(f.ctx, admin, w.ID, day(schedule.Wednesday))
	require.NoError(t, err)
	require.Len(t, wed, 3)
	for i := range wed {
		assert.NotEqual(t, rows[i].ID, wed[i].ID)
		assert.Equal(t, rows[i].Notes, wed[i].Notes)
		assert.Equal(t, rows[i].OrderPosition, wed[i].OrderPosition)
	}

	days, err := f.engine.Days(f.ctx, admin, w.ID)
	require.NoError(t, err)
	assert.Equal(t, []schedule.Day{schedule.Monday, schedule.Wednesday, schedule.Friday}, days)
}

// TestPurpose: Validates ON DELETE SET NULL for category references.
// Scope: Database Integration Test
// Expected: Deleting a category keeps dependent exercises with a null category_id.
// Test Case ID: PG-03
func TestPostgres_CategoryDeleteNullsReferences(t *testing.T) {
	f := setup(t)
	cats := f.decide(t, f.admin1, authz.ManageCategories)
	exs := f.decide(t, f.admin1, authz.ManageExercises)

	c, err := f.catalog.Categories.Create(f.ctx, cats, &catalog.Category{Name: "Strength"})
	require.NoError(t, err)
	e, err := f.catalog.Exercises.Create(f.ctx, exs, &catalog.Exercise{Name: "Squat", CategoryID: &c.ID})
	require.NoError(t, err)

	require.NoError(t, f.catalog.Categories.Delete(f.ctx, cats, c.ID))

	got, err := f.catalog.Exercises.Get(f.ctx, exs, e.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)
}

// TestPurpose: Validates privilege administration transactions against PostgreSQL.
// Scope: Database Integration Test
// Security: Privilege Management (CWE-269)
// Expected: Promotion creates a tenant, demotion disables it, and duplicate emails are rejected.
// Test Case ID: PG-04
func TestPostgres_PrivilegeAdministration(t *testing.T) {
	f := setup(t)
	profiles := NewProfileRepository(f.db)
	svc := privilege.NewService(f.guard, NewPrivilegeStore(f.db), NewGrantRepository(f.db), NewTenantRepository(f.db),
		NewSuperAdminRepository(f.db), profiles, identity.NewProvisioner(identity.NewPasswordHasher(1024, 1, 1, 16, 32)), nil)

	created, err := svc.Promote(f.ctx, f.superID, f.user2, "Cy Coaching")
	require.NoError(t, err)
	role, err := f.guard.ResolveRole(f.ctx, f.user2)
	require.NoError(t, err)
	assert.Equal(t, authz.KindAdmin, role.Kind)
	assert.Equal(t, created.ID, role.TenantID)

	require.NoError(t, svc.Demote(f.ctx, f.superID, f.user2))
	_, err = f.guard.ResolveRole(f.ctx, f.user2)
	assert.True(t, errors.Is(err, authz.ErrNotFound))

	_, err = svc.CreateTenantUser(f.ctx, f.superID, privilege.NewUser{Email: "ana@north.test", Password: "long-password", TenantID: f.tenant1})
	assert.ErrorIs(t, err, identity.ErrPrincipalAlreadyExists)

	p, err := svc.CreateTenantUser(f.ctx, f.superID, privilege.NewUser{Email: "dora@north.test", Password: "long-password", TenantID: f.tenant1})
	require.NoError(t, err)
	assert.Equal(t, f.tenant1, p.TenantID())
}
