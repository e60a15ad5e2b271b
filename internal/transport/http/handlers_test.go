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

package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/catalog"
	"github.com/coachgrid/coachgrid/internal/identity"
	"github.com/coachgrid/coachgrid/internal/privilege"
	"github.com/coachgrid/coachgrid/internal/schedule"
	"github.com/coachgrid/coachgrid/internal/store/memory"
	transportHTTP "github.com/coachgrid/coachgrid/internal/transport/http"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-for-handlers")

const testIssuer = "coachgrid-test"

type apiHarness struct {
	store  *memory.Store
	demo   memory.Demo
	router http.Handler
}

func newAPIHarness(t *testing.T, rl *transportHTTP.RateLimiter) *apiHarness {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	demo, err := memory.SeedDemo(ctx, store)
	require.NoError(t, err)

	guard := authz.NewGuard(authz.NewResolver(store, store, store.Tenants()), store, nil)
	engine := schedule.NewEngine(store.Schedule(), store.Workouts(), schedule.ReferencesFrom(store.CatalogBackends()), store, nil, nil)
	provisioner := identity.NewProvisioner(identity.NewPasswordHasher(1024, 1, 1, 16, 32))
	priv := privilege.NewService(guard, store.Privilege(), store, store.Tenants(), store, store, provisioner, nil)
	h := transportHTTP.NewHandler(guard, catalog.New(store.CatalogBackends()), engine, priv)

	if rl == nil {
		rl = transportHTTP.NewRateLimiter(1000, 1000)
	}
	t.Cleanup(rl.Stop)
	auth := transportHTTP.NewAuthenticator(transportHTTP.TokenConfig{Secret: testSecret, Issuer: testIssuer})

	return &apiHarness{
		store:  store,
		demo:   demo,
		router: transportHTTP.NewRouter(h, auth, rl, transportHTTP.RouterConfig{RequestTimeout: 5 * time.Second}),
	}
}

func signToken(t *testing.T, secret []byte, subject string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    testIssuer,
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func (h *apiHarness) call(t *testing.T, principal, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, principal, time.Now().Add(time.Hour)))
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (h *apiHarness) createWorkout(t *testing.T, principal, title string) schedule.Workout {
	t.Helper()
	w := h.call(t, principal, http.MethodPost, "/api/v1/workouts", map[string]any{"title": title, "duration_minutes": 40})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[schedule.Workout](t, w)
}

func (h *apiHarness) addRow(t *testing.T, principal, workoutID, day, notes string) {
	t.Helper()
	w := h.call(t, principal, http.MethodPost, "/api/v1/workouts/"+workoutID+"/exercises",
		map[string]any{"day_of_week": day, "sets": 3, "reps": 12, "notes": notes})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

// TestPurpose: Validates that every API route requires a valid bearer token.
// Scope: Unit Test
// Security: Authentication boundary (CWE-287)
// Expected: Missing, forged and expired tokens are 401; /health stays public.
// Test Case ID: HTTP-01
func TestAPI_BearerAuthentication(t *testing.T) {
	h := newAPIHarness(t, nil)

	w := h.call(t, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.call(t, "", http.MethodGet, "/api/v1/me/role", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	for name, token := range map[string]string{
		"forged":  signToken(t, []byte("another-secret"), h.demo.Admin1ID, time.Now().Add(time.Hour)),
		"expired": signToken(t, testSecret, h.demo.Admin1ID, time.Now().Add(-time.Hour)),
		"garbage": "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me/role", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			h.router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

// TestPurpose: Validates that clients cannot select a tenant through headers.
// Scope: Unit Test
// Security: Tenant Isolation (CWE-639)
// Expected: Authenticated requests carrying X-Tenant-ID are rejected with 400.
// Test Case ID: HTTP-02
func TestAPI_RejectsTenantHeader(t *testing.T) {
	h := newAPIHarness(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workouts", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, h.demo.User1ID, time.Now().Add(time.Hour)))
	req.Header.Set("X-Tenant-ID", h.demo.Tenant2ID)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestPurpose: Validates that /me/role reports the resolved role of the caller.
// Scope: Unit Test
// Expected: Admin resolves to its tenant; super admin has no tenant; unknown principals are 404.
// Test Case ID: HTTP-03
func TestAPI_GetRole(t *testing.T) {
	h := newAPIHarness(t, nil)

	w := h.call(t, h.demo.Admin1ID, http.MethodGet, "/api/v1/me/role", nil)
	require.Equal(t, http.StatusOK, w.Code)
	role := decode[authz.Role](t, w)
	assert.Equal(t, authz.KindAdmin, role.Kind)
	assert.Equal(t, h.demo.Tenant1ID, role.TenantID)

	role = decode[authz.Role](t, h.call(t, h.demo.SuperAdminID, http.MethodGet, "/api/v1/me/role", nil))
	assert.Equal(t, authz.KindSuperAdmin, role.Kind)
	assert.Empty(t, role.TenantID)

	w = h.call(t, "01900000-0000-7000-8000-00000000dead", http.MethodGet, "/api/v1/me/role", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestPurpose: Validates tenant isolation of catalog routes.
// Scope: Unit Test
// Security: Tenant Isolation (CWE-639)
// Expected: Users read their tenant's categories only and cannot write; super admins must name a tenant on create.
// Test Case ID: HTTP-04
func TestAPI_CatalogIsolation(t *testing.T) {
	h := newAPIHarness(t, nil)

	w := h.call(t, h.demo.Admin1ID, http.MethodPost, "/api/v1/categories", map[string]any{"name": "Strength"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[catalog.Category](t, w)
	assert.Equal(t, h.demo.Tenant1ID, created.AdminID)

	listed := decode[[]catalog.Category](t, h.call(t, h.demo.User1ID, http.MethodGet, "/api/v1/categories", nil))
	require.Len(t, listed, 1)
	assert.Equal(t, "Strength", listed[0].Name)

	listed = decode[[]catalog.Category](t, h.call(t, h.demo.User2ID, http.MethodGet, "/api/v1/categories", nil))
	assert.Empty(t, listed)

	w = h.call(t, h.demo.Admin2ID, http.MethodGet, "/api/v1/categories/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.call(t, h.demo.User1ID, http.MethodPost, "/api/v1/categories", map[string]any{"name": "Mine"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.call(t, h.demo.Admin2ID, http.MethodPost, "/api/v1/categories", map[string]any{"name": "No grant"})
	assert.Equal(t, http.StatusForbidden, w.Code, "tenant 2 lacks manage_categories")

	w = h.call(t, h.demo.SuperAdminID, http.MethodPost, "/api/v1/categories", map[string]any{"name": "Nowhere"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.call(t, h.demo.SuperAdminID, http.MethodPost, "/api/v1/categories", map[string]any{"name": "South", "admin_id": h.demo.Tenant2ID})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = h.call(t, h.demo.Admin1ID, http.MethodDelete, "/api/v1/categories/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

// TestPurpose: Validates the schedule flow over HTTP: add rows, clone and list by day.
// Scope: Unit Test
// Expected: Clone answers 200 with per-day counts and the target days list the copied rows in order.
// Test Case ID: HTTP-05
func TestAPI_CloneDay(t *testing.T) {
	h := newAPIHarness(t, nil)
	wk := h.createWorkout(t, h.demo.Admin1ID, "Upper body")
	h.addRow(t, h.demo.Admin1ID, wk.ID, "Monday", "Bench")
	h.addRow(t, h.demo.Admin1ID, wk.ID, "monday", "Row")

	w := h.call(t, h.demo.Admin1ID, http.MethodPost, "/api/v1/workouts/"+wk.ID+"/clone",
		map[string]any{"source": "monday", "targets": []string{"wednesday", "friday"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[transportHTTP.CloneResponse](t, w)
	require.Len(t, report.Results, 2)
	for _, res := range report.Results {
		assert.Equal(t, 2, res.Count)
		assert.Empty(t, res.Error)
	}

	rows := decode[[]schedule.WorkoutExercise](t, h.call(t, h.demo.Admin1ID, http.MethodGet, "/api/v1/workouts/"+wk.ID+"/exercises?day=wednesday", nil))
	require.Len(t, rows, 2)
	assert.Equal(t, "Bench", rows[0].Notes)
	assert.Equal(t, "Row", rows[1].Notes)
	assert.Equal(t, []int{1, 2}, []int{rows[0].OrderPosition, rows[1].OrderPosition})

	days := decode[transportHTTP.DaysRequest](t, h.call(t, h.demo.Admin1ID, http.MethodGet, "/api/v1/workouts/"+wk.ID+"/days", nil))
	assert.Equal(t, []string{"monday", "wednesday", "friday"}, days.Days)

	w = h.call(t, h.demo.Admin2ID, http.MethodPost, "/api/v1/workouts/"+wk.ID+"/clone",
		map[string]any{"source": "monday", "targets": []string{"sunday"}})
	assert.Equal(t, http.StatusNotFound, w.Code, "foreign tenant must not see the workout")
}

// TestPurpose: Validates HTTP status mapping for schedule errors.
// Scope: Unit Test
// Expected: Empty source is 422, a duplicate position is 409, bad day tokens and positions are 400.
// Test Case ID: HTTP-06
func TestAPI_ScheduleErrorMapping(t *testing.T) {
	h := newAPIHarness(t, nil)
	wk := h.createWorkout(t, h.demo.Admin1ID, "Legs")
	h.addRow(t, h.demo.Admin1ID, wk.ID, "tuesday", "Squat")

	w := h.call(t, h.demo.Admin1ID, http.MethodPost, "/api/v1/workouts/"+wk.ID+"/clone",
		map[string]any{"source": "saturday", "targets": []string{"sunday"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = h.call(t, h.demo.Admin1ID, http.MethodPost, "/api/v1/workouts/"+wk.ID+"/clone",
		map[string]any{"source": "tuesday", "targets": []string{"someday"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.call(t, h.demo.Admin1ID, http.MethodPost, "/api/v1/workouts/"+wk.ID+"/exercises",
		map[string]any{"day_of_week": "tuesday", "order_position": 1, "notes": "Clash"})
	assert.Equal(t, http.StatusConflict, w.Code)

	rows := decode[[]schedule.WorkoutExercise](t, h.call(t, h.demo.Admin1ID, http.MethodGet, "/api/v1/workouts/"+wk.ID+"/exercises?day=tuesday", nil))
	require.Len(t, rows, 1)
	w = h.call(t, h.demo.Admin1ID, http.MethodPatch, "/api/v1/workout-exercises/"+rows[0].ID+"/position", map[string]any{"position": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.call(t, h.demo.User1ID, http.MethodPatch, "/api/v1/workout-exercises/"+rows[0].ID+"/position", map[string]any{"position": 2})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// TestPurpose: Validates that a clone failing on one day reports per-day results.
// Scope: Unit Test
// Expected: 207 Multi-Status; the successful day has its count and the failed day carries an error.
// Test Case ID: HTTP-07
func TestAPI_PartialClone(t *testing.T) {
	h := newAPIHarness(t, nil)
	wk := h.createWorkout(t, h.demo.Admin1ID, "Core")
	h.addRow(t, h.demo.Admin1ID, wk.ID, "monday", "Plank")

	h.store.InsertHook = func(e *schedule.WorkoutExercise) error {
		if e.DayOfWeek != nil && *e.DayOfWeek == schedule.Thursday {
			return errors.New("disk full")
		}
		return nil
	}
	t.Cleanup(func() { h.store.InsertHook = nil })

	w := h.call(t, h.demo.Admin1ID, http.MethodPost, "/api/v1/workouts/"+wk.ID+"/clone",
		map[string]any{"source": "monday", "targets": []string{"wednesday", "thursday"}})
	require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())

	report := decode[transportHTTP.CloneResponse](t, w)
	require.Len(t, report.Results, 2)
	assert.Equal(t, schedule.Wednesday, report.Results[0].Day)
	assert.Equal(t, 1, report.Results[0].Count)
	assert.Empty(t, report.Results[0].Error)
	assert.Equal(t, schedule.Thursday, report.Results[1].Day)
	assert.NotEmpty(t, report.Results[1].Error)
	assert.NotContains(t, report.Results[1].Error, "disk full")
}

// TestPurpose: Validates assignment exclusivity, recommendations and completion through the API.
// Scope: Unit Test
// Security: Tenant Isolation (CWE-639)
// Expected: The assignee sees and completes the workout; another user of the same tenant gets 404.
// Test Case ID: HTTP-08
func TestAPI_AssignRecommendComplete(t *testing.T) {
	h := newAPIHarness(t, nil)
	wk := h.createWorkout(t, h.demo.Admin1ID, "Private plan")

	w := h.call(t, h.demo.Admin1ID, http.MethodPost, "/api/v1/workouts/"+wk.ID+"/assign", map[string]any{"user_id": h.demo.User2ID})
	assert.Equal(t, http.StatusNotFound, w.Code, "users of other tenants are invisible")

	w = h.call(t, h.demo.Admin1ID, http.MethodPost, "/api/v1/workouts/"+wk.ID+"/assign", map[string]any{"user_id": h.demo.User1ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	entry := decode[schedule.HistoryEntry](t, w)
	assert.Equal(t, schedule.StatusPending, entry.Status)

	recs := decode[[]schedule.Workout](t, h.call(t, h.demo.User1ID, http.MethodGet, "/api/v1/me/recommendations", nil))
	require.Len(t, recs, 1)
	assert.Equal(t, wk.ID, recs[0].ID)

	w = h.call(t, h.demo.User1bID, http.MethodGet, "/api/v1/workouts/"+wk.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.call(t, h.demo.User1ID, http.MethodPost, "/api/v1/workouts/"+wk.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, schedule.StatusCompleted, decode[schedule.HistoryEntry](t, w).Status)

	shared := h.createWorkout(t, h.demo.Admin1ID, "Everyone")
	w = h.call(t, h.demo.Admin1ID, http.MethodPost, "/api/v1/workouts/"+shared.ID+"/recommend", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	recs = decode[[]schedule.Workout](t, h.call(t, h.demo.User1bID, http.MethodGet, "/api/v1/me/recommendations", nil))
	require.Len(t, recs, 1)
	assert.Equal(t, shared.ID, recs[0].ID)
}

// TestPurpose: Validates privilege administration routes.
// Scope: Unit Test
// Security: Privilege Management (CWE-269)
// Expected: Tenant admins cannot change grants or list tenants; super admins can; unknown keys are 400.
// Test Case ID: HTTP-09
func TestAPI_AdminRoutes(t *testing.T) {
	h := newAPIHarness(t, nil)
	path := "/api/v1/admin/tenants/" + h.demo.Tenant2ID + "/permissions/"

	w := h.call(t, h.demo.Admin2ID, http.MethodPut, path+string(authz.ManageProducts), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.call(t, h.demo.SuperAdminID, http.MethodPut, path+string(authz.ManageProducts), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = h.call(t, h.demo.SuperAdminID, http.MethodPut, path+"fly_to_the_moon", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	perms := decode[transportHTTP.PermissionsResponse](t, h.call(t, h.demo.SuperAdminID, http.MethodGet, "/api/v1/admin/tenants/"+h.demo.Tenant2ID+"/permissions", nil))
	assert.ElementsMatch(t, []authz.Permission{authz.ManageWorkouts, authz.ManageProducts}, perms.Permissions)

	w = h.call(t, h.demo.SuperAdminID, http.MethodDelete, path+string(authz.ManageProducts), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = h.call(t, h.demo.Admin1ID, http.MethodGet, "/api/v1/admin/tenants", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = h.call(t, h.demo.SuperAdminID, http.MethodGet, "/api/v1/admin/tenants", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 2)

	w = h.call(t, h.demo.Admin1ID, http.MethodPost, "/api/v1/admin/users",
		map[string]any{"email": "dee@north.test", "password": "longenough", "full_name": "Dee"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = h.call(t, h.demo.Admin1ID, http.MethodPost, "/api/v1/admin/users",
		map[string]any{"email": "dee@north.test", "password": "longenough"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.call(t, h.demo.SuperAdminID, http.MethodPost, "/api/v1/admin/promote",
		map[string]any{"user_id": h.demo.User2ID, "tenant_name": "Cy Coaching"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	role := decode[authz.Role](t, h.call(t, h.demo.User2ID, http.MethodGet, "/api/v1/me/role", nil))
	assert.Equal(t, authz.KindAdmin, role.Kind)

	w = h.call(t, h.demo.SuperAdminID, http.MethodPost, "/api/v1/admin/demote", map[string]any{"user_id": h.demo.User2ID})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

// TestPurpose: Validates per-client rate limiting.
// Scope: Unit Test
// Security: Resource exhaustion (CWE-770)
// Expected: Requests beyond the burst are rejected with 429.
// Test Case ID: HTTP-10
func TestAPI_RateLimit(t *testing.T) {
	h := newAPIHarness(t, transportHTTP.NewRateLimiter(0.001, 2))

	for i := 0; i < 2; i++ {
		w := h.call(t, "", http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w := h.call(t, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

// TestPurpose: Validates that foreign references cannot be used to detect rows of another tenant.
// Scope: Unit Test
// Security: Information Disclosure (CWE-204)
// Expected: A real exercise id of another tenant and an unknown id produce the same 404 body; user_id on workout create is 400.
// Test Case ID: HTTP-11
func TestAPI_ForeignReferencesAreMasked(t *testing.T) {
	h := newAPIHarness(t, nil)
	w := h.call(t, h.demo.Admin1ID, http.MethodPost, "/api/v1/exercises", map[string]any{"name": "Deadlift"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	northExercise := decode[map[string]any](t, w)["id"].(string)

	south := h.createWorkout(t, h.demo.Admin2ID, "South")
	path := "/api/v1/workouts/" + south.ID + "/exercises"

	foreign := h.call(t, h.demo.Admin2ID, http.MethodPost, path, map[string]any{"exercise_id": northExercise, "day_of_week": "monday"})
	unknown := h.call(t, h.demo.Admin2ID, http.MethodPost, path, map[string]any{"exercise_id": "00000000-0000-7000-8000-00000000ffff", "day_of_week": "monday"})
	assert.Equal(t, http.StatusNotFound, foreign.Code)
	assert.Equal(t, unknown.Code, foreign.Code)
	assert.Equal(t, unknown.Body.String(), foreign.Body.String())

	w = h.call(t, h.demo.Admin1ID, http.MethodPost, "/api/v1/workouts", map[string]any{"title": "Direct", "user_id": h.demo.User1ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
