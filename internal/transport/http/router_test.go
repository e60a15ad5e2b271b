package http_test

import (
	"net/http/httptest"
	"testing"

	"github.com/coachgrid/coachgrid/internal/catalog"
	transportHTTP "github.com/coachgrid/coachgrid/internal/transport/http"
	"github.com/go-chi/chi/v5"
)

// TestRouterRoutes verifies the route table. Handlers are never executed,
// so the services stay nil and the catalog has no backends.
func TestRouterRoutes(t *testing.T) {
	h := transportHTTP.NewHandler(nil, catalog.New(catalog.Backends{}), nil, nil)
	auth := transportHTTP.NewAuthenticator(transportHTTP.TokenConfig{Secret: []byte("x")})
	rl := transportHTTP.NewRateLimiter(100, 100)
	defer rl.Stop()
	r := transportHTTP.NewRouter(h, auth, rl, transportHTTP.RouterConfig{})

	tests := []struct {
		name        string
		path        string
		method      string
		expectFound bool
	}{
		{"Health", "/health", "GET", true},
		{"Role", "/api/v1/me/role", "GET", true},
		{"Recommendations", "/api/v1/me/recommendations", "GET", true},
		{"Category list", "/api/v1/categories", "GET", true},
		{"Product update", "/api/v1/products/p1", "PUT", true},
		{"Appointment delete", "/api/v1/appointments/a1", "DELETE", true},
		{"Workout days", "/api/v1/workouts/w1/days", "PUT", true},
		{"List by day", "/api/v1/workouts/w1/exercises", "GET", true},
		{"Clone", "/api/v1/workouts/w1/clone", "POST", true},
		{"Assign", "/api/v1/workouts/w1/assign", "POST", true},
		{"Complete", "/api/v1/workouts/w1/complete", "POST", true},
		{"Reorder", "/api/v1/workout-exercises/e1/position", "PATCH", true},
		{"Grant", "/api/v1/admin/tenants/t1/permissions/manage_products", "PUT", true},
		{"Create user", "/api/v1/admin/users", "POST", true},

		{"No tenant selection endpoint", "/api/v1/tenants/t1/workouts", "GET", false},
		{"Clone is not a GET", "/api/v1/workouts/w1/clone", "GET", false},
		{"No OAuth2 surface", "/oauth2/token", "POST", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)

			rctx := chi.NewRouteContext()
			if r.Match(rctx, req.Method, req.URL.Path) {
				if !tt.expectFound {
					t.Errorf("Route %s %s SHOULD NOT exist", tt.method, tt.path)
				}
			} else {
				if tt.expectFound {
					t.Errorf("Route %s %s SHOULD exist", tt.method, tt.path)
				}
			}
		})
	}
}
