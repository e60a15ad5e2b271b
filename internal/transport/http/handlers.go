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

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/catalog"
	"github.com/coachgrid/coachgrid/internal/identity"
	"github.com/coachgrid/coachgrid/internal/observability/logger"
	"github.com/coachgrid/coachgrid/internal/privilege"
	"github.com/coachgrid/coachgrid/internal/schedule"
	"github.com/coachgrid/coachgrid/internal/scoped"
	"github.com/coachgrid/coachgrid/internal/tenant"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers
type Handler struct {
	guard     *authz.Guard
	catalog   *catalog.Catalog
	engine    *schedule.Engine
	privilege *privilege.Service
}

// NewHandler creates a new HTTP handler
func NewHandler(guard *authz.Guard, cat *catalog.Catalog, engine *schedule.Engine, priv *privilege.Service) *Handler {
	return &Handler{
		guard:     guard,
		catalog:   cat,
		engine:    engine,
		privilege: priv,
	}
}

// RouterConfig holds router level settings
type RouterConfig struct {
	RequestTimeout time.Duration
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, auth *Authenticator, rateLimiter *RateLimiter, cfg RouterConfig) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes. Every route is authenticated; the tenant comes from the
	// principal's resolved role.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.AuthMiddleware)

		r.Get("/me/role", h.GetRole)
		r.Get("/me/recommendations", h.ListRecommendations)

		mountCatalog(r, "/categories", h, h.catalog.Categories, authz.ViewCatalog, authz.ManageCategories)
		mountCatalog(r, "/exercises", h, h.catalog.Exercises, authz.ViewCatalog, authz.ManageExercises)
		mountCatalog(r, "/products", h, h.catalog.Products, authz.ViewCatalog, authz.ManageProducts)
		mountCatalog(r, "/appointments", h, h.catalog.Appointments, authz.ViewOwnAppointments, authz.ManageAppointments)

		r.Route("/workouts", func(r chi.Router) {
			r.Get("/", h.ListWorkouts)
			r.Post("/", h.CreateWorkout)
			r.Route("/{workoutID}", func(r chi.Router) {
				r.Get("/", h.GetWorkout)
				r.Put("/", h.UpdateWorkout)
				r.Delete("/", h.DeleteWorkout)
				r.Get("/days", h.GetWorkoutDays)
				r.Put("/days", h.SetWorkoutDays)
				r.Get("/exercises", h.ListWorkoutExercises)
				r.Post("/exercises", h.AddWorkoutExercise)
				r.Post("/clone", h.CloneDay)
				r.Post("/assign", h.AssignWorkout)
				r.Post("/recommend", h.RecommendWorkout)
				r.Post("/complete", h.CompleteWorkout)
			})
		})

		r.Route("/workout-exercises/{exerciseID}", func(r chi.Router) {
			r.Patch("/", h.UpdateWorkoutExercise)
			r.Delete("/", h.RemoveWorkoutExercise)
			r.Patch("/position", h.ReorderWorkoutExercise)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/promote", h.Promote)
			r.Post("/demote", h.Demote)
			r.Post("/users", h.CreateTenantUser)
			r.Get("/tenants", h.ListTenants)
			r.Get("/tenants/{tenantID}/permissions", h.ListPermissions)
			r.Put("/tenants/{tenantID}/permissions/{permission}", h.GrantPermission)
			r.Delete("/tenants/{tenantID}/permissions/{permission}", h.RevokePermission)
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetRole returns the caller's resolved role
// @Summary Current Role
// @Tags Identity
// @Produce json
// @Security BearerAuth
// @Success 200 {object} authz.Role
// @Failure 404 {object} map[string]string
// @Router /me/role [get]
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.guard.ResolveRole(r.Context(), GetPrincipalID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, role)
}

// decide asks the Guard for a decision on behalf of the caller. Denied
// decisions are returned as well; repositories turn them into errors.
func (h *Handler) decide(w http.ResponseWriter, r *http.Request, perm authz.Permission) (authz.Decision, bool) {
	d, err := h.guard.Authorize(r.Context(), GetPrincipalID(r.Context()), perm, nil)
	if err != nil {
		writeError(w, r, err)
		return authz.Decision{}, false
	}
	return d, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes. Anything unrecognized
// is a storage or internal failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, authz.ErrNotFound),
		errors.Is(err, identity.ErrProfileNotFound),
		errors.Is(err, identity.ErrPrincipalNotFound),
		errors.Is(err, tenant.ErrTenantNotFound):
		return http.StatusNotFound
	case errors.Is(err, authz.ErrPermissionDenied),
		errors.Is(err, authz.ErrCrossTenantAccess):
		return http.StatusForbidden
	case errors.Is(err, schedule.ErrEmptySource):
		return http.StatusUnprocessableEntity
	case errors.Is(err, schedule.ErrConflictingOrder),
		errors.Is(err, identity.ErrPrincipalAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, schedule.ErrInvalidPosition),
		errors.Is(err, schedule.ErrInvalidDay),
		errors.Is(err, schedule.ErrNoTargetDays),
		errors.Is(err, authz.ErrInvalidPermission),
		errors.Is(err, scoped.ErrAmbiguousTenant),
		errors.Is(err, scoped.ErrOwnerManaged),
		errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrWeakPassword):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the status mapped from err. Internal failures
// are logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			logger.PrincipalID(GetPrincipalID(r.Context())),
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
		respondError(w, status, "internal server error")
		return
	}
	respondError(w, status, publicMessage(status, err))
}

// publicMessage hides why a request was denied so responses do not reveal
// whether a row exists in another tenant.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusNotFound:
		return "not found"
	case http.StatusForbidden:
		if errors.Is(err, authz.ErrCrossTenantAccess) {
			return "cross-tenant access"
		}
		return "permission denied"
	default:
		return err.Error()
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
