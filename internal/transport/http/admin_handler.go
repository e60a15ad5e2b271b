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
	"net/http"
	"strconv"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/privilege"
	"github.com/coachgrid/coachgrid/internal/tenant"
	"github.com/go-chi/chi/v5"
)

// PromoteRequest represents a promotion to tenant admin
type PromoteRequest struct {
	UserID     string `json:"user_id" binding:"required" example:"0190..."`
	TenantName string `json:"tenant_name" example:"North Gym"`
}

// Promote makes a principal the admin of a tenant
// @Summary Promote to Admin
// @Description Creates the tenant when absent, reactivates it when disabled
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PromoteRequest true "Target"
// @Success 200 {object} tenant.Tenant
// @Failure 403 {object} map[string]string
// @Router /admin/promote [post]
func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	var req PromoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	t, err := h.privilege.Promote(r.Context(), GetPrincipalID(r.Context()), req.UserID, req.TenantName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// DemoteRequest represents a demotion from tenant admin
type DemoteRequest struct {
	UserID string `json:"user_id" binding:"required" example:"0190..."`
}

// Demote disables the tenant administered by a principal. Its data is retained.
// @Summary Demote Admin
// @Tags Admin
// @Accept json
// @Security BearerAuth
// @Param request body DemoteRequest true "Target"
// @Success 204
// @Failure 403 {object} map[string]string
// @Router /admin/demote [post]
func (h *Handler) Demote(w http.ResponseWriter, r *http.Request) {
	var req DemoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := h.privilege.Demote(r.Context(), GetPrincipalID(r.Context()), req.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateUserRequest represents tenant user provisioning data
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required" example:"athlete@example.com"`
	Password string `json:"password" binding:"required" example:"secret123"`
	FullName string `json:"full_name" example:"Ana Silva"`
	TenantID string `json:"tenant_id,omitempty" example:"0190..."`
}

// CreateTenantUser provisions a principal and profile inside a tenant
// @Summary Create Tenant User
// @Description tenant_id is required for super admins and defaults to the caller's tenant otherwise
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "User Data"
// @Success 201 {object} identity.Profile
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /admin/users [post]
func (h *Handler) CreateTenantUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	profile, err := h.privilege.CreateTenantUser(r.Context(), GetPrincipalID(r.Context()), privilege.NewUser{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		TenantID: req.TenantID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, profile)
}

// ListTenants lists every tenant of the platform
// @Summary List Tenants
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} tenant.Tenant
// @Failure 403 {object} map[string]string
// @Router /admin/tenants [get]
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	tenants, err := h.privilege.ListTenants(r.Context(), GetPrincipalID(r.Context()), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tenants == nil {
		tenants = []*tenant.Tenant{}
	}
	respondJSON(w, http.StatusOK, tenants)
}

// PermissionsResponse lists a tenant's grant set
type PermissionsResponse struct {
	TenantID    string             `json:"tenant_id"`
	Permissions []authz.Permission `json:"permissions"`
}

// ListPermissions lists the permissions granted to a tenant
// @Summary List Tenant Permissions
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} PermissionsResponse
// @Router /admin/tenants/{tenantID}/permissions [get]
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	perms, err := h.privilege.ListPermissions(r.Context(), GetPrincipalID(r.Context()), tenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if perms == nil {
		perms = []authz.Permission{}
	}
	respondJSON(w, http.StatusOK, PermissionsResponse{TenantID: tenantID, Permissions: perms})
}

// GrantPermission adds a permission to a tenant's grant set
// @Summary Grant Permission
// @Tags Admin
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param permission path string true "Permission key"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /admin/tenants/{tenantID}/permissions/{permission} [put]
func (h *Handler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	perm, err := authz.ParsePermission(chi.URLParam(r, "permission"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.privilege.GrantPermission(r.Context(), GetPrincipalID(r.Context()), chi.URLParam(r, "tenantID"), perm); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokePermission removes a permission from a tenant's grant set
// @Summary Revoke Permission
// @Tags Admin
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param permission path string true "Permission key"
// @Success 204
// @Failure 403 {object} map[string]string
// @Router /admin/tenants/{tenantID}/permissions/{permission} [delete]
func (h *Handler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	perm, err := authz.ParsePermission(chi.URLParam(r, "permission"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.privilege.RevokePermission(r.Context(), GetPrincipalID(r.Context()), chi.URLParam(r, "tenantID"), perm); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
