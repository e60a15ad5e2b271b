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

package privilege

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coachgrid/coachgrid/internal/audit"
	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/id"
	"github.com/coachgrid/coachgrid/internal/identity"
	"github.com/coachgrid/coachgrid/internal/scoped"
	"github.com/coachgrid/coachgrid/internal/tenant"
)

// Service mutates the data the role resolver reads. Every operation is
// authorized through the Guard like any other tenant access.
type Service struct {
	guard       *authz.Guard
	store       Store
	grants      authz.GrantRepository
	tenants     tenant.Repository
	superAdmins authz.SuperAdminRepository
	profiles    identity.ProfileRepository
	provisioner *identity.Provisioner
	auditLogger audit.Logger
}

// NewService creates a new privilege administration service
func NewService(
	guard *authz.Guard,
	store Store,
	grants authz.GrantRepository,
	tenants tenant.Repository,
	superAdmins authz.SuperAdminRepository,
	profiles identity.ProfileRepository,
	provisioner *identity.Provisioner,
	auditLogger audit.Logger,
) *Service {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &Service{
		guard:       guard,
		store:       store,
		grants:      grants,
		tenants:     tenants,
		superAdmins: superAdmins,
		profiles:    profiles,
		provisioner: provisioner,
		auditLogger: auditLogger,
	}
}

// Promote makes targetID the admin of a tenant. The tenant is created when
// absent and reactivated when disabled. The target's own admin_id is not changed.
func (s *Service) Promote(ctx context.Context, actorID, targetID, tenantName string) (*tenant.Tenant, error) {
	target, err := s.authorizeOver(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}

	var result *tenant.Tenant
	err = s.store.WithTx(ctx, func(q Queries) error {
		t, err := q.GetTenantByOwner(ctx, targetID)
		switch {
		case errors.Is(err, tenant.ErrTenantNotFound):
			now := time.Now()
			t = &tenant.Tenant{
				ID:        id.NewUUIDv7(),
				OwnerID:   targetID,
				Name:      tenantDisplayName(tenantName, target),
				Active:    true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := q.InsertTenant(ctx, t); err != nil {
				return err
			}
		case err != nil:
			return err
		case !t.Active:
			if err := q.SetTenantActive(ctx, t.ID, true); err != nil {
				return err
			}
			t.Active = true
		}
		result = t
		return q.SetAdminFlag(ctx, targetID, true)
	})
	if err != nil {
		return nil, scoped.Wrap("promote", "profile", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAdminPromoted,
		TenantID: result.ID,
		ActorID:  actorID,
		Resource: targetID,
	})
	return result, nil
}

// Demote clears the admin flag and disables the owned tenant. The tenant and
// every record it owns are retained.
func (s *Service) Demote(ctx context.Context, actorID, targetID string) error {
	if _, err := s.authorizeOver(ctx, actorID, targetID); err != nil {
		return err
	}

	var tenantID string
	err := s.store.WithTx(ctx, func(q Queries) error {
		if err := q.SetAdminFlag(ctx, targetID, false); err != nil {
			return err
		}
		t, err := q.GetTenantByOwner(ctx, targetID)
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		tenantID = t.ID
		return q.SetTenantActive(ctx, t.ID, false)
	})
	if err != nil {
		return scoped.Wrap("demote", "profile", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAdminDemoted,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: targetID,
	})
	return nil
}

// GrantPermission adds perm to the tenant's grant set. Granting an existing
// permission succeeds without change. Adding a key the tenant does not hold
// also requires manage_permissions, so tenant admins cannot widen their own set.
func (s *Service) GrantPermission(ctx context.Context, actorID, tenantID string, perm authz.Permission) error {
	if err := s.authorizeGrantChange(ctx, actorID, tenantID, perm, true); err != nil {
		return err
	}
	if err := s.grants.Grant(ctx, tenantID, perm, actorID); err != nil {
		return scoped.Wrap("grant", "permission", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePermissionGranted,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: string(perm),
	})
	return nil
}

// RevokePermission removes perm from the tenant's grant set. Revoking a
// permission that is not granted succeeds without change.
func (s *Service) RevokePermission(ctx context.Context, actorID, tenantID string, perm authz.Permission) error {
	if err := s.authorizeGrantChange(ctx, actorID, tenantID, perm, false); err != nil {
		return err
	}
	if err := s.grants.Revoke(ctx, tenantID, perm); err != nil {
		return scoped.Wrap("revoke", "permission", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePermissionRevoked,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: string(perm),
	})
	return nil
}

// ListPermissions returns the tenant's grant set.
func (s *Service) ListPermissions(ctx context.Context, actorID, tenantID string) ([]authz.Permission, error) {
	if err := s.require(ctx, actorID, authz.ManageUsers, &tenantID); err != nil {
		return nil, err
	}
	perms, err := s.grants.ListGrants(ctx, tenantID)
	if err != nil {
		return nil, scoped.Wrap("list", "permission", err)
	}
	return perms, nil
}

// NewUser is the input of CreateTenantUser
type NewUser struct {
	Email    string
	Password string
	FullName string
	// TenantID is required for super admins and optional for tenant admins.
	TenantID string
}

// CreateTenantUser provisions a principal and its profile scoped to a tenant
// in a single transaction.
func (s *Service) CreateTenantUser(ctx context.Context, actorID string, in NewUser) (*identity.Profile, error) {
	var resource *string
	if in.TenantID != "" {
		resource = &in.TenantID
	}
	d, err := s.guard.Authorize(ctx, actorID, authz.ManageUsers, resource)
	if err != nil {
		return nil, scoped.Wrap("authorize", "user", err)
	}
	if err := d.Err(); err != nil {
		return nil, s.denied(ctx, d, err)
	}
	f, _ := d.Allowed()

	tenantID := in.TenantID
	if tenantID == "" {
		tenantID = f.TenantID()
	}
	if tenantID == "" {
		return nil, scoped.ErrAmbiguousTenant
	}
	if f.Unrestricted() {
		if _, err := s.tenants.GetByID(ctx, tenantID); err != nil {
			if errors.Is(err, tenant.ErrTenantNotFound) {
				return nil, fmt.Errorf("%w: tenant", authz.ErrNotFound)
			}
			return nil, scoped.Wrap("get", "tenant", err)
		}
	}

	principal, creds, err := s.provisioner.Prepare(in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	profile := &identity.Profile{
		PrincipalID: principal.ID,
		Email:       principal.Email,
		FullName:    in.FullName,
		AdminID:     &tenantID,
		CreatedAt:   principal.CreatedAt,
		UpdatedAt:   principal.CreatedAt,
	}

	err = s.store.WithTx(ctx, func(q Queries) error {
		if err := q.CreatePrincipal(ctx, principal, creds); err != nil {
			return err
		}
		return q.InsertProfile(ctx, profile)
	})
	if err != nil {
		return nil, scoped.Wrap("create", "user", err, identity.ErrPrincipalAlreadyExists)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserCreated,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: principal.ID,
		Metadata: map[string]any{"email": principal.Email},
	})
	return profile, nil
}

// ListTenants lists every tenant on the platform.
func (s *Service) ListTenants(ctx context.Context, actorID string, limit, offset int) ([]*tenant.Tenant, error) {
	if err := s.require(ctx, actorID, authz.ManageTenants, nil); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	tenants, err := s.tenants.List(ctx, limit, offset)
	if err != nil {
		return nil, scoped.Wrap("list", "tenant", err)
	}
	return tenants, nil
}

// authorizeOver checks manage_users without a resource first so callers
// lacking the permission cannot probe for principals, then re-checks against
// the target's tenant and against the tenant the target owns, if any.
func (s *Service) authorizeOver(ctx context.Context, actorID, targetID string) (*identity.Profile, error) {
	if err := s.require(ctx, actorID, authz.ManageUsers, nil); err != nil {
		return nil, err
	}

	target, err := s.store.GetProfile(ctx, targetID)
	if err != nil {
		if errors.Is(err, identity.ErrProfileNotFound) {
			return nil, fmt.Errorf("%w: principal", authz.ErrNotFound)
		}
		return nil, scoped.Wrap("get", "profile", err)
	}

	targetTenant := target.TenantID()
	if err := s.require(ctx, actorID, authz.ManageUsers, &targetTenant); err != nil {
		return nil, err
	}

	owned, err := s.tenants.GetByOwner(ctx, targetID)
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		return target, nil
	case err != nil:
		return nil, scoped.Wrap("get", "tenant", err)
	}
	if owned.ID != targetTenant {
		if err := s.require(ctx, actorID, authz.ManageUsers, &owned.ID); err != nil {
			return nil, err
		}
	}
	return target, nil
}

// authorizeGrantChange requires manage_users on the tenant. When widen is
// set and the tenant does not hold perm yet, manage_permissions is required too.
func (s *Service) authorizeGrantChange(ctx context.Context, actorID, tenantID string, perm authz.Permission, widen bool) error {
	if !perm.Grantable() {
		return fmt.Errorf("%w: %q is not grantable", authz.ErrInvalidPermission, perm)
	}
	if err := s.require(ctx, actorID, authz.ManageUsers, &tenantID); err != nil {
		return err
	}
	if _, err := s.tenants.GetByID(ctx, tenantID); err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return fmt.Errorf("%w: tenant", authz.ErrNotFound)
		}
		return scoped.Wrap("get", "tenant", err)
	}
	if !widen {
		return nil
	}
	held, err := s.grants.HasGrant(ctx, tenantID, perm)
	if err != nil {
		return scoped.Wrap("get", "permission", err)
	}
	if held {
		return nil
	}
	return s.require(ctx, actorID, authz.ManagePermissions, &tenantID)
}

func (s *Service) require(ctx context.Context, actorID string, perm authz.Permission, resource *string) error {
	d, err := s.guard.Authorize(ctx, actorID, perm, resource)
	if err != nil {
		return scoped.Wrap("authorize", string(perm), err)
	}
	if err := d.Err(); err != nil {
		return s.denied(ctx, d, err)
	}
	return nil
}

func (s *Service) denied(ctx context.Context, d authz.Decision, err error) error {
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAccessDenied,
		TenantID: d.Role().TenantID,
		ActorID:  d.PrincipalID(),
		Resource: string(d.Permission()),
		Metadata: map[string]any{"error": err.Error()},
	})
	return err
}

func tenantDisplayName(name string, p *identity.Profile) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}
