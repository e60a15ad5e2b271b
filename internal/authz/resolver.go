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

package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/coachgrid/coachgrid/internal/identity"
	"github.com/coachgrid/coachgrid/internal/tenant"
)

// Resolver derives the role of a principal from the super-admin set,
// the profile flags and the tenant ownership table. It never writes.
type Resolver struct {
	superAdmins SuperAdminRepository
	profiles    identity.ProfileRepository
	tenants     tenant.Repository
}

// NewResolver creates a new role resolver
func NewResolver(superAdmins SuperAdminRepository, profiles identity.ProfileRepository, tenants tenant.Repository) *Resolver {
	return &Resolver{
		superAdmins: superAdmins,
		profiles:    profiles,
		tenants:     tenants,
	}
}

// Resolve returns the effective role of principalID.
// ErrNotFound is returned when the principal has no profile, when an admin
// owns no tenant, or when a plain user has no tenant scope.
func (r *Resolver) Resolve(ctx context.Context, principalID string) (Role, error) {
	if principalID == "" {
		return Role{}, fmt.Errorf("%w: empty principal id", ErrNotFound)
	}

	isSuper, err := r.superAdmins.IsSuperAdmin(ctx, principalID)
	if err != nil {
		return Role{}, fmt.Errorf("failed to check super admin set: %w", err)
	}
	if isSuper {
		return Role{PrincipalID: principalID, Kind: KindSuperAdmin}, nil
	}

	profile, err := r.profiles.GetProfile(ctx, principalID)
	if err != nil {
		if errors.Is(err, identity.ErrProfileNotFound) {
			return Role{}, fmt.Errorf("%w: no profile for principal", ErrNotFound)
		}
		return Role{}, fmt.Errorf("failed to load profile: %w", err)
	}

	if profile.IsAdmin {
		t, err := r.tenants.GetByOwner(ctx, principalID)
		if err != nil {
			if errors.Is(err, tenant.ErrTenantNotFound) {
				return Role{}, fmt.Errorf("%w: admin owns no tenant", ErrNotFound)
			}
			return Role{}, fmt.Errorf("failed to load owned tenant: %w", err)
		}
		return Role{PrincipalID: principalID, Kind: KindAdmin, TenantID: t.ID}, nil
	}

	if profile.AdminID == nil || *profile.AdminID == "" {
		return Role{}, fmt.Errorf("%w: principal has no tenant scope", ErrNotFound)
	}
	return Role{PrincipalID: principalID, Kind: KindUser, TenantID: *profile.AdminID}, nil
}
