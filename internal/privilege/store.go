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

	"github.com/coachgrid/coachgrid/internal/identity"
	"github.com/coachgrid/coachgrid/internal/tenant"
)

// Queries are the writes behind role administration. They work both on the
// root store and inside a transaction.
type Queries interface {
	GetProfile(ctx context.Context, principalID string) (*identity.Profile, error)
	SetAdminFlag(ctx context.Context, principalID string, isAdmin bool) error
	InsertProfile(ctx context.Context, p *identity.Profile) error
	// CreatePrincipal returns identity.ErrPrincipalAlreadyExists on a duplicate email.
	CreatePrincipal(ctx context.Context, p *identity.Principal, c *identity.Credentials) error

	GetTenantByOwner(ctx context.Context, principalID string) (*tenant.Tenant, error)
	InsertTenant(ctx context.Context, t *tenant.Tenant) error
	SetTenantActive(ctx context.Context, tenantID string, active bool) error
}

// Store adds transactions to Queries
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
}
