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
	"log/slog"

	"github.com/coachgrid/coachgrid/internal/observability/logger"
	"github.com/coachgrid/coachgrid/internal/observability/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Guard is the single choke point for tenant-owned data access.
// It re-resolves the role and re-reads grants on every call; nothing is cached.
type Guard struct {
	resolver  *Resolver
	grants    GrantRepository
	decisions metric.Int64Counter
}

// NewGuard creates a new authorization guard. A nil meter records nothing.
func NewGuard(resolver *Resolver, grants GrantRepository, meter *metrics.Meter) *Guard {
	if meter == nil {
		meter = metrics.Noop()
	}
	return &Guard{
		resolver:  resolver,
		grants:    grants,
		decisions: meter.MustCounter("authz.decisions", "Authorization decisions by outcome"),
	}
}

// ResolveRole exposes the role resolver through the guard.
func (g *Guard) ResolveRole(ctx context.Context, principalID string) (Role, error) {
	return g.resolver.Resolve(ctx, principalID)
}

// Authorize decides whether principalID may exercise perm, optionally against
// a resource owned by resourceTenant. Denials are returned inside the Decision;
// the error is non-nil only when a store could not be read.
func (g *Guard) Authorize(ctx context.Context, principalID string, perm Permission, resourceTenant *string) (Decision, error) {
	if !perm.Valid() {
		return g.record(ctx, deny(principalID, Role{}, perm, ReasonPermissionDenied)), nil
	}

	role, err := g.resolver.Resolve(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return g.record(ctx, deny(principalID, Role{}, perm, ReasonNotFound)), nil
		}
		return Decision{}, fmt.Errorf("authz: resolve role: %w", err)
	}

	switch role.Kind {
	case KindSuperAdmin:
		return g.record(ctx, allow(role, perm, Filter{scope: scopeUnrestricted})), nil

	case KindAdmin:
		if resourceTenant != nil && *resourceTenant != role.TenantID {
			return g.record(ctx, deny(principalID, role, perm, ReasonCrossTenantAccess)), nil
		}
		tenantFilter := Filter{scope: scopeTenant, tenantID: role.TenantID}
		if perm.SelfAccess() {
			return g.record(ctx, allow(role, perm, tenantFilter)), nil
		}
		if !perm.Grantable() {
			return g.record(ctx, deny(principalID, role, perm, ReasonPermissionDenied)), nil
		}
		granted, err := g.grants.HasGrant(ctx, role.TenantID, perm)
		if err != nil {
			return Decision{}, fmt.Errorf("authz: read grant: %w", err)
		}
		if !granted {
			return g.record(ctx, deny(principalID, role, perm, ReasonPermissionDenied)), nil
		}
		return g.record(ctx, allow(role, perm, tenantFilter)), nil

	case KindUser:
		if resourceTenant != nil && *resourceTenant != role.TenantID {
			return g.record(ctx, deny(principalID, role, perm, ReasonCrossTenantAccess)), nil
		}
		if perm.SelfAccess() {
			return g.record(ctx, allow(role, perm, Filter{
				scope:    scopeSelf,
				tenantID: role.TenantID,
				userID:   principalID,
			})), nil
		}
		return g.record(ctx, deny(principalID, role, perm, ReasonPermissionDenied)), nil
	}

	return g.record(ctx, deny(principalID, role, perm, ReasonPermissionDenied)), nil
}

func (g *Guard) record(ctx context.Context, d Decision) Decision {
	outcome, reason := "allow", ""
	if err := d.Err(); err != nil {
		outcome = "deny"
		var denyErr *DenyError
		if errors.As(err, &denyErr) {
			reason = string(denyErr.Reason)
		}
		slog.DebugContext(ctx, "authorization denied",
			logger.PrincipalID(d.PrincipalID()),
			logger.Permission(string(d.Permission())),
			logger.RoleKind(string(d.Role().Kind)),
			logger.TenantID(d.Role().TenantID),
			logger.Reason(reason),
		)
	}
	g.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
		attribute.String("permission", string(d.Permission())),
	))
	return d
}
