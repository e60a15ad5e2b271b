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

import "fmt"

type scope int

const (
	scopeNone scope = iota
	scopeUnrestricted
	scopeTenant
	scopeSelf
)

// Filter is the effective tenant filter attached to an allowed Decision.
// The zero Filter permits nothing.
type Filter struct {
	scope    scope
	tenantID string
	userID   string
}

// Unrestricted reports whether the filter imposes no tenant restriction.
func (f Filter) Unrestricted() bool { return f.scope == scopeUnrestricted }

// TenantID returns the admin_id the filter restricts to, or "" when unrestricted.
func (f Filter) TenantID() string { return f.tenantID }

// UserID returns the owning principal for self-scoped filters, or "".
func (f Filter) UserID() string { return f.userID }

// SelfScoped reports whether the filter narrows rows to the caller's own.
func (f Filter) SelfScoped() bool { return f.scope == scopeSelf }

// Permits reports whether a row with the given admin_id and optional owner is
// inside the filter. unownedVisible controls whether self-scoped callers can
// see rows with no owner, such as tenant-public workouts.
func (f Filter) Permits(adminID string, ownerID *string, unownedVisible bool) bool {
	switch f.scope {
	case scopeUnrestricted:
		return true
	case scopeTenant:
		return adminID == f.tenantID
	case scopeSelf:
		if adminID != f.tenantID {
			return false
		}
		if ownerID == nil {
			return unownedVisible
		}
		return *ownerID == f.userID
	default:
		return false
	}
}

func (f Filter) String() string {
	switch f.scope {
	case scopeUnrestricted:
		return "unrestricted"
	case scopeTenant:
		return fmt.Sprintf("admin_id=%s", f.tenantID)
	case scopeSelf:
		return fmt.Sprintf("admin_id=%s AND user_id=%s", f.tenantID, f.userID)
	default:
		return "none"
	}
}

// Decision is the outcome of Guard.Authorize. Only the Guard can produce an
// allowed Decision; the zero value is denied.
type Decision struct {
	allowed     bool
	principalID string
	permission  Permission
	role        Role
	filter      Filter
	deny        *DenyError
}

// Allowed returns the effective filter and true when access was granted.
func (d Decision) Allowed() (Filter, bool) {
	if !d.allowed {
		return Filter{}, false
	}
	return d.filter, true
}

// Err returns the deny error, or nil when the decision allows access.
func (d Decision) Err() error {
	if d.allowed {
		return nil
	}
	if d.deny == nil {
		return &DenyError{Reason: ReasonPermissionDenied}
	}
	return d.deny
}

// PrincipalID returns the principal the decision was made for.
func (d Decision) PrincipalID() string { return d.principalID }

// Permission returns the permission that was checked.
func (d Decision) Permission() Permission { return d.permission }

// Role returns the role resolved while deciding. It is zero when resolution failed.
func (d Decision) Role() Role { return d.role }

func allow(role Role, perm Permission, filter Filter) Decision {
	return Decision{
		allowed:     true,
		principalID: role.PrincipalID,
		permission:  perm,
		role:        role,
		filter:      filter,
	}
}

func deny(principalID string, role Role, perm Permission, reason DenyReason) Decision {
	return Decision{
		principalID: principalID,
		permission:  perm,
		role:        role,
		deny:        &DenyError{PrincipalID: principalID, Permission: perm, Reason: reason},
	}
}
