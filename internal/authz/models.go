package authz

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrNotFound          = errors.New("not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrCrossTenantAccess = errors.New("cross-tenant access")
	ErrInvalidPermission = errors.New("invalid permission")
)

// Kind is the base role of a principal.
type Kind string

const (
	KindSuperAdmin Kind = "super_admin"
	KindAdmin      Kind = "admin"
	KindUser       Kind = "user"
)

// Role is the resolved role of a principal for the duration of one request.
type Role struct {
	PrincipalID string `json:"principal_id"`
	Kind        Kind   `json:"kind"`
	TenantID    string `json:"tenant_id,omitempty"` // empty for super admins
}

// DenyReason classifies a denied decision.
type DenyReason string

const (
	ReasonNotFound          DenyReason = "not_found"
	ReasonPermissionDenied  DenyReason = "permission_denied"
	ReasonCrossTenantAccess DenyReason = "cross_tenant_access"
)

// DenyError is the error carried by a denied Decision.
type DenyError struct {
	PrincipalID string
	Permission  Permission
	Reason      DenyReason
}

func (e *DenyError) Error() string {
	return fmt.Sprintf("authz: %s denied %s: %s", e.PrincipalID, e.Permission, e.Reason)
}

// Unwrap maps the reason onto the package sentinels so callers can use errors.Is.
func (e *DenyError) Unwrap() error {
	switch e.Reason {
	case ReasonNotFound:
		return ErrNotFound
	case ReasonCrossTenantAccess:
		return ErrCrossTenantAccess
	default:
		return ErrPermissionDenied
	}
}

// SuperAdminRepository persists the super-admin set.
type SuperAdminRepository interface {
	// IsSuperAdmin reports membership of principalID in the set
	IsSuperAdmin(ctx context.Context, principalID string) (bool, error)

	// AddSuperAdmin inserts principalID; adding an existing member is a no-op
	AddSuperAdmin(ctx context.Context, principalID string) error

	// CountSuperAdmins returns the size of the set
	CountSuperAdmins(ctx context.Context) (int, error)
}

// GrantRepository persists the permission table.
// Grant and Revoke are idempotent.
type GrantRepository interface {
	HasGrant(ctx context.Context, tenantID string, permission Permission) (bool, error)
	ListGrants(ctx context.Context, tenantID string) ([]Permission, error)
	Grant(ctx context.Context, tenantID string, permission Permission, grantedBy string) error
	Revoke(ctx context.Context, tenantID string, permission Permission) error
}
