package tenant

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
)

// Tenant is an independently managed coaching account. Its ID is the admin_id
// stamped on every record it owns.
type Tenant struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"` // principal that was promoted to admin
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository defines read access to tenant storage.
// Writes happen inside privilege administration transactions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetByOwner(ctx context.Context, principalID string) (*Tenant, error)
	List(ctx context.Context, limit, offset int) ([]*Tenant, error)
}
