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

package identity

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrPrincipalNotFound      = errors.New("principal not found")
	ErrProfileNotFound        = errors.New("profile not found")
	ErrPrincipalAlreadyExists = errors.New("principal already exists")
	ErrInvalidEmail           = errors.New("invalid email address")
	ErrWeakPassword           = errors.New("password does not meet security requirements")
)

// Profile Scoping Principles:
// 1. A profile has exactly one coherent admin_id, or none for super admins
// 2. is_admin only selects the Admin role; the owned tenant is found by reverse lookup
// 3. admin_id is never rewritten by promotion or demotion

// Principal is an Identity Store record. It is referenced, never owned, by the core.
type Principal struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Credentials holds the principal's credential hash
type Credentials struct {
	PrincipalID  string
	PasswordHash string
	UpdatedAt    time.Time
}

// Profile is the per-principal row carrying the role signals
type Profile struct {
	PrincipalID string    `json:"principal_id"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	AdminID     *string   `json:"admin_id,omitempty"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TenantID returns the stored admin_id or an empty string.
func (p *Profile) TenantID() string {
	if p.AdminID == nil {
		return ""
	}
	return *p.AdminID
}

// ProfileRepository defines read access to profiles
type ProfileRepository interface {
	// GetProfile retrieves the profile of a principal
	GetProfile(ctx context.Context, principalID string) (*Profile, error)

	// GetProfileByEmail retrieves a profile by email
	GetProfileByEmail(ctx context.Context, email string) (*Profile, error)

	// ListProfilesByTenant retrieves every profile scoped to a tenant
	ListProfilesByTenant(ctx context.Context, tenantID string) ([]*Profile, error)
}
