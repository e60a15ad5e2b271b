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

// Permission is a capability key. The set is closed: values outside the
// constants below are never allowed.
type Permission string

// -----------------------------------------------------------------------------
// Grantable Permission Keys
// These are stored in permission_grants per tenant.
// -----------------------------------------------------------------------------

const (
	ManageWorkouts       Permission = "manage_workouts"
	ManageExercises      Permission = "manage_exercises"
	ManageCategories     Permission = "manage_categories"
	ManageProducts       Permission = "manage_products"
	ManageStore          Permission = "manage_store"
	ManageGymPhotos      Permission = "manage_gym_photos"
	ManageSchedule       Permission = "manage_schedule"
	ManageAppointments   Permission = "manage_appointments"
	ManagePaymentMethods Permission = "manage_payment_methods"
	ManageUsers          Permission = "manage_users"
	ViewAnalytics        Permission = "view_analytics"
	ManagePayments       Permission = "manage_payments"
)

// -----------------------------------------------------------------------------
// Self-Access Keys
// Implicitly held by every resolved principal, never stored as grants.
// Plain users get their own rows only; admins get their whole tenant.
// -----------------------------------------------------------------------------

const (
	ViewOwnProfile      Permission = "view_own_profile"
	ViewOwnAppointments Permission = "view_own_appointments"
	ViewOwnWorkouts     Permission = "view_own_workouts"
	ViewCatalog         Permission = "view_catalog"
)

// -----------------------------------------------------------------------------
// Platform Keys
// Never grantable. Only the super-admin bypass satisfies them.
// -----------------------------------------------------------------------------

const (
	// ManagePermissions gates adding keys a tenant does not hold yet.
	ManagePermissions Permission = "manage_permissions"
	// ManageTenants gates platform-wide tenant listing.
	ManageTenants Permission = "manage_tenants"
)

type permissionClass int

const (
	classInvalid permissionClass = iota
	classGrantable
	classSelf
	classPlatform
)

func (p Permission) class() permissionClass {
	switch p {
	case ManageWorkouts, ManageExercises, ManageCategories, ManageProducts,
		ManageStore, ManageGymPhotos, ManageSchedule, ManageAppointments,
		ManagePaymentMethods, ManageUsers, ViewAnalytics, ManagePayments:
		return classGrantable
	case ViewOwnProfile, ViewOwnAppointments, ViewOwnWorkouts, ViewCatalog:
		return classSelf
	case ManagePermissions, ManageTenants:
		return classPlatform
	default:
		return classInvalid
	}
}

// Valid reports whether p is a member of the closed enumeration.
func (p Permission) Valid() bool { return p.class() != classInvalid }

// Grantable reports whether p may be stored in a tenant's grant set.
func (p Permission) Grantable() bool { return p.class() == classGrantable }

// SelfAccess reports whether p is an implicit self-access key.
func (p Permission) SelfAccess() bool { return p.class() == classSelf }

// GrantablePermissions lists every key that can be granted to a tenant.
var GrantablePermissions = []Permission{
	ManageWorkouts,
	ManageExercises,
	ManageCategories,
	ManageProducts,
	ManageStore,
	ManageGymPhotos,
	ManageSchedule,
	ManageAppointments,
	ManagePaymentMethods,
	ManageUsers,
	ViewAnalytics,
	ManagePayments,
}

// ParsePermission converts an external string into a Permission.
func ParsePermission(s string) (Permission, error) {
	p := Permission(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPermission, s)
	}
	return p, nil
}
