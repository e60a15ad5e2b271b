package catalog

import (
	"context"
	"errors"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/identity"
	"github.com/coachgrid/coachgrid/internal/scoped"
)

// UserReference names references to tenant users
const UserReference = "user"

// Backends groups the storage implementations for catalog kinds
type Backends struct {
	Categories   scoped.Backend[*Category]
	Exercises    scoped.Backend[*Exercise]
	Products     scoped.Backend[*Product]
	Appointments scoped.Backend[*Appointment]
	Profiles     identity.ProfileRepository
}

// Catalog exposes one tenant-scoped repository per catalog kind
type Catalog struct {
	Categories   *scoped.Repository[*Category]
	Exercises    *scoped.Repository[*Exercise]
	Products     *scoped.Repository[*Product]
	Appointments *scoped.Repository[*Appointment]
}

// New creates the catalog repositories
func New(b Backends) *Catalog {
	categories := scoped.LookupIn(b.Categories)
	exercises := scoped.NewRepository(ExerciseKind, b.Exercises)
	exercises.WithReference(CategoryKind.Name, categories)
	products := scoped.NewRepository(ProductKind, b.Products)
	products.WithReference(CategoryKind.Name, categories)
	appointments := scoped.NewRepository(AppointmentKind, b.Appointments)
	appointments.WithReference(UserReference, UserLookup(b.Profiles))

	return &Catalog{
		Categories:   scoped.NewRepository(CategoryKind, b.Categories),
		Exercises:    exercises,
		Products:     products,
		Appointments: appointments,
	}
}

// UserLookup resolves a principal to the tenant its profile is scoped to.
// Profiles outside f, and super admins with no tenant, are not found.
func UserLookup(profiles identity.ProfileRepository) scoped.Lookup {
	return func(ctx context.Context, f authz.Filter, id string) (string, error) {
		profile, err := profiles.GetProfile(ctx, id)
		if errors.Is(err, identity.ErrProfileNotFound) {
			return "", scoped.ErrNotFound
		}
		if err != nil {
			return "", err
		}
		if profile.AdminID == nil || !f.Permits(profile.TenantID(), nil, true) {
			return "", scoped.ErrNotFound
		}
		return profile.TenantID(), nil
	}
}
