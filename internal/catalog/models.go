package catalog

import (
	"time"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/scoped"
)

// Entity kinds served by tenant-scoped repositories
var (
	CategoryKind = scoped.Kind{
		Name:        "category",
		Permissions: []authz.Permission{authz.ManageCategories, authz.ViewCatalog},
		Ownership:   scoped.TenantPublic,
	}
	ExerciseKind = scoped.Kind{
		Name:        "exercise",
		Permissions: []authz.Permission{authz.ManageExercises, authz.ViewCatalog},
		Ownership:   scoped.TenantPublic,
	}
	ProductKind = scoped.Kind{
		Name:        "product",
		Permissions: []authz.Permission{authz.ManageProducts, authz.ManageStore, authz.ViewCatalog},
		Ownership:   scoped.TenantPublic,
	}
	AppointmentKind = scoped.Kind{
		Name:        "appointment",
		Permissions: []authz.Permission{authz.ManageAppointments, authz.ManageSchedule, authz.ViewOwnAppointments},
		Ownership:   scoped.OwnerOnly,
	}
)

// Category groups exercises, products and workouts.
// Deleting a category nulls category_id on dependent rows.
type Category struct {
	ID          string    `json:"id"`
	AdminID     string    `json:"admin_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *Category) GetID() string       { return c.ID }
func (c *Category) SetID(id string)     { c.ID = id }
func (c *Category) GetAdminID() string  { return c.AdminID }
func (c *Category) SetAdminID(a string) { c.AdminID = a }
func (c *Category) Owner() *string      { return nil }
func (c *Category) Stamp(now time.Time) { stamp(&c.CreatedAt, &c.UpdatedAt, now) }

func (c *Category) Clone() *Category {
	cp := *c
	return &cp
}

// Exercise is a reusable movement in the tenant's library
type Exercise struct {
	ID          string    `json:"id"`
	AdminID     string    `json:"admin_id"`
	CategoryID  *string   `json:"category_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	MuscleGroup string    `json:"muscle_group,omitempty"`
	VideoURL    string    `json:"video_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (e *Exercise) GetID() string       { return e.ID }
func (e *Exercise) SetID(id string)     { e.ID = id }
func (e *Exercise) GetAdminID() string  { return e.AdminID }
func (e *Exercise) SetAdminID(a string) { e.AdminID = a }
func (e *Exercise) Owner() *string      { return nil }
func (e *Exercise) Stamp(now time.Time) { stamp(&e.CreatedAt, &e.UpdatedAt, now) }

func (e *Exercise) References() []scoped.Reference {
	return []scoped.Reference{{Kind: CategoryKind.Name, ID: e.CategoryID}}
}

func (e *Exercise) Clone() *Exercise {
	cp := *e
	cp.CategoryID = copyString(e.CategoryID)
	return &cp
}

// Product is an item sold in the tenant's store
type Product struct {
	ID          string    `json:"id"`
	AdminID     string    `json:"admin_id"`
	CategoryID  *string   `json:"category_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Product) GetID() string       { return p.ID }
func (p *Product) SetID(id string)     { p.ID = id }
func (p *Product) GetAdminID() string  { return p.AdminID }
func (p *Product) SetAdminID(a string) { p.AdminID = a }
func (p *Product) Owner() *string      { return nil }
func (p *Product) Stamp(now time.Time) { stamp(&p.CreatedAt, &p.UpdatedAt, now) }

func (p *Product) References() []scoped.Reference {
	return []scoped.Reference{{Kind: CategoryKind.Name, ID: p.CategoryID}}
}

func (p *Product) Clone() *Product {
	cp := *p
	cp.CategoryID = copyString(p.CategoryID)
	return &cp
}

// Appointment is a booked session between the tenant and one of its users
type Appointment struct {
	ID        string    `json:"id"`
	AdminID   string    `json:"admin_id"`
	UserID    *string   `json:"user_id,omitempty"`
	Title     string    `json:"title"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Appointment) GetID() string        { return a.ID }
func (a *Appointment) SetID(id string)      { a.ID = id }
func (a *Appointment) GetAdminID() string   { return a.AdminID }
func (a *Appointment) SetAdminID(id string) { a.AdminID = id }
func (a *Appointment) Owner() *string       { return a.UserID }
func (a *Appointment) Stamp(now time.Time)  { stamp(&a.CreatedAt, &a.UpdatedAt, now) }

// References ties the booked user to the appointment's tenant.
func (a *Appointment) References() []scoped.Reference {
	return []scoped.Reference{{Kind: UserReference, ID: a.UserID}}
}

func (a *Appointment) Clone() *Appointment {
	cp := *a
	cp.UserID = copyString(a.UserID)
	return &cp
}

func stamp(created, updated *time.Time, now time.Time) {
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
