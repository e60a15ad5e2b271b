package scoped

import (
	"context"
	"errors"
	"fmt"

	"github.com/coachgrid/coachgrid/internal/authz"
)

// ErrOwnerManaged is returned when a generic create or update tries to change
// the owner of a kind whose owner is set by a dedicated operation.
var ErrOwnerManaged = errors.New("owner can only be changed by assignment")

// Reference is a foreign key from a record into another tenant-owned kind.
type Reference struct {
	Kind string
	ID   *string
}

// Referrer is implemented by records that point at rows of other kinds.
type Referrer interface {
	References() []Reference
}

// OwnerSetter is implemented by records of owner-managed kinds.
type OwnerSetter interface {
	SetOwner(owner *string)
}

// Lookup returns the tenant owning id when the row is inside f.
// Rows outside f report ErrNotFound.
type Lookup func(ctx context.Context, f authz.Filter, id string) (string, error)

// LookupIn adapts a backend into a Lookup.
func LookupIn[T Record](b Backend[T]) Lookup {
	return func(ctx context.Context, f authz.Filter, id string) (string, error) {
		rec, err := b.Get(ctx, f, id)
		if err != nil {
			return "", err
		}
		return rec.GetAdminID(), nil
	}
}

// Within reports ErrNotFound unless id resolves inside f and belongs to tenantID.
// A row of another tenant is indistinguishable from a missing one.
func (l Lookup) Within(ctx context.Context, f authz.Filter, tenantID, kind, id string) error {
	owner, err := l(ctx, f, id)
	if errors.Is(err, ErrNotFound) || (err == nil && owner != tenantID) {
		return fmt.Errorf("%w: %s", ErrNotFound, kind)
	}
	if err != nil {
		return Wrap("resolve", kind, err)
	}
	return nil
}

// WithReference registers the lookup used to validate references of kind.
func (r *Repository[T]) WithReference(kind string, l Lookup) *Repository[T] {
	if r.refs == nil {
		r.refs = make(map[string]Lookup)
	}
	r.refs[kind] = l
	return r
}

// checkReferences resolves every non-nil reference of rec inside tenantID.
// A reference kind without a registered lookup fails closed.
func (r *Repository[T]) checkReferences(ctx context.Context, f authz.Filter, tenantID string, rec T) error {
	referrer, ok := any(rec).(Referrer)
	if !ok {
		return nil
	}
	for _, ref := range referrer.References() {
		if ref.ID == nil {
			continue
		}
		lookup, ok := r.refs[ref.Kind]
		if !ok {
			return &StorageError{Op: "resolve", Kind: ref.Kind, Err: fmt.Errorf("no lookup registered on %s", r.kind.Name)}
		}
		if err := lookup.Within(ctx, f, tenantID, ref.Kind, *ref.ID); err != nil {
			return err
		}
	}
	return nil
}

// keepOwner rejects owner changes on owner-managed kinds. An unset owner on
// update keeps the stored one.
func (r *Repository[T]) keepOwner(rec T, existing *T) error {
	if !r.kind.OwnerManaged {
		return nil
	}
	incoming := rec.Owner()
	if existing == nil {
		if incoming != nil {
			return ErrOwnerManaged
		}
		return nil
	}
	stored := (*existing).Owner()
	if incoming != nil && (stored == nil || *stored != *incoming) {
		return ErrOwnerManaged
	}
	setter, ok := any(rec).(OwnerSetter)
	if !ok {
		return &StorageError{Op: "update", Kind: r.kind.Name, Err: errors.New("owner-managed record cannot set owner")}
	}
	setter.SetOwner(stored)
	return nil
}
