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

package scoped

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/id"
)

var (
	// ErrNotFound is returned both for missing records and for records outside
	// the caller's filter. The two cases are indistinguishable by design of the API.
	ErrNotFound = authz.ErrNotFound

	// ErrAmbiguousTenant is returned when an unrestricted caller creates a
	// record without naming the tenant that should own it.
	ErrAmbiguousTenant = errors.New("create requires an explicit target tenant")
)

// StorageError wraps every backend failure that is not a domain outcome.
type StorageError struct {
	Op   string
	Kind string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Wrap converts err into a *StorageError unless it is nil or already a domain error.
func Wrap(op, kind string, err error, passthrough ...error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	for _, target := range passthrough {
		if errors.Is(err, target) {
			return err
		}
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	var de *authz.DenyError
	if errors.As(err, &de) {
		return err
	}
	return &StorageError{Op: op, Kind: kind, Err: err}
}

// Ownership describes how a self-scoped filter narrows a table.
type Ownership int

const (
	// TenantPublic tables have no owner column; every row of the tenant is visible.
	TenantPublic Ownership = iota
	// OwnerOnly rows are visible to a user only when the user owns them.
	OwnerOnly
	// OwnerOrShared rows are visible when unowned or owned by the user.
	OwnerOrShared
)

// UnownedVisible reports whether a self-scoped caller may see rows with no owner.
func (o Ownership) UnownedVisible() bool { return o != OwnerOnly }

// Kind names a tenant-owned entity and the permissions allowed to drive its repository.
type Kind struct {
	Name        string
	Permissions []authz.Permission
	Ownership   Ownership

	// OwnerManaged kinds change owner only through a dedicated operation.
	OwnerManaged bool
}

// Record is the shape shared by every tenant-owned entity.
type Record interface {
	GetID() string
	SetID(id string)
	GetAdminID() string
	SetAdminID(adminID string)
	// Owner returns the user a row is exclusive to, or nil.
	Owner() *string
	// Stamp sets CreatedAt when unset and UpdatedAt to now.
	Stamp(now time.Time)
}

// Backend is the storage contract behind a Repository. Every read and write
// receives the effective filter and must apply it to the query itself.
type Backend[T Record] interface {
	List(ctx context.Context, f authz.Filter) ([]T, error)
	Get(ctx context.Context, f authz.Filter, id string) (T, error)
	Insert(ctx context.Context, rec T) error
	Update(ctx context.Context, f authz.Filter, rec T) error
	Delete(ctx context.Context, f authz.Filter, id string) error
}

// Repository is the only data path for tenant-owned records. It accepts an
// authz.Decision rather than a tenant id, so callers cannot skip the Guard.
type Repository[T Record] struct {
	kind    Kind
	backend Backend[T]
	refs    map[string]Lookup
}

// NewRepository creates a tenant-scoped repository
func NewRepository[T Record](kind Kind, backend Backend[T]) *Repository[T] {
	return &Repository[T]{kind: kind, backend: backend}
}

// Kind returns the entity kind served by the repository
func (r *Repository[T]) Kind() Kind { return r.kind }

// List returns every record inside the decision's filter.
func (r *Repository[T]) List(ctx context.Context, d authz.Decision) ([]T, error) {
	f, err := r.check(d, false)
	if err != nil {
		return nil, err
	}
	recs, err := r.backend.List(ctx, f)
	if err != nil {
		return nil, Wrap("list", r.kind.Name, err)
	}
	return recs, nil
}

// Get returns the record or ErrNotFound when it is missing or outside the filter.
func (r *Repository[T]) Get(ctx context.Context, d authz.Decision, id string) (T, error) {
	var zero T
	f, err := r.check(d, false)
	if err != nil {
		return zero, err
	}
	rec, err := r.backend.Get(ctx, f, id)
	if err != nil {
		return zero, Wrap("get", r.kind.Name, err)
	}
	return rec, nil
}

// GetForWrite behaves like Get but also requires a decision that may mutate.
func (r *Repository[T]) GetForWrite(ctx context.Context, d authz.Decision, id string) (T, error) {
	var zero T
	f, err := r.check(d, true)
	if err != nil {
		return zero, err
	}
	rec, err := r.backend.Get(ctx, f, id)
	if err != nil {
		return zero, Wrap("get", r.kind.Name, err)
	}
	return rec, nil
}

// Create stamps admin_id from the filter and inserts rec.
// Unrestricted callers must set rec's admin_id to the target tenant.
// Every reference rec holds must resolve inside that tenant.
func (r *Repository[T]) Create(ctx context.Context, d authz.Decision, rec T) (T, error) {
	var zero T
	f, err := r.check(d, true)
	if err != nil {
		return zero, err
	}

	switch {
	case f.Unrestricted():
		if rec.GetAdminID() == "" {
			return zero, ErrAmbiguousTenant
		}
	default:
		if rec.GetAdminID() != "" && rec.GetAdminID() != f.TenantID() {
			return zero, r.denied(d, authz.ReasonCrossTenantAccess)
		}
		rec.SetAdminID(f.TenantID())
	}
	if err := r.keepOwner(rec, nil); err != nil {
		return zero, err
	}
	if err := r.checkReferences(ctx, f, rec.GetAdminID(), rec); err != nil {
		return zero, err
	}

	if rec.GetID() == "" {
		rec.SetID(id.NewUUIDv7())
	}
	rec.Stamp(time.Now())

	if err := r.backend.Insert(ctx, rec); err != nil {
		return zero, Wrap("create", r.kind.Name, err)
	}
	return rec, nil
}

// Update re-checks the stored row against the filter before writing.
// admin_id is immutable after creation.
func (r *Repository[T]) Update(ctx context.Context, d authz.Decision, rec T) (T, error) {
	var zero T
	f, err := r.check(d, true)
	if err != nil {
		return zero, err
	}

	existing, err := r.backend.Get(ctx, f, rec.GetID())
	if err != nil {
		return zero, Wrap("update", r.kind.Name, err)
	}
	if rec.GetAdminID() != "" && rec.GetAdminID() != existing.GetAdminID() {
		return zero, r.denied(d, authz.ReasonCrossTenantAccess)
	}
	rec.SetAdminID(existing.GetAdminID())
	if err := r.keepOwner(rec, &existing); err != nil {
		return zero, err
	}
	if err := r.checkReferences(ctx, f, rec.GetAdminID(), rec); err != nil {
		return zero, err
	}
	rec.Stamp(time.Now())

	if err := r.backend.Update(ctx, f, rec); err != nil {
		return zero, Wrap("update", r.kind.Name, err)
	}
	return rec, nil
}

// Delete re-checks the stored row against the filter before removing it.
func (r *Repository[T]) Delete(ctx context.Context, d authz.Decision, id string) error {
	f, err := r.check(d, true)
	if err != nil {
		return err
	}
	if _, err := r.backend.Get(ctx, f, id); err != nil {
		return Wrap("delete", r.kind.Name, err)
	}
	if err := r.backend.Delete(ctx, f, id); err != nil {
		return Wrap("delete", r.kind.Name, err)
	}
	return nil
}

// Check validates d against the repository kind without touching storage.
// write additionally rejects read-only decisions.
func (r *Repository[T]) Check(d authz.Decision, write bool) (authz.Filter, error) {
	return r.check(d, write)
}

func (r *Repository[T]) check(d authz.Decision, write bool) (authz.Filter, error) {
	if err := d.Err(); err != nil {
		return authz.Filter{}, err
	}
	f, _ := d.Allowed()
	if !slices.Contains(r.kind.Permissions, d.Permission()) {
		return authz.Filter{}, r.denied(d, authz.ReasonPermissionDenied)
	}
	if write && (f.SelfScoped() || d.Permission().SelfAccess()) {
		return authz.Filter{}, r.denied(d, authz.ReasonPermissionDenied)
	}
	return f, nil
}

func (r *Repository[T]) denied(d authz.Decision, reason authz.DenyReason) error {
	return &authz.DenyError{
		PrincipalID: d.PrincipalID(),
		Permission:  d.Permission(),
		Reason:      reason,
	}
}
