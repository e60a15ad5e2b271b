package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/catalog"
	"github.com/coachgrid/coachgrid/internal/schedule"
	"github.com/coachgrid/coachgrid/internal/scoped"
)

type record[T any] interface {
	scoped.Record
	Clone() T
}

// table is a scoped.Backend over one map of the state.
type table[T record[T]] struct {
	s        *Store
	kind     scoped.Kind
	rows     func(st *state) map[string]T
	created  func(T) int64
	onDelete func(st *state, id string)
}

func (t *table[T]) visible(f authz.Filter, rec T) bool {
	return f.Permits(rec.GetAdminID(), rec.Owner(), t.kind.Ownership.UnownedVisible())
}

func (t *table[T]) List(ctx context.Context, f authz.Filter) ([]T, error) {
	var out []T
	err := t.s.read(func(st *state) error {
		for _, rec := range t.rows(st) {
			if t.visible(f, rec) {
				out = append(out, rec.Clone())
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b T) int {
		if c := cmp.Compare(t.created(a), t.created(b)); c != 0 {
			return c
		}
		return strings.Compare(a.GetID(), b.GetID())
	})
	return out, err
}

func (t *table[T]) Get(ctx context.Context, f authz.Filter, id string) (T, error) {
	var out T
	err := t.s.read(func(st *state) error {
		rec, ok := t.rows(st)[id]
		if !ok || !t.visible(f, rec) {
			return scoped.ErrNotFound
		}
		out = rec.Clone()
		return nil
	})
	return out, err
}

func (t *table[T]) Insert(ctx context.Context, rec T) error {
	return t.s.write(func(st *state) error {
		rows := t.rows(st)
		if _, exists := rows[rec.GetID()]; exists {
			return fmt.Errorf("duplicate %s id %s", t.kind.Name, rec.GetID())
		}
		if _, ok := st.tenants[rec.GetAdminID()]; !ok {
			return fmt.Errorf("%s references unknown tenant %s", t.kind.Name, rec.GetAdminID())
		}
		rows[rec.GetID()] = rec.Clone()
		return nil
	})
}

func (t *table[T]) Update(ctx context.Context, f authz.Filter, rec T) error {
	return t.s.write(func(st *state) error {
		rows := t.rows(st)
		existing, ok := rows[rec.GetID()]
		if !ok || !t.visible(f, existing) {
			return scoped.ErrNotFound
		}
		rows[rec.GetID()] = rec.Clone()
		return nil
	})
}

func (t *table[T]) Delete(ctx context.Context, f authz.Filter, id string) error {
	return t.s.write(func(st *state) error {
		rows := t.rows(st)
		existing, ok := rows[id]
		if !ok || !t.visible(f, existing) {
			return scoped.ErrNotFound
		}
		delete(rows, id)
		if t.onDelete != nil {
			t.onDelete(st, id)
		}
		return nil
	})
}

// CatalogBackends returns the scoped backends for every catalog kind
func (s *Store) CatalogBackends() catalog.Backends {
	return catalog.Backends{
		Categories: &table[*catalog.Category]{
			s:        s,
			kind:     catalog.CategoryKind,
			rows:     func(st *state) map[string]*catalog.Category { return st.categories },
			created:  func(c *catalog.Category) int64 { return c.CreatedAt.UnixNano() },
			onDelete: nullCategoryRefs,
		},
		Exercises: &table[*catalog.Exercise]{
			s:       s,
			kind:    catalog.ExerciseKind,
			rows:    func(st *state) map[string]*catalog.Exercise { return st.exercises },
			created: func(e *catalog.Exercise) int64 { return e.CreatedAt.UnixNano() },
			onDelete: func(st *state, id string) {
				for _, we := range st.workoutExercises {
					if we.ExerciseID != nil && *we.ExerciseID == id {
						we.ExerciseID = nil
					}
				}
			},
		},
		Products: &table[*catalog.Product]{
			s:       s,
			kind:    catalog.ProductKind,
			rows:    func(st *state) map[string]*catalog.Product { return st.products },
			created: func(p *catalog.Product) int64 { return p.CreatedAt.UnixNano() },
		},
		Appointments: &table[*catalog.Appointment]{
			s:       s,
			kind:    catalog.AppointmentKind,
			rows:    func(st *state) map[string]*catalog.Appointment { return st.appointments },
			created: func(a *catalog.Appointment) int64 { return a.CreatedAt.UnixNano() },
		},
		Profiles: s,
	}
}

// Workouts returns the scoped backend for workouts
func (s *Store) Workouts() scoped.Backend[*schedule.Workout] {
	return &table[*schedule.Workout]{
		s:        s,
		kind:     schedule.WorkoutKind,
		rows:     func(st *state) map[string]*schedule.Workout { return st.workouts },
		created:  func(w *schedule.Workout) int64 { return w.CreatedAt.UnixNano() },
		onDelete: cascadeWorkout,
	}
}

// nullCategoryRefs mirrors ON DELETE SET NULL on category references.
func nullCategoryRefs(st *state, id string) {
	for _, e := range st.exercises {
		if e.CategoryID != nil && *e.CategoryID == id {
			e.CategoryID = nil
		}
	}
	for _, p := range st.products {
		if p.CategoryID != nil && *p.CategoryID == id {
			p.CategoryID = nil
		}
	}
	for _, w := range st.workouts {
		if w.CategoryID != nil && *w.CategoryID == id {
			w.CategoryID = nil
		}
	}
}

// cascadeWorkout mirrors ON DELETE CASCADE on workout children.
func cascadeWorkout(st *state, id string) {
	for k, we := range st.workoutExercises {
		if we.WorkoutID == id {
			delete(st.workoutExercises, k)
		}
	}
	delete(st.workoutDays, id)
	for k, r := range st.recommendations {
		if r.WorkoutID == id {
			delete(st.recommendations, k)
		}
	}
	for k, h := range st.history {
		if h.WorkoutID == id {
			delete(st.history, k)
		}
	}
}
