package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/catalog"
	"github.com/coachgrid/coachgrid/internal/schedule"
	"github.com/coachgrid/coachgrid/internal/scoped"
	"github.com/jackc/pgx/v5"
)

type scanner interface {
	Scan(dest ...any) error
}

// immutable columns are never written by Update
var immutable = map[string]bool{"id": true, "admin_id": true, "created_at": true}

// table is a scoped.Backend over one tenant-owned table. columns[i] pairs
// with values(rec)[i] and with the scan order.
type table[T scoped.Record] struct {
	db       *DB
	kind     scoped.Kind
	name     string
	ownerCol string
	columns  []string
	values   func(rec T) []any
	scan     func(row scanner) (T, error)
}

func (t *table[T]) selectFrom() string {
	return "SELECT " + strings.Join(t.columns, ", ") + " FROM " + t.name
}

func (t *table[T]) scope(f authz.Filter, a *args) string {
	return scopeClause(f, "", t.ownerCol, t.kind.Ownership.UnownedVisible(), a)
}

func (t *table[T]) List(ctx context.Context, f authz.Filter) ([]T, error) {
	var a args
	rows, err := t.db.pool.Query(ctx, t.selectFrom()+" WHERE "+t.scope(f, &a)+" ORDER BY created_at, id", a...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		rec, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", t.kind.Name, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (t *table[T]) Get(ctx context.Context, f authz.Filter, id string) (T, error) {
	var zero T
	a := args{id}
	rec, err := t.scan(t.db.pool.QueryRow(ctx, t.selectFrom()+" WHERE id = $1 AND "+t.scope(f, &a), a...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, scoped.ErrNotFound
		}
		return zero, fmt.Errorf("failed to get %s: %w", t.kind.Name, err)
	}
	return rec, nil
}

func (t *table[T]) Insert(ctx context.Context, rec T) error {
	placeholders := make([]string, len(t.columns))
	for i := range t.columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	_, err := t.db.pool.Exec(ctx,
		"INSERT INTO "+t.name+" ("+strings.Join(t.columns, ", ")+") VALUES ("+strings.Join(placeholders, ", ")+")",
		t.values(rec)...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%s references a missing row: %w", t.kind.Name, err)
		}
		return fmt.Errorf("failed to insert %s: %w", t.kind.Name, err)
	}
	return nil
}

func (t *table[T]) Update(ctx context.Context, f authz.Filter, rec T) error {
	a := args{rec.GetID()}
	var sets []string
	for i, v := range t.values(rec) {
		if immutable[t.columns[i]] {
			continue
		}
		sets = append(sets, t.columns[i]+" = "+a.add(v))
	}
	result, err := t.db.pool.Exec(ctx,
		"UPDATE "+t.name+" SET "+strings.Join(sets, ", ")+" WHERE id = $1 AND "+t.scope(f, &a),
		a...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", t.kind.Name, err)
	}
	if result.RowsAffected() == 0 {
		return scoped.ErrNotFound
	}
	return nil
}

func (t *table[T]) Delete(ctx context.Context, f authz.Filter, id string) error {
	a := args{id}
	result, err := t.db.pool.Exec(ctx, "DELETE FROM "+t.name+" WHERE id = $1 AND "+t.scope(f, &a), a...)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", t.kind.Name, err)
	}
	if result.RowsAffected() == 0 {
		return scoped.ErrNotFound
	}
	return nil
}

// CatalogBackends returns the postgres backends of the catalog kinds.
// Category deletion relies on ON DELETE SET NULL for dependent rows.
func CatalogBackends(db *DB) catalog.Backends {
	return catalog.Backends{
		Categories: &table[*catalog.Category]{
			db: db, kind: catalog.CategoryKind, name: "categories",
			columns: []string{"id", "admin_id", "name", "description", "created_at", "updated_at"},
			values: func(c *catalog.Category) []any {
				return []any{c.ID, c.AdminID, c.Name, c.Description, c.CreatedAt, c.UpdatedAt}
			},
			scan: func(row scanner) (*catalog.Category, error) {
				var c catalog.Category
				err := row.Scan(&c.ID, &c.AdminID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
				return &c, err
			},
		},
		Exercises: &table[*catalog.Exercise]{
			db: db, kind: catalog.ExerciseKind, name: "exercises",
			columns: []string{"id", "admin_id", "category_id", "name", "description", "muscle_group", "video_url", "created_at", "updated_at"},
			values: func(e *catalog.Exercise) []any {
				return []any{e.ID, e.AdminID, e.CategoryID, e.Name, e.Description, e.MuscleGroup, e.VideoURL, e.CreatedAt, e.UpdatedAt}
			},
			scan: func(row scanner) (*catalog.Exercise, error) {
				var e catalog.Exercise
				err := row.Scan(&e.ID, &e.AdminID, &e.CategoryID, &e.Name, &e.Description, &e.MuscleGroup, &e.VideoURL, &e.CreatedAt, &e.UpdatedAt)
				return &e, err
			},
		},
		Products: &table[*catalog.Product]{
			db: db, kind: catalog.ProductKind, name: "products",
			columns: []string{"id", "admin_id", "category_id", "name", "description", "price_cents", "stock", "created_at", "updated_at"},
			values: func(p *catalog.Product) []any {
				return []any{p.ID, p.AdminID, p.CategoryID, p.Name, p.Description, p.PriceCents, p.Stock, p.CreatedAt, p.UpdatedAt}
			},
			scan: func(row scanner) (*catalog.Product, error) {
				var p catalog.Product
				err := row.Scan(&p.ID, &p.AdminID, &p.CategoryID, &p.Name, &p.Description, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
				return &p, err
			},
		},
		Appointments: &table[*catalog.Appointment]{
			db: db, kind: catalog.AppointmentKind, name: "appointments", ownerCol: "user_id",
			columns: []string{"id", "admin_id", "user_id", "title", "starts_at", "ends_at", "status", "notes", "created_at", "updated_at"},
			values: func(a *catalog.Appointment) []any {
				return []any{a.ID, a.AdminID, a.UserID, a.Title, a.StartsAt, a.EndsAt, a.Status, a.Notes, a.CreatedAt, a.UpdatedAt}
			},
			scan: func(row scanner) (*catalog.Appointment, error) {
				var a catalog.Appointment
				err := row.Scan(&a.ID, &a.AdminID, &a.UserID, &a.Title, &a.StartsAt, &a.EndsAt, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
				return &a, err
			},
		},
		Profiles: NewProfileRepository(db),
	}
}

var workoutColumns = []string{"id", "admin_id", "user_id", "category_id", "title", "description", "duration_minutes", "level", "created_at", "updated_at"}

func scanWorkout(row scanner) (*schedule.Workout, error) {
	var w schedule.Workout
	err := row.Scan(&w.ID, &w.AdminID, &w.UserID, &w.CategoryID, &w.Title, &w.Description, &w.DurationMinutes, &w.Level, &w.CreatedAt, &w.UpdatedAt)
	return &w, err
}

// Workouts returns the postgres backend of the workout kind. Program rows,
// days, recommendations and history cascade on delete.
func Workouts(db *DB) scoped.Backend[*schedule.Workout] {
	return &table[*schedule.Workout]{
		db: db, kind: schedule.WorkoutKind, name: "workouts", ownerCol: "user_id",
		columns: workoutColumns,
		values: func(w *schedule.Workout) []any {
			return []any{w.ID, w.AdminID, w.UserID, w.CategoryID, w.Title, w.Description, w.DurationMinutes, w.Level, w.CreatedAt, w.UpdatedAt}
		},
		scan: scanWorkout,
	}
}
