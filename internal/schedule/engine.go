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

package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/coachgrid/coachgrid/internal/audit"
	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/catalog"
	"github.com/coachgrid/coachgrid/internal/id"
	"github.com/coachgrid/coachgrid/internal/identity"
	"github.com/coachgrid/coachgrid/internal/observability/logger"
	"github.com/coachgrid/coachgrid/internal/observability/metrics"
	"github.com/coachgrid/coachgrid/internal/scoped"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// parkedPosition holds a row out of the way while its bucket is shifted.
const parkedPosition = 0

// Engine owns workout programs: ordering, cloning across days and assignment.
type Engine struct {
	store     Store
	workouts  *scoped.Repository[*Workout]
	exercises scoped.Lookup
	profiles  identity.ProfileRepository
	audit     audit.Logger
	tracer    trace.Tracer

	cloneDays     metric.Int64Counter
	cloneDuration metric.Float64Histogram
}

// References resolves the catalog rows that workouts and their programs point at.
type References struct {
	Categories scoped.Lookup
	Exercises  scoped.Lookup
}

// ReferencesFrom builds References over the catalog backends.
func ReferencesFrom(b catalog.Backends) References {
	return References{
		Categories: scoped.LookupIn(b.Categories),
		Exercises:  scoped.LookupIn(b.Exercises),
	}
}

// NewEngine creates a new schedule engine. A nil meter records nothing.
func NewEngine(store Store, workouts scoped.Backend[*Workout], refs References, profiles identity.ProfileRepository, auditLogger audit.Logger, meter *metrics.Meter) *Engine {
	if meter == nil {
		meter = metrics.Noop()
	}
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	repo := scoped.NewRepository(WorkoutKind, workouts)
	repo.WithReference(catalog.CategoryKind.Name, refs.Categories)
	return &Engine{
		store:         store,
		workouts:      repo,
		exercises:     refs.Exercises,
		profiles:      profiles,
		audit:         auditLogger,
		tracer:        otel.Tracer("coachgrid/schedule"),
		cloneDays:     meter.MustCounter("schedule.clone.days", "Target days processed by clone"),
		cloneDuration: meter.MustHistogram("schedule.clone.duration", "Duration of clone operations", "ms"),
	}
}

// Workouts returns the tenant-scoped workout repository
func (e *Engine) Workouts() *scoped.Repository[*Workout] {
	return e.workouts
}

// Catalog lists the workouts visible to the caller. Users see tenant-public
// workouts plus the ones exclusive to them.
func (e *Engine) Catalog(ctx context.Context, d authz.Decision) ([]*Workout, error) {
	return e.workouts.List(ctx, d)
}

// AddExercise appends entry to its (workout, day) bucket. A zero
// OrderPosition is assigned max+1; an explicit one must be unused.
func (e *Engine) AddExercise(ctx context.Context, d authz.Decision, workoutID string, entry *WorkoutExercise) (*WorkoutExercise, error) {
	if entry.OrderPosition < 0 {
		return nil, ErrInvalidPosition
	}
	w, err := e.workouts.GetForWrite(ctx, d, workoutID)
	if err != nil {
		return nil, err
	}
	if err := e.exerciseInTenant(ctx, d, w, entry.ExerciseID); err != nil {
		return nil, err
	}

	row := entry.Clone()
	row.ID = id.NewUUIDv7()
	row.WorkoutID = workoutID
	row.CreatedAt = time.Now()

	err = e.store.WithTx(ctx, func(q Queries) error {
		bucket, err := q.ListExercises(ctx, workoutID, row.DayOfWeek)
		if err != nil {
			return err
		}
		if row.OrderPosition == 0 {
			row.OrderPosition = maxPosition(bucket) + 1
		} else if slices.ContainsFunc(bucket, func(x *WorkoutExercise) bool {
			return x.OrderPosition == row.OrderPosition
		}) {
			return ErrConflictingOrder
		}
		if err := q.InsertExercise(ctx, row); err != nil {
			return err
		}
		if row.DayOfWeek != nil {
			return q.AddDay(ctx, workoutID, *row.DayOfWeek)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("add exercise", err)
	}
	return row, nil
}

// UpdateExercise rewrites the content fields of a row. Position and day
// are changed only through Reorder and CloneDay.
func (e *Engine) UpdateExercise(ctx context.Context, d authz.Decision, patch *WorkoutExercise) (*WorkoutExercise, error) {
	row, w, err := e.exerciseForWrite(ctx, d, patch.ID)
	if err != nil {
		return nil, err
	}
	if err := e.exerciseInTenant(ctx, d, w, patch.ExerciseID); err != nil {
		return nil, err
	}

	row.ExerciseID = patch.ExerciseID
	row.Sets = patch.Sets
	row.Reps = patch.Reps
	row.DurationSeconds = patch.DurationSeconds
	row.RestSeconds = patch.RestSeconds
	row.Weight = patch.Weight
	row.Notes = patch.Notes
	row.IsTitleSection = patch.IsTitleSection
	row.SectionTitle = patch.SectionTitle

	if err := e.store.UpdateExercise(ctx, row); err != nil {
		return nil, wrap("update exercise", err)
	}
	return row, nil
}

// RemoveExercise deletes one row. Remaining positions are left untouched.
func (e *Engine) RemoveExercise(ctx context.Context, d authz.Decision, exerciseID string) error {
	if _, _, err := e.exerciseForWrite(ctx, d, exerciseID); err != nil {
		return err
	}
	return wrap("remove exercise", e.store.DeleteExercise(ctx, exerciseID))
}

// Reorder moves a row to newPosition, shifting the rows between the old and
// new positions by one. The whole move commits or rolls back as a unit.
func (e *Engine) Reorder(ctx context.Context, d authz.Decision, exerciseID string, newPosition int) error {
	ctx, span := e.tracer.Start(ctx, "schedule.Reorder", trace.WithAttributes(
		attribute.String("exercise_id", exerciseID),
		attribute.Int("new_position", newPosition),
	))
	defer span.End()

	if newPosition < 1 {
		return ErrInvalidPosition
	}
	row, _, err := e.exerciseForWrite(ctx, d, exerciseID)
	if err != nil {
		return err
	}

	err = e.store.WithTx(ctx, func(q Queries) error {
		cur, err := q.GetExercise(ctx, exerciseID)
		if err != nil {
			return err
		}
		old := cur.OrderPosition
		if old == newPosition {
			return nil
		}
		if err := q.SetExercisePosition(ctx, exerciseID, parkedPosition); err != nil {
			return err
		}
		if newPosition < old {
			err = q.ShiftPositions(ctx, cur.WorkoutID, cur.DayOfWeek, newPosition, old-1, 1)
		} else {
			err = q.ShiftPositions(ctx, cur.WorkoutID, cur.DayOfWeek, old+1, newPosition, -1)
		}
		if err != nil {
			return err
		}
		return q.SetExercisePosition(ctx, exerciseID, newPosition)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reorder failed")
		return wrap("reorder", err)
	}

	e.audit.Log(ctx, audit.Event{
		Type:     audit.TypeExercisesReordered,
		ActorID:  d.PrincipalID(),
		Resource: row.WorkoutID,
		Metadata: map[string]any{"exercise_id": exerciseID, "position": newPosition},
	})
	return nil
}

// ListByDay returns the program for day in display order. When the day has
// no rows of its own the all-days rows are returned. A nil day lists the
// all-days rows directly.
func (e *Engine) ListByDay(ctx context.Context, d authz.Decision, workoutID string, day *Day) ([]*WorkoutExercise, error) {
	if _, err := e.workouts.Get(ctx, d, workoutID); err != nil {
		return nil, err
	}
	rows, err := e.store.ListExercises(ctx, workoutID, day)
	if err != nil {
		return nil, wrap("list exercises", err)
	}
	if len(rows) == 0 && day != nil {
		rows, err = e.store.ListExercises(ctx, workoutID, nil)
		if err != nil {
			return nil, wrap("list exercises", err)
		}
	}
	return rows, nil
}

// SetDays replaces the workout's day set.
func (e *Engine) SetDays(ctx context.Context, d authz.Decision, workoutID string, days []Day) ([]Day, error) {
	if _, err := e.workouts.GetForWrite(ctx, d, workoutID); err != nil {
		return nil, err
	}
	normalized, err := normalizeDays(days)
	if err != nil {
		return nil, err
	}
	if err := e.store.ReplaceDays(ctx, workoutID, normalized); err != nil {
		return nil, wrap("set days", err)
	}
	return normalized, nil
}

// Days lists the workout's days in week order.
func (e *Engine) Days(ctx context.Context, d authz.Decision, workoutID string) ([]Day, error) {
	if _, err := e.workouts.Get(ctx, d, workoutID); err != nil {
		return nil, err
	}
	days, err := e.store.ListDays(ctx, workoutID)
	if err != nil {
		return nil, wrap("list days", err)
	}
	sortDays(days)
	return days, nil
}

// CloneDay replaces the program of every target day with a copy of the
// source day. Each target day commits independently; when any of them fails
// the report is returned together with a *PartialCloneError.
func (e *Engine) CloneDay(ctx context.Context, d authz.Decision, workoutID string, source Day, targets []Day) (*CloneReport, error) {
	ctx, span := e.tracer.Start(ctx, "schedule.CloneDay", trace.WithAttributes(
		attribute.String("workout_id", workoutID),
		attribute.String("source_day", string(source)),
		attribute.Int("target_days", len(targets)),
	))
	defer span.End()
	start := time.Now()

	if source.Index() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDay, source)
	}
	if len(targets) == 0 {
		return nil, ErrNoTargetDays
	}
	for _, t := range targets {
		if t.Index() < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDay, t)
		}
	}
	w, err := e.workouts.GetForWrite(ctx, d, workoutID)
	if err != nil {
		return nil, err
	}

	rows, err := e.store.ListExercises(ctx, workoutID, &source)
	if err != nil {
		return nil, wrap("clone", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptySource
	}

	report := &CloneReport{WorkoutID: workoutID, Source: source}
	for _, target := range targets {
		n, err := e.cloneInto(ctx, workoutID, rows, target)
		outcome := "success"
		if err != nil {
			outcome = "failure"
			err = wrap("clone", err)
			slog.WarnContext(ctx, "clone to day failed",
				logger.WorkoutID(workoutID),
				logger.Day(string(target)),
				logger.Error(err),
			)
		}
		e.cloneDays.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		report.Results = append(report.Results, DayResult{Day: target, Count: n, Err: err})
	}
	e.cloneDuration.Record(ctx, float64(time.Since(start).Milliseconds()))

	meta := map[string]any{"source": string(source), "targets": targets, "counts": report.Counts()}
	if failed := report.Failed(); len(failed) > 0 {
		span.SetStatus(codes.Error, "partial clone failure")
		e.audit.Log(ctx, audit.Event{
			Type:     audit.TypeCloneFailed,
			TenantID: w.AdminID,
			ActorID:  d.PrincipalID(),
			Resource: workoutID,
			Metadata: meta,
		})
		return report, &PartialCloneError{Report: report}
	}

	slog.DebugContext(ctx, "day cloned",
		logger.WorkoutID(workoutID),
		logger.Day(string(source)),
		logger.Count(len(rows)),
	)
	e.audit.Log(ctx, audit.Event{
		Type:     audit.TypeDayCloned,
		TenantID: w.AdminID,
		ActorID:  d.PrincipalID(),
		Resource: workoutID,
		Metadata: meta,
	})
	return report, nil
}

func (e *Engine) cloneInto(ctx context.Context, workoutID string, rows []*WorkoutExercise, target Day) (int, error) {
	n := 0
	err := e.store.WithTx(ctx, func(q Queries) error {
		n = 0
		if _, err := q.DeleteExercisesByDay(ctx, workoutID, target); err != nil {
			return err
		}
		now := time.Now()
		for _, src := range rows {
			cp := src.Clone()
			cp.ID = id.NewUUIDv7()
			day := target
			cp.DayOfWeek = &day
			cp.CreatedAt = now
			if err := q.InsertExercise(ctx, cp); err != nil {
				return err
			}
			n++
		}
		return q.AddDay(ctx, workoutID, target)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// AssignWorkoutToUser makes the workout exclusive to userID, recommends it to
// that user and records a pending history entry, in one transaction.
func (e *Engine) AssignWorkoutToUser(ctx context.Context, d authz.Decision, workoutID, userID string) (*HistoryEntry, error) {
	w, err := e.workouts.GetForWrite(ctx, d, workoutID)
	if err != nil {
		return nil, err
	}

	if err := e.sameTenantUser(ctx, w, userID); err != nil {
		return nil, err
	}

	now := time.Now()
	entry := &HistoryEntry{
		ID:         id.NewUUIDv7(),
		WorkoutID:  workoutID,
		UserID:     userID,
		Status:     StatusPending,
		AssignedAt: now,
	}
	err = e.store.WithTx(ctx, func(q Queries) error {
		if err := q.SetWorkoutOwner(ctx, workoutID, &userID); err != nil {
			return err
		}
		if err := q.InsertRecommendation(ctx, &Recommendation{
			ID:        id.NewUUIDv7(),
			WorkoutID: workoutID,
			UserID:    &userID,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return q.InsertHistory(ctx, entry)
	})
	if err != nil {
		return nil, wrap("assign", err)
	}

	e.audit.Log(ctx, audit.Event{
		Type:     audit.TypeWorkoutAssigned,
		TenantID: w.AdminID,
		ActorID:  d.PrincipalID(),
		Resource: workoutID,
		Metadata: map[string]any{"user_id": userID},
	})
	return entry, nil
}

// Recommend records a recommendation of the workout. A nil userID
// recommends it to every user of the workout's tenant.
func (e *Engine) Recommend(ctx context.Context, d authz.Decision, workoutID string, userID *string) (*Recommendation, error) {
	w, err := e.workouts.GetForWrite(ctx, d, workoutID)
	if err != nil {
		return nil, err
	}
	if userID != nil {
		if err := e.sameTenantUser(ctx, w, *userID); err != nil {
			return nil, err
		}
	}
	rec := &Recommendation{
		ID:        id.NewUUIDv7(),
		WorkoutID: workoutID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	if err := e.store.InsertRecommendation(ctx, rec); err != nil {
		return nil, wrap("recommend", err)
	}
	return rec, nil
}

// Recommended lists the workouts recommended to the caller. A workout
// exclusive to another user is never included, even when recommended to all.
func (e *Engine) Recommended(ctx context.Context, d authz.Decision) ([]*Workout, error) {
	f, err := e.workouts.Check(d, false)
	if err != nil {
		return nil, err
	}
	workouts, err := e.store.RecommendedWorkouts(ctx, f, d.PrincipalID())
	if err != nil {
		return nil, wrap("recommended", err)
	}
	return workouts, nil
}

// CompleteWorkout marks the caller's pending history entry for the workout as completed.
func (e *Engine) CompleteWorkout(ctx context.Context, d authz.Decision, workoutID string) (*HistoryEntry, error) {
	w, err := e.workouts.Get(ctx, d, workoutID)
	if err != nil {
		return nil, err
	}
	entry, err := e.store.PendingHistory(ctx, workoutID, d.PrincipalID())
	if err != nil {
		return nil, wrap("complete", err)
	}
	now := time.Now()
	entry.Status = StatusCompleted
	entry.CompletedAt = &now
	if err := e.store.UpdateHistory(ctx, entry); err != nil {
		return nil, wrap("complete", err)
	}

	e.audit.Log(ctx, audit.Event{
		Type:     audit.TypeWorkoutCompleted,
		TenantID: w.AdminID,
		ActorID:  d.PrincipalID(),
		Resource: workoutID,
	})
	return entry, nil
}

// sameTenantUser reports NotFound for users outside the workout's tenant.
func (e *Engine) sameTenantUser(ctx context.Context, w *Workout, userID string) error {
	profile, err := e.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrProfileNotFound) {
			return fmt.Errorf("%w: user", ErrNotFound)
		}
		return wrap("get profile", err)
	}
	if profile.TenantID() != w.AdminID {
		return fmt.Errorf("%w: user", ErrNotFound)
	}
	return nil
}

// exerciseForWrite checks the decision before touching storage so that
// denied callers cannot probe for row existence.
func (e *Engine) exerciseForWrite(ctx context.Context, d authz.Decision, exerciseID string) (*WorkoutExercise, *Workout, error) {
	if _, err := e.workouts.Check(d, true); err != nil {
		return nil, nil, err
	}
	row, err := e.store.GetExercise(ctx, exerciseID)
	if err != nil {
		return nil, nil, wrap("get exercise", err)
	}
	w, err := e.workouts.GetForWrite(ctx, d, row.WorkoutID)
	if err != nil {
		return nil, nil, err
	}
	return row, w, nil
}

// exerciseInTenant reports NotFound for library exercises outside the workout's tenant.
func (e *Engine) exerciseInTenant(ctx context.Context, d authz.Decision, w *Workout, exerciseID *string) error {
	if exerciseID == nil {
		return nil
	}
	f, err := e.workouts.Check(d, true)
	if err != nil {
		return err
	}
	return e.exercises.Within(ctx, f, w.AdminID, catalog.ExerciseKind.Name, *exerciseID)
}

func wrap(op string, err error) error {
	return scoped.Wrap(op, "workout_exercise", err,
		ErrConflictingOrder, ErrEmptySource, ErrInvalidPosition, ErrInvalidDay)
}

func maxPosition(rows []*WorkoutExercise) int {
	highest := 0
	for _, r := range rows {
		highest = max(highest, r.OrderPosition)
	}
	return highest
}

func normalizeDays(days []Day) ([]Day, error) {
	out := make([]Day, 0, len(days))
	for _, d := range days {
		if d.Index() < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDay, d)
		}
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	sortDays(out)
	return out, nil
}

func sortDays(days []Day) {
	slices.SortFunc(days, func(a, b Day) int { return a.Index() - b.Index() })
}
