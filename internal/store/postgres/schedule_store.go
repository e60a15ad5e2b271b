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

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/schedule"
	"github.com/coachgrid/coachgrid/internal/scoped"
	"github.com/jackc/pgx/v5"
)

const exerciseColumns = `id, workout_id, exercise_id, day_of_week, order_position, sets, reps,
	duration_seconds, rest_seconds, weight, notes, is_title_section, section_title, created_at`

// bucketClause matches one (workout, day) bucket; a nil day is the all-days bucket.
const bucketClause = `workout_id = $1 AND day_of_week IS NOT DISTINCT FROM $2::text`

func dayArg(d *schedule.Day) any {
	if d == nil {
		return nil
	}
	return string(*d)
}

func scanExercise(row scanner) (*schedule.WorkoutExercise, error) {
	var e schedule.WorkoutExercise
	var day *string
	err := row.Scan(&e.ID, &e.WorkoutID, &e.ExerciseID, &day, &e.OrderPosition, &e.Sets, &e.Reps,
		&e.DurationSeconds, &e.RestSeconds, &e.Weight, &e.Notes, &e.IsTitleSection, &e.SectionTitle, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if day != nil {
		d := schedule.Day(*day)
		e.DayOfWeek = &d
	}
	return &e, nil
}

// scheduleQueries implements schedule.Queries over the pool or a transaction
type scheduleQueries struct {
	q dbtx
}

func (s scheduleQueries) ListExercises(ctx context.Context, workoutID string, day *schedule.Day) ([]*schedule.WorkoutExercise, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+exerciseColumns+` FROM workout_exercises
		WHERE `+bucketClause+`
		ORDER BY order_position, created_at, id
	`, workoutID, dayArg(day))
	if err != nil {
		return nil, fmt.Errorf("failed to list workout exercises: %w", err)
	}
	defer rows.Close()

	var out []*schedule.WorkoutExercise
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workout exercise: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s scheduleQueries) GetExercise(ctx context.Context, id string) (*schedule.WorkoutExercise, error) {
	e, err := scanExercise(s.q.QueryRow(ctx, `
		SELECT `+exerciseColumns+` FROM workout_exercises WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, scoped.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get workout exercise: %w", err)
	}
	return e, nil
}

func (s scheduleQueries) positionTaken(ctx context.Context, workoutID string, day *schedule.Day, position int, except string) (bool, error) {
	var taken bool
	err := s.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM workout_exercises
			WHERE `+bucketClause+` AND order_position = $3 AND id <> $4
		)
	`, workoutID, dayArg(day), position, except).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check position: %w", err)
	}
	return taken, nil
}

func (s scheduleQueries) InsertExercise(ctx context.Context, e *schedule.WorkoutExercise) error {
	taken, err := s.positionTaken(ctx, e.WorkoutID, e.DayOfWeek, e.OrderPosition, "")
	if err != nil {
		return err
	}
	if taken {
		return schedule.ErrConflictingOrder
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO workout_exercises (`+exerciseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		e.ID, e.WorkoutID, e.ExerciseID, dayArg(e.DayOfWeek), e.OrderPosition, e.Sets, e.Reps,
		e.DurationSeconds, e.RestSeconds, e.Weight, e.Notes, e.IsTitleSection, e.SectionTitle, e.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return schedule.ErrConflictingOrder
		}
		if isForeignKeyViolation(err) {
			return scoped.ErrNotFound
		}
		return fmt.Errorf("failed to insert workout exercise: %w", err)
	}
	return nil
}

func (s scheduleQueries) UpdateExercise(ctx context.Context, e *schedule.WorkoutExercise) error {
	result, err := s.q.Exec(ctx, `
		UPDATE workout_exercises SET
			exercise_id = $2,
			sets = $3,
			reps = $4,
			duration_seconds = $5,
			rest_seconds = $6,
			weight = $7,
			notes = $8,
			is_title_section = $9,
			section_title = $10
		WHERE id = $1
	`,
		e.ID, e.ExerciseID, e.Sets, e.Reps, e.DurationSeconds, e.RestSeconds, e.Weight,
		e.Notes, e.IsTitleSection, e.SectionTitle,
	)
	if err != nil {
		return fmt.Errorf("failed to update workout exercise: %w", err)
	}
	if result.RowsAffected() == 0 {
		return scoped.ErrNotFound
	}
	return nil
}

func (s scheduleQueries) SetExercisePosition(ctx context.Context, id string, position int) error {
	cur, err := s.GetExercise(ctx, id)
	if err != nil {
		return err
	}
	taken, err := s.positionTaken(ctx, cur.WorkoutID, cur.DayOfWeek, position, id)
	if err != nil {
		return err
	}
	if taken {
		return schedule.ErrConflictingOrder
	}
	if _, err := s.q.Exec(ctx, `UPDATE workout_exercises SET order_position = $2 WHERE id = $1`, id, position); err != nil {
		if isUniqueViolation(err) {
			return schedule.ErrConflictingOrder
		}
		return fmt.Errorf("failed to set position: %w", err)
	}
	return nil
}

func (s scheduleQueries) ShiftPositions(ctx context.Context, workoutID string, day *schedule.Day, from, to, delta int) error {
	_, err := s.q.Exec(ctx, `
		UPDATE workout_exercises SET order_position = order_position + $5
		WHERE `+bucketClause+` AND order_position BETWEEN $3 AND $4
	`, workoutID, dayArg(day), from, to, delta)
	if err != nil {
		if isUniqueViolation(err) {
			return schedule.ErrConflictingOrder
		}
		return fmt.Errorf("failed to shift positions: %w", err)
	}

	var duplicated bool
	err = s.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM workout_exercises
			WHERE `+bucketClause+`
			GROUP BY order_position HAVING count(*) > 1
		)
	`, workoutID, dayArg(day)).Scan(&duplicated)
	if err != nil {
		return fmt.Errorf("failed to verify positions: %w", err)
	}
	if duplicated {
		return schedule.ErrConflictingOrder
	}
	return nil
}

func (s scheduleQueries) DeleteExercise(ctx context.Context, id string) error {
	result, err := s.q.Exec(ctx, `DELETE FROM workout_exercises WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workout exercise: %w", err)
	}
	if result.RowsAffected() == 0 {
		return scoped.ErrNotFound
	}
	return nil
}

func (s scheduleQueries) DeleteExercisesByDay(ctx context.Context, workoutID string, day schedule.Day) (int, error) {
	result, err := s.q.Exec(ctx, `
		DELETE FROM workout_exercises WHERE workout_id = $1 AND day_of_week = $2
	`, workoutID, string(day))
	if err != nil {
		return 0, fmt.Errorf("failed to clear day: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func (s scheduleQueries) ListDays(ctx context.Context, workoutID string) ([]schedule.Day, error) {
	rows, err := s.q.Query(ctx, `SELECT day_of_week FROM workout_days WHERE workout_id = $1`, workoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to list days: %w", err)
	}
	defer rows.Close()

	var days []schedule.Day
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan day: %w", err)
		}
		days = append(days, schedule.Day(d))
	}
	return days, rows.Err()
}

func (s scheduleQueries) ReplaceDays(ctx context.Context, workoutID string, days []schedule.Day) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM workout_days WHERE workout_id = $1`, workoutID); err != nil {
		return fmt.Errorf("failed to clear days: %w", err)
	}
	for _, d := range days {
		if err := s.AddDay(ctx, workoutID, d); err != nil {
			return err
		}
	}
	return nil
}

func (s scheduleQueries) AddDay(ctx context.Context, workoutID string, day schedule.Day) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO workout_days (workout_id, day_of_week) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, workoutID, string(day))
	if err != nil {
		if isForeignKeyViolation(err) {
			return scoped.ErrNotFound
		}
		return fmt.Errorf("failed to add day: %w", err)
	}
	return nil
}

func (s scheduleQueries) SetWorkoutOwner(ctx context.Context, workoutID string, userID *string) error {
	result, err := s.q.Exec(ctx, `
		UPDATE workouts SET user_id = $2, updated_at = now() WHERE id = $1
	`, workoutID, userID)
	if err != nil {
		return fmt.Errorf("failed to set workout owner: %w", err)
	}
	if result.RowsAffected() == 0 {
		return scoped.ErrNotFound
	}
	return nil
}

func (s scheduleQueries) InsertRecommendation(ctx context.Context, r *schedule.Recommendation) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO workout_recommendations (id, workout_id, user_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, r.ID, r.WorkoutID, r.UserID, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert recommendation: %w", err)
	}
	return nil
}

func (s scheduleQueries) RecommendedWorkouts(ctx context.Context, f authz.Filter, recipientID string) ([]*schedule.Workout, error) {
	a := args{recipientID}
	scope := scopeClause(f, "w", "user_id", schedule.WorkoutKind.Ownership.UnownedVisible(), &a)
	rows, err := s.q.Query(ctx, `
		SELECT w.`+joinColumns("w", workoutColumns)+` FROM workouts w
		WHERE EXISTS (
			SELECT 1 FROM workout_recommendations r
			WHERE r.workout_id = w.id AND (r.user_id IS NULL OR r.user_id = $1)
		)
		AND (w.user_id IS NULL OR w.user_id = $1)
		AND `+scope+`
		ORDER BY w.created_at, w.id
	`, a...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommended workouts: %w", err)
	}
	defer rows.Close()

	var out []*schedule.Workout
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workout: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s scheduleQueries) InsertHistory(ctx context.Context, h *schedule.HistoryEntry) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO workout_history (id, workout_id, user_id, status, assigned_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, h.ID, h.WorkoutID, h.UserID, string(h.Status), h.AssignedAt, h.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}
	return nil
}

func (s scheduleQueries) PendingHistory(ctx context.Context, workoutID, userID string) (*schedule.HistoryEntry, error) {
	var h schedule.HistoryEntry
	var status string
	err := s.q.QueryRow(ctx, `
		SELECT id, workout_id, user_id, status, assigned_at, completed_at
		FROM workout_history
		WHERE workout_id = $1 AND user_id = $2 AND status = 'pending'
		ORDER BY assigned_at, id
		LIMIT 1
	`, workoutID, userID).Scan(&h.ID, &h.WorkoutID, &h.UserID, &status, &h.AssignedAt, &h.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, scoped.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pending history: %w", err)
	}
	h.Status = schedule.HistoryStatus(status)
	return &h, nil
}

func (s scheduleQueries) UpdateHistory(ctx context.Context, h *schedule.HistoryEntry) error {
	result, err := s.q.Exec(ctx, `
		UPDATE workout_history SET status = $2, completed_at = $3 WHERE id = $1
	`, h.ID, string(h.Status), h.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update history: %w", err)
	}
	if result.RowsAffected() == 0 {
		return scoped.ErrNotFound
	}
	return nil
}

var _ schedule.Store = (*ScheduleStore)(nil)

// ScheduleStore implements schedule.Store. Calls made outside WithTx run
// as single statements on the pool.
type ScheduleStore struct {
	scheduleQueries
	db *DB
}

// NewScheduleStore creates a new schedule store
func NewScheduleStore(db *DB) *ScheduleStore {
	return &ScheduleStore{scheduleQueries: scheduleQueries{q: db.pool}, db: db}
}

// WithTx runs fn in one transaction. A position collision detected by the
// deferred constraint at commit is reported as ErrConflictingOrder.
func (s *ScheduleStore) WithTx(ctx context.Context, fn func(q schedule.Queries) error) error {
	err := s.db.withTx(ctx, func(tx pgx.Tx) error {
		return fn(scheduleQueries{q: tx})
	})
	if err != nil && isUniqueViolation(err) {
		return schedule.ErrConflictingOrder
	}
	return err
}

func joinColumns(alias string, columns []string) string {
	out := columns[0]
	for _, c := range columns[1:] {
		out += ", " + alias + "." + c
	}
	return out
}
