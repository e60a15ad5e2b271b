package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/schedule"
	"github.com/coachgrid/coachgrid/internal/scoped"
)

// scheduleQueries implements schedule.Queries on one state snapshot.
// Callers hold the store lock.
type scheduleQueries struct {
	st   *state
	hook func(e *schedule.WorkoutExercise) error
}

func (q scheduleQueries) bucket(workoutID string, day *schedule.Day) []*schedule.WorkoutExercise {
	var rows []*schedule.WorkoutExercise
	for _, e := range q.st.workoutExercises {
		if e.WorkoutID == workoutID && e.SameDay(day) {
			rows = append(rows, e)
		}
	}
	slices.SortFunc(rows, func(a, b *schedule.WorkoutExercise) int {
		if c := cmp.Compare(a.OrderPosition, b.OrderPosition); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return rows
}

func (q scheduleQueries) positionTaken(workoutID string, day *schedule.Day, position int, except string) bool {
	for _, e := range q.bucket(workoutID, day) {
		if e.ID != except && e.OrderPosition == position {
			return true
		}
	}
	return false
}

func (q scheduleQueries) ListExercises(ctx context.Context, workoutID string, day *schedule.Day) ([]*schedule.WorkoutExercise, error) {
	rows := q.bucket(workoutID, day)
	out := make([]*schedule.WorkoutExercise, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out, nil
}

func (q scheduleQueries) GetExercise(ctx context.Context, id string) (*schedule.WorkoutExercise, error) {
	e, ok := q.st.workoutExercises[id]
	if !ok {
		return nil, scoped.ErrNotFound
	}
	return e.Clone(), nil
}

func (q scheduleQueries) InsertExercise(ctx context.Context, e *schedule.WorkoutExercise) error {
	if q.hook != nil {
		if err := q.hook(e); err != nil {
			return err
		}
	}
	if _, ok := q.st.workouts[e.WorkoutID]; !ok {
		return scoped.ErrNotFound
	}
	if q.positionTaken(e.WorkoutID, e.DayOfWeek, e.OrderPosition, "") {
		return schedule.ErrConflictingOrder
	}
	q.st.workoutExercises[e.ID] = e.Clone()
	return nil
}

func (q scheduleQueries) UpdateExercise(ctx context.Context, e *schedule.WorkoutExercise) error {
	existing, ok := q.st.workoutExercises[e.ID]
	if !ok {
		return scoped.ErrNotFound
	}
	cp := e.Clone()
	cp.WorkoutID = existing.WorkoutID
	cp.DayOfWeek = existing.DayOfWeek
	cp.OrderPosition = existing.OrderPosition
	cp.CreatedAt = existing.CreatedAt
	q.st.workoutExercises[e.ID] = cp
	return nil
}

func (q scheduleQueries) SetExercisePosition(ctx context.Context, id string, position int) error {
	e, ok := q.st.workoutExercises[id]
	if !ok {
		return scoped.ErrNotFound
	}
	if q.positionTaken(e.WorkoutID, e.DayOfWeek, position, id) {
		return schedule.ErrConflictingOrder
	}
	e.OrderPosition = position
	return nil
}

func (q scheduleQueries) ShiftPositions(ctx context.Context, workoutID string, day *schedule.Day, from, to, delta int) error {
	for _, e := range q.bucket(workoutID, day) {
		if e.OrderPosition >= from && e.OrderPosition <= to {
			e.OrderPosition += delta
		}
	}
	seen := make(map[int]bool)
	for _, e := range q.bucket(workoutID, day) {
		if seen[e.OrderPosition] {
			return schedule.ErrConflictingOrder
		}
		seen[e.OrderPosition] = true
	}
	return nil
}

func (q scheduleQueries) DeleteExercise(ctx context.Context, id string) error {
	if _, ok := q.st.workoutExercises[id]; !ok {
		return scoped.ErrNotFound
	}
	delete(q.st.workoutExercises, id)
	return nil
}

func (q scheduleQueries) DeleteExercisesByDay(ctx context.Context, workoutID string, day schedule.Day) (int, error) {
	n := 0
	for _, e := range q.bucket(workoutID, &day) {
		delete(q.st.workoutExercises, e.ID)
		n++
	}
	return n, nil
}

func (q scheduleQueries) ListDays(ctx context.Context, workoutID string) ([]schedule.Day, error) {
	var days []schedule.Day
	for d := range q.st.workoutDays[workoutID] {
		days = append(days, d)
	}
	return days, nil
}

func (q scheduleQueries) ReplaceDays(ctx context.Context, workoutID string, days []schedule.Day) error {
	set := make(map[schedule.Day]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	q.st.workoutDays[workoutID] = set
	return nil
}

func (q scheduleQueries) AddDay(ctx context.Context, workoutID string, day schedule.Day) error {
	set, ok := q.st.workoutDays[workoutID]
	if !ok {
		set = make(map[schedule.Day]bool)
		q.st.workoutDays[workoutID] = set
	}
	set[day] = true
	return nil
}

func (q scheduleQueries) SetWorkoutOwner(ctx context.Context, workoutID string, userID *string) error {
	w, ok := q.st.workouts[workoutID]
	if !ok {
		return scoped.ErrNotFound
	}
	w.UserID = copyString(userID)
	return nil
}

func (q scheduleQueries) InsertRecommendation(ctx context.Context, r *schedule.Recommendation) error {
	q.st.recommendations[r.ID] = cloneRecommendation(r)
	return nil
}

func (q scheduleQueries) RecommendedWorkouts(ctx context.Context, f authz.Filter, recipientID string) ([]*schedule.Workout, error) {
	seen := make(map[string]bool)
	var out []*schedule.Workout
	for _, r := range q.st.recommendations {
		if r.UserID != nil && *r.UserID != recipientID {
			continue
		}
		w, ok := q.st.workouts[r.WorkoutID]
		if !ok || seen[w.ID] {
			continue
		}
		if w.UserID != nil && *w.UserID != recipientID {
			continue
		}
		if !f.Permits(w.AdminID, w.UserID, true) {
			continue
		}
		seen[w.ID] = true
		out = append(out, w.Clone())
	}
	slices.SortFunc(out, func(a, b *schedule.Workout) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (q scheduleQueries) InsertHistory(ctx context.Context, h *schedule.HistoryEntry) error {
	q.st.history[h.ID] = cloneHistory(h)
	return nil
}

func (q scheduleQueries) PendingHistory(ctx context.Context, workoutID, userID string) (*schedule.HistoryEntry, error) {
	var found *schedule.HistoryEntry
	for _, h := range q.st.history {
		if h.WorkoutID != workoutID || h.UserID != userID || h.Status != schedule.StatusPending {
			continue
		}
		if found == nil || h.AssignedAt.Before(found.AssignedAt) {
			found = h
		}
	}
	if found == nil {
		return nil, scoped.ErrNotFound
	}
	return cloneHistory(found), nil
}

func (q scheduleQueries) UpdateHistory(ctx context.Context, h *schedule.HistoryEntry) error {
	if _, ok := q.st.history[h.ID]; !ok {
		return scoped.ErrNotFound
	}
	q.st.history[h.ID] = cloneHistory(h)
	return nil
}

// scheduleStore implements schedule.Store. Reads take the read lock; every
// write runs as its own transaction.
type scheduleStore struct {
	s *Store
}

// Schedule returns the schedule.Store view of the store
func (s *Store) Schedule() schedule.Store {
	return scheduleStore{s: s}
}

func (ss scheduleStore) WithTx(ctx context.Context, fn func(q schedule.Queries) error) error {
	return ss.s.tx(scheduleScope, func(st *state) error {
		return fn(scheduleQueries{st: st, hook: ss.s.InsertHook})
	})
}

func (ss scheduleStore) view(fn func(q scheduleQueries) error) error {
	return ss.s.read(func(st *state) error {
		return fn(scheduleQueries{st: st})
	})
}

func (ss scheduleStore) update(ctx context.Context, fn func(q schedule.Queries) error) error {
	return ss.WithTx(ctx, fn)
}

func (ss scheduleStore) ListExercises(ctx context.Context, workoutID string, day *schedule.Day) (rows []*schedule.WorkoutExercise, err error) {
	err = ss.view(func(q scheduleQueries) error {
		rows, err = q.ListExercises(ctx, workoutID, day)
		return err
	})
	return rows, err
}

func (ss scheduleStore) GetExercise(ctx context.Context, id string) (e *schedule.WorkoutExercise, err error) {
	err = ss.view(func(q scheduleQueries) error {
		e, err = q.GetExercise(ctx, id)
		return err
	})
	return e, err
}

func (ss scheduleStore) InsertExercise(ctx context.Context, e *schedule.WorkoutExercise) error {
	return ss.update(ctx, func(q schedule.Queries) error { return q.InsertExercise(ctx, e) })
}

func (ss scheduleStore) UpdateExercise(ctx context.Context, e *schedule.WorkoutExercise) error {
	return ss.update(ctx, func(q schedule.Queries) error { return q.UpdateExercise(ctx, e) })
}

func (ss scheduleStore) SetExercisePosition(ctx context.Context, id string, position int) error {
	return ss.update(ctx, func(q schedule.Queries) error { return q.SetExercisePosition(ctx, id, position) })
}

func (ss scheduleStore) ShiftPositions(ctx context.Context, workoutID string, day *schedule.Day, from, to, delta int) error {
	return ss.update(ctx, func(q schedule.Queries) error {
		return q.ShiftPositions(ctx, workoutID, day, from, to, delta)
	})
}

func (ss scheduleStore) DeleteExercise(ctx context.Context, id string) error {
	return ss.update(ctx, func(q schedule.Queries) error { return q.DeleteExercise(ctx, id) })
}

func (ss scheduleStore) DeleteExercisesByDay(ctx context.Context, workoutID string, day schedule.Day) (n int, err error) {
	err = ss.update(ctx, func(q schedule.Queries) error {
		n, err = q.DeleteExercisesByDay(ctx, workoutID, day)
		return err
	})
	return n, err
}

func (ss scheduleStore) ListDays(ctx context.Context, workoutID string) (days []schedule.Day, err error) {
	err = ss.view(func(q scheduleQueries) error {
		days, err = q.ListDays(ctx, workoutID)
		return err
	})
	return days, err
}

func (ss scheduleStore) ReplaceDays(ctx context.Context, workoutID string, days []schedule.Day) error {
	return ss.update(ctx, func(q schedule.Queries) error { return q.ReplaceDays(ctx, workoutID, days) })
}

func (ss scheduleStore) AddDay(ctx context.Context, workoutID string, day schedule.Day) error {
	return ss.update(ctx, func(q schedule.Queries) error { return q.AddDay(ctx, workoutID, day) })
}

func (ss scheduleStore) SetWorkoutOwner(ctx context.Context, workoutID string, userID *string) error {
	return ss.update(ctx, func(q schedule.Queries) error { return q.SetWorkoutOwner(ctx, workoutID, userID) })
}

func (ss scheduleStore) InsertRecommendation(ctx context.Context, r *schedule.Recommendation) error {
	return ss.update(ctx, func(q schedule.Queries) error { return q.InsertRecommendation(ctx, r) })
}

func (ss scheduleStore) RecommendedWorkouts(ctx context.Context, f authz.Filter, recipientID string) (ws []*schedule.Workout, err error) {
	err = ss.view(func(q scheduleQueries) error {
		ws, err = q.RecommendedWorkouts(ctx, f, recipientID)
		return err
	})
	return ws, err
}

func (ss scheduleStore) InsertHistory(ctx context.Context, h *schedule.HistoryEntry) error {
	return ss.update(ctx, func(q schedule.Queries) error { return q.InsertHistory(ctx, h) })
}

func (ss scheduleStore) PendingHistory(ctx context.Context, workoutID, userID string) (h *schedule.HistoryEntry, err error) {
	err = ss.view(func(q scheduleQueries) error {
		h, err = q.PendingHistory(ctx, workoutID, userID)
		return err
	})
	return h, err
}

func (ss scheduleStore) UpdateHistory(ctx context.Context, h *schedule.HistoryEntry) error {
	return ss.update(ctx, func(q schedule.Queries) error { return q.UpdateHistory(ctx, h) })
}
