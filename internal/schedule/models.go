package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/catalog"
	"github.com/coachgrid/coachgrid/internal/scoped"
)

// WorkoutKind is the tenant-scoped kind for workouts. A workout with a
// user_id is exclusive to that user; only assignment sets it.
var WorkoutKind = scoped.Kind{
	Name:         "workout",
	Permissions:  []authz.Permission{authz.ManageWorkouts, authz.ViewOwnWorkouts},
	Ownership:    scoped.OwnerOrShared,
	OwnerManaged: true,
}

// Day is a day-of-week token
type Day string

const (
	Monday    Day = "monday"
	Tuesday   Day = "tuesday"
	Wednesday Day = "wednesday"
	Thursday  Day = "thursday"
	Friday    Day = "friday"
	Saturday  Day = "saturday"
	Sunday    Day = "sunday"
)

// Week lists the days in display order
var Week = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseDay converts a case-insensitive token into a Day
func ParseDay(s string) (Day, error) {
	d := Day(strings.ToLower(strings.TrimSpace(s)))
	if d.Index() < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidDay, s)
	}
	return d, nil
}

// Index returns the position of d in Week, or -1.
func (d Day) Index() int {
	for i, w := range Week {
		if w == d {
			return i
		}
	}
	return -1
}

func (d Day) String() string { return string(d) }

// Workout is a tenant-owned training program
type Workout struct {
	ID              string    `json:"id"`
	AdminID         string    `json:"admin_id"`
	UserID          *string   `json:"user_id,omitempty"`
	CategoryID      *string   `json:"category_id,omitempty"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	Level           string    `json:"level,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (w *Workout) GetID() string       { return w.ID }
func (w *Workout) SetID(id string)     { w.ID = id }
func (w *Workout) GetAdminID() string  { return w.AdminID }
func (w *Workout) SetAdminID(a string) { w.AdminID = a }
func (w *Workout) Owner() *string      { return w.UserID }
func (w *Workout) SetOwner(u *string)  { w.UserID = u }

func (w *Workout) Stamp(now time.Time) {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
}

func (w *Workout) References() []scoped.Reference {
	return []scoped.Reference{{Kind: catalog.CategoryKind.Name, ID: w.CategoryID}}
}

func (w *Workout) Clone() *Workout {
	cp := *w
	cp.UserID = copyPtr(w.UserID)
	cp.CategoryID = copyPtr(w.CategoryID)
	return &cp
}

// WorkoutExercise is one ordered row of a workout's program.
// A nil DayOfWeek means the row applies to every day without its own rows.
type WorkoutExercise struct {
	ID              string    `json:"id"`
	WorkoutID       string    `json:"workout_id"`
	ExerciseID      *string   `json:"exercise_id,omitempty"`
	DayOfWeek       *Day      `json:"day_of_week,omitempty"`
	OrderPosition   int       `json:"order_position"`
	Sets            *int      `json:"sets,omitempty"`
	Reps            *int      `json:"reps,omitempty"`
	DurationSeconds *int      `json:"duration_seconds,omitempty"`
	RestSeconds     *int      `json:"rest_seconds,omitempty"`
	Weight          *float64  `json:"weight,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	IsTitleSection  bool      `json:"is_title_section"`
	SectionTitle    string    `json:"section_title,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Clone returns a deep copy of e
func (e *WorkoutExercise) Clone() *WorkoutExercise {
	cp := *e
	cp.ExerciseID = copyPtr(e.ExerciseID)
	cp.DayOfWeek = copyPtr(e.DayOfWeek)
	cp.Sets = copyPtr(e.Sets)
	cp.Reps = copyPtr(e.Reps)
	cp.DurationSeconds = copyPtr(e.DurationSeconds)
	cp.RestSeconds = copyPtr(e.RestSeconds)
	cp.Weight = copyPtr(e.Weight)
	return &cp
}

// SameDay reports whether e belongs to the bucket for day (nil is the all-days bucket).
func (e *WorkoutExercise) SameDay(day *Day) bool {
	if e.DayOfWeek == nil || day == nil {
		return e.DayOfWeek == nil && day == nil
	}
	return *e.DayOfWeek == *day
}

// Recommendation links a workout to one user, or to every user of the tenant when UserID is nil.
type Recommendation struct {
	ID        string    `json:"id"`
	WorkoutID string    `json:"workout_id"`
	UserID    *string   `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryStatus is the completion state of an assigned workout
type HistoryStatus string

const (
	StatusPending   HistoryStatus = "pending"
	StatusCompleted HistoryStatus = "completed"
)

// HistoryEntry tracks one assignment of a workout to a user
type HistoryEntry struct {
	ID          string        `json:"id"`
	WorkoutID   string        `json:"workout_id"`
	UserID      string        `json:"user_id"`
	Status      HistoryStatus `json:"status"`
	AssignedAt  time.Time     `json:"assigned_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
