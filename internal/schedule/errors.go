package schedule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/coachgrid/coachgrid/internal/scoped"
)

var (
	// ErrNotFound masks rows that are missing or outside the caller's scope
	ErrNotFound = scoped.ErrNotFound

	ErrEmptySource      = errors.New("source day has no exercises to clone")
	ErrConflictingOrder = errors.New("order position already used in this day")
	ErrInvalidPosition  = errors.New("order position must be at least 1")
	ErrInvalidDay       = errors.New("invalid day of week")
	ErrNoTargetDays     = errors.New("clone requires at least one target day")
)

// DayResult is the outcome of cloning into one target day
type DayResult struct {
	Day   Day   `json:"day"`
	Count int   `json:"count"`
	Err   error `json:"-"`
}

// CloneReport lists per-target-day results in input order
type CloneReport struct {
	WorkoutID string      `json:"workout_id"`
	Source    Day         `json:"source"`
	Results   []DayResult `json:"results"`
}

// Failed returns the results that did not commit
func (r *CloneReport) Failed() []DayResult {
	var failed []DayResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Counts maps each committed target day to the number of rows cloned into it
func (r *CloneReport) Counts() map[Day]int {
	counts := make(map[Day]int, len(r.Results))
	for _, res := range r.Results {
		if res.Err == nil {
			counts[res.Day] = res.Count
		}
	}
	return counts
}

// PartialCloneError is returned when at least one target day failed.
// Days that succeeded remain committed.
type PartialCloneError struct {
	Report *CloneReport
}

func (e *PartialCloneError) Error() string {
	failed := e.Report.Failed()
	parts := make([]string, 0, len(failed))
	for _, res := range failed {
		parts = append(parts, fmt.Sprintf("%s: %v", res.Day, res.Err))
	}
	return fmt.Sprintf("clone of %s partially failed (%d of %d days): %s",
		e.Report.Source, len(failed), len(e.Report.Results), strings.Join(parts, "; "))
}

func (e *PartialCloneError) Unwrap() []error {
	var errs []error
	for _, res := range e.Report.Failed() {
		errs = append(errs, res.Err)
	}
	return errs
}
