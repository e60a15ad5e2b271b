// Package memory implements every store contract in process. It backs the
// development server and the unit tests. A transaction copies the tables its
// scope may modify, so it is not meant for production data volumes.
package memory

import (
	"maps"
	"sync"
	"time"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/catalog"
	"github.com/coachgrid/coachgrid/internal/identity"
	"github.com/coachgrid/coachgrid/internal/schedule"
	"github.com/coachgrid/coachgrid/internal/tenant"
)

type grant struct {
	grantedBy string
	grantedAt time.Time
}

type state struct {
	principals  map[string]*identity.Principal
	credentials map[string]*identity.Credentials
	profiles    map[string]*identity.Profile
	tenants     map[string]*tenant.Tenant
	superAdmins map[string]time.Time
	grants      map[string]map[authz.Permission]grant

	categories   map[string]*catalog.Category
	exercises    map[string]*catalog.Exercise
	products     map[string]*catalog.Product
	appointments map[string]*catalog.Appointment

	workouts         map[string]*schedule.Workout
	workoutExercises map[string]*schedule.WorkoutExercise
	workoutDays      map[string]map[schedule.Day]bool
	recommendations  map[string]*schedule.Recommendation
	history          map[string]*schedule.HistoryEntry
}

func newState() *state {
	return &state{
		principals:       make(map[string]*identity.Principal),
		credentials:      make(map[string]*identity.Credentials),
		profiles:         make(map[string]*identity.Profile),
		tenants:          make(map[string]*tenant.Tenant),
		superAdmins:      make(map[string]time.Time),
		grants:           make(map[string]map[authz.Permission]grant),
		categories:       make(map[string]*catalog.Category),
		exercises:        make(map[string]*catalog.Exercise),
		products:         make(map[string]*catalog.Product),
		appointments:     make(map[string]*catalog.Appointment),
		workouts:         make(map[string]*schedule.Workout),
		workoutExercises: make(map[string]*schedule.WorkoutExercise),
		workoutDays:      make(map[string]map[schedule.Day]bool),
		recommendations:  make(map[string]*schedule.Recommendation),
		history:          make(map[string]*schedule.HistoryEntry),
	}
}

// txScope names the maps a transaction may modify.
type txScope int

const (
	scheduleScope txScope = iota
	privilegeScope
)

// cloneFor copies the state for a transaction of scope. Only the maps the
// scope may modify are deep-copied; every other map is shared with s.
func (s *state) cloneFor(scope txScope) *state {
	cp := *s
	switch scope {
	case scheduleScope:
		cp.workouts = cloneMap(s.workouts, (*schedule.Workout).Clone)
		cp.workoutExercises = cloneMap(s.workoutExercises, (*schedule.WorkoutExercise).Clone)
		cp.workoutDays = cloneMap(s.workoutDays, maps.Clone[map[schedule.Day]bool])
		cp.recommendations = cloneMap(s.recommendations, cloneRecommendation)
		cp.history = cloneMap(s.history, cloneHistory)
	case privilegeScope:
		cp.principals = cloneMap(s.principals, func(p *identity.Principal) *identity.Principal { v := *p; return &v })
		cp.credentials = cloneMap(s.credentials, func(c *identity.Credentials) *identity.Credentials { v := *c; return &v })
		cp.profiles = cloneMap(s.profiles, cloneProfile)
		cp.tenants = cloneMap(s.tenants, func(t *tenant.Tenant) *tenant.Tenant { v := *t; return &v })
	}
	return &cp
}

// Store is an in-process implementation of every repository contract.
type Store struct {
	mu sync.RWMutex
	st *state

	// InsertHook, when set, runs before every workout exercise insert and can
	// fail it. Tests use it to break a clone midway through a day.
	InsertHook func(e *schedule.WorkoutExercise) error
}

// New creates an empty store
func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.st)
}

func (s *Store) write(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// tx runs fn on a copy of the state and commits the copy only when fn succeeds.
// Single-statement writes go through write instead and skip the copy.
func (s *Store) tx(scope txScope, fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.cloneFor(scope)
	if err := fn(work); err != nil {
		return err
	}
	s.st = work
	return nil
}

func cloneMap[K comparable, V any](m map[K]V, cp func(V) V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = cp(v)
	}
	return out
}

func cloneProfile(p *identity.Profile) *identity.Profile {
	v := *p
	v.AdminID = copyString(p.AdminID)
	return &v
}

func cloneRecommendation(r *schedule.Recommendation) *schedule.Recommendation {
	v := *r
	v.UserID = copyString(r.UserID)
	return &v
}

func cloneHistory(h *schedule.HistoryEntry) *schedule.HistoryEntry {
	v := *h
	if h.CompletedAt != nil {
		t := *h.CompletedAt
		v.CompletedAt = &t
	}
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
