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

	"github.com/coachgrid/coachgrid/internal/authz"
)

// Queries is the storage contract for workout programs. Every method must
// work both on the root store and inside a transaction.
type Queries interface {
	// ListExercises returns the exact (workout, day) bucket ordered by
	// order_position, created_at, id. A nil day selects the all-days bucket.
	ListExercises(ctx context.Context, workoutID string, day *Day) ([]*WorkoutExercise, error)
	GetExercise(ctx context.Context, id string) (*WorkoutExercise, error)
	// InsertExercise returns ErrConflictingOrder when the position is taken.
	InsertExercise(ctx context.Context, e *WorkoutExercise) error
	UpdateExercise(ctx context.Context, e *WorkoutExercise) error
	SetExercisePosition(ctx context.Context, id string, position int) error
	// ShiftPositions adds delta to every row of the bucket whose position is in [from, to].
	ShiftPositions(ctx context.Context, workoutID string, day *Day, from, to, delta int) error
	DeleteExercise(ctx context.Context, id string) error
	DeleteExercisesByDay(ctx context.Context, workoutID string, day Day) (int, error)

	ListDays(ctx context.Context, workoutID string) ([]Day, error)
	ReplaceDays(ctx context.Context, workoutID string, days []Day) error
	AddDay(ctx context.Context, workoutID string, day Day) error

	SetWorkoutOwner(ctx context.Context, workoutID string, userID *string) error
	InsertRecommendation(ctx context.Context, r *Recommendation) error
	// RecommendedWorkouts lists workouts inside f recommended to recipientID or
	// to everyone, skipping workouts exclusive to another user.
	RecommendedWorkouts(ctx context.Context, f authz.Filter, recipientID string) ([]*Workout, error)

	InsertHistory(ctx context.Context, h *HistoryEntry) error
	// PendingHistory returns the oldest pending entry for (workout, user).
	PendingHistory(ctx context.Context, workoutID, userID string) (*HistoryEntry, error)
	UpdateHistory(ctx context.Context, h *HistoryEntry) error
}

// Store adds transactions to Queries. fn's Queries are bound to the
// transaction; returning an error rolls it back.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
}
