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

package http

import (
	"errors"
	"net/http"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/schedule"
	"github.com/go-chi/chi/v5"
)

// ListWorkouts lists the workout catalog visible to the caller
// @Summary List Workouts
// @Description Users see tenant-public workouts and the ones exclusive to them
// @Tags Workout
// @Produce json
// @Security BearerAuth
// @Success 200 {array} schedule.Workout
// @Router /workouts [get]
func (h *Handler) ListWorkouts(w http.ResponseWriter, r *http.Request) {
	d, ok := h.decide(w, r, authz.ViewOwnWorkouts)
	if !ok {
		return
	}
	workouts, err := h.engine.Catalog(r.Context(), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if workouts == nil {
		workouts = []*schedule.Workout{}
	}
	respondJSON(w, http.StatusOK, workouts)
}

// CreateWorkout handles workout creation
// @Summary Create Workout
// @Tags Workout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body schedule.Workout true "Workout"
// @Success 201 {object} schedule.Workout
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /workouts [post]
func (h *Handler) CreateWorkout(w http.ResponseWriter, r *http.Request) {
	var wk schedule.Workout
	if !decodeJSON(w, r, &wk) {
		return
	}
	d, ok := h.decide(w, r, authz.ManageWorkouts)
	if !ok {
		return
	}
	wk.ID = ""
	created, err := h.engine.Workouts().Create(r.Context(), d, &wk)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// GetWorkout returns one workout
// @Summary Get Workout
// @Tags Workout
// @Produce json
// @Security BearerAuth
// @Param workoutID path string true "Workout ID"
// @Success 200 {object} schedule.Workout
// @Failure 404 {object} map[string]string
// @Router /workouts/{workoutID} [get]
func (h *Handler) GetWorkout(w http.ResponseWriter, r *http.Request) {
	d, ok := h.decide(w, r, authz.ViewOwnWorkouts)
	if !ok {
		return
	}
	wk, err := h.engine.Workouts().Get(r.Context(), d, chi.URLParam(r, "workoutID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, wk)
}

// UpdateWorkout replaces a workout's editable fields
// @Summary Update Workout
// @Tags Workout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workoutID path string true "Workout ID"
// @Param request body schedule.Workout true "Workout"
// @Success 200 {object} schedule.Workout
// @Router /workouts/{workoutID} [put]
func (h *Handler) UpdateWorkout(w http.ResponseWriter, r *http.Request) {
	var wk schedule.Workout
	if !decodeJSON(w, r, &wk) {
		return
	}
	d, ok := h.decide(w, r, authz.ManageWorkouts)
	if !ok {
		return
	}
	wk.ID = chi.URLParam(r, "workoutID")
	updated, err := h.engine.Workouts().Update(r.Context(), d, &wk)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DeleteWorkout removes a workout with its program, days and history
// @Summary Delete Workout
// @Tags Workout
// @Security BearerAuth
// @Param workoutID path string true "Workout ID"
// @Success 204
// @Router /workouts/{workoutID} [delete]
func (h *Handler) DeleteWorkout(w http.ResponseWriter, r *http.Request) {
	d, ok := h.decide(w, r, authz.ManageWorkouts)
	if !ok {
		return
	}
	if err := h.engine.Workouts().Delete(r.Context(), d, chi.URLParam(r, "workoutID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DaysRequest carries a set of day tokens
type DaysRequest struct {
	Days []string `json:"days" example:"monday"`
}

// GetWorkoutDays lists the days a workout is scheduled on
// @Summary Workout Days
// @Tags Workout
// @Produce json
// @Security BearerAuth
// @Param workoutID path string true "Workout ID"
// @Success 200 {object} DaysRequest
// @Router /workouts/{workoutID}/days [get]
func (h *Handler) GetWorkoutDays(w http.ResponseWriter, r *http.Request) {
	d, ok := h.decide(w, r, authz.ViewOwnWorkouts)
	if !ok {
		return
	}
	days, err := h.engine.Days(r.Context(), d, chi.URLParam(r, "workoutID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, daysResponse(days))
}

// SetWorkoutDays replaces the days a workout is scheduled on
// @Summary Set Workout Days
// @Tags Workout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workoutID path string true "Workout ID"
// @Param request body DaysRequest true "Days"
// @Success 200 {object} DaysRequest
// @Failure 400 {object} map[string]string
// @Router /workouts/{workoutID}/days [put]
func (h *Handler) SetWorkoutDays(w http.ResponseWriter, r *http.Request) {
	var req DaysRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	days, err := parseDays(req.Days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, ok := h.decide(w, r, authz.ManageWorkouts)
	if !ok {
		return
	}
	days, err = h.engine.SetDays(r.Context(), d, chi.URLParam(r, "workoutID"), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, daysResponse(days))
}

// ListWorkoutExercises returns the program of one day
// @Summary List Workout Exercises
// @Description Without day the all-days rows are listed. A day with no rows of its own falls back to the all-days rows.
// @Tags Workout
// @Produce json
// @Security BearerAuth
// @Param workoutID path string true "Workout ID"
// @Param day query string false "Day of week"
// @Success 200 {array} schedule.WorkoutExercise
// @Router /workouts/{workoutID}/exercises [get]
func (h *Handler) ListWorkoutExercises(w http.ResponseWriter, r *http.Request) {
	var day *schedule.Day
	if raw := r.URL.Query().Get("day"); raw != "" {
		parsed, err := schedule.ParseDay(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		day = &parsed
	}
	d, ok := h.decide(w, r, authz.ViewOwnWorkouts)
	if !ok {
		return
	}
	rows, err := h.engine.ListByDay(r.Context(), d, chi.URLParam(r, "workoutID"), day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []*schedule.WorkoutExercise{}
	}
	respondJSON(w, http.StatusOK, rows)
}

// AddWorkoutExercise appends a row to a day's program
// @Summary Add Workout Exercise
// @Description An order_position of 0 or absent appends after the last row of the day
// @Tags Workout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workoutID path string true "Workout ID"
// @Param request body schedule.WorkoutExercise true "Row"
// @Success 201 {object} schedule.WorkoutExercise
// @Failure 409 {object} map[string]string
// @Router /workouts/{workoutID}/exercises [post]
func (h *Handler) AddWorkoutExercise(w http.ResponseWriter, r *http.Request) {
	var entry schedule.WorkoutExercise
	if !decodeJSON(w, r, &entry) {
		return
	}
	if entry.DayOfWeek != nil {
		day, err := schedule.ParseDay(string(*entry.DayOfWeek))
		if err != nil {
			writeError(w, r, err)
			return
		}
		entry.DayOfWeek = &day
	}
	d, ok := h.decide(w, r, authz.ManageWorkouts)
	if !ok {
		return
	}
	row, err := h.engine.AddExercise(r.Context(), d, chi.URLParam(r, "workoutID"), &entry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, row)
}

// UpdateWorkoutExercise rewrites the content of one row
// @Summary Update Workout Exercise
// @Tags Workout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param exerciseID path string true "Row ID"
// @Param request body schedule.WorkoutExercise true "Row"
// @Success 200 {object} schedule.WorkoutExercise
// @Router /workout-exercises/{exerciseID} [patch]
func (h *Handler) UpdateWorkoutExercise(w http.ResponseWriter, r *http.Request) {
	var patch schedule.WorkoutExercise
	if !decodeJSON(w, r, &patch) {
		return
	}
	d, ok := h.decide(w, r, authz.ManageWorkouts)
	if !ok {
		return
	}
	patch.ID = chi.URLParam(r, "exerciseID")
	row, err := h.engine.UpdateExercise(r.Context(), d, &patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, row)
}

// RemoveWorkoutExercise deletes one row
// @Summary Remove Workout Exercise
// @Tags Workout
// @Security BearerAuth
// @Param exerciseID path string true "Row ID"
// @Success 204
// @Router /workout-exercises/{exerciseID} [delete]
func (h *Handler) RemoveWorkoutExercise(w http.ResponseWriter, r *http.Request) {
	d, ok := h.decide(w, r, authz.ManageWorkouts)
	if !ok {
		return
	}
	if err := h.engine.RemoveExercise(r.Context(), d, chi.URLParam(r, "exerciseID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderRequest moves a row within its day
type ReorderRequest struct {
	Position int `json:"position" example:"2"`
}

// ReorderWorkoutExercise moves a row to a new position within its day
// @Summary Reorder Workout Exercise
// @Tags Workout
// @Accept json
// @Security BearerAuth
// @Param exerciseID path string true "Row ID"
// @Param request body ReorderRequest true "Position"
// @Success 204
// @Failure 400 {object} map[string]string
// @Router /workout-exercises/{exerciseID}/position [patch]
func (h *Handler) ReorderWorkoutExercise(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, ok := h.decide(w, r, authz.ManageWorkouts)
	if !ok {
		return
	}
	if err := h.engine.Reorder(r.Context(), d, chi.URLParam(r, "exerciseID"), req.Position); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloneRequest copies one day's program onto other days
type CloneRequest struct {
	Source  string   `json:"source" example:"monday"`
	Targets []string `json:"targets" example:"wednesday"`
}

// CloneDayResult is the outcome for one target day
type CloneDayResult struct {
	Day   schedule.Day `json:"day"`
	Count int          `json:"count"`
	Error string       `json:"error,omitempty"`
}

// CloneResponse reports every target day in request order
type CloneResponse struct {
	WorkoutID string           `json:"workout_id"`
	Source    schedule.Day     `json:"source"`
	Results   []CloneDayResult `json:"results"`
}

// CloneDay replaces the program of each target day with the source day's rows
// @Summary Clone Day
// @Description Each target day commits on its own. When some fail the response is 207 and lists every day.
// @Tags Workout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workoutID path string true "Workout ID"
// @Param request body CloneRequest true "Source and target days"
// @Success 200 {object} CloneResponse
// @Success 207 {object} CloneResponse
// @Failure 422 {object} map[string]string
// @Router /workouts/{workoutID}/clone [post]
func (h *Handler) CloneDay(w http.ResponseWriter, r *http.Request) {
	var req CloneRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	source, err := schedule.ParseDay(req.Source)
	if err != nil {
		writeError(w, r, err)
		return
	}
	targets, err := parseDays(req.Targets)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, ok := h.decide(w, r, authz.ManageWorkouts)
	if !ok {
		return
	}

	report, err := h.engine.CloneDay(r.Context(), d, chi.URLParam(r, "workoutID"), source, targets)
	var partial *schedule.PartialCloneError
	switch {
	case errors.As(err, &partial):
		respondJSON(w, http.StatusMultiStatus, cloneResponse(report))
	case err != nil:
		writeError(w, r, err)
	default:
		respondJSON(w, http.StatusOK, cloneResponse(report))
	}
}

func cloneResponse(report *schedule.CloneReport) CloneResponse {
	resp := CloneResponse{WorkoutID: report.WorkoutID, Source: report.Source}
	for _, res := range report.Results {
		out := CloneDayResult{Day: res.Day, Count: res.Count}
		if res.Err != nil {
			out.Error = "storage failure"
			if status := statusFor(res.Err); status != http.StatusInternalServerError {
				out.Error = publicMessage(status, res.Err)
			}
		}
		resp.Results = append(resp.Results, out)
	}
	return resp
}

// UserRequest names a user of the caller's tenant
type UserRequest struct {
	UserID *string `json:"user_id,omitempty" example:"0190..."`
}

// AssignWorkout makes a workout exclusive to one user and recommends it
// @Summary Assign Workout
// @Tags Workout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workoutID path string true "Workout ID"
// @Param request body UserRequest true "User"
// @Success 201 {object} schedule.HistoryEntry
// @Failure 404 {object} map[string]string
// @Router /workouts/{workoutID}/assign [post]
func (h *Handler) AssignWorkout(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == nil || *req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	d, ok := h.decide(w, r, authz.ManageWorkouts)
	if !ok {
		return
	}
	entry, err := h.engine.AssignWorkoutToUser(r.Context(), d, chi.URLParam(r, "workoutID"), *req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

// RecommendWorkout recommends a workout to one user, or to the whole tenant when user_id is absent
// @Summary Recommend Workout
// @Tags Workout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workoutID path string true "Workout ID"
// @Param request body UserRequest false "User"
// @Success 201 {object} schedule.Recommendation
// @Router /workouts/{workoutID}/recommend [post]
func (h *Handler) RecommendWorkout(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID != nil && *req.UserID == "" {
		req.UserID = nil
	}
	d, ok := h.decide(w, r, authz.ManageWorkouts)
	if !ok {
		return
	}
	rec, err := h.engine.Recommend(r.Context(), d, chi.URLParam(r, "workoutID"), req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

// ListRecommendations lists workouts recommended to the caller
// @Summary My Recommendations
// @Tags Workout
// @Produce json
// @Security BearerAuth
// @Success 200 {array} schedule.Workout
// @Router /me/recommendations [get]
func (h *Handler) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	d, ok := h.decide(w, r, authz.ViewOwnWorkouts)
	if !ok {
		return
	}
	workouts, err := h.engine.Recommended(r.Context(), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if workouts == nil {
		workouts = []*schedule.Workout{}
	}
	respondJSON(w, http.StatusOK, workouts)
}

// CompleteWorkout marks the caller's pending assignment as completed
// @Summary Complete Workout
// @Tags Workout
// @Produce json
// @Security BearerAuth
// @Param workoutID path string true "Workout ID"
// @Success 200 {object} schedule.HistoryEntry
// @Failure 404 {object} map[string]string
// @Router /workouts/{workoutID}/complete [post]
func (h *Handler) CompleteWorkout(w http.ResponseWriter, r *http.Request) {
	d, ok := h.decide(w, r, authz.ViewOwnWorkouts)
	if !ok {
		return
	}
	entry, err := h.engine.CompleteWorkout(r.Context(), d, chi.URLParam(r, "workoutID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func parseDays(raw []string) ([]schedule.Day, error) {
	days := make([]schedule.Day, 0, len(raw))
	for _, s := range raw {
		day, err := schedule.ParseDay(s)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, nil
}

func daysResponse(days []schedule.Day) DaysRequest {
	out := DaysRequest{Days: make([]string, 0, len(days))}
	for _, d := range days {
		out.Days = append(out.Days, string(d))
	}
	return out
}
