package http

import (
	"net/http"

	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/scoped"
	"github.com/go-chi/chi/v5"
)

// mountCatalog registers list/get/create/update/delete routes for one
// tenant-owned kind. Reads run under read, writes under write.
func mountCatalog[E any, T interface {
	*E
	scoped.Record
}](r chi.Router, pattern string, h *Handler, repo *scoped.Repository[T], read, write authz.Permission) {
	r.Route(pattern, func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			d, ok := h.decide(w, r, read)
			if !ok {
				return
			}
			items, err := repo.List(r.Context(), d)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if items == nil {
				items = []T{}
			}
			respondJSON(w, http.StatusOK, items)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			rec := T(new(E))
			if !decodeJSON(w, r, rec) {
				return
			}
			d, ok := h.decide(w, r, write)
			if !ok {
				return
			}
			rec.SetID("")
			created, err := repo.Create(r.Context(), d, rec)
			if err != nil {
				writeError(w, r, err)
				return
			}
			respondJSON(w, http.StatusCreated, created)
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			d, ok := h.decide(w, r, read)
			if !ok {
				return
			}
			rec, err := repo.Get(r.Context(), d, chi.URLParam(r, "id"))
			if err != nil {
				writeError(w, r, err)
				return
			}
			respondJSON(w, http.StatusOK, rec)
		})

		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			rec := T(new(E))
			if !decodeJSON(w, r, rec) {
				return
			}
			d, ok := h.decide(w, r, write)
			if !ok {
				return
			}
			rec.SetID(chi.URLParam(r, "id"))
			updated, err := repo.Update(r.Context(), d, rec)
			if err != nil {
				writeError(w, r, err)
				return
			}
			respondJSON(w, http.StatusOK, updated)
		})

		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			d, ok := h.decide(w, r, write)
			if !ok {
				return
			}
			if err := repo.Delete(r.Context(), d, chi.URLParam(r, "id")); err != nil {
				writeError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})
}
