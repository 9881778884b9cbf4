package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-admin/internal/therapist"
)

func (h *Handler) listTherapists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := therapist.Filter{Search: q.Get("search")}
	if dep := q.Get("department"); dep != "" && dep != "all" {
		d, err := therapist.ParseDepartment(dep)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_department", err.Error())
			return
		}
		f.Department = d
	}
	list, err := h.therapists.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []therapist.Therapist{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) createTherapist(w http.ResponseWriter, r *http.Request) {
	var in therapist.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := h.therapists.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) getTherapist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.therapists.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) updateTherapist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in therapist.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := h.therapists.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) deleteTherapist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.therapists.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) therapistStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.therapists.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) leaveCalendar(w http.ResponseWriter, r *http.Request) {
	entries, err := h.therapists.Calendar(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if entries == nil {
		entries = []therapist.CalendarEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) addLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in therapist.LeaveInput
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := h.therapists.AddLeave(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) updateLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in therapist.LeaveInput
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := h.therapists.UpdateLeave(r.Context(), id, chi.URLParam(r, "leaveID"), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) removeLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.therapists.RemoveLeave(r.Context(), id, chi.URLParam(r, "leaveID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// therapistAvailability is the tick grid of one therapist on ?date.
func (h *Handler) therapistAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	now := h.now()
	date, ok := queryDate(w, r, now, h.location())
	if !ok {
		return
	}
	snap, err := h.snapshots.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if _, found := snap.Therapist(id); !found {
		writeServiceError(w, r, h.logger, therapist.ErrTherapistNotFound)
		return
	}
	grid := h.projector.TherapistGrid(snap, date, id, now)
	writeJSON(w, http.StatusOK, grid.Therapists[0])
}

func (h *Handler) freeSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	date, ok := queryDate(w, r, h.now(), h.location())
	if !ok {
		return
	}
	snap, err := h.snapshots.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	free, found := h.projector.FreeSlots(snap, id, date, queryInt(r, "limit", 5))
	if !found {
		writeServiceError(w, r, h.logger, therapist.ErrTherapistNotFound)
		return
	}
	writeJSON(w, http.StatusOK, free)
}
