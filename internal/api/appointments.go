package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-admin/internal/appointment"
	"github.com/hackgods/clinic-admin/internal/export"
	"github.com/hackgods/clinic-admin/internal/views"
)

func listFilter(r *http.Request) views.ListFilter {
	q := r.URL.Query()
	return views.ListFilter{
		Status:      q.Get("status"),
		Department:  q.Get("department"),
		TherapistID: q.Get("therapist_id"),
		Search:      q.Get("search"),
	}
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.projector.List(snap.Appointments, listFilter(r), queryInt(r, "page", 1)))
}

func (h *Handler) createAppointment(w http.ResponseWriter, r *http.Request) {
	var in appointment.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	appt, err := h.appointments.Schedule(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// checkAppointment validates a candidate booking without writing it.
func (h *Handler) checkAppointment(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	exclude := uuid.Nil
	if req.ExcludeID != nil {
		exclude = *req.ExcludeID
	}
	conflict, err := h.appointments.Check(r.Context(), req.Input, exclude)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{OK: conflict == nil, Conflict: conflict})
}

func (h *Handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	appt, err := h.appointments.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) updateAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in appointment.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	appt, err := h.appointments.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.appointments.Cancel)
}

func (h *Handler) completeAppointment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.appointments.Complete)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	appt, err := fn(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.appointments.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) exportAppointments(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	appts := listFilter(r).Apply(snap.Appointments)
	if len(appts) == 0 {
		writeError(w, http.StatusNotFound, "no_data", "No data to export")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename("schedule-export", "csv", h.now(), h.location())+`"`)
	if err := export.AppointmentsCSV(w, appts); err != nil {
		h.logger.Error("appointment export failed", "error", err)
	}
}
