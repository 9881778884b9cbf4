package api

import (
	"net/http"

	"github.com/hackgods/clinic-admin/internal/dashboard"
	"github.com/hackgods/clinic-admin/internal/export"
)

func (h *Handler) dayView(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, h.projector.Day(snap, date, now))
}

func (h *Handler) weekView(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, h.projector.Week(snap, date, now))
}

func (h *Handler) therapistGrid(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	date, ok := queryDate(w, r, now, h.location())
	if !ok {
		return
	}
	id, ok := queryUUID(w, r, "therapist_id")
	if !ok {
		return
	}
	snap, err := h.snapshots.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.projector.TherapistGrid(snap, date, id, now))
}

func (h *Handler) scheduleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.projector.Stats(snap, h.now()))
}

func (h *Handler) conflicts(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.projector.Conflicts(snap))
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard.Build(snap, h.now(), h.location()))
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	now := h.now()
	d := dashboard.Build(snap, now, h.location())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename("clinic-report", "txt", now, h.location())+`"`)
	if err := export.Report(w, d, h.location()); err != nil {
		h.logger.Error("report failed", "error", err)
	}
}
