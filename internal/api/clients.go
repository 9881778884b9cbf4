package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-admin/internal/appointment"
	"github.com/hackgods/clinic-admin/internal/client"
	"github.com/hackgods/clinic-admin/internal/export"
	"github.com/hackgods/clinic-admin/internal/timefmt"
)

func clientFilter(w http.ResponseWriter, r *http.Request) (client.Filter, bool) {
	q := r.URL.Query()
	f := client.Filter{
		Search:  q.Get("search"),
		Status:  q.Get("status"),
		Payment: client.PaymentStatus(q.Get("payment")),
	}
	if f.Status == "all" {
		f.Status = ""
	}
	if f.Payment == "all" {
		f.Payment = ""
	}
	id, ok := queryUUID(w, r, "therapist_id")
	if !ok {
		return client.Filter{}, false
	}
	if id != uuid.Nil {
		f.TherapistID = &id
	}
	return f, true
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	f, ok := clientFilter(w, r)
	if !ok {
		return
	}
	page, err := h.clients.List(r.Context(), f, queryInt(r, "page", 1))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var in client.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	c, err := h.clients.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// getClient returns the client with their appointment history.
func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.clients.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	history, err := h.appointments.ListForClient(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if history == nil {
		history = []appointment.Appointment{}
	}
	writeJSON(w, http.StatusOK, clientDetail{Client: c, Appointments: history})
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in client.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	c, err := h.clients.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.clients.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) bulkDeleteClients(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.clients.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *Handler) renewClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.clients.Renew(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) clientStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.clients.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) expiringClients(w http.ResponseWriter, r *http.Request) {
	list, err := h.clients.Expiring(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []client.Expiration{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) sendReminders(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	summary, err := h.clients.SendReminders(r.Context(), req.IDs)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) exportClients(w http.ResponseWriter, r *http.Request) {
	f, ok := clientFilter(w, r)
	if !ok {
		return
	}
	clients, err := h.clients.All(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if len(clients) == 0 {
		writeError(w, http.StatusNotFound, "no_data", "No data to export")
		return
	}
	now := h.now()
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename("clients-export", "csv", now, h.location())+`"`)
	if err := export.ClientsCSV(w, clients, timefmt.Today(now, h.location())); err != nil {
		h.logger.Error("client export failed", "error", err)
	}
}
