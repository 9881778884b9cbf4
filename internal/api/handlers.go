package api

import (
	"net/http"
	"time"

	"github.com/hackgods/clinic-admin/internal/views"
	"github.com/hackgods/clinic-admin/pkg/logging"
)

// Handler serves every admin panel endpoint. Writes go through the services;
// schedule pages, lists and the dashboard are projected from the snapshot.
type Handler struct {
	clients      ClientService
	therapists   TherapistService
	appointments AppointmentService
	auth         AuthService
	snapshots    Snapshots
	projector    views.Projector
	logger       *logging.Logger
	now          func() time.Time
}

func (h *Handler) location() *time.Location {
	if h.projector.Location == nil {
		return time.UTC
	}
	return h.projector.Location
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.SignIn(r.Context(), req.Email, req.Password); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "code_sent"})
}

func (h *Handler) sendCode(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.SendCode(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "code_sent"})
}

func (h *Handler) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.auth.VerifyCode(r.Context(), req.Email, req.Code)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.SendPasswordReset(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reset_sent"})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.Token, req.Password, req.Confirm); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), sessionToken(r.Context())); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CurrentAdmin(r.Context()))
}

func (h *Handler) updatePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	admin := CurrentAdmin(r.Context())
	if err := h.auth.UpdatePassword(r.Context(), admin.ID, req.Password, req.Confirm); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
