package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-admin/internal/appointment"
	"github.com/hackgods/clinic-admin/internal/auth"
	"github.com/hackgods/clinic-admin/internal/client"
	redisclient "github.com/hackgods/clinic-admin/internal/redis"
	"github.com/hackgods/clinic-admin/internal/therapist"
	"github.com/hackgods/clinic-admin/internal/timefmt"
	"github.com/hackgods/clinic-admin/internal/validate"
	"github.com/hackgods/clinic-admin/pkg/logging"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// queryDate reads ?date=YYYY-MM-DD, defaulting to today in loc.
func queryDate(w http.ResponseWriter, r *http.Request, now time.Time, loc *time.Location) (time.Time, bool) {
	v := r.URL.Query().Get("date")
	if v == "" {
		return timefmt.Today(now, loc), true
	}
	d, err := timefmt.ParseDateKey(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return d, true
}

func queryUUID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	v := r.URL.Query().Get(key)
	if v == "" || v == "all" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", key+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps domain errors onto HTTP statuses. Anything unknown is
// logged and reported as a 500 without details.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	var conflict *appointment.ConflictError
	if errors.As(err, &conflict) {
		c := conflict.Conflict
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: c.Message, Code: "conflict", Conflict: &c})
		return
	}

	status, code := classify(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "path", r.URL.Path, "request_id", GetRequestID(r.Context()), "error", err)
		writeError(w, status, code, "internal server error")
		return
	}
	writeError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, validate.ErrInvalid):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, client.ErrTherapistNotFound):
		return http.StatusBadRequest, "invalid_therapist"
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		return http.StatusNotFound, "appointment_not_found"
	case errors.Is(err, client.ErrClientNotFound):
		return http.StatusNotFound, "client_not_found"
	case errors.Is(err, therapist.ErrTherapistNotFound):
		return http.StatusNotFound, "therapist_not_found"
	case errors.Is(err, therapist.ErrLeaveNotFound):
		return http.StatusNotFound, "leave_not_found"
	case errors.Is(err, auth.ErrAdminNotFound):
		return http.StatusNotFound, "admin_not_found"
	case errors.Is(err, appointment.ErrSlotBeingBooked), errors.Is(err, redisclient.ErrLockNotAcquired):
		return http.StatusConflict, "slot_being_booked"
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		return http.StatusConflict, "invalid_status_transition"
	case errors.Is(err, therapist.ErrTherapistHasClients):
		return http.StatusConflict, "therapist_has_clients"
	case errors.Is(err, therapist.ErrTherapistInUse):
		return http.StatusConflict, "therapist_in_use"
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict, "email_taken"
	case errors.Is(err, appointment.ErrClientExpired):
		return http.StatusUnprocessableEntity, "client_expired"
	case errors.Is(err, appointment.ErrTherapistOnLeave):
		return http.StatusUnprocessableEntity, "therapist_on_leave"
	case errors.Is(err, appointment.ErrTherapistInactive):
		return http.StatusUnprocessableEntity, "therapist_inactive"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, auth.ErrInvalidCode):
		return http.StatusUnauthorized, "invalid_code"
	case errors.Is(err, auth.ErrInvalidSession):
		return http.StatusUnauthorized, "invalid_session"
	case errors.Is(err, auth.ErrInvalidResetToken):
		return http.StatusBadRequest, "invalid_reset_token"
	}
	return http.StatusInternalServerError, "internal_error"
}
