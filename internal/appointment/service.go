package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/clinic-admin/internal/client"
	"github.com/hackgods/clinic-admin/internal/config"
	"github.com/hackgods/clinic-admin/internal/metrics"
	redisclient "github.com/hackgods/clinic-admin/internal/redis"
	"github.com/hackgods/clinic-admin/internal/therapist"
	"github.com/hackgods/clinic-admin/internal/timefmt"
	"github.com/hackgods/clinic-admin/internal/validate"
	"github.com/hackgods/clinic-admin/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.appointment")

const (
	EventAppointmentScheduled = "APPOINTMENT_SCHEDULED"
	EventAppointmentUpdated   = "APPOINTMENT_UPDATED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentDeleted   = "APPOINTMENT_DELETED"
)

var (
	ErrClientExpired           = errors.New("cannot schedule appointment for expired client")
	ErrTherapistInactive       = errors.New("therapist is not active")
	ErrTherapistOnLeave        = errors.New("therapist is on leave")
	ErrSlotBeingBooked         = errors.New("this slot is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// OnLeaveError names the therapist and date a booking was refused for.
type OnLeaveError struct {
	Therapist string
	Date      time.Time
}

func (e *OnLeaveError) Error() string {
	return fmt.Sprintf("Therapist %s is on leave on %s. Please select another date or therapist.",
		e.Therapist, timefmt.DateKey(e.Date))
}

func (e *OnLeaveError) Is(target error) bool {
	return target == ErrTherapistOnLeave
}

// Input is the payload of the appointment form.
type Input struct {
	ClientID    string `json:"client_id" validate:"required,uuid"`
	TherapistID string `json:"therapist_id" validate:"required,uuid"`
	Date        string `json:"date" validate:"required,datekey"`
	Time        string `json:"time" validate:"required,clock"`
	Status      string `json:"status" validate:"omitempty,oneof=scheduled cancelled completed"`
	Notes       string `json:"notes"`
}

// ClientLookup and TherapistLookup are the reads the service needs from the
// other aggregates.
type ClientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*client.Client, error)
}

type TherapistLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*therapist.Therapist, error)
}

type Service struct {
	repo       Repository
	clients    ClientLookup
	therapists TherapistLookup
	locker     redisclient.Locker
	detector   Detector
	metrics    *metrics.SchedulingMetrics
	loc        *time.Location
	logger     *logging.Logger
	now        func() time.Time
	onChange   func()
}

func NewService(repo Repository, clients ClientLookup, therapists TherapistLookup, locker redisclient.Locker,
	cfg config.Config, m *metrics.SchedulingMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if locker == nil {
		locker = redisclient.NoopLocker{}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:       repo,
		clients:    clients,
		therapists: therapists,
		locker:     locker,
		detector:   NewDetector(cfg.AppointmentDuration),
		metrics:    m,
		loc:        loc,
		logger:     logger,
		now:        time.Now,
		onChange:   func() {},
	}
}

// OnChange registers a hook run after every successful write.
func (s *Service) OnChange(fn func()) {
	if fn != nil {
		s.onChange = fn
	}
}

func (s *Service) Detector() Detector {
	return s.detector
}

func (s *Service) today() time.Time {
	return timefmt.Today(s.now(), s.loc)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Appointment, error) {
	appts, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("list appointments failed", "error", err)
		return nil, err
	}
	return appts, nil
}

func (s *Service) ListForClient(ctx context.Context, clientID uuid.UUID) ([]Appointment, error) {
	return s.repo.ListForClient(ctx, clientID)
}

// Check runs the conflict detector against the current rows without writing.
// A nil Conflict means the slot is free. excludeID is uuid.Nil for new bookings.
func (s *Service) Check(ctx context.Context, in Input, excludeID uuid.UUID) (*Conflict, error) {
	cand, _, err := s.parse(in)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.ListActiveOn(ctx, cand.Date)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	return s.detector.Check(cand, existing, excludeID), nil
}

// Schedule books a new appointment. The client is assigned to the therapist
// in the same transaction as the insert.
func (s *Service) Schedule(ctx context.Context, in Input) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.schedule")
	defer span.End()
	started := s.now()

	cand, status, err := s.parse(in)
	if err != nil {
		return nil, s.finish(span, "schedule", started, err)
	}
	span.SetAttributes(
		attribute.String("clinic.client_id", cand.ClientID.String()),
		attribute.String("clinic.therapist_id", cand.TherapistID.String()),
		attribute.String("clinic.date", timefmt.DateKey(cand.Date)),
		attribute.String("clinic.timeslot", cand.Start.String()),
	)

	c, err := s.clients.Get(ctx, cand.ClientID)
	if err != nil {
		return nil, s.finish(span, "schedule", started, err)
	}
	if status == "" {
		status = StatusScheduled
	}
	if c.Expired(s.today()) {
		return nil, s.finish(span, "schedule", started, ErrClientExpired)
	}
	if _, err := s.bookableTherapist(ctx, cand.TherapistID, cand.Date); err != nil {
		return nil, s.finish(span, "schedule", started, err)
	}

	var created *Appointment
	err = s.locker.WithLock(ctx, lockKeys(cand), func(lockCtx context.Context) error {
		// Re-read inside the critical section.
		existing, err := s.repo.ListActiveOn(lockCtx, cand.Date)
		if err != nil {
			return fmt.Errorf("load appointments: %w", err)
		}
		if conflict := s.detector.Check(cand, existing, uuid.Nil); conflict != nil {
			s.metrics.ObserveConflict(string(conflict.Type), "detector")
			return &ConflictError{Conflict: *conflict}
		}

		appt, err := s.repo.Schedule(lockCtx, Appointment{
			ClientID:    cand.ClientID,
			TherapistID: cand.TherapistID,
			Date:        cand.Date,
			Start:       cand.Start,
			Status:      status,
			Notes:       strings.TrimSpace(in.Notes),
		})
		if err != nil {
			if ce, ok := conflictFromStore(err); ok {
				s.metrics.ObserveConflict(string(ce.Conflict.Type), "constraint")
				return ce
			}
			return err
		}
		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentScheduled, map[string]any{
			"client_id":    appt.ClientID.String(),
			"therapist_id": appt.TherapistID.String(),
			"date":         appt.DateKey(),
			"timeslot":     appt.Start.String(),
		})
		return nil
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		err = ErrSlotBeingBooked
	}
	if err != nil {
		return nil, s.finish(span, "schedule", started, err)
	}

	s.logger.Info("appointment scheduled", "appointment_id", created.ID, "client_id", created.ClientID,
		"therapist_id", created.TherapistID, "date", created.DateKey(), "timeslot", created.Start.String())
	s.finish(span, "schedule", started, nil)
	s.onChange()
	return created, nil
}

// Update rewrites an appointment. The leave check only runs when the date or
// therapist changes and cancelled appointments skip the conflict check.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.update")
	defer span.End()
	started := s.now()
	span.SetAttributes(attribute.String("clinic.appointment_id", id.String()))

	cand, status, err := s.parse(in)
	if err != nil {
		return nil, s.finish(span, "update", started, err)
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.finish(span, "update", started, err)
	}
	if status == "" {
		status = current.Status
	}

	if _, err := s.clients.Get(ctx, cand.ClientID); err != nil {
		return nil, s.finish(span, "update", started, err)
	}
	moved := current.TherapistID != cand.TherapistID || !current.Date.Equal(cand.Date)
	if moved {
		if _, err := s.bookableTherapist(ctx, cand.TherapistID, cand.Date); err != nil {
			return nil, s.finish(span, "update", started, err)
		}
	} else if _, err := s.therapists.Get(ctx, cand.TherapistID); err != nil {
		return nil, s.finish(span, "update", started, err)
	}

	keys := lockKeys(cand)
	keys = append(keys, lockKeys(Candidate{ClientID: current.ClientID, TherapistID: current.TherapistID, Date: current.Date})...)

	var updated *Appointment
	err = s.locker.WithLock(ctx, keys, func(lockCtx context.Context) error {
		if status != StatusCancelled {
			existing, err := s.repo.ListActiveOn(lockCtx, cand.Date)
			if err != nil {
				return fmt.Errorf("load appointments: %w", err)
			}
			if conflict := s.detector.Check(cand, existing, id); conflict != nil {
				s.metrics.ObserveConflict(string(conflict.Type), "detector")
				return &ConflictError{Conflict: *conflict}
			}
		}

		appt, err := s.repo.Reschedule(lockCtx, Appointment{
			ID:          id,
			ClientID:    cand.ClientID,
			TherapistID: cand.TherapistID,
			Date:        cand.Date,
			Start:       cand.Start,
			Status:      status,
			Notes:       strings.TrimSpace(in.Notes),
		})
		if err != nil {
			if ce, ok := conflictFromStore(err); ok {
				s.metrics.ObserveConflict(string(ce.Conflict.Type), "constraint")
				return ce
			}
			return err
		}
		updated = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentUpdated, map[string]any{
			"from": map[string]any{"therapist_id": current.TherapistID.String(), "date": current.DateKey(), "timeslot": current.Start.String(), "status": current.Status},
			"to":   map[string]any{"therapist_id": appt.TherapistID.String(), "date": appt.DateKey(), "timeslot": appt.Start.String(), "status": appt.Status},
		})
		return nil
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		err = ErrSlotBeingBooked
	}
	if err != nil {
		return nil, s.finish(span, "update", started, err)
	}

	s.logger.Info("appointment updated", "appointment_id", id, "status", updated.Status)
	s.finish(span, "update", started, nil)
	s.onChange()
	return updated, nil
}

// Cancel moves a scheduled appointment to cancelled and frees its slot.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusScheduled, StatusCancelled, EventAppointmentCancelled)
}

// Complete marks a scheduled appointment as held.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusScheduled, StatusCompleted, EventAppointmentCompleted)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to Status, event string) (*Appointment, error) {
	op := string(to)
	started := s.now()

	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		s.metrics.ObserveOperation(op, resultOf(err), s.now().Sub(started).Seconds())
		return nil, err
	}
	if appt.Status != from {
		s.metrics.ObserveOperation(op, resultOf(ErrInvalidStatusTransition), s.now().Sub(started).Seconds())
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, id, from, to)
	if err != nil {
		// Lost a race with another writer.
		if errors.Is(err, ErrAppointmentNotFound) {
			err = ErrInvalidStatusTransition
		}
		s.metrics.ObserveOperation(op, resultOf(err), s.now().Sub(started).Seconds())
		return nil, err
	}

	s.logEvent(ctx, id, event, map[string]any{"from": from, "to": to})
	s.logger.Info("appointment status changed", "appointment_id", id, "from", from, "to", to)
	s.metrics.ObserveOperation(op, "ok", s.now().Sub(started).Seconds())
	s.onChange()
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, ErrAppointmentNotFound) {
			s.logger.Error("delete appointment failed", "appointment_id", id, "error", err)
		}
		return err
	}
	s.logEvent(ctx, id, EventAppointmentDeleted, map[string]any{})
	s.logger.Info("appointment deleted", "appointment_id", id)
	s.onChange()
	return nil
}

// bookableTherapist loads a therapist that is active and not on leave on date.
func (s *Service) bookableTherapist(ctx context.Context, id uuid.UUID, date time.Time) (*therapist.Therapist, error) {
	t, err := s.therapists.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, ErrTherapistInactive
	}
	if t.OnLeave(date) {
		return nil, &OnLeaveError{Therapist: t.Name, Date: date}
	}
	return t, nil
}

func (s *Service) parse(in Input) (Candidate, Status, error) {
	if err := validate.Struct(in); err != nil {
		return Candidate{}, "", err
	}
	clientID, _ := uuid.Parse(in.ClientID)
	therapistID, _ := uuid.Parse(in.TherapistID)
	date, _ := timefmt.ParseDateKey(in.Date)
	start, _ := timefmt.ParseClock(in.Time)

	return Candidate{ClientID: clientID, TherapistID: therapistID, Date: date, Start: start}, Status(in.Status), nil
}

// finish records the outcome of an operation on its span and metrics and
// returns err unchanged.
func (s *Service) finish(span trace.Span, op string, started time.Time, err error) error {
	s.metrics.ObserveOperation(op, resultOf(err), s.now().Sub(started).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrSlotBeingBooked):
		return "locked"
	case errors.Is(err, validate.ErrInvalid), errors.Is(err, ErrClientExpired),
		errors.Is(err, ErrTherapistOnLeave), errors.Is(err, ErrTherapistInactive),
		errors.Is(err, ErrInvalidStatusTransition):
		return "rejected"
	case errors.Is(err, ErrAppointmentNotFound), errors.Is(err, ErrClientNotFound),
		errors.Is(err, ErrTherapistNotFound):
		return "not_found"
	}
	return "error"
}

func lockKeys(c Candidate) []string {
	day := timefmt.DateKey(c.Date)
	return []string{
		redisclient.TherapistDayKey(c.TherapistID, day),
		redisclient.ClientDayKey(c.ClientID, day),
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("marshal event payload failed", "event_type", eventType, "error", err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("insert event log failed", "event_type", eventType, "appointment_id", appointmentID, "error", err)
	}
}
