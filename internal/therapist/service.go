package therapist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-admin/internal/timefmt"
	"github.com/hackgods/clinic-admin/internal/validate"
	"github.com/hackgods/clinic-admin/pkg/logging"
)

// Input is the create/update payload of the therapist form.
type Input struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,clinic_email"`
	Phone      string `json:"phone"`
	Department string `json:"department" validate:"required"`
	IsActive   *bool  `json:"is_active"`
	Notes      string `json:"notes"`
}

// LeaveInput is the payload of the leave form.
type LeaveInput struct {
	From   string `json:"from" validate:"required,datekey"`
	To     string `json:"to" validate:"required,datekey"`
	Reason string `json:"reason" validate:"required"`
	Notes  string `json:"notes"`
}

// AssignedClientsError blocks a delete while clients still point at the therapist.
type AssignedClientsError struct {
	Count int
}

func (e *AssignedClientsError) Error() string {
	return fmt.Sprintf("Cannot delete therapist. %d clients are assigned to this therapist. Reassign them first.", e.Count)
}

func (e *AssignedClientsError) Is(target error) bool {
	return target == ErrTherapistHasClients
}

type Service struct {
	repo     Repository
	loc      *time.Location
	logger   *logging.Logger
	now      func() time.Time
	onChange func()
}

func NewService(repo Repository, loc *time.Location, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     repo,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
		onChange: func() {},
	}
}

// OnChange registers a hook run after every successful write.
func (s *Service) OnChange(fn func()) {
	if fn != nil {
		s.onChange = fn
	}
}

func (s *Service) today() time.Time {
	return timefmt.Today(s.now(), s.loc)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Therapist, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("list therapists failed", "error", err)
		return nil, err
	}
	return f.Apply(all), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Therapist, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (*Therapist, error) {
	t, err := fromInput(in, true)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, t)
	if err != nil {
		s.logger.Error("create therapist failed", "error", err)
		return nil, err
	}
	s.logger.Info("therapist created", "therapist_id", created.ID, "department", created.Department)
	s.onChange()
	return created, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Therapist, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := fromInput(in, current.IsActive)
	if err != nil {
		return nil, err
	}
	t.ID = id

	updated, err := s.repo.Update(ctx, t)
	if err != nil {
		s.logger.Error("update therapist failed", "therapist_id", id, "error", err)
		return nil, err
	}
	s.onChange()
	return updated, nil
}

// Delete removes a therapist unless clients are still assigned to them.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := s.repo.CountAssignedClients(ctx, id)
	if err != nil {
		s.logger.Error("count assigned clients failed", "therapist_id", id, "error", err)
		return err
	}
	if n > 0 {
		return &AssignedClientsError{Count: n}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, ErrTherapistNotFound) && !errors.Is(err, ErrTherapistInUse) {
			s.logger.Error("delete therapist failed", "therapist_id", id, "error", err)
		}
		return err
	}
	s.logger.Info("therapist deleted", "therapist_id", id)
	s.onChange()
	return nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(all, s.today()), nil
}

func (s *Service) Calendar(ctx context.Context, limit int) ([]CalendarEntry, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return Calendar(all, s.today(), limit), nil
}

// LeaveResult is a therapist after a leave edit plus the entries the edited
// interval overlaps.
type LeaveResult struct {
	Therapist *Therapist      `json:"therapist"`
	Leave     LeaveInterval   `json:"leave"`
	Overlaps  []LeaveInterval `json:"overlaps"`
}

func (s *Service) AddLeave(ctx context.Context, therapistID uuid.UUID, in LeaveInput) (*LeaveResult, error) {
	leave, err := leaveFromInput(in)
	if err != nil {
		return nil, err
	}
	leave.ID = uuid.NewString()

	var overlaps []LeaveInterval
	t, err := s.repo.ModifyLeaves(ctx, therapistID, func(current []LeaveInterval) ([]LeaveInterval, error) {
		overlaps = Overlapping(current, leave)
		return append(append([]LeaveInterval{}, current...), leave), nil
	})
	if err != nil {
		return nil, err
	}
	s.logLeave("leave added", therapistID, leave, overlaps)
	s.onChange()
	return &LeaveResult{Therapist: t, Leave: leave, Overlaps: overlaps}, nil
}

func (s *Service) UpdateLeave(ctx context.Context, therapistID uuid.UUID, leaveID string, in LeaveInput) (*LeaveResult, error) {
	leave, err := leaveFromInput(in)
	if err != nil {
		return nil, err
	}
	leave.ID = leaveID

	var overlaps []LeaveInterval
	t, err := s.repo.ModifyLeaves(ctx, therapistID, func(current []LeaveInterval) ([]LeaveInterval, error) {
		next := make([]LeaveInterval, len(current))
		copy(next, current)
		for i := range next {
			if next[i].ID == leaveID {
				next[i] = leave
				overlaps = Overlapping(next, leave)
				return next, nil
			}
		}
		return nil, ErrLeaveNotFound
	})
	if err != nil {
		return nil, err
	}
	s.logLeave("leave updated", therapistID, leave, overlaps)
	s.onChange()
	return &LeaveResult{Therapist: t, Leave: leave, Overlaps: overlaps}, nil
}

func (s *Service) RemoveLeave(ctx context.Context, therapistID uuid.UUID, leaveID string) (*Therapist, error) {
	t, err := s.repo.ModifyLeaves(ctx, therapistID, func(current []LeaveInterval) ([]LeaveInterval, error) {
		next := make([]LeaveInterval, 0, len(current))
		found := false
		for _, l := range current {
			if l.ID == leaveID {
				found = true
				continue
			}
			next = append(next, l)
		}
		if !found {
			return nil, ErrLeaveNotFound
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("leave removed", "therapist_id", therapistID, "leave_id", leaveID)
	s.onChange()
	return t, nil
}

func (s *Service) logLeave(msg string, therapistID uuid.UUID, leave LeaveInterval, overlaps []LeaveInterval) {
	s.logger.Info(msg, "therapist_id", therapistID, "leave_id", leave.ID,
		"from", timefmt.DateKey(leave.From), "to", timefmt.DateKey(leave.To))
	if len(overlaps) > 0 {
		ids := make([]string, 0, len(overlaps))
		for _, o := range overlaps {
			ids = append(ids, o.ID)
		}
		s.logger.Warn("leave overlaps existing entries", "therapist_id", therapistID,
			"leave_id", leave.ID, "overlapping_ids", strings.Join(ids, ","))
	}
}

func fromInput(in Input, defaultActive bool) (Therapist, error) {
	if err := validate.Struct(in); err != nil {
		return Therapist{}, err
	}
	dept, err := ParseDepartment(in.Department)
	if err != nil {
		return Therapist{}, validate.Errorf("department must be one of the clinic departments")
	}
	active := defaultActive
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return Therapist{
		Name:       strings.TrimSpace(in.Name),
		Email:      strings.TrimSpace(in.Email),
		Phone:      strings.TrimSpace(in.Phone),
		Department: dept,
		IsActive:   active,
		Notes:      strings.TrimSpace(in.Notes),
	}, nil
}

func leaveFromInput(in LeaveInput) (LeaveInterval, error) {
	if err := validate.Struct(in); err != nil {
		return LeaveInterval{}, err
	}
	from, _ := timefmt.ParseDateKey(in.From)
	to, _ := timefmt.ParseDateKey(in.To)
	if to.Before(from) {
		return LeaveInterval{}, validate.Errorf("end date must not be before start date")
	}
	return LeaveInterval{
		From:   from,
		To:     to,
		Reason: strings.TrimSpace(in.Reason),
		Notes:  strings.TrimSpace(in.Notes),
	}, nil
}
