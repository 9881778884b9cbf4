package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-admin/internal/notify"
	"github.com/hackgods/clinic-admin/internal/paging"
	"github.com/hackgods/clinic-admin/internal/timefmt"
	"github.com/hackgods/clinic-admin/internal/validate"
	"github.com/hackgods/clinic-admin/pkg/logging"
)

// Input is the create/update payload of the client form.
type Input struct {
	Name          string     `json:"name" validate:"required"`
	Email         string     `json:"email" validate:"omitempty,clinic_email"`
	Phone         string     `json:"phone" validate:"required"`
	Age           *int       `json:"age" validate:"omitempty,min=0,max=150"`
	Address       string     `json:"address"`
	Notes         string     `json:"notes"`
	ExpiryDate    string     `json:"expiry_date" validate:"required,datekey"`
	PaymentStatus string     `json:"payment_status" validate:"required,oneof=pending paid partial overdue"`
	TotalAmount   float64    `json:"total_amount" validate:"min=0"`
	PaidAmount    float64    `json:"paid_amount" validate:"min=0"`
	PaymentMethod string     `json:"payment_method"`
	PaymentNotes  string     `json:"payment_notes"`
	TherapistID   *uuid.UUID `json:"therapist_id"`
}

// Settings are the membership rules the service applies.
type Settings struct {
	Location       *time.Location
	ReminderWindow int // days
	RenewalDays    int
	PageSize       int
}

type Service struct {
	repo     Repository
	mailer   notify.EmailSender
	settings Settings
	logger   *logging.Logger
	now      func() time.Time
	onChange func()
}

func NewService(repo Repository, mailer notify.EmailSender, settings Settings, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if mailer == nil {
		mailer = notify.NewStubEmailSender(logger)
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.ReminderWindow <= 0 {
		settings.ReminderWindow = 7
	}
	if settings.RenewalDays <= 0 {
		settings.RenewalDays = 30
	}
	if settings.PageSize <= 0 {
		settings.PageSize = 10
	}
	return &Service{
		repo:     repo,
		mailer:   mailer,
		settings: settings,
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
	return timefmt.Today(s.now(), s.settings.Location)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Client, error) {
	return s.repo.Get(ctx, id)
}

// List filters all clients and returns the requested page.
func (s *Service) List(ctx context.Context, f Filter, page int) (paging.Page[Client], error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("list clients failed", "error", err)
		return paging.Page[Client]{}, err
	}
	return paging.Paginate(f.Apply(all, s.today()), page, s.settings.PageSize), nil
}

// All returns every client matching f without paging. Exports use it.
func (s *Service) All(ctx context.Context, f Filter) ([]Client, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return f.Apply(all, s.today()), nil
}

func (s *Service) Create(ctx context.Context, in Input) (*Client, error) {
	c, err := fromInput(in)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, c)
	if err != nil {
		s.logger.Error("create client failed", "error", err)
		return nil, err
	}
	s.logger.Info("client created", "client_id", created.ID, "display_id", created.DisplayID)
	s.onChange()
	return created, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Client, error) {
	c, err := fromInput(in)
	if err != nil {
		return nil, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.ID = id
	if c.TherapistID == nil {
		// The client form does not carry the assignment; scheduling owns it.
		c.TherapistID = current.TherapistID
	}
	updated, err := s.repo.Update(ctx, c)
	if err != nil {
		if !errors.Is(err, ErrClientNotFound) {
			s.logger.Error("update client failed", "client_id", id, "error", err)
		}
		return nil, err
	}
	s.onChange()
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, ErrClientNotFound) {
			s.logger.Error("delete client failed", "client_id", id, "error", err)
		}
		return err
	}
	s.logger.Info("client deleted", "client_id", id)
	s.onChange()
	return nil
}

// BulkDelete removes every client in ids and reports how many rows went.
func (s *Service) BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, validate.Errorf("ids is required")
	}
	n, err := s.repo.DeleteMany(ctx, ids)
	if err != nil {
		s.logger.Error("bulk delete clients failed", "count", len(ids), "error", err)
		return 0, err
	}
	s.logger.Info("clients deleted", "requested", len(ids), "deleted", n)
	s.onChange()
	return n, nil
}

// Renew pushes the expiry to today plus the renewal period and resets the
// payment status to pending.
func (s *Service) Renew(ctx context.Context, id uuid.UUID) (*Client, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	expiry := timefmt.AddDays(s.today(), s.settings.RenewalDays)
	c.ExpiryDate = &expiry
	c.PaymentStatus = PaymentPending

	renewed, err := s.repo.Update(ctx, *c)
	if err != nil {
		s.logger.Error("renew client failed", "client_id", id, "error", err)
		return nil, err
	}
	s.logger.Info("client renewed", "client_id", id, "display_id", renewed.DisplayID, "expiry_date", timefmt.DateKey(expiry))
	s.onChange()
	return renewed, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(all, s.today(), s.settings.ReminderWindow), nil
}

// Expiring lists memberships ending within the reminder window.
func (s *Service) Expiring(ctx context.Context) ([]Expiration, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return Expiring(all, s.today(), s.settings.ReminderWindow), nil
}

// SendReminders emails the selected clients whose membership expired or
// ends within the reminder window. Clients without an email are counted but
// not contacted.
func (s *Service) SendReminders(ctx context.Context, ids []uuid.UUID) (ReminderSummary, error) {
	if len(ids) == 0 {
		return ReminderSummary{}, validate.Errorf("ids is required")
	}
	selected, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return ReminderSummary{}, err
	}
	return s.remind(ctx, selected), nil
}

// RemindExpiring emails every client expiring within the window for which
// shouldSend returns true. The reminder worker passes a per-client-per-day
// de-duplication check.
func (s *Service) RemindExpiring(ctx context.Context, shouldSend func(Client) bool) (ReminderSummary, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return ReminderSummary{}, err
	}
	today := s.today()
	var due []Client
	for _, c := range all {
		if !c.ExpiringWithin(today, s.settings.ReminderWindow) {
			continue
		}
		if shouldSend != nil && !shouldSend(c) {
			continue
		}
		due = append(due, c)
	}
	return s.remind(ctx, due), nil
}

func (s *Service) remind(ctx context.Context, clients []Client) ReminderSummary {
	today := s.today()
	expired, expiring := Classify(clients, today, s.settings.ReminderWindow)

	summary := ReminderSummary{
		Expired:  displayIDs(expired),
		Expiring: displayIDs(expiring),
	}
	for _, c := range append(append([]Client{}, expired...), expiring...) {
		if c.Email == "" {
			continue
		}
		if err := s.mailer.Send(ctx, reminderEmail(c, today)); err != nil {
			summary.Failed++
			s.logger.Warn("reminder email failed", "client_id", c.ID, "error", err)
			continue
		}
		summary.Emailed++
	}
	summary.Message = reminderMessage(summary.Expired, summary.Expiring)
	return summary
}

func reminderEmail(c Client, today time.Time) notify.EmailMessage {
	days, _ := c.DaysUntilExpiry(today)
	expiry := timefmt.DateKey(*c.ExpiryDate)

	var subject, body string
	if days < 0 {
		subject = "Your clinic membership has expired"
		body = fmt.Sprintf("Hello %s,\n\nYour membership (%s) expired on %s. Please contact the front desk to renew.\n", c.Name, c.DisplayID, expiry)
	} else {
		subject = "Your clinic membership expires soon"
		body = fmt.Sprintf("Hello %s,\n\nYour membership (%s) expires on %s (%d days left). Please contact the front desk to renew.\n", c.Name, c.DisplayID, expiry, days)
	}
	return notify.EmailMessage{To: c.Email, ToName: c.Name, Subject: subject, Body: body}
}

func fromInput(in Input) (Client, error) {
	if err := validate.Struct(in); err != nil {
		return Client{}, err
	}
	expiry, _ := timefmt.ParseDateKey(in.ExpiryDate)
	payment, _ := ParsePaymentStatus(in.PaymentStatus)
	return Client{
		Name:          strings.TrimSpace(in.Name),
		Email:         strings.TrimSpace(in.Email),
		Phone:         strings.TrimSpace(in.Phone),
		Age:           in.Age,
		Address:       strings.TrimSpace(in.Address),
		Notes:         strings.TrimSpace(in.Notes),
		ExpiryDate:    &expiry,
		PaymentStatus: payment,
		TotalAmount:   in.TotalAmount,
		PaidAmount:    in.PaidAmount,
		PaymentMethod: strings.TrimSpace(in.PaymentMethod),
		PaymentNotes:  strings.TrimSpace(in.PaymentNotes),
		TherapistID:   in.TherapistID,
	}, nil
}
