package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-admin/internal/appointment"
	"github.com/hackgods/clinic-admin/internal/auth"
	"github.com/hackgods/clinic-admin/internal/client"
	"github.com/hackgods/clinic-admin/internal/paging"
	"github.com/hackgods/clinic-admin/internal/snapshot"
	"github.com/hackgods/clinic-admin/internal/therapist"
)

type ClientService interface {
	Get(ctx context.Context, id uuid.UUID) (*client.Client, error)
	List(ctx context.Context, f client.Filter, page int) (paging.Page[client.Client], error)
	All(ctx context.Context, f client.Filter) ([]client.Client, error)
	Create(ctx context.Context, in client.Input) (*client.Client, error)
	Update(ctx context.Context, id uuid.UUID, in client.Input) (*client.Client, error)
	Delete(ctx context.Context, id uuid.UUID) error
	BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error)
	Renew(ctx context.Context, id uuid.UUID) (*client.Client, error)
	Stats(ctx context.Context) (client.Stats, error)
	Expiring(ctx context.Context) ([]client.Expiration, error)
	SendReminders(ctx context.Context, ids []uuid.UUID) (client.ReminderSummary, error)
}

type TherapistService interface {
	List(ctx context.Context, f therapist.Filter) ([]therapist.Therapist, error)
	Get(ctx context.Context, id uuid.UUID) (*therapist.Therapist, error)
	Create(ctx context.Context, in therapist.Input) (*therapist.Therapist, error)
	Update(ctx context.Context, id uuid.UUID, in therapist.Input) (*therapist.Therapist, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (therapist.Stats, error)
	Calendar(ctx context.Context, limit int) ([]therapist.CalendarEntry, error)
	AddLeave(ctx context.Context, therapistID uuid.UUID, in therapist.LeaveInput) (*therapist.LeaveResult, error)
	UpdateLeave(ctx context.Context, therapistID uuid.UUID, leaveID string, in therapist.LeaveInput) (*therapist.LeaveResult, error)
	RemoveLeave(ctx context.Context, therapistID uuid.UUID, leaveID string) (*therapist.Therapist, error)
}

type AppointmentService interface {
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListForClient(ctx context.Context, clientID uuid.UUID) ([]appointment.Appointment, error)
	Check(ctx context.Context, in appointment.Input, excludeID uuid.UUID) (*appointment.Conflict, error)
	Schedule(ctx context.Context, in appointment.Input) (*appointment.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, in appointment.Input) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type AuthService interface {
	SignIn(ctx context.Context, email, password string) error
	SendCode(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) (*auth.Session, error)
	CurrentUser(ctx context.Context, token string) (*auth.Admin, error)
	SignOut(ctx context.Context, token string) error
	SendPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password, confirm string) error
	UpdatePassword(ctx context.Context, adminID uuid.UUID, password, confirm string) error
}

// Snapshots serves the read side of the schedule pages.
type Snapshots interface {
	Get(ctx context.Context) (*snapshot.Snapshot, error)
}

type ErrorResponse struct {
	Error    string                `json:"error"`
	Code     string                `json:"code"`
	Conflict *appointment.Conflict `json:"conflict,omitempty"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

type passwordRequest struct {
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

type idsRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

type checkRequest struct {
	appointment.Input
	ExcludeID *uuid.UUID `json:"exclude_id"`
}

type checkResponse struct {
	OK       bool                  `json:"ok"`
	Conflict *appointment.Conflict `json:"conflict,omitempty"`
}

type clientDetail struct {
	Client       *client.Client            `json:"client"`
	Appointments []appointment.Appointment `json:"appointments"`
}
