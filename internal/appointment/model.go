package appointment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-admin/internal/therapist"
	"github.com/hackgods/clinic-admin/internal/timefmt"
)

// DefaultDuration is the length of every session.
const DefaultDuration = 60 * time.Minute

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ParseStatus validates a stored or submitted status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusScheduled, StatusCancelled, StatusCompleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

type Appointment struct {
	ID          uuid.UUID     `json:"id"`
	ClientID    uuid.UUID     `json:"client_id"`
	TherapistID uuid.UUID     `json:"therapist_id"`
	Date        time.Time     `json:"-"`
	Start       timefmt.Clock `json:"timeslot"`
	Status      Status        `json:"status"`
	Notes       string        `json:"notes"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	// Related rows, read through joins.
	ClientName      string               `json:"client_name"`
	ClientDisplayID string               `json:"client_display_id"`
	ClientExpiry    *time.Time           `json:"-"`
	TherapistName   string               `json:"therapist_name"`
	Department      therapist.Department `json:"department"`
}

// Day is the weekday name of Date. It is never stored.
func (a Appointment) Day() string {
	return a.Date.Weekday().String()
}

// DateKey is Date as "YYYY-MM-DD".
func (a Appointment) DateKey() string {
	return timefmt.DateKey(a.Date)
}

// Active reports whether the appointment still holds its slot.
func (a Appointment) Active() bool {
	return a.Status != StatusCancelled
}

// StartsAt places the appointment in loc.
func (a Appointment) StartsAt(loc *time.Location) time.Time {
	return timefmt.At(a.Date, a.Start, loc)
}

// Window is the appointment's [start, end) in minutes since midnight.
func (a Appointment) Window(d time.Duration) (start, end int) {
	return int(a.Start), int(a.Start.Add(d))
}

func (a Appointment) MarshalJSON() ([]byte, error) {
	type plain Appointment
	var expiry *string
	if a.ClientExpiry != nil {
		k := timefmt.DateKey(*a.ClientExpiry)
		expiry = &k
	}
	return json.Marshal(struct {
		plain
		Date         string  `json:"date"`
		Day          string  `json:"day"`
		ClientExpiry *string `json:"client_expiry"`
	}{plain(a), a.DateKey(), a.Day(), expiry})
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
