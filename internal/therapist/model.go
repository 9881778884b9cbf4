package therapist

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-admin/internal/timefmt"
)

// Department is the therapist's specialty. A client's therapy type is the
// department of the therapist they are assigned to.
type Department string

const (
	OccupationalTherapy Department = "occupational_therapy"
	SpecialEducation    Department = "special_education"
	Educational         Department = "educational"
	Speech1             Department = "speech_1"
	Speech2             Department = "speech_2"
	Speech3             Department = "speech_3"
	Behavioral          Department = "behavioral"
	Physiotherapy       Department = "physiotherapy"
)

// Departments lists every department in display order.
var Departments = []Department{
	OccupationalTherapy,
	SpecialEducation,
	Educational,
	Speech1,
	Speech2,
	Speech3,
	Behavioral,
	Physiotherapy,
}

var departmentLabels = map[Department]string{
	OccupationalTherapy: "Occupational Therapy",
	SpecialEducation:    "Special Education",
	Educational:         "Educational",
	Speech1:             "Speech Therapy 1",
	Speech2:             "Speech Therapy 2",
	Speech3:             "Speech Therapy 3",
	Behavioral:          "Behavioral Therapy",
	Physiotherapy:       "Physiotherapy",
}

// ParseDepartment validates a stored or submitted department value.
func ParseDepartment(s string) (Department, error) {
	d := Department(s)
	if _, ok := departmentLabels[d]; !ok {
		return "", fmt.Errorf("unknown department %q", s)
	}
	return d, nil
}

// Label is the human readable department name. Unknown values render as is.
func (d Department) Label() string {
	if l, ok := departmentLabels[d]; ok {
		return l
	}
	return string(d)
}

type Therapist struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Phone      string          `json:"phone"`
	Department Department      `json:"department"`
	IsActive   bool            `json:"is_active"`
	Notes      string          `json:"notes"`
	Leaves     []LeaveInterval `json:"leave_dates"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// LeaveOn returns the first leave interval covering date.
func (t Therapist) LeaveOn(date time.Time) (LeaveInterval, bool) {
	for _, l := range t.Leaves {
		if l.Covers(date) {
			return l, true
		}
	}
	return LeaveInterval{}, false
}

// OnLeave reports whether any leave interval covers date.
func (t Therapist) OnLeave(date time.Time) bool {
	_, ok := t.LeaveOn(date)
	return ok
}

// LeaveInterval is a closed date range, inclusive on both ends.
type LeaveInterval struct {
	ID     string
	From   time.Time
	To     time.Time
	Reason string
	Notes  string
}

// Covers reports whether date falls within [From, To].
func (l LeaveInterval) Covers(date time.Time) bool {
	d := timefmt.DateOf(date)
	return !d.Before(l.From) && !d.After(l.To)
}

// Days is the number of calendar days in the interval.
func (l LeaveInterval) Days() int {
	return timefmt.DaysBetween(l.From, l.To) + 1
}

// Intersects reports whether two intervals share at least one day.
func (l LeaveInterval) Intersects(o LeaveInterval) bool {
	return !l.From.After(o.To) && !o.From.After(l.To)
}

type leaveJSON struct {
	ID     string `json:"id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
	Notes  string `json:"notes,omitempty"`
}

func (l LeaveInterval) MarshalJSON() ([]byte, error) {
	return json.Marshal(leaveJSON{
		ID:     l.ID,
		From:   timefmt.DateKey(l.From),
		To:     timefmt.DateKey(l.To),
		Reason: l.Reason,
		Notes:  l.Notes,
	})
}

func (l *LeaveInterval) UnmarshalJSON(b []byte) error {
	var raw leaveJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	from, err := timefmt.ParseDateKey(datePart(raw.From))
	if err != nil {
		return fmt.Errorf("leave from: %w", err)
	}
	to, err := timefmt.ParseDateKey(datePart(raw.To))
	if err != nil {
		return fmt.Errorf("leave to: %w", err)
	}
	*l = LeaveInterval{ID: raw.ID, From: from, To: to, Reason: raw.Reason, Notes: raw.Notes}
	return nil
}

// datePart accepts both "2024-06-10" and "2024-06-10T00:00:00".
func datePart(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return s
}
