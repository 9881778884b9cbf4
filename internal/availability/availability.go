// Package availability builds the per-therapist day grid used by the
// therapist view and the free-slot finder.
package availability

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hackgods/clinic-admin/internal/appointment"
	"github.com/hackgods/clinic-admin/internal/therapist"
	"github.com/hackgods/clinic-admin/internal/timefmt"
)

// Hours is the bookable window of a day, [Start, End), sampled every Step.
type Hours struct {
	Start timefmt.Clock
	End   timefmt.Clock
	Step  time.Duration
}

func DefaultHours() Hours {
	return Hours{Start: timefmt.MustClock("09:00"), End: timefmt.MustClock("17:00"), Step: 15 * time.Minute}
}

// Ticks lists every grid point from Start up to End.
func (h Hours) Ticks() []timefmt.Clock {
	step := h.Step
	if step < time.Minute {
		step = 15 * time.Minute
	}
	var out []timefmt.Clock
	for c := h.Start; c < h.End; c = c.Add(step) {
		out = append(out, c)
	}
	return out
}

type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusOnLeave   Status = "on_leave"
)

func (s Status) Label() string {
	switch s {
	case StatusBusy:
		return "In Session"
	case StatusOnLeave:
		return "On Leave"
	}
	return "Available"
}

// Tick is one grid point. Busy is computed from appointments alone; OnLeave
// overrides it when deciding availability.
type Tick struct {
	Start   timefmt.Clock
	Busy    bool
	OnLeave bool
}

func (t Tick) Available() bool {
	return !t.Busy && !t.OnLeave
}

func (t Tick) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time      string `json:"time"`
		Display   string `json:"display"`
		Busy      bool   `json:"busy"`
		OnLeave   bool   `json:"on_leave"`
		Available bool   `json:"available"`
	}{t.Start.String(), t.Start.Display(), t.Busy, t.OnLeave, t.Available()})
}

// Day is the availability of one therapist on one date.
type Day struct {
	Therapist therapist.Therapist       `json:"therapist"`
	Date      time.Time                 `json:"-"`
	OnLeave   bool                      `json:"on_leave"`
	Leave     *therapist.LeaveInterval  `json:"leave,omitempty"`
	Ticks     []Tick                    `json:"ticks"`
	Sessions  []appointment.Appointment `json:"sessions"`

	duration time.Duration
}

// Compute marks every tick inside [start, start+duration) of the therapist's
// active appointments on date as busy.
func Compute(t therapist.Therapist, date time.Time, appts []appointment.Appointment, hours Hours, duration time.Duration) Day {
	if duration <= 0 {
		duration = appointment.DefaultDuration
	}
	date = timefmt.DateOf(date)
	day := Day{Therapist: t, Date: date, Sessions: []appointment.Appointment{}, duration: duration}

	if l, ok := t.LeaveOn(date); ok {
		day.OnLeave = true
		day.Leave = &l
	}

	for _, a := range appts {
		if a.TherapistID != t.ID || !a.Active() || !timefmt.DateOf(a.Date).Equal(date) {
			continue
		}
		day.Sessions = append(day.Sessions, a)
	}
	sortByStart(day.Sessions)

	for _, c := range hours.Ticks() {
		tick := Tick{Start: c, OnLeave: day.OnLeave}
		for _, s := range day.Sessions {
			start, end := s.Window(duration)
			if int(c) >= start && int(c) < end {
				tick.Busy = true
				break
			}
		}
		day.Ticks = append(day.Ticks, tick)
	}
	return day
}

// FreeSlots lists the available ticks chronologically. A day on leave has none.
func (d Day) FreeSlots() []timefmt.Clock {
	if d.OnLeave {
		return nil
	}
	var out []timefmt.Clock
	for _, t := range d.Ticks {
		if t.Available() {
			out = append(out, t.Start)
		}
	}
	return out
}

// Counts returns the number of available and unavailable ticks.
func (d Day) Counts() (free, unavailable int) {
	for _, t := range d.Ticks {
		if t.Available() {
			free++
		} else {
			unavailable++
		}
	}
	return free, unavailable
}

// CurrentStatus is on_leave when a leave covers the date, busy when now falls
// inside a session of today, and available otherwise.
func (d Day) CurrentStatus(now time.Time, loc *time.Location) Status {
	if d.OnLeave {
		return StatusOnLeave
	}
	if !timefmt.Today(now, loc).Equal(d.Date) {
		return StatusAvailable
	}
	if loc == nil {
		loc = time.UTC
	}
	current := int(timefmt.ClockOf(now.In(loc)))
	for _, s := range d.Sessions {
		start, end := s.Window(d.duration)
		if current >= start && current < end {
			return StatusBusy
		}
	}
	return StatusAvailable
}

func (d Day) MarshalJSON() ([]byte, error) {
	type plain Day
	return json.Marshal(struct {
		plain
		Date string `json:"date"`
	}{plain(d), timefmt.DateKey(d.Date)})
}

// Free is the answer of the free-slot finder.
type Free struct {
	Slots     []timefmt.Clock `json:"slots"`
	Remaining int             `json:"remaining"`
	Summary   string          `json:"summary"`
}

// FindFree returns the first n free slots of the day and how many more exist.
func FindFree(d Day, n int) Free {
	all := d.FreeSlots()
	if len(all) == 0 {
		return Free{
			Slots:   []timefmt.Clock{},
			Summary: fmt.Sprintf("No available slots found for %s on %s", d.Therapist.Name, timefmt.DateKey(d.Date)),
		}
	}
	if n <= 0 || n > len(all) {
		n = len(all)
	}
	shown := all[:n]

	labels := make([]string, len(shown))
	for i, c := range shown {
		labels[i] = c.Display()
	}
	summary := fmt.Sprintf("Available slots for %s: %s", d.Therapist.Name, strings.Join(labels, ", "))
	if extra := len(all) - n; extra > 0 {
		summary += fmt.Sprintf(" and %d more", extra)
	}
	return Free{Slots: shown, Remaining: len(all) - n, Summary: summary}
}

func sortByStart(appts []appointment.Appointment) {
	sort.SliceStable(appts, func(i, j int) bool { return appts[i].Start < appts[j].Start })
}
