// Package views derives the schedule projections (day, week, list, therapist
// grid, stats) from a snapshot. Nothing here touches the store.
package views

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-admin/internal/appointment"
	"github.com/hackgods/clinic-admin/internal/availability"
	"github.com/hackgods/clinic-admin/internal/paging"
	"github.com/hackgods/clinic-admin/internal/snapshot"
	"github.com/hackgods/clinic-admin/internal/therapist"
	"github.com/hackgods/clinic-admin/internal/timefmt"
)

type Temporal string

const (
	Past     Temporal = "past"
	Current  Temporal = "current"
	Upcoming Temporal = "upcoming"
)

// MinNextGap is the idle time after a session that flags the following one.
const MinNextGap = 60 * time.Minute

// Projector holds the clinic rules every projection shares.
type Projector struct {
	Location *time.Location
	Duration time.Duration
	Hours    availability.Hours
	PageSize int
}

func NewProjector(loc *time.Location, duration time.Duration, hours availability.Hours, pageSize int) Projector {
	if loc == nil {
		loc = time.UTC
	}
	if duration <= 0 {
		duration = appointment.DefaultDuration
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	return Projector{Location: loc, Duration: duration, Hours: hours, PageSize: pageSize}
}

func (p Projector) detector() appointment.Detector {
	return appointment.NewDetector(p.Duration)
}

// TemporalStatus places an appointment relative to now: past once its window
// has ended, current while it runs, upcoming otherwise.
func (p Projector) TemporalStatus(a appointment.Appointment, now time.Time) Temporal {
	start := a.StartsAt(p.Location)
	end := start.Add(p.Duration)
	switch {
	case now.After(end):
		return Past
	case !now.Before(start):
		return Current
	}
	return Upcoming
}

type Entry struct {
	Appointment appointment.Appointment `json:"appointment"`
	Temporal    Temporal                `json:"temporal"`
	Conflict    bool                    `json:"conflict"`
	NextGap     bool                    `json:"next_gap"`
}

// Group is the appointments sharing one start time.
type Group struct {
	Start   timefmt.Clock `json:"start"`
	Display string        `json:"display"`
	Entries []Entry       `json:"entries"`
}

type DayView struct {
	Date    string  `json:"date"`
	Weekday string  `json:"weekday"`
	IsToday bool    `json:"is_today"`
	Total   int     `json:"total"`
	Groups  []Group `json:"groups"`
}

// Day groups the active appointments of date by start time. Conflict flags
// come from a scan over the whole snapshot.
func (p Projector) Day(snap *snapshot.Snapshot, date time.Time, now time.Time) DayView {
	return p.day(snap.Appointments, appointment.ConflictIDs(p.detector().Pairs(snap.Appointments)), date, now)
}

func (p Projector) day(all []appointment.Appointment, conflicts map[uuid.UUID]bool, date, now time.Time) DayView {
	date = timefmt.DateOf(date)
	var onDay []appointment.Appointment
	for _, a := range all {
		if a.Active() && a.Date.Equal(date) {
			onDay = append(onDay, a)
		}
	}
	sortChronological(onDay)
	gaps := p.nextGaps(onDay)

	view := DayView{
		Date:    timefmt.DateKey(date),
		Weekday: date.Weekday().String(),
		IsToday: timefmt.Today(now, p.Location).Equal(date),
		Total:   len(onDay),
		Groups:  []Group{},
	}
	for _, a := range onDay {
		entry := Entry{
			Appointment: a,
			Temporal:    p.TemporalStatus(a, now),
			Conflict:    conflicts[a.ID],
			NextGap:     gaps[a.ID],
		}
		if n := len(view.Groups); n > 0 && view.Groups[n-1].Start == a.Start {
			view.Groups[n-1].Entries = append(view.Groups[n-1].Entries, entry)
			continue
		}
		view.Groups = append(view.Groups, Group{Start: a.Start, Display: a.Start.Display(), Entries: []Entry{entry}})
	}
	return view
}

// nextGaps flags appointments that follow an idle stretch of at least
// MinNextGap after the same therapist's previous session. appts is sorted.
func (p Projector) nextGaps(appts []appointment.Appointment) map[uuid.UUID]bool {
	prev := make(map[uuid.UUID]appointment.Appointment)
	out := make(map[uuid.UUID]bool)
	for _, a := range appts {
		if last, ok := prev[a.TherapistID]; ok {
			_, lastEnd := last.Window(p.Duration)
			if time.Duration(int(a.Start)-lastEnd)*time.Minute >= MinNextGap {
				out[a.ID] = true
			}
		}
		prev[a.TherapistID] = a
	}
	return out
}

type WeekView struct {
	Start      string    `json:"start"`
	End        string    `json:"end"`
	WeekNumber int       `json:"week_number"`
	Label      string    `json:"label"`
	Days       []DayView `json:"days"`
}

// Week covers the Monday-start week containing ref.
func (p Projector) Week(snap *snapshot.Snapshot, ref time.Time, now time.Time) WeekView {
	start := timefmt.WeekStart(ref)
	conflicts := appointment.ConflictIDs(p.detector().Pairs(snap.Appointments))

	week := WeekView{
		Start:      timefmt.DateKey(start),
		End:        timefmt.DateKey(timefmt.AddDays(start, 6)),
		WeekNumber: timefmt.WeekNumber(start),
		Label:      fmt.Sprintf("Week %d, %s", timefmt.WeekNumber(start), start.Format("January 2006")),
		Days:       make([]DayView, 0, 7),
	}
	for i := 0; i < 7; i++ {
		week.Days = append(week.Days, p.day(snap.Appointments, conflicts, timefmt.AddDays(start, i), now))
	}
	return week
}

// ListFilter narrows the list view. Empty fields and "all" match everything.
type ListFilter struct {
	Status      string
	Department  string
	TherapistID string
	Search      string
}

func (f ListFilter) matches(a appointment.Appointment) bool {
	if set(f.Status) && string(a.Status) != f.Status {
		return false
	}
	if set(f.Department) && string(a.Department) != f.Department {
		return false
	}
	if set(f.TherapistID) && a.TherapistID.String() != f.TherapistID {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))
	if term == "" {
		return true
	}
	for _, field := range []string{a.ClientName, a.TherapistName, string(a.Department), a.Department.Label(), a.Notes} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func set(v string) bool {
	return v != "" && v != "all"
}

// Apply returns the appointments matching f, sorted by date then time.
func (f ListFilter) Apply(appts []appointment.Appointment) []appointment.Appointment {
	out := make([]appointment.Appointment, 0, len(appts))
	for _, a := range appts {
		if f.matches(a) {
			out = append(out, a)
		}
	}
	sortChronological(out)
	return out
}

// List is one page of the filtered appointment list.
func (p Projector) List(appts []appointment.Appointment, f ListFilter, page int) paging.Page[appointment.Appointment] {
	return paging.Paginate(f.Apply(appts), page, p.PageSize)
}

type TherapistRow struct {
	Day         availability.Day    `json:"day"`
	Status      availability.Status `json:"status"`
	StatusLabel string              `json:"status_label"`
}

type GridSummary struct {
	AvailableTherapists int `json:"available_therapists"`
	TotalTherapists     int `json:"total_therapists"`
	AvailablePercent    int `json:"available_percent"`
	FreeTicks           int `json:"free_ticks"`
	BusyTicks           int `json:"busy_ticks"`
	FreePercent         int `json:"free_percent"`
}

type Grid struct {
	Date       string         `json:"date"`
	Therapists []TherapistRow `json:"therapists"`
	Summary    GridSummary    `json:"summary"`
}

// TherapistGrid builds the availability grid of every active therapist on
// date, or only of therapistID when it is set.
func (p Projector) TherapistGrid(snap *snapshot.Snapshot, date time.Time, therapistID uuid.UUID, now time.Time) Grid {
	var therapists []therapist.Therapist
	if therapistID != uuid.Nil {
		if t, ok := snap.Therapist(therapistID); ok {
			therapists = append(therapists, t)
		}
	} else {
		therapists = snap.ActiveTherapists()
	}

	grid := Grid{Date: timefmt.DateKey(date), Therapists: make([]TherapistRow, 0, len(therapists))}
	for _, t := range therapists {
		day := availability.Compute(t, date, snap.Appointments, p.Hours, p.Duration)
		status := day.CurrentStatus(now, p.Location)
		grid.Therapists = append(grid.Therapists, TherapistRow{Day: day, Status: status, StatusLabel: status.Label()})

		free, busy := day.Counts()
		grid.Summary.FreeTicks += free
		grid.Summary.BusyTicks += busy
		if status == availability.StatusAvailable {
			grid.Summary.AvailableTherapists++
		}
	}
	grid.Summary.TotalTherapists = len(grid.Therapists)
	grid.Summary.AvailablePercent = percent(grid.Summary.AvailableTherapists, grid.Summary.TotalTherapists)
	grid.Summary.FreePercent = percent(grid.Summary.FreeTicks, grid.Summary.FreeTicks+grid.Summary.BusyTicks)
	return grid
}

// FreeSlots runs the free-slot finder for one therapist.
func (p Projector) FreeSlots(snap *snapshot.Snapshot, therapistID uuid.UUID, date time.Time, limit int) (availability.Free, bool) {
	t, ok := snap.Therapist(therapistID)
	if !ok {
		return availability.Free{}, false
	}
	return availability.FindFree(availability.Compute(t, date, snap.Appointments, p.Hours, p.Duration), limit), true
}

type Stats struct {
	ScheduledToday      int `json:"scheduled_today"`
	OngoingNow          int `json:"ongoing_now"`
	TherapistsAvailable int `json:"therapists_available"`
	Conflicts           int `json:"conflicts"`
}

func (p Projector) Stats(snap *snapshot.Snapshot, now time.Time) Stats {
	today := timefmt.Today(now, p.Location)
	var st Stats
	for _, a := range snap.Appointments {
		if a.Status != appointment.StatusScheduled || !a.Date.Equal(today) {
			continue
		}
		st.ScheduledToday++
		if p.TemporalStatus(a, now) == Current && now.Before(a.StartsAt(p.Location).Add(p.Duration)) {
			st.OngoingNow++
		}
	}
	for _, t := range snap.ActiveTherapists() {
		if !t.OnLeave(today) {
			st.TherapistsAvailable++
		}
	}
	st.Conflicts = len(p.detector().Pairs(snap.Appointments))
	return st
}

// Conflicts lists every overlapping pair in the snapshot.
func (p Projector) Conflicts(snap *snapshot.Snapshot) []appointment.Pair {
	pairs := p.detector().Pairs(snap.Appointments)
	if pairs == nil {
		return []appointment.Pair{}
	}
	return pairs
}

func percent(n, total int) int {
	if total <= 0 {
		return 0
	}
	return int(float64(n)/float64(total)*100 + 0.5)
}

func sortChronological(appts []appointment.Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		if !appts[i].Date.Equal(appts[j].Date) {
			return appts[i].Date.Before(appts[j].Date)
		}
		return appts[i].Start < appts[j].Start
	})
}
