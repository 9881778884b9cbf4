package therapist

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Filter narrows the roster list.
type Filter struct {
	Department Department
	Search     string
}

// Apply returns the therapists matching f, in input order. Search matches
// name, email, department label and phone case-insensitively.
func (f Filter) Apply(therapists []Therapist) []Therapist {
	term := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]Therapist, 0, len(therapists))
	for _, t := range therapists {
		if f.Department != "" && t.Department != f.Department {
			continue
		}
		if term != "" && !matches(t, term) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matches(t Therapist, term string) bool {
	fields := []string{t.Name, t.Email, t.Department.Label(), string(t.Department), t.Phone}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// Stats summarizes the roster for the therapists page.
type Stats struct {
	Total        int `json:"total"`
	OnLeaveToday int `json:"on_leave_today"`
	AvailableNow int `json:"available_now"`
	Departments  int `json:"departments"`
}

// ComputeStats counts therapists on leave today and active therapists who
// are not.
func ComputeStats(therapists []Therapist, today time.Time) Stats {
	s := Stats{Total: len(therapists), Departments: len(Departments)}
	for _, t := range therapists {
		onLeave := t.OnLeave(today)
		if onLeave {
			s.OnLeaveToday++
		}
		if t.IsActive && !onLeave {
			s.AvailableNow++
		}
	}
	return s
}

// UpcomingLeaves counts leave intervals that have not ended before today.
func (t Therapist) UpcomingLeaves(today time.Time) int {
	n := 0
	for _, l := range t.Leaves {
		if !l.To.Before(today) {
			n++
		}
	}
	return n
}

// CalendarEntry is one leave interval on the clinic leave calendar.
type CalendarEntry struct {
	Leave          LeaveInterval `json:"leave"`
	TherapistID    uuid.UUID     `json:"therapist_id"`
	TherapistName  string        `json:"therapist_name"`
	Department     Department    `json:"department"`
	DepartmentName string        `json:"department_name"`
	Ongoing        bool          `json:"ongoing"`
}

// Calendar lists current and upcoming leave across all therapists ordered by
// start date. limit <= 0 means no limit.
func Calendar(therapists []Therapist, today time.Time, limit int) []CalendarEntry {
	var entries []CalendarEntry
	for _, t := range therapists {
		for _, l := range t.Leaves {
			if l.To.Before(today) {
				continue
			}
			entries = append(entries, CalendarEntry{
				Leave:          l,
				TherapistID:    t.ID,
				TherapistName:  t.Name,
				Department:     t.Department,
				DepartmentName: t.Department.Label(),
				Ongoing:        l.Covers(today),
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Leave.From.Before(entries[j].Leave.From)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Overlapping returns the intervals in leaves, other than the one with
// candidate's id, that share a day with candidate. Overlaps are reported, not
// rejected.
func Overlapping(leaves []LeaveInterval, candidate LeaveInterval) []LeaveInterval {
	var out []LeaveInterval
	for _, l := range leaves {
		if l.ID == candidate.ID {
			continue
		}
		if l.Intersects(candidate) {
			out = append(out, l)
		}
	}
	return out
}
