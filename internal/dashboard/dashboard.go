// Package dashboard summarises a schedule snapshot for the landing page.
package dashboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-admin/internal/appointment"
	"github.com/hackgods/clinic-admin/internal/client"
	"github.com/hackgods/clinic-admin/internal/snapshot"
	"github.com/hackgods/clinic-admin/internal/therapist"
	"github.com/hackgods/clinic-admin/internal/timefmt"
)

const (
	ExpirationWindowDays = 7
	UrgentWindowDays     = 3
	RecentClients        = 5
)

type Counts struct {
	ActiveClients     int `json:"active_clients"`
	ActiveTherapists  int `json:"active_therapists"`
	TodayAppointments int `json:"today_appointments"`
	PendingPayments   int `json:"pending_payments"`
}

type TherapistStatus struct {
	ID              uuid.UUID            `json:"id"`
	Name            string               `json:"name"`
	Department      therapist.Department `json:"department"`
	DepartmentLabel string               `json:"department_label"`
	OnLeave         bool                 `json:"on_leave"`
	Status          string               `json:"status"`
}

type Activity struct {
	ClientID  uuid.UUID `json:"client_id"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Ago       string    `json:"ago"`
}

type DepartmentSummary struct {
	Department therapist.Department `json:"department"`
	Label      string               `json:"label"`
	Therapists int                  `json:"therapists"`
	Clients    int                  `json:"clients"`
}

type Notification struct {
	Kind    string `json:"kind"` // "warning" or "info"
	Title   string `json:"title"`
	Message string `json:"message"`
}

type Dashboard struct {
	GeneratedAt   time.Time                 `json:"generated_at"`
	Date          string                    `json:"date"`
	Counts        Counts                    `json:"counts"`
	Today         []appointment.Appointment `json:"today"`
	Expirations   []client.Expiration       `json:"expirations"`
	Availability  []TherapistStatus         `json:"availability"`
	Recent        []Activity                `json:"recent"`
	Departments   []DepartmentSummary       `json:"departments"`
	Notifications []Notification            `json:"notifications"`
}

// Build derives the dashboard from snap as of now in the clinic location.
func Build(snap *snapshot.Snapshot, now time.Time, loc *time.Location) Dashboard {
	today := timefmt.Today(now, loc)
	d := Dashboard{
		GeneratedAt: now,
		Date:        timefmt.DateKey(today),
		Today:       []appointment.Appointment{},
	}

	for _, c := range snap.Clients {
		if c.Active(today) {
			d.Counts.ActiveClients++
		}
		if c.PaymentStatus == client.PaymentPending {
			d.Counts.PendingPayments++
		}
	}

	for _, a := range snap.Appointments {
		if a.Status == appointment.StatusScheduled && a.Date.Equal(today) {
			d.Today = append(d.Today, a)
		}
	}
	sort.SliceStable(d.Today, func(i, j int) bool { return d.Today[i].Start < d.Today[j].Start })
	d.Counts.TodayAppointments = len(d.Today)

	active := snap.ActiveTherapists()
	d.Counts.ActiveTherapists = len(active)
	d.Availability = make([]TherapistStatus, 0, len(active))
	for _, t := range active {
		st := TherapistStatus{
			ID:              t.ID,
			Name:            t.Name,
			Department:      t.Department,
			DepartmentLabel: t.Department.Label(),
			OnLeave:         t.OnLeave(today),
			Status:          "Available",
		}
		if st.OnLeave {
			st.Status = "On Leave"
		}
		d.Availability = append(d.Availability, st)
	}

	d.Expirations = client.Expiring(snap.Clients, today, ExpirationWindowDays)
	if d.Expirations == nil {
		d.Expirations = []client.Expiration{}
	}
	d.Recent = recentActivity(snap.Clients, now)
	d.Departments = departments(active, snap.Clients)
	d.Notifications = notifications(snap.Clients, today, d.Counts.TodayAppointments)
	return d
}

func recentActivity(clients []client.Client, now time.Time) []Activity {
	sorted := make([]client.Client, len(clients))
	copy(sorted, clients)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	if len(sorted) > RecentClients {
		sorted = sorted[:RecentClients]
	}

	out := make([]Activity, 0, len(sorted))
	for _, c := range sorted {
		therapy := "therapy"
		if c.TherapyType != "" {
			therapy = c.TherapyType.Label()
		}
		a := Activity{
			ClientID:  c.ID,
			Message:   fmt.Sprintf("New client %s registered for %s", c.Name, therapy),
			CreatedAt: c.CreatedAt,
			Ago:       TimeAgo(now, c.CreatedAt),
		}
		if c.TherapistName != "" {
			a.Detail = "Assigned to " + c.TherapistName
		}
		out = append(out, a)
	}
	return out
}

// departments counts active therapists per department and the clients whose
// assigned therapist works there.
func departments(therapists []therapist.Therapist, clients []client.Client) []DepartmentSummary {
	byDept := make(map[therapist.Department]*DepartmentSummary, len(therapist.Departments))
	out := make([]DepartmentSummary, len(therapist.Departments))
	for i, dep := range therapist.Departments {
		out[i] = DepartmentSummary{Department: dep, Label: dep.Label()}
		byDept[dep] = &out[i]
	}
	for _, t := range therapists {
		if s, ok := byDept[t.Department]; ok {
			s.Therapists++
		}
	}
	for _, c := range clients {
		if s, ok := byDept[c.TherapyType]; ok {
			s.Clients++
		}
	}
	return out
}

func notifications(clients []client.Client, today time.Time, todayCount int) []Notification {
	out := []Notification{}
	urgent := 0
	for _, c := range clients {
		if c.ExpiringWithin(today, UrgentWindowDays) {
			urgent++
		}
	}
	if urgent > 0 {
		out = append(out, Notification{
			Kind:    "warning",
			Title:   "Upcoming Expirations",
			Message: fmt.Sprintf("%d client(s) expiring soon", urgent),
		})
	}
	if todayCount > 0 {
		out = append(out, Notification{
			Kind:    "info",
			Title:   "Today's Schedule",
			Message: fmt.Sprintf("%d appointment(s) today", todayCount),
		})
	}
	return out
}

// TimeAgo renders the distance from t to now in the coarsest whole unit.
func TimeAgo(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	case d < 30*24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day")
	}
	return t.Format("Jan 2, 2006")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
