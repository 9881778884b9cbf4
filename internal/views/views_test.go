package views

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-admin/internal/appointment"
	"github.com/hackgods/clinic-admin/internal/availability"
	"github.com/hackgods/clinic-admin/internal/snapshot"
	"github.com/hackgods/clinic-admin/internal/therapist"
	"github.com/hackgods/clinic-admin/internal/timefmt"
)

var (
	monday  = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	tuesday = time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)
)

func projector() Projector {
	return NewProjector(time.UTC, time.Hour, availability.DefaultHours(), 10)
}

func at(date time.Time, hhmm string) time.Time {
	return timefmt.At(date, timefmt.MustClock(hhmm), time.UTC)
}

func booking(th therapist.Therapist, date time.Time, start string) appointment.Appointment {
	return appointment.Appointment{
		ID:            uuid.New(),
		ClientID:      uuid.New(),
		TherapistID:   th.ID,
		Date:          date,
		Start:         timefmt.MustClock(start),
		Status:        appointment.StatusScheduled,
		ClientName:    "Client " + start,
		TherapistName: th.Name,
		Department:    th.Department,
	}
}

func TestTemporalStatus(t *testing.T) {
	p := projector()
	a := booking(therapist.Therapist{ID: uuid.New()}, monday, "10:00")

	assert.Equal(t, Upcoming, p.TemporalStatus(a, at(monday, "09:59")))
	assert.Equal(t, Current, p.TemporalStatus(a, at(monday, "10:00")))
	assert.Equal(t, Current, p.TemporalStatus(a, at(monday, "11:00")))
	assert.Equal(t, Past, p.TemporalStatus(a, at(monday, "11:01")))
	assert.Equal(t, Past, p.TemporalStatus(a, at(tuesday, "08:00")))
	assert.Equal(t, Upcoming, p.TemporalStatus(a, at(monday.AddDate(0, 0, -1), "23:00")))
}

func TestDayGroupsByStartAndFlags(t *testing.T) {
	dana := therapist.Therapist{ID: uuid.New(), Name: "Dana", Department: therapist.Speech1, IsActive: true}
	yael := therapist.Therapist{ID: uuid.New(), Name: "Yael", Department: therapist.Behavioral, IsActive: true}

	a := booking(dana, monday, "09:00")
	b := booking(yael, monday, "09:00")
	c := booking(dana, monday, "09:30") // overlaps a
	d := booking(dana, monday, "12:00") // two idle hours after c
	cancelled := booking(yael, monday, "11:00")
	cancelled.Status = appointment.StatusCancelled
	other := booking(dana, tuesday, "09:00")

	snap := &snapshot.Snapshot{Appointments: []appointment.Appointment{d, c, b, a, cancelled, other}}
	view := projector().Day(snap, monday, at(monday, "09:45"))

	assert.Equal(t, "2024-06-10", view.Date)
	assert.Equal(t, "Monday", view.Weekday)
	assert.True(t, view.IsToday)
	assert.Equal(t, 4, view.Total)
	require.Len(t, view.Groups, 3)
	assert.Equal(t, "9:00 AM", view.Groups[0].Display)
	assert.Len(t, view.Groups[0].Entries, 2)

	byID := map[uuid.UUID]Entry{}
	for _, g := range view.Groups {
		for _, e := range g.Entries {
			byID[e.Appointment.ID] = e
		}
	}
	assert.True(t, byID[a.ID].Conflict)
	assert.True(t, byID[c.ID].Conflict)
	assert.False(t, byID[b.ID].Conflict)
	assert.True(t, byID[d.ID].NextGap)
	assert.False(t, byID[c.ID].NextGap)
	assert.Equal(t, Current, byID[a.ID].Temporal)
	assert.Equal(t, Upcoming, byID[d.ID].Temporal)
}

func TestWeekStartsOnMonday(t *testing.T) {
	th := therapist.Therapist{ID: uuid.New(), Name: "Dana"}
	sunday := time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)
	snap := &snapshot.Snapshot{Appointments: []appointment.Appointment{
		booking(th, monday, "09:00"),
		booking(th, sunday, "10:00"),
		booking(th, sunday.AddDate(0, 0, 1), "10:00"),
	}}

	week := projector().Week(snap, time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC), at(monday, "08:00"))
	assert.Equal(t, "2024-06-10", week.Start)
	assert.Equal(t, "2024-06-16", week.End)
	require.Len(t, week.Days, 7)
	assert.Equal(t, "Monday", week.Days[0].Weekday)
	assert.Equal(t, 1, week.Days[0].Total)
	assert.Equal(t, 1, week.Days[6].Total)
	assert.Equal(t, "Week 24, June 2024", week.Label)
}

func TestListPagination(t *testing.T) {
	th := therapist.Therapist{ID: uuid.New(), Name: "Dana", Department: therapist.Speech1}
	var appts []appointment.Appointment
	for i := 0; i < 23; i++ {
		appts = append(appts, booking(th, timefmt.AddDays(monday, i), "09:00"))
	}
	p := projector()

	sizes := []int{}
	for page := 1; page <= 3; page++ {
		sizes = append(sizes, len(p.List(appts, ListFilter{}, page).Items))
	}
	assert.Equal(t, []int{10, 10, 3}, sizes)

	last := p.List(appts, ListFilter{}, 99)
	assert.Equal(t, 3, last.Page)
	assert.Equal(t, 3, last.TotalPages)
	assert.Equal(t, []int{1, 2, 3}, last.Pages)

	first := p.List(appts, ListFilter{}, 1)
	assert.Equal(t, "2024-06-10", first.Items[0].DateKey())
}

func TestListFilter(t *testing.T) {
	dana := therapist.Therapist{ID: uuid.New(), Name: "Dana", Department: therapist.Speech1}
	yael := therapist.Therapist{ID: uuid.New(), Name: "Yael", Department: therapist.Behavioral}
	a := booking(dana, tuesday, "09:00")
	b := booking(yael, monday, "10:00")
	b.Notes = "Bring sensory kit"
	c := booking(yael, monday, "09:00")
	c.Status = appointment.StatusCancelled

	all := []appointment.Appointment{a, b, c}

	got := ListFilter{Status: "all"}.Apply(all)
	require.Len(t, got, 3)
	assert.Equal(t, c.ID, got[0].ID)
	assert.Equal(t, a.ID, got[2].ID)

	assert.Len(t, ListFilter{Status: "cancelled"}.Apply(all), 1)
	assert.Len(t, ListFilter{Department: "behavioral"}.Apply(all), 2)
	assert.Len(t, ListFilter{TherapistID: dana.ID.String()}.Apply(all), 1)
	assert.Len(t, ListFilter{Search: "sensory"}.Apply(all), 1)
	assert.Len(t, ListFilter{Search: "speech therapy"}.Apply(all), 1)
	assert.Len(t, ListFilter{Search: "yael"}.Apply(all), 2)
}

func TestTherapistGrid(t *testing.T) {
	dana := therapist.Therapist{ID: uuid.New(), Name: "Dana", IsActive: true}
	ruth := therapist.Therapist{ID: uuid.New(), Name: "Ruth", IsActive: true,
		Leaves: []therapist.LeaveInterval{{ID: "l1", From: monday, To: tuesday, Reason: "Course"}}}
	gone := therapist.Therapist{ID: uuid.New(), Name: "Gone", IsActive: false}
	snap := &snapshot.Snapshot{
		Therapists:   []therapist.Therapist{dana, ruth, gone},
		Appointments: []appointment.Appointment{booking(dana, monday, "09:00"), booking(ruth, monday, "09:00")},
	}

	grid := projector().TherapistGrid(snap, monday, uuid.Nil, at(monday, "09:30"))
	require.Len(t, grid.Therapists, 2)
	assert.Equal(t, availability.StatusBusy, grid.Therapists[0].Status)
	assert.Equal(t, availability.StatusOnLeave, grid.Therapists[1].Status)
	assert.Equal(t, 0, grid.Summary.AvailableTherapists)
	assert.Equal(t, 28, grid.Summary.FreeTicks)
	assert.Equal(t, 36, grid.Summary.BusyTicks)
	assert.Equal(t, 44, grid.Summary.FreePercent)

	later := projector().TherapistGrid(snap, monday, dana.ID, at(monday, "15:00"))
	require.Len(t, later.Therapists, 1)
	assert.Equal(t, 1, later.Summary.AvailableTherapists)
	assert.Equal(t, 100, later.Summary.AvailablePercent)
}

func TestStats(t *testing.T) {
	dana := therapist.Therapist{ID: uuid.New(), Name: "Dana", IsActive: true}
	ruth := therapist.Therapist{ID: uuid.New(), Name: "Ruth", IsActive: true,
		Leaves: []therapist.LeaveInterval{{ID: "l1", From: monday, To: monday}}}
	snap := &snapshot.Snapshot{
		Therapists: []therapist.Therapist{dana, ruth},
		Appointments: []appointment.Appointment{
			booking(dana, monday, "09:00"),
			booking(dana, monday, "09:30"),
			booking(dana, monday, "13:00"),
			booking(dana, tuesday, "09:00"),
		},
	}

	st := projector().Stats(snap, at(monday, "10:15"))
	assert.Equal(t, 3, st.ScheduledToday)
	assert.Equal(t, 1, st.OngoingNow)
	assert.Equal(t, 1, st.TherapistsAvailable)
	assert.Equal(t, 1, st.Conflicts)
}
