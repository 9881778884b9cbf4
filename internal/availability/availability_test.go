package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-admin/internal/appointment"
	"github.com/hackgods/clinic-admin/internal/therapist"
	"github.com/hackgods/clinic-admin/internal/timefmt"
)

var (
	june10 = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	june11 = time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)
	june12 = time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
)

func session(th therapist.Therapist, date time.Time, start string) appointment.Appointment {
	return appointment.Appointment{
		ID:          uuid.New(),
		ClientID:    uuid.New(),
		TherapistID: th.ID,
		Date:        date,
		Start:       timefmt.MustClock(start),
		Status:      appointment.StatusScheduled,
	}
}

func newTherapist(leaves ...therapist.LeaveInterval) therapist.Therapist {
	return therapist.Therapist{ID: uuid.New(), Name: "Dana Katz", IsActive: true, Leaves: leaves}
}

func TestDefaultHoursTicks(t *testing.T) {
	ticks := DefaultHours().Ticks()
	require.Len(t, ticks, 32)
	assert.Equal(t, "09:00", ticks[0].String())
	assert.Equal(t, "16:45", ticks[len(ticks)-1].String())
}

func TestComputeMarksSessionWindowBusy(t *testing.T) {
	th := newTherapist()
	appts := []appointment.Appointment{
		session(th, june10, "09:00"),
		session(th, june11, "10:00"),             // other day
		session(newTherapist(), june10, "13:00"), // other therapist
	}
	cancelled := session(th, june10, "14:00")
	cancelled.Status = appointment.StatusCancelled
	appts = append(appts, cancelled)

	day := Compute(th, june10, appts, DefaultHours(), time.Hour)
	require.Len(t, day.Sessions, 1)

	busy := map[string]bool{}
	for _, tick := range day.Ticks {
		if tick.Busy {
			busy[tick.Start.String()] = true
		}
	}
	assert.Equal(t, map[string]bool{"09:00": true, "09:15": true, "09:30": true, "09:45": true}, busy)

	free := day.FreeSlots()
	assert.Len(t, free, 28)
	assert.Equal(t, "10:00", free[0].String())
}

func TestLeaveOverridesEveryTick(t *testing.T) {
	th := newTherapist(therapist.LeaveInterval{ID: "l1", From: june10, To: june12, Reason: "Vacation"})
	appts := []appointment.Appointment{session(th, june11, "09:00"), session(th, june11, "15:00")}

	day := Compute(th, june11, appts, DefaultHours(), time.Hour)
	require.True(t, day.OnLeave)
	require.NotNil(t, day.Leave)
	for _, tick := range day.Ticks {
		assert.False(t, tick.Available(), tick.Start.String())
	}
	assert.Empty(t, day.FreeSlots())
	assert.Equal(t, StatusOnLeave, day.CurrentStatus(time.Date(2024, 6, 11, 9, 30, 0, 0, time.UTC), time.UTC))

	free := FindFree(day, 5)
	assert.Empty(t, free.Slots)
	assert.Equal(t, "No available slots found for Dana Katz on 2024-06-11", free.Summary)
}

func TestCurrentStatus(t *testing.T) {
	th := newTherapist()
	day := Compute(th, june10, []appointment.Appointment{session(th, june10, "10:00")}, DefaultHours(), time.Hour)

	assert.Equal(t, StatusBusy, day.CurrentStatus(time.Date(2024, 6, 10, 10, 30, 0, 0, time.UTC), time.UTC))
	assert.Equal(t, StatusAvailable, day.CurrentStatus(time.Date(2024, 6, 10, 11, 0, 0, 0, time.UTC), time.UTC))
	// Another day is never "in session".
	assert.Equal(t, StatusAvailable, day.CurrentStatus(time.Date(2024, 6, 11, 10, 30, 0, 0, time.UTC), time.UTC))
	assert.Equal(t, "In Session", StatusBusy.Label())
}

func TestFindFree(t *testing.T) {
	th := newTherapist()
	day := Compute(th, june10, []appointment.Appointment{session(th, june10, "09:00")}, DefaultHours(), time.Hour)

	free := FindFree(day, 5)
	require.Len(t, free.Slots, 5)
	assert.Equal(t, 23, free.Remaining)
	assert.Equal(t, "Available slots for Dana Katz: 10:00 AM, 10:15 AM, 10:30 AM, 10:45 AM, 11:00 AM and 23 more", free.Summary)
}

func TestCounts(t *testing.T) {
	th := newTherapist()
	day := Compute(th, june10, []appointment.Appointment{session(th, june10, "16:30")}, DefaultHours(), time.Hour)

	free, unavailable := day.Counts()
	assert.Equal(t, 30, free)
	assert.Equal(t, 2, unavailable)
}
