package appointment

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-admin/internal/timefmt"
)

var (
	day1 = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)
)

func appt(therapistID, clientID uuid.UUID, date time.Time, start string) Appointment {
	return Appointment{
		ID:              uuid.New(),
		ClientID:        clientID,
		TherapistID:     therapistID,
		Date:            date,
		Start:           timefmt.MustClock(start),
		Status:          StatusScheduled,
		ClientName:      "Noa Levi",
		ClientDisplayID: "CL-0001",
		TherapistName:   "Dana Katz",
	}
}

func TestCheckOverlapIffWithinDuration(t *testing.T) {
	d := NewDetector(DefaultDuration)
	therapistID := uuid.New()

	for sA := 9 * 60; sA <= 12*60; sA += 15 {
		for sB := sA; sB <= sA+120; sB += 15 {
			existing := appt(therapistID, uuid.New(), day1, timefmt.Clock(sA).String())
			cand := Candidate{ClientID: uuid.New(), TherapistID: therapistID, Date: day1, Start: timefmt.Clock(sB)}

			got := d.Check(cand, []Appointment{existing}, uuid.Nil)
			if sB < sA+60 {
				require.NotNil(t, got, "sA=%d sB=%d", sA, sB)
				assert.Equal(t, ConflictTherapistTime, got.Type)
				assert.Equal(t, sA+60-sB, got.OverlapMinutes)
			} else {
				assert.Nil(t, got, "sA=%d sB=%d", sA, sB)
			}
		}
	}
}

func TestCheckIdenticalSlotAlwaysConflicts(t *testing.T) {
	d := NewDetector(DefaultDuration)
	therapistID := uuid.New()
	existing := appt(therapistID, uuid.New(), day1, "11:15")

	for _, clientID := range []uuid.UUID{existing.ClientID, uuid.New(), uuid.Nil} {
		got := d.Check(Candidate{ClientID: clientID, TherapistID: therapistID, Date: day1, Start: existing.Start},
			[]Appointment{existing}, uuid.Nil)
		require.NotNil(t, got)
	}
}

func TestCheckExcludesEditedAppointment(t *testing.T) {
	d := NewDetector(DefaultDuration)
	existing := appt(uuid.New(), uuid.New(), day1, "10:00")

	got := d.Check(Candidate{
		ClientID:    existing.ClientID,
		TherapistID: existing.TherapistID,
		Date:        existing.Date,
		Start:       existing.Start,
	}, []Appointment{existing}, existing.ID)
	assert.Nil(t, got)
}

func TestCheckBookingScenario(t *testing.T) {
	d := NewDetector(DefaultDuration)
	therapistID := uuid.New()
	existing := []Appointment{appt(therapistID, uuid.New(), day1, "09:00")}

	got := d.Check(Candidate{ClientID: uuid.New(), TherapistID: therapistID, Date: day1, Start: timefmt.MustClock("09:30")}, existing, uuid.Nil)
	require.NotNil(t, got)
	assert.Equal(t, ConflictTherapistTime, got.Type)
	assert.Equal(t, 30, got.OverlapMinutes)
	assert.Equal(t, "Therapist already booked for client Noa Levi (CL-0001) at this time", got.Message)

	got = d.Check(Candidate{ClientID: uuid.New(), TherapistID: therapistID, Date: day1, Start: timefmt.MustClock("10:00")}, existing, uuid.Nil)
	assert.Nil(t, got)
}

func TestCheckClientDoubleBook(t *testing.T) {
	d := NewDetector(DefaultDuration)
	clientID := uuid.New()
	existing := []Appointment{appt(uuid.New(), clientID, day1, "09:00")}

	got := d.Check(Candidate{ClientID: clientID, TherapistID: uuid.New(), Date: day1, Start: timefmt.MustClock("09:00")}, existing, uuid.Nil)
	require.NotNil(t, got)
	assert.Equal(t, ConflictClientTime, got.Type)
	assert.Equal(t, "Client already has an appointment with Dana Katz at this date and time", got.Message)

	// Only the identical instant counts for the client check.
	got = d.Check(Candidate{ClientID: clientID, TherapistID: uuid.New(), Date: day1, Start: timefmt.MustClock("09:30")}, existing, uuid.Nil)
	assert.Nil(t, got)
}

func TestCheckIgnoresCancelledAndOtherDays(t *testing.T) {
	d := NewDetector(DefaultDuration)
	therapistID := uuid.New()
	cancelled := appt(therapistID, uuid.New(), day1, "09:00")
	cancelled.Status = StatusCancelled
	otherDay := appt(therapistID, uuid.New(), day2, "09:00")

	got := d.Check(Candidate{ClientID: uuid.New(), TherapistID: therapistID, Date: day1, Start: timefmt.MustClock("09:00")},
		[]Appointment{cancelled, otherDay}, uuid.Nil)
	assert.Nil(t, got)
}

func TestPairs(t *testing.T) {
	d := NewDetector(DefaultDuration)
	t1, t2 := uuid.New(), uuid.New()
	a := appt(t1, uuid.New(), day1, "09:00")
	b := appt(t1, uuid.New(), day1, "09:45")
	c := appt(t1, uuid.New(), day1, "10:30")
	other := appt(t2, uuid.New(), day1, "09:00")
	nextDay := appt(t1, uuid.New(), day2, "09:15")
	gone := appt(t1, uuid.New(), day1, "09:00")
	gone.Status = StatusCancelled

	pairs := d.Pairs([]Appointment{c, b, a, other, nextDay, gone})
	require.Len(t, pairs, 2)
	assert.Equal(t, a.ID, pairs[0].First.ID)
	assert.Equal(t, b.ID, pairs[0].Second.ID)
	assert.Equal(t, 15, pairs[0].OverlapMinutes)
	assert.Equal(t, b.ID, pairs[1].First.ID)
	assert.Equal(t, c.ID, pairs[1].Second.ID)

	ids := ConflictIDs(pairs)
	assert.Len(t, ids, 3)
	assert.False(t, ids[other.ID])
}

func TestConflictFromStore(t *testing.T) {
	ce, ok := conflictFromStore(&pgconn.PgError{Code: "23505", ConstraintName: ConstraintClientSlot})
	require.True(t, ok)
	assert.Equal(t, ConflictClientTime, ce.Conflict.Type)
	assert.True(t, errors.Is(ce, ErrConflict))

	ce, ok = conflictFromStore(&pgconn.PgError{Code: "23P01", ConstraintName: ConstraintTherapistOverlap})
	require.True(t, ok)
	assert.Equal(t, ConflictTherapistTime, ce.Conflict.Type)
	assert.Equal(t, "Therapist already booked at this time", ce.Error())

	_, ok = conflictFromStore(&pgconn.PgError{Code: "23505", ConstraintName: "schedules_pkey"})
	assert.False(t, ok)
	_, ok = conflictFromStore(errors.New("boom"))
	assert.False(t, ok)
}

func TestAppointmentDerivedDay(t *testing.T) {
	a := appt(uuid.New(), uuid.New(), day1, "09:00")
	assert.Equal(t, "Monday", a.Day())
	a.Date = day2
	assert.Equal(t, "Tuesday", a.Day())
}
