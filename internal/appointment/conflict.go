package appointment

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-admin/internal/db"
	"github.com/hackgods/clinic-admin/internal/timefmt"
)

type ConflictType string

const (
	ConflictTherapistTime ConflictType = "THERAPIST_TIME"
	ConflictClientTime    ConflictType = "CLIENT_TIME"
)

var ErrConflict = errors.New("scheduling conflict")

// Candidate is a booking about to be written.
type Candidate struct {
	ClientID    uuid.UUID
	TherapistID uuid.UUID
	Date        time.Time
	Start       timefmt.Clock
}

type Conflict struct {
	Type           ConflictType `json:"type"`
	Message        string       `json:"message"`
	OverlapMinutes int          `json:"overlap_minutes,omitempty"`
	With           *Appointment `json:"with,omitempty"`
}

// ConflictError carries a Conflict through error returns.
type ConflictError struct {
	Conflict Conflict
}

func (e *ConflictError) Error() string {
	return e.Conflict.Message
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

type Detector struct {
	Duration time.Duration
}

func NewDetector(d time.Duration) Detector {
	if d <= 0 {
		d = DefaultDuration
	}
	return Detector{Duration: d}
}

// Check returns the first conflict between c and existing, or nil. The client
// check runs before the therapist check. excludeID is skipped so an edited
// appointment never conflicts with itself; pass uuid.Nil for new bookings.
func (d Detector) Check(c Candidate, existing []Appointment, excludeID uuid.UUID) *Conflict {
	date := timefmt.DateOf(c.Date)

	if c.ClientID != uuid.Nil {
		for i := range existing {
			a := existing[i]
			if !d.comparable(a, date, excludeID) || a.ClientID != c.ClientID {
				continue
			}
			if a.Start == c.Start {
				return &Conflict{
					Type:           ConflictClientTime,
					Message:        fmt.Sprintf("Client already has an appointment with %s at this date and time", nameOr(a.TherapistName, "another therapist")),
					OverlapMinutes: int(d.Duration / time.Minute),
					With:           &a,
				}
			}
		}
	}

	for i := range existing {
		a := existing[i]
		if !d.comparable(a, date, excludeID) || a.TherapistID != c.TherapistID {
			continue
		}
		if overlap := d.overlap(c.Start, a.Start); overlap > 0 {
			return &Conflict{
				Type:           ConflictTherapistTime,
				Message:        fmt.Sprintf("Therapist already booked for client %s at this time", clientLabel(a)),
				OverlapMinutes: overlap,
				With:           &a,
			}
		}
	}
	return nil
}

func (d Detector) comparable(a Appointment, date time.Time, excludeID uuid.UUID) bool {
	if !a.Active() {
		return false
	}
	if excludeID != uuid.Nil && a.ID == excludeID {
		return false
	}
	return timefmt.DateOf(a.Date).Equal(date)
}

// overlap is the shared length in minutes of two windows of d.Duration.
func (d Detector) overlap(a, b timefmt.Clock) int {
	length := int(d.Duration / time.Minute)
	lo, hi := int(a), int(b)
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo + length - hi
}

// Pair is two active appointments of one therapist that overlap.
type Pair struct {
	First          Appointment `json:"first"`
	Second         Appointment `json:"second"`
	OverlapMinutes int         `json:"overlap_minutes"`
}

// Pairs scans every therapist-day bucket for overlapping appointments.
func (d Detector) Pairs(appts []Appointment) []Pair {
	type bucketKey struct {
		therapist uuid.UUID
		date      string
	}
	buckets := make(map[bucketKey][]Appointment)
	var order []bucketKey
	for _, a := range appts {
		if !a.Active() {
			continue
		}
		k := bucketKey{a.TherapistID, a.DateKey()}
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], a)
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].date != order[j].date {
			return order[i].date < order[j].date
		}
		return order[i].therapist.String() < order[j].therapist.String()
	})

	var pairs []Pair
	for _, k := range order {
		bucket := buckets[k]
		sort.SliceStable(bucket, func(i, j int) bool { return bucket[i].Start < bucket[j].Start })
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				if overlap := d.overlap(bucket[i].Start, bucket[j].Start); overlap > 0 {
					pairs = append(pairs, Pair{First: bucket[i], Second: bucket[j], OverlapMinutes: overlap})
				}
			}
		}
	}
	return pairs
}

// ConflictIDs collects every appointment that takes part in a pair.
func ConflictIDs(pairs []Pair) map[uuid.UUID]bool {
	ids := make(map[uuid.UUID]bool, len(pairs)*2)
	for _, p := range pairs {
		ids[p.First.ID] = true
		ids[p.Second.ID] = true
	}
	return ids
}

func clientLabel(a Appointment) string {
	name := nameOr(a.ClientName, "another client")
	if a.ClientDisplayID == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, a.ClientDisplayID)
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// Store constraints on the schedules table.
const (
	ConstraintClientSlot       = "schedules_client_slot_key"
	ConstraintTherapistOverlap = "schedules_therapist_overlap_excl"
)

// conflictFromStore turns a unique or exclusion violation raised by the
// schedules constraints into a ConflictError.
func conflictFromStore(err error) (*ConflictError, bool) {
	v, ok := db.ConstraintViolation(err)
	if !ok {
		return nil, false
	}
	switch {
	case v.Constraint == ConstraintClientSlot:
		return &ConflictError{Conflict: Conflict{
			Type:    ConflictClientTime,
			Message: "Client already has an appointment at this time",
		}}, true
	case v.Constraint == ConstraintTherapistOverlap, v.Code == db.CodeExclusionViolation:
		return &ConflictError{Conflict: Conflict{
			Type:    ConflictTherapistTime,
			Message: "Therapist already booked at this time",
		}}, true
	}
	return nil, false
}
