package client

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Filter narrows the client list.
type Filter struct {
	Search      string
	Status      string // "active", "expired" or ""
	Payment     PaymentStatus
	TherapistID *uuid.UUID
}

// Apply returns matching clients in input order. Search covers name, email,
// phone and display id.
func (f Filter) Apply(clients []Client, today time.Time) []Client {
	term := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]Client, 0, len(clients))
	for _, c := range clients {
		if term != "" && !matches(c, term) {
			continue
		}
		switch f.Status {
		case "active":
			if !c.Active(today) {
				continue
			}
		case "expired":
			if !c.Expired(today) {
				continue
			}
		}
		if f.Payment != "" && c.PaymentStatus != f.Payment {
			continue
		}
		if f.TherapistID != nil && (c.TherapistID == nil || *c.TherapistID != *f.TherapistID) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func matches(c Client, term string) bool {
	for _, f := range []string{c.Name, c.Email, c.Phone, c.DisplayID} {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

type Stats struct {
	Total           int `json:"total"`
	Active          int `json:"active"`
	ExpiringSoon    int `json:"expiring_soon"`
	PendingPayments int `json:"pending_payments"`
}

// ComputeStats counts active clients, those expiring within windowDays and
// pending payments.
func ComputeStats(clients []Client, today time.Time, windowDays int) Stats {
	s := Stats{Total: len(clients)}
	for _, c := range clients {
		if c.Active(today) {
			s.Active++
		}
		if c.ExpiringWithin(today, windowDays) {
			s.ExpiringSoon++
		}
		if c.PaymentStatus == PaymentPending {
			s.PendingPayments++
		}
	}
	return s
}

// Expiration is a client whose membership ends soon.
type Expiration struct {
	Client   Client `json:"client"`
	DaysLeft int    `json:"days_left"`
	Severity string `json:"severity"` // "danger" within 3 days, "warning" otherwise
}

// Expiring lists clients expiring within windowDays, soonest first.
func Expiring(clients []Client, today time.Time, windowDays int) []Expiration {
	var out []Expiration
	for _, c := range clients {
		if !c.ExpiringWithin(today, windowDays) {
			continue
		}
		days, _ := c.DaysUntilExpiry(today)
		severity := "warning"
		if days <= 3 {
			severity = "danger"
		}
		out = append(out, Expiration{Client: c, DaysLeft: days, Severity: severity})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysLeft < out[j].DaysLeft })
	return out
}

// ReminderSummary describes a reminder run over selected clients.
type ReminderSummary struct {
	Expired  []string `json:"expired"`
	Expiring []string `json:"expiring"`
	Emailed  int      `json:"emailed"`
	Failed   int      `json:"failed"`
	Message  string   `json:"message"`
}

// Classify splits clients into expired and expiring-within-windowDays by display id.
func Classify(clients []Client, today time.Time, windowDays int) (expired, expiring []Client) {
	for _, c := range clients {
		switch {
		case c.Expired(today):
			expired = append(expired, c)
		case c.ExpiringWithin(today, windowDays):
			expiring = append(expiring, c)
		}
	}
	return expired, expiring
}

func reminderMessage(expired, expiring []string) string {
	var b strings.Builder
	if n := len(expired); n > 0 {
		verb := "client has"
		if n != 1 {
			verb = "clients have"
		}
		fmt.Fprintf(&b, "%d %s expired (%s). ", n, verb, strings.Join(expired, ", "))
	}
	if n := len(expiring); n > 0 {
		verb := "client is"
		if n != 1 {
			verb = "clients are"
		}
		fmt.Fprintf(&b, "%d %s expiring soon (%s). ", n, verb, strings.Join(expiring, ", "))
	}
	if b.Len() == 0 {
		return "No reminders needed for selected clients"
	}
	return "Reminders sent: " + strings.TrimSpace(b.String())
}

func displayIDs(clients []Client) []string {
	out := make([]string, 0, len(clients))
	for _, c := range clients {
		out = append(out, c.DisplayID)
	}
	return out
}
