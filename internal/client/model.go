package client

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-admin/internal/therapist"
	"github.com/hackgods/clinic-admin/internal/timefmt"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentPartial PaymentStatus = "partial"
	PaymentOverdue PaymentStatus = "overdue"
)

// ParsePaymentStatus validates a stored or submitted payment status.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch p := PaymentStatus(s); p {
	case PaymentPending, PaymentPaid, PaymentPartial, PaymentOverdue:
		return p, nil
	}
	return "", fmt.Errorf("unknown payment status %q", s)
}

type Client struct {
	ID            uuid.UUID     `json:"id"`
	DisplayID     string        `json:"display_id"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	Age           *int          `json:"age,omitempty"`
	Address       string        `json:"address"`
	Notes         string        `json:"notes"`
	ExpiryDate    *time.Time    `json:"expiry_date"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	TotalAmount   float64       `json:"total_amount"`
	PaidAmount    float64       `json:"paid_amount"`
	PaymentMethod string        `json:"payment_method"`
	PaymentNotes  string        `json:"payment_notes"`
	TherapistID   *uuid.UUID    `json:"therapist_id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	// Read from the assigned therapist, never stored on the client row.
	TherapistName string               `json:"therapist_name,omitempty"`
	TherapyType   therapist.Department `json:"therapy_type,omitempty"`
}

// Expired reports whether the membership ended before today. The expiry date
// itself is still a valid day.
func (c Client) Expired(today time.Time) bool {
	return c.ExpiryDate != nil && c.ExpiryDate.Before(timefmt.DateOf(today))
}

// Active is the complement of Expired. Clients without an expiry never expire.
func (c Client) Active(today time.Time) bool {
	return !c.Expired(today)
}

// DaysUntilExpiry is negative once the membership has expired. ok is false
// when the client has no expiry date.
func (c Client) DaysUntilExpiry(today time.Time) (days int, ok bool) {
	if c.ExpiryDate == nil {
		return 0, false
	}
	return timefmt.DaysBetween(today, *c.ExpiryDate), true
}

// ExpiringWithin reports an expiry between today and today+days inclusive.
func (c Client) ExpiringWithin(today time.Time, days int) bool {
	d, ok := c.DaysUntilExpiry(today)
	return ok && d >= 0 && d <= days
}

// Balance is what remains to be paid.
func (c Client) Balance() float64 {
	return c.TotalAmount - c.PaidAmount
}

// StatusLabel is "Active" or "Expired".
func (c Client) StatusLabel(today time.Time) string {
	if c.Expired(today) {
		return "Expired"
	}
	return "Active"
}
