package client

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

func expiresIn(days int) *time.Time {
	d := today.AddDate(0, 0, days)
	return &d
}

func sampleClients() []Client {
	tid := uuid.New()
	return []Client{
		{ID: uuid.New(), DisplayID: "CL-001", Name: "Noa Levi", Email: "noa@example.com", Phone: "555-0001", ExpiryDate: expiresIn(-1), PaymentStatus: PaymentPending},
		{ID: uuid.New(), DisplayID: "CL-002", Name: "Sam Ortiz", Phone: "555-0002", ExpiryDate: expiresIn(0), PaymentStatus: PaymentPaid, TherapistID: &tid},
		{ID: uuid.New(), DisplayID: "CL-003", Name: "Ivy Chen", Email: "ivy@example.com", Phone: "555-0003", ExpiryDate: expiresIn(5), PaymentStatus: PaymentPending},
		{ID: uuid.New(), DisplayID: "CL-004", Name: "Raj Patel", Phone: "555-0004", ExpiryDate: expiresIn(40), PaymentStatus: PaymentPartial},
		{ID: uuid.New(), DisplayID: "CL-005", Name: "No Expiry", Phone: "555-0005", PaymentStatus: PaymentOverdue},
	}
}

func TestExpiredUsesCivilDates(t *testing.T) {
	cs := sampleClients()
	assert.True(t, cs[0].Expired(today))
	assert.False(t, cs[1].Expired(today), "expiry day itself is still valid")
	assert.False(t, cs[4].Expired(today), "no expiry never expires")

	days, ok := cs[2].DaysUntilExpiry(today)
	require.True(t, ok)
	assert.Equal(t, 5, days)
	assert.Equal(t, "Expired", cs[0].StatusLabel(today))
	assert.Equal(t, "Active", cs[3].StatusLabel(today))
}

func TestFilterApply(t *testing.T) {
	cs := sampleClients()

	assert.Len(t, Filter{Status: "expired"}.Apply(cs, today), 1)
	assert.Len(t, Filter{Status: "active"}.Apply(cs, today), 4)
	assert.Len(t, Filter{Payment: PaymentPending}.Apply(cs, today), 2)
	assert.Len(t, Filter{Search: "cl-00"}.Apply(cs, today), 5, "display id")
	assert.Len(t, Filter{Search: "ivy@"}.Apply(cs, today), 1, "email")
	assert.Len(t, Filter{Search: "0004"}.Apply(cs, today), 1, "phone")
	assert.Len(t, Filter{TherapistID: cs[1].TherapistID}.Apply(cs, today), 1)
}

func TestComputeStats(t *testing.T) {
	s := ComputeStats(sampleClients(), today, 7)
	assert.Equal(t, Stats{Total: 5, Active: 4, ExpiringSoon: 2, PendingPayments: 2}, s)
}

func TestExpiringSortedWithSeverity(t *testing.T) {
	exp := Expiring(sampleClients(), today, 7)
	require.Len(t, exp, 2)
	assert.Equal(t, "CL-002", exp[0].Client.DisplayID)
	assert.Equal(t, 0, exp[0].DaysLeft)
	assert.Equal(t, "danger", exp[0].Severity)
	assert.Equal(t, "CL-003", exp[1].Client.DisplayID)
	assert.Equal(t, "warning", exp[1].Severity)
}

func TestReminderMessage(t *testing.T) {
	assert.Equal(t, "No reminders needed for selected clients", reminderMessage(nil, nil))
	assert.Equal(t, "Reminders sent: 1 client has expired (CL-001).", reminderMessage([]string{"CL-001"}, nil))
	assert.Equal(t,
		"Reminders sent: 2 clients have expired (CL-001, CL-009). 1 client is expiring soon (CL-003).",
		reminderMessage([]string{"CL-001", "CL-009"}, []string{"CL-003"}))
}
