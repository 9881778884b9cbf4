package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-admin/internal/appointment"
	"github.com/hackgods/clinic-admin/internal/client"
	"github.com/hackgods/clinic-admin/internal/dashboard"
	"github.com/hackgods/clinic-admin/internal/therapist"
	"github.com/hackgods/clinic-admin/internal/timefmt"
)

var today = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

func readAll(t *testing.T, b *bytes.Buffer) [][]string {
	t.Helper()
	rows, err := csv.NewReader(b).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, 6, 10, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, "clients-export-2024-06-10.csv", Filename("clients-export", "csv", now, time.UTC))
	assert.Equal(t, "schedule-export-2024-06-11.csv", Filename("schedule-export", "csv", now, time.FixedZone("UTC+3", 3*3600)))
}

func TestClientsCSV(t *testing.T) {
	past := timefmt.AddDays(today, -1)
	clients := []client.Client{
		{DisplayID: "CL-0001", Name: `Amy "A" Smith`, Email: "amy@example.com", PaymentStatus: client.PaymentPaid, TotalAmount: 300, PaidAmount: 300, PaymentMethod: "card", ExpiryDate: &today},
		{DisplayID: "CL-0002", Name: "Ben", PaymentStatus: client.PaymentPending, ExpiryDate: &past},
	}

	var buf bytes.Buffer
	require.NoError(t, ClientsCSV(&buf, clients, today))
	rows := readAll(t, &buf)

	require.Len(t, rows, 3)
	assert.Equal(t, clientHeader, rows[0])
	assert.Equal(t, []string{"CL-0001", `Amy "A" Smith`, "amy@example.com", "", "paid", "300.00", "300.00", "card", "2024-06-10", "Active"}, rows[1])
	assert.Equal(t, "", rows[2][5])
	assert.Equal(t, "Expired", rows[2][9])
}

func TestAppointmentsCSV(t *testing.T) {
	appts := []appointment.Appointment{
		{
			ID: uuid.New(), Date: today, Start: timefmt.MustClock("13:30"), Status: appointment.StatusScheduled,
			ClientName: "Amy", ClientExpiry: &today, TherapistName: "Dana", Department: therapist.Speech2, Notes: "bring forms, please",
		},
		{ID: uuid.New(), Date: today, Start: timefmt.MustClock("09:00"), Status: appointment.StatusCancelled},
	}

	var buf bytes.Buffer
	require.NoError(t, AppointmentsCSV(&buf, appts))
	rows := readAll(t, &buf)

	require.Len(t, rows, 3)
	assert.Equal(t, appointmentHeader, rows[0])
	assert.Equal(t, []string{"2024-06-10", "Monday", "1:30 PM", "Amy", "2024-06-10", "Dana", "Speech Therapy 2", "scheduled", "bring forms, please"}, rows[1])
	assert.Equal(t, "General", rows[2][6])
}

func TestReport(t *testing.T) {
	d := dashboard.Dashboard{
		GeneratedAt: time.Date(2024, 6, 10, 15, 4, 0, 0, time.UTC),
		Counts:      dashboard.Counts{ActiveClients: 12, ActiveTherapists: 4, TodayAppointments: 7, PendingPayments: 2},
		Departments: []dashboard.DepartmentSummary{
			{Department: therapist.Speech1, Label: "Speech Therapy 1", Therapists: 2, Clients: 5},
		},
	}

	var b strings.Builder
	require.NoError(t, Report(&b, d, time.UTC))
	out := b.String()

	assert.True(t, strings.HasPrefix(out, "Clinic Management System Report\n"))
	assert.Contains(t, out, "Generated: Jun 10, 2024 3:04 PM")
	assert.Contains(t, out, "Active Clients: 12\n")
	assert.Contains(t, out, "Today's Appointments: 7\n")
	assert.Contains(t, out, "- Speech Therapy 1: 2 therapists, 5 clients\n")
}
