// Package export renders clients, appointments and the dashboard as
// downloadable files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/hackgods/clinic-admin/internal/appointment"
	"github.com/hackgods/clinic-admin/internal/client"
	"github.com/hackgods/clinic-admin/internal/dashboard"
	"github.com/hackgods/clinic-admin/internal/timefmt"
)

var (
	clientHeader = []string{
		"Client ID", "Name", "Email", "Phone", "Payment Status",
		"Total Amount", "Paid Amount", "Payment Method", "Expiry Date", "Status",
	}
	appointmentHeader = []string{
		"Date", "Day", "Time", "Client", "Client_Expiry",
		"Therapist", "Therapy", "Status", "Notes",
	}
)

// Filename is "<prefix>-YYYY-MM-DD.<ext>" for the date of now in loc.
func Filename(prefix, ext string, now time.Time, loc *time.Location) string {
	return fmt.Sprintf("%s-%s.%s", prefix, timefmt.DateKey(timefmt.Today(now, loc)), ext)
}

// ClientsCSV writes one row per client. Status is judged against today.
func ClientsCSV(w io.Writer, clients []client.Client, today time.Time) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(clientHeader); err != nil {
		return err
	}
	for _, c := range clients {
		expiry := ""
		if c.ExpiryDate != nil {
			expiry = timefmt.DateKey(*c.ExpiryDate)
		}
		row := []string{
			c.DisplayID,
			c.Name,
			c.Email,
			c.Phone,
			string(c.PaymentStatus),
			amount(c.TotalAmount),
			amount(c.PaidAmount),
			c.PaymentMethod,
			expiry,
			c.StatusLabel(today),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// AppointmentsCSV writes one row per appointment with its client and
// therapist details.
func AppointmentsCSV(w io.Writer, appts []appointment.Appointment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(appointmentHeader); err != nil {
		return err
	}
	for _, a := range appts {
		expiry := ""
		if a.ClientExpiry != nil {
			expiry = timefmt.DateKey(*a.ClientExpiry)
		}
		therapy := "General"
		if a.Department != "" {
			therapy = a.Department.Label()
		}
		row := []string{
			a.DateKey(),
			a.Day(),
			a.Start.Display(),
			a.ClientName,
			expiry,
			a.TherapistName,
			therapy,
			string(a.Status),
			a.Notes,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func amount(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

var reportTmpl = template.Must(template.New("report").Parse(`Clinic Management System Report
Generated: {{.GeneratedAt.Format "Jan 2, 2006 3:04 PM"}}

Active Clients: {{.Counts.ActiveClients}}
Active Therapists: {{.Counts.ActiveTherapists}}
Today's Appointments: {{.Counts.TodayAppointments}}
Pending Payments: {{.Counts.PendingPayments}}

Department Overview:
{{range .Departments}}- {{.Label}}: {{.Therapists}} therapists, {{.Clients}} clients
{{end}}`))

// Report renders the plain text clinic summary.
func Report(w io.Writer, d dashboard.Dashboard, loc *time.Location) error {
	if loc != nil {
		d.GeneratedAt = d.GeneratedAt.In(loc)
	}
	var b strings.Builder
	if err := reportTmpl.Execute(&b, d); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
