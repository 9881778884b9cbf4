package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-admin/internal/appointment"
	"github.com/hackgods/clinic-admin/internal/auth"
	"github.com/hackgods/clinic-admin/internal/client"
	"github.com/hackgods/clinic-admin/internal/config"
	"github.com/hackgods/clinic-admin/internal/db"
	"github.com/hackgods/clinic-admin/internal/therapist"
	"github.com/hackgods/clinic-admin/internal/timefmt"
	"github.com/hackgods/clinic-admin/pkg/logging"
)

type seedOptions struct {
	therapistsPerDept   int
	clientsPerTherapist int
	days                int
	perDay              int
	adminEmail          string
	adminPassword       string
}

func main() {
	var opts seedOptions
	flag.IntVar(&opts.therapistsPerDept, "therapists", 2, "therapists per department")
	flag.IntVar(&opts.clientsPerTherapist, "clients", 6, "clients assigned to each therapist")
	flag.IntVar(&opts.days, "days", 14, "days of appointments to book, starting today")
	flag.IntVar(&opts.perDay, "per-day", 4, "appointments per therapist per working day")
	flag.StringVar(&opts.adminEmail, "admin-email", "admin@clinic.local", "admin account to provision, empty to skip")
	flag.StringVar(&opts.adminPassword, "admin-password", "changeme", "password for the provisioned admin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel).With("service", "seed")
	logger.Info("seed starting", "therapists_per_department", opts.therapistsPerDept,
		"clients_per_therapist", opts.clientsPerTherapist, "days", opts.days)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	// Seeding is single-process, so bookings run without Redis locks and the
	// store constraints are the only guard.
	therapists := therapist.NewService(therapist.NewPgRepository(pool), cfg.Location, logger)
	clients := client.NewService(client.NewPgRepository(pool), nil, client.Settings{
		Location: cfg.Location,
		PageSize: cfg.PageSize,
	}, logger)
	appointments := appointment.NewService(appointment.NewPgRepository(pool), clients, therapists, nil, cfg, nil, logger)

	s := seeder{
		therapists:   therapists,
		clients:      clients,
		appointments: appointments,
		loc:          cfg.Location,
		logger:       logger,
	}

	bg := context.Background()
	if opts.adminEmail != "" {
		admins := auth.NewService(auth.NewPgRepository(pool), nil, nil, auth.Settings{Secret: cfg.JWTSecret}, logger)
		if err := seedAdmin(bg, admins, opts, logger); err != nil {
			logger.Error("seed admin", "error", err)
			os.Exit(1)
		}
	}

	roster, err := s.seedTherapists(bg, opts.therapistsPerDept)
	if err != nil {
		logger.Error("seed therapists", "error", err)
		os.Exit(1)
	}
	caseload, err := s.seedClients(bg, roster, opts.clientsPerTherapist)
	if err != nil {
		logger.Error("seed clients", "error", err)
		os.Exit(1)
	}
	booked := s.seedAppointments(bg, roster, caseload, opts.days, opts.perDay)

	logger.Info("seed complete", "therapists", len(roster), "appointments", booked)
}

func seedAdmin(ctx context.Context, admins *auth.Service, opts seedOptions, logger *logging.Logger) error {
	admin, err := admins.Register(ctx, opts.adminEmail, "Clinic Admin", opts.adminPassword)
	if errors.Is(err, auth.ErrEmailTaken) {
		logger.Info("admin already exists", "email", opts.adminEmail)
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("admin provisioned", "admin_id", admin.ID, "email", admin.Email)
	return nil
}

type seeder struct {
	therapists   *therapist.Service
	clients      *client.Service
	appointments *appointment.Service
	loc          *time.Location
	logger       *logging.Logger
}

func (s seeder) seedTherapists(ctx context.Context, perDept int) ([]therapist.Therapist, error) {
	var roster []therapist.Therapist
	for _, dept := range therapist.Departments {
		for i := 0; i < perDept; i++ {
			t, err := s.therapists.Create(ctx, therapist.Input{
				Name:       gofakeit.Name(),
				Email:      gofakeit.Email(),
				Phone:      gofakeit.Phone(),
				Department: string(dept),
			})
			if err != nil {
				return nil, err
			}
			roster = append(roster, *t)
		}
	}

	// A sprinkle of leave so the calendar and grid views have something to show.
	today := timefmt.Today(time.Now(), s.loc)
	for i, t := range roster {
		if i%5 != 0 {
			continue
		}
		from := timefmt.AddDays(today, gofakeit.Number(1, 10))
		to := timefmt.AddDays(from, gofakeit.Number(0, 3))
		if _, err := s.therapists.AddLeave(ctx, t.ID, therapist.LeaveInput{
			From:   timefmt.DateKey(from),
			To:     timefmt.DateKey(to),
			Reason: gofakeit.RandomString([]string{"Vacation", "Sick Leave", "Training", "Personal"}),
		}); err != nil {
			return nil, err
		}
	}

	s.logger.Info("therapists seeded", "count", len(roster))
	return roster, nil
}

func (s seeder) seedClients(ctx context.Context, roster []therapist.Therapist, perTherapist int) (map[uuid.UUID][]client.Client, error) {
	today := timefmt.Today(time.Now(), s.loc)
	statuses := []string{"pending", "paid", "partial", "overdue"}

	caseload := make(map[uuid.UUID][]client.Client, len(roster))
	total := 0
	for _, t := range roster {
		therapistID := t.ID
		for i := 0; i < perTherapist; i++ {
			age := gofakeit.Number(3, 17)
			fee := float64(gofakeit.Number(10, 60) * 100)
			status := statuses[gofakeit.Number(0, len(statuses)-1)]
			paid := 0.0
			switch status {
			case "paid":
				paid = fee
			case "partial":
				paid = fee / 2
			}

			c, err := s.clients.Create(ctx, client.Input{
				Name:          gofakeit.Name(),
				Email:         gofakeit.Email(),
				Phone:         gofakeit.Phone(),
				Age:           &age,
				Address:       gofakeit.Street() + ", " + gofakeit.City(),
				ExpiryDate:    timefmt.DateKey(timefmt.AddDays(today, gofakeit.Number(-5, 90))),
				PaymentStatus: status,
				TotalAmount:   fee,
				PaidAmount:    paid,
				PaymentMethod: gofakeit.RandomString([]string{"cash", "card", "bank_transfer"}),
				TherapistID:   &therapistID,
			})
			if err != nil {
				return nil, err
			}
			caseload[t.ID] = append(caseload[t.ID], *c)
			total++
		}
	}

	s.logger.Info("clients seeded", "count", total)
	return caseload, nil
}

// seedAppointments books each therapist on distinct hours, so the only
// rejections expected are leave days and expired memberships.
func (s seeder) seedAppointments(ctx context.Context, roster []therapist.Therapist,
	caseload map[uuid.UUID][]client.Client, days, perDay int) int {
	today := timefmt.Today(time.Now(), s.loc)
	hours := []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"}
	if perDay > len(hours) {
		perDay = len(hours)
	}

	booked, skipped := 0, 0
	for d := 0; d < days; d++ {
		date := timefmt.AddDays(today, d)
		for _, t := range roster {
			pool := caseload[t.ID]
			if len(pool) == 0 {
				continue
			}
			order := indexes(len(hours))
			gofakeit.ShuffleInts(order)
			for i := 0; i < perDay; i++ {
				c := pool[(d+i)%len(pool)]
				_, err := s.appointments.Schedule(ctx, appointment.Input{
					ClientID:    c.ID.String(),
					TherapistID: t.ID.String(),
					Date:        timefmt.DateKey(date),
					Time:        hours[order[i]],
				})
				if err != nil {
					skipped++
					s.logger.Debug("appointment skipped", "therapist_id", t.ID, "client_id", c.ID,
						"date", timefmt.DateKey(date), "error", err)
					continue
				}
				booked++
			}
		}
	}

	s.logger.Info("appointments seeded", "booked", booked, "skipped", skipped)
	return booked
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
