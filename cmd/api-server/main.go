package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/clinic-admin/internal/api"
	"github.com/hackgods/clinic-admin/internal/appointment"
	"github.com/hackgods/clinic-admin/internal/auth"
	"github.com/hackgods/clinic-admin/internal/availability"
	"github.com/hackgods/clinic-admin/internal/client"
	"github.com/hackgods/clinic-admin/internal/config"
	"github.com/hackgods/clinic-admin/internal/db"
	"github.com/hackgods/clinic-admin/internal/metrics"
	"github.com/hackgods/clinic-admin/internal/notify"
	redisclient "github.com/hackgods/clinic-admin/internal/redis"
	"github.com/hackgods/clinic-admin/internal/snapshot"
	"github.com/hackgods/clinic-admin/internal/therapist"
	"github.com/hackgods/clinic-admin/internal/views"
	"github.com/hackgods/clinic-admin/pkg/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With("service", "api-server")
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Error("redis connection error", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", "error", err)
		}
	}()
	logger.Info("connected to Redis")

	m := metrics.NewSchedulingMetrics(nil)
	mailer := notify.NewSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
	}, logger)

	clientRepo := client.NewPgRepository(pgPool)
	therapistRepo := therapist.NewPgRepository(pgPool)
	appointmentRepo := appointment.NewPgRepository(pgPool)

	clients := client.NewService(clientRepo, mailer, client.Settings{
		Location:       cfg.Location,
		ReminderWindow: days(cfg.ReminderWindow),
		RenewalDays:    days(cfg.RenewalPeriod),
		PageSize:       cfg.PageSize,
	}, logger)
	therapists := therapist.NewService(therapistRepo, cfg.Location, logger)
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	appointments := appointment.NewService(appointmentRepo, clients, therapists, locker, cfg, m, logger)

	authSvc := auth.NewService(auth.NewPgRepository(pgPool), rdb, mailer, auth.Settings{
		Secret:     cfg.JWTSecret,
		SessionTTL: cfg.SessionTTL,
		OTPTTL:     cfg.OTPTTL,
		ResetTTL:   cfg.ResetTTL,
		ResetURL:   cfg.PasswordResetURL,
	}, logger)

	store := snapshot.NewStore(snapshot.RepoLoader{
		Appointments: appointmentRepo,
		Clients:      clientRepo,
		Therapists:   therapistRepo,
	}, cfg.SnapshotTTL, m, logger)
	broadcaster := snapshot.NewBroadcaster(store, rdb, logger)
	clients.OnChange(broadcaster.Changed)
	therapists.OnChange(broadcaster.Changed)
	appointments.OnChange(broadcaster.Changed)
	go broadcaster.Listen(rootCtx)

	hours := availability.Hours{Start: cfg.BusinessStart, End: cfg.BusinessEnd, Step: cfg.SlotStep}
	router := api.NewRouter(api.RouterConfig{
		Clients:      clients,
		Therapists:   therapists,
		Appointments: appointments,
		Auth:         authSvc,
		Snapshots:    store,
		Projector:    views.NewProjector(cfg.Location, cfg.AppointmentDuration, hours, cfg.PageSize),
		Logger:       logger,
		Postgres:     pgPool,
		Redis:        api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func days(d time.Duration) int {
	return int(d / (24 * time.Hour))
}
