package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-admin/internal/appointment"
	"github.com/hackgods/clinic-admin/internal/client"
	"github.com/hackgods/clinic-admin/internal/config"
	"github.com/hackgods/clinic-admin/internal/db"
	"github.com/hackgods/clinic-admin/internal/metrics"
	"github.com/hackgods/clinic-admin/internal/notify"
	redisclient "github.com/hackgods/clinic-admin/internal/redis"
	"github.com/hackgods/clinic-admin/internal/snapshot"
	"github.com/hackgods/clinic-admin/internal/therapist"
	"github.com/hackgods/clinic-admin/internal/timefmt"
	"github.com/hackgods/clinic-admin/pkg/logging"
)

type worker struct {
	store    *snapshot.Store
	clients  *client.Service
	detector appointment.Detector
	rdb      *redis.Client
	metrics  *metrics.SchedulingMetrics
	cfg      config.Config
	logger   *logging.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With("service", "reminder-worker")
	logger.Info("reminder-worker starting up", "env", cfg.Env, "interval", cfg.WorkerInterval)

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

	m := metrics.NewSchedulingMetrics(nil)
	mailer := notify.NewSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
	}, logger)

	clientRepo := client.NewPgRepository(pgPool)
	w := &worker{
		store: snapshot.NewStore(snapshot.RepoLoader{
			Appointments: appointment.NewPgRepository(pgPool),
			Clients:      clientRepo,
			Therapists:   therapist.NewPgRepository(pgPool),
		}, cfg.SnapshotTTL, m, logger),
		clients: client.NewService(clientRepo, mailer, client.Settings{
			Location:       cfg.Location,
			ReminderWindow: int(cfg.ReminderWindow / (24 * time.Hour)),
			PageSize:       cfg.PageSize,
		}, logger),
		detector: appointment.NewDetector(cfg.AppointmentDuration),
		rdb:      rdb,
		metrics:  m,
		cfg:      cfg,
		logger:   logger,
	}

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics listener stopped", "error", err)
		}
	}()
	defer func() { _ = metricsSrv.Close() }()

	w.runOnce(rootCtx)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			w.runOnce(rootCtx)
		}
	}
}

func (w *worker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	start := time.Now()
	snap, err := w.store.Reload(runCtx)
	if err != nil {
		w.logger.Error("snapshot reload failed", "error", err)
		return
	}

	pairs := w.detector.Pairs(snap.Appointments)
	w.metrics.SetConflictPairs(len(pairs))
	for _, p := range pairs {
		w.logger.Warn("overlapping appointments",
			"therapist_id", p.First.TherapistID,
			"date", p.First.DateKey(),
			"first", p.First.ID,
			"second", p.Second.ID,
			"overlap_minutes", p.OverlapMinutes,
		)
	}

	windowDays := int(w.cfg.ReminderWindow / (24 * time.Hour))
	today := timefmt.Today(time.Now(), w.cfg.Location)
	w.metrics.SetExpiringClients(len(client.Expiring(snap.Clients, today, windowDays)))

	dayKey := timefmt.DateKey(today)
	summary, err := w.clients.RemindExpiring(runCtx, func(c client.Client) bool {
		first, err := redisclient.Once(runCtx, w.rdb, "reminder:"+c.ID.String()+":"+dayKey, 36*time.Hour)
		if err != nil {
			w.logger.Warn("reminder de-duplication failed, skipping client", "client_id", c.ID, "error", err)
			return false
		}
		return first
	})
	if err != nil {
		w.logger.Error("reminder run failed", "error", err)
		return
	}
	w.metrics.ObserveReminders(summary.Emailed, summary.Failed)

	w.logger.Info("reminder run complete",
		"conflict_pairs", len(pairs),
		"emailed", summary.Emailed,
		"failed", summary.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
