package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"presensi/internal/attendance"
	"presensi/internal/config"
	"presensi/internal/jobs"
	"presensi/internal/logger"
	"presensi/internal/metrics"
	"presensi/internal/queue"
	"presensi/internal/sheets"
	"presensi/internal/sheetsync"
	"presensi/internal/store"
)

// Worker consumes queue messages, runs scheduled resyncs and participant imports.
func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("warning: %v", err)
	}
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	for _, w := range cfg.Warnings {
		zlog.Warn("config fallback", zap.String("detail", w))
	}

	if cfg.QueueBackend == "memory" {
		zlog.Fatal("worker needs QUEUE_BACKEND=redis, the api runs jobs itself in memory mode")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := store.NewDB(connectCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		zlog.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultRedisKey, func(err error) {
		zlog.Warn("job queue error", zap.Error(err))
	})

	var svc sheets.Service
	if cfg.Sheets.Enabled() {
		g, err := sheets.NewGoogle(ctx, cfg.Sheets)
		if err != nil {
			zlog.Fatal("sheets client failed", zap.Error(err))
		}
		svc = g
	} else {
		zlog.Warn("spreadsheet mirror disabled, jobs will fail until GOOGLE_SHEETS_* is set")
	}

	repo := attendance.NewRepository(db.Client)
	book := sheets.NewWorkbook(svc, zlog.Named("sheets"))
	syncer := sheetsync.New(sheets.NewMirror(book, repo, cfg.Sheets.AttendanceTab), sheetsync.Options{
		Attempts: cfg.SheetSyncAttempts,
		Backoff:  cfg.SheetSyncBackoff,
		Locker:   store.NewLocker(redisClient.Client, 0),
		LockTTL:  cfg.SheetLockTTL,

		AttemptTimeout: cfg.SheetSyncAttemptTimeout,

		Permanent: func(err error) bool {
			return errors.Is(err, sheets.ErrNotConfigured)
		},
		Metrics: m,
		Logger:  zlog,
	})
	importer := sheets.NewImporter(book, cfg.Sheets.ParticipantsTab, repo, zlog.Named("import"))
	runner := jobs.NewRunner(importer, syncer, 0, m, zlog.Named("jobs"))

	sched, err := jobs.NewScheduler(cfg.ResyncSchedule, q, zlog.Named("cron"))
	if err != nil {
		zlog.Fatal("resync schedule invalid", zap.Error(err))
	}
	sched.Start()
	zlog.Info("resync scheduled", zap.String("schedule", cfg.ResyncSchedule))

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Warn("metrics listener stopped", zap.Error(err))
		}
	}()

	if err := runner.Run(ctx, q); err != nil {
		zlog.Error("worker stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	<-sched.Stop().Done()
	_ = metricsSrv.Shutdown(shutdownCtx)
	if err := syncer.Close(shutdownCtx); err != nil {
		zlog.Warn("sheet sync queue did not drain", zap.Error(err))
	}
}
