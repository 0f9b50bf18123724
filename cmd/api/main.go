package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"presensi/internal/api"
	"presensi/internal/attendance"
	"presensi/internal/auth"
	"presensi/internal/config"
	"presensi/internal/eventdate"
	"presensi/internal/jobs"
	"presensi/internal/logger"
	"presensi/internal/metrics"
	"presensi/internal/queue"
	"presensi/internal/sheets"
	"presensi/internal/sheetsync"
	"presensi/internal/stats"
	"presensi/internal/store"
)

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

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, zlog); err != nil {
		zlog.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock, err := eventdate.NewClock(cfg.EventTimezone)
	if err != nil {
		return err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := store.NewDB(connectCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		return err
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = db.Migrate(migrateCtx)
	cancel()
	if err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWithRegistry(reg)

	var jobQueue queue.Queue
	if cfg.QueueBackend == "memory" {
		jobQueue = queue.NewInMemory(64)
	} else {
		jobQueue = queue.NewRedisQueue(redisClient.Client, queue.DefaultRedisKey, func(err error) {
			zlog.Warn("job queue error", zap.Error(err))
		})
	}

	repo := attendance.NewRepository(db.Client)
	att := attendance.NewService(repo, eventdate.NewNormalizer(clock, cfg.EventDateStrict), zlog)
	reports := stats.NewService(repo, clock, cfg.OccurrenceWeekday, cfg.WeekStart)

	var svc sheets.Service
	if cfg.Sheets.Enabled() {
		g, err := sheets.NewGoogle(ctx, cfg.Sheets)
		if err != nil {
			return err
		}
		svc = g
		zlog.Info("spreadsheet mirror enabled", zap.String("spreadsheet", cfg.Sheets.SpreadsheetID))
	} else {
		zlog.Warn("spreadsheet mirror disabled, GOOGLE_SHEETS_* not set")
	}
	book := sheets.NewWorkbook(svc, zlog.Named("sheets"))
	mirror := sheets.NewMirror(book, repo, cfg.Sheets.AttendanceTab)

	// The lock only matters when a worker process shares the spreadsheet.
	var locker sheetsync.Locker
	if cfg.QueueBackend != "memory" {
		locker = store.NewLocker(redisClient.Client, 0)
	}
	syncer := sheetsync.New(mirror, sheetsync.Options{
		Attempts: cfg.SheetSyncAttempts,
		Backoff:  cfg.SheetSyncBackoff,
		Locker:   locker,
		LockTTL:  cfg.SheetLockTTL,

		AttemptTimeout: cfg.SheetSyncAttemptTimeout,

		Permanent: func(err error) bool {
			return errors.Is(err, sheets.ErrNotConfigured)
		},
		Metrics: m,
		Logger:  zlog,
	})

	// Without Redis there is no separate worker to pick up jobs.
	if cfg.QueueBackend == "memory" {
		importer := sheets.NewImporter(book, cfg.Sheets.ParticipantsTab, repo, zlog.Named("import"))
		runner := jobs.NewRunner(importer, syncer, 0, m, zlog.Named("jobs"))
		go func() { _ = runner.Run(ctx, jobQueue) }()
	}

	h := api.NewHandler(api.Deps{
		Attendance:      att,
		Reports:         reports,
		Sync:            syncer,
		Jobs:            jobQueue,
		PIN:             auth.NewPIN(cfg.AdminPIN),
		Issuer:          auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AdminTokenTTL),
		ParticipantsTab: cfg.Sheets.ParticipantsTab,
		SyncWait:        cfg.SheetSyncWait,
		Metrics:         m,
		Logger:          zlog,
	})

	health := map[string]api.HealthCheck{"db": db.Healthy}
	if cfg.QueueBackend != "memory" {
		health["redis"] = redisClient.Healthy
	}

	r := api.NewRouter(h, api.RouterOptions{
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Gatherer:        reg,
		Metrics:         m,
		Logger:          zlog,
		Health:          health,
	})

	// Responses wait up to SheetSyncWait on the mirror, so the write deadline must outlast it.
	writeTimeout := 30 * time.Second
	if cfg.SheetSyncWait+5*time.Second > writeTimeout {
		writeTimeout = cfg.SheetSyncWait + 5*time.Second
	}
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("starting server", zap.String("addr", srv.Addr), zap.Bool("admin_pin", cfg.AdminPIN != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	zlog.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("server forced shutdown", zap.Error(err))
	}
	if err := syncer.Close(shutdownCtx); err != nil {
		zlog.Warn("sheet sync queue did not drain", zap.Error(err))
	}

	zlog.Info("server exited")
	return nil
}
