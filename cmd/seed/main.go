package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"presensi/internal/attendance"
	"presensi/internal/config"
	"presensi/internal/logger"
	"presensi/internal/seed"
	"presensi/internal/store"
)

// Seed loads the participant roster from an Excel workbook into the database.
func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("warning: %v", err)
	}
	cfg := config.Load()

	path := flag.String("file", cfg.SeedExcelPath, "xlsx workbook to import")
	flag.Parse()

	zlog, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	file, err := seed.ResolvePath(*path)
	if err != nil {
		zlog.Fatal("seed failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		zlog.Fatal("migrate failed", zap.Error(err))
	}

	f, err := os.Open(file)
	if err != nil {
		zlog.Fatal("open workbook failed", zap.Error(err))
	}
	defer f.Close()

	rows, err := seed.ReadWorkbook(f)
	if err != nil {
		zlog.Fatal("read workbook failed", zap.String("file", file), zap.Error(err))
	}

	res, err := seed.Apply(ctx, attendance.NewRepository(db.Client), rows)
	if err != nil {
		zlog.Fatal("seed failed", zap.Error(err))
	}
	zlog.Info("seed finished",
		zap.String("file", file),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped))
}
