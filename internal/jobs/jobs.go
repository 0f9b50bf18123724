// Package jobs runs background work published on the job queue: full
// spreadsheet resyncs and participant imports.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"presensi/internal/metrics"
	"presensi/internal/queue"
	"presensi/internal/sheets"
	"presensi/internal/sheetsync"
)

// ErrUnknownType is returned for messages no handler claims.
var ErrUnknownType = errors.New("unknown job type")

// Importer copies the participants tab into the database.
type Importer interface {
	Run(ctx context.Context) (sheets.ImportResult, error)
}

// Resyncer rewrites the attendance tab from the database.
type Resyncer interface {
	Enqueue(ctx context.Context) sheetsync.Result
}

// Runner dispatches queue messages to their handler.
type Runner struct {
	importer Importer
	resync   Resyncer
	timeout  time.Duration
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewRunner builds a runner. Each job gets at most timeout.
func NewRunner(importer Importer, resync Resyncer, timeout time.Duration, m *metrics.Metrics, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Runner{importer: importer, resync: resync, timeout: timeout, metrics: m, log: log}
}

// Handle processes one message.
func (r *Runner) Handle(ctx context.Context, msg queue.Message) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var err error
	switch msg.Type {
	case queue.TypeSheetsResync:
		res := r.resync.Enqueue(ctx)
		if !res.OK {
			err = fmt.Errorf("resync after %d attempts: %w", res.Attempts, res.Err)
		}
	case queue.TypeParticipantsImport:
		var res sheets.ImportResult
		res, err = r.importer.Run(ctx)
		if err == nil {
			r.log.Info("participants import finished",
				zap.String("job_id", msg.ID),
				zap.Int("created", res.Created),
				zap.Int("updated", res.Updated))
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}

	r.metrics.RecordJob(msg.Type, err)
	if err != nil {
		r.log.Error("job failed", zap.String("job_id", msg.ID), zap.String("type", msg.Type), zap.Error(err))
	}
	return err
}

// Run consumes q until ctx ends. Failed jobs are logged and dropped.
func (r *Runner) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	r.log.Info("worker started, waiting for messages")
	for msg := range messages {
		_ = r.Handle(ctx, msg)
	}
	r.log.Info("worker stopped")
	return nil
}

// NewScheduler publishes a resync job on every tick of spec, a robfig/cron
// expression such as "@every 6h". The returned cron is not started.
func NewScheduler(spec string, q queue.Queue, log *zap.Logger) (*cron.Cron, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		msg := queue.Message{ID: uuid.NewString(), Type: queue.TypeSheetsResync, Requested: time.Now().UTC()}
		if err := q.Publish(ctx, msg); err != nil {
			log.Warn("schedule resync failed", zap.Error(err))
			return
		}
		log.Debug("resync scheduled", zap.String("job_id", msg.ID))
	})
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return c, nil
}
