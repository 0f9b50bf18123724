// Package sheetsync serializes writes to the spreadsheet mirror. A single
// worker goroutine runs jobs one at a time; callers block on a per-job result
// channel and never see an error escape as a failure of their own request.
package sheetsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"presensi/internal/metrics"
)

// State is the lifecycle position of a job.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateExhausted State = "exhausted"
)

// Job kinds, used as metric and log labels.
const (
	KindReplace = "replace"
	KindAppend  = "append"
)

// ErrClosed is returned for jobs submitted after Close.
var ErrClosed = errors.New("sync queue closed")

// Result is what a caller learns about its job. OK is false both when every
// attempt failed and when the caller stopped waiting; Err tells them apart.
type Result struct {
	OK       bool
	State    State
	Attempts int
	Err      error
}

// Target performs the actual spreadsheet writes.
type Target interface {
	ReplaceAttendance(ctx context.Context) error
	AppendRow(ctx context.Context, tab string, row []any) error
}

// Locker guards attempts across processes sharing one spreadsheet.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Options tunes a Queue. Zero values fall back to the defaults below.
type Options struct {
	Attempts int
	Backoff  time.Duration
	Buffer   int

	Locker  Locker
	LockKey string
	LockTTL time.Duration

	// AttemptTimeout bounds one attempt, lock wait included.
	AttemptTimeout time.Duration

	// Permanent reports errors that retrying cannot fix.
	Permanent func(error) bool

	Metrics *metrics.Metrics
	Logger  *zap.Logger

	// Sleep waits between attempts.
	Sleep func(d time.Duration)
}

const (
	DefaultAttempts = 3
	DefaultBackoff  = 300 * time.Millisecond
	DefaultLockKey  = "presensi:sheets:lock"
	DefaultLockTTL  = 30 * time.Second

	DefaultAttemptTimeout = 8 * time.Second
)

type job struct {
	kind string
	ctx  context.Context
	run  func(ctx context.Context) error
	done chan Result
}

// Queue runs spreadsheet jobs strictly one after another.
type Queue struct {
	target Target
	opts   Options
	log    *zap.Logger

	jobs    chan *job
	stopped chan struct{}

	mu     sync.RWMutex
	closed bool
}

// New starts the worker goroutine. Call Close to stop it.
func New(target Target, opts Options) *Queue {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.LockKey == "" {
		opts.LockKey = DefaultLockKey
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	q := &Queue{
		target:  target,
		opts:    opts,
		log:     log.Named("sheetsync"),
		jobs:    make(chan *job, opts.Buffer),
		stopped: make(chan struct{}),
	}
	go q.loop()
	return q
}

// Enqueue schedules a full replace of the attendance tab and waits for it.
func (q *Queue) Enqueue(ctx context.Context) Result {
	return q.submit(ctx, KindReplace, q.target.ReplaceAttendance)
}

// EnqueueAppend schedules a single-row append to tab and waits for it.
func (q *Queue) EnqueueAppend(ctx context.Context, tab string, row []any) Result {
	return q.submit(ctx, KindAppend, func(ctx context.Context) error {
		return q.target.AppendRow(ctx, tab, row)
	})
}

// submit hands a job to the worker. The job keeps ctx's values but not its
// cancellation: once accepted it runs to the end even if the caller leaves.
func (q *Queue) submit(ctx context.Context, kind string, run func(context.Context) error) Result {
	j := &job{
		kind: kind,
		ctx:  context.WithoutCancel(ctx),
		run:  run,
		done: make(chan Result, 1),
	}

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return Result{State: StatePending, Err: ErrClosed}
	}
	select {
	case q.jobs <- j:
		q.opts.Metrics.SyncQueued(1)
	case <-ctx.Done():
		q.mu.RUnlock()
		return Result{State: StatePending, Err: ctx.Err()}
	}
	q.mu.RUnlock()

	select {
	case r := <-j.done:
		return r
	case <-ctx.Done():
		return Result{State: StatePending, Err: ctx.Err()}
	}
}

// Close stops accepting jobs, lets already accepted ones finish and waits
// for the worker to exit or ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	select {
	case <-q.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) loop() {
	defer close(q.stopped)
	for j := range q.jobs {
		r := q.process(j)
		q.opts.Metrics.SyncQueued(-1)
		j.done <- r
	}
}

func (q *Queue) process(j *job) Result {
	start := time.Now()
	res := Result{State: StateRunning}

	for attempt := 1; attempt <= q.opts.Attempts; attempt++ {
		res.Attempts = attempt
		err := q.attempt(j)
		q.opts.Metrics.RecordSyncAttempt(j.kind, err)
		if err == nil {
			res.OK, res.State, res.Err = true, StateSucceeded, nil
			q.opts.Metrics.RecordSyncJob(j.kind, string(res.State), time.Since(start))
			return res
		}
		res.Err = err
		q.log.Warn("sheet sync attempt failed",
			zap.String("kind", j.kind),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if q.opts.Permanent != nil && q.opts.Permanent(err) {
			break
		}
		if attempt < q.opts.Attempts {
			q.opts.Sleep(q.opts.Backoff * time.Duration(attempt))
		}
	}

	res.State = StateExhausted
	q.opts.Metrics.RecordSyncJob(j.kind, string(res.State), time.Since(start))
	q.log.Error("sheet sync gave up",
		zap.String("kind", j.kind),
		zap.Int("attempts", res.Attempts),
		zap.Error(res.Err))
	return res
}

func (q *Queue) attempt(j *job) error {
	ctx, cancel := context.WithTimeout(j.ctx, q.opts.AttemptTimeout)
	defer cancel()

	if q.opts.Locker == nil {
		return j.run(ctx)
	}
	release, err := q.opts.Locker.Acquire(ctx, q.opts.LockKey, q.opts.LockTTL)
	if err != nil {
		return err
	}
	defer release()
	return j.run(ctx)
}
