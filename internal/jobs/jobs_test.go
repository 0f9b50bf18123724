package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presensi/internal/metrics"
	"presensi/internal/queue"
	"presensi/internal/sheets"
	"presensi/internal/sheetsync"
)

type fakeImporter struct {
	calls int
	err   error
}

func (f *fakeImporter) Run(context.Context) (sheets.ImportResult, error) {
	f.calls++
	return sheets.ImportResult{Created: 2, Updated: 1}, f.err
}

type fakeResync struct {
	calls  chan struct{}
	result sheetsync.Result
}

func (f *fakeResync) Enqueue(context.Context) sheetsync.Result {
	f.calls <- struct{}{}
	return f.result
}

func newResync(ok bool) *fakeResync {
	r := sheetsync.Result{OK: ok, Attempts: 1}
	if !ok {
		r.Attempts, r.Err = 3, errors.New("quota exceeded")
	}
	return &fakeResync{calls: make(chan struct{}, 8), result: r}
}

func TestHandleDispatchesByType(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	imp := &fakeImporter{}
	rs := newResync(true)
	r := NewRunner(imp, rs, time.Second, m, nil)

	require.NoError(t, r.Handle(context.Background(), queue.Message{ID: "1", Type: queue.TypeParticipantsImport}))
	require.NoError(t, r.Handle(context.Background(), queue.Message{ID: "2", Type: queue.TypeSheetsResync}))

	assert.Equal(t, 1, imp.calls)
	assert.Len(t, rs.calls, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsProcessed.WithLabelValues(queue.TypeParticipantsImport, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsProcessed.WithLabelValues(queue.TypeSheetsResync, "ok")))
}

func TestHandleFailures(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	imp := &fakeImporter{err: errors.New("tab missing")}
	r := NewRunner(imp, newResync(false), time.Second, m, nil)

	err := r.Handle(context.Background(), queue.Message{Type: queue.TypeSheetsResync})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")

	assert.EqualError(t, r.Handle(context.Background(), queue.Message{Type: queue.TypeParticipantsImport}), "tab missing")

	err = r.Handle(context.Background(), queue.Message{Type: "checkin"})
	assert.ErrorIs(t, err, ErrUnknownType)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsProcessed.WithLabelValues(queue.TypeSheetsResync, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsProcessed.WithLabelValues("checkin", "error")))
}

func TestRunConsumesUntilCancelled(t *testing.T) {
	q := queue.NewInMemory(4)
	rs := newResync(true)
	r := NewRunner(&fakeImporter{}, rs, time.Second, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, q) }()

	require.NoError(t, q.Publish(ctx, queue.Message{Type: queue.TypeSheetsResync}))
	require.NoError(t, q.Publish(ctx, queue.Message{Type: queue.TypeSheetsResync}))
	for i := 0; i < 2; i++ {
		select {
		case <-rs.calls:
		case <-time.After(2 * time.Second):
			t.Fatal("job not handled")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestSchedulerPublishesResync(t *testing.T) {
	q := queue.NewInMemory(1)
	c, err := NewScheduler("@every 6h", q, nil)
	require.NoError(t, err)
	require.Len(t, c.Entries(), 1)

	c.Entries()[0].Job.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	msg := <-ch
	assert.Equal(t, queue.TypeSheetsResync, msg.Type)
	assert.NotEmpty(t, msg.ID)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler("every now and then", queue.NewInMemory(1), nil)
	assert.Error(t, err)
}
