//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presensi/internal/attendance"
	"presensi/internal/eventdate"
	"presensi/internal/store"
)

func runContainer(t *testing.T, pool *dockertest.Pool, opts *dockertest.RunOptions) *dockertest.Resource {
	t.Helper()
	resource, err := pool.RunWithOptions(opts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	_ = resource.Expire(180)
	t.Cleanup(func() { _ = pool.Purge(resource) })
	return resource
}

func newPool(t *testing.T) *dockertest.Pool {
	t.Helper()
	pool, err := dockertest.NewPool("")
	require.NoError(t, err)
	pool.MaxWait = 2 * time.Minute
	require.NoError(t, pool.Client.Ping())
	return pool
}

func startPostgres(t *testing.T) *store.DB {
	t.Helper()
	pool := newPool(t)
	resource := runContainer(t, pool, &dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=presensi",
			"POSTGRES_PASSWORD=presensi",
			"POSTGRES_DB=presensi",
		},
	})
	dsn := fmt.Sprintf("postgres://presensi:presensi@%s/presensi?sslmode=disable", resource.GetHostPort("5432/tcp"))

	var db *store.DB
	require.NoError(t, pool.Retry(func() error {
		var err error
		db, err = store.NewDB(context.Background(), dsn)
		return err
	}))
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestCheckInRaceAgainstPostgres(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	repo := attendance.NewRepository(db.Client)

	clock, err := eventdate.NewClock("Asia/Jakarta")
	require.NoError(t, err)
	svc := attendance.NewService(repo, eventdate.NewNormalizer(clock, true), nil)

	p, created, err := svc.RegisterParticipant(ctx, attendance.ParticipantInput{Name: "Alya"})
	require.NoError(t, err)
	require.True(t, created)

	const callers = 8
	var wg sync.WaitGroup
	statuses := make([]attendance.CheckInStatus, callers)
	errs := make([]error, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			res, err := svc.CheckIn(ctx, p.ID, "", "2024-01-07")
			statuses[i], errs[i] = res.Status, err
		}(i)
	}
	close(start)
	wg.Wait()

	var createdCount int
	for i := range statuses {
		require.NoError(t, errs[i])
		if statuses[i] == attendance.StatusCreated {
			createdCount++
		} else {
			assert.Equal(t, attendance.StatusAlreadyPresent, statuses[i])
		}
	}
	assert.Equal(t, 1, createdCount)

	var rows int
	require.NoError(t, db.Client.QueryRowContext(ctx, `SELECT count(*) FROM attendance`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestRepositoryConstraintsAgainstPostgres(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	repo := attendance.NewRepository(db.Client)

	_, err := repo.CreateParticipant(ctx, attendance.ParticipantInput{Name: "Budi"})
	require.NoError(t, err)
	_, err = repo.CreateParticipant(ctx, attendance.ParticipantInput{Name: "BUDI"})
	assert.True(t, attendance.IsConflict(err))

	d, _ := eventdate.Parse("2024-01-07")
	_, err = repo.InsertAttendance(ctx, attendance.Attendance{ParticipantID: "00000000-0000-0000-0000-000000000000", EventDate: d})
	assert.True(t, attendance.IsInvalidReference(err))

	_, err = repo.GetParticipant(ctx, "not-a-uuid")
	assert.True(t, attendance.IsNotFound(err))

	p, err := repo.FindParticipantByName(ctx, "budi")
	require.NoError(t, err)
	require.NotNil(t, p)
	_, err = repo.InsertAttendance(ctx, attendance.Attendance{ParticipantID: p.ID, EventDate: d})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteParticipant(ctx, p.ID))
	var left int
	require.NoError(t, db.Client.QueryRowContext(ctx, `SELECT count(*) FROM attendance`).Scan(&left))
	assert.Zero(t, left)

	_, err = repo.GetAttendance(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, errors.Is(err, sql.ErrNoRows) || attendance.IsNotFound(err))
}

func TestLockerAgainstRedis(t *testing.T) {
	pool := newPool(t)
	resource := runContainer(t, pool, &dockertest.RunOptions{Repository: "redis", Tag: "7-alpine"})

	client := redis.NewClient(&redis.Options{Addr: resource.GetHostPort("6379/tcp")})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, pool.Retry(func() error { return client.Ping(context.Background()).Err() }))

	ctx := context.Background()
	first := store.NewLocker(client, 300*time.Millisecond)
	second := store.NewLocker(client, 300*time.Millisecond)

	release, err := first.Acquire(ctx, "presensi:test:lock", 5*time.Second)
	require.NoError(t, err)

	_, err = second.Acquire(ctx, "presensi:test:lock", 5*time.Second)
	assert.ErrorIs(t, err, store.ErrLockTimeout)

	release()
	releaseSecond, err := second.Acquire(ctx, "presensi:test:lock", 5*time.Second)
	require.NoError(t, err)

	// A stale release must not free someone else's lock.
	release()
	_, err = first.Acquire(ctx, "presensi:test:lock", 5*time.Second)
	assert.ErrorIs(t, err, store.ErrLockTimeout)
	releaseSecond()
}
