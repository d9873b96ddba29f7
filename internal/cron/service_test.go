package cron

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/metrics"
)

type fakeLock struct {
	acquired bool
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.acquired = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, lock Lock, reg prometheus.Registerer, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: &bytes.Buffer{}}),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)
	return service
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	service := newTestService(t, lock, nil, failure, success)

	err := service.RunOnce(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Contains(t, err.Error(), "fail: boom")
	assert.Equal(t, 1, success.runs)
	assert.Equal(t, 1, failure.runs)
	assert.Equal(t, 1, lock.releases)
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "receipt-backfill"}
	lock := &fakeLock{held: true}
	service := newTestService(t, lock, nil, job)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.releases)
}

func TestServiceRecordsJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	ok := &testJob{name: "outbox-retention"}
	bad := &testJob{name: "receipt-backfill", err: errors.New("gcs down")}
	service := newTestService(t, &fakeLock{}, reg, ok, bad)

	_ = service.RunOnce(context.Background())

	count, err := testutil.GatherAndCount(reg, "pgwallah_cron_job_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestServiceCountsSkippedCycles(t *testing.T) {
	reg := prometheus.NewRegistry()
	service := newTestService(t, &fakeLock{held: true}, reg, &testJob{name: "receipt-backfill"})

	require.NoError(t, service.RunOnce(context.Background()))
	count, err := testutil.GatherAndCount(reg, "pgwallah_cron_cycles_skipped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

type blockingJob struct{}

func (blockingJob) Name() string { return "stuck" }

func (blockingJob) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestServiceJobTimeout(t *testing.T) {
	registry, err := NewRegistry(blockingJob{})
	require.NoError(t, err)
	service, err := NewService(ServiceParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: &bytes.Buffer{}}),
		Registry:   registry,
		Lock:       &fakeLock{},
		Interval:   time.Minute,
		JobTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	err = service.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "receipt-backfill"}
	service := newTestService(t, &fakeLock{}, nil, job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := service.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, job.runs)
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "cron-test"})})
	require.Error(t, err)
}
