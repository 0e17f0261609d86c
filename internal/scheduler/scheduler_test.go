package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sp500scope/backend/pkg/logger"
)

type stubJob struct {
	name     string
	schedule string
	calls    int32
	errs     []error // returned in order; nil once exhausted
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return j.schedule }

func (j *stubJob) Run(ctx context.Context) error {
	n := atomic.AddInt32(&j.calls, 1)
	if int(n) <= len(j.errs) {
		return j.errs[n-1]
	}
	return nil
}

func newTestScheduler(maxRetries int) *Scheduler {
	s := New(Options{MaxRetries: maxRetries, RetryDelay: time.Minute}, logger.Nop())
	s.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return s
}

func TestAddJob_RejectsDuplicatesAndBadCron(t *testing.T) {
	s := newTestScheduler(0)

	require.NoError(t, s.AddJob(&stubJob{name: "refresh", schedule: "0 0 */6 * * *"}))
	assert.Error(t, s.AddJob(&stubJob{name: "refresh", schedule: "@daily"}))
	assert.Error(t, s.AddJob(&stubJob{name: "broken", schedule: "not a cron"}))

	assert.Equal(t, []string{"refresh"}, s.GetAllJobs())
}

func TestRunJobSync_RetriesThenSucceeds(t *testing.T) {
	s := newTestScheduler(2)
	job := &stubJob{name: "refresh", schedule: "@daily", errs: []error{fmt.Errorf("boom")}}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync("refresh")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&job.calls))
}

func TestRunJobSync_FailsAfterBoundedRetries(t *testing.T) {
	s := newTestScheduler(1)
	boom := errors.New("boom")
	job := &stubJob{name: "refresh", schedule: "@daily", errs: []error{boom, boom, boom}}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync("refresh")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, "boom", result.Error)

	stats := s.GetJobStats()["refresh"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailureCount)
	assert.NotNil(t, stats.LastFailure)
}

func TestRunJobSync_SkipIsNotRetried(t *testing.T) {
	s := newTestScheduler(3)
	job := &stubJob{name: "refresh", schedule: "@daily", errs: []error{fmt.Errorf("%w: market closed", ErrSkipped)}}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync("refresh")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.Skipped)
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.calls))
}

func TestRunJobSync_UnknownJob(t *testing.T) {
	s := newTestScheduler(0)
	_, err := s.RunJobSync("missing")
	assert.Error(t, err)
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler(0)
	require.NoError(t, s.AddJob(&stubJob{name: "refresh", schedule: "@daily"}))

	require.NoError(t, s.RemoveJob("refresh"))
	assert.Empty(t, s.GetAllJobs())
	assert.Empty(t, s.cron.Entries())
	assert.Error(t, s.RemoveJob("refresh"))
}

func TestJobHistory_KeepsLastHundred(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 150; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}

	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(10), 10)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
}

func TestStats_NextRunAfterStart(t *testing.T) {
	s := newTestScheduler(0)
	require.NoError(t, s.AddJob(&stubJob{name: "refresh", schedule: "@hourly"}))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return s.GetJobStats()["refresh"].NextRun != nil
	}, time.Second, 10*time.Millisecond)
}
