package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratingtrends/chess-rankings/pkg/logger"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func newTestScheduler() *Scheduler {
	cfg := DefaultSchedulerConfig()
	cfg.Logger = logger.Discard()
	cfg.MaxHistorySize = 2
	return NewScheduler(cfg)
}

func TestRegister_Validation(t *testing.T) {
	s := newTestScheduler()

	assert.ErrorIs(t, s.Register(nil, "@daily"), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, "not a spec"), ErrInvalidSchedule)

	require.NoError(t, s.Register(&countingJob{name: "a"}, "0 6 * * *"))
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, "@hourly"), ErrJobAlreadyExists)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "0 6 * * *", jobs[0].Schedule)

	require.NoError(t, s.Unregister("a"))
	assert.ErrorIs(t, s.Unregister("a"), ErrJobNotFound)
}

func TestRunNow_RecordsHistory(t *testing.T) {
	s := newTestScheduler()
	ok := &countingJob{name: "ok"}
	bad := &countingJob{name: "bad", err: errors.New("boom")}
	require.NoError(t, s.Register(ok, "@daily"))
	require.NoError(t, s.Register(bad, "@daily"))

	var completed []string
	s.OnJobComplete(func(r JobResult) { completed = append(completed, r.JobName) })

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Manual)

	_, err = s.RunNow(context.Background(), "bad")
	assert.EqualError(t, err, "boom")
	_, err = s.RunNow(context.Background(), "ok")
	require.NoError(t, err)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	history := s.GetHistory(0)
	require.Len(t, history, 2)
	assert.Equal(t, "bad", history[0].JobName)
	assert.Equal(t, "ok", history[1].JobName)
	assert.Equal(t, []string{"ok", "bad", "ok"}, completed)

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "bad", jobs[0].Name)
	assert.Equal(t, int64(1), jobs[0].FailCount)
	assert.Equal(t, int64(2), jobs[1].RunCount)
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "tick"}
	require.NoError(t, s.Register(job, "@every 1s"))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(ctx), ErrSchedulerNotRunning)
}

func TestStop_CancelsRunningJob(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, "@every 1s"))
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	history := s.GetHistory(1)
	require.Len(t, history, 1)
	assert.ErrorIs(t, history[0].Error, context.Canceled)
}
