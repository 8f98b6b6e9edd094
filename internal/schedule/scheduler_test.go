package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type blockingJob struct {
	runs    int32
	release chan struct{}
	started chan struct{}
}

func (j *blockingJob) Name() string { return "blocking" }

func (j *blockingJob) Run(ctx context.Context) error {
	atomic.AddInt32(&j.runs, 1)
	j.started <- struct{}{}
	<-j.release
	return nil
}

func TestCronScheduler_TriggerSkipsWhileRunning(t *testing.T) {
	s := NewCronScheduler()
	job := &blockingJob{release: make(chan struct{}), started: make(chan struct{}, 4)}
	require.NoError(t, s.AddJob(job, "@every 1h"))
	s.Start(context.Background())

	require.NoError(t, s.Trigger("blocking"))
	<-job.started
	require.NoError(t, s.Trigger("blocking"))
	time.Sleep(50 * time.Millisecond)
	close(job.release)
	s.Stop()
	require.EqualValues(t, 1, atomic.LoadInt32(&job.runs))
}

func TestCronScheduler_Errors(t *testing.T) {
	s := NewCronScheduler()
	job := &blockingJob{release: make(chan struct{}), started: make(chan struct{}, 1)}
	require.ErrorIs(t, s.AddJob(job, "not a spec"), appErr.ErrInvalidInput)
	require.NoError(t, s.AddJob(job, "0 */6 * * *"))
	require.ErrorIs(t, s.AddJob(job, "0 */6 * * *"), appErr.ErrInvalidInput)
	require.ErrorIs(t, s.Trigger("missing"), appErr.ErrNotFound)

	s.Start(context.Background())
	next, ok := s.Next("blocking")
	require.True(t, ok)
	require.True(t, next.After(time.Now()))
	s.Stop()
}
