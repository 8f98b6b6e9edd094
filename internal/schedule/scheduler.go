package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	Trigger(name string) error
	Start(ctx context.Context)
	Stop()
}

type entry struct {
	job     Job
	spec    string
	id      cron.EntryID
	running atomic.Bool
}

// CronScheduler runs each job on its cron spec. A job never overlaps with
// itself: a tick or trigger that arrives while it runs is skipped.
type CronScheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	entries map[string]*entry
	ctx     context.Context
	wg      sync.WaitGroup
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]*entry),
		ctx:     context.Background(),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[name]; ok {
		return fmt.Errorf("%w: job %s already scheduled", appErr.ErrInvalidInput, name)
	}
	e := &entry{job: job, spec: spec}
	id, err := c.cron.AddFunc(spec, func() { c.run(e) })
	if err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return fmt.Errorf("%w: %v", appErr.ErrInvalidInput, err)
	}
	e.id = id
	c.entries[name] = e
	logger.Info("job scheduled")
	return nil
}

// Trigger runs a scheduled job once in the background, outside its cron spec.
func (c *CronScheduler) Trigger(name string) error {
	c.mu.Lock()
	e, ok := c.entries[name]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: job %s", appErr.ErrNotFound, name)
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(e)
	}()
	return nil
}

// Next returns the next activation time of the named job.
func (c *CronScheduler) Next(name string) (time.Time, bool) {
	c.mu.Lock()
	e, ok := c.entries[name]
	c.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return c.cron.Entry(e.id).Next, true
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx != nil {
		c.mu.Lock()
		c.ctx = ctx
		c.mu.Unlock()
	}
	c.cron.Start()
}

// Stop halts the cron loop and waits for running jobs, triggered ones included.
func (c *CronScheduler) Stop() {
	done := c.cron.Stop()
	<-done.Done()
	c.wg.Wait()
}

func (c *CronScheduler) run(e *entry) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	logger := logutil.GetLogger(ctx).With(zap.String("job", e.job.Name()), zap.String("spec", e.spec))
	if !e.running.CompareAndSwap(false, true) {
		logger.Info("job skipped: still running")
		return
	}
	defer e.running.Store(false)

	start := time.Now()
	logger.Info("job started")
	err := e.job.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
		return
	}
	logger.Info("job finished", zap.Duration("duration", elapsed))
}
