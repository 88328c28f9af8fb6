// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"brokerfolio/internal/logger"
)

const defaultJobTimeout = 10 * time.Minute

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Execute(ctx context.Context) error
}

// Scheduler owns a cron runner whose jobs never overlap with themselves.
// Job contexts derive from the scheduler, not from any request.
type Scheduler struct {
	cron    *cron.Cron
	chain   cron.Chain
	log     *zap.SugaredLogger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID
	running bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithJobTimeout bounds every job run.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// New creates a scheduler evaluating specs in loc. A nil loc means local time.
func New(loc *time.Location, opts ...Option) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	log := logger.Named("scheduler")
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		chain:   cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		log:     log,
		timeout: defaultJobTimeout,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(cron.WithLocation(loc), cron.WithLogger(cl))
	return s
}

// Register schedules job under spec, e.g. "@every 30m" or "*/15 * * * *".
func (s *Scheduler) Register(spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[job.Name()]; exists {
		return fmt.Errorf("job %q already registered", job.Name())
	}
	id, err := s.cron.AddJob(spec, s.wrap(job))
	if err != nil {
		return fmt.Errorf("failed to schedule job %q: %w", job.Name(), err)
	}
	s.entries[job.Name()] = id
	s.log.Infow("job scheduled", "job", job.Name(), "spec", spec)
	return nil
}

// wrap turns job into a cron job with panic recovery and overlap skipping.
func (s *Scheduler) wrap(job Job) cron.Job {
	return s.chain.Then(cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		start := time.Now()
		if err := job.Execute(ctx); err != nil {
			s.log.Errorw("job failed", "job", job.Name(), "elapsed", time.Since(start), "error", err)
			return
		}
		s.log.Infow("job completed", "job", job.Name(), "elapsed", time.Since(start))
	}))
}

// NextRun returns when the named job fires next.
func (s *Scheduler) NextRun(name string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[name]
	if !ok {
		return time.Time{}, fmt.Errorf("job %q not scheduled", name)
	}
	return s.cron.Entry(id).Next, nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.log.Info("scheduler started")
}

// Stop cancels in-flight job contexts and waits for running jobs to return
// or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	select {
	case <-s.cron.Stop().Done():
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out with jobs still running")
	}
}

// cronLogger routes cron's own logging onto zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
