// Package scheduler drives the periodic reconciliation passes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/storepulse/reconciler/internal/config"
	"github.com/storepulse/reconciler/internal/domain"
	"github.com/storepulse/reconciler/internal/lock"
)

// PassLockKey is shared by every job so no two passes overlap.
const PassLockKey = "pass"

var (
	ErrUnknownJob   = errors.New("scheduler: unknown job")
	ErrDuplicateJob = errors.New("scheduler: job already registered")
)

// Job is one periodic pass. Run returns the number of notifications emitted.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)
}

// PassRecorder stores pass outcomes.
type PassRecorder interface {
	Insert(ctx context.Context, run domain.PassRun) error
}

type entry struct {
	job  Job
	next time.Time
}

// Scheduler polls on a fixed tick and runs due jobs in registration order,
// one at a time.
type Scheduler struct {
	tick     time.Duration
	locker   lock.Locker
	recorder PassRecorder
	now      func() time.Time
	log      *logrus.Entry

	mu      sync.Mutex
	entries []*entry
	delay   bool
}

type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithRecorder stores every pass outcome.
func WithRecorder(r PassRecorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithDelayedStart makes jobs first due one interval after registration
// instead of immediately.
func WithDelayedStart() Option {
	return func(s *Scheduler) { s.delay = true }
}

func New(locker lock.Locker, tick time.Duration, opts ...Option) *Scheduler {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if tick <= 0 {
		tick = 15 * time.Second
	}
	s := &Scheduler{
		tick:   tick,
		locker: locker,
		now:    time.Now,
		log:    config.Logger("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a job.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil || job.Interval <= 0 {
		return fmt.Errorf("scheduler: invalid job %q", job.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.job.Name == job.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
		}
	}
	next := s.now()
	if s.delay {
		next = next.Add(job.Interval)
	}
	s.entries = append(s.entries, &entry{job: job, next: next})
	return nil
}

// Jobs returns the registered job names in order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		names = append(names, e.job.Name)
	}
	return names
}

// NextRun reports when a job is next due.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.job.Name == name {
			return e.next, true
		}
	}
	return time.Time{}, false
}

// Start blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.WithFields(logrus.Fields{"jobs": s.Jobs(), "tick": s.tick.String()}).Info("Scheduler started")
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.RunDue(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.RunDue(ctx)
		}
	}
}

// RunDue runs every job whose next run time has passed and returns the
// outcomes.
func (s *Scheduler) RunDue(ctx context.Context) []domain.PassRun {
	var runs []domain.PassRun
	for _, e := range s.due() {
		if ctx.Err() != nil {
			break
		}
		run := s.execute(ctx, e.job)
		if run.Status != domain.PassSkipped {
			s.mu.Lock()
			e.next = s.now().Add(e.job.Interval)
			s.mu.Unlock()
		}
		runs = append(runs, run)
	}
	return runs
}

// RunNow runs the named job immediately under the pass lock. The periodic
// schedule is left unchanged.
func (s *Scheduler) RunNow(ctx context.Context, name string) (domain.PassRun, error) {
	s.mu.Lock()
	var job *Job
	for _, e := range s.entries {
		if e.job.Name == name {
			j := e.job
			job = &j
			break
		}
	}
	s.mu.Unlock()
	if job == nil {
		return domain.PassRun{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, *job), nil
}

func (s *Scheduler) due() []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var out []*entry
	for _, e := range s.entries {
		if !now.Before(e.next) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Scheduler) execute(ctx context.Context, job Job) domain.PassRun {
	run := domain.PassRun{
		ID:        uuid.NewString(),
		Name:      job.Name,
		StartedAt: s.now().UTC(),
	}
	log := s.log.WithField("job", job.Name)

	release, err := s.locker.Acquire(ctx, PassLockKey)
	if err != nil {
		run.FinishedAt = s.now().UTC()
		if errors.Is(err, lock.ErrBusy) {
			log.Info("Another pass is running, skipping")
			run.Status = domain.PassSkipped
			run.Error = err.Error()
			return run
		}
		run.Status = domain.PassFailed
		run.Error = fmt.Sprintf("acquire lock: %v", err)
		config.LogError(log, "execute", "acquire pass lock", nil, err)
		s.record(ctx, run)
		return run
	}
	defer release()

	count, err := s.safeRun(ctx, job)
	run.FinishedAt = s.now().UTC()
	run.Notifications = count
	if err != nil {
		run.Status = domain.PassFailed
		run.Error = err.Error()
		config.LogError(log, "execute", "pass failed", nil, err)
	} else {
		run.Status = domain.PassSucceeded
		log.WithFields(logrus.Fields{
			"notifications": count,
			"duration":      run.FinishedAt.Sub(run.StartedAt).String(),
		}).Info("Pass finished")
	}
	s.record(ctx, run)
	return run
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("job", job.Name).WithField("stack", string(debug.Stack())).Error("Pass panicked")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.Run(ctx)
}

func (s *Scheduler) record(ctx context.Context, run domain.PassRun) {
	if s.recorder == nil {
		return
	}
	// The pass context may already be cancelled on shutdown.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.recorder.Insert(rctx, run); err != nil {
		config.LogError(s.log, "record", "store pass run", run.Name, err)
	}
}
