package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/storepulse/reconciler/internal/domain"
	"github.com/storepulse/reconciler/internal/lock"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type memRecorder struct {
	mu   sync.Mutex
	runs []domain.PassRun
}

func (m *memRecorder) Insert(_ context.Context, run domain.PassRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func newTestScheduler(clock *fakeClock, rec *memRecorder, opts ...Option) *Scheduler {
	opts = append([]Option{WithClock(clock.Now), WithRecorder(rec)}, opts...)
	return New(lock.NewLocal(), time.Second, opts...)
}

func TestRunDue_ImmediateThenEveryInterval(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rec := &memRecorder{}
	s := newTestScheduler(clock, rec)

	var order []string
	for _, name := range []string{"sales", "reviews"} {
		name := name
		if err := s.Register(Job{Name: name, Interval: time.Hour, Run: func(context.Context) (int, error) {
			order = append(order, name)
			return 1, nil
		}}); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	runs := s.RunDue(context.Background())
	if len(runs) != 2 || order[0] != "sales" || order[1] != "reviews" {
		t.Fatalf("first tick ran %v", order)
	}

	clock.Advance(30 * time.Minute)
	if runs := s.RunDue(context.Background()); len(runs) != 0 {
		t.Fatalf("jobs ran before interval elapsed: %+v", runs)
	}

	clock.Advance(30 * time.Minute)
	if runs := s.RunDue(context.Background()); len(runs) != 2 {
		t.Fatalf("got %d runs after interval, want 2", len(runs))
	}
	if len(rec.runs) != 4 || rec.runs[0].Status != domain.PassSucceeded || rec.runs[0].Notifications != 1 {
		t.Fatalf("recorded runs = %+v", rec.runs)
	}
}

func TestRunDue_DelayedStart(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := newTestScheduler(clock, &memRecorder{}, WithDelayedStart())
	calls := 0
	_ = s.Register(Job{Name: "sales", Interval: time.Hour, Run: func(context.Context) (int, error) {
		calls++
		return 0, nil
	}})

	s.RunDue(context.Background())
	if calls != 0 {
		t.Fatal("delayed job ran immediately")
	}
	clock.Advance(time.Hour)
	s.RunDue(context.Background())
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRunDue_ErrorsAndPanicsAreRecorded(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rec := &memRecorder{}
	s := newTestScheduler(clock, rec)
	_ = s.Register(Job{Name: "sales", Interval: time.Hour, Run: func(context.Context) (int, error) {
		panic("boom")
	}})
	_ = s.Register(Job{Name: "reviews", Interval: time.Hour, Run: func(context.Context) (int, error) {
		return 0, errors.New("upstream down")
	}})

	runs := s.RunDue(context.Background())
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	for _, run := range runs {
		if run.Status != domain.PassFailed || run.Error == "" {
			t.Fatalf("run = %+v, want failed with error", run)
		}
	}
	next, _ := s.NextRun("sales")
	if !next.Equal(clock.Now().Add(time.Hour)) {
		t.Fatalf("failed job not rescheduled: next=%v", next)
	}
}

func TestRunNow_SkipsWhilePassHeld(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	locker := lock.NewLocal()
	rec := &memRecorder{}
	s := New(locker, time.Second, WithClock(clock.Now), WithRecorder(rec))
	_ = s.Register(Job{Name: "sales", Interval: time.Hour, Run: func(context.Context) (int, error) {
		return 0, nil
	}})

	release, err := locker.Acquire(context.Background(), PassLockKey)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	run, err := s.RunNow(context.Background(), "sales")
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if run.Status != domain.PassSkipped {
		t.Fatalf("status = %s, want skipped", run.Status)
	}
	release()

	run, _ = s.RunNow(context.Background(), "sales")
	if run.Status != domain.PassSucceeded {
		t.Fatalf("status = %s, want succeeded", run.Status)
	}
	if len(rec.runs) != 1 {
		t.Fatalf("recorded %d runs, want 1 (skips are not stored)", len(rec.runs))
	}
}

func TestRunNow_UnknownJob(t *testing.T) {
	s := New(nil, time.Second)
	if _, err := s.RunNow(context.Background(), "missing"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("err = %v, want ErrUnknownJob", err)
	}
}

func TestRegister_RejectsDuplicatesAndInvalid(t *testing.T) {
	s := New(nil, time.Second)
	job := Job{Name: "sales", Interval: time.Hour, Run: func(context.Context) (int, error) { return 0, nil }}
	if err := s.Register(job); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register(job); !errors.Is(err, ErrDuplicateJob) {
		t.Fatalf("err = %v, want ErrDuplicateJob", err)
	}
	if err := s.Register(Job{Name: "bad"}); err == nil {
		t.Fatal("expected error for job without Run")
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	s := New(nil, 10*time.Millisecond)
	ran := make(chan struct{}, 1)
	_ = s.Register(Job{Name: "sales", Interval: time.Hour, Run: func(context.Context) (int, error) {
		select {
		case ran <- struct{}{}:
		default:
		}
		return 0, nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
