package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"FinFusion/pkg/cache"
)

func ist(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func newCalendar(t *testing.T) *Calendar {
	t.Helper()
	cal, err := NewCalendar(ist(t), 9*60+15, 15*60+30)
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	return cal
}

func TestCalendarSession(t *testing.T) {
	cal := newCalendar(t)
	loc := cal.Location()
	// 2024-10-10 is a Thursday
	cases := []struct {
		at   time.Time
		open bool
	}{
		{time.Date(2024, 10, 10, 9, 14, 59, 0, loc), false},
		{time.Date(2024, 10, 10, 9, 15, 0, 0, loc), true},
		{time.Date(2024, 10, 10, 12, 0, 0, 0, loc), true},
		{time.Date(2024, 10, 10, 15, 30, 0, 0, loc), true},
		{time.Date(2024, 10, 10, 15, 31, 0, 0, loc), false},
		{time.Date(2024, 10, 12, 11, 0, 0, 0, loc), false},
		{time.Date(2024, 10, 13, 11, 0, 0, 0, loc), false},
		// 04:00 UTC is 09:30 IST
		{time.Date(2024, 10, 10, 4, 0, 0, 0, time.UTC), true},
	}
	for _, c := range cases {
		if got := cal.IsOpen(c.at); got != c.open {
			t.Fatalf("%v: expected open=%v", c.at, c.open)
		}
	}

	if _, err := NewCalendar(time.UTC, 600, 500); err == nil {
		t.Fatalf("expected inverted session to be rejected")
	}
}

func TestGatedJobSkipsOutsideSession(t *testing.T) {
	cal := newCalendar(t)
	saturday := time.Date(2024, 10, 12, 11, 0, 0, 0, cal.Location())
	s := New(cal, WithClock(func() time.Time { return saturday }))

	var runs atomic.Int32
	if err := s.Add(Job{Name: "fusion", Spec: "*/5 * * * *", Gated: true, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(Job{Name: "cleanup", Spec: "0 * * * *", Run: func(context.Context) error {
		runs.Add(10)
		return nil
	}}); err != nil {
		t.Fatalf("add: %v", err)
	}

	s.trigger(s.jobs["fusion"], true)
	s.trigger(s.jobs["cleanup"], false)
	if got := runs.Load(); got != 10 {
		t.Fatalf("expected only the ungated job to run, got %d", got)
	}
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	s := New(newCalendar(t))
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32
	_ = s.Add(Job{Name: "alerts", Spec: "*/10 * * * *", Run: func(context.Context) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	}})

	if err := s.RunNow("alerts"); err != nil {
		t.Fatalf("run now: %v", err)
	}
	<-started
	if !s.Running("alerts") {
		t.Fatalf("expected job to be running")
	}
	s.trigger(s.jobs["alerts"], false)
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := runs.Load(); got != 1 {
		t.Fatalf("expected overlapping tick to be skipped, got %d runs", got)
	}
}

func TestDistributedLockHeldElsewhere(t *testing.T) {
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(time.Hour))
	defer mc.Close()
	s := New(newCalendar(t), WithLocker(mc, time.Minute))

	var runs atomic.Int32
	_ = s.Add(Job{Name: "cleanup", Spec: "0 * * * *", Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})

	ctx := context.Background()
	if ok, _ := mc.TryLock(ctx, "lock:job:cleanup", time.Minute); !ok {
		t.Fatalf("expected to take the lock")
	}
	s.trigger(s.jobs["cleanup"], false)
	if runs.Load() != 0 {
		t.Fatalf("job ran while another instance held the lock")
	}

	_ = mc.Unlock(ctx, "lock:job:cleanup")
	s.trigger(s.jobs["cleanup"], false)
	if runs.Load() != 1 {
		t.Fatalf("expected job to run once the lock is free")
	}
	if ok, _ := mc.TryLock(ctx, "lock:job:cleanup", time.Minute); !ok {
		t.Fatalf("expected lock to be released after the run")
	}
}

func TestStopWaitsForInFlightRun(t *testing.T) {
	s := New(newCalendar(t))
	var finished atomic.Bool
	_ = s.Add(Job{Name: "market", Spec: "* * * * *", Run: func(ctx context.Context) error {
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
		return nil
	}})
	s.Start()
	_ = s.RunNow("market")
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !finished.Load() {
		t.Fatalf("stop returned before the running job finished")
	}
}

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(newCalendar(t))
	if err := s.Add(Job{Name: "x", Spec: "not a spec", Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatalf("expected invalid spec error")
	}
	_ = s.Add(Job{Name: "y", Spec: "* * * * *", Run: func(context.Context) error { return nil }})
	if err := s.Add(Job{Name: "y", Spec: "* * * * *", Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatalf("expected duplicate name error")
	}
}

func TestRunNowRunsJobsInOrder(t *testing.T) {
	s := New(newCalendar(t))
	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}
	_ = s.Add(Job{Name: "market", Spec: "* * * * *", Gated: true, Run: record("market")})
	_ = s.Add(Job{Name: "fusion", Spec: "*/5 * * * *", Gated: true, Run: record("fusion")})

	if err := s.RunNow("market", "nope"); err == nil {
		t.Fatalf("expected unknown job error")
	}
	if err := s.RunNow("market", "fusion"); err != nil {
		t.Fatalf("run now: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.Stop(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "market" || order[1] != "fusion" {
		t.Fatalf("unexpected run order %v", order)
	}
}

func TestStopDoesNotCancelRunBeforeJobTimeout(t *testing.T) {
	s := New(newCalendar(t), WithJobTimeout(2*time.Minute))
	started := make(chan struct{})
	release := make(chan struct{})
	var cancelled atomic.Bool
	_ = s.Add(Job{Name: "alerts", Spec: "*/10 * * * *", Run: func(ctx context.Context) error {
		close(started)
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			return ctx.Err()
		case <-release:
			return nil
		}
	}})
	if err := s.RunNow("alerts"); err != nil {
		t.Fatalf("run now: %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(ctx) }()

	time.Sleep(200 * time.Millisecond)
	if cancelled.Load() {
		t.Fatalf("running job was cancelled before its timeout")
	}
	select {
	case err := <-stopped:
		t.Fatalf("stop returned while a job was still running: %v", err)
	default:
	}

	close(release)
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stop did not return after the job finished")
	}
	if cancelled.Load() {
		t.Fatalf("job saw a cancelled context")
	}
}

func TestTickAfterStopDoesNotRun(t *testing.T) {
	s := New(newCalendar(t))
	var runs atomic.Int32
	_ = s.Add(Job{Name: "cleanup", Spec: "0 * * * *", Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	s.trigger(s.jobs["cleanup"], false)
	if runs.Load() != 0 {
		t.Fatalf("job ran after stop")
	}
}
