package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	domrepo "FinFusion/internal/domain/repository"
	applogger "FinFusion/pkg/logger"
	"FinFusion/pkg/metrics"
)

const (
	resultOK      = "ok"
	resultError   = "error"
	resultSkipped = "skipped"
	resultClosed  = "closed"
)

// Job is a named periodic task. Gated jobs only run while the market is open.
type Job struct {
	Name  string
	Spec  string
	Gated bool
	Run   func(ctx context.Context) error
}

// Locker is a distributed lock used to keep replicas from running the same
// tick twice.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type jobState struct {
	Job
	running atomic.Bool
}

// Scheduler triggers jobs on cron specs in the market timezone. A tick that
// arrives while the previous run of the same job is active is skipped.
type Scheduler struct {
	cron       *cron.Cron
	cal        *Calendar
	locker     Locker
	lockTTL    time.Duration
	jobTimeout time.Duration
	metrics    domrepo.Metrics
	l          *applogger.Logger
	now        func() time.Time

	mu     sync.Mutex
	jobs   map[string]*jobState
	wg     sync.WaitGroup
	ctx    context.Context // done once Stop is called
	cancel context.CancelFunc
}

type Option func(*Scheduler)

func WithLocker(l Locker, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

func WithMetrics(m domrepo.Metrics) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.l = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(cal *Calendar, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cal:        cal,
		lockTTL:    5 * time.Minute,
		jobTimeout: 2 * time.Minute,
		metrics:    metrics.Nop{},
		l:          applogger.Nop(),
		now:        time.Now,
		jobs:       make(map[string]*jobState),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.l = s.l.Named("scheduler")
	cl := cronLogger{l: s.l}
	s.cron = cron.New(
		cron.WithLocation(cal.Location()),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	return s
}

// Add registers a job. Names must be unique.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job needs a name and a run func")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	js := &jobState{Job: job}
	if _, err := s.cron.AddFunc(job.Spec, func() { s.trigger(js, js.Gated) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name, job.Spec, err)
	}
	s.jobs[job.Name] = js
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started", applogger.Int("jobs", len(s.jobs)))
}

// RunNow runs the named jobs once, one after another, in the background.
// The market gate is ignored but the overlap guard still applies.
func (s *Scheduler) RunNow(names ...string) error {
	s.mu.Lock()
	states := make([]*jobState, 0, len(names))
	for _, name := range names {
		js, ok := s.jobs[name]
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("unknown job %s", name)
		}
		states = append(states, js)
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for _, js := range states {
			if s.ctx.Err() != nil {
				return
			}
			s.trigger(js, false)
		}
	}()
	return nil
}

// Stop halts new ticks and waits for in-flight runs. Runs are never
// cancelled by Stop: once ctx is done it keeps waiting until each run has
// either returned or reached its own job timeout.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.l.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
	}

	s.l.Warn("scheduler stop budget spent, waiting for running jobs to reach their timeout",
		applogger.Duration("job_timeout", s.jobTimeout))
	grace := time.NewTimer(s.jobTimeout)
	defer grace.Stop()
	select {
	case <-done:
		s.l.Info("scheduler stopped")
		return nil
	case <-grace.C:
		return fmt.Errorf("jobs still running %s after stop: %w", s.jobTimeout, ctx.Err())
	}
}

// Running reports whether the named job is currently executing.
func (s *Scheduler) Running(name string) bool {
	s.mu.Lock()
	js, ok := s.jobs[name]
	s.mu.Unlock()
	return ok && js.running.Load()
}

func (s *Scheduler) trigger(js *jobState, gated bool) {
	name := js.Name
	if s.ctx.Err() != nil {
		return
	}
	if gated && s.cal != nil && !s.cal.IsOpen(s.now()) {
		s.metrics.RecordJob(name, resultClosed, 0)
		return
	}
	if !js.running.CompareAndSwap(false, true) {
		s.metrics.RecordJob(name, resultSkipped, 0)
		s.l.Debug("previous run still active, skipping tick", applogger.String("job", name))
		return
	}
	defer js.running.Store(false)

	// Bounded by the job timeout only, so Stop never cuts a write short.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.jobTimeout)
	defer cancel()

	if s.locker != nil {
		key := "lock:job:" + name
		ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
		switch {
		case err != nil:
			s.l.Warn("job lock unavailable, running locally", applogger.String("job", name), applogger.Error(err))
		case !ok:
			s.metrics.RecordJob(name, resultSkipped, 0)
			s.l.Debug("job held by another instance, skipping tick", applogger.String("job", name))
			return
		default:
			defer func() { _ = s.locker.Unlock(context.Background(), key) }()
		}
	}

	start := s.now()
	err := js.Run(ctx)
	elapsed := s.now().Sub(start).Seconds()
	if err != nil {
		s.metrics.RecordJob(name, resultError, elapsed)
		s.l.Error("job failed", applogger.String("job", name), applogger.Error(err))
		return
	}
	s.metrics.RecordJob(name, resultOK, elapsed)
	s.l.Debug("job finished", applogger.String("job", name), applogger.Float64("seconds", elapsed))
}

// cronLogger adapts the app logger to cron.Logger.
type cronLogger struct {
	l *applogger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	out := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, applogger.Any(k, kv[i+1]))
	}
	return out
}
