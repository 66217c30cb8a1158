package schedule

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/xraph/conductor/internal/errors"
	"github.com/xraph/conductor/logger"
)

// Task is the unit of work a job runs on every firing.
type Task func(ctx context.Context) error

// Job is a live timer bound to a task.
type Job struct {
	ID   string
	Name string
	Spec string

	runs   atomic.Int64
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	owner  *Scheduler
}

// Stop halts the job. A firing already running is allowed to finish. Safe to
// call more than once.
func (j *Job) Stop() {
	j.once.Do(func() {
		j.cancel()
		j.owner.forget(j.ID)
	})
}

// Done is closed once the job's timer loop has exited.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Runs returns how many times the task has been started.
func (j *Job) Runs() int64 {
	return j.runs.Load()
}

// Scheduler owns every armed job so they can be halted together.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	logger  logger.Logger
	horizon time.Duration
	now     func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for firing failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHorizon bounds the calendar search. Zero keeps DefaultHorizon.
func WithHorizon(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.horizon = d
		}
	}
}

// WithClock replaces time.Now when computing calendar occurrences.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:    make(map[string]*Job),
		logger:  logger.NewNoopLogger(),
		horizon: DefaultHorizon,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Every runs task every period, the first time one period after arming.
func (s *Scheduler) Every(name string, period time.Duration, task Task) (*Job, error) {
	if period <= 0 {
		return nil, errors.ErrInvalidSchedule(period.String(), errors.New("interval must be positive"))
	}

	job, ctx := s.arm(name, "every "+period.String())

	go func() {
		defer close(job.done)

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				s.fire(ctx, job, task)
			}
		}
	}()

	return job, nil
}

// Schedule runs task at every occurrence of sched. The first occurrence is
// computed immediately and its absence is an error. After each firing the
// next occurrence is computed from the current time and a new timer armed.
func (s *Scheduler) Schedule(name string, sched cron.Schedule, task Task) (*Job, error) {
	first, err := s.next(sched, s.now())
	if err != nil {
		return nil, err
	}

	job, ctx := s.arm(name, describe(sched))

	go func() {
		defer close(job.done)

		at := first
		for {
			timer := time.NewTimer(at.Sub(s.now()))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			if ctx.Err() != nil {
				return
			}

			s.fire(ctx, job, task)

			next, err := s.next(sched, s.now())
			if err != nil {
				s.logger.Error("schedule exhausted",
					logger.String("job", job.Name),
					logger.String("schedule", job.Spec),
					logger.Error(err),
				)
				job.Stop()
				return
			}
			at = next
		}
	}()

	return job, nil
}

// ScheduleExpr parses expr and schedules task with it.
func (s *Scheduler) ScheduleExpr(name, expr string, task Task) (*Job, error) {
	sched, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return s.Schedule(name, sched, task)
}

// StopAll halts every job and returns how many were running.
func (s *Scheduler) StopAll() int {
	s.mu.Lock()
	jobs := slices.Collect(maps.Values(s.jobs))
	s.mu.Unlock()

	for _, job := range jobs {
		job.Stop()
	}
	return len(jobs)
}

// Len returns the number of live jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Jobs returns the live jobs ordered by name.
func (s *Scheduler) Jobs() []*Job {
	s.mu.Lock()
	jobs := slices.Collect(maps.Values(s.jobs))
	s.mu.Unlock()

	slices.SortFunc(jobs, func(a, b *Job) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.ID, b.ID))
	})
	return jobs
}

func (s *Scheduler) arm(name, spec string) (*Job, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:     uuid.NewString(),
		Name:   name,
		Spec:   spec,
		cancel: cancel,
		done:   make(chan struct{}),
		owner:  s,
	}

	ctx = logger.ContextWithFields(ctx,
		logger.String("job", name),
		logger.String("job_id", job.ID),
	)

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.logger.Debug("job armed",
		logger.String("job", name),
		logger.String("schedule", spec),
	)

	return job, ctx
}

func (s *Scheduler) forget(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

func (s *Scheduler) next(sched cron.Schedule, from time.Time) (time.Time, error) {
	if c, ok := sched.(*Calendar); ok {
		return c.NextWithin(from, s.horizon)
	}

	next := sched.Next(from)
	if next.IsZero() {
		return time.Time{}, errors.ErrScheduleUnresolvable(describe(sched), s.horizon)
	}
	return next, nil
}

func (s *Scheduler) fire(ctx context.Context, job *Job, task Task) {
	job.runs.Add(1)
	log := s.logger.WithContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(log, r)
		}
	}()

	if err := task(ctx); err != nil {
		log.Error("scheduled invocation failed", logger.Error(err))
	}
}

func describe(sched cron.Schedule) string {
	switch s := sched.(type) {
	case *Calendar:
		return s.String()
	case cron.ConstantDelaySchedule:
		return "every " + s.Delay.String()
	default:
		return "cron"
	}
}
