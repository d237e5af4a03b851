package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aatumaykin/habitflow/internal/habit"
	"github.com/aatumaykin/habitflow/internal/logger"
)

// Key identifies one reminder slot: a habit on a weekday.
type Key struct {
	HabitID string
	Weekday habit.Weekday
}

func (k Key) String() string {
	return fmt.Sprintf("%s-%s", k.HabitID, k.Weekday.Token())
}

// KeysFor returns the keys of a habit for all seven weekdays.
func KeysFor(habitID string) []Key {
	keys := make([]Key, 0, len(habit.AllWeekdays))
	for _, d := range habit.AllWeekdays {
		keys = append(keys, Key{HabitID: habitID, Weekday: d})
	}
	return keys
}

// ScheduledJob is a registry entry: an armed rule under a key.
type ScheduledJob struct {
	Key     Key
	Rule    Rule
	ArmedAt time.Time

	handle Handle
	fires  *atomic.Int64
}

// Handle returns the engine handle of the job.
func (j ScheduledJob) Handle() Handle { return j.handle }

// Fires returns how many times the job has fired since it was armed.
func (j ScheduledJob) Fires() int64 {
	if j.fires == nil {
		return 0
	}
	return j.fires.Load()
}

// Observer receives registry size changes and fires. Both methods must be
// safe for concurrent use.
type Observer interface {
	ArmedJobs(n int)
	JobFired(key Key)
}

// Registry owns every armed reminder job. All register and cancel calls are
// serialized, so a key never has two live entries.
type Registry struct {
	engine   *Engine
	logger   *logger.Logger
	observer Observer
	now      func() time.Time

	mu     sync.Mutex
	jobs   map[Key]ScheduledJob
	closed bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithObserver reports registry activity to o.
func WithObserver(o Observer) RegistryOption {
	return func(r *Registry) { r.observer = o }
}

// NewRegistry creates an empty registry arming jobs on engine.
func NewRegistry(engine *Engine, log *logger.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		engine: engine,
		logger: log,
		now:    time.Now,
		jobs:   make(map[Key]ScheduledJob),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Engine returns the engine the registry arms jobs on.
func (r *Registry) Engine() *Engine {
	return r.engine
}

// Register cancels any job under key and arms rule with action in its place.
// The rule's weekday must match the key.
func (r *Registry) Register(key Key, rule Rule, action Action) (ScheduledJob, error) {
	if key.Weekday != rule.Weekday {
		return ScheduledJob{}, fmt.Errorf("%w: key %s does not match rule %s", ErrInvalidRule, key, rule)
	}
	if err := rule.Validate(); err != nil {
		return ScheduledJob{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ScheduledJob{}, fmt.Errorf("registry closed")
	}

	_, replaced := r.cancelLocked(key)

	fires := new(atomic.Int64)
	handle, err := r.engine.Arm(rule, func(ctx context.Context) error {
		fires.Add(1)
		if r.observer != nil {
			r.observer.JobFired(key)
		}
		return action(ctx)
	})
	if err != nil {
		r.notifyLocked()
		return ScheduledJob{}, err
	}

	job := ScheduledJob{
		Key:     key,
		Rule:    rule,
		ArmedAt: r.now(),
		handle:  handle,
		fires:   fires,
	}
	r.jobs[key] = job
	r.notifyLocked()

	r.logger.Debug("reminder job registered",
		logger.Field{Key: "key", Value: key.String()},
		logger.Field{Key: "rule", Value: rule.String()},
		logger.Field{Key: "replaced", Value: replaced})
	return job, nil
}

// Cancel removes the job under key. It reports whether a job existed.
func (r *Registry) Cancel(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.cancelLocked(key)
	if ok {
		r.notifyLocked()
		r.logger.Debug("reminder job cancelled", logger.Field{Key: "key", Value: key.String()})
	}
	return ok
}

// CancelHabit removes every job of the habit and returns how many existed.
func (r *Registry) CancelHabit(habitID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, key := range KeysFor(habitID) {
		if _, ok := r.cancelLocked(key); ok {
			n++
		}
	}
	if n > 0 {
		r.notifyLocked()
	}
	return n
}

// Get returns the job under key.
func (r *Registry) Get(key Key) (ScheduledJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[key]
	return job, ok
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Snapshot returns all jobs ordered by habit and weekday.
func (r *Registry) Snapshot() []ScheduledJob {
	r.mu.Lock()
	jobs := make([]ScheduledJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	r.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].Key.HabitID != jobs[j].Key.HabitID {
			return jobs[i].Key.HabitID < jobs[j].Key.HabitID
		}
		return mondayFirst(jobs[i].Key.Weekday) < mondayFirst(jobs[j].Key.Weekday)
	})
	return jobs
}

// Next returns the next fire instant of the job under key.
func (r *Registry) Next(key Key, now time.Time) (time.Time, bool) {
	job, ok := r.Get(key)
	if !ok {
		return time.Time{}, false
	}
	return r.engine.Next(job.handle, now), true
}

// Fire runs the job under key synchronously, outside the registry lock.
// It reports whether a job was found.
func (r *Registry) Fire(key Key) bool {
	job, ok := r.Get(key)
	if !ok {
		return false
	}
	return r.engine.RunNow(job.handle)
}

// Close cancels every job and rejects further registrations.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.jobs {
		r.cancelLocked(key)
	}
	r.closed = true
	r.notifyLocked()
}

func (r *Registry) cancelLocked(key Key) (ScheduledJob, bool) {
	job, ok := r.jobs[key]
	if !ok {
		return ScheduledJob{}, false
	}
	r.engine.Cancel(job.handle)
	delete(r.jobs, key)
	return job, true
}

func (r *Registry) notifyLocked() {
	if r.observer != nil {
		r.observer.ArmedJobs(len(r.jobs))
	}
}

func mondayFirst(d habit.Weekday) int {
	return (int(d) + 6) % 7
}
