// Package cron arms weekly reminder rules on top of robfig/cron/v3 and keeps
// the registry of every armed reminder job.
//
// The Engine turns a Rule (weekday, hour, minute) into a cron entry bound to
// the operational timezone. The Registry is the only owner of engine handles:
// it guarantees a single live entry per (habit, weekday) key.
package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aatumaykin/habitflow/internal/habit"
	"github.com/aatumaykin/habitflow/internal/logger"
	"github.com/robfig/cron/v3"
)

// ErrInvalidRule is returned when a rule cannot be turned into a cron entry.
var ErrInvalidRule = errors.New("invalid recurrence rule")

// Action is invoked on every fire of an armed rule.
// A returned error is logged; the entry stays armed.
type Action func(ctx context.Context) error

// Rule is a weekly recurrence at a local time-of-day.
type Rule struct {
	Weekday habit.Weekday
	Hour    int
	Minute  int
}

// Validate checks that every field is in range.
func (r Rule) Validate() error {
	if !r.Weekday.Valid() {
		return fmt.Errorf("%w: weekday %d", ErrInvalidRule, int(r.Weekday))
	}
	if r.Hour < 0 || r.Hour > 23 {
		return fmt.Errorf("%w: hour %d", ErrInvalidRule, r.Hour)
	}
	if r.Minute < 0 || r.Minute > 59 {
		return fmt.Errorf("%w: minute %d", ErrInvalidRule, r.Minute)
	}
	return nil
}

// Spec returns the five-field cron expression for the rule.
func (r Rule) Spec() string {
	return fmt.Sprintf("%d %d * * %d", r.Minute, r.Hour, int(r.Weekday))
}

func (r Rule) String() string {
	return fmt.Sprintf("%s %02d:%02d", r.Weekday.Token(), r.Hour, r.Minute)
}

// Handle identifies an armed entry. The zero Handle is never armed.
type Handle struct {
	id cron.EntryID
}

// IsZero reports whether the handle was never armed.
func (h Handle) IsZero() bool { return h.id == 0 }

// Engine fires weekly rules in a single location.
type Engine struct {
	cron     *cron.Cron
	location *time.Location
	logger   *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

// NewEngine creates an engine that evaluates every rule in loc.
func NewEngine(loc *time.Location, log *logger.Logger) *Engine {
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		location: loc,
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Location returns the timezone rules are evaluated in.
func (e *Engine) Location() *time.Location {
	return e.location
}

// Start begins firing armed entries. Entries armed before Start are kept.
// A stopped engine cannot be started again.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("engine already started")
	}
	if e.ctx.Err() != nil {
		return fmt.Errorf("engine already stopped")
	}
	e.started = true
	e.cron.Start()
	e.logger.Info("recurrence engine started",
		logger.Field{Key: "timezone", Value: e.location.String()})
	return nil
}

// Stop stops scheduling new fires and waits for running actions to finish
// or for ctx to expire. The context handed to actions is cancelled.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine not started")
	}
	e.started = false
	e.mu.Unlock()

	done := e.cron.Stop()
	e.cancel()

	select {
	case <-done.Done():
		e.logger.Info("recurrence engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running reminders: %w", ctx.Err())
	}
}

// IsStarted reports whether the engine is firing entries.
func (e *Engine) IsStarted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// Arm registers the rule and returns its handle. Every matching instant
// runs action until the handle is cancelled.
func (e *Engine) Arm(rule Rule, action Action) (Handle, error) {
	if err := rule.Validate(); err != nil {
		return Handle{}, err
	}
	if action == nil {
		return Handle{}, fmt.Errorf("%w: nil action", ErrInvalidRule)
	}

	spec := rule.Spec()
	id, err := e.cron.AddJob(spec, cron.FuncJob(func() {
		if err := action(e.ctx); err != nil {
			e.logger.Warn("reminder action failed",
				logger.Field{Key: "rule", Value: rule.String()},
				logger.Field{Key: "error", Value: err.Error()})
		}
	}))
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %q: %v", ErrInvalidRule, spec, err)
	}

	e.logger.Debug("rule armed",
		logger.Field{Key: "rule", Value: rule.String()},
		logger.Field{Key: "spec", Value: spec},
		logger.Field{Key: "entry_id", Value: int(id)})
	return Handle{id: id}, nil
}

// Cancel prevents all future fires of the handle. A fire already running
// completes. Cancelling an unknown handle is a no-op.
func (e *Engine) Cancel(h Handle) {
	if h.IsZero() {
		return
	}
	e.cron.Remove(h.id)
	e.logger.Debug("rule cancelled", logger.Field{Key: "entry_id", Value: int(h.id)})
}

// Armed reports whether the handle still has pending fires.
func (e *Engine) Armed(h Handle) bool {
	if h.IsZero() {
		return false
	}
	return e.cron.Entry(h.id).Valid()
}

// Next returns the next fire instant of the handle, computed from now.
// It returns the zero time for handles that are not armed.
func (e *Engine) Next(h Handle, now time.Time) time.Time {
	if h.IsZero() {
		return time.Time{}
	}
	entry := e.cron.Entry(h.id)
	if !entry.Valid() {
		return time.Time{}
	}
	return entry.Schedule.Next(now.In(e.location))
}

// RunNow runs the handle's action synchronously, outside the schedule.
// It returns false if the handle is not armed.
func (e *Engine) RunNow(h Handle) bool {
	if h.IsZero() {
		return false
	}
	entry := e.cron.Entry(h.id)
	if !entry.Valid() {
		return false
	}
	entry.WrappedJob.Run()
	return true
}

// Len returns the number of armed entries.
func (e *Engine) Len() int {
	return len(e.cron.Entries())
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, err, kvFields(keysAndValues)...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Field{Key: key, Value: kv[i+1]})
	}
	return fields
}
