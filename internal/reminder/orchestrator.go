// Package reminder keeps the armed reminder jobs of every habit in line with
// the habit's routine, reminder time and owner.
//
// ScheduleReminder is idempotent: scheduling the same habit twice leaves
// exactly one job per routine weekday, and weekdays dropped from the routine
// lose their job. Calls for the same habit are serialized, so a cancel that
// races a reschedule never leaves jobs behind once both return.
package reminder

import (
	"context"
	"errors"
	"fmt"

	"github.com/aatumaykin/habitflow/internal/clock"
	"github.com/aatumaykin/habitflow/internal/cron"
	"github.com/aatumaykin/habitflow/internal/habit"
	"github.com/aatumaykin/habitflow/internal/logger"
	"github.com/aatumaykin/habitflow/internal/store"
)

// ErrMissingOwner marks a habit whose owner could not be found. It is logged,
// never returned to callers.
var ErrMissingOwner = errors.New("habit owner not found")

// Store is the lookup API the orchestrator needs.
type Store interface {
	FindHabitsWithReminder(ctx context.Context) ([]habit.Habit, error)
	FindUserByID(ctx context.Context, id string) (habit.User, error)
	FindHabitsByUser(ctx context.Context, userID string) ([]habit.Habit, error)
}

// Dispatcher delivers one reminder.
type Dispatcher interface {
	Dispatch(ctx context.Context, h habit.Habit, u habit.User) error
}

// Outcome is the result of scheduling a single habit.
type Outcome int

const (
	// Scheduled means the habit has one job per routine weekday.
	Scheduled Outcome = iota
	// Cleared means the habit had no reminder time and lost its jobs.
	Cleared
	// Skipped means the owner is missing or inactive. Existing jobs are
	// untouched for a missing owner and cancelled for an inactive one.
	Skipped
	// Failed means the reminder time could not be resolved.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Scheduled:
		return "scheduled"
	case Cleared:
		return "cleared"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Summary counts the outcomes of a bulk scheduling run.
type Summary struct {
	Habits    int
	Scheduled int
	Cleared   int
	Skipped   int
	Failed    int
	Jobs      int // registry size after the run
}

func (s *Summary) add(o Outcome) {
	s.Habits++
	switch o {
	case Scheduled:
		s.Scheduled++
	case Cleared:
		s.Cleared++
	case Skipped:
		s.Skipped++
	case Failed:
		s.Failed++
	}
}

// Orchestrator schedules and cancels habit reminders on a cron.Registry.
type Orchestrator struct {
	store      Store
	registry   *cron.Registry
	dispatcher Dispatcher
	logger     *logger.Logger
	locks      *habitLocks
}

func New(st Store, registry *cron.Registry, dispatcher Dispatcher, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:      st,
		registry:   registry,
		dispatcher: dispatcher,
		logger:     log,
		locks:      newHabitLocks(),
	}
}

// Registry returns the registry the orchestrator arms jobs on.
func (o *Orchestrator) Registry() *cron.Registry {
	return o.registry
}

// ScheduleReminder arms one job per weekday of the habit's routine at its
// resolved trigger time and cancels the habit's other weekdays.
//
// A habit without a reminder time loses all its jobs. A missing owner is
// logged and skipped. An invalid reminder time is logged and returned; in
// both cases existing jobs are left as they are.
func (o *Orchestrator) ScheduleReminder(ctx context.Context, h habit.Habit) error {
	_, err := o.schedule(ctx, h)
	return err
}

func (o *Orchestrator) schedule(ctx context.Context, h habit.Habit) (Outcome, error) {
	unlock := o.locks.lock(h.ID)
	defer unlock()

	log := o.logger.With(logger.Field{Key: "habit_id", Value: h.ID})

	if !h.HasReminder() {
		if n := o.registry.CancelHabit(h.ID); n > 0 {
			log.Info("reminder cleared", logger.Field{Key: "cancelled", Value: n})
		}
		return Cleared, nil
	}

	owner, err := o.store.FindUserByID(ctx, h.UserID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("skipping reminder",
			logger.Field{Key: "user_id", Value: h.UserID},
			logger.Field{Key: "reason", Value: ErrMissingOwner.Error()})
		return Skipped, nil
	}
	if err != nil {
		log.Error("failed to load habit owner", err, logger.Field{Key: "user_id", Value: h.UserID})
		return Failed, fmt.Errorf("habit %s: load owner %s: %w", h.ID, h.UserID, err)
	}
	if !owner.Active {
		n := o.registry.CancelHabit(h.ID)
		log.Info("skipping reminder for inactive owner",
			logger.Field{Key: "user_id", Value: h.UserID},
			logger.Field{Key: "cancelled", Value: n})
		return Skipped, nil
	}

	hour, minute, err := clock.ResolveTrigger(h.ReminderTime.Time, h.ReminderTime.MinutesBefore)
	if err != nil {
		log.Error("invalid reminder time", err,
			logger.Field{Key: "time", Value: h.ReminderTime.Time},
			logger.Field{Key: "minutes_before", Value: h.ReminderTime.MinutesBefore})
		return Failed, fmt.Errorf("habit %s: %w", h.ID, err)
	}

	snapshot := h.Clone()
	action := func(ctx context.Context) error {
		return o.dispatcher.Dispatch(ctx, snapshot, owner)
	}

	routine := h.Routine.Normalize()
	var errs []error
	armed := 0
	for _, key := range cron.KeysFor(h.ID) {
		if !routine.Contains(key.Weekday) {
			o.registry.Cancel(key)
			continue
		}
		rule := cron.Rule{Weekday: key.Weekday, Hour: hour, Minute: minute}
		if _, err := o.registry.Register(key, rule, action); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		armed++
	}
	if err := errors.Join(errs...); err != nil {
		log.Error("failed to arm reminder", err)
		return Failed, fmt.Errorf("habit %s: %w", h.ID, err)
	}

	log.Info("reminder scheduled",
		logger.Field{Key: "user_id", Value: owner.ID},
		logger.Field{Key: "routine", Value: routine.Tokens()},
		logger.Field{Key: "trigger", Value: fmt.Sprintf("%02d:%02d", hour, minute)},
		logger.Field{Key: "jobs", Value: armed})
	return Scheduled, nil
}

// CancelReminders cancels the jobs of the habit on all seven weekdays and
// returns how many existed.
func (o *Orchestrator) CancelReminders(h habit.Habit) int {
	unlock := o.locks.lock(h.ID)
	defer unlock()

	n := o.registry.CancelHabit(h.ID)
	if n > 0 {
		o.logger.Info("reminders cancelled",
			logger.Field{Key: "habit_id", Value: h.ID},
			logger.Field{Key: "cancelled", Value: n})
	}
	return n
}

// InitializeAllReminders schedules every habit with a reminder time whose
// owner is active. Per-habit failures are logged and counted; only a failing
// lookup is returned. Running it again yields the same registry.
func (o *Orchestrator) InitializeAllReminders(ctx context.Context) (Summary, error) {
	habits, err := o.store.FindHabitsWithReminder(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load habits with reminders: %w", err)
	}

	summary := o.scheduleAll(ctx, habits)
	o.logger.Info("reminders initialized",
		logger.Field{Key: "habits", Value: summary.Habits},
		logger.Field{Key: "scheduled", Value: summary.Scheduled},
		logger.Field{Key: "skipped", Value: summary.Skipped},
		logger.Field{Key: "failed", Value: summary.Failed},
		logger.Field{Key: "jobs", Value: summary.Jobs})
	return summary, nil
}

// DeactivateUser cancels the reminders of every habit of the user and
// returns how many jobs were cancelled.
func (o *Orchestrator) DeactivateUser(ctx context.Context, userID string) (int, error) {
	habits, err := o.store.FindHabitsByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load habits of user %s: %w", userID, err)
	}

	cancelled := 0
	for _, h := range habits {
		cancelled += o.CancelReminders(h)
	}
	o.logger.Info("user reminders deactivated",
		logger.Field{Key: "user_id", Value: userID},
		logger.Field{Key: "habits", Value: len(habits)},
		logger.Field{Key: "cancelled", Value: cancelled})
	return cancelled, nil
}

// ReactivateUser schedules every habit of the user again. The owner must
// already be active in the store.
func (o *Orchestrator) ReactivateUser(ctx context.Context, userID string) (Summary, error) {
	habits, err := o.store.FindHabitsByUser(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load habits of user %s: %w", userID, err)
	}

	summary := o.scheduleAll(ctx, habits)
	o.logger.Info("user reminders reactivated",
		logger.Field{Key: "user_id", Value: userID},
		logger.Field{Key: "scheduled", Value: summary.Scheduled},
		logger.Field{Key: "failed", Value: summary.Failed})
	return summary, nil
}

func (o *Orchestrator) scheduleAll(ctx context.Context, habits []habit.Habit) Summary {
	var summary Summary
	for _, h := range habits {
		if ctx.Err() != nil {
			break
		}
		outcome, _ := o.schedule(ctx, h)
		summary.add(outcome)
	}
	summary.Jobs = o.registry.Len()
	return summary
}
