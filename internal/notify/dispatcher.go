package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/habitflow/internal/habit"
	"github.com/aatumaykin/habitflow/internal/logger"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Observer receives delivery outcomes. Methods must be safe for concurrent use.
type Observer interface {
	DispatchSent(sender string)
	DispatchFailed(sender string)
}

// Dispatcher renders reminders and delivers them through a Sender.
type Dispatcher struct {
	sender   Sender
	logger   *logger.Logger
	limiter  *rate.Limiter
	observer Observer
	timeout  time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRateLimit caps deliveries at perSec per second. Zero disables throttling.
func WithRateLimit(perSec int) DispatcherOption {
	return func(d *Dispatcher) {
		if perSec > 0 {
			d.limiter = rate.NewLimiter(rate.Limit(perSec), perSec)
		}
	}
}

// WithTimeout bounds a single delivery.
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithDispatchObserver reports outcomes to o.
func WithDispatchObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

func NewDispatcher(sender Sender, log *logger.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:  sender,
		logger:  log,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers a reminder for h to u. Failures are logged and returned
// wrapped in ErrDispatch; nothing is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, h habit.Habit, u habit.User) error {
	id := uuid.NewString()
	fields := []logger.Field{
		{Key: "dispatch_id", Value: id},
		{Key: "habit_id", Value: h.ID},
		{Key: "user_id", Value: u.ID},
		{Key: "sender", Value: d.sender.Name()},
	}

	err := d.deliver(ctx, h, u)
	if err != nil {
		d.logger.ErrorCtx(ctx, "failed to send reminder", err, fields...)
		if d.observer != nil {
			d.observer.DispatchFailed(d.sender.Name())
		}
		return fmt.Errorf("%w: habit %s: %w", ErrDispatch, h.ID, err)
	}

	d.logger.InfoCtx(ctx, "reminder sent", fields...)
	if d.observer != nil {
		d.observer.DispatchSent(d.sender.Name())
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, h habit.Habit, u habit.User) error {
	msg, err := Format(h, u)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	return d.sender.Send(ctx, msg)
}
