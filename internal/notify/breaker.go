package notify

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aatumaykin/habitflow/internal/logger"
)

// ErrCircuitOpen is returned while the breaker rejects deliveries.
var ErrCircuitOpen = errors.New("sender circuit open")

type CircuitState int32

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	default:
		return "half-open"
	}
}

// CircuitBreaker opens after threshold consecutive transport failures and
// lets a single probe through once timeout has passed.
type CircuitBreaker struct {
	state            atomic.Int32
	failures         atomic.Int32
	lastFail         atomic.Int64
	halfOpenAttempts atomic.Int32
	threshold        int32
	timeout          time.Duration
	now              func() time.Time
}

func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &CircuitBreaker{
		threshold: int32(threshold),
		timeout:   timeout,
		now:       time.Now,
	}
}

// Allow reports whether a delivery may be attempted.
func (cb *CircuitBreaker) Allow() bool {
	for {
		switch CircuitState(cb.state.Load()) {
		case CircuitClosed:
			return true

		case CircuitOpen:
			if cb.now().Sub(time.Unix(0, cb.lastFail.Load())) <= cb.timeout {
				return false
			}
			if !cb.state.CompareAndSwap(int32(CircuitOpen), int32(CircuitHalfOpen)) {
				continue
			}
			cb.halfOpenAttempts.Store(1)
			return true

		case CircuitHalfOpen:
			return cb.halfOpenAttempts.CompareAndSwap(0, 1)
		}
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.failures.Store(0)
	cb.halfOpenAttempts.Store(0)
	cb.state.Store(int32(CircuitClosed))
}

// RecordFailure counts a failure and reports whether it opened the circuit.
func (cb *CircuitBreaker) RecordFailure() bool {
	n := cb.failures.Add(1)
	cb.lastFail.Store(cb.now().UnixNano())

	if CircuitState(cb.state.Load()) == CircuitHalfOpen {
		cb.state.Store(int32(CircuitOpen))
		return true
	}
	if n >= cb.threshold {
		return cb.state.CompareAndSwap(int32(CircuitClosed), int32(CircuitOpen))
	}
	return false
}

func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(cb.state.Load())
}

// BreakerSender stops calling a failing transport for a while instead of
// timing out on every reminder. Missing recipient addresses and rejected
// messages do not count as transport failures.
type BreakerSender struct {
	next    Sender
	breaker *CircuitBreaker
	logger  *logger.Logger
}

func NewBreakerSender(next Sender, breaker *CircuitBreaker, log *logger.Logger) *BreakerSender {
	return &BreakerSender{next: next, breaker: breaker, logger: log}
}

func (s *BreakerSender) Name() string { return s.next.Name() }

func (s *BreakerSender) Send(ctx context.Context, msg Message) error {
	if !s.breaker.Allow() {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, s.next.Name())
	}

	err := s.next.Send(ctx, msg)
	switch {
	case err == nil:
		if s.breaker.State() != CircuitClosed {
			s.logger.Info("sender recovered", logger.Field{Key: "sender", Value: s.next.Name()})
		}
		s.breaker.RecordSuccess()
	case errors.Is(err, ErrNoRecipient), errors.Is(err, ErrMessageRejected):
		s.breaker.halfOpenAttempts.Store(0)
	default:
		if s.breaker.RecordFailure() {
			s.logger.Warn("sender circuit opened",
				logger.Field{Key: "sender", Value: s.next.Name()},
				logger.Field{Key: "retry_after", Value: s.breaker.timeout.String()})
		}
	}
	return err
}
