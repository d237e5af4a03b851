package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aatumaykin/habitflow/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(threshold int, timeout time.Duration) (*CircuitBreaker, *time.Time) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(threshold, timeout)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(0, 0)
	assert.Equal(t, int32(5), cb.threshold)
	assert.Equal(t, time.Minute, cb.timeout)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	assert.False(t, cb.RecordFailure())
	assert.False(t, cb.RecordFailure())
	assert.True(t, cb.Allow())

	assert.True(t, cb.RecordFailure())
	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()

	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb, now := newTestBreaker(1, time.Minute)
	cb.RecordFailure()
	require.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(30 * time.Second)
	assert.False(t, cb.Allow())

	*now = now.Add(31 * time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())
	assert.False(t, cb.Allow(), "only one probe at a time")

	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(1, time.Minute)
	cb.RecordFailure()

	*now = now.Add(2 * time.Minute)
	require.True(t, cb.Allow())

	assert.True(t, cb.RecordFailure())
	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
}

func TestBreakerSender_FailsFastWhileOpen(t *testing.T) {
	next := &recordingSender{err: errors.New("connection refused")}
	cb, _ := newTestBreaker(2, time.Minute)
	s := NewBreakerSender(next, cb, logger.Nop())
	msg := Message{Subject: "Reminder: Run"}

	require.Error(t, s.Send(context.Background(), msg))
	require.Error(t, s.Send(context.Background(), msg))

	err := s.Send(context.Background(), msg)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Len(t, next.sent, 2)
	assert.Equal(t, "recording", s.Name())
}

func TestBreakerSender_RecoversAfterTimeout(t *testing.T) {
	next := &recordingSender{err: errors.New("connection refused")}
	cb, now := newTestBreaker(1, time.Minute)
	s := NewBreakerSender(next, cb, logger.Nop())

	require.Error(t, s.Send(context.Background(), Message{}))
	require.Equal(t, CircuitOpen, cb.State())

	next.err = nil
	*now = now.Add(2 * time.Minute)

	require.NoError(t, s.Send(context.Background(), Message{}))
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Len(t, next.sent, 2)
}

func TestBreakerSender_MissingRecipientDoesNotTrip(t *testing.T) {
	next := &recordingSender{err: fmt.Errorf("%w: user u1", ErrNoRecipient)}
	cb, _ := newTestBreaker(1, time.Minute)
	s := NewBreakerSender(next, cb, logger.Nop())

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, s.Send(context.Background(), Message{}), ErrNoRecipient)
	}
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Len(t, next.sent, 3)
}
