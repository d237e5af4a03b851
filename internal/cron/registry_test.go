package cron

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aatumaykin/habitflow/internal/habit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_String(t *testing.T) {
	assert.Equal(t, "h42-We", Key{HabitID: "h42", Weekday: habit.Wednesday}.String())
}

func TestKeysFor(t *testing.T) {
	keys := KeysFor("h1")
	require.Len(t, keys, 7)
	assert.Equal(t, Key{HabitID: "h1", Weekday: habit.Monday}, keys[0])
	assert.Equal(t, Key{HabitID: "h1", Weekday: habit.Sunday}, keys[6])
}

func TestRegistry_RegisterGet(t *testing.T) {
	reg := NewRegistry(newTestEngine(), testLogger())
	key := Key{HabitID: "h1", Weekday: habit.Monday}
	rule := Rule{Weekday: habit.Monday, Hour: 8, Minute: 45}

	job, err := reg.Register(key, rule, noopAction)
	require.NoError(t, err)
	assert.Equal(t, key, job.Key)
	assert.Equal(t, rule, job.Rule)
	assert.False(t, job.ArmedAt.IsZero())

	got, ok := reg.Get(key)
	require.True(t, ok)
	assert.Equal(t, job.Handle(), got.Handle())
	assert.True(t, reg.Engine().Armed(got.Handle()))
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	engine := newTestEngine()
	reg := NewRegistry(engine, testLogger())
	key := Key{HabitID: "h1", Weekday: habit.Monday}

	first, err := reg.Register(key, Rule{Weekday: habit.Monday, Hour: 8}, noopAction)
	require.NoError(t, err)
	second, err := reg.Register(key, Rule{Weekday: habit.Monday, Hour: 9}, noopAction)
	require.NoError(t, err)

	assert.False(t, engine.Armed(first.Handle()))
	assert.True(t, engine.Armed(second.Handle()))
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 1, engine.Len())

	got, ok := reg.Get(key)
	require.True(t, ok)
	assert.Equal(t, 9, got.Rule.Hour)
}

func TestRegistry_RegisterMismatchedWeekday(t *testing.T) {
	reg := NewRegistry(newTestEngine(), testLogger())

	_, err := reg.Register(Key{HabitID: "h1", Weekday: habit.Monday},
		Rule{Weekday: habit.Tuesday, Hour: 8}, noopAction)
	assert.ErrorIs(t, err, ErrInvalidRule)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_CancelMissingIsNoop(t *testing.T) {
	reg := NewRegistry(newTestEngine(), testLogger())
	assert.False(t, reg.Cancel(Key{HabitID: "nope", Weekday: habit.Friday}))
}

func TestRegistry_CancelHabit(t *testing.T) {
	engine := newTestEngine()
	reg := NewRegistry(engine, testLogger())

	for _, d := range []habit.Weekday{habit.Monday, habit.Wednesday, habit.Friday} {
		_, err := reg.Register(Key{HabitID: "h1", Weekday: d}, Rule{Weekday: d, Hour: 7}, noopAction)
		require.NoError(t, err)
	}
	_, err := reg.Register(Key{HabitID: "h2", Weekday: habit.Monday}, Rule{Weekday: habit.Monday, Hour: 7}, noopAction)
	require.NoError(t, err)

	assert.Equal(t, 3, reg.CancelHabit("h1"))
	for _, key := range KeysFor("h1") {
		_, ok := reg.Get(key)
		assert.False(t, ok, key.String())
	}
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 1, engine.Len())
	assert.Equal(t, 0, reg.CancelHabit("h1"))
}

func TestRegistry_FireKeepsJobAfterFailure(t *testing.T) {
	obs := &recordingObserver{}
	reg := NewRegistry(newTestEngine(), testLogger(), WithObserver(obs))
	key := Key{HabitID: "h1", Weekday: habit.Saturday}

	_, err := reg.Register(key, Rule{Weekday: habit.Saturday, Hour: 10}, func(context.Context) error {
		return errors.New("send failed")
	})
	require.NoError(t, err)

	assert.True(t, reg.Fire(key))
	assert.True(t, reg.Fire(key))

	job, ok := reg.Get(key)
	require.True(t, ok)
	assert.Equal(t, int64(2), job.Fires())
	assert.True(t, reg.Engine().Armed(job.Handle()))
	assert.Equal(t, []Key{key, key}, obs.fired)
	assert.Equal(t, 1, obs.lastArmed())

	assert.False(t, reg.Fire(Key{HabitID: "h1", Weekday: habit.Sunday}))
}

func TestRegistry_Snapshot(t *testing.T) {
	reg := NewRegistry(newTestEngine(), testLogger())

	register := func(id string, d habit.Weekday) {
		_, err := reg.Register(Key{HabitID: id, Weekday: d}, Rule{Weekday: d, Hour: 6}, noopAction)
		require.NoError(t, err)
	}
	register("b", habit.Sunday)
	register("a", habit.Friday)
	register("b", habit.Monday)

	snap := reg.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "a-Fr", snap[0].Key.String())
	assert.Equal(t, "b-Mo", snap[1].Key.String())
	assert.Equal(t, "b-Su", snap[2].Key.String())
}

func TestRegistry_ConcurrentRegisterCancel(t *testing.T) {
	engine := newTestEngine()
	require.NoError(t, engine.Start())
	defer func() { _ = engine.Stop(context.Background()) }()

	reg := NewRegistry(engine, testLogger())
	key := Key{HabitID: "race", Weekday: habit.Thursday}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(minute int) {
			defer wg.Done()
			_, err := reg.Register(key, Rule{Weekday: habit.Thursday, Hour: 12, Minute: minute}, noopAction)
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			reg.Cancel(key)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, reg.Len(), 1)
	assert.Equal(t, reg.Len(), engine.Len())
	if job, ok := reg.Get(key); ok {
		assert.True(t, engine.Armed(job.Handle()))
	}
}

func TestRegistry_Close(t *testing.T) {
	engine := newTestEngine()
	reg := NewRegistry(engine, testLogger())

	_, err := reg.Register(Key{HabitID: "h1", Weekday: habit.Monday}, Rule{Weekday: habit.Monday, Hour: 6}, noopAction)
	require.NoError(t, err)

	reg.Close()
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, engine.Len())

	_, err = reg.Register(Key{HabitID: "h1", Weekday: habit.Monday}, Rule{Weekday: habit.Monday, Hour: 6}, noopAction)
	assert.Error(t, err)
}
