package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aatumaykin/habitflow/internal/habit"
)

// Memory is an in-process Store, used in tests and dry runs.
type Memory struct {
	mu     sync.RWMutex
	users  map[string]habit.User
	habits map[string]habit.Habit
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:  make(map[string]habit.User),
		habits: make(map[string]habit.Habit),
	}
}

func (m *Memory) FindHabitsWithReminder(_ context.Context) ([]habit.Habit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.filterLocked(func(h habit.Habit) bool {
		return h.HasReminder() && m.users[h.UserID].Active
	}), nil
}

func (m *Memory) FindHabitsByUser(_ context.Context, userID string) ([]habit.Habit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.filterLocked(func(h habit.Habit) bool { return h.UserID == userID }), nil
}

func (m *Memory) FindHabitByID(_ context.Context, id string) (habit.Habit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.habits[id]
	if !ok {
		return habit.Habit{}, fmt.Errorf("habit %s: %w", id, ErrNotFound)
	}
	return h.Clone(), nil
}

func (m *Memory) FindUserByID(_ context.Context, id string) (habit.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return habit.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, nil
}

func (m *Memory) UpsertUser(_ context.Context, u habit.User) (habit.User, error) {
	u, err := prepareUser(u)
	if err != nil {
		return habit.User{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) SetUserActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	u.Active = active
	m.users[id] = u
	return nil
}

func (m *Memory) UpsertHabit(_ context.Context, h habit.Habit) (habit.Habit, error) {
	h, err := prepareHabit(h)
	if err != nil {
		return habit.Habit{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.habits[h.ID] = h.Clone()
	return h.Clone(), nil
}

func (m *Memory) DeleteHabit(_ context.Context, id string) (habit.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.habits[id]
	if !ok {
		return habit.Habit{}, fmt.Errorf("habit %s: %w", id, ErrNotFound)
	}
	delete(m.habits, id)
	return h, nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) filterLocked(keep func(habit.Habit) bool) []habit.Habit {
	var out []habit.Habit
	for _, h := range m.habits {
		if keep(h) {
			out = append(out, h.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
