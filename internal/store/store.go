// Package store is the persistence collaborator of the reminder scheduler.
// It stores users and habits in SQLite (modernc.org/sqlite) or in memory and
// answers the lookups the scheduler needs: habits with a reminder, a user by
// id, and the habits of a user.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aatumaykin/habitflow/internal/habit"
	"github.com/aatumaykin/habitflow/internal/logger"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Store is the full persistence API.
type Store interface {
	// FindHabitsWithReminder returns habits with a reminder time whose owner is active.
	FindHabitsWithReminder(ctx context.Context) ([]habit.Habit, error)
	FindUserByID(ctx context.Context, id string) (habit.User, error)
	FindHabitsByUser(ctx context.Context, userID string) ([]habit.Habit, error)
	FindHabitByID(ctx context.Context, id string) (habit.Habit, error)

	UpsertUser(ctx context.Context, u habit.User) (habit.User, error)
	SetUserActive(ctx context.Context, id string, active bool) error
	UpsertHabit(ctx context.Context, h habit.Habit) (habit.Habit, error)
	DeleteHabit(ctx context.Context, id string) (habit.Habit, error)

	Close() error
}

// Config selects and configures a store driver.
type Config struct {
	Driver string // sqlite, memory
	Path   string // sqlite database file
}

// Open initializes the configured store.
func Open(cfg Config, log *logger.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		return OpenSQLite(cfg.Path, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}

func prepareUser(u habit.User) (habit.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.TrimSpace(u.Email)
	if u.Email == "" {
		return u, fmt.Errorf("user %s: email is required", u.ID)
	}
	if u.Username == "" {
		return u, fmt.Errorf("user %s: username is required", u.ID)
	}
	return u, nil
}

func prepareHabit(h habit.Habit) (habit.Habit, error) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	h.Routine = h.Routine.Normalize()
	if h.ReminderTime != nil && h.ReminderTime.Time == "" && h.ReminderTime.MinutesBefore == 0 {
		h.ReminderTime = nil
	}
	if err := h.Validate(); err != nil {
		return h, err
	}
	return h, nil
}
