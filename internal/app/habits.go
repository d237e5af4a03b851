package app

import (
	"context"
	"fmt"

	"github.com/aatumaykin/habitflow/internal/habit"
	"github.com/aatumaykin/habitflow/internal/reminder"
)

// SaveHabit stores h and brings its reminder jobs in line with it.
func (a *App) SaveHabit(ctx context.Context, h habit.Habit) (habit.Habit, error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	saved, err := a.store.UpsertHabit(ctx, h)
	if err != nil {
		return habit.Habit{}, err
	}
	if err := a.orchestrator.ScheduleReminder(ctx, saved); err != nil {
		return saved, fmt.Errorf("habit saved but not scheduled: %w", err)
	}
	return saved, nil
}

// DeleteHabit removes the habit and every job it holds.
func (a *App) DeleteHabit(ctx context.Context, id string) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	deleted, err := a.store.DeleteHabit(ctx, id)
	if err != nil {
		return err
	}
	a.orchestrator.CancelReminders(deleted)
	return nil
}

// DeactivateUser marks the account inactive and cancels its reminders.
func (a *App) DeactivateUser(ctx context.Context, userID string) (int, error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if err := a.store.SetUserActive(ctx, userID, false); err != nil {
		return 0, err
	}
	return a.orchestrator.DeactivateUser(ctx, userID)
}

// ReactivateUser marks the account active and schedules its reminders again.
func (a *App) ReactivateUser(ctx context.Context, userID string) (reminder.Summary, error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if err := a.store.SetUserActive(ctx, userID, true); err != nil {
		return reminder.Summary{}, err
	}
	return a.orchestrator.ReactivateUser(ctx, userID)
}
