// Package habit defines the domain records the reminder scheduler works with:
// habits, their weekly routine and reminder settings, and the users that own them.
package habit

import (
	"errors"
	"fmt"

	"github.com/aatumaykin/habitflow/internal/clock"
)

// ErrInvalidHabit is returned by Validate for malformed habits.
var ErrInvalidHabit = errors.New("invalid habit")

// Type describes whether a habit should be practiced or avoided.
type Type string

const (
	TypeGood Type = "good"
	TypeBad  Type = "bad"
)

// MeasureType describes how a habit goal is measured.
type MeasureType string

const (
	MeasureAmount MeasureType = "amount"
	MeasureTime   MeasureType = "time"
)

// ReminderTime holds the configured time-of-day and the lead time in minutes.
// An empty Time means the habit has no reminder.
type ReminderTime struct {
	Time          string `json:"time,omitempty" yaml:"time,omitempty"`
	MinutesBefore int    `json:"minutes_before,omitempty" yaml:"minutes_before,omitempty"`
}

// Habit is a recurring habit owned by a single user.
type Habit struct {
	ID           string        `json:"id" yaml:"id"`
	UserID       string        `json:"user_id" yaml:"user_id"`
	Name         string        `json:"name" yaml:"name"`
	Type         Type          `json:"type" yaml:"type"`
	Goal         float64       `json:"goal" yaml:"goal"`
	MeasureType  MeasureType   `json:"measure_type" yaml:"measure_type"`
	Routine      Routine       `json:"routine" yaml:"routine"`
	ReminderTime *ReminderTime `json:"reminder_time,omitempty" yaml:"reminder_time,omitempty"`
}

// HasReminder reports whether a reminder time-of-day is configured.
func (h Habit) HasReminder() bool {
	return h.ReminderTime != nil && h.ReminderTime.Time != ""
}

// Clone returns a deep copy of h.
func (h Habit) Clone() Habit {
	h.Routine = append(Routine(nil), h.Routine...)
	if h.ReminderTime != nil {
		rt := *h.ReminderTime
		h.ReminderTime = &rt
	}
	return h
}

// Validate checks the enumerations, the routine, and the reminder time.
func (h Habit) Validate() error {
	if h.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidHabit)
	}
	if h.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidHabit)
	}
	if h.Type != TypeGood && h.Type != TypeBad {
		return fmt.Errorf("%w: type %q (expected: good, bad)", ErrInvalidHabit, h.Type)
	}
	if h.MeasureType != MeasureAmount && h.MeasureType != MeasureTime {
		return fmt.Errorf("%w: measure_type %q (expected: amount, time)", ErrInvalidHabit, h.MeasureType)
	}
	for _, d := range h.Routine {
		if !d.Valid() {
			return fmt.Errorf("%w: %w", ErrInvalidHabit, ErrInvalidWeekday)
		}
	}
	if h.ReminderTime != nil {
		if h.ReminderTime.MinutesBefore < 0 {
			return fmt.Errorf("%w: minutes_before must not be negative", ErrInvalidHabit)
		}
		if h.ReminderTime.Time != "" {
			if _, _, err := clock.ParseTime(h.ReminderTime.Time); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidHabit, err)
			}
		}
	}
	return nil
}

// User is the owner of habits and the recipient of reminders.
type User struct {
	ID             string `json:"id" yaml:"id"`
	Email          string `json:"email" yaml:"email"`
	Username       string `json:"username" yaml:"username"`
	FirstName      string `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	TelegramChatID int64  `json:"telegram_chat_id,omitempty" yaml:"telegram_chat_id,omitempty"`
	Active         bool   `json:"active" yaml:"-"`
}

// DisplayName returns the name used to greet the user.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}
