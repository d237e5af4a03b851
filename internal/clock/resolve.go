// Package clock converts a habit's configured time-of-day and lead time
// into the hour and minute a reminder should fire at.
package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidTimeFormat is returned when a reminder time is not a valid "HH:MM" value.
	ErrInvalidTimeFormat = errors.New("invalid time format")

	// ErrNegativeLeadTime is returned when minutesBefore is negative.
	ErrNegativeLeadTime = errors.New("negative lead time")
)

// ParseTime parses a 24-hour "HH:MM" wall-clock value.
func ParseTime(value string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, value)
	}

	hour, err = parseField(parts[0], 23)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q: hour %v", ErrInvalidTimeFormat, value, err)
	}
	minute, err = parseField(parts[1], 59)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q: minute %v", ErrInvalidTimeFormat, value, err)
	}
	return hour, minute, nil
}

// ResolveTrigger returns the hour and minute a reminder fires at for a
// target time-of-day and a lead time in minutes.
//
// A negative minute borrows whole hours, and a negative hour wraps to the end
// of the same day. The weekday is never moved back, so a reminder at 00:10
// with a 20 minute lead fires at 23:50 of the routine day itself.
func ResolveTrigger(value string, minutesBefore int) (hour, minute int, err error) {
	if minutesBefore < 0 {
		return 0, 0, fmt.Errorf("%w: %d", ErrNegativeLeadTime, minutesBefore)
	}

	hour, minute, err = ParseTime(value)
	if err != nil {
		return 0, 0, err
	}

	minute -= minutesBefore
	if minute < 0 {
		borrow := (-minute + 59) / 60
		minute += borrow * 60
		hour -= borrow
	}
	if hour < 0 {
		hour = hour%24 + 24
		if hour == 24 {
			hour = 0
		}
	}
	return hour, minute, nil
}

func parseField(s string, max int) (int, error) {
	if s == "" || len(s) > 2 {
		return 0, fmt.Errorf("must be one or two digits")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("must be numeric")
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n > max {
		return 0, fmt.Errorf("out of range 0-%d", max)
	}
	return n, nil
}
