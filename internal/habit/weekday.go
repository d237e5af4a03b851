package habit

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidWeekday is returned when a routine token is not a known weekday.
var ErrInvalidWeekday = errors.New("invalid weekday")

// Weekday is a routine day. Its numeric value matches time.Weekday (Sunday = 0).
type Weekday time.Weekday

const (
	Sunday    = Weekday(time.Sunday)
	Monday    = Weekday(time.Monday)
	Tuesday   = Weekday(time.Tuesday)
	Wednesday = Weekday(time.Wednesday)
	Thursday  = Weekday(time.Thursday)
	Friday    = Weekday(time.Friday)
	Saturday  = Weekday(time.Saturday)
)

// AllWeekdays lists every weekday in routine order, Monday first.
var AllWeekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdayTokens = map[Weekday]string{
	Sunday:    "Su",
	Monday:    "Mo",
	Tuesday:   "Tu",
	Wednesday: "We",
	Thursday:  "Th",
	Friday:    "Fr",
	Saturday:  "Sa",
}

// Token returns the canonical two-letter token ("Mo", "Tu", ...).
func (d Weekday) Token() string {
	if t, ok := weekdayTokens[d]; ok {
		return t
	}
	return fmt.Sprintf("Weekday(%d)", int(d))
}

func (d Weekday) String() string { return d.Token() }

// Valid reports whether d is in the Sunday..Saturday range.
func (d Weekday) Valid() bool {
	return d >= Sunday && d <= Saturday
}

// ParseWeekday accepts the canonical two-letter token as well as three-letter
// and full English names, case-insensitively.
func ParseWeekday(s string) (Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if len(v) >= 2 {
		for d, tok := range weekdayTokens {
			name := strings.ToLower(time.Weekday(d).String())
			if v == strings.ToLower(tok) || v == name[:3] || v == name {
				return d, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}

// MarshalText encodes the weekday as its canonical token.
func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWeekday, int(d))
	}
	return []byte(d.Token()), nil
}

// UnmarshalText decodes any token accepted by ParseWeekday.
func (d *Weekday) UnmarshalText(b []byte) error {
	v, err := ParseWeekday(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Routine is the set of weekdays a habit recurs on.
type Routine []Weekday

// ParseRoutine parses tokens into a routine, dropping duplicates.
func ParseRoutine(tokens []string) (Routine, error) {
	r := make(Routine, 0, len(tokens))
	for _, t := range tokens {
		d, err := ParseWeekday(t)
		if err != nil {
			return nil, err
		}
		r = append(r, d)
	}
	return r.Normalize(), nil
}

// Contains reports whether d is part of the routine.
func (r Routine) Contains(d Weekday) bool {
	for _, v := range r {
		if v == d {
			return true
		}
	}
	return false
}

// Normalize returns the routine without duplicates, ordered Monday first.
func (r Routine) Normalize() Routine {
	seen := make(map[Weekday]bool, len(r))
	out := make(Routine, 0, len(r))
	for _, d := range r {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return mondayFirst(out[i]) < mondayFirst(out[j]) })
	return out
}

// Tokens returns the canonical tokens of the routine.
func (r Routine) Tokens() []string {
	out := make([]string, 0, len(r))
	for _, d := range r {
		out = append(out, d.Token())
	}
	return out
}

func mondayFirst(d Weekday) int {
	return (int(d) + 6) % 7
}
