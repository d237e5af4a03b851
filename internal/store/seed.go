package store

import (
	"context"
	"fmt"
	"io"

	"github.com/aatumaykin/habitflow/internal/habit"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML fixture format accepted by Seed.
//
//	users:
//	  - id: u1
//	    email: ann@example.com
//	    username: ann
//	habits:
//	  - user_id: u1
//	    name: Read
//	    type: good
//	    goal: 20
//	    measure_type: time
//	    routine: [Mo, We, Fr]
//	    reminder_time: {time: "21:00", minutes_before: 15}
type SeedFile struct {
	Users  []SeedUser    `yaml:"users"`
	Habits []habit.Habit `yaml:"habits"`
}

// SeedUser is a user record whose active flag defaults to true.
type SeedUser struct {
	habit.User `yaml:",inline"`
	Active     *bool `yaml:"active,omitempty"`
}

// SeedResult counts the records written by Seed.
type SeedResult struct {
	Users  []habit.User
	Habits []habit.Habit
}

// Seed decodes a YAML fixture from r and upserts its users, then its habits.
func Seed(ctx context.Context, s Store, r io.Reader) (SeedResult, error) {
	var file SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return SeedResult{}, fmt.Errorf("failed to parse seed file: %w", err)
	}

	var res SeedResult
	for _, su := range file.Users {
		u := su.User
		u.Active = su.Active == nil || *su.Active
		saved, err := s.UpsertUser(ctx, u)
		if err != nil {
			return res, fmt.Errorf("failed to seed user %q: %w", u.Username, err)
		}
		res.Users = append(res.Users, saved)
	}
	for _, h := range file.Habits {
		if _, err := s.FindUserByID(ctx, h.UserID); err != nil {
			return res, fmt.Errorf("failed to seed habit %q: %w", h.Name, err)
		}
		saved, err := s.UpsertHabit(ctx, h)
		if err != nil {
			return res, fmt.Errorf("failed to seed habit %q: %w", h.Name, err)
		}
		res.Habits = append(res.Habits, saved)
	}
	return res, nil
}
