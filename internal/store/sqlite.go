package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aatumaykin/habitflow/internal/habit"
	"github.com/aatumaykin/habitflow/internal/logger"
	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrations string

const habitColumns = `h.id, h.user_id, h.name, h.type, h.goal, h.measure_type, h.routine, h.reminder_time, h.minutes_before`

// SQLiteStore keeps users and habits in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// OpenSQLite opens (and migrates) the database at path.
// ":memory:" opens a private in-memory database.
func OpenSQLite(path string, log *logger.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")

	s := &SQLiteStore{db: db, logger: log}
	if _, err := db.Exec(migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}

	log.Debug("sqlite store opened", logger.Field{Key: "path", Value: path})
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) FindHabitsWithReminder(ctx context.Context) ([]habit.Habit, error) {
	return s.queryHabits(ctx,
		`SELECT `+habitColumns+` FROM habits h JOIN users u ON u.id = h.user_id
		 WHERE h.reminder_time IS NOT NULL AND h.reminder_time <> '' AND u.active = 1
		 ORDER BY h.id`)
}

func (s *SQLiteStore) FindHabitsByUser(ctx context.Context, userID string) ([]habit.Habit, error) {
	return s.queryHabits(ctx,
		`SELECT `+habitColumns+` FROM habits h WHERE h.user_id = ? ORDER BY h.id`, userID)
}

func (s *SQLiteStore) FindHabitByID(ctx context.Context, id string) (habit.Habit, error) {
	habits, err := s.queryHabits(ctx, `SELECT `+habitColumns+` FROM habits h WHERE h.id = ?`, id)
	if err != nil {
		return habit.Habit{}, err
	}
	if len(habits) == 0 {
		return habit.Habit{}, fmt.Errorf("habit %s: %w", id, ErrNotFound)
	}
	return habits[0], nil
}

func (s *SQLiteStore) FindUserByID(ctx context.Context, id string) (habit.User, error) {
	var u habit.User
	var active int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, username, first_name, telegram_chat_id, active FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.TelegramChatID, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return habit.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return habit.User{}, fmt.Errorf("failed to load user %s: %w", id, err)
	}
	u.Active = active == 1
	return u, nil
}

func (s *SQLiteStore) UpsertUser(ctx context.Context, u habit.User) (habit.User, error) {
	u, err := prepareUser(u)
	if err != nil {
		return habit.User{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users(id, email, username, first_name, telegram_chat_id, active, updated_at)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   email=excluded.email, username=excluded.username, first_name=excluded.first_name,
		   telegram_chat_id=excluded.telegram_chat_id, active=excluded.active, updated_at=excluded.updated_at`,
		u.ID, u.Email, u.Username, u.FirstName, u.TelegramChatID, boolInt(u.Active), now(),
	)
	if err != nil {
		return habit.User{}, fmt.Errorf("failed to save user %s: %w", u.ID, err)
	}
	return u, nil
}

func (s *SQLiteStore) SetUserActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET active = ?, updated_at = ? WHERE id = ?`, boolInt(active), now(), id)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) UpsertHabit(ctx context.Context, h habit.Habit) (habit.Habit, error) {
	h, err := prepareHabit(h)
	if err != nil {
		return habit.Habit{}, err
	}

	var reminder sql.NullString
	minutesBefore := 0
	if h.ReminderTime != nil {
		reminder = sql.NullString{String: h.ReminderTime.Time, Valid: h.ReminderTime.Time != ""}
		minutesBefore = h.ReminderTime.MinutesBefore
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO habits(id, user_id, name, type, goal, measure_type, routine, reminder_time, minutes_before, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   user_id=excluded.user_id, name=excluded.name, type=excluded.type, goal=excluded.goal,
		   measure_type=excluded.measure_type, routine=excluded.routine, reminder_time=excluded.reminder_time,
		   minutes_before=excluded.minutes_before, updated_at=excluded.updated_at`,
		h.ID, h.UserID, h.Name, string(h.Type), h.Goal, string(h.MeasureType),
		strings.Join(h.Routine.Tokens(), ","), reminder, minutesBefore, now(),
	)
	if err != nil {
		return habit.Habit{}, fmt.Errorf("failed to save habit %s: %w", h.ID, err)
	}
	return h, nil
}

func (s *SQLiteStore) DeleteHabit(ctx context.Context, id string) (habit.Habit, error) {
	h, err := s.FindHabitByID(ctx, id)
	if err != nil {
		return habit.Habit{}, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM habits WHERE id = ?`, id); err != nil {
		return habit.Habit{}, fmt.Errorf("failed to delete habit %s: %w", id, err)
	}
	return h, nil
}

func (s *SQLiteStore) queryHabits(ctx context.Context, query string, args ...any) ([]habit.Habit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query habits: %w", err)
	}
	defer rows.Close()

	var habits []habit.Habit
	for rows.Next() {
		var (
			h             habit.Habit
			kind, measure string
			routine       string
			reminder      sql.NullString
			minutesBefore int
		)
		if err := rows.Scan(&h.ID, &h.UserID, &h.Name, &kind, &h.Goal, &measure, &routine, &reminder, &minutesBefore); err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		h.Type = habit.Type(kind)
		h.MeasureType = habit.MeasureType(measure)

		if routine != "" {
			r, err := habit.ParseRoutine(strings.Split(routine, ","))
			if err != nil {
				s.logger.Warn("skipping habit with unreadable routine",
					logger.Field{Key: "habit_id", Value: h.ID},
					logger.Field{Key: "routine", Value: routine})
				continue
			}
			h.Routine = r
		}
		if reminder.Valid && reminder.String != "" {
			h.ReminderTime = &habit.ReminderTime{Time: reminder.String, MinutesBefore: minutesBefore}
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read habits: %w", err)
	}
	return habits, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
