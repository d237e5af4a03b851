// Package config provides configuration loading and validation for HabitFlow.
// It supports TOML configuration files with environment variable expansion,
// default values, and validation that reports every problem at once.
//
// Configuration structure:
//   - [logging]: Logging level, format, and output
//   - [scheduler]: Operational timezone and shutdown timeout
//   - [store]: Persistence driver and database path
//   - [notify]: Delivery transport, throttling and per-send timeout
//   - [notify.smtp]: Outgoing mail server
//   - [notify.telegram]: Telegram bot token
//   - [metrics]: Optional Prometheus listener
//
// Environment variables:
// Secrets and paths can reference environment variables using ${VAR} or
// ${VAR:default} syntax. For example: password = "${SMTP_PASSWORD}"
package config

import (
	"fmt"
	"time"

	"github.com/aatumaykin/habitflow/internal/logger"
	"github.com/aatumaykin/habitflow/internal/notify"
	"github.com/aatumaykin/habitflow/internal/store"
)

// Config represents the main application configuration.
type Config struct {
	Logging   LoggingConfig   `toml:"logging"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Store     StoreConfig     `toml:"store"`
	Notify    NotifyConfig    `toml:"notify"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// Logger returns the logger settings.
func (c LoggingConfig) Logger() logger.Config {
	return logger.Config{Level: c.Level, Format: c.Format, Output: c.Output}
}

// SchedulerConfig configures the recurrence engine.
type SchedulerConfig struct {
	// Timezone is the IANA zone every reminder time is interpreted in.
	Timezone               string `toml:"timezone"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
}

// Location loads the scheduler timezone.
func (c SchedulerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler.timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c SchedulerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

type StoreConfig struct {
	Driver string `toml:"driver"` // sqlite, memory
	Path   string `toml:"path"`
	// SeedFile is loaded into the store at startup when set.
	SeedFile string `toml:"seed_file"`
}

func (c StoreConfig) Store() store.Config {
	return store.Config{Driver: c.Driver, Path: c.Path}
}

type NotifyConfig struct {
	Transport      string `toml:"transport"` // smtp, telegram, log
	RatePerSec     int    `toml:"rate_per_sec"`
	TimeoutSeconds int    `toml:"timeout_seconds"`

	// Consecutive transport failures that pause delivery for
	// BreakerTimeoutSeconds.
	BreakerThreshold      int `toml:"breaker_threshold"`
	BreakerTimeoutSeconds int `toml:"breaker_timeout_seconds"`

	SMTP     SMTPConfig     `toml:"smtp"`
	Telegram TelegramConfig `toml:"telegram"`
}

// Sender returns the sender settings.
func (c NotifyConfig) Sender() notify.Config {
	return notify.Config{
		Transport: c.Transport,
		SMTP: notify.SMTPConfig{
			Host:     c.SMTP.Host,
			Port:     c.SMTP.Port,
			Username: c.SMTP.Username,
			Password: c.SMTP.Password,
			From:     c.SMTP.From,
			FromName: c.SMTP.FromName,
			StartTLS: c.SMTP.StartTLS,
		},
		Telegram: notify.TelegramConfig{
			Token:          c.Telegram.Token,
			SendTimeoutSec: c.Telegram.SendTimeoutSeconds,
		},
	}
}

func (c NotifyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c NotifyConfig) BreakerTimeout() time.Duration {
	return time.Duration(c.BreakerTimeoutSeconds) * time.Second
}

type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	FromName string `toml:"from_name"`
	StartTLS bool   `toml:"starttls"`
}

type TelegramConfig struct {
	Token              string `toml:"token"`
	SendTimeoutSeconds int    `toml:"send_timeout_seconds"`
}

type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Addr      string `toml:"addr"`
	Namespace string `toml:"namespace"`
}
