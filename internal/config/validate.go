package config

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/aatumaykin/habitflow/internal/logger"
	"github.com/aatumaykin/habitflow/internal/notify"
)

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() []error {
	var errs []error
	errs = append(errs, c.Logging.validate()...)
	errs = append(errs, c.Scheduler.validate()...)
	errs = append(errs, c.Store.validate()...)
	errs = append(errs, c.Notify.validate()...)
	errs = append(errs, c.Metrics.validate()...)
	return errs
}

func (c LoggingConfig) validate() []error {
	var errs []error
	if c.Level == "" {
		errs = append(errs, fieldError("logging.level", "is required"))
	} else if _, ok := logger.ParseLevel(c.Level); !ok {
		errs = append(errs, fieldError("logging.level", "invalid value %q (expected: debug, info, warn, error)", c.Level))
	}

	switch strings.ToLower(c.Format) {
	case "json", "text":
	case "":
		errs = append(errs, fieldError("logging.format", "is required"))
	default:
		errs = append(errs, fieldError("logging.format", "invalid value %q (expected: json, text)", c.Format))
	}

	if c.Output == "" {
		errs = append(errs, fieldError("logging.output", "is required"))
	}
	return errs
}

func (c SchedulerConfig) validate() []error {
	var errs []error
	if c.Timezone == "" {
		errs = append(errs, fieldError("scheduler.timezone", "is required"))
	} else if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fieldError("scheduler.timezone", "unknown timezone %q", c.Timezone))
	}
	if c.ShutdownTimeoutSeconds < 1 {
		errs = append(errs, fieldError("scheduler.shutdown_timeout_seconds", "must be >= 1"))
	}
	return errs
}

func (c StoreConfig) validate() []error {
	var errs []error
	switch strings.ToLower(c.Driver) {
	case "sqlite", "sqlite3":
		if c.Path == "" {
			errs = append(errs, fieldError("store.path", "is required when driver is sqlite"))
		} else if err := validatePath(c.Path, "store.path"); err != nil {
			errs = append(errs, err)
		}
	case "memory":
	default:
		errs = append(errs, fieldError("store.driver", "invalid value %q (expected: sqlite, memory)", c.Driver))
	}
	if c.SeedFile != "" {
		if err := validatePath(c.SeedFile, "store.seed_file"); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (c NotifyConfig) validate() []error {
	var errs []error
	if c.RatePerSec < 0 {
		errs = append(errs, fieldError("notify.rate_per_sec", "must not be negative"))
	}
	if c.TimeoutSeconds < 1 {
		errs = append(errs, fieldError("notify.timeout_seconds", "must be >= 1"))
	}
	if c.BreakerThreshold < 1 {
		errs = append(errs, fieldError("notify.breaker_threshold", "must be >= 1"))
	}
	if c.BreakerTimeoutSeconds < 1 {
		errs = append(errs, fieldError("notify.breaker_timeout_seconds", "must be >= 1"))
	}

	switch strings.ToLower(c.Transport) {
	case "log":
	case "smtp":
		errs = append(errs, c.SMTP.validate()...)
	case "telegram":
		if c.Telegram.Token == "" {
			errs = append(errs, fieldError("notify.telegram.token", "is required when transport is telegram"))
		} else if err := validateTelegramToken(c.Telegram.Token); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fieldError("notify.transport", "invalid value %q (expected: smtp, telegram, log)", c.Transport))
	}
	return errs
}

func (c SMTPConfig) validate() []error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, fieldError("notify.smtp.host", "is required when transport is smtp"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fieldError("notify.smtp.port", "must be between 1 and 65535 (got %d)", c.Port))
	}
	if !notify.ValidEmail(c.From) {
		errs = append(errs, fieldError("notify.smtp.from", "invalid address %q", c.From))
	}
	if c.Username != "" && c.Password == "" {
		errs = append(errs, fieldError("notify.smtp.password", "is required when username is set"))
	}
	return errs
}

func (c MetricsConfig) validate() []error {
	if !c.Enabled {
		return nil
	}
	var errs []error
	if _, port, err := net.SplitHostPort(c.Addr); err != nil {
		errs = append(errs, fieldError("metrics.addr", "invalid listen address %q", c.Addr))
	} else if _, err := strconv.Atoi(port); err != nil {
		errs = append(errs, fieldError("metrics.addr", "invalid port %q", port))
	}
	if c.Namespace == "" {
		errs = append(errs, fieldError("metrics.namespace", "is required when metrics are enabled"))
	}
	return errs
}

func validateTelegramToken(token string) error {
	botID, secret, ok := strings.Cut(token, ":")
	if !ok {
		return fieldError("notify.telegram.token", "invalid format, expected <bot_id>:<token> (value: %s)", maskTelegramToken(token))
	}
	if len(botID) < 3 || len(botID) > 15 {
		return fieldError("notify.telegram.token", "invalid bot id length (expected 3-15 digits, got %d)", len(botID))
	}
	for _, r := range botID {
		if r < '0' || r > '9' {
			return fieldError("notify.telegram.token", "bot id must be digits only (value: %s)", maskTelegramToken(token))
		}
	}
	if len(secret) < 10 || len(secret) > 50 {
		return fieldError("notify.telegram.token", "invalid token length (expected 10-50 characters, got %d)", len(secret))
	}
	return nil
}

func validatePath(path, field string) error {
	if strings.HasPrefix(path, "~") {
		return nil
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return fieldError(field, "contains a path traversal sequence")
		}
	}
	return nil
}
