package config

const (
	DefaultTimezone      = "Asia/Yangon"
	DefaultStorePath     = "~/.habitflow/habitflow.db"
	DefaultMetricsAddr   = "127.0.0.1:9090"
	DefaultMetricsPrefix = "habitflow"
)

// applyDefaults fills every unset field.
func applyDefaults(c *Config) {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = DefaultTimezone
	}
	if c.Scheduler.ShutdownTimeoutSeconds == 0 {
		c.Scheduler.ShutdownTimeoutSeconds = 30
	}

	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Path == "" && c.Store.Driver == "sqlite" {
		c.Store.Path = DefaultStorePath
	}

	if c.Notify.Transport == "" {
		c.Notify.Transport = "log"
	}
	if c.Notify.RatePerSec == 0 {
		c.Notify.RatePerSec = 10
	}
	if c.Notify.TimeoutSeconds == 0 {
		c.Notify.TimeoutSeconds = 30
	}
	if c.Notify.BreakerThreshold == 0 {
		c.Notify.BreakerThreshold = 5
	}
	if c.Notify.BreakerTimeoutSeconds == 0 {
		c.Notify.BreakerTimeoutSeconds = 60
	}
	if c.Notify.SMTP.Port == 0 {
		c.Notify.SMTP.Port = 587
	}
	if c.Notify.SMTP.FromName == "" {
		c.Notify.SMTP.FromName = "The Habit Flow Team"
	}
	if c.Notify.Telegram.SendTimeoutSeconds == 0 {
		c.Notify.Telegram.SendTimeoutSeconds = 10
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsPrefix
	}
}
