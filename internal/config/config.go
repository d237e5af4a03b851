package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load loads the configuration from a TOML file, applies defaults and
// expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	applyDefaults(&cfg)
	expandEnvVars(&cfg)

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	expandEnvVars(&cfg)
	return &cfg
}

// expandEnvVars expands ${VAR} references in secrets and paths, and ~ in paths.
func expandEnvVars(c *Config) {
	for _, field := range []*string{
		&c.Scheduler.Timezone,
		&c.Store.Path,
		&c.Store.SeedFile,
		&c.Logging.Output,
		&c.Notify.SMTP.Host,
		&c.Notify.SMTP.Username,
		&c.Notify.SMTP.Password,
		&c.Notify.SMTP.From,
		&c.Notify.Telegram.Token,
		&c.Metrics.Addr,
	} {
		if strings.HasPrefix(*field, "${") {
			*field = expandEnv(*field)
		}
	}

	c.Store.Path = expandHome(c.Store.Path)
	c.Store.SeedFile = expandHome(c.Store.SeedFile)
	c.Logging.Output = expandHome(c.Logging.Output)
}

// expandEnv expands a ${VAR} or ${VAR:default} reference.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if key, defaultVal, ok := strings.Cut(content, ":"); ok {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return defaultVal
	}
	return os.Getenv(content)
}

// expandHome expands a leading ~/ to the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
