package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	configPath = ""
	logLevel = ""
	previewFrom = ""
	t.Cleanup(func() {
		configPath = ""
		logLevel = ""
		previewFrom = ""
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRootFlags(t *testing.T) {
	configPath = ""
	logLevel = ""

	require.NoError(t, rootCmd.PersistentFlags().Parse([]string{"-c", "test.toml", "--log-level", "debug"}))
	assert.Equal(t, "test.toml", configPath)
	assert.Equal(t, "debug", logLevel)

	configPath = ""
	logLevel = ""
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "HabitFlow")
	assert.Contains(t, out, "Version: ")
}

func TestConfigValidateCmd(t *testing.T) {
	dir := t.TempDir()

	valid := writeFile(t, dir, "valid.toml", `
[scheduler]
timezone = "Asia/Yangon"

[store]
driver = "memory"
`)
	out, err := execute(t, "config", "validate", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	invalid := writeFile(t, dir, "invalid.toml", `
[logging]
level = "loud"

[notify]
transport = "pigeon"
`)
	out, err = execute(t, "config", "validate", invalid)
	require.Error(t, err)
	assert.Contains(t, out, "2 error(s)")
	assert.Contains(t, out, "logging.level")
	assert.Contains(t, out, "notify.transport")
}

func TestSeedAndPreviewCmd(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "habitflow.db")
	cfgPath := writeFile(t, dir, "config.toml", `
[logging]
output = "discard"

[scheduler]
timezone = "UTC"

[store]
driver = "sqlite"
path = "`+db+`"
`)
	seed := writeFile(t, dir, "seed.yaml", `
users:
  - id: u1
    email: alice@example.com
    username: alice
habits:
  - id: h1
    user_id: u1
    name: Read
    type: good
    goal: 20
    measure_type: time
    routine: [Mo, Fr]
    reminder_time: {time: "09:00", minutes_before: 15}
`)

	out, err := execute(t, "--config", cfgPath, "seed", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 1 user(s) and 1 habit(s)")

	out, err = execute(t, "--config", cfgPath, "reminders", "preview", "--from", "2026-10-14T12:00:00Z")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[1], "h1")
	assert.Contains(t, lines[1], "Mo")
	assert.Contains(t, lines[1], "08:45")
	assert.Contains(t, lines[1], "2026-10-19 08:45 UTC")
	assert.Contains(t, lines[2], "Fr")
	assert.Contains(t, lines[2], "2026-10-16 08:45 UTC")
	assert.Contains(t, out, "1 habit(s): 1 scheduled, 0 skipped, 0 failed, 2 job(s)")
}

func TestPreviewCmdInvalidFrom(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.toml", `
[logging]
output = "discard"

[store]
driver = "memory"
`)

	_, err := execute(t, "--config", cfgPath, "reminders", "preview", "--from", "yesterday")
	assert.Error(t, err)
}
