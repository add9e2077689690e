package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads, restoring them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV", "WARRANTY_DB", "UPLOAD_FOLDER", "SMTP_HOST", "SMTP_PORT", "SMTP_USER",
		"SMTP_PASSWORD", "SMTP_FROM", "NOTIFY_WEEKLY_DAY", "SECRET_KEY",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{EnvDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, time.Monday, cfg.WeeklyDay())

	interval, err := cfg.Interval()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, interval)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "warranty.yaml", `
database:
  path: /var/lib/warranty.db
smtp:
  host: smtp.example.com
  from: noreply@example.com
notify:
  weekly_day: friday
  workers: 2
log:
  level: debug
  format: json
`)

	cfg, err := Load(Options{File: path, EnvDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/warranty.db", cfg.Database.Path)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, 587, cfg.SMTP.Port, "unset keys keep defaults")
	assert.Equal(t, time.Friday, cfg.WeeklyDay())
	assert.Equal(t, 2, cfg.Notify.Workers)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EmptyFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.yaml", "")

	cfg, err := Load(Options{File: path, EnvDir: dir})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", "database:\n  file: x.db\n")

	_, err := Load(Options{File: path, EnvDir: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file")
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "warranty.yaml", "database:\n  path: file.db\nsmtp:\n  port: 25\n")
	t.Setenv("WARRANTY_DB", "env.db")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("NOTIFY_WEEKLY_DAY", " Wednesday ")
	t.Setenv("SECRET_KEY", "s3cret")

	cfg, err := Load(Options{File: path, EnvDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Database.Path)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, time.Wednesday, cfg.WeeklyDay())
	assert.Equal(t, "s3cret", cfg.SecretKey)
}

func TestLoad_BadPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMTP_PORT", "smtp")

	_, err := Load(Options{EnvDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP_PORT")
}

func TestLoad_Dotenv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ".env", "SMTP_HOST=base.example.com\nUPLOAD_FOLDER=/srv/uploads\n")
	writeFile(t, dir, ".env.production", "SMTP_HOST=prod.example.com\n")
	t.Setenv("ENV", "production")

	cfg, err := Load(Options{EnvDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "prod.example.com", cfg.SMTP.Host, ".env.<ENV> is read first and wins")
	assert.Equal(t, "/srv/uploads", cfg.Uploads.Dir)
}

func TestLoad_DotenvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ".env", "SECRET_KEY=from-file\n")
	t.Setenv("SECRET_KEY", "from-env")

	cfg, err := Load(Options{EnvDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.SecretKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port out of range", func(c *Config) { c.SMTP.Port = 70000 }, "port"},
		{"unknown weekday", func(c *Config) { c.Notify.WeeklyDay = "someday" }, "weekly_day"},
		{"no workers", func(c *Config) { c.Notify.Workers = 0 }, "workers"},
		{"empty db path", func(c *Config) { c.Database.Path = "" }, "path"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "level"},
		{"bad interval", func(c *Config) { c.Notify.Interval = "daily" }, "notify.interval"},
		{"negative timeout", func(c *Config) { c.SMTP.Timeout = "-1s" }, "smtp.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()

	cfg.Logger(&buf, false).Debug("hidden")
	assert.Empty(t, buf.String())

	cfg.Logger(&buf, true).Debug("shown")
	assert.Contains(t, buf.String(), "msg=shown")

	buf.Reset()
	cfg.Log.Format = "json"
	cfg.Logger(&buf, false).Info("hello", "k", "v")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
	assert.Contains(t, buf.String(), `"k":"v"`)
}
