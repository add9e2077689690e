// Package config loads the warranty tracker configuration.
//
// Sources are applied in order, later ones winning:
//   - built-in defaults
//   - the YAML file named by --config (unknown keys are rejected)
//   - .env.<ENV> and .env files, which only fill variables not already set
//   - environment variables (WARRANTY_DB, UPLOAD_FOLDER, SMTP_*, NOTIFY_WEEKLY_DAY, SECRET_KEY)
//
// The merged result is checked against the embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config is the merged runtime configuration.
type Config struct {
	Database  Database `yaml:"database" json:"database"`
	Uploads   Uploads  `yaml:"uploads" json:"uploads"`
	SMTP      SMTP     `yaml:"smtp" json:"smtp"`
	Notify    Notify   `yaml:"notify" json:"notify"`
	SecretKey string   `yaml:"secret_key" json:"secret_key"`
	Log       Log      `yaml:"log" json:"log"`
}

// Database locates the SQLite file.
type Database struct {
	Path string `yaml:"path" json:"path"`
}

// Uploads locates stored invoice attachments.
type Uploads struct {
	Dir string `yaml:"dir" json:"dir"`
}

// SMTP configures outbound mail. Leaving Host or From empty disables delivery.
type SMTP struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	From     string `yaml:"from" json:"from"`
	Timeout  string `yaml:"timeout" json:"timeout"`
}

// Notify configures the reminder pass and its scheduler.
type Notify struct {
	WeeklyDay     string `yaml:"weekly_day" json:"weekly_day"`
	Workers       int    `yaml:"workers" json:"workers"`
	Interval      string `yaml:"interval" json:"interval"`
	LookaheadDays int    `yaml:"lookahead_days" json:"lookahead_days"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Database: Database{Path: "warranty.db"},
		Uploads:  Uploads{Dir: "uploads"},
		SMTP:     SMTP{Port: 587, Timeout: "30s"},
		Notify: Notify{
			WeeklyDay:     "monday",
			Workers:       4,
			Interval:      "24h",
			LookaheadDays: 7,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Options controls where Load looks.
type Options struct {
	// File is the YAML config path. Empty skips the file.
	File string
	// EnvDir holds the .env files. Empty means the working directory.
	EnvDir string
}

// Load merges every source and validates the result.
func Load(opts Options) (Config, error) {
	cfg := Default()

	if opts.File != "" {
		if err := decodeFile(opts.File, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := loadDotenv(opts.EnvDir); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func loadDotenv(dir string) error {
	files := []string{".env"}
	if env := os.Getenv("ENV"); env != "" {
		files = append([]string{".env." + env}, files...)
	}
	for _, name := range files {
		path := filepath.Join(dir, name)
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("WARRANTY_DB", &cfg.Database.Path)
	str("UPLOAD_FOLDER", &cfg.Uploads.Dir)
	str("SMTP_HOST", &cfg.SMTP.Host)
	str("SMTP_USER", &cfg.SMTP.User)
	str("SMTP_PASSWORD", &cfg.SMTP.Password)
	str("SMTP_FROM", &cfg.SMTP.From)
	str("NOTIFY_WEEKLY_DAY", &cfg.Notify.WeeklyDay)
	str("SECRET_KEY", &cfg.SecretKey)

	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_PORT: %q is not a number", v)
		}
		cfg.SMTP.Port = port
	}
	cfg.Notify.WeeklyDay = strings.ToLower(strings.TrimSpace(cfg.Notify.WeeklyDay))
	return nil
}

// Validate checks cfg against the CUE schema and parses its durations.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	v := schema.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	if _, err := c.Interval(); err != nil {
		return err
	}
	if _, err := c.SMTPTimeout(); err != nil {
		return err
	}
	return nil
}

// Interval is the scheduler period.
func (c Config) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Notify.Interval)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid config: notify.interval %q is not a positive duration", c.Notify.Interval)
	}
	return d, nil
}

// SMTPTimeout bounds one delivery attempt.
func (c Config) SMTPTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.SMTP.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid config: smtp.timeout %q is not a positive duration", c.SMTP.Timeout)
	}
	return d, nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// WeeklyDay is the weekday weekly reminders go out on.
func (c Config) WeeklyDay() time.Weekday {
	if d, ok := weekdays[c.Notify.WeeklyDay]; ok {
		return d
	}
	return time.Monday
}

// Logger builds the process logger. verbose forces debug level.
func (c Config) Logger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
