// Package config handles the configuration directory, file paths and
// environment overrides.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"rita/internal/logging"
)

const (
	// AppName is the application directory name.
	AppName = "rita"

	// SessionFile stores the backend session cookies.
	SessionFile = "session.json"

	// JournalFile is the local sqlite task journal.
	JournalFile = "journal.db"

	// DefaultPollInterval matches the dashboard's polling period.
	DefaultPollInterval = 5 * time.Second
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// AssumeYes answers yes to confirmation prompts.
	AssumeYes bool

	// Logger receives structured logs. Nil discards.
	Logger *slog.Logger

	BaseURL          string
	APIToken         string
	PollInterval     time.Duration
	PollMaxAttempts  int
	PollTimeout      time.Duration
	MaxFiles         int
	MaxFileSize      int64
	ScrapeModel      string
	Journal          string
	GCSCredentials   string
	WatchConcurrency int
}

// env is the environment overlay. Unset variables keep the defaults below.
type env struct {
	BaseURL          string        `env:"RITA_BASE_URL, default=http://localhost:8000"`
	APIToken         string        `env:"RITA_API_TOKEN"`
	PollInterval     time.Duration `env:"RITA_POLL_INTERVAL, default=5s"`
	PollMaxAttempts  int           `env:"RITA_POLL_MAX_ATTEMPTS, default=0"`
	PollTimeout      time.Duration `env:"RITA_POLL_TIMEOUT, default=0s"`
	MaxFiles         int           `env:"RITA_MAX_FILES, default=5"`
	MaxFileSize      int64         `env:"RITA_MAX_FILE_SIZE, default=10485760"`
	ScrapeModel      string        `env:"RITA_SCRAPE_MODEL, default=gemini-1.5-flash"`
	Journal          string        `env:"RITA_JOURNAL, default=sqlite"`
	GCSCredentials   string        `env:"RITA_GCS_CREDENTIALS"`
	WatchConcurrency int           `env:"RITA_WATCH_CONCURRENCY, default=4"`
}

// New creates a new Config with the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/rita or $HOME/.config/rita.
// Settings start at their defaults; call LoadEnv to apply the environment.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{Dir: dir}
	if err := cfg.load(context.Background(), envconfig.MapLookuper(nil)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv applies RITA_* environment variables.
func (c *Config) LoadEnv(ctx context.Context) error {
	return c.load(ctx, envconfig.OsLookuper())
}

// LoadFrom applies variables from the given lookuper (for testing).
func (c *Config) LoadFrom(ctx context.Context, l envconfig.Lookuper) error {
	return c.load(ctx, l)
}

func (c *Config) load(ctx context.Context, l envconfig.Lookuper) error {
	var in env

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &in,
		Lookuper: l,
	}); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}

	if err := validate(in); err != nil {
		return err
	}

	c.BaseURL = strings.TrimRight(in.BaseURL, "/")
	c.APIToken = in.APIToken
	c.PollInterval = in.PollInterval
	c.PollMaxAttempts = in.PollMaxAttempts
	c.PollTimeout = in.PollTimeout
	c.MaxFiles = in.MaxFiles
	c.MaxFileSize = in.MaxFileSize
	c.ScrapeModel = in.ScrapeModel
	c.Journal = in.Journal
	c.GCSCredentials = in.GCSCredentials
	c.WatchConcurrency = in.WatchConcurrency
	return nil
}

func validate(in env) error {
	u, err := url.Parse(in.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("RITA_BASE_URL must be an absolute http(s) URL, got %q", in.BaseURL)
	}
	if in.PollInterval <= 0 {
		return fmt.Errorf("RITA_POLL_INTERVAL must be positive, got %s", in.PollInterval)
	}
	if in.PollMaxAttempts < 0 {
		return fmt.Errorf("RITA_POLL_MAX_ATTEMPTS must not be negative, got %d", in.PollMaxAttempts)
	}
	if in.PollTimeout < 0 {
		return fmt.Errorf("RITA_POLL_TIMEOUT must not be negative, got %s", in.PollTimeout)
	}
	if in.MaxFiles < 0 || in.MaxFileSize < 0 {
		return fmt.Errorf("RITA_MAX_FILES and RITA_MAX_FILE_SIZE must not be negative")
	}
	if in.WatchConcurrency < 1 {
		return fmt.Errorf("RITA_WATCH_CONCURRENCY must be at least 1, got %d", in.WatchConcurrency)
	}
	return nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// Log returns the configured logger, or one that discards.
func (c *Config) Log() *slog.Logger {
	if c.Logger == nil {
		return logging.Discard()
	}
	return c.Logger
}

// Interval returns the poll interval, falling back to the default.
func (c *Config) Interval() time.Duration {
	if c.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return c.PollInterval
}

// SessionPath returns the path to the stored session cookies.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Dir, SessionFile)
}

// JournalPath returns the path to the sqlite task journal.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Dir, JournalFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasSession checks if the session file exists.
func (c *Config) HasSession() bool {
	_, err := os.Stat(c.SessionPath())
	return err == nil
}

// RemoveSession deletes the session file.
func (c *Config) RemoveSession() error {
	return os.Remove(c.SessionPath())
}

// Authenticated reports whether a session or an API token is available.
func (c *Config) Authenticated() bool {
	return c.APIToken != "" || c.HasSession()
}
