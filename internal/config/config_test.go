package config_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"

	"rita/internal/config"
)

func TestNew_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if cfg.Dir != dir {
		t.Errorf("Dir = %q, want %q", cfg.Dir, dir)
	}
	if cfg.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %s, want 5s", cfg.PollInterval)
	}
	if cfg.PollMaxAttempts != 0 || cfg.PollTimeout != 0 {
		t.Errorf("expected no poll ceilings by default, got %d/%s", cfg.PollMaxAttempts, cfg.PollTimeout)
	}
	if cfg.MaxFiles != 5 || cfg.MaxFileSize != 10<<20 {
		t.Errorf("unexpected file limits %d/%d", cfg.MaxFiles, cfg.MaxFileSize)
	}
	if cfg.Journal != "sqlite" {
		t.Errorf("Journal = %q", cfg.Journal)
	}
	if got := cfg.SessionPath(); got != filepath.Join(dir, "session.json") {
		t.Errorf("SessionPath = %q", got)
	}
	if cfg.HasSession() {
		t.Error("HasSession should be false in an empty dir")
	}
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := config.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = cfg.LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"RITA_BASE_URL":          "https://rita.example.com/",
		"RITA_POLL_INTERVAL":     "250ms",
		"RITA_POLL_MAX_ATTEMPTS": "12",
		"RITA_API_TOKEN":         "secret",
	}))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.BaseURL != "https://rita.example.com" {
		t.Errorf("BaseURL = %q, trailing slash should be trimmed", cfg.BaseURL)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %s", cfg.PollInterval)
	}
	if cfg.PollMaxAttempts != 12 {
		t.Errorf("PollMaxAttempts = %d", cfg.PollMaxAttempts)
	}
	if !cfg.Authenticated() {
		t.Error("an API token should count as authenticated")
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"relative url":      {"RITA_BASE_URL": "/api"},
		"zero interval":     {"RITA_POLL_INTERVAL": "0s"},
		"negative attempts": {"RITA_POLL_MAX_ATTEMPTS": "-1"},
		"no workers":        {"RITA_WATCH_CONCURRENCY": "0"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			cfg, err := config.New(t.TempDir())
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			err = cfg.LoadFrom(context.Background(), envconfig.MapLookuper(vars))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), "RITA_") {
				t.Errorf("error should name the variable, got %q", err)
			}
		})
	}
}

func TestInterval_Fallback(t *testing.T) {
	cfg := &config.Config{}
	if cfg.Interval() != config.DefaultPollInterval {
		t.Errorf("Interval() = %s, want default", cfg.Interval())
	}
}
