// Package config loads skydash settings from YAML and resolves defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jaakkos/skydash/internal/jobclient"
)

// GlobalStateDir returns the default state directory (~/.config/skydash).
func GlobalStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".config", "skydash")
}

// GlobalStateFile returns the default history database path.
func GlobalStateFile() string {
	return filepath.Join(GlobalStateDir(), "history.sqlite")
}

// WatchConfig controls the drop directory watcher used by "skydash serve".
type WatchConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`         // default ~/.config/skydash/inbox
	DebounceMS int    `yaml:"debounce_ms"` // default 500
}

// ScheduleConfig re-submits a file on a cron schedule.
type ScheduleConfig struct {
	Cron string `yaml:"cron"` // standard 5-field expression, e.g. "0 2 * * *"
	File string `yaml:"file"`
}

// Config holds skydash configuration.
type Config struct {
	APIBaseURL            string `yaml:"api_base_url"`
	PollIntervalSeconds   int    `yaml:"poll_interval_seconds"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`

	StateFile            string `yaml:"state_file"`
	HistoryRetentionMax  int    `yaml:"history_retention_max"`
	HistoryRetentionDays int    `yaml:"history_retention_days"`
	LogFile              string `yaml:"log_file"`
	ReportDir            string `yaml:"report_dir"`
	ChartsDir            string `yaml:"charts_dir"`

	HTTPPort int             `yaml:"http_port"`
	Watch    *WatchConfig    `yaml:"watch"`
	Schedule *ScheduleConfig `yaml:"schedule"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:            jobclient.DefaultBaseURL,
		PollIntervalSeconds:   2,
		RequestTimeoutSeconds: 30,
		HistoryRetentionMax:   500,
		HistoryRetentionDays:  180,
		HTTPPort:              8765,
	}
}

// LoadConfig loads configuration from a YAML file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Schedule != nil && cfg.Schedule.Cron != "" && cfg.Schedule.File == "" {
		return nil, fmt.Errorf("parse config: schedule.cron set without schedule.file")
	}
	return cfg, nil
}

// Settings wraps a Config with default resolution. The API base URL can be
// overridden at runtime (command-line flag or environment).
type Settings struct {
	config *Config
	mu     sync.RWMutex
}

// New wraps cfg. A nil cfg means DefaultConfig.
func New(cfg *Config) *Settings {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Settings{config: cfg}
}

// APIBaseURL returns the backend API root.
func (s *Settings) APIBaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.config.APIBaseURL == "" {
		return jobclient.DefaultBaseURL
	}
	return s.config.APIBaseURL
}

// SetAPIBaseURL overrides the backend API root. Empty values are ignored.
func (s *Settings) SetAPIBaseURL(u string) {
	if u == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.APIBaseURL = u
}

// PollInterval returns the status poll interval (default 2s).
func (s *Settings) PollInterval() time.Duration {
	if s.config.PollIntervalSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(s.config.PollIntervalSeconds) * time.Second
}

// RequestTimeout returns the per-request timeout. Negative values disable it.
func (s *Settings) RequestTimeout() time.Duration {
	switch {
	case s.config.RequestTimeoutSeconds < 0:
		return 0
	case s.config.RequestTimeoutSeconds == 0:
		return 30 * time.Second
	}
	return time.Duration(s.config.RequestTimeoutSeconds) * time.Second
}

// StateFile returns the history database path.
// Relative paths are resolved against GlobalStateDir.
func (s *Settings) StateFile() string {
	return s.resolve(s.config.StateFile, GlobalStateFile())
}

// LogFile returns the log file path (default ~/.config/skydash/skydash.log).
// "none" or "off" disables file logging.
func (s *Settings) LogFile() string {
	lf := s.config.LogFile
	if lower := strings.ToLower(lf); lower == "none" || lower == "off" {
		return lower
	}
	return s.resolve(lf, filepath.Join(GlobalStateDir(), "skydash.log"))
}

// HistoryRetention returns the history limits: max records and max age in days.
func (s *Settings) HistoryRetention() (maxCount, maxAgeDays int) {
	return s.config.HistoryRetentionMax, s.config.HistoryRetentionDays
}

// ReportDir is where downloaded PDF reports are written (default: current directory).
func (s *Settings) ReportDir() string {
	if s.config.ReportDir == "" {
		return "."
	}
	return s.config.ReportDir
}

// ChartsDir is where chart PNGs are exported. Empty disables export.
func (s *Settings) ChartsDir() string {
	return s.config.ChartsDir
}

// HTTPPort returns the dashboard port. Zero picks a free port.
func (s *Settings) HTTPPort() int {
	return s.config.HTTPPort
}

// Watch returns the drop watcher config with defaults applied, or nil when disabled.
func (s *Settings) Watch() *WatchConfig {
	w := s.config.Watch
	if w == nil || !w.Enabled {
		return nil
	}
	out := *w
	out.Dir = s.resolve(out.Dir, filepath.Join(GlobalStateDir(), "inbox"))
	if out.DebounceMS <= 0 {
		out.DebounceMS = 500
	}
	return &out
}

// Schedule returns the cron schedule, or nil when none is configured.
func (s *Settings) Schedule() *ScheduleConfig {
	sc := s.config.Schedule
	if sc == nil || sc.Cron == "" {
		return nil
	}
	out := *sc
	return &out
}

func (s *Settings) resolve(path, def string) string {
	if path == "" {
		return def
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(GlobalStateDir(), path)
}
