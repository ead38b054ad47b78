// Package config provides configuration loading and defaults for cordpush.
//
// Configuration is loaded from a TOML file in the user's data directory. It
// holds the static knobs that surround a presence: the fallback application
// ID, default image assets and buttons, timer tolerance, refresh interval
// bounds, history exclusions and logging. Per-user mutable state such as the
// last identity and history lists lives in the settings package instead.
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/cordpush/internal/atomicfile"
	"tools.zach/dev/cordpush/internal/migrate"
	"tools.zach/dev/cordpush/internal/paths"
)

// Discord limits enforced by Validate.
const (
	// MaxButtons is the number of buttons Discord renders on a presence card.
	MaxButtons = 2
	// MaxButtonLabel is the longest button label Discord accepts.
	MaxButtonLabel = 32
)

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version used for migrations.
	Version int `toml:"version"`
	// Discord holds IPC connection settings.
	Discord DiscordConfig `toml:"discord"`
	// Presence holds defaults merged into every published activity.
	Presence PresenceConfig `toml:"presence"`
	// Timer holds elapsed-time reconciliation settings.
	Timer TimerConfig `toml:"timer"`
	// Scheduler bounds the auto-refresh interval.
	Scheduler SchedulerConfig `toml:"scheduler"`
	// History holds recent-value cache settings.
	History HistoryConfig `toml:"history"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// DiscordConfig holds IPC connection settings.
type DiscordConfig struct {
	// AppID is the application ID used when no identity has been saved yet.
	AppID string `toml:"app_id"`
	// IPCPath overrides socket discovery with an explicit socket or pipe path.
	IPCPath string `toml:"ipc_path,omitempty"`
	// ConnectTimeoutSeconds bounds the handshake with the Discord client.
	ConnectTimeoutSeconds int `toml:"connect_timeout_seconds"`
}

// PresenceConfig holds activity defaults. Form values win over these.
type PresenceConfig struct {
	LargeImage string `toml:"large_image"`
	LargeText  string `toml:"large_text"`
	SmallImage string `toml:"small_image"`
	SmallText  string `toml:"small_text"`
	// Buttons are appended to every activity (at most two).
	Buttons []ButtonConfig `toml:"buttons,omitempty"`
}

// ButtonConfig is a clickable link shown on the presence card.
type ButtonConfig struct {
	Label string `toml:"label"`
	URL   string `toml:"url"`
}

// TimerConfig holds elapsed-time reconciliation settings.
type TimerConfig struct {
	// EditToleranceSeconds is how far the submitted HH:MM:SS may drift from
	// the running base before it counts as a manual edit.
	EditToleranceSeconds float64 `toml:"edit_tolerance_seconds"`
	// ResetOnDisconnect forgets the reconcile timestamp on disconnect so the
	// next publish starts from the submitted fields.
	ResetOnDisconnect bool `toml:"reset_on_disconnect"`
}

// SchedulerConfig bounds the auto-refresh interval.
type SchedulerConfig struct {
	// DefaultIntervalSeconds seeds update_interval in fresh settings.
	DefaultIntervalSeconds float64 `toml:"default_interval_seconds"`
	// MinIntervalSeconds is the shortest allowed refresh period.
	MinIntervalSeconds float64 `toml:"min_interval_seconds"`
	// MaxIntervalSeconds is the longest allowed refresh period.
	MaxIntervalSeconds float64 `toml:"max_interval_seconds"`
}

// HistoryConfig holds recent-value cache settings.
type HistoryConfig struct {
	// DefaultLimit seeds history_limit in fresh settings.
	DefaultLimit int `toml:"default_limit"`
	// Exclude lists glob patterns; matching values are never recorded.
	Exclude []string `toml:"exclude"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Defaults
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: migrate.Config.CurrentVersion,
		Discord: DiscordConfig{
			ConnectTimeoutSeconds: 5,
		},
		Timer: TimerConfig{
			EditToleranceSeconds: 1,
			ResetOnDisconnect:    false,
		},
		Scheduler: SchedulerConfig{
			DefaultIntervalSeconds: 15,
			MinIntervalSeconds:     15,
			MaxIntervalSeconds:     3600,
		},
		History: HistoryConfig{
			DefaultLimit: 10,
			Exclude:      []string{},
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ExampleConfig returns a Config suitable for generating config.default.toml.
func ExampleConfig() *Config {
	cfg := DefaultConfig()
	cfg.Presence.LargeText = "cordpush"
	return cfg
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

// PeekVersion reads just the version field from raw TOML bytes.
// Returns 1 if the version field is missing, zero or unparseable.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if _, err := toml.Decode(string(data), &v); err != nil || v.Version == 0 {
		return 1
	}
	return v.Version
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads dataDir/config.toml over [DefaultConfig], so absent keys keep
// their defaults. A missing file yields the defaults. Files written by older
// schema versions are backed up, migrated and re-saved.
func Load(dataDir string) (*Config, error) {
	return LoadFile(filepath.Join(dataDir, paths.ConfigFile))
}

// LoadFile is [Load] for an explicit file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	version := PeekVersion(data)
	migrated := migrate.Config.NeedsMigration(version)
	if migrated {
		if err := atomicfile.Backup(path); err != nil {
			slog.Warn("failed to write config backup", "error", err)
		}
		if data, _, err = migrate.Config.Run(data, version); err != nil {
			return nil, fmt.Errorf("migrate config: %w", err)
		}
	}

	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for _, key := range md.Undecoded() {
		slog.Warn("unknown config key ignored", "key", key.String())
	}
	cfg.Version = migrate.Config.CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if migrated {
		if err := cfg.Save(path); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		}
	}
	return cfg, nil
}

// Save writes the config to disk as TOML using atomic file write.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	if c.Discord.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("discord.connect_timeout_seconds must be > 0, got %d", c.Discord.ConnectTimeoutSeconds)
	}

	if c.Timer.EditToleranceSeconds < 0 || math.IsNaN(c.Timer.EditToleranceSeconds) {
		return fmt.Errorf("timer.edit_tolerance_seconds must be >= 0, got %v", c.Timer.EditToleranceSeconds)
	}

	s := c.Scheduler
	if s.MinIntervalSeconds <= 0 {
		return fmt.Errorf("scheduler.min_interval_seconds must be > 0, got %v", s.MinIntervalSeconds)
	}
	if s.MaxIntervalSeconds < s.MinIntervalSeconds {
		return fmt.Errorf("scheduler.max_interval_seconds (%v) must be >= min_interval_seconds (%v)", s.MaxIntervalSeconds, s.MinIntervalSeconds)
	}
	if s.DefaultIntervalSeconds < s.MinIntervalSeconds || s.DefaultIntervalSeconds > s.MaxIntervalSeconds {
		return fmt.Errorf("scheduler.default_interval_seconds %v outside [%v, %v]", s.DefaultIntervalSeconds, s.MinIntervalSeconds, s.MaxIntervalSeconds)
	}

	if c.History.DefaultLimit < 1 {
		return fmt.Errorf("history.default_limit must be >= 1, got %d", c.History.DefaultLimit)
	}
	for _, pattern := range c.History.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid history.exclude pattern %q", pattern)
		}
	}

	if len(c.Presence.Buttons) > MaxButtons {
		return fmt.Errorf("presence.buttons: at most %d buttons allowed, got %d", MaxButtons, len(c.Presence.Buttons))
	}
	for i, b := range c.Presence.Buttons {
		if err := b.validate(); err != nil {
			return fmt.Errorf("presence.buttons[%d]: %w", i, err)
		}
	}
	return nil
}

// validate checks a single button's label and URL.
func (b ButtonConfig) validate() error {
	if strings.TrimSpace(b.Label) == "" {
		return errors.New("label is required")
	}
	if n := utf8.RuneCountInString(b.Label); n > MaxButtonLabel {
		return fmt.Errorf("label is %d characters, max %d", n, MaxButtonLabel)
	}
	u, err := url.Parse(b.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url %q must be an absolute http(s) URL", b.URL)
	}
	return nil
}

// ///////////////////////////////////////////////
// Derived Values
// ///////////////////////////////////////////////

// ClampInterval converts a refresh interval in seconds to a duration bounded
// by the scheduler limits. Non-finite or non-positive input maps to the
// default interval.
func (c *Config) ClampInterval(seconds float64) time.Duration {
	s := c.Scheduler
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		seconds = s.DefaultIntervalSeconds
	}
	seconds = min(max(seconds, s.MinIntervalSeconds), s.MaxIntervalSeconds)
	return time.Duration(seconds * float64(time.Second))
}

// ConnectTimeout returns the handshake timeout as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Discord.ConnectTimeoutSeconds) * time.Second
}
