// Package config handles TOML-based configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration.
type Config struct {
	Player       string `toml:"player"` // mpv binary name or path
	SubsLanguage string `toml:"subs_language"`

	// Minimum lead of downloaded pieces over the playback head, in percent
	// of the whole stream, before a buffering pause is released.
	MinimumMovieBuffering float64 `toml:"minimum_movie_buffering"`
	MinimumShowBuffering  float64 `toml:"minimum_show_buffering"`

	FeedInterval Duration `toml:"feed_interval"`
	Volume       int      `toml:"volume"`
	History      bool     `toml:"history"`
	Debug        bool     `toml:"debug"`
}

// Duration wraps time.Duration so it can be written as "2s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Player:                "mpv",
		SubsLanguage:          "english",
		MinimumMovieBuffering: 3,
		MinimumShowBuffering:  5,
		FeedInterval:          Duration{time.Second},
		Volume:                100,
		History:               true,
		Debug:                 false,
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "popcorn"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "popcorn"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file and merges with defaults.
// If the config file doesn't exist, defaults are returned.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	// Playback control needs mpv's JSON IPC, so only mpv builds qualify.
	if !strings.HasPrefix(strings.ToLower(filepath.Base(c.Player)), "mpv") {
		return fmt.Errorf("unsupported player %q (must be an mpv binary)", c.Player)
	}

	if c.MinimumMovieBuffering <= 0 || c.MinimumMovieBuffering > 100 {
		return fmt.Errorf("minimum_movie_buffering must be in (0, 100], got %g", c.MinimumMovieBuffering)
	}
	if c.MinimumShowBuffering <= 0 || c.MinimumShowBuffering > 100 {
		return fmt.Errorf("minimum_show_buffering must be in (0, 100], got %g", c.MinimumShowBuffering)
	}

	if c.FeedInterval.Duration < 100*time.Millisecond {
		return fmt.Errorf("feed_interval must be at least 100ms, got %s", c.FeedInterval.Duration)
	}

	if c.Volume < 0 || c.Volume > 100 {
		return fmt.Errorf("volume must be in [0, 100], got %d", c.Volume)
	}

	return nil
}

// HistoryPath returns the path to the history database.
func HistoryPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "popcorn", "history.db"), nil
}
