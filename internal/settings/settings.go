// Package settings owns the persisted sync configuration: its defaults, its
// on-disk JSON form, and the Store that is the only place it is mutated.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// Defaults for fields missing from data.json.
const (
	DefaultServerURL    = "http://192.168.1.100:8080"
	DefaultPollInterval = 2000
	DefaultEnabled      = true
)

// FileName is the settings file inside the agent's own plugin folder.
const FileName = "data.json"

// ErrInvalidPollInterval is returned when a poll interval is not a positive
// number of milliseconds.
var ErrInvalidPollInterval = errors.New("poll interval must be a positive number of milliseconds")

// Settings is the persisted sync configuration.
type Settings struct {
	ServerURL        string `json:"serverUrl"`
	PollInterval     int    `json:"pollInterval"` // milliseconds
	Enabled          bool   `json:"enabled"`
	SelectedPluginID string `json:"selectedPluginId"`
}

// Defaults returns the settings used when nothing is persisted.
func Defaults() Settings {
	return Settings{
		ServerURL:    DefaultServerURL,
		PollInterval: DefaultPollInterval,
		Enabled:      DefaultEnabled,
	}
}

// Interval returns the poll interval as a duration.
func (s Settings) Interval() time.Duration {
	return time.Duration(s.PollInterval) * time.Millisecond
}

// TimerChanged reports whether moving from s to next affects the poll ticker.
func (s Settings) TimerChanged(next Settings) bool {
	return s.Enabled != next.Enabled || s.PollInterval != next.PollInterval
}

// Validate checks the invariants a saved Settings must hold.
func (s Settings) Validate() error {
	if s.PollInterval <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidPollInterval, s.PollInterval)
	}
	return nil
}

// ParsePollInterval parses a millisecond value typed by the user.
func ParsePollInterval(val string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPollInterval, val)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidPollInterval, n)
	}
	return n, nil
}

// Decode merges a persisted JSON object over the defaults. Fields absent from
// data keep their default; a non-positive pollInterval falls back to the default.
func Decode(data []byte) (Settings, error) {
	s := Defaults()
	if len(strings.TrimSpace(string(data))) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("parse settings: %w", err)
	}
	if s.PollInterval <= 0 {
		s.PollInterval = DefaultPollInterval
	}
	return s, nil
}

// Load reads settings from path. A missing file yields the defaults.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return Defaults(), err
	}
	return Decode(data)
}

// Save writes settings to path using atomic write (temp file + rename) while
// holding an exclusive lock on path+".lock".
func Save(path string, s Settings) error {
	unlock, err := lockFile(path)
	if err != nil {
		return err
	}
	defer unlock()
	return write(path, s)
}

// Modify re-reads path, applies fn and saves the result, all under the
// settings file lock, so concurrent writers never drop each other's fields.
// It returns the saved value. Nothing is written when validation fails.
func Modify(path string, fn func(*Settings)) (Settings, error) {
	unlock, err := lockFile(path)
	if err != nil {
		return Settings{}, err
	}
	defer unlock()

	s, err := Load(path)
	if err != nil {
		return Settings{}, err
	}
	fn(&s)
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	if err := write(path, s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// lockFile creates path's directory and takes the exclusive lock on
// path+".lock".
func lockFile(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock settings: %w", err)
	}
	return func() { lock.Unlock() }, nil
}

func write(path string, s Settings) error {
	dir := filepath.Dir(path)
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "data-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, path)
}

// parseBoolEnv returns nil if env not set, pointer to bool if set.
func parseBoolEnv(envKey string) *bool {
	v := os.Getenv(envKey)
	if v == "" {
		return nil
	}
	v = strings.ToLower(v)
	if v == "1" || v == "true" {
		b := true
		return &b
	}
	if v == "0" || v == "false" {
		b := false
		return &b
	}
	return nil
}

// WithEnv returns s with PLUGSYNC_* environment overrides applied.
// Priority: env > data.json > default. Invalid values are ignored.
func WithEnv(s Settings) Settings {
	if v := os.Getenv("PLUGSYNC_SERVER_URL"); v != "" {
		s.ServerURL = v
	}
	if v := os.Getenv("PLUGSYNC_POLL_INTERVAL"); v != "" {
		if n, err := ParsePollInterval(v); err == nil {
			s.PollInterval = n
		}
	}
	if b := parseBoolEnv("PLUGSYNC_ENABLED"); b != nil {
		s.Enabled = *b
	}
	if v := os.Getenv("PLUGSYNC_PLUGIN"); v != "" {
		s.SelectedPluginID = v
	}
	return s
}
