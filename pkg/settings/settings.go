// Package settings manages persistent user settings for the netcfg CLI.
// Command-line flags always take precedence over these values.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// Settings holds persistent user preferences
type Settings struct {
	// IntentDir is the default directory of intent files
	IntentDir string `json:"intent_dir,omitempty"`

	// Concurrency bounds simultaneous device sessions (0 = default)
	Concurrency int `json:"concurrency,omitempty"`

	ConnectTimeout string `json:"connect_timeout,omitempty"`
	CommandTimeout string `json:"command_timeout,omitempty"`
	MaxAttempts    int    `json:"max_attempts,omitempty"`

	// RedisAddr enables the shared lock and applied-hash store
	RedisAddr string `json:"redis_addr,omitempty"`
	RedisDB   int    `json:"redis_db,omitempty"`

	AuditLog       string `json:"audit_log,omitempty"`
	KnownHostsFile string `json:"known_hosts,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "netcfg_settings.json"
	}
	return filepath.Join(home, ".netcfg", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from path. A missing file yields empty settings.
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to path
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}

// GetAuditLog returns the audit log path (with fallback)
func (s *Settings) GetAuditLog() string {
	if s.AuditLog != "" {
		return s.AuditLog
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "netcfg-audit.log"
	}
	return filepath.Join(home, ".netcfg", "audit.log")
}

// GetConnectTimeout parses ConnectTimeout; zero means the default
func (s *Settings) GetConnectTimeout() time.Duration {
	d, _ := time.ParseDuration(s.ConnectTimeout)
	return d
}

// GetCommandTimeout parses CommandTimeout; zero means the default
func (s *Settings) GetCommandTimeout() time.Duration {
	d, _ := time.ParseDuration(s.CommandTimeout)
	return d
}

// field binds a settings key to its accessors
type field struct {
	get func(s *Settings) string
	set func(s *Settings, v string) error
}

func stringField(p func(s *Settings) *string) field {
	return field{
		get: func(s *Settings) string { return *p(s) },
		set: func(s *Settings, v string) error { *p(s) = v; return nil },
	}
}

func intField(p func(s *Settings) *int, min int) field {
	return field{
		get: func(s *Settings) string {
			if *p(s) == 0 {
				return ""
			}
			return strconv.Itoa(*p(s))
		},
		set: func(s *Settings, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < min {
				return fmt.Errorf("want an integer >= %d, got %q", min, v)
			}
			*p(s) = n
			return nil
		},
	}
}

func durationField(p func(s *Settings) *string) field {
	return field{
		get: func(s *Settings) string { return *p(s) },
		set: func(s *Settings, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return fmt.Errorf("want a positive duration such as 30s, got %q", v)
			}
			*p(s) = v
			return nil
		},
	}
}

var fields = map[string]field{
	"intent_dir":      stringField(func(s *Settings) *string { return &s.IntentDir }),
	"concurrency":     intField(func(s *Settings) *int { return &s.Concurrency }, 1),
	"connect_timeout": durationField(func(s *Settings) *string { return &s.ConnectTimeout }),
	"command_timeout": durationField(func(s *Settings) *string { return &s.CommandTimeout }),
	"max_attempts":    intField(func(s *Settings) *int { return &s.MaxAttempts }, 1),
	"redis_addr":      stringField(func(s *Settings) *string { return &s.RedisAddr }),
	"redis_db":        intField(func(s *Settings) *int { return &s.RedisDB }, 0),
	"audit_log":       stringField(func(s *Settings) *string { return &s.AuditLog }),
	"known_hosts":     stringField(func(s *Settings) *string { return &s.KnownHostsFile }),
}

// Keys lists the setting names accepted by Get and Set, sorted
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns a setting by name ("" when unset)
func (s *Settings) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown setting: %s (valid: %v)", key, Keys())
	}
	return f.get(s), nil
}

// Set assigns a setting by name after checking the value
func (s *Settings) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown setting: %s (valid: %v)", key, Keys())
	}
	if err := f.set(s, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
