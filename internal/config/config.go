// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for relaystat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.relaystat/config.toml
//   - ~/.relaystat/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/relaystat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete relaystat configuration.
type Config struct {
	// Version of the config layout
	Version string `toml:"version" json:"version"`

	// Relay connection settings
	API APIConfig `toml:"api" json:"api"`

	// Polling and retry settings
	Poll PollConfig `toml:"poll" json:"poll"`

	// Credentials file watch settings
	Watch WatchConfig `toml:"watch" json:"watch"`

	// Status bar display settings
	Display DisplayConfig `toml:"display" json:"display"`

	// Log output settings
	Log LogConfig `toml:"log" json:"log"`
}

// APIConfig contains the relay connection settings.
type APIConfig struct {
	// URL is the relay base URL (scheme + host, optional path prefix)
	URL string `toml:"url" json:"url"`
	// ID is the relay-side key identifier (UUID). Resolved from Key when empty.
	ID string `toml:"id" json:"id"`
	// Key is the relay API key
	Key string `toml:"key" json:"key"`
}

// PollConfig contains polling and retry configuration.
type PollConfig struct {
	// RefreshIntervalSecs is the time between scheduled refreshes (floor 10)
	RefreshIntervalSecs int `toml:"refresh_interval_secs" json:"refresh_interval_secs"`
	// MaxAttempts is the number of stats requests per refresh before giving up
	MaxAttempts int `toml:"max_attempts" json:"max_attempts"`
	// InitialDelayMs is the first backoff delay; it doubles after every failure
	InitialDelayMs int `toml:"initial_delay_ms" json:"initial_delay_ms"`
	// TimeoutSecs is the per-request timeout
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// WatchConfig contains credentials file watch configuration.
type WatchConfig struct {
	// Enabled turns the credentials file reconciler on
	Enabled bool `toml:"enabled" json:"enabled"`
	// CredentialsPath is the watched credentials file ("~" is expanded)
	CredentialsPath string `toml:"credentials_path" json:"credentials_path"`
	// DebounceMs is the quiet period before a change is checked
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms"`
}

// DisplayConfig contains status bar display configuration.
type DisplayConfig struct {
	// Mode selects which cost/limit pair is shown: "daily", "total", "opus"
	Mode string `toml:"mode" json:"mode"`
	// ShowPercent appends the used percentage when a limit is set
	ShowPercent bool `toml:"show_percent" json:"show_percent"`
	// Compact drops the cents from whole-dollar amounts
	Compact bool `toml:"compact" json:"compact"`
	// MaxWidth truncates the status text (0 = unlimited)
	MaxWidth int `toml:"max_width" json:"max_width"`
	// Theme is the details theme: "dark", "light", "notty"
	Theme string `toml:"theme" json:"theme"`
}

// LogConfig contains log output configuration.
type LogConfig struct {
	// Path is the log file used in interactive mode (empty = ~/.relaystat/relaystat.log)
	Path string `toml:"path" json:"path"`
}

// Polling limits.
const (
	DefaultRefreshIntervalSecs = 60
	MinRefreshIntervalSecs     = 10
	DefaultMaxAttempts         = 3
	DefaultInitialDelayMs      = 1000
	DefaultTimeoutSecs         = 10
	DefaultDebounceMs          = 300
)

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1",

		Poll: PollConfig{
			RefreshIntervalSecs: DefaultRefreshIntervalSecs,
			MaxAttempts:         DefaultMaxAttempts,
			InitialDelayMs:      DefaultInitialDelayMs,
			TimeoutSecs:         DefaultTimeoutSecs,
		},

		Watch: WatchConfig{
			Enabled:         true,
			CredentialsPath: filepath.Join("~", ".claude", "settings.json"),
			DebounceMs:      DefaultDebounceMs,
		},

		Display: DisplayConfig{
			Mode:        "daily",
			ShowPercent: true,
			Theme:       "dark",
		},
	}
}

// RefreshInterval returns the refresh interval with the 10 second floor applied.
func (c *Config) RefreshInterval() time.Duration {
	secs := c.Poll.RefreshIntervalSecs
	if secs <= 0 {
		secs = DefaultRefreshIntervalSecs
	}
	if secs < MinRefreshIntervalSecs {
		secs = MinRefreshIntervalSecs
	}
	return time.Duration(secs) * time.Second
}

// InitialDelay returns the first retry backoff delay.
func (c *Config) InitialDelay() time.Duration {
	return time.Duration(c.Poll.InitialDelayMs) * time.Millisecond
}

// Timeout returns the per-request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Poll.TimeoutSecs) * time.Second
}

// Debounce returns the credentials watch debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the relaystat configuration directory path.
func Dir() (string, error) {
	if dir := os.Getenv("RELAYSTAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".relaystat"), nil
}

// PathTOML returns the path to the TOML config file.
func PathTOML() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// PathJSON returns the path to the JSON config file.
func PathJSON() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DefaultLogPath returns the interactive-mode log file path.
func DefaultLogPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "relaystat.log"), nil
}

// ExpandPath expands a leading "~" to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// ensureSecurePermissions tightens a config file to 0600 since it holds an API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode().Perm()&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix permissions: %w", err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default locations.
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
// The returned path is the file the config came from, or the TOML path when
// no file exists yet (so a later Save creates it).
func Load() (*Config, string, error) {
	file, path, err := LoadFile()
	if err != nil {
		return nil, "", err
	}
	cfg, err := file.WithEnvOverrides()
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// LoadFile is Load without environment overrides: the config exactly as the
// settings file describes it, with defaults filled in.
func LoadFile() (*Config, string, error) {
	path, exists, err := locate()
	if err != nil {
		return nil, "", err
	}
	if !exists {
		return Default(), path, nil
	}
	cfg, err := LoadFileFromPath(path)
	return cfg, path, err
}

// locate returns the TOML file if present, else the JSON file if present,
// else the TOML path with exists=false.
func locate() (path string, exists bool, err error) {
	tomlPath, err := PathTOML()
	if err != nil {
		return "", false, err
	}
	if _, statErr := os.Stat(tomlPath); statErr == nil {
		return tomlPath, true, nil
	}
	if jsonPath, err := PathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return jsonPath, true, nil
		}
	}
	return tomlPath, false, nil
}

// LoadTOML loads configuration from a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation and environment overrides applied.
func LoadFromPath(path string) (*Config, error) {
	file, err := LoadFileFromPath(path)
	if err != nil {
		return nil, err
	}
	return file.WithEnvOverrides()
}

// LoadFileFromPath loads and validates the file at path without
// environment overrides. Keys missing from the file keep their defaults.
func LoadFileFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to path, choosing the format by extension.
func Save(cfg *Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		return SaveJSON(cfg, path)
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# relaystat configuration file\n")
	b.WriteString("# Generated by relaystat - edit with care\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks structural correctness of the configuration.
// Connection settings (URL, ID, key) are checked separately by CheckConnection,
// because a missing URL is a prompt for the user, not a broken file.
func (c *Config) Validate() error {
	var errs ValidateErrors

	validModes := map[string]bool{"daily": true, "total": true, "opus": true}
	if !validModes[strings.ToLower(c.Display.Mode)] {
		errs = append(errs, ValidationError{
			Field:   "display.mode",
			Message: fmt.Sprintf("invalid mode '%s', must be one of: daily, total, opus", c.Display.Mode),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "notty": true}
	if !validThemes[strings.ToLower(c.Display.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "display.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, notty", c.Display.Theme),
		})
	}

	if c.Display.MaxWidth < 0 {
		errs = append(errs, ValidationError{
			Field:   "display.max_width",
			Message: "cannot be negative",
		})
	}

	if c.Poll.MaxAttempts < 1 || c.Poll.MaxAttempts > 10 {
		errs = append(errs, ValidationError{
			Field:   "poll.max_attempts",
			Message: fmt.Sprintf("must be between 1 and 10, got %d", c.Poll.MaxAttempts),
		})
	}

	if c.Poll.InitialDelayMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "poll.initial_delay_ms",
			Message: "cannot be negative",
		})
	}

	if c.Poll.TimeoutSecs < 1 {
		errs = append(errs, ValidationError{
			Field:   "poll.timeout_secs",
			Message: fmt.Sprintf("must be at least 1 second, got %d", c.Poll.TimeoutSecs),
		})
	}

	if c.Watch.DebounceMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "watch.debounce_ms",
			Message: "cannot be negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values and clamps the refresh interval to its floor.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}

	if c.Poll.RefreshIntervalSecs <= 0 {
		c.Poll.RefreshIntervalSecs = defaults.Poll.RefreshIntervalSecs
	}
	if c.Poll.RefreshIntervalSecs < MinRefreshIntervalSecs {
		c.Poll.RefreshIntervalSecs = MinRefreshIntervalSecs
	}
	if c.Poll.MaxAttempts == 0 {
		c.Poll.MaxAttempts = defaults.Poll.MaxAttempts
	}
	if c.Poll.InitialDelayMs == 0 {
		c.Poll.InitialDelayMs = defaults.Poll.InitialDelayMs
	}
	if c.Poll.TimeoutSecs == 0 {
		c.Poll.TimeoutSecs = defaults.Poll.TimeoutSecs
	}

	if c.Watch.CredentialsPath == "" {
		c.Watch.CredentialsPath = defaults.Watch.CredentialsPath
	}
	if c.Watch.DebounceMs == 0 {
		c.Watch.DebounceMs = defaults.Watch.DebounceMs
	}

	if c.Display.Mode == "" {
		c.Display.Mode = defaults.Display.Mode
	}
	c.Display.Mode = strings.ToLower(c.Display.Mode)
	if c.Display.Theme == "" {
		c.Display.Theme = defaults.Display.Theme
	}
	c.Display.Theme = strings.ToLower(c.Display.Theme)

	c.API.URL = NormalizeURL(c.API.URL)
	c.API.ID = strings.TrimSpace(c.API.ID)
	c.API.Key = strings.TrimSpace(c.API.Key)
}

// WithEnvOverrides returns a copy of c with RELAYSTAT_* environment
// variables applied. c itself, which is what gets saved, is not touched.
func (c *Config) WithEnvOverrides() (*Config, error) {
	out := c.Clone()
	out.ApplyEnvOverrides()
	out.SetDefaults()
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config from environment: %w", err)
	}
	return out, nil
}

// ApplyEnvOverrides applies RELAYSTAT_* environment variables in place.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RELAYSTAT_API_URL"); v != "" {
		c.API.URL = v
	}
	if v := os.Getenv("RELAYSTAT_API_ID"); v != "" {
		c.API.ID = v
	}
	if v := os.Getenv("RELAYSTAT_API_KEY"); v != "" {
		c.API.Key = v
	}
	if v := os.Getenv("RELAYSTAT_REFRESH_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Poll.RefreshIntervalSecs = secs
		}
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "poll.max_attempts").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "display.mode").
// String values are converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}

		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}

	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(part[1:])
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an arbitrary value, parsing strings as needed.
func setFieldValue(field reflect.Value, value interface{}) error {
	if s, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(s)
			return nil
		case reflect.Bool:
			b, err := strconv.ParseBool(s)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %s", s)
			}
			field.SetBool(b)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %s", s)
			}
			field.SetInt(n)
			return nil
		}
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	val := reflect.ValueOf(value)
	if !val.Type().ConvertibleTo(field.Type()) {
		return fmt.Errorf("cannot assign %T to %s", value, field.Type())
	}
	field.Set(val.Convert(field.Type()))
	return nil
}

// GetAllKeys returns every settable dotted key.
func GetAllKeys() []string {
	return []string{
		"version",
		"api.url",
		"api.id",
		"api.key",
		"poll.refresh_interval_secs",
		"poll.max_attempts",
		"poll.initial_delay_ms",
		"poll.timeout_secs",
		"watch.enabled",
		"watch.credentials_path",
		"watch.debounce_ms",
		"display.mode",
		"display.show_percent",
		"display.compact",
		"display.max_width",
		"display.theme",
		"log.path",
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a JSON representation with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.API.Key != "" {
		safe.API.Key = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
