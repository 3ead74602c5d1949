// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// Credentials is the URL/key pair shared between relaystat settings and an
// external credentials file.
type Credentials struct {
	APIURL string
	APIKey string
}

// Complete reports whether both fields are non-empty.
func (c Credentials) Complete() bool {
	return c.APIURL != "" && c.APIKey != ""
}

// Equal compares field by field.
func (c Credentials) Equal(other Credentials) bool {
	return c.APIURL == other.APIURL && c.APIKey == other.APIKey
}

// Change describes which parts of the config differ after a reload.
type Change struct {
	API      bool
	Interval bool
	Watch    bool
	Display  bool
	Poll     bool
}

// Any reports whether anything changed.
func (c Change) Any() bool {
	return c.API || c.Interval || c.Watch || c.Display || c.Poll
}

// Store owns the active configuration and the file it is persisted to.
// It keeps the file's own values apart from the active view so that
// RELAYSTAT_* overrides are never written back to disk.
// All methods are safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	file *Config // as persisted
	cfg  *Config // file plus environment overrides
	path string
}

// NewStore wraps a config as read from path, before environment overrides.
func NewStore(file *Config, path string) *Store {
	if file == nil {
		file = Default()
	}
	file.SetDefaults()
	cfg, err := file.WithEnvOverrides()
	if err != nil {
		cfg = file.Clone()
	}
	return &Store{file: file, cfg: cfg, path: path}
}

// OpenStore loads the config from the default locations.
func OpenStore() (*Store, error) {
	file, path, err := LoadFile()
	if err != nil {
		return nil, err
	}
	return open(file, path)
}

// OpenStoreAt loads the config from an explicit path. A missing file yields
// defaults and is created on the first save.
func OpenStoreAt(path string) (*Store, error) {
	file := Default()
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		if file, err = LoadFileFromPath(path); err != nil {
			return nil, err
		}
	}
	return open(file, path)
}

func open(file *Config, path string) (*Store, error) {
	cfg, err := file.WithEnvOverrides()
	if err != nil {
		return nil, err
	}
	return &Store{file: file, cfg: cfg, path: path}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Snapshot returns a copy of the active config.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// API returns the active connection settings.
func (s *Store) API() APIConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.API
}

// Credentials returns the active URL/key pair.
func (s *Store) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Credentials{APIURL: s.cfg.API.URL, APIKey: s.cfg.API.Key}
}

// WatchEnabled returns the persisted watch flag.
func (s *Store) WatchEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Watch.Enabled
}

// ApplyCredentials writes a new URL/key pair and persists it. The stored ID
// belongs to the previous key, so it is cleared and resolved again on the
// next refresh. On save failure the in-memory config is left unchanged.
func (s *Store) ApplyCredentials(c Credentials) error {
	return s.Update(func(cfg *Config) {
		cfg.API.URL = c.APIURL
		cfg.API.Key = c.APIKey
		cfg.API.ID = ""
	})
}

// SetWatchEnabled persists the watch flag.
func (s *Store) SetWatchEnabled(enabled bool) error {
	return s.Update(func(cfg *Config) {
		cfg.Watch.Enabled = enabled
	})
}

// Update applies fn to a copy of the file config, validates and saves it,
// then rebuilds the active config from it. Environment overrides still win
// in the active view but are not persisted.
func (s *Store) Update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.file.Clone()
	fn(next)
	next.SetDefaults()
	if err := next.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	active, err := next.WithEnvOverrides()
	if err != nil {
		return err
	}
	if err := Save(next, s.path); err != nil {
		return err
	}
	s.file, s.cfg = next, active
	return nil
}

// Reload re-reads the backing file and reports what changed. A missing file
// keeps the current config.
func (s *Store) Reload() (Change, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return Change{}, nil
	}
	file, err := LoadFileFromPath(s.path)
	if err != nil {
		return Change{}, err
	}
	next, err := file.WithEnvOverrides()
	if err != nil {
		return Change{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.cfg
	change := Change{
		API:      prev.API != next.API,
		Interval: prev.RefreshInterval() != next.RefreshInterval(),
		Watch:    prev.Watch != next.Watch,
		Display:  prev.Display != next.Display,
		Poll: prev.Poll.MaxAttempts != next.Poll.MaxAttempts ||
			prev.Poll.InitialDelayMs != next.Poll.InitialDelayMs ||
			prev.Poll.TimeoutSecs != next.Poll.TimeoutSecs,
	}
	s.file, s.cfg = file, next
	return change, nil
}
