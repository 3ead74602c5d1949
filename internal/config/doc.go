// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for relaystat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - Store: Mutex-guarded owner of the active config and its file
//   - ConnectionCheck: Result of the connection settings gate
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (RELAYSTAT_*)
//   - ~/.relaystat/config.toml
//   - ~/.relaystat/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	store, err := config.OpenStore()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Gate a poll:
//
//	if check := config.CheckAPI(store.API()); !check.Valid {
//	    fmt.Println(check.Message())
//	}
package config
