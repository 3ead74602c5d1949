// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across relaystat.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//
// String Utilities:
//   - TruncateWidth: Column-aware truncation with ellipsis
//   - StringWidth: Display width of a string
//   - FirstLine: First line of a multi-line message
//
// # Usage
//
//	// Persist settings without exposing a half-written file
//	err := util.AtomicWriteFile(path, data, 0600)
//
//	// Fit a status line into a bar segment
//	text := util.TruncateWidth(line, 24)
package util
