// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the relaystat command line: argument parsing,
// the headless commands (watch, once, details, check, config, reconcile)
// and the terminal helpers they share.
package cli
