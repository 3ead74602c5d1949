// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the interactive terminal view for relaystat.
//
// The Model shows the current usage line, a progress bar against the
// selected limit, and a markdown details page. Background components reach
// the running program through a Bridge, which turns rendered outcomes and
// reconcile prompts into tea messages.
package ui
