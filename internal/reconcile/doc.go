// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reconcile keeps relaystat's relay settings in step with an
// external credentials file such as ~/.claude/settings.json.
//
// A Reconciler watches the file (debounced, 300ms by default), reads the
// relay URL and API key from it, and when they differ from the active
// settings asks the user through a Prompter whether to apply them, keep the
// current ones, or open the settings file. Dismissing the prompt turns
// watching off and persists that choice.
//
// Each set of file credentials is asked about at most once per session, so
// saving the same content again does not prompt again.
//
// # Usage
//
//	r := reconcile.New(reconcile.Options{
//	    Path:     path,
//	    Settings: store,
//	    Prompter: prompter,
//	    Refresh:  pipeline.Refresh,
//	})
//	if err := r.Start(ctx); err != nil {
//	    log.Printf("reconcile: %v", err)
//	}
//	defer r.Stop()
package reconcile
