// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"github.com/jeranaias/relaystat/internal/config"
	"github.com/jeranaias/relaystat/internal/reconcile"
	"github.com/jeranaias/relaystat/internal/status"
)

// OutcomeMsg carries a refresh outcome.
type OutcomeMsg struct {
	Outcome status.Outcome
}

// PromptMsg opens the reconcile prompt. The answer goes to Reply.
type PromptMsg struct {
	Prompt reconcile.Prompt
	Reply  chan<- reconcile.Choice
}

// PromptCancelledMsg closes an open prompt without an answer.
type PromptCancelledMsg struct{}

// OpenSettingsMsg asks the view to open the config file.
type OpenSettingsMsg struct{}

// ErrorMsg shows an error line.
type ErrorMsg struct {
	Err error
}

// ConfigChangedMsg carries display settings after a config reload.
type ConfigChangedMsg struct {
	Display config.DisplayConfig
	Path    string
}

// ReconcileStateMsg reports the reconciler's state.
type ReconcileStateMsg struct {
	State reconcile.State
}

type activatedMsg struct{ err error }

type refreshDoneMsg struct{ err error }

type editorFinishedMsg struct{ err error }
