// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/relaystat/internal/reconcile"
	"github.com/jeranaias/relaystat/internal/status"
)

// ErrNoProgram is returned by Bridge.Prompt before a program is attached.
var ErrNoProgram = errors.New("ui: program not attached")

// Bridge forwards background events into a running tea.Program. It
// implements status.Renderer and reconcile.Prompter.
type Bridge struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

// Attach connects the bridge to a program.
func (b *Bridge) Attach(p *tea.Program) {
	b.SetSend(p.Send)
}

// SetSend sets the message sink directly.
func (b *Bridge) SetSend(send func(tea.Msg)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send = send
}

func (b *Bridge) sender() func(tea.Msg) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.send
}

// Send delivers msg to the program, or drops it when none is attached.
func (b *Bridge) Send(msg tea.Msg) {
	if send := b.sender(); send != nil {
		send(msg)
	}
}

// Render implements status.Renderer.
func (b *Bridge) Render(o status.Outcome) {
	if send := b.sender(); send != nil {
		send(OutcomeMsg{Outcome: o})
	}
}

// Prompt implements reconcile.Prompter. It blocks until the user answers
// in the view or ctx is done.
func (b *Bridge) Prompt(ctx context.Context, p reconcile.Prompt) (reconcile.Choice, error) {
	send := b.sender()
	if send == nil {
		return reconcile.ChoiceKeep, ErrNoProgram
	}

	reply := make(chan reconcile.Choice, 1)
	send(PromptMsg{Prompt: p, Reply: reply})

	select {
	case choice := <-reply:
		return choice, nil
	case <-ctx.Done():
		send(PromptCancelledMsg{})
		return reconcile.ChoiceKeep, ctx.Err()
	}
}

// OpenSettings asks the view to open the config file in the editor. It
// returns once the request is queued.
func (b *Bridge) OpenSettings(ctx context.Context) error {
	send := b.sender()
	if send == nil {
		return ErrNoProgram
	}
	send(OpenSettingsMsg{})
	return nil
}

// Error surfaces err in the view.
func (b *Bridge) Error(err error) {
	if send := b.sender(); send != nil && err != nil {
		send(ErrorMsg{Err: err})
	}
}

// ReconcileState forwards reconciler state changes.
func (b *Bridge) ReconcileState(s reconcile.State) {
	if send := b.sender(); send != nil {
		send(ReconcileStateMsg{State: s})
	}
}
