// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import "github.com/charmbracelet/bubbles/key"

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the keyboard bindings for the status view.
type KeyMap struct {
	Refresh  key.Binding
	Details  key.Binding
	Settings key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Refresh: key.NewBinding(
			key.WithKeys("r", "f5"),
			key.WithHelp("r", "refresh"),
		),
		Details: key.NewBinding(
			key.WithKeys("d", "enter"),
			key.WithHelp("d", "details"),
		),
		Settings: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "settings"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Details, k.Settings, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Refresh, k.Details},
		{k.Settings, k.Help, k.Quit},
	}
}

// PromptKeyMap defines the bindings active while a reconcile prompt is open.
type PromptKeyMap struct {
	Apply    key.Binding
	Keep     key.Binding
	Settings key.Binding
	Dismiss  key.Binding
}

// DefaultPromptKeyMap returns the default prompt bindings.
func DefaultPromptKeyMap() PromptKeyMap {
	return PromptKeyMap{
		Apply: key.NewBinding(
			key.WithKeys("a", "y"),
			key.WithHelp("a", "apply"),
		),
		Keep: key.NewBinding(
			key.WithKeys("k", "n"),
			key.WithHelp("k", "keep current"),
		),
		Settings: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "open settings"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "stop asking"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k PromptKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Apply, k.Keep, k.Settings, k.Dismiss}
}

// FullHelp implements help.KeyMap.
func (k PromptKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
