// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package status

import "github.com/charmbracelet/lipgloss"

// Colors per class.
var (
	colorOK       = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#A6E3A1"}
	colorWarning  = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#F9E2AF"}
	colorCritical = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#F38BA8"}
	colorMuted    = lipgloss.AdaptiveColor{Light: "#6C6F85", Dark: "#9399B2"}
)

// Style returns the lipgloss style for a class name.
func Style(class string) lipgloss.Style {
	base := lipgloss.NewStyle()
	switch class {
	case ClassOK:
		return base.Foreground(colorOK)
	case ClassWarning:
		return base.Foreground(colorWarning).Bold(true)
	case ClassCritical, ClassError:
		return base.Foreground(colorCritical).Bold(true)
	case ClassConfig:
		return base.Foreground(colorWarning).Italic(true)
	default:
		return base.Foreground(colorMuted)
	}
}

// Styled renders the status text of o with its class style.
func Styled(o Outcome, opts Options) string {
	return Style(Class(o, opts.Mode)).Render(Text(o, opts))
}
