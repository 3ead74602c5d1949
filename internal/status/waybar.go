// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package status

import (
	"encoding/json"
	"math"
)

// WaybarOutput is the custom-module JSON accepted by waybar.
type WaybarOutput struct {
	Text       string `json:"text"`
	Tooltip    string `json:"tooltip"`
	Class      string `json:"class"`
	Percentage int    `json:"percentage"`
	Alt        string `json:"alt,omitempty"`
}

// Waybar builds the waybar module output for o.
func Waybar(o Outcome, opts Options) WaybarOutput {
	out := WaybarOutput{
		Text:    Text(o, opts),
		Tooltip: Tooltip(o),
		Class:   Class(o, opts.Mode),
		Alt:     o.Kind.String(),
	}
	if o.Kind == KindOK && o.Stats != nil {
		pct := SpendFor(o.Stats.Limits, opts.Mode).Percent()
		out.Percentage = int(math.Round(math.Min(pct, 100)))
	}
	return out
}

// WaybarJSON encodes Waybar(o, opts) as a single line.
func WaybarJSON(o Outcome, opts Options) ([]byte, error) {
	return json.Marshal(Waybar(o, opts))
}
