// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package status turns refresh outcomes into status-bar text, tooltips and
// waybar JSON.
package status

import (
	"time"

	"github.com/jeranaias/relaystat/internal/config"
	"github.com/jeranaias/relaystat/internal/relay"
)

// Kind classifies an Outcome.
type Kind int

const (
	// KindOK carries stats.
	KindOK Kind = iota
	// KindInvalidConfig means the connection settings failed the gate.
	KindInvalidConfig
	// KindFailed means resolution or fetching failed.
	KindFailed
	// KindPending is shown before the first refresh completes.
	KindPending
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindInvalidConfig:
		return "invalid-config"
	case KindFailed:
		return "failed"
	case KindPending:
		return "pending"
	default:
		return "unknown"
	}
}

// Outcome is the result of one refresh. It is handed to a Renderer and not
// retained by the refresh pipeline.
type Outcome struct {
	Kind  Kind
	Stats *relay.UserStats
	Check config.ConnectionCheck
	Err   error
	At    time.Time
}

// OK builds a successful outcome.
func OK(stats *relay.UserStats) Outcome {
	return Outcome{Kind: KindOK, Stats: stats, At: time.Now()}
}

// InvalidConfig builds an outcome for settings that failed the gate.
func InvalidConfig(check config.ConnectionCheck) Outcome {
	return Outcome{Kind: KindInvalidConfig, Check: check, At: time.Now()}
}

// Failed builds an outcome for a failed refresh.
func Failed(err error) Outcome {
	return Outcome{Kind: KindFailed, Err: err, At: time.Now()}
}

// Pending is the outcome shown before anything has been fetched.
func Pending() Outcome {
	return Outcome{Kind: KindPending, At: time.Now()}
}

// Renderer receives outcomes.
type Renderer interface {
	Render(Outcome)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Outcome)

// Render calls f.
func (f RendererFunc) Render(o Outcome) { f(o) }

// Multi fans an outcome out to several renderers in order.
type Multi []Renderer

// Render calls every renderer.
func (m Multi) Render(o Outcome) {
	for _, r := range m {
		if r != nil {
			r.Render(o)
		}
	}
}
