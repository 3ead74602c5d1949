// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package status

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jeranaias/relaystat/internal/config"
	"github.com/jeranaias/relaystat/internal/relay"
	"github.com/jeranaias/relaystat/internal/util"
)

const (
	// TextConfigure is shown when the connection settings are incomplete.
	TextConfigure = "relaystat: configure"
	// TextError is shown when the last refresh failed.
	TextError = "relaystat: error"
	// TextPending is shown before the first refresh.
	TextPending = "relaystat: …"

	// Percentages at or above these thresholds change the class.
	WarningPercent  = 75.0
	CriticalPercent = 90.0
)

// Class names used for styling and waybar.
const (
	ClassOK       = "ok"
	ClassWarning  = "warning"
	ClassCritical = "critical"
	ClassError    = "error"
	ClassConfig   = "config"
	ClassPending  = "pending"
)

// Options control text rendering.
type Options struct {
	Mode        string
	ShowPercent bool
	Compact     bool
	MaxWidth    int
}

// OptionsFrom builds Options from display settings.
func OptionsFrom(d config.DisplayConfig) Options {
	return Options{
		Mode:        d.Mode,
		ShowPercent: d.ShowPercent,
		Compact:     d.Compact,
		MaxWidth:    d.MaxWidth,
	}
}

var printer = message.NewPrinter(language.English)

// Money formats a dollar amount with grouping, e.g. $1,234.50.
func Money(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

// compactMoney drops cents for whole amounts.
func compactMoney(v float64) string {
	if v == math.Trunc(v) {
		return printer.Sprintf("$%.0f", v)
	}
	return Money(v)
}

// Spend is the used/limit pair selected by a display mode.
type Spend struct {
	Label string
	Used  float64
	Limit float64
}

// HasLimit reports whether a positive limit is set.
func (s Spend) HasLimit() bool {
	return s.Limit > 0
}

// Percent returns Used as a percentage of Limit, or 0 without a limit.
func (s Spend) Percent() float64 {
	if !s.HasLimit() {
		return 0
	}
	return s.Used / s.Limit * 100
}

// SpendFor picks the figures for mode. Unknown modes fall back to daily.
func SpendFor(l relay.Limits, mode string) Spend {
	switch mode {
	case "total":
		return Spend{Label: "Total", Used: l.CurrentTotalCost, Limit: l.TotalCostLimit}
	case "opus":
		return Spend{Label: "Opus (weekly)", Used: l.WeeklyOpusCost, Limit: l.WeeklyOpusCostLimit}
	default:
		return Spend{Label: "Daily", Used: l.CurrentDailyCost, Limit: l.DailyCostLimit}
	}
}

// Text renders the one-line status text for o.
//
// A successful outcome reads "$used/$limit pct%", or just "$used" when the
// selected mode has no limit.
func Text(o Outcome, opts Options) string {
	var s string
	switch o.Kind {
	case KindOK:
		s = spendText(o.Stats, opts)
	case KindInvalidConfig:
		s = TextConfigure
	case KindFailed:
		s = TextError
	default:
		s = TextPending
	}
	return util.TruncateWidth(s, opts.MaxWidth)
}

func spendText(stats *relay.UserStats, opts Options) string {
	if stats == nil {
		return TextError
	}
	spend := SpendFor(stats.Limits, opts.Mode)

	format := Money
	if opts.Compact {
		format = compactMoney
	}

	if !spend.HasLimit() {
		return format(spend.Used)
	}

	s := format(spend.Used) + "/" + format(spend.Limit)
	if opts.ShowPercent {
		s += printer.Sprintf(" %.0f%%", spend.Percent())
	}
	return s
}

// Class returns the style class for o.
func Class(o Outcome, mode string) string {
	switch o.Kind {
	case KindOK:
		if o.Stats == nil {
			return ClassError
		}
		pct := SpendFor(o.Stats.Limits, mode).Percent()
		switch {
		case pct >= CriticalPercent:
			return ClassCritical
		case pct >= WarningPercent:
			return ClassWarning
		default:
			return ClassOK
		}
	case KindInvalidConfig:
		return ClassConfig
	case KindFailed:
		return ClassError
	default:
		return ClassPending
	}
}
