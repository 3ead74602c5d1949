// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/relaystat/internal/relay"
	"github.com/jeranaias/relaystat/internal/util"
)

// Markdown renders the tooltip/details body for o.
func Markdown(o Outcome) string {
	var b strings.Builder

	switch o.Kind {
	case KindOK:
		writeStats(&b, o.Stats)
	case KindInvalidConfig:
		b.WriteString("### relaystat is not configured\n\n")
		b.WriteString(o.Check.Message())
		b.WriteString(".\n\n")
		if len(o.Check.Missing) > 0 {
			b.WriteString("Missing: ")
			for i, key := range o.Check.Missing {
				if i > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "`%s`", key)
			}
			b.WriteString("\n\n")
		}
		b.WriteString("Run `relaystat config edit` to set `api.url` and `api.key` (or `api.id`).\n")
	case KindFailed:
		b.WriteString("### Failed to fetch usage\n\n")
		if o.Err != nil {
			fmt.Fprintf(&b, "```\n%s\n```\n", o.Err.Error())
		}
	default:
		b.WriteString("### Waiting for the first refresh\n")
	}

	if !o.At.IsZero() && o.Kind != KindPending {
		fmt.Fprintf(&b, "\n_Updated %s_\n", o.At.Format("15:04:05"))
	}
	return b.String()
}

func writeStats(b *strings.Builder, s *relay.UserStats) {
	if s == nil {
		b.WriteString("### No data\n")
		return
	}

	name := s.Name
	if name == "" {
		name = "API key"
	}
	fmt.Fprintf(b, "### %s\n\n", name)
	if !s.IsActive {
		b.WriteString("**Key is inactive.**\n\n")
	}

	b.WriteString("| | Used | Limit | % |\n|---|---:|---:|---:|\n")
	for _, mode := range []string{"daily", "total", "opus"} {
		spend := SpendFor(s.Limits, mode)
		limit, pct := "unlimited", "-"
		if spend.HasLimit() {
			limit = Money(spend.Limit)
			pct = printer.Sprintf("%.0f%%", spend.Percent())
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n", spend.Label, Money(spend.Used), limit, pct)
	}
	b.WriteString("\n")

	total := s.Usage.Total
	b.WriteString(printer.Sprintf("Requests: **%d** · Tokens: **%d**", total.Requests, total.Tokens))
	if total.FormattedCost != "" {
		fmt.Fprintf(b, " · Lifetime cost: **%s**", total.FormattedCost)
	}
	b.WriteString("\n")

	if l := s.Limits; l.RateLimitWindow > 0 {
		fmt.Fprintf(b, "\nWindow (%d min): %s", l.RateLimitWindow, Money(l.CurrentWindowCost))
		if end := l.WindowEnd(); !end.IsZero() {
			fmt.Fprintf(b, ", resets %s", end.Local().Format("15:04"))
		}
		b.WriteString("\n")
	}

	if exp, ok := s.Expiry(); ok {
		fmt.Fprintf(b, "\nExpires %s\n", exp.Local().Format(time.DateOnly))
	}
}

// RenderMarkdown renders md for the terminal with a glamour standard style
// ("dark", "light" or "notty"). A width of zero disables wrapping.
func RenderMarkdown(md, theme string, width int) (string, error) {
	if theme == "" {
		theme = "dark"
	}
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle(theme)}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

// Tooltip is a short plain-text summary for bars that cannot show markdown.
func Tooltip(o Outcome) string {
	switch o.Kind {
	case KindOK:
		if o.Stats == nil {
			return ""
		}
		lines := make([]string, 0, 4)
		if o.Stats.Name != "" {
			lines = append(lines, o.Stats.Name)
		}
		for _, mode := range []string{"daily", "total", "opus"} {
			spend := SpendFor(o.Stats.Limits, mode)
			line := spend.Label + ": " + Money(spend.Used)
			if spend.HasLimit() {
				line += " / " + Money(spend.Limit)
			}
			lines = append(lines, line)
		}
		return strings.Join(lines, "\n")
	case KindInvalidConfig:
		return o.Check.Message()
	case KindFailed:
		if o.Err != nil {
			return util.FirstLine(o.Err.Error())
		}
		return TextError
	default:
		return ""
	}
}
