// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package status

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/relaystat/internal/config"
	"github.com/jeranaias/relaystat/internal/relay"
)

func sampleStats() *relay.UserStats {
	return &relay.UserStats{
		Name:     "team-key",
		IsActive: true,
		Usage: relay.Usage{Total: relay.UsageTotals{
			Requests: 1500, Tokens: 12000, Cost: 42.5, FormattedCost: "$42.50",
		}},
		Limits: relay.Limits{
			DailyCostLimit:      5,
			CurrentDailyCost:    1.2,
			TotalCostLimit:      0,
			CurrentTotalCost:    1234.5,
			WeeklyOpusCost:      46,
			WeeklyOpusCostLimit: 50,
		},
	}
}

var defaultOpts = Options{Mode: "daily", ShowPercent: true}

func TestText(t *testing.T) {
	tests := []struct {
		name string
		o    Outcome
		opts Options
		want string
	}{
		{"daily with limit", OK(sampleStats()), defaultOpts, "$1.20/$5.00 24%"},
		{"no percent", OK(sampleStats()), Options{Mode: "daily"}, "$1.20/$5.00"},
		{"total without limit", OK(sampleStats()), Options{Mode: "total", ShowPercent: true}, "$1,234.50"},
		{"opus", OK(sampleStats()), Options{Mode: "opus", ShowPercent: true}, "$46.00/$50.00 92%"},
		{"compact", OK(sampleStats()), Options{Mode: "opus", Compact: true}, "$46/$50"},
		{"unknown mode falls back to daily", OK(sampleStats()), Options{Mode: "x"}, "$1.20/$5.00"},
		{"invalid config", InvalidConfig(config.CheckConnection("", "", "")), defaultOpts, TextConfigure},
		{"failed", Failed(errors.New("boom")), defaultOpts, TextError},
		{"pending", Pending(), defaultOpts, TextPending},
		{"nil stats", OK(nil), defaultOpts, TextError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.o, tt.opts))
		})
	}
}

func TestText_Truncates(t *testing.T) {
	got := Text(OK(sampleStats()), Options{Mode: "daily", ShowPercent: true, MaxWidth: 8})
	assert.Equal(t, "$1.20/$…", got)
}

func TestClass(t *testing.T) {
	stats := sampleStats()
	assert.Equal(t, ClassOK, Class(OK(stats), "daily"))
	assert.Equal(t, ClassCritical, Class(OK(stats), "opus"))
	assert.Equal(t, ClassOK, Class(OK(stats), "total"), "no limit is never critical")

	stats.Limits.CurrentDailyCost = 4
	assert.Equal(t, ClassWarning, Class(OK(stats), "daily"))

	assert.Equal(t, ClassConfig, Class(InvalidConfig(config.ConnectionCheck{}), "daily"))
	assert.Equal(t, ClassError, Class(Failed(errors.New("x")), "daily"))
	assert.Equal(t, ClassPending, Class(Pending(), "daily"))
}

func TestSpend(t *testing.T) {
	s := SpendFor(sampleStats().Limits, "daily")
	assert.True(t, s.HasLimit())
	assert.InDelta(t, 24, s.Percent(), 1e-9)

	none := SpendFor(sampleStats().Limits, "total")
	assert.False(t, none.HasLimit())
	assert.Equal(t, 0.0, none.Percent())
}

func TestMarkdown(t *testing.T) {
	md := Markdown(OK(sampleStats()))
	assert.Contains(t, md, "### team-key")
	assert.Contains(t, md, "| Daily | $1.20 | $5.00 | 24% |")
	assert.Contains(t, md, "| Total | $1,234.50 | unlimited | - |")
	assert.Contains(t, md, "Requests: **1,500**")
	assert.Contains(t, md, "_Updated ")

	md = Markdown(InvalidConfig(config.CheckConnection("", "", "")))
	assert.Contains(t, md, "API URL and API ID/Key are both missing")
	assert.Contains(t, md, "`api.url`")

	md = Markdown(Failed(errors.New("failed to fetch stats (retried 3 times): boom")))
	assert.Contains(t, md, "retried 3 times")
}

func TestMarkdown_Inactive(t *testing.T) {
	s := sampleStats()
	s.IsActive = false
	assert.Contains(t, Markdown(OK(s)), "inactive")
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown(Markdown(OK(sampleStats())), "notty", 60)
	require.NoError(t, err)
	assert.Contains(t, out, "team-key")
}

func TestWaybar(t *testing.T) {
	out := Waybar(OK(sampleStats()), Options{Mode: "opus", ShowPercent: true})
	assert.Equal(t, "$46.00/$50.00 92%", out.Text)
	assert.Equal(t, ClassCritical, out.Class)
	assert.Equal(t, 92, out.Percentage)
	assert.Equal(t, "ok", out.Alt)
	assert.Contains(t, out.Tooltip, "Daily: $1.20 / $5.00")

	data, err := WaybarJSON(Failed(errors.New("dial tcp: refused\nmore")), defaultOpts)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "\n"))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, TextError, decoded["text"])
	assert.Equal(t, "dial tcp: refused", decoded["tooltip"])
	assert.Equal(t, ClassError, decoded["class"])
}

func TestWaybar_PercentageCapped(t *testing.T) {
	s := sampleStats()
	s.Limits.CurrentDailyCost = 12
	assert.Equal(t, 100, Waybar(OK(s), defaultOpts).Percentage)
}

func TestMulti(t *testing.T) {
	var got []Kind
	rec := RendererFunc(func(o Outcome) { got = append(got, o.Kind) })
	Multi{rec, nil, rec}.Render(Failed(errors.New("x")))
	assert.Equal(t, []Kind{KindFailed, KindFailed}, got)
}

func TestStyled(t *testing.T) {
	assert.Contains(t, Styled(OK(sampleStats()), defaultOpts), "$1.20/$5.00 24%")
}
