// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"encoding/json"
	"time"
)

// keyIDRequest is the body of POST /apiStats/api/get-key-id.
type keyIDRequest struct {
	APIKey string `json:"apiKey"`
}

// userStatsRequest is the body of POST /apiStats/api/user-stats.
type userStatsRequest struct {
	APIID string `json:"apiId"`
}

// envelope wraps every relay response.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// reason returns the best failure text the relay supplied.
func (e envelope) reason() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Error != "" {
		return e.Error
	}
	return "success=false"
}

type keyIDData struct {
	ID string `json:"id"`
}

// UserStats is the data payload of a successful user-stats call.
type UserStats struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsActive  bool   `json:"isActive"`
	ExpiresAt string `json:"expiresAt,omitempty"`

	Usage  Usage  `json:"usage"`
	Limits Limits `json:"limits"`
}

// Usage holds aggregate request counters.
type Usage struct {
	Total UsageTotals `json:"total"`
}

// UsageTotals is the lifetime usage of a key.
type UsageTotals struct {
	Requests      int64   `json:"requests"`
	Tokens        int64   `json:"tokens"`
	InputTokens   int64   `json:"inputTokens,omitempty"`
	OutputTokens  int64   `json:"outputTokens,omitempty"`
	Cost          float64 `json:"cost"`
	FormattedCost string  `json:"formattedCost,omitempty"`
}

// Limits holds cost ceilings and the current spend against them.
// A limit of zero means unlimited.
type Limits struct {
	DailyCostLimit      float64 `json:"dailyCostLimit"`
	TotalCostLimit      float64 `json:"totalCostLimit"`
	WeeklyOpusCostLimit float64 `json:"weeklyOpusCostLimit"`

	CurrentDailyCost float64 `json:"currentDailyCost"`
	CurrentTotalCost float64 `json:"currentTotalCost"`
	WeeklyOpusCost   float64 `json:"weeklyOpusCost"`

	// Rolling rate-limit window, in minutes.
	RateLimitWindow   int     `json:"rateLimitWindow,omitempty"`
	CurrentWindowCost float64 `json:"currentWindowCost,omitempty"`
	// WindowEndTime is a Unix timestamp in milliseconds.
	WindowEndTime int64 `json:"windowEndTime,omitempty"`
}

// WindowEnd returns the end of the rate-limit window, or the zero time.
func (l Limits) WindowEnd() time.Time {
	if l.WindowEndTime <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(l.WindowEndTime)
}

// Expiry parses ExpiresAt. ok is false when it is absent or unparseable.
func (s *UserStats) Expiry() (time.Time, bool) {
	if s.ExpiresAt == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s.ExpiresAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
