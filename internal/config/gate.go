// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Reason identifies why a connection check failed.
type Reason int

const (
	// ReasonOK means the settings are usable.
	ReasonOK Reason = iota
	// ReasonNothingConfigured means the URL and both credentials are missing.
	ReasonNothingConfigured
	// ReasonURLMissing means the URL is missing but a credential is present.
	ReasonURLMissing
	// ReasonCredentialsMissing means the URL is set but neither ID nor key is.
	ReasonCredentialsMissing
	// ReasonInvalidURL means the URL is not an http(s) URL.
	ReasonInvalidURL
	// ReasonInvalidID means the ID is not UUID shaped.
	ReasonInvalidID
)

// String returns a short machine-friendly name for the reason.
func (r Reason) String() string {
	switch r {
	case ReasonOK:
		return "ok"
	case ReasonNothingConfigured:
		return "not-configured"
	case ReasonURLMissing:
		return "url-missing"
	case ReasonCredentialsMissing:
		return "credentials-missing"
	case ReasonInvalidURL:
		return "invalid-url"
	case ReasonInvalidID:
		return "invalid-id"
	default:
		return "unknown"
	}
}

// ConnectionCheck is the result of CheckConnection.
type ConnectionCheck struct {
	Valid   bool
	Reason  Reason
	Missing []string // dotted config keys that need a value
}

// Message returns a user-facing description of the check result.
func (c ConnectionCheck) Message() string {
	switch c.Reason {
	case ReasonOK:
		return "configuration is valid"
	case ReasonNothingConfigured:
		return "API URL and API ID/Key are both missing"
	case ReasonURLMissing:
		return "API URL is missing"
	case ReasonCredentialsMissing:
		return "API ID or API Key is missing"
	case ReasonInvalidURL:
		return "API URL must be an http or https URL"
	case ReasonInvalidID:
		return "API ID must be a UUID"
	default:
		return "configuration is invalid"
	}
}

// CheckConnection decides whether the given connection settings can be polled.
// A missing URL is reported ahead of missing credentials. Only the URL and ID
// are format checked; keys are left to the relay to judge.
func CheckConnection(apiURL, apiID, apiKey string) ConnectionCheck {
	apiURL = strings.TrimSpace(apiURL)
	apiID = strings.TrimSpace(apiID)
	apiKey = strings.TrimSpace(apiKey)

	if apiURL == "" {
		if apiID == "" && apiKey == "" {
			return ConnectionCheck{
				Reason:  ReasonNothingConfigured,
				Missing: []string{"api.url", "api.id|api.key"},
			}
		}
		return ConnectionCheck{Reason: ReasonURLMissing, Missing: []string{"api.url"}}
	}

	if apiID == "" && apiKey == "" {
		return ConnectionCheck{Reason: ReasonCredentialsMissing, Missing: []string{"api.id|api.key"}}
	}

	if !isHTTPURL(apiURL) {
		return ConnectionCheck{Reason: ReasonInvalidURL}
	}

	if apiID != "" && !isUUID(apiID) {
		return ConnectionCheck{Reason: ReasonInvalidID}
	}

	return ConnectionCheck{Valid: true, Reason: ReasonOK}
}

// CheckAPI runs CheckConnection on an APIConfig.
func CheckAPI(api APIConfig) ConnectionCheck {
	return CheckConnection(api.URL, api.ID, api.Key)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// isUUID accepts only the canonical 8-4-4-4-12 form; uuid.Parse alone would
// also take braced, URN and unhyphenated variants.
func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// NormalizeURL trims whitespace and trailing slashes and removes a final
// "/api" segment, which clients append to the relay base URL. Settings and
// credentials files both go through it so their URLs compare equal.
func NormalizeURL(u string) string {
	u = strings.TrimRight(strings.TrimSpace(u), "/")
	u = strings.TrimSuffix(u, "/api")
	return strings.TrimRight(u, "/")
}
