// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testID = "8b2f6e0a-4c1d-4f7e-9a3b-2d5c6e7f8a9b"

func TestCheckConnection(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		id        string
		key       string
		wantValid bool
		want      Reason
	}{
		{"everything missing", "", "", "", false, ReasonNothingConfigured},
		{"url missing with id", "", "x", "", false, ReasonURLMissing},
		{"url missing with key", "", "", "cr_1", false, ReasonURLMissing},
		{"url missing with bad id", "", "not-a-uuid", "", false, ReasonURLMissing},
		{"credentials missing", "https://relay.test", "", "", false, ReasonCredentialsMissing},
		{"bad scheme", "ftp://relay.test", "", "cr_1", false, ReasonInvalidURL},
		{"no scheme", "relay.test", "", "cr_1", false, ReasonInvalidURL},
		{"no host", "https://", "", "cr_1", false, ReasonInvalidURL},
		{"bad id", "https://relay.test", "1234", "", false, ReasonInvalidID},
		{"braced id rejected", "https://relay.test", "{" + testID + "}", "", false, ReasonInvalidID},
		{"key only", "https://relay.test", "", "anything goes", true, ReasonOK},
		{"id only", "http://relay.test:3000", testID, "", true, ReasonOK},
		{"uppercase id", "https://relay.test", "8B2F6E0A-4C1D-4F7E-9A3B-2D5C6E7F8A9B", "", true, ReasonOK},
		{"id and key", "https://relay.test/prefix", testID, "cr_1", true, ReasonOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckConnection(tt.url, tt.id, tt.key)
			assert.Equal(t, tt.wantValid, got.Valid)
			assert.Equal(t, tt.want, got.Reason, "got %s", got.Reason)
			assert.NotEmpty(t, got.Message())
		})
	}
}

func TestCheckConnection_MissingFields(t *testing.T) {
	both := CheckConnection("", "", "")
	assert.Equal(t, []string{"api.url", "api.id|api.key"}, both.Missing)
	assert.Equal(t, "API URL and API ID/Key are both missing", both.Message())

	urlOnly := CheckConnection("", "x", "")
	assert.Equal(t, []string{"api.url"}, urlOnly.Missing)
	assert.Equal(t, "API URL is missing", urlOnly.Message())
}

func TestCheckAPI(t *testing.T) {
	check := CheckAPI(APIConfig{URL: "https://relay.test", Key: "cr_1"})
	assert.True(t, check.Valid)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://relay.test", NormalizeURL(" https://relay.test/api/ "))
	assert.Equal(t, "https://relay.test/prefix", NormalizeURL("https://relay.test/prefix/"))
	assert.Equal(t, "https://relay.test/apix", NormalizeURL("https://relay.test/apix"))
}

func TestSetDefaults_URLMatchesCredentialsFile(t *testing.T) {
	c := &Config{API: APIConfig{URL: "https://relay.test/api"}}
	c.SetDefaults()

	got := Credentials{APIURL: c.API.URL, APIKey: "k"}
	assert.True(t, got.Equal(Credentials{APIURL: NormalizeURL("https://relay.test/api/"), APIKey: "k"}))
	assert.Equal(t, "https://relay.test", c.API.URL)
}
