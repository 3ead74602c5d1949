// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/relaystat/internal/config"
)

// Keys searched for the relay URL and API key, in order. Each is looked up
// in the file's "env" table first and then at the top level.
var (
	urlKeys = []string{"ANTHROPIC_BASE_URL", "apiUrl"}
	keyKeys = []string{"ANTHROPIC_AUTH_TOKEN", "ANTHROPIC_API_KEY", "apiKey"}
)

// ReadCredentials reads the URL/key pair from a credentials file. The format
// follows the extension: .yaml/.yml, .toml, anything else is JSON.
//
// ok is false when the file parses but does not carry both values. err is
// set when the file cannot be read or parsed.
func ReadCredentials(path string) (creds config.Credentials, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config.Credentials{}, false, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return config.Credentials{}, false, nil
	}

	doc, err := decode(path, data)
	if err != nil {
		return config.Credentials{}, false, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	creds = Extract(doc)
	return creds, creds.Complete(), nil
}

func decode(path string, data []byte) (map[string]interface{}, error) {
	doc := make(map[string]interface{})
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// Extract pulls credentials out of a decoded settings document.
func Extract(doc map[string]interface{}) config.Credentials {
	sources := make([]map[string]interface{}, 0, 2)
	if env, ok := doc["env"].(map[string]interface{}); ok {
		sources = append(sources, env)
	}
	sources = append(sources, doc)

	return config.Credentials{
		APIURL: config.NormalizeURL(lookup(sources, urlKeys)),
		APIKey: strings.TrimSpace(lookup(sources, keyKeys)),
	}
}

func lookup(sources []map[string]interface{}, keys []string) string {
	for _, src := range sources {
		for _, key := range keys {
			if s, ok := src[key].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}
