// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/relaystat/internal/config"
	"github.com/jeranaias/relaystat/internal/reconcile"
	"github.com/jeranaias/relaystat/internal/refresh"
)

const testID = "8b2f6e0a-4c1d-4f7e-9a3b-2d5c6e7f8a9b"

// =============================================================================
// TEST HELPERS
// =============================================================================

// newRelay serves a relay with daily limit $5.00 and $1.20 spent.
func newRelay(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/apiStats/api/get-key-id":
			w.Write([]byte(`{"success": true, "data": {"id": "` + testID + `"}}`))
		case "/apiStats/api/user-stats":
			w.Write([]byte(`{"success": true, "data": {"name": "ci-key", "isActive": true,
				"usage": {"total": {"requests": 42, "tokens": 1000, "cost": 7.5}},
				"limits": {"dailyCostLimit": 5, "currentDailyCost": 1.2,
				           "totalCostLimit": 100, "currentTotalCost": 7.5}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// writeConfig saves cfg under a temp dir and returns Args pointing at it.
func writeConfig(t *testing.T, mutate func(*config.Config)) Args {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Watch.CredentialsPath = filepath.Join(dir, "settings.json")
	cfg.Poll.MaxAttempts = 1
	if mutate != nil {
		mutate(cfg)
	}
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, config.Save(cfg, path))
	return Args{ConfigPath: path}
}

func writeCredentials(t *testing.T, args Args, url, key string) string {
	t.Helper()
	store, err := OpenStore(args)
	require.NoError(t, err)
	path := store.Snapshot().Watch.CredentialsPath
	body := `{"env": {"ANTHROPIC_BASE_URL": "` + url + `/api", "ANTHROPIC_AUTH_TOKEN": "` + key + `"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// =============================================================================
// PARSE TESTS
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		want    Command
		wantErr bool
		check   func(*testing.T, Args)
	}{
		{name: "no args", argv: nil, want: CmdTUI},
		{name: "tui", argv: []string{"tui"}, want: CmdTUI},
		{name: "global flag only", argv: []string{"--config", "/tmp/c.toml"}, want: CmdTUI,
			check: func(t *testing.T, a Args) { assert.Equal(t, "/tmp/c.toml", a.ConfigPath) }},
		{name: "watch waybar", argv: []string{"watch", "--waybar"}, want: CmdWatch,
			check: func(t *testing.T, a Args) { assert.True(t, a.Waybar) }},
		{name: "once json", argv: []string{"once", "--json"}, want: CmdOnce,
			check: func(t *testing.T, a Args) { assert.True(t, a.JSON) }},
		{name: "status alias", argv: []string{"s"}, want: CmdOnce},
		{name: "json and waybar", argv: []string{"once", "--json", "--waybar"}, want: CmdOnce, wantErr: true},
		{name: "details", argv: []string{"details"}, want: CmdDetails},
		{name: "check", argv: []string{"check"}, want: CmdCheck},
		{name: "config defaults to show", argv: []string{"config"}, want: CmdConfig,
			check: func(t *testing.T, a Args) { assert.Equal(t, "show", a.Subcommand) }},
		{name: "config set", argv: []string{"config", "set", "display.mode", "total"}, want: CmdConfig,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "set", a.Subcommand)
				assert.Equal(t, "display.mode", a.ConfigKey)
				assert.Equal(t, "total", a.ConfigVal)
			}},
		{name: "flag before command", argv: []string{"--json", "config", "show"}, want: CmdConfig,
			check: func(t *testing.T, a Args) {
				assert.True(t, a.JSON)
				assert.Equal(t, "show", a.Subcommand)
			}},
		{name: "reconcile", argv: []string{"reconcile"}, want: CmdReconcile},
		{name: "version", argv: []string{"version"}, want: CmdVersion},
		{name: "help flag", argv: []string{"once", "--help"}, want: CmdHelp},
		{name: "verbose short", argv: []string{"-v", "once"}, want: CmdOnce,
			check: func(t *testing.T, a Args) { assert.True(t, a.Verbose) }},
		{name: "unknown", argv: []string{"frobnicate"}, want: CmdHelp, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, err := Parse(tt.argv)
			assert.Equal(t, tt.want, cmd, "got %s", cmd)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestArgParser(t *testing.T) {
	p := NewArgParser([]string{"set", "--config=/x.toml", "poll.refresh_interval_secs", "-n", "5", "--json", "--", "--literal"})

	assert.Equal(t, "set", p.Subcommand())
	assert.Equal(t, "/x.toml", p.Flag("config"))
	assert.Equal(t, "5", p.Flag("-n"))
	assert.True(t, p.BoolFlag("json"))
	assert.True(t, p.HasFlag("--config"))
	assert.False(t, p.HasFlag("missing"))
	assert.Equal(t, "fallback", p.FlagOrDefault("missing", "fallback"))
	assert.Equal(t, []string{"set", "poll.refresh_interval_secs", "--literal"}, p.PositionalFrom(0))
	assert.Equal(t, 3, p.PositionalCount())
	assert.Equal(t, "", p.Positional(7))
	assert.Empty(t, p.PositionalFrom(9))
}

func TestArgParser_BoolFlagDoesNotSwallowValue(t *testing.T) {
	p := NewArgParser([]string{"--json", "show"})
	assert.True(t, p.BoolFlag("json"))
	assert.Equal(t, "show", p.Subcommand())

	p = NewArgParser([]string{"--json=false"})
	assert.False(t, p.BoolFlag("json"))
	assert.True(t, p.HasFlag("json"))
}

// =============================================================================
// PROMPT TESTS
// =============================================================================

func TestParseChoice(t *testing.T) {
	tests := []struct {
		input string
		want  reconcile.Choice
		ok    bool
	}{
		{"a", reconcile.ChoiceApply, true},
		{" Yes ", reconcile.ChoiceApply, true},
		{"", reconcile.ChoiceKeep, true},
		{"n", reconcile.ChoiceKeep, true},
		{"s", reconcile.ChoiceOpenSettings, true},
		{"never", reconcile.ChoiceDismissed, true},
		{"maybe", reconcile.ChoiceKeep, false},
	}
	for _, tt := range tests {
		got, ok := ParseChoice(tt.input)
		assert.Equal(t, tt.ok, ok, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestLinePrompter(t *testing.T) {
	var out bytes.Buffer
	inputs := []string{"what", "a"}
	p := &LinePrompter{out: &out, readLine: func(string) (string, error) {
		in := inputs[0]
		inputs = inputs[1:]
		return in, nil
	}}

	choice, err := p.Prompt(context.Background(), reconcile.Prompt{
		Path:    "/home/u/.claude/settings.json",
		File:    config.Credentials{APIURL: "https://new.test", APIKey: "cr_0123456789abcdef"},
		Current: config.Credentials{APIURL: "https://old.test", APIKey: "cr_fedcba9876543210"},
	})
	require.NoError(t, err)
	assert.Equal(t, reconcile.ChoiceApply, choice)

	text := out.String()
	assert.Contains(t, text, "https://new.test")
	assert.Contains(t, text, "please answer")
	assert.NotContains(t, text, "cr_0123456789abcdef")
	assert.Contains(t, text, "cr_0…cdef")
}

func TestLinePrompter_Aborted(t *testing.T) {
	p := &LinePrompter{out: io.Discard, readLine: func(string) (string, error) {
		return "", liner.ErrPromptAborted
	}}
	choice, err := p.Prompt(context.Background(), reconcile.Prompt{})
	assert.ErrorIs(t, err, liner.ErrPromptAborted)
	assert.Equal(t, reconcile.ChoiceKeep, choice)
}

func TestLinePrompter_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	p := &LinePrompter{out: io.Discard, readLine: func(string) (string, error) {
		<-block
		return "a", nil
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	choice, err := p.Prompt(ctx, reconcile.Prompt{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, reconcile.ChoiceKeep, choice)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "(none)", MaskKey(""))
	assert.Equal(t, "****", MaskKey("short"))
	assert.Equal(t, "cr_a…wxyz", MaskKey("cr_abcdefghijklmnopqrstuvwxyz"))
}

// =============================================================================
// COMMAND TESTS
// =============================================================================

func TestHandleOnce_Text(t *testing.T) {
	relay := newRelay(t)
	args := writeConfig(t, func(c *config.Config) {
		c.API.URL = relay.URL
		c.API.Key = "sk-1"
	})

	var out bytes.Buffer
	require.NoError(t, HandleOnce(context.Background(), args, &out))
	assert.Equal(t, "$1.20/$5.00 24%\n", out.String())
}

func TestHandleOnce_JSON(t *testing.T) {
	relay := newRelay(t)
	args := writeConfig(t, func(c *config.Config) {
		c.API.URL = relay.URL
		c.API.ID = testID
	})
	args.JSON = true

	var out bytes.Buffer
	require.NoError(t, HandleOnce(context.Background(), args, &out))

	var resp struct {
		Success bool     `json:"success"`
		Data    OnceData `json:"data"`
		Command string   `json:"command"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "once", resp.Command)
	assert.Equal(t, "$1.20/$5.00 24%", resp.Data.Text)
	assert.Equal(t, "ok", resp.Data.Class)
	require.NotNil(t, resp.Data.Stats)
	assert.Equal(t, "ci-key", resp.Data.Stats.Name)
}

func TestHandleOnce_Waybar(t *testing.T) {
	relay := newRelay(t)
	args := writeConfig(t, func(c *config.Config) {
		c.API.URL = relay.URL
		c.API.ID = testID
		c.Display.Mode = "total"
	})
	args.Waybar = true

	var out bytes.Buffer
	require.NoError(t, HandleOnce(context.Background(), args, &out))

	var bar map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &bar))
	assert.Equal(t, "$7.50/$100.00 8%", bar["text"])
	assert.Equal(t, "ok", bar["class"])
}

func TestHandleOnce_InvalidConfig(t *testing.T) {
	args := writeConfig(t, nil)

	var out bytes.Buffer
	err := HandleOnce(context.Background(), args, &out)
	require.Error(t, err)

	var invalid *refresh.InvalidConfigError
	assert.ErrorAs(t, err, &invalid)
	assert.Equal(t, ExitConfigError, GetExitCode(err))
	assert.Contains(t, out.String(), "relaystat: configure")
}

func TestHandleOnce_RelayFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	args := writeConfig(t, func(c *config.Config) {
		c.API.URL = server.URL
		c.API.ID = testID
	})
	args.JSON = true

	var out bytes.Buffer
	err := HandleOnce(context.Background(), args, &out)
	require.Error(t, err)
	assert.True(t, IsReported(err))
	assert.Equal(t, ExitNetworkError, GetExitCode(err))
	assert.Contains(t, out.String(), `"success": false`)
	assert.Contains(t, out.String(), `"class": "error"`)
}

func TestHandleDetails(t *testing.T) {
	ForceColorsEnabled(false)
	relay := newRelay(t)
	args := writeConfig(t, func(c *config.Config) {
		c.API.URL = relay.URL
		c.API.ID = testID
	})

	var out bytes.Buffer
	require.NoError(t, HandleDetails(context.Background(), args, &out))
	assert.Contains(t, out.String(), "ci-key")
	assert.Contains(t, out.String(), "Daily")
}

func TestHandleCheck(t *testing.T) {
	args := writeConfig(t, func(c *config.Config) {
		c.API.URL = "https://relay.test"
		c.API.Key = "cr_secret_key_value"
	})
	writeCredentials(t, args, "https://relay.test", "cr_secret_key_value")

	var out bytes.Buffer
	require.NoError(t, HandleCheck(context.Background(), args, &out))
	text := out.String()
	assert.Contains(t, text, "[OK]")
	assert.Contains(t, text, "matches relaystat settings")
	assert.NotContains(t, text, "cr_secret_key_value")
}

func TestHandleCheck_InvalidJSON(t *testing.T) {
	args := writeConfig(t, func(c *config.Config) { c.API.ID = "x" })
	args.JSON = true

	var out bytes.Buffer
	err := HandleCheck(context.Background(), args, &out)
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))

	var resp struct {
		Data CheckData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.False(t, resp.Data.Valid)
	assert.Equal(t, []string{"api.url"}, resp.Data.Missing)
	assert.Equal(t, "API URL is missing", resp.Data.Message)
	assert.False(t, resp.Data.CredentialsFound)
}

func TestHandleConfig(t *testing.T) {
	args := writeConfig(t, nil)

	set := args
	set.Subcommand, set.ConfigKey, set.ConfigVal = "set", "api.key", "cr_very_secret"
	var out bytes.Buffer
	require.NoError(t, HandleConfig(context.Background(), set, &out))
	assert.Contains(t, out.String(), "api.key = [REDACTED]")

	set.ConfigKey, set.ConfigVal = "display.mode", "opus"
	require.NoError(t, HandleConfig(context.Background(), set, io.Discard))

	store, err := OpenStore(args)
	require.NoError(t, err)
	assert.Equal(t, "cr_very_secret", store.API().Key)
	assert.Equal(t, "opus", store.Snapshot().Display.Mode)

	show := args
	show.Subcommand = "show"
	out.Reset()
	require.NoError(t, HandleConfig(context.Background(), show, &out))
	assert.Contains(t, out.String(), "display.mode")
	assert.NotContains(t, out.String(), "cr_very_secret")

	path := args
	path.Subcommand = "path"
	out.Reset()
	require.NoError(t, HandleConfig(context.Background(), path, &out))
	assert.Equal(t, args.ConfigPath+"\n", out.String())
}

func TestHandleConfig_Errors(t *testing.T) {
	args := writeConfig(t, nil)

	bad := args
	bad.Subcommand, bad.ConfigKey, bad.ConfigVal = "set", "display.nope", "x"
	err := HandleConfig(context.Background(), bad, io.Discard)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	missing := args
	missing.Subcommand = "set"
	err = HandleConfig(context.Background(), missing, io.Discard)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	invalid := args
	invalid.Subcommand, invalid.ConfigKey, invalid.ConfigVal = "set", "display.mode", "hourly"
	err = HandleConfig(context.Background(), invalid, io.Discard)
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))

	unknown := args
	unknown.Subcommand = "reset"
	err = HandleConfig(context.Background(), unknown, io.Discard)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestRunReconcile_Apply(t *testing.T) {
	relay := newRelay(t)
	args := writeConfig(t, func(c *config.Config) {
		c.API.URL = "https://old.test"
		c.API.Key = "cr_old"
	})
	writeCredentials(t, args, relay.URL, "sk-new")

	var prompts int
	prompter := reconcile.PrompterFunc(func(ctx context.Context, p reconcile.Prompt) (reconcile.Choice, error) {
		prompts++
		assert.Equal(t, relay.URL, p.File.APIURL)
		return reconcile.ChoiceApply, nil
	})

	var out bytes.Buffer
	require.NoError(t, runReconcile(context.Background(), args, &out, prompter))
	assert.Equal(t, 1, prompts)

	store, err := OpenStore(args)
	require.NoError(t, err)
	assert.Equal(t, config.Credentials{APIURL: relay.URL, APIKey: "sk-new"}, store.Credentials())
	assert.Contains(t, out.String(), "$1.20/$5.00 24%")
	assert.Contains(t, out.String(), "settings match")
}

func TestRunReconcile_Keep(t *testing.T) {
	args := writeConfig(t, func(c *config.Config) {
		c.API.URL = "https://old.test"
		c.API.Key = "cr_old"
	})
	writeCredentials(t, args, "https://new.test", "sk-new")

	prompter := reconcile.PrompterFunc(func(context.Context, reconcile.Prompt) (reconcile.Choice, error) {
		return reconcile.ChoiceKeep, nil
	})

	var out bytes.Buffer
	require.NoError(t, runReconcile(context.Background(), args, &out, prompter))
	assert.Contains(t, out.String(), "kept relaystat settings")
}

func TestRunWatch_Waybar(t *testing.T) {
	relay := newRelay(t)
	args := writeConfig(t, func(c *config.Config) {
		c.API.URL = relay.URL
		c.API.ID = testID
		c.Watch.Enabled = false
	})
	args.Waybar = true

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, args, out, nil, nil) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"class":"ok"`)
	}, 5*time.Second, 10*time.Millisecond)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Contains(t, lines[0], `"class":"pending"`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitGeneralError, GetExitCode(errors.New("x")))
	assert.Equal(t, ExitUsageError, GetExitCode(ErrMissingArgument("config set", "key", "usage")))
	assert.Equal(t, ExitConfigError, GetExitCode(Reported(&refresh.InvalidConfigError{})))
}

func TestReported(t *testing.T) {
	assert.Nil(t, Reported(nil))
	base := errors.New("base")
	err := Reported(base)
	assert.True(t, IsReported(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsReported(base))
}

func TestPrintVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, PrintVersion(&out, false))
	assert.True(t, strings.HasPrefix(out.String(), "relaystat "+Version))

	out.Reset()
	require.NoError(t, PrintVersion(&out, true))
	assert.Contains(t, out.String(), `"version"`)
}
