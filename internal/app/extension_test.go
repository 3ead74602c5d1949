// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/relaystat/internal/config"
	"github.com/jeranaias/relaystat/internal/reconcile"
	"github.com/jeranaias/relaystat/internal/refresh"
	"github.com/jeranaias/relaystat/internal/relay"
	"github.com/jeranaias/relaystat/internal/status"
)

const testID = "8b2f6e0a-4c1d-4f7e-9a3b-2d5c6e7f8a9b"

type fakeClient struct {
	h *harness
}

func (c fakeClient) ResolveKeyID(ctx context.Context, apiKey string) (string, error) {
	return testID, nil
}

func (c fakeClient) FetchWithRetry(ctx context.Context, apiID string, policy relay.RetryPolicy) (*relay.UserStats, error) {
	return &relay.UserStats{Name: "k"}, nil
}

type manualWatcher struct {
	path   string
	opts   reconcile.WatchOptions
	mu     sync.Mutex
	closed bool
}

func (w *manualWatcher) Watch() error { return nil }

func (w *manualWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *manualWatcher) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

type harness struct {
	store *config.Store
	ext   *Extension

	mu       sync.Mutex
	outcomes []status.Outcome
	clients  []string
	watchers []*manualWatcher
	changes  []config.Change
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.API = config.APIConfig{URL: "https://x.test", Key: "sk-1"}
	cfg.Watch.CredentialsPath = filepath.Join(dir, "settings.json")
	if mutate != nil {
		mutate(cfg)
	}
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, config.Save(cfg, path))

	store, err := config.OpenStoreAt(path)
	require.NoError(t, err)

	h := &harness{store: store}
	h.ext = New(Options{
		Store: store,
		Renderer: status.RendererFunc(func(o status.Outcome) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.outcomes = append(h.outcomes, o)
		}),
		Prompter: reconcile.PrompterFunc(func(context.Context, reconcile.Prompt) (reconcile.Choice, error) {
			return reconcile.ChoiceKeep, nil
		}),
		OnConfigChange: func(c config.Change, _ *config.Config) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.changes = append(h.changes, c)
		},
		ClientFactory: func(cfg *config.Config) refresh.Client {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.clients = append(h.clients, cfg.API.URL)
			return fakeClient{h: h}
		},
		NewWatcher: func(path string, opts reconcile.WatchOptions) (reconcile.FileWatcher, error) {
			w := &manualWatcher{path: path, opts: opts}
			h.mu.Lock()
			defer h.mu.Unlock()
			h.watchers = append(h.watchers, w)
			return w, nil
		},
		Logf: func(string, ...interface{}) {},
	})
	t.Cleanup(h.ext.Deactivate)
	return h
}

func (h *harness) outcomeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.outcomes)
}

func (h *harness) lastOutcome() status.Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcomes[len(h.outcomes)-1]
}

func (h *harness) watcherFor(path string) *manualWatcher {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.watchers) - 1; i >= 0; i-- {
		if h.watchers[i].path == path {
			return h.watchers[i]
		}
	}
	return nil
}

func (h *harness) editConfig(t *testing.T, mutate func(*config.Config)) {
	t.Helper()
	cfg := h.store.Snapshot()
	mutate(cfg)
	require.NoError(t, config.Save(cfg, h.store.Path()))
	h.watcherFor(h.store.Path()).opts.OnChange()
}

func TestExtension_ActivateRefreshesImmediately(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.ext.Activate(context.Background()))
	require.True(t, h.ext.Active())

	require.Eventually(t, func() bool { return h.outcomeCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, status.KindOK, h.lastOutcome().Kind)
	assert.True(t, h.ext.Poller().Running())
	assert.NotNil(t, h.ext.Reconciler())
	assert.NotNil(t, h.watcherFor(h.store.Path()), "config file is watched")
}

func TestExtension_ActivateWithMissingSettingsRendersInvalid(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.API = config.APIConfig{} })

	require.NoError(t, h.ext.Activate(context.Background()))

	require.Eventually(t, func() bool { return h.outcomeCount() == 1 }, time.Second, 5*time.Millisecond)
	o := h.lastOutcome()
	assert.Equal(t, status.KindInvalidConfig, o.Kind)
	assert.Equal(t, config.ReasonNothingConfigured, o.Check.Reason)
}

func TestExtension_APIChangeTriggersImmediatePoll(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.ext.Activate(context.Background()))
	require.Eventually(t, func() bool { return h.outcomeCount() == 1 }, time.Second, 5*time.Millisecond)

	h.editConfig(t, func(c *config.Config) { c.API.URL = "https://y.test" })

	require.Eventually(t, func() bool { return h.outcomeCount() == 2 }, time.Second, 5*time.Millisecond)
	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, "https://y.test", h.clients[len(h.clients)-1])
	require.Len(t, h.changes, 1)
	assert.True(t, h.changes[0].API)
}

func TestExtension_IntervalChangeRebuildsTimer(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.ext.Activate(context.Background()))

	h.editConfig(t, func(c *config.Config) { c.Poll.RefreshIntervalSecs = 120 })

	assert.Equal(t, 120*time.Second, h.ext.Poller().Interval())
	assert.True(t, h.ext.Poller().Running())
}

func TestExtension_WatchToggle(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.ext.Activate(context.Background()))
	first := h.ext.Reconciler()
	require.NotNil(t, first)
	credsWatcher := h.watcherFor(h.store.Snapshot().Watch.CredentialsPath)
	require.NotNil(t, credsWatcher)

	h.editConfig(t, func(c *config.Config) { c.Watch.Enabled = false })
	assert.Nil(t, h.ext.Reconciler())
	assert.True(t, credsWatcher.isClosed())

	h.editConfig(t, func(c *config.Config) { c.Watch.Enabled = true })
	assert.NotNil(t, h.ext.Reconciler())
	assert.True(t, h.ext.Reconciler().Active())
}

func TestExtension_ReloadErrorKeepsSettings(t *testing.T) {
	h := newHarness(t, nil)
	var reported []error
	h.ext.opts.OnError = func(err error) { reported = append(reported, err) }
	require.NoError(t, h.ext.Activate(context.Background()))

	require.NoError(t, os.WriteFile(h.store.Path(), []byte("[display]\nmode = \"weekly\"\n"), 0600))
	h.watcherFor(h.store.Path()).opts.OnChange()

	require.Len(t, reported, 1)
	assert.Equal(t, "daily", h.store.Snapshot().Display.Mode)
}

func TestExtension_DeactivateStopsEverything(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.ext.Activate(context.Background()))
	configWatcher := h.watcherFor(h.store.Path())

	h.ext.Deactivate()

	assert.False(t, h.ext.Active())
	assert.False(t, h.ext.Poller().Running())
	assert.Nil(t, h.ext.Reconciler())
	assert.True(t, configWatcher.isClosed())

	h.ext.Deactivate()
}

func TestExtension_WatchDisabledSkipsReconciler(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Watch.Enabled = false })
	require.NoError(t, h.ext.Activate(context.Background()))
	assert.Nil(t, h.ext.Reconciler())
}

func TestExtension_CheckCredentialsOneShot(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Watch.Enabled = false })
	path := h.store.Snapshot().Watch.CredentialsPath
	require.NoError(t, os.WriteFile(path, []byte(`{"apiUrl": "https://z.test", "apiKey": "cr_z"}`), 0600))

	prompted := 0
	h.ext.opts.Prompter = reconcile.PrompterFunc(func(context.Context, reconcile.Prompt) (reconcile.Choice, error) {
		prompted++
		return reconcile.ChoiceApply, nil
	})

	require.NoError(t, h.ext.CheckCredentials(context.Background()))
	assert.Equal(t, 1, prompted)
	assert.Equal(t, "https://z.test", h.store.API().URL)
	assert.Empty(t, h.store.API().ID)
}

func TestExtension_ManualRefreshAndFocus(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.ext.Refresh(ctx))
	assert.Equal(t, 1, h.outcomeCount())

	require.NoError(t, h.ext.Activate(ctx))
	require.Eventually(t, func() bool { return h.outcomeCount() == 2 }, time.Second, 5*time.Millisecond)

	h.ext.SetFocused(ctx, false)
	assert.False(t, h.ext.Poller().Focused())
	h.ext.SetFocused(ctx, true)
	require.Eventually(t, func() bool { return h.outcomeCount() == 3 }, time.Second, 5*time.Millisecond)
}
