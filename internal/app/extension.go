// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app wires the relaystat components into one lifecycle: the
// refresh pipeline on a poller, the credentials reconciler, and a watch on
// relaystat's own config file.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jeranaias/relaystat/internal/config"
	"github.com/jeranaias/relaystat/internal/poller"
	"github.com/jeranaias/relaystat/internal/reconcile"
	"github.com/jeranaias/relaystat/internal/refresh"
	"github.com/jeranaias/relaystat/internal/status"
)

// Options configures an Extension.
type Options struct {
	Store    *config.Store
	Renderer status.Renderer

	// Prompter answers reconcile prompts. Without one the reconciler is
	// never started.
	Prompter reconcile.Prompter

	// OpenSettings opens the config file for editing. Optional.
	OpenSettings func(ctx context.Context) error

	// OnError surfaces errors the user should see. Optional.
	OnError func(error)

	// OnConfigChange is called after the config file was reloaded with
	// changes. Optional.
	OnConfigChange func(config.Change, *config.Config)

	// OnReconcileState observes reconciler state. Optional.
	OnReconcileState func(reconcile.State)

	// ClientFactory defaults to refresh.NewRelayClient.
	ClientFactory refresh.ClientFactory

	// NewWatcher defaults to reconcile.NewWatcher.
	NewWatcher reconcile.WatcherFactory

	// Logf defaults to log.Printf.
	Logf func(format string, args ...interface{})
}

// Extension owns the loop handles for one session.
type Extension struct {
	opts     Options
	store    *config.Store
	pipeline *refresh.Pipeline
	poller   *poller.Poller

	mu            sync.Mutex
	ctx           context.Context
	cancel        context.CancelFunc
	reconciler    *reconcile.Reconciler
	configWatcher reconcile.FileWatcher
}

// New builds a stopped extension.
func New(opts Options) *Extension {
	if opts.Logf == nil {
		opts.Logf = log.Printf
	}
	if opts.NewWatcher == nil {
		opts.NewWatcher = reconcile.NewWatcher
	}

	e := &Extension{opts: opts, store: opts.Store}

	pipelineOpts := []refresh.Option{refresh.WithLogf(opts.Logf)}
	if opts.ClientFactory != nil {
		pipelineOpts = append(pipelineOpts, refresh.WithClientFactory(opts.ClientFactory))
	}
	e.pipeline = refresh.New(opts.Store, opts.Renderer, pipelineOpts...)

	e.poller = poller.New(e.pipeline.Refresh, opts.Store.Snapshot().RefreshInterval())
	e.poller.SetLogf(opts.Logf)
	return e
}

// Store returns the settings store.
func (e *Extension) Store() *config.Store { return e.store }

// Poller returns the refresh loop handle.
func (e *Extension) Poller() *poller.Poller { return e.poller }

// Reconciler returns the active reconciler, or nil when watching is off.
func (e *Extension) Reconciler() *reconcile.Reconciler {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reconciler
}

// Activate validates settings, starts polling with an immediate refresh,
// starts the reconciler when watching is enabled, and watches the config
// file for edits.
func (e *Extension) Activate(ctx context.Context) error {
	e.Deactivate()

	cfg := e.store.Snapshot()
	if check := config.CheckAPI(cfg.API); !check.Valid {
		e.opts.Logf("app: relay settings incomplete (%s): %s", check.Reason, check.Message())
	}

	actx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.ctx, e.cancel = actx, cancel
	e.mu.Unlock()

	e.poller.SetInterval(actx, cfg.RefreshInterval())
	e.poller.Restart(actx)

	if cfg.Watch.Enabled {
		e.startReconciler(actx, cfg)
	}

	w, err := e.opts.NewWatcher(e.store.Path(), reconcile.WatchOptions{
		Debounce: cfg.Debounce(),
		OnChange: func() { e.onConfigChange(actx) },
		Logf:     e.opts.Logf,
	})
	if err != nil {
		// Polling continues without live reload.
		e.opts.Logf("app: not watching %s: %v", e.store.Path(), err)
	} else {
		e.mu.Lock()
		e.configWatcher = w
		e.mu.Unlock()
	}

	e.opts.Logf("app: activated (interval %v, watch %t)", cfg.RefreshInterval(), cfg.Watch.Enabled)
	return nil
}

// Deactivate stops the poller, the reconciler and the config watch.
func (e *Extension) Deactivate() {
	e.mu.Lock()
	cancel, w, r := e.cancel, e.configWatcher, e.reconciler
	e.cancel, e.ctx, e.configWatcher, e.reconciler = nil, nil, nil, nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if w != nil {
		_ = w.Close()
	}
	if r != nil {
		r.Stop()
	}
	e.poller.Stop()
	e.opts.Logf("app: deactivated")
}

// Active reports whether Activate has run without a matching Deactivate.
func (e *Extension) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// Refresh runs a manual refresh.
func (e *Extension) Refresh(ctx context.Context) error {
	return e.poller.Trigger(ctx)
}

// SetFocused forwards host focus changes to the poller.
func (e *Extension) SetFocused(ctx context.Context, focused bool) {
	e.poller.SetFocused(ctx, focused)
}

// CheckCredentials runs one reconcile check immediately, starting from a
// fresh session record. It works whether or not watching is enabled.
func (e *Extension) CheckCredentials(ctx context.Context) error {
	if r := e.Reconciler(); r != nil {
		return r.Check(ctx)
	}
	cfg := e.store.Snapshot()
	return e.newReconciler(cfg).Check(ctx)
}

func (e *Extension) newReconciler(cfg *config.Config) *reconcile.Reconciler {
	path, err := config.ExpandPath(cfg.Watch.CredentialsPath)
	if err != nil {
		path = cfg.Watch.CredentialsPath
	}

	prompter := e.opts.Prompter
	if prompter == nil {
		prompter = reconcile.PrompterFunc(func(context.Context, reconcile.Prompt) (reconcile.Choice, error) {
			return reconcile.ChoiceKeep, errors.New("no prompter available")
		})
	}

	return reconcile.New(reconcile.Options{
		Path:         path,
		Debounce:     cfg.Debounce(),
		Settings:     e.store,
		Prompter:     prompter,
		OpenSettings: e.opts.OpenSettings,
		Refresh:      e.Refresh,
		OnError:      e.opts.OnError,
		OnState:      e.opts.OnReconcileState,
		NewWatcher:   e.opts.NewWatcher,
		Logf:         e.opts.Logf,
	})
}

func (e *Extension) startReconciler(ctx context.Context, cfg *config.Config) {
	if e.opts.Prompter == nil {
		e.opts.Logf("app: no prompter, credentials watch not started")
		return
	}

	r := e.newReconciler(cfg)
	if err := r.Start(ctx); err != nil {
		e.report(err)
		return
	}

	e.mu.Lock()
	old := e.reconciler
	e.reconciler = r
	e.mu.Unlock()

	if old != nil {
		old.Stop()
	}
}

func (e *Extension) stopReconciler() {
	e.mu.Lock()
	r := e.reconciler
	e.reconciler = nil
	e.mu.Unlock()

	if r != nil {
		r.Stop()
	}
}

// onConfigChange reloads the config file and applies what changed.
func (e *Extension) onConfigChange(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	change, err := e.store.Reload()
	if err != nil {
		e.report(fmt.Errorf("config reload failed, keeping previous settings: %w", err))
		return
	}
	if !change.Any() {
		return
	}
	cfg := e.store.Snapshot()
	e.opts.Logf("app: config changed %+v", change)

	if change.Interval {
		e.poller.SetInterval(ctx, cfg.RefreshInterval())
	}
	if change.API {
		e.poller.Restart(ctx)
	}

	if change.Watch {
		e.stopReconciler()
		if cfg.Watch.Enabled {
			e.startReconciler(ctx, cfg)
		}
	}

	if e.opts.OnConfigChange != nil {
		e.opts.OnConfigChange(change, cfg)
	}
}

func (e *Extension) report(err error) {
	e.opts.Logf("app: %v", err)
	if e.opts.OnError != nil {
		e.opts.OnError(err)
	}
}
