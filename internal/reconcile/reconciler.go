// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jeranaias/relaystat/internal/config"
)

// State is the reconciler's current phase.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateChecking
	StatePrompting
	StateApplying
	StateDisabled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateChecking:
		return "checking"
	case StatePrompting:
		return "prompting"
	case StateApplying:
		return "applying"
	case StateDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Choice is the user's answer to a reconcile prompt.
type Choice int

const (
	// ChoiceApply copies the file's credentials into relaystat settings.
	ChoiceApply Choice = iota
	// ChoiceKeep leaves settings as they are.
	ChoiceKeep
	// ChoiceOpenSettings opens the relaystat settings for manual editing.
	ChoiceOpenSettings
	// ChoiceDismissed keeps settings and turns watching off.
	ChoiceDismissed
)

// String returns the choice name.
func (c Choice) String() string {
	switch c {
	case ChoiceApply:
		return "apply"
	case ChoiceKeep:
		return "keep"
	case ChoiceOpenSettings:
		return "open-settings"
	case ChoiceDismissed:
		return "dismissed"
	default:
		return fmt.Sprintf("choice(%d)", int(c))
	}
}

// Prompt describes a detected mismatch.
type Prompt struct {
	Path    string
	File    config.Credentials
	Current config.Credentials
}

// Message is the question shown to the user.
func (p Prompt) Message() string {
	return fmt.Sprintf("%s has different relay settings (%s). Use them?", p.Path, p.File.APIURL)
}

// Prompter asks the user what to do about a mismatch.
type Prompter interface {
	Prompt(ctx context.Context, p Prompt) (Choice, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, p Prompt) (Choice, error)

// Prompt calls f.
func (f PrompterFunc) Prompt(ctx context.Context, p Prompt) (Choice, error) {
	return f(ctx, p)
}

// Settings is the relaystat settings surface the reconciler touches.
// *config.Store implements it.
type Settings interface {
	Credentials() config.Credentials
	ApplyCredentials(config.Credentials) error
	SetWatchEnabled(bool) error
}

// Options configures a Reconciler.
type Options struct {
	// Path is the credentials file to watch.
	Path string
	// Debounce defaults to 300ms.
	Debounce time.Duration

	Settings Settings
	Prompter Prompter

	// OpenSettings handles ChoiceOpenSettings. Optional.
	OpenSettings func(ctx context.Context) error
	// Refresh is the shared refresh callback, run after credentials are
	// applied. Optional.
	Refresh func(ctx context.Context) error
	// OnError surfaces failures the user should see. Optional.
	OnError func(error)
	// OnState observes state transitions. Optional.
	OnState func(State)

	// NewWatcher defaults to NewWatcher.
	NewWatcher WatcherFactory
	// Logf defaults to log.Printf.
	Logf func(format string, args ...interface{})
}

// DefaultDebounce is the quiet period before a change is checked.
const DefaultDebounce = 300 * time.Millisecond

// Reconciler keeps relaystat settings in step with an external credentials
// file, asking before it changes anything.
type Reconciler struct {
	opts Options

	mu          sync.Mutex
	state       State
	active      bool
	lastHandled *config.Credentials
	watcher     FileWatcher
	ctx         context.Context
	cancel      context.CancelFunc

	// checkMu serializes checks so a prompt is never shown twice at once.
	checkMu sync.Mutex
}

// New creates a stopped reconciler.
func New(opts Options) *Reconciler {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.NewWatcher == nil {
		opts.NewWatcher = NewWatcher
	}
	if opts.Logf == nil {
		opts.Logf = log.Printf
	}
	return &Reconciler{opts: opts}
}

// Start replaces any running watcher with a new one.
func (r *Reconciler) Start(ctx context.Context) error {
	r.Stop()

	wctx, cancel := context.WithCancel(ctx)
	w, err := r.opts.NewWatcher(r.opts.Path, WatchOptions{
		Debounce: r.opts.Debounce,
		OnEvent:  r.onEvent,
		OnChange: func() { _ = r.Check(wctx) },
		Logf:     r.opts.Logf,
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to watch %s: %w", r.opts.Path, err)
	}

	r.mu.Lock()
	r.watcher = w
	r.ctx, r.cancel = wctx, cancel
	r.active = true
	r.mu.Unlock()

	r.setState(StateIdle)
	r.opts.Logf("reconcile: watching %s", r.opts.Path)
	return nil
}

// Stop closes the watcher and forgets what was handled this session.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	w, cancel := r.watcher, r.cancel
	wasActive := r.active
	r.watcher, r.cancel, r.ctx = nil, nil, nil
	r.active = false
	r.lastHandled = nil
	disabled := r.state == StateDisabled
	r.mu.Unlock()

	r.closeWatcher(w, cancel)
	if !disabled {
		r.setState(StateIdle)
	}
	if wasActive {
		r.opts.Logf("reconcile: stopped")
	}
}

// Active reports whether a watcher is running.
func (r *Reconciler) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// State returns the current state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// LastHandled returns the credentials most recently acted on, if any.
func (r *Reconciler) LastHandled() (config.Credentials, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastHandled == nil {
		return config.Credentials{}, false
	}
	return *r.lastHandled, true
}

func (r *Reconciler) onEvent() {
	r.mu.Lock()
	idle := r.active && r.state == StateIdle
	r.mu.Unlock()
	if idle {
		r.setState(StateDebouncing)
	}
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	changed := r.state != s
	r.state = s
	r.mu.Unlock()

	if changed && r.opts.OnState != nil {
		r.opts.OnState(s)
	}
}

func (r *Reconciler) closeWatcher(w FileWatcher, cancel context.CancelFunc) {
	if cancel != nil {
		cancel()
	}
	if w != nil {
		if err := w.Close(); err != nil {
			r.opts.Logf("reconcile: failed to close watcher: %v", err)
		}
	}
}

// Check compares the credentials file against settings and prompts when they
// differ. Read and parse errors are logged and treated as no change. It
// returns an error only when applying new credentials failed.
func (r *Reconciler) Check(ctx context.Context) error {
	r.checkMu.Lock()
	defer r.checkMu.Unlock()

	if r.State() == StateDisabled {
		return nil
	}
	r.setState(StateChecking)

	file, ok, err := ReadCredentials(r.opts.Path)
	if err != nil {
		r.opts.Logf("reconcile: ignoring unreadable %s: %v", r.opts.Path, err)
		r.setState(StateIdle)
		return nil
	}
	if !ok {
		r.setState(StateIdle)
		return nil
	}

	current := r.opts.Settings.Credentials()
	if file.Equal(current) {
		r.setState(StateIdle)
		return nil
	}
	if last, handled := r.LastHandled(); handled && last.Equal(file) {
		r.setState(StateIdle)
		return nil
	}

	r.setState(StatePrompting)
	choice, err := r.opts.Prompter.Prompt(ctx, Prompt{Path: r.opts.Path, File: file, Current: current})
	if err != nil {
		r.opts.Logf("reconcile: prompt failed, keeping current settings: %v", err)
		r.setState(StateIdle)
		return nil
	}
	r.opts.Logf("reconcile: user chose %s", choice)

	switch choice {
	case ChoiceApply:
		return r.apply(ctx, file)

	case ChoiceOpenSettings:
		r.markHandled(file)
		if r.opts.OpenSettings != nil {
			if err := r.opts.OpenSettings(ctx); err != nil {
				r.report(fmt.Errorf("failed to open settings: %w", err))
			}
		}
		r.setState(StateIdle)

	case ChoiceDismissed:
		r.markHandled(file)
		r.disable()

	default:
		r.markHandled(file)
		r.setState(StateIdle)
	}
	return nil
}

func (r *Reconciler) apply(ctx context.Context, file config.Credentials) error {
	r.setState(StateApplying)

	if err := r.opts.Settings.ApplyCredentials(file); err != nil {
		err = fmt.Errorf("failed to apply credentials: %w", err)
		r.report(err)
		r.setState(StateIdle)
		return err
	}
	r.markHandled(file)
	r.opts.Logf("reconcile: applied relay settings from %s", r.opts.Path)

	if r.opts.Refresh != nil {
		if err := r.opts.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.opts.Logf("reconcile: refresh after apply failed: %v", err)
		}
	}
	r.setState(StateIdle)
	return nil
}

// disable stops watching and persists watch.enabled=false.
func (r *Reconciler) disable() {
	r.mu.Lock()
	w, cancel := r.watcher, r.cancel
	r.watcher, r.cancel, r.ctx = nil, nil, nil
	r.active = false
	r.mu.Unlock()

	r.setState(StateDisabled)
	r.closeWatcher(w, cancel)

	if err := r.opts.Settings.SetWatchEnabled(false); err != nil {
		r.report(fmt.Errorf("failed to turn off credentials watching: %w", err))
	}
	r.opts.Logf("reconcile: watching disabled")
}

// Enable clears the Disabled state so Start and Check work again.
func (r *Reconciler) Enable() {
	r.mu.Lock()
	disabled := r.state == StateDisabled
	r.mu.Unlock()
	if disabled {
		r.setState(StateIdle)
	}
}

func (r *Reconciler) markHandled(c config.Credentials) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastHandled = &c
}

func (r *Reconciler) report(err error) {
	r.opts.Logf("reconcile: %v", err)
	if r.opts.OnError != nil {
		r.opts.OnError(err)
	}
}
