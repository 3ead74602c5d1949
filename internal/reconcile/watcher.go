// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reconcile

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// =============================================================================
// FILE WATCHER INTERFACE
// =============================================================================

// FileWatcher watches a single file.
type FileWatcher interface {
	// Watch starts delivering change notifications.
	Watch() error

	// Close stops watching. It does not wait for a running callback.
	Close() error
}

// WatchOptions configures a file watcher.
type WatchOptions struct {
	// Debounce is the quiet period after the last event before OnChange
	// fires. Every event inside the window restarts it.
	Debounce time.Duration

	// OnEvent is called for every raw event on the file. Optional.
	OnEvent func()

	// OnChange is called once per burst of events.
	OnChange func()

	// PollInterval is used by the polling fallback.
	PollInterval time.Duration

	// Logf defaults to log.Printf.
	Logf func(format string, args ...interface{})
}

func (o *WatchOptions) setDefaults() {
	if o.Debounce < 0 {
		o.Debounce = 0
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.Logf == nil {
		o.Logf = log.Printf
	}
	if o.OnChange == nil {
		o.OnChange = func() {}
	}
}

// WatcherFactory creates and starts a watcher for path.
type WatcherFactory func(path string, opts WatchOptions) (FileWatcher, error)

// NewWatcher starts an fsnotify watcher on path, falling back to polling
// when fsnotify cannot watch the parent directory.
func NewWatcher(path string, opts WatchOptions) (FileWatcher, error) {
	fw, err := NewFsnotifyWatcher(path, opts)
	if err == nil {
		if err = fw.Watch(); err == nil {
			return fw, nil
		}
		fw.Close()
	}
	opts.setDefaults()
	opts.Logf("reconcile: fsnotify unavailable for %s (%v), polling every %v", path, err, opts.PollInterval)

	pw := NewPollingWatcher(path, opts)
	if err := pw.Watch(); err != nil {
		return nil, err
	}
	return pw, nil
}

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

// FsnotifyWatcher watches the parent directory of a file and filters events
// by base name, so editors that save through rename-and-replace are seen.
type FsnotifyWatcher struct {
	path    string
	name    string
	dir     string
	opts    WatchOptions
	watcher *fsnotify.Watcher

	// errLimit keeps a broken watch from flooding the log.
	errLimit *rate.Limiter

	mu     sync.Mutex
	timer  *time.Timer
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewFsnotifyWatcher creates a watcher for path. Call Watch to start it.
func NewFsnotifyWatcher(path string, opts WatchOptions) (*FsnotifyWatcher, error) {
	opts.setDefaults()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &FsnotifyWatcher{
		path:     abs,
		name:     filepath.Base(abs),
		dir:      filepath.Dir(abs),
		opts:     opts,
		watcher:  watcher,
		errLimit: rate.NewLimiter(rate.Every(time.Minute), 3),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Path returns the watched file.
func (fw *FsnotifyWatcher) Path() string {
	return fw.path
}

// Watch starts watching for file changes.
func (fw *FsnotifyWatcher) Watch() error {
	if err := fw.watcher.Add(fw.dir); err != nil {
		return err
	}
	go fw.processEvents()
	return nil
}

func (fw *FsnotifyWatcher) processEvents() {
	defer func() {
		if r := recover(); r != nil {
			fw.opts.Logf("reconcile: watcher panic: %v", r)
		}
	}()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != fw.name {
				continue
			}
			// Chmod alone does not change content.
			if event.Op == fsnotify.Chmod {
				continue
			}
			fw.notify()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			if fw.errLimit.Allow() {
				fw.opts.Logf("reconcile: watch error on %s: %v", fw.path, err)
			}
		}
	}
}

// notify records one raw event and restarts the debounce window.
func (fw *FsnotifyWatcher) notify() {
	fw.mu.Lock()
	if fw.closed {
		fw.mu.Unlock()
		return
	}
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.opts.Debounce, fw.fire)
	fw.mu.Unlock()

	if fw.opts.OnEvent != nil {
		fw.opts.OnEvent()
	}
}

func (fw *FsnotifyWatcher) fire() {
	fw.mu.Lock()
	closed := fw.closed
	fw.mu.Unlock()

	if !closed {
		fw.opts.OnChange()
	}
}

// Close stops watching and releases resources.
func (fw *FsnotifyWatcher) Close() error {
	fw.mu.Lock()
	if fw.closed {
		fw.mu.Unlock()
		return nil
	}
	fw.closed = true
	if fw.timer != nil {
		fw.timer.Stop()
		fw.timer = nil
	}
	fw.mu.Unlock()

	fw.cancel()
	return fw.watcher.Close()
}

// =============================================================================
// POLLING WATCHER (FALLBACK)
// =============================================================================

type fileStamp struct {
	exists  bool
	size    int64
	modTime time.Time
}

func stampOf(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{exists: true, size: info.Size(), modTime: info.ModTime()}
}

// PollingWatcher compares the file's size and modification time on a timer.
// It is used where fsnotify is unavailable, e.g. when the parent directory
// does not exist yet.
type PollingWatcher struct {
	path string
	opts WatchOptions

	mu   sync.Mutex
	last fileStamp

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPollingWatcher creates a polling watcher for path.
func NewPollingWatcher(path string, opts WatchOptions) *PollingWatcher {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &PollingWatcher{
		path:   path,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Watch records the current state and starts polling.
func (pw *PollingWatcher) Watch() error {
	if pw.ctx.Err() != nil {
		return errors.New("watcher closed")
	}
	pw.mu.Lock()
	pw.last = stampOf(pw.path)
	pw.mu.Unlock()

	go pw.poll()
	return nil
}

func (pw *PollingWatcher) poll() {
	ticker := time.NewTicker(pw.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pw.ctx.Done():
			return
		case <-ticker.C:
			pw.checkChanges()
		}
	}
}

// checkChanges fires OnChange when the stamp moved since the last poll.
func (pw *PollingWatcher) checkChanges() {
	current := stampOf(pw.path)

	pw.mu.Lock()
	changed := current.exists != pw.last.exists ||
		current.size != pw.last.size ||
		!current.modTime.Equal(pw.last.modTime)
	pw.last = current
	pw.mu.Unlock()

	if changed && pw.ctx.Err() == nil {
		if pw.opts.OnEvent != nil {
			pw.opts.OnEvent()
		}
		pw.opts.OnChange()
	}
}

// Close stops polling.
func (pw *PollingWatcher) Close() error {
	pw.cancel()
	return nil
}
