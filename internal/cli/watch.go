// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// watch.go - Headless polling mode.
//
// Command: watch
// Aliases: w
//
// Examples:
//   relaystat watch              One status line per refresh
//   relaystat watch --waybar     One waybar JSON object per refresh
//
// SIGUSR1 triggers a refresh outside the timer. When stdin and stdout are
// a terminal (and --waybar is not set) credential mismatches are asked
// about inline.

package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jeranaias/relaystat/internal/app"
	"github.com/jeranaias/relaystat/internal/config"
	"github.com/jeranaias/relaystat/internal/reconcile"
	"github.com/jeranaias/relaystat/internal/status"
)

// lineRenderer prints one line per outcome, using the current display
// settings so config edits apply on the next refresh.
type lineRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	store  *config.Store
	waybar bool
}

func (r *lineRenderer) Render(o status.Outcome) {
	opts := status.OptionsFrom(r.store.Snapshot().Display)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waybar {
		writeWaybar(r.out, o, opts)
		return
	}
	fmt.Fprintln(r.out, status.Styled(o, opts))
}

// HandleWatch polls until ctx is cancelled or the process is interrupted.
func HandleWatch(ctx context.Context, args Args, out io.Writer) error {
	var prompter reconcile.Prompter
	if !args.Waybar && CanPrompt() {
		prompter = NewLinePrompter(out)
	}
	return runWatch(ctx, args, out, prompter, refreshSignals())
}

func runWatch(ctx context.Context, args Args, out io.Writer, prompter reconcile.Prompter, sigs []os.Signal) error {
	store, err := OpenStore(args)
	if err != nil {
		if args.Waybar {
			writeWaybar(out, status.Failed(err), status.Options{})
		}
		return err
	}

	renderer := &lineRenderer{out: out, store: store, waybar: args.Waybar}
	if args.Waybar {
		renderer.Render(status.Pending())
	}

	ext := app.New(app.Options{
		Store:        store,
		Renderer:     renderer,
		Prompter:     prompter,
		OpenSettings: editSettings(store.Path()),
		OnError: func(err error) {
			if !args.Waybar {
				fmt.Fprintln(os.Stderr, ErrorStyle.Render(err.Error()))
			}
		},
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ext.Activate(ctx); err != nil {
		return err
	}
	defer ext.Deactivate()

	refreshReq := make(chan os.Signal, 1)
	if len(sigs) > 0 {
		signal.Notify(refreshReq, sigs...)
		defer signal.Stop(refreshReq)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("watch: stopping")
			return nil
		case sig := <-refreshReq:
			log.Printf("watch: %v received, refreshing", sig)
			_ = ext.Refresh(ctx)
		}
	}
}
