// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// commands.go - Helpers shared by the relaystat command handlers.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jeranaias/relaystat/internal/config"
	"github.com/jeranaias/relaystat/internal/refresh"
	"github.com/jeranaias/relaystat/internal/status"
	"github.com/jeranaias/relaystat/internal/ui"
)

// OpenStore opens the settings store named by --config, or the default one.
func OpenStore(args Args) (*config.Store, error) {
	if args.ConfigPath != "" {
		path, err := config.ExpandPath(args.ConfigPath)
		if err != nil {
			return nil, err
		}
		return config.OpenStoreAt(path)
	}
	return config.OpenStore()
}

// refreshOnce runs a single refresh and returns what it rendered. When the
// refresh was abandoned nothing is rendered and ok is false.
func refreshOnce(ctx context.Context, store *config.Store, opts ...refresh.Option) (outcome status.Outcome, ok bool, err error) {
	p := refresh.New(store, status.RendererFunc(func(o status.Outcome) {
		outcome, ok = o, true
	}), opts...)
	err = p.Refresh(ctx)
	return outcome, ok, err
}

// editSettings returns an OpenSettings callback that runs the user's
// editor on path in the foreground.
func editSettings(path string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return runEditor(ctx, path)
	}
}

func runEditor(ctx context.Context, path string) error {
	if !CanPrompt() {
		return errors.New("cannot open an editor without a terminal")
	}
	cmd := ui.EditorCommand(path)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor %s: %w", cmd.Path, err)
	}
	return ctx.Err()
}

// reportedError marks an error whose details were already printed.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// Reported wraps err so that main does not print it a second time.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// IsReported reports whether err was already shown to the user.
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}
