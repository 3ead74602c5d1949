// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// reconcile_cmd.go - One-shot credentials reconcile.
//
// Command: reconcile
// Aliases: sync
//
// Compares the relaystat settings with the watched credentials file and
// asks what to do when they differ, even if watching is turned off or the
// same mismatch was answered before.

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jeranaias/relaystat/internal/app"
	"github.com/jeranaias/relaystat/internal/reconcile"
	"github.com/jeranaias/relaystat/internal/status"
)

// HandleReconcile runs a single reconcile check.
func HandleReconcile(ctx context.Context, args Args, out io.Writer) error {
	return runReconcile(ctx, args, out, nil)
}

func runReconcile(ctx context.Context, args Args, out io.Writer, prompter reconcile.Prompter) error {
	store, err := OpenStore(args)
	if err != nil {
		return err
	}
	if prompter == nil {
		if !CanPrompt() {
			return &UsageError{Command: "reconcile", Reason: "needs an interactive terminal"}
		}
		prompter = NewLinePrompter(out)
	}

	opts := status.OptionsFrom(store.Snapshot().Display)
	ext := app.New(app.Options{
		Store: store,
		Renderer: status.RendererFunc(func(o status.Outcome) {
			fmt.Fprintln(out, status.Styled(o, opts))
		}),
		Prompter:     prompter,
		OpenSettings: editSettings(store.Path()),
		OnError: func(err error) {
			fmt.Fprintln(out, ErrorStyle.Render(err.Error()))
		},
	})

	if err := ext.CheckCredentials(ctx); err != nil {
		return Reported(err)
	}

	data := RunCheck(store)
	switch {
	case !data.CredentialsFound:
		fmt.Fprintf(out, "%s no relay settings in %s\n", DimStyle.Render("[--]"), data.CredentialsPath)
	case data.CredentialsMatch:
		fmt.Fprintf(out, "%s relaystat settings match %s\n", SuccessStyle.Render("[OK]"), data.CredentialsPath)
	default:
		fmt.Fprintf(out, "%s kept relaystat settings; %s differs\n", WarningStyle.Render("[!!]"), data.CredentialsPath)
	}
	if !store.WatchEnabled() {
		fmt.Fprintln(out, DimStyle.Render("watching is off (relaystat config set watch.enabled true)"))
	}
	return nil
}
