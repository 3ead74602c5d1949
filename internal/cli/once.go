// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// once.go - One-shot refresh commands: once and details.
//
// Command: once
// Aliases: status, s
//
// Examples:
//   relaystat once               Print "$used/$limit pct%"
//   relaystat once --json        Full stats as JSON
//   relaystat once --waybar      One waybar JSON object
//
// Command: details
//   relaystat details            Markdown details rendered for the terminal

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jeranaias/relaystat/internal/config"
	"github.com/jeranaias/relaystat/internal/relay"
	"github.com/jeranaias/relaystat/internal/status"
)

// OnceData is the --json payload of the once command.
type OnceData struct {
	Text    string           `json:"text"`
	Class   string           `json:"class"`
	Outcome string           `json:"outcome"`
	Stats   *relay.UserStats `json:"stats,omitempty"`
	Reason  string           `json:"reason,omitempty"`
}

// HandleOnce refreshes once and prints the status.
func HandleOnce(ctx context.Context, args Args, out io.Writer) error {
	store, err := OpenStore(args)
	if err != nil {
		if args.Waybar {
			// Waybar shows whatever is printed; keep the bar alive.
			writeWaybar(out, status.Failed(err), status.Options{})
			return Reported(err)
		}
		return err
	}
	cfg := store.Snapshot()
	opts := status.OptionsFrom(cfg.Display)

	outcome, ok, refreshErr := refreshOnce(ctx, store)
	if !ok {
		return refreshErr
	}

	switch {
	case args.Waybar:
		writeWaybar(out, outcome, opts)
		return nil

	case args.JSON:
		data := onceData(outcome, cfg)
		if refreshErr != nil {
			if err := NewJSONErrorResponse("once", refreshErr, data).Write(out); err != nil {
				return err
			}
			return Reported(refreshErr)
		}
		return NewJSONResponse("once", data).Write(out)

	default:
		fmt.Fprintln(out, status.Styled(outcome, opts))
		return refreshErr
	}
}

func onceData(o status.Outcome, cfg *config.Config) OnceData {
	opts := status.OptionsFrom(cfg.Display)
	opts.MaxWidth = 0
	data := OnceData{
		Text:    status.Text(o, opts),
		Class:   status.Class(o, cfg.Display.Mode),
		Outcome: o.Kind.String(),
		Stats:   o.Stats,
	}
	if o.Kind == status.KindInvalidConfig {
		data.Reason = o.Check.Message()
	}
	return data
}

func writeWaybar(out io.Writer, o status.Outcome, opts status.Options) {
	data, err := status.WaybarJSON(o, opts)
	if err != nil {
		// Marshalling a flat struct of strings does not fail in practice.
		fmt.Fprintf(out, "{\"text\":%q,\"class\":%q}\n", status.TextError, status.ClassError)
		return
	}
	fmt.Fprintln(out, string(data))
}

// HandleDetails refreshes once and prints the markdown details.
func HandleDetails(ctx context.Context, args Args, out io.Writer) error {
	store, err := OpenStore(args)
	if err != nil {
		return err
	}
	cfg := store.Snapshot()

	outcome, ok, refreshErr := refreshOnce(ctx, store)
	if !ok {
		return refreshErr
	}

	md := status.Markdown(outcome)
	rendered, err := status.RenderMarkdown(md, MarkdownTheme(cfg.Display.Theme), GetTerminalWidth())
	if err != nil {
		rendered = md
	}
	fmt.Fprint(out, rendered)
	return Reported(refreshErr)
}
