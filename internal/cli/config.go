// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for relaystat.
//
// Command: config [subcommand]
//
// Subcommands:
//   show (default)      Display the settings, key redacted
//   set <key> <value>   Set a value using dotted keys
//   path                Print the settings file path
//   edit                Open the settings file in $VISUAL/$EDITOR
//
// Examples:
//   relaystat config set api.url https://relay.example.com
//   relaystat config set api.key cr_xxxxxxxx
//   relaystat config set display.mode total
//   relaystat config set poll.refresh_interval_secs 120
//   relaystat config show --json

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/relaystat/internal/config"
)

const redacted = "[REDACTED]"

// HandleConfig dispatches the config subcommands.
func HandleConfig(ctx context.Context, args Args, out io.Writer) error {
	switch args.Subcommand {
	case "", "show":
		return handleConfigShow(args, out)
	case "set":
		return handleConfigSet(args, out)
	case "path":
		return handleConfigPath(args, out)
	case "edit":
		return handleConfigEdit(ctx, args, out)
	default:
		return &UsageError{
			Command: "config",
			Reason:  fmt.Sprintf("unknown subcommand %q (want show, set, path or edit)", args.Subcommand),
		}
	}
}

// configValues returns every key with its display value.
func configValues(cfg *config.Config) map[string]string {
	values := make(map[string]string)
	for _, key := range config.GetAllKeys() {
		val, err := cfg.Get(key)
		if err != nil {
			continue
		}
		s := fmt.Sprint(val)
		if key == "api.key" && s != "" {
			s = redacted
		}
		values[key] = s
	}
	return values
}

func handleConfigShow(args Args, out io.Writer) error {
	store, err := OpenStore(args)
	if err != nil {
		return err
	}
	cfg := store.Snapshot()
	values := configValues(cfg)

	if args.JSON {
		return NewJSONResponse("config show", map[string]interface{}{
			"path":   store.Path(),
			"values": values,
		}).Write(out)
	}

	fmt.Fprintln(out, TitleStyle.Render("relaystat configuration"))
	printField(out, "file", store.Path())
	fmt.Fprintln(out)

	section := ""
	for _, key := range config.GetAllKeys() {
		val, ok := values[key]
		if !ok {
			continue
		}
		if head, _, found := strings.Cut(key, "."); found && head != section {
			if section != "" {
				fmt.Fprintln(out)
			}
			section = head
		}
		if val == "" {
			val = DimStyle.Render("(unset)")
		}
		printField(out, key, val)
	}
	return nil
}

func handleConfigSet(args Args, out io.Writer) error {
	const usage = "relaystat config set <key> <value>"
	if args.ConfigKey == "" {
		return ErrMissingArgument("config set", "key", usage)
	}
	if args.ConfigVal == "" {
		return ErrMissingArgument("config set", "value", usage)
	}

	store, err := OpenStore(args)
	if err != nil {
		return err
	}

	// Check the key and value type before touching the file.
	probe := store.Snapshot()
	if err := probe.Set(args.ConfigKey, args.ConfigVal); err != nil {
		return &UsageError{Command: "config set", Reason: err.Error()}
	}

	if err := store.Update(func(c *config.Config) {
		_ = c.Set(args.ConfigKey, args.ConfigVal)
	}); err != nil {
		return err
	}

	shown := args.ConfigVal
	if args.ConfigKey == "api.key" {
		shown = redacted
	}
	if args.JSON {
		return NewJSONResponse("config set", map[string]string{
			"key":   args.ConfigKey,
			"value": shown,
			"path":  store.Path(),
		}).Write(out)
	}
	fmt.Fprintf(out, "%s %s = %s\n", SuccessStyle.Render("[OK]"), args.ConfigKey, shown)
	return nil
}

func handleConfigPath(args Args, out io.Writer) error {
	if args.ConfigPath != "" {
		path, err := config.ExpandPath(args.ConfigPath)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, path)
		return nil
	}
	// Resolve without loading, so a broken file can still be located.
	path, err := config.PathTOML()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, path)
	return nil
}

func handleConfigEdit(ctx context.Context, args Args, out io.Writer) error {
	store, err := OpenStore(args)
	if err != nil {
		// The file exists but does not parse; edit it anyway.
		path := args.ConfigPath
		if path == "" {
			if path, err = config.PathTOML(); err != nil {
				return err
			}
		}
		return runEditor(ctx, path)
	}

	// Write the defaults first so the editor opens a complete file.
	if err := store.Update(func(*config.Config) {}); err != nil {
		return err
	}
	fmt.Fprintln(out, DimStyle.Render("editing "+store.Path()))
	return runEditor(ctx, store.Path())
}
