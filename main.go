// relaystat - relay API usage in your terminal and status bar.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/relaystat/internal/app"
	"github.com/jeranaias/relaystat/internal/cli"
	"github.com/jeranaias/relaystat/internal/config"
	"github.com/jeranaias/relaystat/internal/relay"
	"github.com/jeranaias/relaystat/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
	relay.UserAgent = "relaystat/" + Version
}

func main() {
	cmd, args, err := cli.Parse(os.Args[1:])
	if err != nil {
		cli.DisplayError(os.Stderr, err, false)
		cli.PrintUsage(os.Stderr)
		os.Exit(cli.ExitUsageError)
	}
	os.Exit(run(cmd, args))
}

func run(cmd cli.Command, args cli.Args) int {
	closeLog := cli.SetupLogging(cmd, args)
	defer closeLog()

	ctx := context.Background()
	out := os.Stdout

	var err error
	switch cmd {
	case cli.CmdTUI:
		err = runTUI(args)
	case cli.CmdWatch:
		// Handles its own signals.
		err = cli.HandleWatch(ctx, args, out)
	case cli.CmdOnce:
		err = withInterrupt(ctx, args, out, cli.HandleOnce)
	case cli.CmdDetails:
		err = withInterrupt(ctx, args, out, cli.HandleDetails)
	case cli.CmdCheck:
		err = withInterrupt(ctx, args, out, cli.HandleCheck)
	case cli.CmdConfig:
		err = withInterrupt(ctx, args, out, cli.HandleConfig)
	case cli.CmdReconcile:
		err = withInterrupt(ctx, args, out, cli.HandleReconcile)
	case cli.CmdVersion:
		err = cli.PrintVersion(out, args.JSON)
	case cli.CmdHelp:
		cli.PrintUsage(out)
	}

	if err != nil {
		log.Printf("%s: %v", cmd, err)
		if !cli.IsReported(err) {
			if args.JSON {
				cli.DisplayError(out, err, true)
			} else {
				cli.DisplayError(os.Stderr, err, false)
			}
		}
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}

type handler func(ctx context.Context, args cli.Args, out io.Writer) error

func withInterrupt(ctx context.Context, args cli.Args, out io.Writer, h handler) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return h(ctx, args, out)
}

// =============================================================================
// INTERACTIVE VIEW
// =============================================================================

func runTUI(args cli.Args) error {
	store, err := cli.OpenStore(args)
	if err != nil {
		return err
	}
	cfg := store.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background components reach the program through the bridge.
	bridge := &ui.Bridge{}
	ext := app.New(app.Options{
		Store:        store,
		Renderer:     bridge,
		Prompter:     bridge,
		OpenSettings: bridge.OpenSettings,
		OnError:      bridge.Error,
		OnConfigChange: func(_ config.Change, cfg *config.Config) {
			bridge.Send(ui.ConfigChangedMsg{Display: cfg.Display, Path: store.Path()})
		},
		OnReconcileState: bridge.ReconcileState,
	})

	m := ui.New(ctx, ext, ui.Options{Display: cfg.Display, ConfigPath: store.Path()})
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),   // Use alternate screen buffer
		tea.WithReportFocus(), // Pause polling while the terminal is in the background
	)
	bridge.Attach(p)

	_, runErr := p.Run()

	// The program no longer reads messages; sends from the shutdown path
	// return immediately.
	cancel()
	ext.Deactivate()

	if runErr != nil {
		return fmt.Errorf("error running relaystat: %w", runErr)
	}
	return nil
}
