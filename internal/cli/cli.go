// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command line parsing for relaystat.
package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information (overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdWatch
	CmdOnce
	CmdDetails
	CmdCheck
	CmdConfig
	CmdReconcile
	CmdVersion
	CmdHelp
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdWatch:
		return "watch"
	case CmdOnce:
		return "once"
	case CmdDetails:
		return "details"
	case CmdCheck:
		return "check"
	case CmdConfig:
		return "config"
	case CmdReconcile:
		return "reconcile"
	case CmdVersion:
		return "version"
	default:
		return "help"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string // --config: settings file, default under RELAYSTAT_HOME
	Verbose    bool   // --verbose: log to stderr as well
	JSON       bool
	Waybar     bool

	// Command-specific
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// Raw holds the arguments after the command name.
	Raw []string
}

const usageText = `relaystat - usage and spend for a relay API key, in your terminal

Usage:
  relaystat                          Start the interactive view (default)
  relaystat tui                      Start the interactive view
  relaystat watch [--waybar]         Print a status line on every refresh
  relaystat once [--json|--waybar]   Refresh once and print the status
  relaystat details                  Refresh once and print the details page
  relaystat check [--json]           Check the relay settings
  relaystat config show              Show the settings (key redacted)
  relaystat config set <key> <val>   Change a setting
  relaystat config path              Print the settings file path
  relaystat config edit              Open the settings file in $EDITOR
  relaystat reconcile                Compare settings with the credentials file
  relaystat version                  Show version
  relaystat help                     Show this help

Global flags:
  --config <path>    Settings file (default $RELAYSTAT_HOME/config.toml)
  --verbose, -v      Also write log output to stderr

Watch mode:
  In watch mode relaystat refreshes on the configured interval. Send
  SIGUSR1 to refresh immediately:
    pkill -USR1 relaystat

Waybar:
  "custom/relaystat": {
    "exec": "relaystat watch --waybar",
    "return-type": "json"
  }

Environment:
  RELAYSTAT_HOME              Settings directory (default ~/.relaystat)
  RELAYSTAT_API_URL           Overrides api.url
  RELAYSTAT_API_ID            Overrides api.id
  RELAYSTAT_API_KEY           Overrides api.key
  RELAYSTAT_REFRESH_INTERVAL  Overrides poll.refresh_interval_secs
  NO_COLOR                    Disables colors
`

// Parse parses argv (without the program name).
func Parse(argv []string) (Command, Args, error) {
	p := NewArgParser(argv)

	args := Args{
		ConfigPath: p.Flag("config"),
		Verbose:    p.BoolFlag("verbose") || p.BoolFlag("v"),
		JSON:       p.BoolFlag("json"),
		Waybar:     p.BoolFlag("waybar"),
	}

	if p.BoolFlag("help") || p.BoolFlag("h") {
		return CmdHelp, args, nil
	}
	if p.PositionalCount() == 0 {
		return CmdTUI, args, nil
	}

	name := strings.ToLower(p.Subcommand())
	args.Raw = p.PositionalFrom(1)
	args.Subcommand = p.Positional(1)

	switch name {
	case "tui":
		return CmdTUI, args, nil
	case "watch", "w":
		return CmdWatch, args, nil
	case "once", "status", "s":
		if args.JSON && args.Waybar {
			return CmdOnce, args, fmt.Errorf("--json and --waybar cannot be combined")
		}
		return CmdOnce, args, nil
	case "details", "d":
		return CmdDetails, args, nil
	case "check", "doctor":
		return CmdCheck, args, nil
	case "config":
		if args.Subcommand == "" {
			args.Subcommand = "show"
		}
		args.ConfigKey = p.Positional(2)
		args.ConfigVal = strings.Join(p.PositionalFrom(3), " ")
		return CmdConfig, args, nil
	case "reconcile", "sync":
		return CmdReconcile, args, nil
	case "version", "--version":
		return CmdVersion, args, nil
	case "help":
		return CmdHelp, args, nil
	default:
		return CmdHelp, args, fmt.Errorf("unknown command %q", name)
	}
}

// PrintUsage writes the usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer, jsonMode bool) error {
	if jsonMode {
		return NewJSONResponse("version", map[string]string{
			"version":    Version,
			"git_commit": GitCommit,
			"build_date": BuildDate,
			"go_version": runtime.Version(),
			"platform":   runtime.GOOS + "/" + runtime.GOARCH,
		}).Write(w)
	}
	fmt.Fprintf(w, "relaystat %s (%s, built %s, %s %s/%s)\n",
		Version, GitCommit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return nil
}
