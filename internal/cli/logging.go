// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// logging.go - Log destination per command.

package cli

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/jeranaias/relaystat/internal/config"
)

// SetupLogging points the standard logger at the right place for cmd:
//
//   - tui and watch append to the log file (log.path, default
//     ~/.relaystat/relaystat.log); the interactive view must not have log
//     lines written over it
//   - --verbose adds stderr, except in the interactive view
//   - everything else is silent unless --verbose
//
// The returned function closes the log file.
func SetupLogging(cmd Command, args Args) func() {
	log.SetFlags(log.LstdFlags)

	var writers []io.Writer
	closeFn := func() {}

	if cmd == CmdTUI || cmd == CmdWatch {
		if f, err := openLogFile(args); err == nil {
			writers = append(writers, f)
			closeFn = func() { _ = f.Close() }
		}
	}
	if args.Verbose && cmd != CmdTUI {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		log.SetOutput(io.Discard)
	case 1:
		log.SetOutput(writers[0])
	default:
		log.SetOutput(io.MultiWriter(writers...))
	}
	return closeFn
}

func openLogFile(args Args) (*os.File, error) {
	path := ""
	if store, err := OpenStore(args); err == nil {
		path = store.Snapshot().Log.Path
	}
	if path == "" {
		p, err := config.DefaultLogPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	path, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}
