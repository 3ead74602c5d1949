// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows

package cli

import (
	"os"
	"syscall"
)

// refreshSignals are the signals that trigger a manual refresh.
func refreshSignals() []os.Signal {
	return []os.Signal{syscall.SIGUSR1}
}
