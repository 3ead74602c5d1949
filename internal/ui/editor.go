// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// EditorCommand returns the command that opens path in the user's editor:
// $VISUAL, then $EDITOR, then a platform default. Editor values may carry
// arguments, e.g. "code --wait".
func EditorCommand(path string) *exec.Cmd {
	editor := strings.TrimSpace(os.Getenv("VISUAL"))
	if editor == "" {
		editor = strings.TrimSpace(os.Getenv("EDITOR"))
	}
	if editor == "" {
		if runtime.GOOS == "windows" {
			editor = "notepad"
		} else {
			editor = "vi"
		}
	}

	parts := strings.Fields(editor)
	args := append(parts[1:], path)
	return exec.Command(parts[0], args...)
}
