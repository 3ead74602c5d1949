// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for relaystat commands.
//
// Handlers always return errors; main decides how to display them.

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/relaystat/internal/config"
	"github.com/jeranaias/relaystat/internal/refresh"
	"github.com/jeranaias/relaystat/internal/relay"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitNetworkError = 5
)

// UsageError reports invalid command usage.
type UsageError struct {
	Command string
	Reason  string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Reason)
}

// ErrMissingArgument builds a UsageError for a missing argument.
func ErrMissingArgument(command, argName, usage string) error {
	return &UsageError{
		Command: command,
		Reason:  fmt.Sprintf("missing %s (usage: %s)", argName, usage),
	}
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}

	var invalid *refresh.InvalidConfigError
	var verrs config.ValidateErrors
	var verr config.ValidationError
	if errors.As(err, &invalid) || errors.As(err, &verrs) || errors.As(err, &verr) {
		return ExitConfigError
	}

	var apiErr *relay.APIError
	var retryErr *relay.RetryError
	if errors.As(err, &apiErr) || errors.As(err, &retryErr) || errors.Is(err, relay.ErrKeyResolution) {
		return ExitNetworkError
	}

	return ExitGeneralError
}

// DisplayError writes err in the format matching the output mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse("", err, nil).Write(w)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}
