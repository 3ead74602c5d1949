// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyResolution indicates the API key could not be mapped to an ID.
	// Resolution failures are never retried.
	ErrKeyResolution = errors.New("failed to resolve API key to ID")

	// ErrEmptyKey indicates ResolveKeyID was called without a key.
	ErrEmptyKey = errors.New("API key is empty")

	// ErrEmptyID indicates UserStats was called without an ID.
	ErrEmptyID = errors.New("API ID is empty")
)

// APIError represents a relay response that was not a success: either a
// non-200 status or a 200 whose body said success=false.
type APIError struct {
	Endpoint string
	Status   int
	Message  string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("relay %s failed (HTTP %d): %s", e.Endpoint, e.Status, e.Message)
}

// RetryError is returned by FetchWithRetry once every attempt has failed.
type RetryError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *RetryError) Error() string {
	return fmt.Sprintf("failed to fetch stats (retried %d times): %v", e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *RetryError) Unwrap() error {
	return e.Err
}
