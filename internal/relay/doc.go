// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package relay provides the client for the relay service's usage API.
//
// The relay exposes two JSON endpoints under /apiStats/api: get-key-id maps
// an API key to its identifier, and user-stats returns the usage and limit
// figures for an identifier. Both are POST requests with a 10 second
// timeout.
//
// # Key Types
//
//   - Client: HTTP client for one relay base URL
//   - UserStats: Decoded usage payload
//   - RetryPolicy: Attempt count and initial backoff for FetchWithRetry
//   - APIError, RetryError: Typed failures for errors.As
//
// # Usage
//
//	client := relay.NewClient("https://relay.example.com")
//	id, err := client.ResolveKeyID(ctx, apiKey)
//	if err != nil {
//	    return err
//	}
//	stats, err := client.FetchWithRetry(ctx, id, relay.DefaultRetryPolicy())
package relay
