// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package refresh runs one poll of the relay: validate the connection
// settings, resolve the key identifier when needed, fetch stats with retry,
// and hand the outcome to a renderer.
package refresh

import (
	"context"
	"fmt"
	"log"

	"github.com/jeranaias/relaystat/internal/config"
	"github.com/jeranaias/relaystat/internal/relay"
	"github.com/jeranaias/relaystat/internal/status"
)

// Settings supplies the configuration for each refresh.
type Settings interface {
	Snapshot() *config.Config
}

// Client is the part of relay.Client a refresh needs.
type Client interface {
	ResolveKeyID(ctx context.Context, apiKey string) (string, error)
	FetchWithRetry(ctx context.Context, apiID string, policy relay.RetryPolicy) (*relay.UserStats, error)
}

// ClientFactory builds a client for the given settings.
type ClientFactory func(cfg *config.Config) Client

// NewRelayClient is the default ClientFactory.
func NewRelayClient(cfg *config.Config) Client {
	return relay.NewClient(cfg.API.URL, relay.WithTimeout(cfg.Timeout()))
}

// InvalidConfigError is returned when the connection settings fail the gate.
type InvalidConfigError struct {
	Check config.ConnectionCheck
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid relay settings: %s", e.Check.Message())
}

// Pipeline performs refreshes. It keeps no state between calls.
type Pipeline struct {
	settings  Settings
	newClient ClientFactory
	renderer  status.Renderer
	logf      func(format string, args ...interface{})
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClientFactory replaces the relay client constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(p *Pipeline) {
		if f != nil {
			p.newClient = f
		}
	}
}

// WithLogf replaces the logger. Defaults to log.Printf.
func WithLogf(logf func(format string, args ...interface{})) Option {
	return func(p *Pipeline) {
		if logf != nil {
			p.logf = logf
		}
	}
}

// New creates a pipeline that renders to r.
func New(settings Settings, r status.Renderer, opts ...Option) *Pipeline {
	p := &Pipeline{
		settings:  settings,
		newClient: NewRelayClient,
		renderer:  r,
		logf:      log.Printf,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Refresh runs one poll. Every completed refresh renders exactly one
// outcome. A refresh abandoned through ctx renders nothing.
func (p *Pipeline) Refresh(ctx context.Context) error {
	cfg := p.settings.Snapshot()

	check := config.CheckAPI(cfg.API)
	if !check.Valid {
		p.logf("refresh: settings invalid (%s): %s", check.Reason, check.Message())
		p.render(status.InvalidConfig(check))
		return &InvalidConfigError{Check: check}
	}

	client := p.newClient(cfg)

	apiID := cfg.API.ID
	if apiID == "" {
		id, err := client.ResolveKeyID(ctx, cfg.API.Key)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logf("refresh: %v", err)
			p.render(status.Failed(err))
			return err
		}
		apiID = id
	}

	policy := relay.RetryPolicy{
		MaxAttempts:  cfg.Poll.MaxAttempts,
		InitialDelay: cfg.InitialDelay(),
	}
	stats, err := client.FetchWithRetry(ctx, apiID, policy)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logf("refresh: %v", err)
		p.render(status.Failed(err))
		return err
	}

	p.render(status.OK(stats))
	return nil
}

func (p *Pipeline) render(o status.Outcome) {
	if p.renderer != nil {
		p.renderer.Render(o)
	}
}
