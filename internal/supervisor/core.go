// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

// Package supervisor owns process lifecycle. Core brings the component
// chain up and down in dependency order; the suture tree wraps Core and
// the HTTP server as supervised services with restart policy.
package supervisor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/monolith/internal/console"
	"github.com/tomtom215/monolith/internal/dispatch"
	"github.com/tomtom215/monolith/internal/fanout"
	"github.com/tomtom215/monolith/internal/kv"
	"github.com/tomtom215/monolith/internal/logging"
	"github.com/tomtom215/monolith/internal/pipeline"
	"github.com/tomtom215/monolith/internal/rules"
	"github.com/tomtom215/monolith/internal/store"
)

// CoreConfig wires the component chain. Registrar, Fanout, Dispatcher,
// Rules, and Pipeline are required; Store and Console are optional.
type CoreConfig struct {
	Registrar  *kv.Store
	Fanout     *fanout.Fanout
	Store      *store.Store
	Dispatcher *dispatch.Dispatcher
	Rules      *rules.Engine
	RuleScript string
	Pipeline   *pipeline.Pipeline
	Console    *console.Console
}

// step is one ordered lifecycle element.
type step struct {
	name  string
	start func() error
	stop  func() error
}

// Core starts and stops the component chain in dependency order:
// registrar, fanout, store, dispatcher, rules, pipeline, console.
// A start failure unwinds the already-started prefix in reverse; Stop
// is the exact reverse of Start. Both are idempotent.
type Core struct {
	steps []step

	mu      sync.Mutex
	started int
	ready   atomic.Bool
}

// NewCore builds the ordered chain from cfg.
func NewCore(cfg CoreConfig) *Core {
	steps := []step{
		{name: "registrar", start: cfg.Registrar.Open, stop: cfg.Registrar.Close},
		{name: "fanout", start: cfg.Fanout.Start, stop: cfg.Fanout.Stop},
	}
	if cfg.Store != nil {
		steps = append(steps, step{name: "store", start: cfg.Store.Start, stop: cfg.Store.Stop})
	}
	steps = append(steps,
		step{name: "dispatcher", start: cfg.Dispatcher.Start, stop: cfg.Dispatcher.Stop},
		step{
			name: "rules",
			start: func() error {
				if err := cfg.Rules.Load(cfg.RuleScript); err != nil {
					return err
				}
				return cfg.Rules.Start()
			},
			stop: cfg.Rules.Stop,
		},
		step{name: "pipeline", start: cfg.Pipeline.Start, stop: cfg.Pipeline.Stop},
	)
	if cfg.Console != nil {
		steps = append(steps, step{name: "console", start: cfg.Console.Start, stop: cfg.Console.Stop})
	}
	return &Core{steps: steps}
}

// Start brings the chain up. On failure the started prefix is stopped
// in reverse and the error returned.
func (c *Core) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started == len(c.steps) {
		logging.Warn().Msg("Component chain already started")
		return nil
	}

	for i := c.started; i < len(c.steps); i++ {
		s := c.steps[i]
		if err := s.start(); err != nil {
			logging.Err(err).Str("component", s.name).Msg("Component start failed, unwinding")
			c.unwindLocked()
			return fmt.Errorf("start %s: %w", s.name, err)
		}
		c.started = i + 1
		logging.Debug().Str("component", s.name).Msg("Component started")
	}

	c.ready.Store(true)
	logging.Info().Msg("Component chain started")
	return nil
}

// Stop brings the chain down in reverse order. Idempotent.
func (c *Core) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started == 0 {
		return nil
	}
	c.ready.Store(false)
	c.unwindLocked()
	logging.Info().Msg("Component chain stopped")
	return nil
}

// Ready reports whether every component is up. The HTTP health endpoint
// keys off this.
func (c *Core) Ready() bool {
	return c.ready.Load()
}

// unwindLocked stops the started prefix in reverse. Stop errors are
// logged, not propagated: shutdown continues past a failing component.
func (c *Core) unwindLocked() {
	for i := c.started - 1; i >= 0; i-- {
		s := c.steps[i]
		if err := s.stop(); err != nil {
			logging.Err(err).Str("component", s.name).Msg("Component stop failed")
		} else {
			logging.Debug().Str("component", s.name).Msg("Component stopped")
		}
	}
	c.started = 0
}
