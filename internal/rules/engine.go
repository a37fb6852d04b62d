// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

package rules

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/monolith/internal/logging"
	"github.com/tomtom215/monolith/internal/metrics"
	"github.com/tomtom215/monolith/internal/queue"
	"github.com/tomtom215/monolith/internal/telemetry"
)

const (
	// tickInterval is the evaluation worker's wake period.
	tickInterval = 500 * time.Millisecond

	// maxBurst bounds readings evaluated per tick.
	maxBurst = 100
)

// Engine queues readings and evaluates them one at a time against the
// current rule host. Reload swaps the host without pausing the queue;
// queued readings are evaluated by whichever host is current when their
// turn comes.
type Engine struct {
	alerts  AlertSink
	actions ActionSink

	hostMu sync.Mutex
	host   Host
	path   string

	readings *queue.Queue[telemetry.Reading]

	running   atomic.Bool
	accepting atomic.Bool
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewEngine returns a stopped engine with no script loaded.
func NewEngine(alerts AlertSink, actions ActionSink) *Engine {
	return &Engine{
		alerts:   alerts,
		actions:  actions,
		readings: queue.New[telemetry.Reading](),
	}
}

// Load builds the initial host from the script at path. Must succeed
// before Start; a service without a working rule script is misconfigured.
func (e *Engine) Load(path string) error {
	host := NewLuaHost(e.alerts, e.actions)
	if err := host.Load(path); err != nil {
		return err
	}

	e.hostMu.Lock()
	old := e.host
	e.host = host
	e.path = path
	e.hostMu.Unlock()

	if old != nil {
		old.Close()
	}
	logging.Info().Str("path", path).Msg("Rule script loaded")
	return nil
}

// Reload builds a fresh host from the already-loaded script path and
// swaps it in. On failure the current host stays active and Reload
// reports false.
func (e *Engine) Reload() bool {
	e.hostMu.Lock()
	path := e.path
	e.hostMu.Unlock()
	if path == "" {
		logging.Warn().Msg("Rule reload requested before any script was loaded")
		metrics.RuleReloads.WithLabelValues("failure").Inc()
		return false
	}

	host := NewLuaHost(e.alerts, e.actions)
	if err := host.Load(path); err != nil {
		logging.Err(err).Str("path", path).Msg("Rule reload failed, keeping current script")
		metrics.RuleReloads.WithLabelValues("failure").Inc()
		return false
	}

	e.hostMu.Lock()
	old := e.host
	e.host = host
	e.hostMu.Unlock()

	if old != nil {
		old.Close()
	}
	metrics.RuleReloads.WithLabelValues("success").Inc()
	logging.Info().Str("path", path).Msg("Rule script reloaded")
	return true
}

// Start launches the evaluation worker. Idempotent.
func (e *Engine) Start() error {
	if e.running.Load() {
		logging.Warn().Msg("Rule engine already started")
		return nil
	}
	e.hostMu.Lock()
	loaded := e.host != nil
	e.hostMu.Unlock()
	if !loaded {
		return fmt.Errorf("rule engine started without a loaded script")
	}

	e.stop = make(chan struct{})
	e.running.Store(true)
	e.accepting.Store(true)
	e.wg.Add(1)
	go e.worker()
	logging.Info().Msg("Rule engine started")
	return nil
}

// Stop refuses further submissions, joins the worker, evaluates the
// residual queue, and closes the host. Idempotent.
func (e *Engine) Stop() error {
	if !e.running.CompareAndSwap(true, false) {
		return nil
	}
	e.accepting.Store(false)
	close(e.stop)
	e.wg.Wait()

	for {
		burst := e.readings.PopN(maxBurst)
		if len(burst) == 0 {
			break
		}
		e.evaluate(burst)
	}

	e.hostMu.Lock()
	if e.host != nil {
		e.host.Close()
		e.host = nil
	}
	e.hostMu.Unlock()

	logging.Info().Msg("Rule engine stopped")
	return nil
}

// Submit queues reading for evaluation. Returns false when the engine
// is not accepting.
func (e *Engine) Submit(reading telemetry.Reading) bool {
	if !e.accepting.Load() {
		return false
	}
	e.readings.Push(reading)
	return true
}

// QueueDepth returns the number of readings awaiting evaluation.
func (e *Engine) QueueDepth() int {
	return e.readings.Len()
}

func (e *Engine) worker() {
	defer e.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			burst := e.readings.PopN(maxBurst)
			if len(burst) > 0 {
				e.evaluate(burst)
			}
			metrics.SetQueueDepth("rules", e.readings.Len())
		}
	}
}

// evaluate invokes the current host once per reading. A failed
// invocation is logged and the loop continues; one bad reading must not
// stall the queue.
func (e *Engine) evaluate(burst []telemetry.Reading) {
	for _, r := range burst {
		e.hostMu.Lock()
		host := e.host
		if host == nil {
			e.hostMu.Unlock()
			return
		}
		err := host.Invoke(r.TSSeconds, r.NodeID, r.SensorID, r.Value)
		e.hostMu.Unlock()

		metrics.RuleInvocations.Inc()
		if err != nil {
			metrics.RuleFailures.Inc()
			logging.Err(err).
				Str("node", r.NodeID).
				Str("sensor", r.SensorID).
				Msg("Rule invocation failed")
		}
	}
}
