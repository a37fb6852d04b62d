// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

// Package dispatch delivers actuator commands raised by rule evaluation
// to their controllers. Validation happens synchronously at Dispatch so
// the rule script gets an immediate verdict; delivery is queued and
// handled by a single worker over short-lived TCP connections.
package dispatch

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/monolith/internal/kv"
	"github.com/tomtom215/monolith/internal/logging"
	"github.com/tomtom215/monolith/internal/metrics"
	"github.com/tomtom215/monolith/internal/queue"
	"github.com/tomtom215/monolith/internal/registry"
)

const (
	// tickInterval is the delivery worker's wake period.
	tickInterval = 10 * time.Millisecond

	// maxBurst bounds deliveries per tick.
	maxBurst = 100

	// maxRetries bounds write attempts for a short write. Connection
	// errors are not retried; a dead controller stays dead within one
	// delivery.
	maxRetries = 5

	// sendTimeout bounds each dial-and-write.
	sendTimeout = 2 * time.Second
)

// Action is the wire command sent to a controller.
type Action struct {
	TSMillis     int64   `json:"ts_ms"`
	ControllerID string  `json:"controller_id"`
	ActionID     string  `json:"action_id"`
	Value        float64 `json:"value"`
}

// delivery pairs an encoded-ready action with its resolved endpoint.
type delivery struct {
	action  Action
	address string
	port    uint16
}

// Dispatcher validates and delivers actuator commands.
type Dispatcher struct {
	registrar  *kv.Store
	deliveries *queue.Queue[delivery]

	running   atomic.Bool
	accepting atomic.Bool
	stop      chan struct{}
	wg        sync.WaitGroup
}

// New returns a stopped dispatcher reading controller records from
// registrar.
func New(registrar *kv.Store) *Dispatcher {
	return &Dispatcher{
		registrar:  registrar,
		deliveries: queue.New[delivery](),
	}
}

// Start launches the delivery worker. Idempotent.
func (d *Dispatcher) Start() error {
	if d.running.Load() {
		logging.Warn().Msg("Action dispatcher already started")
		return nil
	}
	d.stop = make(chan struct{})
	d.running.Store(true)
	d.accepting.Store(true)
	d.wg.Add(1)
	go d.worker()
	logging.Info().Msg("Action dispatcher started")
	return nil
}

// Stop refuses further dispatches, joins the worker, and delivers the
// residual queue. Idempotent.
func (d *Dispatcher) Stop() error {
	if !d.running.CompareAndSwap(true, false) {
		return nil
	}
	d.accepting.Store(false)
	close(d.stop)
	d.wg.Wait()

	for {
		burst := d.deliveries.PopN(maxBurst)
		if len(burst) == 0 {
			break
		}
		for _, dl := range burst {
			d.deliver(dl)
		}
	}

	logging.Info().Msg("Action dispatcher stopped")
	return nil
}

// Dispatch validates the command against the registrar and queues it
// for delivery. Returns false, without queuing, when the dispatcher is
// not accepting, the controller is unknown or malformed, or the action
// is not in the controller's action list.
func (d *Dispatcher) Dispatch(controllerID, actionID string, value float64) bool {
	if !d.accepting.Load() {
		return false
	}

	blob, err := d.registrar.Get(controllerID)
	if err != nil {
		logging.Warn().Err(err).Str("controller", controllerID).
			Msg("Dispatch refused, controller not registered")
		return false
	}
	controller, err := registry.DecodeController(blob)
	if err != nil {
		logging.Warn().Err(err).Str("controller", controllerID).
			Msg("Dispatch refused, registered blob is not a controller")
		return false
	}
	if !controller.HasAction(actionID) {
		logging.Warn().Str("controller", controllerID).Str("action", actionID).
			Msg("Dispatch refused, action not offered by controller")
		return false
	}

	d.deliveries.Push(delivery{
		action: Action{
			TSMillis:     time.Now().UnixMilli(),
			ControllerID: controllerID,
			ActionID:     actionID,
			Value:        value,
		},
		address: controller.Address,
		port:    controller.Port,
	})
	return true
}

// QueueDepth returns the number of pending deliveries.
func (d *Dispatcher) QueueDepth() int {
	return d.deliveries.Len()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			burst := d.deliveries.PopN(maxBurst)
			for _, dl := range burst {
				d.deliver(dl)
			}
			metrics.SetQueueDepth("dispatch", d.deliveries.Len())
		}
	}
}

// deliver encodes the action and writes it to the controller. A short
// write retries on a fresh connection; a connection error or retry
// exhaustion drops the action.
func (d *Dispatcher) deliver(dl delivery) {
	payload, err := json.Marshal(dl.action)
	if err != nil {
		metrics.DispatchSends.WithLabelValues("failure").Inc()
		logging.Err(err).Str("controller", dl.action.ControllerID).
			Msg("Failed to encode action")
		return
	}

	endpoint := net.JoinHostPort(dl.address, fmt.Sprint(dl.port))
	for attempt := 1; attempt <= maxRetries; attempt++ {
		short, err := writeOnce(endpoint, payload)
		if err != nil {
			metrics.DispatchSends.WithLabelValues("failure").Inc()
			logging.Err(err).
				Str("controller", dl.action.ControllerID).
				Str("action", dl.action.ActionID).
				Str("endpoint", endpoint).
				Msg("Action delivery failed")
			return
		}
		if !short {
			metrics.DispatchSends.WithLabelValues("success").Inc()
			return
		}
		metrics.DispatchRetries.Inc()
		logging.Warn().
			Str("controller", dl.action.ControllerID).
			Str("action", dl.action.ActionID).
			Int("attempt", attempt).
			Msg("Short write delivering action, retrying")
	}

	metrics.DispatchSends.WithLabelValues("failure").Inc()
	logging.Error().
		Str("controller", dl.action.ControllerID).
		Str("action", dl.action.ActionID).
		Int("attempts", maxRetries).
		Msg("Action dropped after retry exhaustion")
}

// writeOnce writes payload to endpoint on a fresh connection. Returns
// short=true when fewer bytes than payload were written without a hard
// error.
func writeOnce(endpoint string, payload []byte) (short bool, err error) {
	conn, err := net.DialTimeout("tcp", endpoint, sendTimeout)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(sendTimeout)); err != nil {
		return false, fmt.Errorf("set deadline: %w", err)
	}
	n, err := conn.Write(payload)
	if err != nil {
		return false, fmt.Errorf("write to %s: %w", endpoint, err)
	}
	return n != len(payload), nil
}
