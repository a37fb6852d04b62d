// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

// Package fanout broadcasts accepted readings to registered stream
// subscribers. Readings queue up between broadcast ticks; each tick
// packs a burst into one StreamPackage, encodes it once, and pushes
// the bytes to every subscriber over a short-lived TCP connection.
// Delivery is best effort: a failed write is logged and the subscriber
// stays registered.
package fanout

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/monolith/internal/logging"
	"github.com/tomtom215/monolith/internal/metrics"
	"github.com/tomtom215/monolith/internal/queue"
	"github.com/tomtom215/monolith/internal/telemetry"
)

const (
	// destinationUpdateInterval paces subscriber list mutations.
	destinationUpdateInterval = 2500 * time.Millisecond

	// destinationUpdateBurst bounds mutations applied per update tick.
	destinationUpdateBurst = 10

	// streamInterval paces broadcasts.
	streamInterval = 250 * time.Millisecond

	// streamBurst bounds readings per package.
	streamBurst = 100

	// defaultMaxQueued is the reading queue's overflow threshold.
	defaultMaxQueued = 500_000

	// dropCount is how many oldest readings go per overflow trim.
	dropCount = 1000

	// sendTimeout bounds each per-subscriber dial-and-write.
	sendTimeout = 2 * time.Second
)

// Destination identifies a stream subscriber by (address, port).
type Destination struct {
	Address string
	Port    uint16
}

func (d Destination) String() string {
	return net.JoinHostPort(d.Address, fmt.Sprint(d.Port))
}

type mutationOp int

const (
	opAdd mutationOp = iota
	opRemove
)

type mutation struct {
	op   mutationOp
	dest Destination
}

// Fanout is the stream broadcaster. One worker goroutine owns the
// subscriber list and the broadcast loop.
type Fanout struct {
	mutations *queue.Queue[mutation]
	readings  *queue.Queue[telemetry.Reading]

	destMu       sync.RWMutex
	destinations []Destination

	sequence  uint64
	maxQueued int

	running   atomic.Bool
	accepting atomic.Bool
	stop      chan struct{}
	wg        sync.WaitGroup

	sendFailureLog rate.Sometimes
}

// New returns a stopped Fanout.
func New() *Fanout {
	return &Fanout{
		mutations:      queue.New[mutation](),
		readings:       queue.New[telemetry.Reading](),
		maxQueued:      defaultMaxQueued,
		sendFailureLog: rate.Sometimes{First: 3, Interval: time.Minute},
	}
}

// Start launches the worker. Idempotent.
func (f *Fanout) Start() error {
	if f.running.Load() {
		logging.Warn().Msg("Stream fanout already started")
		return nil
	}
	f.stop = make(chan struct{})
	f.running.Store(true)
	f.accepting.Store(true)
	f.wg.Add(1)
	go f.worker()
	logging.Info().Msg("Stream fanout started")
	return nil
}

// Stop refuses further submissions and joins the worker. Queued
// readings that never made it into a package are discarded; fan-out
// carries no durable outbox. Idempotent.
func (f *Fanout) Stop() error {
	if !f.running.CompareAndSwap(true, false) {
		return nil
	}
	f.accepting.Store(false)
	close(f.stop)
	f.wg.Wait()
	logging.Info().Msg("Stream fanout stopped")
	return nil
}

// AddDestination queues a subscriber registration. Duplicate adds are
// ignored at application time.
func (f *Fanout) AddDestination(address string, port uint16) {
	f.mutations.Push(mutation{op: opAdd, dest: Destination{Address: address, Port: port}})
}

// RemoveDestination queues a subscriber removal. Removing an unknown
// subscriber is a no-op.
func (f *Fanout) RemoveDestination(address string, port uint16) {
	f.mutations.Push(mutation{op: opRemove, dest: Destination{Address: address, Port: port}})
}

// Submit queues reading for broadcast. Returns false when the fanout
// is not accepting.
func (f *Fanout) Submit(reading telemetry.Reading) bool {
	if !f.accepting.Load() {
		return false
	}
	f.readings.Push(reading)
	return true
}

// SubscriberCount returns the number of registered subscribers.
func (f *Fanout) SubscriberCount() int {
	f.destMu.RLock()
	defer f.destMu.RUnlock()
	return len(f.destinations)
}

// QueueDepth returns the number of readings waiting for broadcast.
func (f *Fanout) QueueDepth() int {
	return f.readings.Len()
}

func (f *Fanout) worker() {
	defer f.wg.Done()

	updateTicker := time.NewTicker(destinationUpdateInterval)
	defer updateTicker.Stop()
	streamTicker := time.NewTicker(streamInterval)
	defer streamTicker.Stop()

	for {
		select {
		case <-f.stop:
			return
		case <-updateTicker.C:
			f.applyMutations()
			f.trimOverflow()
		case <-streamTicker.C:
			f.broadcast()
			f.trimOverflow()
		}
	}
}

func (f *Fanout) applyMutations() {
	burst := f.mutations.PopN(destinationUpdateBurst)
	if len(burst) == 0 {
		return
	}

	f.destMu.Lock()
	for _, m := range burst {
		switch m.op {
		case opAdd:
			if f.findLocked(m.dest) < 0 {
				f.destinations = append(f.destinations, m.dest)
				logging.Info().Str("destination", m.dest.String()).Msg("Stream subscriber added")
			}
		case opRemove:
			if i := f.findLocked(m.dest); i >= 0 {
				f.destinations = append(f.destinations[:i], f.destinations[i+1:]...)
				logging.Info().Str("destination", m.dest.String()).Msg("Stream subscriber removed")
			}
		}
	}
	count := len(f.destinations)
	f.destMu.Unlock()

	metrics.StreamSubscribers.Set(float64(count))
}

// findLocked returns the index of dest or -1. Caller holds destMu.
func (f *Fanout) findLocked(dest Destination) int {
	for i, d := range f.destinations {
		if d == dest {
			return i
		}
	}
	return -1
}

func (f *Fanout) broadcast() {
	f.destMu.RLock()
	targets := make([]Destination, len(f.destinations))
	copy(targets, f.destinations)
	f.destMu.RUnlock()

	if len(targets) == 0 || f.readings.Len() == 0 {
		return
	}

	burst := f.readings.PopN(streamBurst)
	if len(burst) == 0 {
		return
	}

	f.sequence++
	pkg := telemetry.StreamPackage{
		TSMillis: time.Now().UnixMilli(),
		Sequence: f.sequence,
		Readings: burst,
	}
	payload, err := pkg.Encode()
	if err != nil {
		logging.Err(err).Uint64("sequence", pkg.Sequence).Msg("Failed to encode stream package")
		return
	}

	for _, dest := range targets {
		if err := send(dest, payload); err != nil {
			metrics.StreamSendFailures.Inc()
			f.sendFailureLog.Do(func() {
				logging.Err(err).Str("destination", dest.String()).Msg("Stream package send failed")
			})
		}
	}
	metrics.StreamPackages.Inc()
	metrics.SetQueueDepth("fanout", f.readings.Len())
}

// trimOverflow enforces the queue cap by discarding the oldest
// readings in dropCount batches.
func (f *Fanout) trimOverflow() {
	for f.readings.Len() >= f.maxQueued {
		dropped := f.readings.DropOldest(dropCount)
		if dropped == 0 {
			return
		}
		metrics.StreamOverflowDrops.Add(float64(dropped))
		logging.Warn().Int("dropped", dropped).Int("queued", f.readings.Len()).
			Msg("Stream queue overflow, dropped oldest readings")
	}
}

// send writes payload to dest on a fresh connection. The connection is
// scoped to this one send and closed unconditionally.
func send(dest Destination, payload []byte) error {
	conn, err := net.DialTimeout("tcp", dest.String(), sendTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", dest, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(sendTimeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	n, err := conn.Write(payload)
	if err != nil {
		return fmt.Errorf("write to %s: %w", dest, err)
	}
	if n != len(payload) {
		return fmt.Errorf("short write to %s: %d of %d bytes", dest, n, len(payload))
	}
	return nil
}
