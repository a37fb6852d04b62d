// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

// Package pipeline is the ingest front door. Submitted readings are
// queued, validated against the registrar, and forked to the metric
// store, the rule engine, the heartbeat ledger, and the stream fanout.
// Validation failures drop the reading; a refused fan-out hand-off is
// retried on later ticks up to a fixed attempt budget.
package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/monolith/internal/kv"
	"github.com/tomtom215/monolith/internal/logging"
	"github.com/tomtom215/monolith/internal/metrics"
	"github.com/tomtom215/monolith/internal/queue"
	"github.com/tomtom215/monolith/internal/registry"
	"github.com/tomtom215/monolith/internal/telemetry"
)

const (
	// tickInterval is the ingest worker's wake period.
	tickInterval = 500 * time.Millisecond

	// maxPerBurst bounds readings processed per tick.
	maxPerBurst = 100

	// maxSubmissionAttempts bounds fan-out hand-off retries per reading.
	maxSubmissionAttempts = 3
)

// ReadingStore persists validated readings. Implemented by store.Store.
type ReadingStore interface {
	Store(reading telemetry.Reading) bool
}

// RuleSink evaluates validated readings. Implemented by rules.Engine.
type RuleSink interface {
	Submit(reading telemetry.Reading) bool
}

// HeartbeatSink records node liveness. Implemented by heartbeat.Ledger.
type HeartbeatSink interface {
	Observe(id string)
}

// Broadcaster streams validated readings. Implemented by fanout.Fanout.
type Broadcaster interface {
	Submit(reading telemetry.Reading) bool
}

// Config wires the pipeline's downstream components. Registrar and
// Fanout are required; the rest are optional and skipped when nil.
type Config struct {
	Registrar  *kv.Store
	Store      ReadingStore
	Rules      RuleSink
	Heartbeats HeartbeatSink
	Fanout     Broadcaster
}

type entry struct {
	reading  telemetry.Reading
	attempts int
}

// Pipeline is the queued ingest worker.
type Pipeline struct {
	cfg     Config
	entries *queue.Queue[entry]

	running   atomic.Bool
	accepting atomic.Bool
	stop      chan struct{}
	wg        sync.WaitGroup
}

// New returns a stopped pipeline.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		entries: queue.New[entry](),
	}
}

// Start launches the ingest worker. Idempotent.
func (p *Pipeline) Start() error {
	if p.running.Load() {
		logging.Warn().Msg("Ingest pipeline already started")
		return nil
	}
	p.stop = make(chan struct{})
	p.running.Store(true)
	p.accepting.Store(true)
	p.wg.Add(1)
	go p.worker()
	logging.Info().Msg("Ingest pipeline started")
	return nil
}

// Stop refuses further submissions, joins the worker, then hands the
// residual queue to the store, fanout, and rules once each without
// revalidation. The queue is snapshotted and released before any
// downstream call, so a slow consumer cannot hold the pipeline's lock.
// Idempotent.
func (p *Pipeline) Stop() error {
	if !p.running.CompareAndSwap(true, false) {
		return nil
	}
	p.accepting.Store(false)
	close(p.stop)
	p.wg.Wait()

	residual := p.entries.DrainAll()
	for _, e := range residual {
		if p.cfg.Store != nil {
			p.cfg.Store.Store(e.reading)
		}
		if p.cfg.Fanout != nil {
			p.cfg.Fanout.Submit(e.reading)
		}
		if p.cfg.Rules != nil {
			p.cfg.Rules.Submit(e.reading)
		}
	}
	if len(residual) > 0 {
		logging.Info().Int("drained", len(residual)).Msg("Ingest pipeline drained residual readings")
	}

	logging.Info().Msg("Ingest pipeline stopped")
	return nil
}

// Submit queues reading for validation and fan-out. Returns false when
// the pipeline is not accepting.
func (p *Pipeline) Submit(reading telemetry.Reading) bool {
	if !p.accepting.Load() {
		return false
	}
	p.entries.Push(entry{reading: reading})
	return true
}

// QueueDepth returns the number of readings awaiting processing.
func (p *Pipeline) QueueDepth() int {
	return p.entries.Len()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.processBurst()
			metrics.SetQueueDepth("pipeline", p.entries.Len())
		}
	}
}

// processBurst validates and forwards one burst. Readings refused by
// the fanout are collected and re-enqueued at the tail after the burst,
// so a stalled fanout cannot reorder the rest of the batch.
func (p *Pipeline) processBurst() {
	burst := p.entries.PopN(maxPerBurst)
	if len(burst) == 0 {
		return
	}

	var requeue []entry
	for _, e := range burst {
		e.attempts++
		if !p.validate(e.reading) {
			continue
		}
		metrics.IngestAccepted.Inc()

		if p.cfg.Store != nil && !p.cfg.Store.Store(e.reading) {
			logging.Warn().Str("node", e.reading.NodeID).Msg("Metric store refused reading")
		}
		if p.cfg.Rules != nil && !p.cfg.Rules.Submit(e.reading) {
			logging.Warn().Str("node", e.reading.NodeID).Msg("Rule engine refused reading")
		}
		if p.cfg.Heartbeats != nil {
			p.cfg.Heartbeats.Observe(e.reading.NodeID)
		}
		if p.cfg.Fanout != nil && !p.cfg.Fanout.Submit(e.reading) {
			if e.attempts >= maxSubmissionAttempts {
				metrics.IngestDropped.WithLabelValues("fanout_refused").Inc()
				logging.Warn().Str("node", e.reading.NodeID).Int("attempts", e.attempts).
					Msg("Reading dropped, fan-out refused every attempt")
				continue
			}
			metrics.IngestRequeued.Inc()
			requeue = append(requeue, e)
		}
	}

	for _, e := range requeue {
		p.entries.Push(e)
	}
}

// validate checks the reading's node against the registrar and the
// sensor against the node's sensor list.
func (p *Pipeline) validate(reading telemetry.Reading) bool {
	blob, err := p.cfg.Registrar.Get(reading.NodeID)
	if err != nil {
		metrics.IngestDropped.WithLabelValues("unknown_node").Inc()
		logging.Warn().Err(err).Str("node", reading.NodeID).
			Msg("Reading dropped, node not registered")
		return false
	}
	node, err := registry.DecodeNode(blob)
	if err != nil {
		metrics.IngestDropped.WithLabelValues("not_a_node").Inc()
		logging.Warn().Err(err).Str("node", reading.NodeID).
			Msg("Reading dropped, registered blob is not a node")
		return false
	}
	if !node.HasSensor(reading.SensorID) {
		metrics.IngestDropped.WithLabelValues("unknown_sensor").Inc()
		logging.Warn().Str("node", reading.NodeID).Str("sensor", reading.SensorID).
			Msg("Reading dropped, sensor not listed on node")
		return false
	}
	return true
}
