// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

// Package store persists accepted readings to a SQLite metrics table
// and answers range queries over it. All access is funneled through a
// request queue drained by a single worker, so callers never block on
// the database: submission is a queue push, and fetch callers wait on
// a Response handle with their own deadline.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/tomtom215/monolith/internal/clock"
	"github.com/tomtom215/monolith/internal/logging"
	"github.com/tomtom215/monolith/internal/metrics"
	"github.com/tomtom215/monolith/internal/queue"
	"github.com/tomtom215/monolith/internal/telemetry"
)

const (
	// tickInterval is the worker's sleep between iterations.
	tickInterval = 100 * time.Millisecond

	// maxBurst bounds the requests processed per iteration.
	maxBurst = 100

	// weeklyPurgeWindow is the default retention when no explicit
	// expiration is configured.
	weeklyPurgeWindow = 7 * 24 * time.Hour

	// expiryCheckInterval is how often a configured expiration window
	// is enforced.
	expiryCheckInterval = 30 * time.Second
)

// createTableSQL is the metrics schema. The timestamp column holds the
// full 64-bit Unix timestamp; SQLite INTEGER storage is 8 bytes, and
// the insert binds an int64, so the table is good past 2038.
const createTableSQL = `CREATE TABLE IF NOT EXISTS metrics(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER,
	node TEXT,
	sensor TEXT,
	value REAL)`

// ErrNotStarted is returned by Start when the database cannot be
// opened.
var ErrNotStarted = errors.New("store: not started")

// Config tunes a Store.
type Config struct {
	// Path is the SQLite database file.
	Path string

	// ExpirationSeconds purges rows older than this window. Zero
	// selects the default weekly purge.
	ExpirationSeconds uint64

	// Clock defaults to the real clock.
	Clock clock.Clock
}

// Store is the request-queued metrics database.
type Store struct {
	cfg   Config
	clock clock.Clock

	db       *sql.DB
	requests *queue.Queue[request]

	running   atomic.Bool
	accepting atomic.Bool
	stop      chan struct{}
	wg        sync.WaitGroup

	lastPurge time.Time
}

// New builds a Store; Start opens the database.
func New(cfg Config) *Store {
	c := cfg.Clock
	if c == nil {
		c = clock.Real{}
	}
	return &Store{
		cfg:      cfg,
		clock:    c,
		requests: queue.New[request](),
	}
}

// Start opens the database, ensures the schema, runs a pre-flight
// purge, and launches the worker. Fails if the file cannot be opened.
func (s *Store) Start() error {
	if s.running.Load() {
		logging.Warn().Msg("Metric store already started")
		return nil
	}

	db, err := sql.Open("sqlite", s.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open metric db at %q: %w", s.cfg.Path, err)
	}
	// The single worker is the only writer; one connection avoids
	// SQLITE_BUSY between its statements.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		closeQuietly(db)
		return fmt.Errorf("failed to open metric db at %q: %w", s.cfg.Path, err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		closeQuietly(db)
		return fmt.Errorf("failed to create metrics table: %w", err)
	}

	s.db = db
	s.purge()
	s.lastPurge = s.clock.Now()
	s.stop = make(chan struct{})
	s.running.Store(true)
	s.accepting.Store(true)
	s.wg.Add(1)
	go s.worker()

	logging.Info().Str("path", s.cfg.Path).Msg("Metric store started")
	return nil
}

// Stop drains no further requests, joins the worker, and closes the
// database. Requests still queued when Stop is called are completed by
// the worker's final sweep. Idempotent; a Stop on a never-started
// store is a no-op.
func (s *Store) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.accepting.Store(false)
	close(s.stop)
	s.wg.Wait()

	// Final sweep so accepted requests are not lost.
	for {
		burst := s.requests.PopN(maxBurst)
		if len(burst) == 0 {
			break
		}
		for _, req := range burst {
			s.process(req)
		}
	}

	err := s.db.Close()
	s.db = nil
	logging.Info().Msg("Metric store stopped")
	return err
}

// Store queues reading for insertion. Returns false when the store is
// not accepting.
func (s *Store) Store(reading telemetry.Reading) bool {
	return s.submit(&storeRequest{reading: reading})
}

// FetchNodes queues a distinct-node query answered through resp.
func (s *Store) FetchNodes(resp *Response) bool {
	return s.submit(&fetchNodesRequest{resp: resp})
}

// FetchSensors queues a distinct-sensor query for node.
func (s *Store) FetchSensors(resp *Response, node string) bool {
	return s.submit(&fetchSensorsRequest{resp: resp, node: node})
}

// FetchRange queues a query for readings of node with
// start < timestamp < end. Requires end > start.
func (s *Store) FetchRange(resp *Response, node string, start, end int64) bool {
	if end <= start {
		return false
	}
	return s.submit(&fetchRangeRequest{resp: resp, node: node, start: start, end: end})
}

// FetchAfter queues a query for readings of node newer than ts.
func (s *Store) FetchAfter(resp *Response, node string, ts int64) bool {
	return s.submit(&fetchAfterRequest{resp: resp, node: node, ts: ts})
}

// FetchBefore queues a query for readings of node older than ts.
func (s *Store) FetchBefore(resp *Response, node string, ts int64) bool {
	return s.submit(&fetchBeforeRequest{resp: resp, node: node, ts: ts})
}

// QueueDepth returns the number of pending requests.
func (s *Store) QueueDepth() int {
	return s.requests.Len()
}

func (s *Store) submit(req request) bool {
	if !s.accepting.Load() {
		return false
	}
	s.requests.Push(req)
	return true
}

func (s *Store) worker() {
	defer s.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.purgeIfDue()
			burst := s.requests.PopN(maxBurst)
			for _, req := range burst {
				s.process(req)
			}
			metrics.SetQueueDepth("store", s.requests.Len())
		}
	}
}

// purgeIfDue enforces the retention window. With no configured
// expiration, rows older than seven days are removed once a week; a
// configured expiration is checked every 30 seconds.
func (s *Store) purgeIfDue() {
	now := s.clock.Now()
	interval := weeklyPurgeWindow
	if s.cfg.ExpirationSeconds > 0 {
		interval = expiryCheckInterval
	}
	if now.Sub(s.lastPurge) < interval {
		return
	}
	s.purge()
	s.lastPurge = now
}

func (s *Store) purge() {
	window := weeklyPurgeWindow
	if s.cfg.ExpirationSeconds > 0 {
		window = time.Duration(s.cfg.ExpirationSeconds) * time.Second
	}
	cutoff := s.clock.Now().Add(-window).Unix()

	res, err := s.db.Exec(`DELETE FROM metrics WHERE timestamp < ?`, cutoff)
	if err != nil {
		logging.Err(err).Msg("Metric purge failed")
		return
	}
	metrics.StorePurges.Inc()
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		logging.Info().Int64("rows", n).Int64("cutoff", cutoff).Msg("Purged expired metrics")
	}
}

func (s *Store) process(req request) {
	start := time.Now()
	err := req.execute(s)
	metrics.RecordStoreRequest(req.kind(), time.Since(start), err)
	if err != nil {
		logging.Err(err).Str("request", req.kind()).Msg("Metric store request failed")
	}
}

func closeQuietly(db *sql.DB) {
	if err := db.Close(); err != nil {
		logging.Err(err).Msg("Error closing metric db")
	}
}
