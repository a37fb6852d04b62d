// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

// Package heartbeat records the last-seen wall-clock time per node and
// answers age queries. The ingest pipeline stamps a node on every
// accepted reading; the /metric/heartbeat endpoint stamps it directly.
package heartbeat

import (
	"sync"
	"time"

	"github.com/tomtom215/monolith/internal/clock"
)

// Ledger is a thread-safe map of node id to last contact time.
type Ledger struct {
	mu    sync.Mutex
	seen  map[string]time.Time
	clock clock.Clock
}

// NewLedger returns an empty ledger on the real clock.
func NewLedger() *Ledger {
	return NewLedgerWithClock(clock.Real{})
}

// NewLedgerWithClock returns an empty ledger on the given clock.
func NewLedgerWithClock(c clock.Clock) *Ledger {
	return &Ledger{
		seen:  make(map[string]time.Time),
		clock: c,
	}
}

// Observe stamps id with the current wall-clock time.
func (l *Ledger) Observe(id string) {
	now := l.clock.Now()
	l.mu.Lock()
	l.seen[id] = now
	l.mu.Unlock()
}

// SecondsSinceContact returns the whole seconds since id was last
// stamped. The second return is false when id has never been stamped
// or its stamp lies in the future (a clock step between stamp and
// query).
func (l *Ledger) SecondsSinceContact(id string) (uint64, bool) {
	now := l.clock.Now()
	l.mu.Lock()
	last, ok := l.seen[id]
	l.mu.Unlock()
	if !ok || last.IsZero() || last.After(now) {
		return 0, false
	}
	return uint64(now.Sub(last) / time.Second), true
}

// Count returns the number of nodes with a recorded heartbeat.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// Snapshot returns a copy of the ledger, for the console stats report.
func (l *Ledger) Snapshot() map[string]time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]time.Time, len(l.seen))
	for id, t := range l.seen {
		out[id] = t
	}
	return out
}
