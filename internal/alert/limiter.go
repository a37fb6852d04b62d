// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

// Package alert rate-limits operator alerts raised by rule scripts and
// forwards the survivors to an SMS backend. Each alert id has its own
// cooldown; a lifetime cap bounds total sends across all ids.
package alert

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/monolith/internal/clock"
	"github.com/tomtom215/monolith/internal/logging"
	"github.com/tomtom215/monolith/internal/metrics"
)

// DefaultCooldownSeconds is the per-id quiet period applied when the
// configuration does not set one.
const DefaultCooldownSeconds = 30.0

// LimiterConfig tunes a Limiter.
type LimiterConfig struct {
	// CooldownSeconds is the minimum monotonic-clock seconds between
	// two successful sends for the same id. Zero means no cooldown.
	CooldownSeconds float64

	// MaxTotalSends caps backend sends across all ids for the life of
	// the process. Zero means unlimited.
	MaxTotalSends uint64

	// Backend receives the surviving alerts. When nil, alerts are
	// logged and dropped.
	Backend SmsBackend

	// Clock defaults to the real clock.
	Clock clock.Clock
}

// record tracks per-id limiter state. lastSend is written only after a
// successful backend send, so a failed send does not arm the cooldown.
type record struct {
	lastSend time.Time
	numSends uint64
}

// Limiter enforces the per-id cooldown and the lifetime cap.
// Trigger never returns an error and never panics; all failure modes
// end in a logged suppression.
type Limiter struct {
	cooldown time.Duration
	maxTotal uint64
	backend  SmsBackend
	clock    clock.Clock

	mu      sync.Mutex
	records map[int]*record
	total   uint64

	failureLog rate.Sometimes
}

// NewLimiter builds a Limiter from cfg.
func NewLimiter(cfg LimiterConfig) *Limiter {
	c := cfg.Clock
	if c == nil {
		c = clock.Real{}
	}
	return &Limiter{
		cooldown:   time.Duration(cfg.CooldownSeconds * float64(time.Second)),
		maxTotal:   cfg.MaxTotalSends,
		backend:    cfg.Backend,
		clock:      c,
		records:    make(map[int]*record),
		failureLog: rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

// Trigger attempts to send message for the given alert id. The send is
// suppressed when the id is inside its cooldown window or the lifetime
// cap is reached. The backend call happens outside the limiter mutex.
func (l *Limiter) Trigger(id int, message string) {
	now := l.clock.Now()

	l.mu.Lock()
	rec, known := l.records[id]
	if known && now.Sub(rec.lastSend) <= l.cooldown {
		l.mu.Unlock()
		metrics.AlertSuppressions.WithLabelValues("cooldown").Inc()
		logging.Debug().Int("alert_id", id).Msg("Alert suppressed by cooldown")
		return
	}
	var prospective uint64 = 1
	if known {
		prospective = rec.numSends + 1
	}
	l.total++
	total := l.total
	l.mu.Unlock()

	if l.maxTotal > 0 && total > l.maxTotal {
		metrics.AlertSuppressions.WithLabelValues("max_sends").Inc()
		logging.Warn().Int("alert_id", id).Uint64("max_total_sends", l.maxTotal).
			Msg("Alert suppressed: lifetime send cap reached")
		return
	}

	if l.backend == nil {
		metrics.AlertSuppressions.WithLabelValues("no_backend").Inc()
		logging.Info().Int("alert_id", id).Str("message", message).
			Msg("Alert dropped: no SMS backend configured")
		return
	}

	if err := l.backend.Send(message); err != nil {
		// A failed send does not arm the cooldown or consume the cap;
		// the next trigger may retry.
		l.mu.Lock()
		l.total--
		l.mu.Unlock()
		metrics.AlertSuppressions.WithLabelValues("backend_error").Inc()
		l.failureLog.Do(func() {
			logging.Err(err).Int("alert_id", id).Msg("SMS backend send failed")
		})
		return
	}

	l.mu.Lock()
	l.records[id] = &record{lastSend: now, numSends: prospective}
	l.mu.Unlock()
	metrics.AlertSends.Inc()
	logging.Info().Int("alert_id", id).Uint64("sends_for_id", prospective).Msg("Alert sent")
}

// TotalSends returns the number of sends counted against the lifetime
// cap. Reported by the console stats command.
func (l *Limiter) TotalSends() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
