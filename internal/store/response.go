// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

package store

import (
	"sync/atomic"
	"time"
)

// DefaultFetchTimeout is how long fetch callers wait for the worker
// before giving up and returning a gateway timeout.
const DefaultFetchTimeout = 30 * time.Second

// awaitPollInterval is the completion poll period inside Await.
const awaitPollInterval = 10 * time.Millisecond

// Response is the handle a fetch caller hands to the store. The worker
// writes the result and then sets complete; the caller polls complete
// under a deadline and sets timeout on expiry. Whichever flag is set
// first wins: a worker that reaches a timed-out request must leave the
// handle untouched, and a caller that sees complete reads the result.
//
// The atomics order the result write before the complete load, so no
// further locking is needed.
type Response struct {
	result   []byte
	complete atomic.Bool
	timeout  atomic.Bool
}

// NewResponse returns an empty handle.
func NewResponse() *Response {
	return &Response{}
}

// Await blocks until the worker completes the request or d elapses.
// On completion it returns (result, true); on expiry it marks the
// handle timed out and returns (nil, false).
func (r *Response) Await(d time.Duration) ([]byte, bool) {
	deadline := time.Now().Add(d)
	for {
		if r.complete.Load() {
			return r.result, true
		}
		if time.Now().After(deadline) {
			r.timeout.Store(true)
			// The worker may have completed between the poll and the
			// timeout store; honor its result if so.
			if r.complete.Load() {
				return r.result, true
			}
			return nil, false
		}
		time.Sleep(awaitPollInterval)
	}
}

// TimedOut reports whether the caller abandoned this handle.
func (r *Response) TimedOut() bool {
	return r.timeout.Load()
}

// deliver stores result and marks the handle complete, unless the
// caller already timed out.
func (r *Response) deliver(result []byte) {
	if r.timeout.Load() {
		return
	}
	r.result = result
	r.complete.Store(true)
}
