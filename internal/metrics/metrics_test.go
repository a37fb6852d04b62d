// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

package metrics

import (
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		route  string
		status int
	}{
		{name: "successful submit", method: "POST", route: "/metric/submit/{reading}", status: 200},
		{name: "rejected submit", method: "POST", route: "/metric/submit/{reading}", status: 400},
		{name: "fetch", method: "GET", route: "/metric/fetch/{node}/sensors", status: 200},
		{name: "detached store", method: "GET", route: "/metric/fetch/nodes", status: 501},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := strconv.Itoa(tt.status)
			before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(tt.method, tt.route, status))
			RecordAPIRequest(tt.method, tt.route, tt.status, 5*time.Millisecond)
			after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(tt.method, tt.route, status))
			if after != before+1 {
				t.Errorf("counter went %v -> %v, want +1", before, after)
			}
		})
	}
}

func TestRecordStoreRequest(t *testing.T) {
	t.Run("success does not count an error", func(t *testing.T) {
		before := testutil.ToFloat64(StoreRequestErrors.WithLabelValues("range"))
		RecordStoreRequest("range", time.Millisecond, nil)
		after := testutil.ToFloat64(StoreRequestErrors.WithLabelValues("range"))
		if after != before {
			t.Errorf("error counter went %v -> %v on success", before, after)
		}
	})

	t.Run("failure counts an error", func(t *testing.T) {
		before := testutil.ToFloat64(StoreRequestErrors.WithLabelValues("range"))
		RecordStoreRequest("range", time.Millisecond, errors.New("disk full"))
		after := testutil.ToFloat64(StoreRequestErrors.WithLabelValues("range"))
		if after != before+1 {
			t.Errorf("error counter went %v -> %v, want +1", before, after)
		}
	})
}

func TestSetQueueDepth(t *testing.T) {
	SetQueueDepth("pipeline", 42)
	if got := testutil.ToFloat64(QueueDepth.WithLabelValues("pipeline")); got != 42 {
		t.Errorf("queue depth = %v, want 42", got)
	}
	SetQueueDepth("pipeline", 0)
	if got := testutil.ToFloat64(QueueDepth.WithLabelValues("pipeline")); got != 0 {
		t.Errorf("queue depth = %v, want 0", got)
	}
}

func TestIngestDropReasons(t *testing.T) {
	for _, reason := range []string{"unknown_node", "unknown_sensor", "decode", "attempts_exhausted"} {
		before := testutil.ToFloat64(IngestDropped.WithLabelValues(reason))
		IngestDropped.WithLabelValues(reason).Inc()
		if got := testutil.ToFloat64(IngestDropped.WithLabelValues(reason)); got != before+1 {
			t.Errorf("IngestDropped[%s] = %v, want %v", reason, got, before+1)
		}
	}
}

func TestConcurrentMetricRecording(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 100

	before := testutil.ToFloat64(IngestAccepted)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				IngestAccepted.Inc()
				SetQueueDepth("fanout", j)
				RecordAPIRequest("POST", "/metric/heartbeat/{heartbeat}", 200, time.Microsecond)
			}
		}()
	}
	wg.Wait()

	after := testutil.ToFloat64(IngestAccepted)
	if after != before+goroutines*perGoroutine {
		t.Errorf("IngestAccepted = %v, want %v", after, before+goroutines*perGoroutine)
	}
}
