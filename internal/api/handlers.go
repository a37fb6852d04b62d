// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/monolith/internal/fanout"
	"github.com/tomtom215/monolith/internal/heartbeat"
	"github.com/tomtom215/monolith/internal/kv"
	"github.com/tomtom215/monolith/internal/logging"
	"github.com/tomtom215/monolith/internal/pipeline"
	"github.com/tomtom215/monolith/internal/registry"
	"github.com/tomtom215/monolith/internal/store"
	"github.com/tomtom215/monolith/internal/telemetry"
)

// Handler carries the wired components behind the route table.
type Handler struct {
	instanceName string
	version      string

	pipeline   *pipeline.Pipeline
	heartbeats *heartbeat.Ledger
	registrar  *kv.Store
	fanout     *fanout.Fanout

	// metrics is nil when metric persistence is disabled; fetch
	// endpoints then answer 501.
	metrics *store.Store

	// ready reports whether the supervisor finished bringing the
	// component chain up.
	ready func() bool
}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	InstanceName string
	Version      string
	Pipeline     *pipeline.Pipeline
	Heartbeats   *heartbeat.Ledger
	Registrar    *kv.Store
	Fanout       *fanout.Fanout
	Metrics      *store.Store
	Ready        func() bool
}

// NewHandler builds a Handler from cfg.
func NewHandler(cfg HandlerConfig) *Handler {
	ready := cfg.Ready
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Handler{
		instanceName: cfg.InstanceName,
		version:      cfg.Version,
		pipeline:     cfg.Pipeline,
		heartbeats:   cfg.Heartbeats,
		registrar:    cfg.Registrar,
		fanout:       cfg.Fanout,
		metrics:      cfg.Metrics,
		ready:        ready,
	}
}

// pathValue returns the named chi parameter, URL-unescaped. Submission
// payloads arrive escaped inside the path.
func pathValue(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if unescaped, err := url.PathUnescape(raw); err == nil {
		return unescaped
	}
	return raw
}

// Root identifies the instance.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><body>%s (monolith %s)</body></html>", h.instanceName, h.version)
}

// Health answers 200 once the supervisor reports the component chain
// started, 503 before.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.ready() {
		writeStatus(w, http.StatusServiceUnavailable, "starting")
		return
	}
	writeStatus(w, http.StatusOK, "ok")
}

// SubmitReading decodes and queues one reading.
func (h *Handler) SubmitReading(w http.ResponseWriter, r *http.Request) {
	reading, err := telemetry.DecodeReading([]byte(pathValue(r, "reading")))
	if err != nil {
		logging.Debug().Err(err).Msg("Rejected malformed reading")
		writeBadRequest(w)
		return
	}
	if !h.pipeline.Submit(reading) {
		writeServerError(w)
		return
	}
	writeSuccess(w)
}

// SubmitHeartbeat decodes one heartbeat and stamps the ledger.
func (h *Handler) SubmitHeartbeat(w http.ResponseWriter, r *http.Request) {
	hb, err := telemetry.DecodeHeartbeat([]byte(pathValue(r, "heartbeat")))
	if err != nil {
		logging.Debug().Err(err).Msg("Rejected malformed heartbeat")
		writeBadRequest(w)
		return
	}
	h.heartbeats.Observe(hb.NodeID)
	writeSuccess(w)
}

// StreamAdd registers a stream subscriber.
func (h *Handler) StreamAdd(w http.ResponseWriter, r *http.Request) {
	address, port, ok := streamTarget(r)
	if !ok {
		writeBadRequest(w)
		return
	}
	h.fanout.AddDestination(address, port)
	writeSuccess(w)
}

// StreamDelete removes a stream subscriber.
func (h *Handler) StreamDelete(w http.ResponseWriter, r *http.Request) {
	address, port, ok := streamTarget(r)
	if !ok {
		writeBadRequest(w)
		return
	}
	h.fanout.RemoveDestination(address, port)
	writeSuccess(w)
}

// streamTarget parses the {address}/{port} pair. Port zero is refused.
func streamTarget(r *http.Request) (string, uint16, bool) {
	address := pathValue(r, "address")
	port, err := strconv.ParseUint(pathValue(r, "port"), 10, 16)
	if err != nil || port == 0 || address == "" {
		return "", 0, false
	}
	return address, uint16(port), true
}

// RegistrarProbe reports whether a key is registered.
func (h *Handler) RegistrarProbe(w http.ResponseWriter, r *http.Request) {
	exists, err := h.registrar.Exists(pathValue(r, "key"))
	if err != nil {
		writeServerError(w)
		return
	}
	if exists {
		writeStatus(w, http.StatusOK, "found")
		return
	}
	writeStatus(w, http.StatusOK, "not found")
}

// RegistrarAdd validates the blob as a node or controller and stores
// it under the key.
func (h *Handler) RegistrarAdd(w http.ResponseWriter, r *http.Request) {
	key := pathValue(r, "key")
	value := pathValue(r, "value")

	if _, _, err := registry.DecodeEntry([]byte(value)); err != nil {
		logging.Debug().Err(err).Str("key", key).Msg("Rejected malformed registrar entry")
		writeBadRequest(w)
		return
	}
	if err := h.registrar.Put(key, []byte(value)); err != nil {
		logging.Err(err).Str("key", key).Msg("Registrar put failed")
		writeServerError(w)
		return
	}
	writeSuccess(w)
}

// RegistrarFetch returns the stored blob verbatim. A missing key is not
// an error: the prober contract answers 200 with "not found".
func (h *Handler) RegistrarFetch(w http.ResponseWriter, r *http.Request) {
	key := pathValue(r, "key")
	blob, err := h.registrar.Get(key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			writeStatus(w, http.StatusOK, "not found")
			return
		}
		writeServerError(w)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(blob); err != nil {
		logging.Err(err).Str("key", key).Msg("Failed to write registrar blob")
	}
}

// RegistrarDelete removes a key.
func (h *Handler) RegistrarDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.registrar.Delete(pathValue(r, "key")); err != nil {
		writeServerError(w)
		return
	}
	writeSuccess(w)
}

// FetchNodes lists distinct nodes with stored readings.
func (h *Handler) FetchNodes(w http.ResponseWriter, r *http.Request) {
	h.fetch(w, func(resp *store.Response) bool {
		return h.metrics.FetchNodes(resp)
	})
}

// FetchSensors lists distinct sensors for a node.
func (h *Handler) FetchSensors(w http.ResponseWriter, r *http.Request) {
	node := pathValue(r, "node")
	h.fetch(w, func(resp *store.Response) bool {
		return h.metrics.FetchSensors(resp, node)
	})
}

// FetchRange returns readings with start < ts < end.
func (h *Handler) FetchRange(w http.ResponseWriter, r *http.Request) {
	node := pathValue(r, "node")
	start, err1 := strconv.ParseInt(pathValue(r, "start"), 10, 64)
	end, err2 := strconv.ParseInt(pathValue(r, "end"), 10, 64)
	if err1 != nil || err2 != nil || end <= start {
		writeBadRequest(w)
		return
	}
	h.fetch(w, func(resp *store.Response) bool {
		return h.metrics.FetchRange(resp, node, start, end)
	})
}

// FetchAfter returns readings newer than ts. A timestamp in the future
// can never match and is refused.
func (h *Handler) FetchAfter(w http.ResponseWriter, r *http.Request) {
	node := pathValue(r, "node")
	ts, err := strconv.ParseInt(pathValue(r, "ts"), 10, 64)
	if err != nil || ts > time.Now().Unix() {
		writeBadRequest(w)
		return
	}
	h.fetch(w, func(resp *store.Response) bool {
		return h.metrics.FetchAfter(resp, node, ts)
	})
}

// FetchBefore returns readings older than ts.
func (h *Handler) FetchBefore(w http.ResponseWriter, r *http.Request) {
	node := pathValue(r, "node")
	ts, err := strconv.ParseInt(pathValue(r, "ts"), 10, 64)
	if err != nil || ts > time.Now().Unix() {
		writeBadRequest(w)
		return
	}
	h.fetch(w, func(resp *store.Response) bool {
		return h.metrics.FetchBefore(resp, node, ts)
	})
}

// fetch runs one store query through the handle protocol: 501 when the
// store is detached, 500 when the queue refuses, 504 when the worker
// misses the deadline.
func (h *Handler) fetch(w http.ResponseWriter, submit func(*store.Response) bool) {
	if h.metrics == nil {
		writeNotImplemented(w)
		return
	}
	resp := store.NewResponse()
	if !submit(resp) {
		writeServerError(w)
		return
	}
	result, ok := resp.Await(store.DefaultFetchTimeout)
	if !ok {
		writeTimeout(w)
		return
	}
	writeRaw(w, http.StatusOK, result)
}
