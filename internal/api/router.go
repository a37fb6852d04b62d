// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// submitRateLimit bounds submission-path requests per IP per second.
	submitRateLimit = 300

	// fetchRateLimit bounds fetch-path requests per IP per second.
	fetchRateLimit = 60
)

// NewRouter builds the full route table around h.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/", h.Root)
	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Submission group: high-volume sensor traffic.
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(submitRateLimit, time.Second, httprate.WithKeyFuncs(httprate.KeyByIP)))

		r.Get("/metric/submit/{reading}", h.SubmitReading)
		r.Get("/metric/heartbeat/{heartbeat}", h.SubmitHeartbeat)
		r.Get("/metric/stream/add/{address}/{port}", h.StreamAdd)
		r.Get("/metric/stream/delete/{address}/{port}", h.StreamDelete)
		r.Get("/registrar/probe/{key}", h.RegistrarProbe)
		r.Get("/registrar/add/{key}/{value}", h.RegistrarAdd)
		r.Get("/registrar/fetch/{key}", h.RegistrarFetch)
		r.Get("/registrar/delete/{key}", h.RegistrarDelete)
	})

	// Fetch group: database-backed queries get a tighter limit.
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(fetchRateLimit, time.Second, httprate.WithKeyFuncs(httprate.KeyByIP)))

		r.Get("/metric/fetch/nodes", h.FetchNodes)
		r.Get("/metric/fetch/{node}/sensors", h.FetchSensors)
		r.Get("/metric/fetch/{node}/range/{start}/{end}", h.FetchRange)
		r.Get("/metric/fetch/{node}/after/{ts}", h.FetchAfter)
		r.Get("/metric/fetch/{node}/before/{ts}", h.FetchBefore)
	})

	return r
}
