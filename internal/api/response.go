// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

// Package api is the HTTP surface: reading submission, heartbeats, the
// registrar, stream subscription, and metric fetches. Every JSON
// response uses the same envelope, {"status": <code>, "data": <payload>},
// where data is a short status string or, for fetches, the raw result
// array.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/monolith/internal/logging"
)

// envelope is the wire shape of every JSON response.
type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// writeStatus responds with a quoted status string in data.
func writeStatus(w http.ResponseWriter, code int, message string) {
	quoted, err := json.Marshal(message)
	if err != nil {
		// A plain string cannot fail to marshal; keep the contract anyway.
		quoted = []byte(`"server error"`)
	}
	writeEnvelope(w, code, quoted)
}

// writeRaw responds with pre-encoded JSON in data. The caller
// guarantees payload is valid JSON (fetch results are built by the
// store's row encoder).
func writeRaw(w http.ResponseWriter, code int, payload []byte) {
	writeEnvelope(w, code, payload)
}

func writeEnvelope(w http.ResponseWriter, code int, data json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(envelope{Status: code, Data: data}); err != nil {
		logging.Err(err).Msg("Failed to write response envelope")
	}
}

// Canned responses used across handlers.
func writeSuccess(w http.ResponseWriter)     { writeStatus(w, http.StatusOK, "success") }
func writeBadRequest(w http.ResponseWriter)  { writeStatus(w, http.StatusBadRequest, "bad request") }
func writeServerError(w http.ResponseWriter) { writeStatus(w, http.StatusInternalServerError, "server error") }
func writeTimeout(w http.ResponseWriter)     { writeStatus(w, http.StatusGatewayTimeout, "timeout") }

func writeNotImplemented(w http.ResponseWriter) {
	writeStatus(w, http.StatusNotImplemented, "metric persistence disabled")
}
