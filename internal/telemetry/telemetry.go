// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

// Package telemetry defines the wire types exchanged with sensor nodes
// and stream subscribers: the Reading sample, the Heartbeat liveness
// signal, and the StreamPackage burst envelope.
//
// Decoding is strict. Unknown fields, missing required fields, and type
// mismatches are all decode errors; the HTTP adapter maps them to 400.
package telemetry

import (
	"bytes"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var validate = validator.New()

// Reading is one timestamped scalar sample from one sensor on one node.
// Immutable after creation.
type Reading struct {
	TSSeconds int64   `json:"ts_seconds"`
	NodeID    string  `json:"node_id" validate:"required"`
	SensorID  string  `json:"sensor_id" validate:"required"`
	Value     float64 `json:"value"`
}

// Heartbeat is a node's liveness signal.
type Heartbeat struct {
	NodeID string `json:"node_id" validate:"required"`
}

// StreamPackage is the burst envelope broadcast to stream subscribers.
// Sequence is strictly monotonic within a process lifetime.
type StreamPackage struct {
	TSMillis int64     `json:"ts_ms"`
	Sequence uint64    `json:"sequence"`
	Readings []Reading `json:"readings"`
}

// DecodeReading parses data as a Reading. Unknown fields and missing
// node or sensor ids are errors.
func DecodeReading(data []byte) (Reading, error) {
	var r Reading
	if err := decodeStrict(data, &r); err != nil {
		return Reading{}, fmt.Errorf("malformed reading: %w", err)
	}
	if err := validate.Struct(&r); err != nil {
		return Reading{}, fmt.Errorf("invalid reading: %w", err)
	}
	return r, nil
}

// DecodeHeartbeat parses data as a Heartbeat.
func DecodeHeartbeat(data []byte) (Heartbeat, error) {
	var hb Heartbeat
	if err := decodeStrict(data, &hb); err != nil {
		return Heartbeat{}, fmt.Errorf("malformed heartbeat: %w", err)
	}
	if err := validate.Struct(&hb); err != nil {
		return Heartbeat{}, fmt.Errorf("invalid heartbeat: %w", err)
	}
	return hb, nil
}

// Encode serializes r to its external JSON form.
func (r Reading) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Encode serializes p to its external JSON form.
func (p StreamPackage) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// decodeStrict rejects unknown fields and trailing garbage.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON value")
	}
	return nil
}
