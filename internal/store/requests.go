// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

package store

import (
	"bytes"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/monolith/internal/metrics"
	"github.com/tomtom215/monolith/internal/telemetry"
)

// encodeErrorRow stands in for a row that failed to encode, keeping
// the array well-formed for the client.
const encodeErrorRow = `{"error":"Failed to encode reading"}`

// request is one queued unit of database work, executed by the worker.
type request interface {
	kind() string
	execute(s *Store) error
}

type storeRequest struct {
	reading telemetry.Reading
}

func (r *storeRequest) kind() string { return "store" }

func (r *storeRequest) execute(s *Store) error {
	_, err := s.db.Exec(
		`INSERT INTO metrics(timestamp, node, sensor, value) VALUES(?, ?, ?, ?)`,
		r.reading.TSSeconds, r.reading.NodeID, r.reading.SensorID, r.reading.Value,
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

type fetchNodesRequest struct {
	resp *Response
}

func (r *fetchNodesRequest) kind() string { return "nodes" }

func (r *fetchNodesRequest) execute(s *Store) error {
	if r.resp.TimedOut() {
		metrics.StoreTimeouts.Inc()
		return nil
	}
	result, err := queryStrings(s.db, `SELECT DISTINCT node FROM metrics`)
	if err != nil {
		return err
	}
	r.resp.deliver(result)
	return nil
}

type fetchSensorsRequest struct {
	resp *Response
	node string
}

func (r *fetchSensorsRequest) kind() string { return "sensors" }

func (r *fetchSensorsRequest) execute(s *Store) error {
	if r.resp.TimedOut() {
		metrics.StoreTimeouts.Inc()
		return nil
	}
	result, err := queryStrings(s.db, `SELECT DISTINCT sensor FROM metrics WHERE node = ?`, r.node)
	if err != nil {
		return err
	}
	r.resp.deliver(result)
	return nil
}

type fetchRangeRequest struct {
	resp       *Response
	node       string
	start, end int64
}

func (r *fetchRangeRequest) kind() string { return "range" }

func (r *fetchRangeRequest) execute(s *Store) error {
	if r.resp.TimedOut() {
		metrics.StoreTimeouts.Inc()
		return nil
	}
	result, err := queryReadings(s.db,
		`SELECT timestamp, node, sensor, value FROM metrics
		 WHERE node = ? AND timestamp > ? AND timestamp < ?`,
		r.node, r.start, r.end)
	if err != nil {
		return err
	}
	r.resp.deliver(result)
	return nil
}

type fetchAfterRequest struct {
	resp *Response
	node string
	ts   int64
}

func (r *fetchAfterRequest) kind() string { return "after" }

func (r *fetchAfterRequest) execute(s *Store) error {
	if r.resp.TimedOut() {
		metrics.StoreTimeouts.Inc()
		return nil
	}
	result, err := queryReadings(s.db,
		`SELECT timestamp, node, sensor, value FROM metrics WHERE node = ? AND timestamp > ?`,
		r.node, r.ts)
	if err != nil {
		return err
	}
	r.resp.deliver(result)
	return nil
}

type fetchBeforeRequest struct {
	resp *Response
	node string
	ts   int64
}

func (r *fetchBeforeRequest) kind() string { return "before" }

func (r *fetchBeforeRequest) execute(s *Store) error {
	if r.resp.TimedOut() {
		metrics.StoreTimeouts.Inc()
		return nil
	}
	result, err := queryReadings(s.db,
		`SELECT timestamp, node, sensor, value FROM metrics WHERE node = ? AND timestamp < ?`,
		r.node, r.ts)
	if err != nil {
		return err
	}
	r.resp.deliver(result)
	return nil
}

// queryStrings runs a single-column string query and encodes the rows
// as a JSON string array. An empty result is the literal [].
func queryStrings(db *sql.DB, query string, args ...any) ([]byte, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return json.Marshal(values)
}

// queryReadings runs a (timestamp, node, sensor, value) query and
// builds a JSON array of external Reading objects. A row that fails to
// encode contributes an error object in place.
func queryReadings(db *sql.DB, query string, args ...any) ([]byte, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var buf bytes.Buffer
	buf.WriteByte('[')
	first := true
	for rows.Next() {
		var reading telemetry.Reading
		if err := rows.Scan(&reading.TSSeconds, &reading.NodeID, &reading.SensorID, &reading.Value); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		encoded, err := reading.Encode()
		if err != nil {
			buf.WriteString(encodeErrorRow)
			continue
		}
		buf.Write(encoded)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
