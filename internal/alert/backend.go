// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

package alert

import "github.com/tomtom215/monolith/internal/logging"

// SmsBackend delivers alert messages to an external gateway.
//
// Setup is called once at process start and Teardown once at stop.
// Send must be safe for sequential use from the limiter; Monolith never
// calls it concurrently.
type SmsBackend interface {
	Setup() error
	Teardown()
	Send(message string) error
}

// LogBackend writes alerts to the process log instead of a gateway.
// Deployments without a twilio section fall back to a nil backend and
// drop alerts; LogBackend is for installs that want the alert trail in
// the log, and for tests.
type LogBackend struct{}

// Setup implements SmsBackend.
func (LogBackend) Setup() error { return nil }

// Teardown implements SmsBackend.
func (LogBackend) Teardown() {}

// Send logs the message at warn level and reports success.
func (LogBackend) Send(message string) error {
	logging.Warn().Str("message", message).Msg("ALERT")
	return nil
}
