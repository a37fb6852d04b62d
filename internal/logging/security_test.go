// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSanitizeToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"short", "***"},
		{"exactlytwelv", "***"},
		{"AC4f8e21b09c3dcafe90210aa", "AC4f...10aa"},
		{"1234567890123456", "1234...3456"},
	}

	for _, tt := range tests {
		result := SanitizeToken(tt.input)
		if result != tt.expected {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain error", "connection refused", "connection refused"},
		{"contains password", "invalid password for session", "authentication error"},
		{"contains token", "bad auth_token value", "authentication error"},
		{"contains access code", "wrong access_code provided", "authentication error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := SanitizeError(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeError(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizeErrorTruncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 300)
	result := SanitizeError(long)
	if len(result) != 203 { // 200 chars + "..."
		t.Errorf("expected truncation to 203 chars, got %d", len(result))
	}
}

func TestSanitizeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key      string
		value    string
		expected string
	}{
		{"access_code", "supersecretcode99", "supe...de99"},
		{"auth_token", "AC4f8e21b09c3dcafe90210aa", "AC4f...10aa"},
		{"node_id", "node-outdoor-1", "node-outdoor-1"},
		{"attempt", "3", "3"},
	}

	for _, tt := range tests {
		result := SanitizeValue(tt.key, tt.value)
		if result != tt.expected {
			t.Errorf("SanitizeValue(%q, %q) = %q, want %q", tt.key, tt.value, result, tt.expected)
		}
	}
}

func TestSecurityLoggerLogEvent(t *testing.T) {
	var buf bytes.Buffer
	sl := NewSecurityLoggerWithLogger(zerolog.New(&buf))

	sl.LogEvent(&SecurityEvent{
		Event:      "console_login_success",
		RemoteAddr: "10.0.0.7:52114",
		Success:    true,
	})

	output := buf.String()
	if !strings.Contains(output, "console_login_success") {
		t.Errorf("expected event name in output: %s", output)
	}
	if !strings.Contains(output, `"status":"success"`) {
		t.Errorf("expected success status in output: %s", output)
	}
	if !strings.Contains(output, "10.0.0.7:52114") {
		t.Errorf("expected remote address in output: %s", output)
	}
}

func TestSecurityLoggerLoginFailure(t *testing.T) {
	var buf bytes.Buffer
	sl := NewSecurityLoggerWithLogger(zerolog.New(&buf))

	sl.LogConsoleLoginFailure("10.0.0.7:52114", 2)

	output := buf.String()
	if !strings.Contains(output, "console_login_failed") {
		t.Errorf("expected failure event in output: %s", output)
	}
	if !strings.Contains(output, `"status":"failed"`) {
		t.Errorf("expected failed status in output: %s", output)
	}
	if !strings.Contains(output, `"attempt":"2"`) {
		t.Errorf("expected attempt count in output: %s", output)
	}
	// The raw failure reason mentions the access code and must be masked.
	if strings.Contains(output, "invalid access code") {
		t.Errorf("expected sanitized error in output: %s", output)
	}
	if !strings.Contains(output, "authentication error") {
		t.Errorf("expected generic error message in output: %s", output)
	}
}

func TestSecurityLoggerLockout(t *testing.T) {
	var buf bytes.Buffer
	sl := NewSecurityLoggerWithLogger(zerolog.New(&buf))

	sl.LogConsoleLockout("10.0.0.7:52114")

	output := buf.String()
	if !strings.Contains(output, "console_lockout") {
		t.Errorf("expected lockout event in output: %s", output)
	}
}
