// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

package registry

import (
	"errors"
	"testing"
)

const nodeBlob = `{"id":"n1","description":"greenhouse","sensors":[` +
	`{"id":"n1:temp","description":"air temp","type":"float"},` +
	`{"id":"n1:rh","description":"humidity","type":"float"}]}`

const controllerBlob = `{"id":"c1","description":"vent bank","address":"10.0.0.9","port":9100,` +
	`"actions":[{"id":"a1","description":"open vents"}]}`

func TestDecodeNode(t *testing.T) {
	n, err := DecodeNode([]byte(nodeBlob))
	if err != nil {
		t.Fatalf("DecodeNode failed: %v", err)
	}
	if n.ID != "n1" || len(n.Sensors) != 2 {
		t.Errorf("node = %+v", n)
	}
	if !n.HasSensor("n1:rh") {
		t.Error("HasSensor(n1:rh) = false, want true")
	}
	if n.HasSensor("n1:missing") {
		t.Error("HasSensor(n1:missing) = true, want false")
	}
}

func TestDecodeNodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing id", `{"description":"x","sensors":[]}`},
		{"sensor missing id", `{"id":"n1","sensors":[{"description":"x"}]}`},
		{"controller blob", controllerBlob},
		{"unknown field", `{"id":"n1","sensors":[],"port":1}`},
		{"garbage", `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeNode([]byte(tt.input)); err == nil {
				t.Errorf("DecodeNode(%q) succeeded, want error", tt.input)
			}
		})
	}
}

func TestDecodeController(t *testing.T) {
	c, err := DecodeController([]byte(controllerBlob))
	if err != nil {
		t.Fatalf("DecodeController failed: %v", err)
	}
	if c.Address != "10.0.0.9" || c.Port != 9100 {
		t.Errorf("endpoint = %s:%d, want 10.0.0.9:9100", c.Address, c.Port)
	}
	if !c.HasAction("a1") {
		t.Error("HasAction(a1) = false, want true")
	}
	if c.HasAction("a99") {
		t.Error("HasAction(a99) = true, want false")
	}
}

func TestDecodeControllerRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"zero port", `{"id":"c1","address":"10.0.0.9","port":0,"actions":[]}`},
		{"missing address", `{"id":"c1","port":9100,"actions":[]}`},
		{"node blob", nodeBlob},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeController([]byte(tt.input)); err == nil {
				t.Errorf("DecodeController(%q) succeeded, want error", tt.input)
			}
		})
	}
}

func TestDecodeEntry(t *testing.T) {
	n, c, err := DecodeEntry([]byte(nodeBlob))
	if err != nil || n == nil || c != nil {
		t.Errorf("DecodeEntry(node) = (%v, %v, %v), want node only", n, c, err)
	}

	n, c, err = DecodeEntry([]byte(controllerBlob))
	if err != nil || n != nil || c == nil {
		t.Errorf("DecodeEntry(controller) = (%v, %v, %v), want controller only", n, c, err)
	}

	_, _, err = DecodeEntry([]byte(`{"neither":true}`))
	if !errors.Is(err, ErrUnrecognized) {
		t.Errorf("DecodeEntry(junk) error = %v, want ErrUnrecognized", err)
	}
}
