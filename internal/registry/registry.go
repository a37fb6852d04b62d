// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

// Package registry defines the registrar blob types: Node (a device
// publishing readings) and Controller (a device executing named
// actions). Blobs live in the KV store keyed by device id; the ingest
// pipeline and the action dispatcher decode them on every lookup so a
// re-registration takes effect on the next burst.
package registry

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var validate = validator.New()

// ErrUnrecognized is returned by DecodeEntry when a blob parses as
// neither a Node nor a Controller.
var ErrUnrecognized = errors.New("registry: blob is neither node nor controller")

// Sensor describes one sensor slot on a node.
type Sensor struct {
	ID          string `json:"id" validate:"required"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// Node is a device publishing readings.
type Node struct {
	ID          string   `json:"id" validate:"required"`
	Description string   `json:"description"`
	Sensors     []Sensor `json:"sensors" validate:"dive"`
}

// HasSensor reports whether the node lists a sensor with the given id.
func (n *Node) HasSensor(sensorID string) bool {
	for i := range n.Sensors {
		if n.Sensors[i].ID == sensorID {
			return true
		}
	}
	return false
}

// ControllerAction describes one action slot on a controller.
type ControllerAction struct {
	ID          string `json:"id" validate:"required"`
	Description string `json:"description"`
}

// Controller is a device capable of executing named actions. Address
// and Port locate the controller's TCP action listener.
type Controller struct {
	ID          string             `json:"id" validate:"required"`
	Description string             `json:"description"`
	Address     string             `json:"address" validate:"required"`
	Port        uint16             `json:"port" validate:"required"`
	Actions     []ControllerAction `json:"actions" validate:"dive"`
}

// HasAction reports whether the controller lists an action with the
// given id.
func (c *Controller) HasAction(actionID string) bool {
	for i := range c.Actions {
		if c.Actions[i].ID == actionID {
			return true
		}
	}
	return false
}

// DecodeNode parses data as a Node. Unknown fields are errors, so a
// Controller blob does not pass as a Node.
func DecodeNode(data []byte) (*Node, error) {
	var n Node
	if err := decodeStrict(data, &n); err != nil {
		return nil, fmt.Errorf("malformed node: %w", err)
	}
	if err := validate.Struct(&n); err != nil {
		return nil, fmt.Errorf("invalid node: %w", err)
	}
	return &n, nil
}

// DecodeController parses data as a Controller.
func DecodeController(data []byte) (*Controller, error) {
	var c Controller
	if err := decodeStrict(data, &c); err != nil {
		return nil, fmt.Errorf("malformed controller: %w", err)
	}
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid controller: %w", err)
	}
	return &c, nil
}

// DecodeEntry accepts a registrar blob that is either a Node or a
// Controller, the contract of the /registrar/add endpoint. Exactly one
// of the returns is non-nil on success.
func DecodeEntry(data []byte) (*Node, *Controller, error) {
	if n, err := DecodeNode(data); err == nil {
		return n, nil, nil
	}
	if c, err := DecodeController(data); err == nil {
		return nil, c, nil
	}
	return nil, nil, ErrUnrecognized
}

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
