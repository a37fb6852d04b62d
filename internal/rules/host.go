// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

// Package rules evaluates accepted readings against an operator-supplied
// Lua script. The script exposes a single entry point,
// accept_reading_v1(ts, node, sensor, value), and calls back into the
// service through trigger_alert and dispatch_action.
package rules

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// entryFunction is the global the rule script must define.
const entryFunction = "accept_reading_v1"

// AlertSink receives alert requests raised by the script.
type AlertSink interface {
	Trigger(id int, message string)
}

// ActionSink receives actuator commands raised by the script.
type ActionSink interface {
	Dispatch(controllerID, actionID string, value float64) bool
}

// Host runs rule scripts. A Host is single-threaded: the engine worker
// owns it, and Reload swaps it under the engine's host lock.
type Host interface {
	// Load compiles and runs the script at path, then verifies the
	// entry point exists.
	Load(path string) error

	// Invoke calls the entry point for one reading.
	Invoke(ts int64, node, sensor string, value float64) error

	// Close releases the interpreter.
	Close()
}

// LuaHost is the gopher-lua implementation of Host.
type LuaHost struct {
	alerts  AlertSink
	actions ActionSink
	state   *lua.LState
	entry   lua.LValue
}

// NewLuaHost returns an unloaded host bound to the given sinks.
func NewLuaHost(alerts AlertSink, actions ActionSink) *LuaHost {
	return &LuaHost{alerts: alerts, actions: actions}
}

// Load builds a fresh interpreter, registers the service callbacks,
// runs the script, and checks for the entry function. A failed Load
// leaves the host unusable.
func (h *LuaHost) Load(path string) error {
	if h.state != nil {
		h.state.Close()
		h.state = nil
		h.entry = lua.LNil
	}

	state := lua.NewState()
	state.SetGlobal("trigger_alert", state.NewFunction(h.luaTriggerAlert))
	state.SetGlobal("dispatch_action", state.NewFunction(h.luaDispatchAction))

	if err := state.DoFile(path); err != nil {
		state.Close()
		return fmt.Errorf("rule script %q failed to load: %w", path, err)
	}

	entry := state.GetGlobal(entryFunction)
	if _, ok := entry.(*lua.LFunction); !ok {
		state.Close()
		return fmt.Errorf("rule script %q does not define %s", path, entryFunction)
	}

	h.state = state
	h.entry = entry
	return nil
}

// Invoke calls accept_reading_v1 with one reading. Script errors are
// returned, not fatal; the interpreter survives for the next call.
func (h *LuaHost) Invoke(ts int64, node, sensor string, value float64) error {
	if h.state == nil {
		return fmt.Errorf("rule host has no loaded script")
	}
	err := h.state.CallByParam(lua.P{
		Fn:      h.entry,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(ts), lua.LString(node), lua.LString(sensor), lua.LNumber(value))
	if err != nil {
		return fmt.Errorf("%s: %w", entryFunction, err)
	}
	return nil
}

// Close releases the interpreter. Safe on an unloaded host.
func (h *LuaHost) Close() {
	if h.state != nil {
		h.state.Close()
		h.state = nil
		h.entry = lua.LNil
	}
}

// luaTriggerAlert bridges trigger_alert(id, message).
func (h *LuaHost) luaTriggerAlert(l *lua.LState) int {
	id := l.CheckInt(1)
	message := l.CheckString(2)
	h.alerts.Trigger(id, message)
	return 0
}

// luaDispatchAction bridges dispatch_action(controller_id, action_id,
// value) and returns the dispatcher's accept/refuse verdict.
func (h *LuaHost) luaDispatchAction(l *lua.LState) int {
	controllerID := l.CheckString(1)
	actionID := l.CheckString(2)
	value := float64(l.CheckNumber(3))
	accepted := h.actions.Dispatch(controllerID, actionID, value)
	l.Push(lua.LBool(accepted))
	return 1
}
