// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

// Package logging provides centralized zerolog-based structured logging for Monolith.
//
// This package implements a unified logging layer using zerolog, providing
// zero-allocation structured JSON logging for production and human-readable
// console output for interactive use. Every component logs through this
// package so that output format, level, and the optional log-file tee are
// controlled in one place.
//
// # Quick Start
//
//	import "github.com/tomtom215/monolith/internal/logging"
//
//	// Initialize at application startup, after configuration is loaded
//	if err := logging.Init(logging.Config{
//	    Level:    "info",
//	    Format:   "console",
//	    FileName: cfg.Monolith.LogFileName,
//	}); err != nil {
//	    // the only failure is an unopenable log file
//	}
//
//	// Log messages with structured fields
//	logging.Info().Str("node_id", nodeID).Msg("Reading accepted")
//	logging.Error().Err(err).Msg("Submission failed")
//
// # Configuration
//
// Environment variables provide early overrides before Init runs:
//
//	LOG_LEVEL   - Minimum log level: trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - Output format: json, console (default: console)
//
// After configuration is loaded, logging.level, logging.format, and
// monolith.log_file_name take over via Init.
//
// # Log Levels
//
// Supported log levels (from most to least verbose):
//
//	trace, debug, info (default), warn, error, fatal, panic
//
// # Component Loggers
//
// Create component-specific loggers with default fields:
//
//	pipelineLogger := logging.WithComponent("pipeline")
//	pipelineLogger.Info().Msg("Starting ingest workers")
//
// # Context-Aware Logging
//
// HTTP middleware stores request and correlation IDs in the request
// context; handlers retrieve a pre-tagged logger with Ctx:
//
//	logging.Ctx(ctx).Info().Msg("Processing request")
//
// # slog Adapter
//
// The supervision tree logs through sutureslog, which requires an
// *slog.Logger. NewSlogLogger bridges it onto zerolog:
//
//	hook := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
//
// # Security Logging
//
// Operator console sessions are audited through SecurityLogger, which
// masks access codes and provider credentials before they reach a log
// line.
//
// # Thread Safety
//
// All exported functions are safe for concurrent use. The global logger
// is protected by sync.RWMutex for configuration changes.
//
// # Testing
//
// Create test loggers that capture output:
//
//	var buf bytes.Buffer
//	logger := logging.NewTestLogger(&buf)
//	logger.Info().Msg("test message")
package logging
