// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level: trace, debug, info, warn, error, fatal, panic.
	Level string

	// Format is the output format: "json" or "console".
	Format string

	// Caller includes the caller file:line in log output.
	Caller bool

	// Timestamp includes timestamps in log output.
	Timestamp bool

	// Output is the destination writer. Defaults to os.Stderr.
	Output io.Writer

	// FileName, when non-empty, tees log output to the named file in
	// addition to Output. The file is opened in append mode and stays
	// open for the life of the process.
	FileName string
}

// DefaultConfig returns the default logger configuration.
// Console format matches the interactive deployments Monolith targets;
// production installs switch to JSON via logging.format.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "console",
		Caller:    false,
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	// mu protects the global logger during configuration changes.
	mu sync.RWMutex

	// logger is the global logger instance.
	logger zerolog.Logger
)

// init configures a sane default logger so packages can log before
// Init runs. Environment variables provide early overrides:
//
//	LOG_LEVEL  - minimum level (trace, debug, info, warn, error)
//	LOG_FORMAT - output format (json, console)
func init() {
	// Fuzzing spawns many short-lived processes; skip console writer
	// setup and silence output so the harness is not slowed down.
	if os.Getenv("FUZZ_MODE") != "" {
		logger = zerolog.New(io.Discard).Level(zerolog.Disabled)
		return
	}

	cfg := DefaultConfig()
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Level = lvl
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = format
	}

	l, err := newLogger(cfg)
	if err != nil {
		// Only file-tee setup can fail, and init never requests one.
		l = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	logger = l
}

// Init replaces the global logger with one built from cfg.
// Call once at application startup, after configuration is loaded.
//
//	if err := logging.Init(logging.Config{Level: "debug", Format: "console"}); err != nil {
//	    // fall back or abort startup
//	}
//
// The only error source is an unopenable FileName.
func Init(cfg Config) error {
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	logger = l
	return nil
}

// newLogger builds a zerolog.Logger from cfg.
func newLogger(cfg Config) (zerolog.Logger, error) {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.FileName != "" {
		f, err := os.OpenFile(cfg.FileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("failed to open log file %q: %w", cfg.FileName, err)
		}
		output = io.MultiWriter(output, f)
	}

	var writer io.Writer = output
	if strings.EqualFold(cfg.Format, "console") {
		writer = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
			// ANSI color codes do not belong in teed log files.
			NoColor: cfg.FileName != "",
		}
	}

	logCtx := zerolog.New(writer).Level(parseLevel(cfg.Level)).With()
	if cfg.Timestamp {
		logCtx = logCtx.Timestamp()
	}
	if cfg.Caller {
		logCtx = logCtx.Caller()
	}

	return logCtx.Logger(), nil
}

// parseLevel converts a level string to a zerolog.Level.
// Unknown levels default to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns a copy of the global logger.
// Use this to create derived loggers with additional fields.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLogger replaces the global logger.
// Primarily useful in tests to capture log output.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// With returns a context builder for creating derived loggers.
//
//	pipelineLogger := logging.With().Str("component", "pipeline").Logger()
func With() zerolog.Context {
	mu.RLock()
	defer mu.RUnlock()
	return logger.With()
}

// Trace starts a trace level log event.
func Trace() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Trace()
}

// Debug starts a debug level log event.
func Debug() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Debug()
}

// Info starts an info level log event.
func Info() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Info()
}

// Warn starts a warn level log event.
func Warn() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Warn()
}

// Error starts an error level log event.
func Error() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Error()
}

// Fatal starts a fatal level log event.
// The program exits with status 1 after the message is written.
func Fatal() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Fatal()
}

// Panic starts a panic level log event.
// The program panics after the message is written.
func Panic() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Panic()
}

// Err starts an error level log event with the given error attached.
// If err is nil the event is logged at info level.
func Err(err error) *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Err(err)
}

// GetLevel returns the global logger's current level.
func GetLevel() zerolog.Level {
	mu.RLock()
	defer mu.RUnlock()
	return logger.GetLevel()
}

// SetLevel changes the global logger's minimum level.
func SetLevel(level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Level(level)
}

// SetLevelString changes the global logger's minimum level from a string.
// Unknown levels default to info.
func SetLevelString(level string) {
	SetLevel(parseLevel(level))
}

// IsLevelEnabled reports whether the given level would be logged.
func IsLevelEnabled(level zerolog.Level) bool {
	return level >= GetLevel()
}

// NewTestLogger returns a JSON logger writing to w, for assertions on
// structured output in tests.
//
//	var buf bytes.Buffer
//	logger := logging.NewTestLogger(&buf)
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// NewConsoleTestLogger returns a console-format logger writing to w.
// Useful for readable output when debugging failing tests.
func NewConsoleTestLogger(w io.Writer) zerolog.Logger {
	writer := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}
	return zerolog.New(writer).With().Timestamp().Logger()
}
