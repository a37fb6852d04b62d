// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

package config

// Config holds all application configuration loaded from a TOML file and
// environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for optional settings
//  2. Config File: TOML file (monolith.toml) for persistent settings
//  3. Environment Variables: Override any setting (MONOLITH_ prefix)
//
// Sections:
//
//   - monolith: instance identity and on-disk state paths
//   - networking: bind address and HTTP port
//   - rules: reading-evaluation script
//   - alert: alert limiter tuning
//   - twilio: optional SMS alert backend (all four keys or none)
//   - metric_database: optional metric persistence tuning
//   - console: optional operator TCP console (both keys or none)
//   - logging: output level and format
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load configuration")
//	}
//	// cfg.Monolith.InstanceName, cfg.Networking.HTTPPort, etc.
//
// Validation:
// Load returns an error if required keys are missing, values are out of
// range, the rule script does not exist, or an optional section (twilio,
// console) is only partially present.
//
// Thread Safety:
// Config is immutable after Load and safe for concurrent read access.
type Config struct {
	Monolith       MonolithConfig       `koanf:"monolith"`
	Networking     NetworkingConfig     `koanf:"networking"`
	Rules          RulesConfig          `koanf:"rules"`
	Alert          AlertConfig          `koanf:"alert"`
	Twilio         *TwilioConfig        `koanf:"twilio"`          // Optional: SMS alert backend
	MetricDatabase MetricDatabaseConfig `koanf:"metric_database"` // Optional: metric persistence tuning
	Console        *ConsoleConfig       `koanf:"console"`         // Optional: operator TCP console
	Logging        LoggingConfig        `koanf:"logging"`
}

// MonolithConfig holds instance identity and persistent state paths.
//
// TOML keys:
//   - monolith.instance_name: name reported by the console and logs (required)
//   - monolith.log_file_name: optional file the logger tees to
//   - monolith.registration_db_path: directory for the node/controller KV store (required)
//   - monolith.metric_db_path: SQLite file for metric storage (required)
type MonolithConfig struct {
	InstanceName       string `koanf:"instance_name" validate:"required"`
	LogFileName        string `koanf:"log_file_name"`
	RegistrationDBPath string `koanf:"registration_db_path" validate:"required"`
	MetricDBPath       string `koanf:"metric_db_path" validate:"required"`
}

// NetworkingConfig holds the bind address for all listeners.
//
// TOML keys:
//   - networking.ipv4_address: interface address to bind (required)
//   - networking.http_port: HTTP API port (required, 1-65535)
//   - networking.use_ipv6: reserved; enabling it is a startup error
type NetworkingConfig struct {
	UseIPv6     bool   `koanf:"use_ipv6"`
	IPv4Address string `koanf:"ipv4_address" validate:"required"`
	HTTPPort    int    `koanf:"http_port" validate:"required,gte=1,lte=65535"`
}

// RulesConfig names the Lua script evaluated against every accepted reading.
//
// TOML keys:
//   - rules.rule_script: script path (required; file must exist)
type RulesConfig struct {
	RuleScript string `koanf:"rule_script" validate:"required"`
}

// AlertConfig tunes the alert limiter.
//
// TOML keys:
//   - alert.max_alert_sends: lifetime cap on backend sends (0 = unlimited)
//   - alert.alert_cooldown_seconds: per-id quiet period between sends (default 30)
type AlertConfig struct {
	MaxAlertSends        uint64  `koanf:"max_alert_sends"`
	AlertCooldownSeconds float64 `koanf:"alert_cooldown_seconds" validate:"gte=0"`
}

// TwilioConfig holds SMS gateway credentials. The section is optional,
// but when present all four keys are required; partial presence is a
// startup error.
type TwilioConfig struct {
	AccountSID string `koanf:"account_sid"`
	AuthToken  string `koanf:"auth_token"`
	From       string `koanf:"from"`
	To         string `koanf:"to"`
}

// MetricDatabaseConfig tunes metric persistence. All keys are optional.
//
// TOML keys:
//   - metric_database.save_metrics: persist readings at all (default true;
//     false detaches the store and fetch endpoints answer 501)
//   - metric_database.metric_expiration_time_sec: purge readings older than
//     this many seconds (0 = weekly purge of rows older than seven days)
//   - metric_database.path: overrides monolith.metric_db_path when set
type MetricDatabaseConfig struct {
	SaveMetrics             bool   `koanf:"save_metrics"`
	MetricExpirationTimeSec uint64 `koanf:"metric_expiration_time_sec"`
	Path                    string `koanf:"path"`
}

// ConsoleConfig enables the operator TCP console. The section is optional,
// but when present both keys are required; partial presence is a startup
// error.
type ConsoleConfig struct {
	AccessCode string `koanf:"access_code"`
	Port       int    `koanf:"port"`
}

// LoggingConfig selects log level and output format.
//
// TOML keys:
//   - logging.level: trace, debug, info, warn, error (default info)
//   - logging.format: console or json (default console)
//   - logging.caller: include caller file:line (default false)
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Format string `koanf:"format" validate:"omitempty,oneof=console json"`
	Caller bool   `koanf:"caller"`
}

// MetricDBPath returns the effective SQLite path: metric_database.path
// when set, else monolith.metric_db_path.
func (c *Config) MetricDBPath() string {
	if c.MetricDatabase.Path != "" {
		return c.MetricDatabase.Path
	}
	return c.Monolith.MetricDBPath
}

// SMSConfigured reports whether the twilio section was supplied.
func (c *Config) SMSConfigured() bool {
	return c.Twilio != nil
}

// ConsoleEnabled reports whether the console section was supplied.
func (c *Config) ConsoleEnabled() bool {
	return c.Console != nil
}

// Load loads configuration from the default search paths.
// See LoadFile for the full loading order.
func Load() (*Config, error) {
	return LoadFile("")
}
