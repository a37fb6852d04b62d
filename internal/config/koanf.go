// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"monolith.toml",
	"/etc/monolith/monolith.toml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "MONOLITH_CONFIG"

// envPrefix selects which environment variables feed configuration.
const envPrefix = "MONOLITH_"

// defaultConfig returns a Config with defaults for every optional
// setting. Required keys stay empty so validation catches their absence.
func defaultConfig() *Config {
	return &Config{
		Alert: AlertConfig{
			MaxAlertSends:        0, // unlimited
			AlertCooldownSeconds: 30,
		},
		MetricDatabase: MetricDatabaseConfig{
			SaveMetrics:             true,
			MetricExpirationTimeSec: 0, // weekly purge
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFile loads configuration with layered sources:
//  1. Defaults: built-in values for optional settings
//  2. Config file: TOML at path, or the first default path found
//  3. Environment variables: MONOLITH_-prefixed overrides
//
// Precedence is ENV > file > defaults. Nested keys map from the
// environment with a double underscore: MONOLITH_NETWORKING__HTTP_PORT
// overrides networking.http_port.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := path
	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Optional sections count as present only when the file or the
	// environment set a key under them.
	if !k.Exists("twilio") {
		cfg.Twilio = nil
	}
	if !k.Exists("console") {
		cfg.Console = nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile searches the env override and the default paths,
// returning the first file that exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc maps MONOLITH_SECTION__KEY_NAME to section.key_name.
func envTransformFunc(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

var validate = validator.New()

// Validate checks struct tags plus the constraints tags cannot express:
// partial optional sections, IPv6 opt-in, and rule script existence.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Networking.UseIPv6 {
		return fmt.Errorf("networking.use_ipv6 is not supported")
	}

	if c.Twilio != nil {
		if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" ||
			c.Twilio.From == "" || c.Twilio.To == "" {
			return fmt.Errorf("twilio section is partial: account_sid, auth_token, from, and to are all required")
		}
	}

	if c.Console != nil {
		if c.Console.AccessCode == "" || c.Console.Port == 0 {
			return fmt.Errorf("console section is partial: access_code and port are both required")
		}
		if c.Console.Port < 1 || c.Console.Port > 65535 {
			return fmt.Errorf("console.port %d out of range", c.Console.Port)
		}
	}

	if info, err := os.Stat(c.Rules.RuleScript); err != nil {
		return fmt.Errorf("rules.rule_script %q: %w", c.Rules.RuleScript, err)
	} else if info.IsDir() {
		return fmt.Errorf("rules.rule_script %q is a directory", c.Rules.RuleScript)
	}

	return nil
}
