// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

// Package main is the entry point for the Monolith daemon.
//
// Monolith is the hub process of a home telemetry mesh: sensor nodes
// submit readings and heartbeats over HTTP, readings are validated
// against a device registrar, persisted to SQLite, evaluated by an
// operator-supplied Lua rule script, and fanned out to TCP stream
// subscribers. Rules can raise SMS alerts (Twilio) and dispatch
// actuator commands to controllers.
//
// # Startup Order
//
//  1. Configuration: TOML file plus MONOLITH_ environment overrides (Koanf v2)
//  2. Logging: zerolog, console or JSON, optional file tee
//  3. Components: registrar (Badger), metric store (SQLite), stream
//     fanout, action dispatcher, rule engine (gopher-lua), ingest
//     pipeline, operator console
//  4. Supervisor tree: core layer (component chain) + edge layer (HTTP API)
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the tree context; the core layer then stops
// the component chain in reverse order, draining queued work first.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/host"

	"github.com/tomtom215/monolith/internal/alert"
	"github.com/tomtom215/monolith/internal/api"
	"github.com/tomtom215/monolith/internal/buildinfo"
	"github.com/tomtom215/monolith/internal/config"
	"github.com/tomtom215/monolith/internal/console"
	"github.com/tomtom215/monolith/internal/dispatch"
	"github.com/tomtom215/monolith/internal/fanout"
	"github.com/tomtom215/monolith/internal/heartbeat"
	"github.com/tomtom215/monolith/internal/kv"
	"github.com/tomtom215/monolith/internal/logging"
	"github.com/tomtom215/monolith/internal/pipeline"
	"github.com/tomtom215/monolith/internal/rules"
	"github.com/tomtom215/monolith/internal/store"
	"github.com/tomtom215/monolith/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "", "path to monolith.toml (default: search cwd and /etc/monolith)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.String())
		return
	}

	os.Exit(run(*configPath))
}

// run is split from main so deferred cleanup fires before os.Exit.
func run(configPath string) int {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		logging.Err(err).Msg("Failed to load configuration")
		return 1
	}

	if err := logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		FileName:  cfg.Monolith.LogFileName,
	}); err != nil {
		logging.Err(err).Msg("Failed to initialize logging")
		return 1
	}

	logging.Info().
		Str("version", buildinfo.String()).
		Str("instance", cfg.Monolith.InstanceName).
		Msg("Starting Monolith")
	if info, err := host.Info(); err == nil {
		logging.Info().
			Str("hostname", info.Hostname).
			Str("platform", info.Platform+" "+info.PlatformVersion).
			Str("kernel", info.KernelVersion).
			Msg("Host")
	}

	// === COMPONENT CONSTRUCTION ===
	// Everything is built closed; the core service opens the chain in
	// dependency order once the tree runs.

	registrar := kv.New(cfg.Monolith.RegistrationDBPath)

	var metrics *store.Store
	if cfg.MetricDatabase.SaveMetrics {
		metrics = store.New(store.Config{
			Path:              cfg.MetricDBPath(),
			ExpirationSeconds: cfg.MetricDatabase.MetricExpirationTimeSec,
		})
	} else {
		logging.Info().Msg("Metric persistence disabled, fetch endpoints answer 501")
	}

	fan := fanout.New()
	dispatcher := dispatch.New(registrar)
	heartbeats := heartbeat.NewLedger()

	var backend alert.SmsBackend
	if cfg.SMSConfigured() {
		backend = alert.NewTwilioBackend(alert.TwilioConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			From:       cfg.Twilio.From,
			To:         cfg.Twilio.To,
		})
		if err := backend.Setup(); err != nil {
			logging.Err(err).Msg("Failed to set up SMS backend")
			return 1
		}
		defer backend.Teardown()
	} else {
		logging.Info().Msg("No SMS backend configured, alerts are logged and dropped")
	}
	limiter := alert.NewLimiter(alert.LimiterConfig{
		CooldownSeconds: cfg.Alert.AlertCooldownSeconds,
		MaxTotalSends:   cfg.Alert.MaxAlertSends,
		Backend:         backend,
	})

	engine := rules.NewEngine(limiter, dispatcher)

	pipe := pipeline.New(pipeline.Config{
		Registrar:  registrar,
		Store:      storeOrNil(metrics),
		Rules:      engine,
		Heartbeats: heartbeats,
		Fanout:     fan,
	})

	var operatorConsole *console.Console
	if cfg.ConsoleEnabled() {
		operatorConsole = console.New(console.Config{
			Address:      cfg.Networking.IPv4Address,
			Port:         cfg.Console.Port,
			AccessCode:   cfg.Console.AccessCode,
			InstanceName: cfg.Monolith.InstanceName,
			Rules:        engine,
			Stats: console.StatsSource{
				QueueDepths: func() map[string]int {
					depths := map[string]int{
						"pipeline": pipe.QueueDepth(),
						"fanout":   fan.QueueDepth(),
						"dispatch": dispatcher.QueueDepth(),
						"rules":    engine.QueueDepth(),
					}
					if metrics != nil {
						depths["store"] = metrics.QueueDepth()
					}
					return depths
				},
				HeartbeatCount:    heartbeats.Count,
				StreamSubscribers: fan.SubscriberCount,
			},
		})
	}

	core := supervisor.NewCore(supervisor.CoreConfig{
		Registrar:  registrar,
		Fanout:     fan,
		Store:      metrics,
		Dispatcher: dispatcher,
		Rules:      engine,
		RuleScript: cfg.Rules.RuleScript,
		Pipeline:   pipe,
		Console:    operatorConsole,
	})

	handler := api.NewHandler(api.HandlerConfig{
		InstanceName: cfg.Monolith.InstanceName,
		Version:      buildinfo.Version,
		Pipeline:     pipe,
		Heartbeats:   heartbeats,
		Registrar:    registrar,
		Fanout:       fan,
		Metrics:      metrics,
		Ready:        core.Ready,
	})
	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Networking.IPv4Address, fmt.Sprint(cfg.Networking.HTTPPort)),
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// === SUPERVISOR TREE ===

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddCoreService(supervisor.NewCoreService(core))
	tree.AddEdgeService(supervisor.NewHTTPServerService(server, 10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	exitCode := 0
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
			exitCode = 1
		}
		cancel()
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
			exitCode = 1
		}
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Monolith stopped")
	return exitCode
}

// storeOrNil avoids handing the pipeline a typed-nil interface value.
func storeOrNil(s *store.Store) pipeline.ReadingStore {
	if s == nil {
		return nil
	}
	return s
}
