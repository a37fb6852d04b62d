// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

// Package console is the operator TCP line console: a plain-text,
// access-code gated command loop for live inspection (stats, version)
// and rule reloads. One goroutine accepts, one goroutine per
// connection; Stop closes the listener and every live connection.
package console

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/monolith/internal/logging"
)

// maxLoginAttempts is the per-connection budget before lockout.
const maxLoginAttempts = 5

// RuleReloader hot-swaps the rule script. Implemented by rules.Engine.
type RuleReloader interface {
	Reload() bool
}

// Config wires a console.
type Config struct {
	// Address and Port form the listen endpoint.
	Address string
	Port    int

	// AccessCode gates every command except help, login, and quit.
	AccessCode string

	// InstanceName is reported by the banner and version command.
	InstanceName string

	// Rules handles "reload rules". Optional.
	Rules RuleReloader

	// Stats supplies the stats command's live numbers.
	Stats StatsSource
}

// Console is the TCP command listener.
type Console struct {
	cfg      Config
	security *logging.SecurityLogger

	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// New returns a stopped console.
func New(cfg Config) *Console {
	return &Console{
		cfg:      cfg,
		security: logging.NewSecurityLogger(),
		conns:    make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and launches the accept loop. Idempotent.
func (c *Console) Start() error {
	if c.running.Load() {
		logging.Warn().Msg("Console already started")
		return nil
	}

	endpoint := net.JoinHostPort(c.cfg.Address, fmt.Sprint(c.cfg.Port))
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return fmt.Errorf("console listen on %s: %w", endpoint, err)
	}

	c.listener = listener
	c.running.Store(true)
	c.wg.Add(1)
	go c.acceptLoop()

	logging.Info().Str("endpoint", endpoint).Msg("Console started")
	return nil
}

// Stop closes the listener and every in-flight connection. Idempotent.
func (c *Console) Stop() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}

	err := c.listener.Close()

	c.connMu.Lock()
	for conn := range c.conns {
		conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	logging.Info().Msg("Console stopped")
	return err
}

// Endpoint returns the bound address, useful when Port was 0.
func (c *Console) Endpoint() string {
	if c.listener == nil {
		return ""
	}
	return c.listener.Addr().String()
}

func (c *Console) acceptLoop() {
	defer c.wg.Done()
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			// Listener closed on Stop.
			return
		}
		c.track(conn)
		c.wg.Add(1)
		go c.serve(conn)
	}
}

func (c *Console) track(conn net.Conn) {
	c.connMu.Lock()
	c.conns[conn] = struct{}{}
	c.connMu.Unlock()
}

func (c *Console) untrack(conn net.Conn) {
	c.connMu.Lock()
	delete(c.conns, conn)
	c.connMu.Unlock()
}

// session is one connection's authentication state.
type session struct {
	authenticated bool
	loginAttempts int
}

func (c *Console) serve(conn net.Conn) {
	defer c.wg.Done()
	defer c.untrack(conn)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	logging.Debug().Str("remote", remote).Msg("Console connection opened")

	writeLine(conn, fmt.Sprintf("< %s operator console >", c.cfg.InstanceName))
	writeLine(conn, "< type 'help' for commands >")

	var sess session
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !c.dispatch(conn, remote, &sess, line) {
			break
		}
	}
	logging.Debug().Str("remote", remote).Msg("Console connection closed")
}

// dispatch handles one command line. Returns false to end the session.
func (c *Console) dispatch(conn net.Conn, remote string, sess *session, line string) bool {
	fields := strings.Fields(line)
	command := strings.ToLower(fields[0])

	switch command {
	case "help":
		writeLine(conn, "< commands: help, login <access_code>, version, stats, reload rules, quit >")
		return true

	case "quit":
		writeLine(conn, "< goodbye >")
		return false

	case "login":
		return c.handleLogin(conn, remote, sess, fields)

	case "version":
		if !sess.authenticated {
			writeLine(conn, "< authentication required >")
			return true
		}
		writeLine(conn, c.versionLine())
		return true

	case "stats":
		if !sess.authenticated {
			writeLine(conn, "< authentication required >")
			return true
		}
		for _, l := range c.statsLines() {
			writeLine(conn, l)
		}
		return true

	case "reload":
		if !sess.authenticated {
			writeLine(conn, "< authentication required >")
			return true
		}
		if len(fields) < 2 || strings.ToLower(fields[1]) != "rules" {
			writeLine(conn, "< unknown reload target >")
			return true
		}
		if c.cfg.Rules != nil && c.cfg.Rules.Reload() {
			writeLine(conn, "< rules reloaded >")
		} else {
			writeLine(conn, "< failed to reload rule executor >")
		}
		return true

	default:
		writeLine(conn, "< unknown command >")
		return true
	}
}

func (c *Console) handleLogin(conn net.Conn, remote string, sess *session, fields []string) bool {
	if sess.authenticated {
		writeLine(conn, "< already logged in >")
		return true
	}
	if len(fields) != 2 {
		writeLine(conn, "< usage: login <access_code> >")
		return true
	}

	if fields[1] == c.cfg.AccessCode {
		sess.authenticated = true
		c.security.LogConsoleLoginSuccess(remote)
		writeLine(conn, "< login successful >")
		return true
	}

	sess.loginAttempts++
	c.security.LogConsoleLoginFailure(remote, sess.loginAttempts)
	if sess.loginAttempts >= maxLoginAttempts {
		c.security.LogConsoleLockout(remote)
		writeLine(conn, "< too many failed attempts >")
		return false
	}
	writeLine(conn, "< invalid access code >")
	return true
}

func writeLine(conn net.Conn, line string) {
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		logging.Debug().Err(err).Msg("Console write failed")
	}
}
