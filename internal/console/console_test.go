// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

package console

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

type stubReloader struct {
	verdict bool
	calls   int
}

func (s *stubReloader) Reload() bool {
	s.calls++
	return s.verdict
}

func newTestConsole(t *testing.T, rules RuleReloader) *Console {
	t.Helper()
	c := New(Config{
		Address:      "127.0.0.1",
		Port:         0,
		AccessCode:   "sesame",
		InstanceName: "test-instance",
		Rules:        rules,
		Stats: StatsSource{
			QueueDepths:    func() map[string]int { return map[string]int{"pipeline": 3, "store": 0} },
			HeartbeatCount: func() int { return 2 },
		},
	})
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	})
	return c
}

type client struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dialConsole(t *testing.T, c *Console) *client {
	t.Helper()
	conn, err := net.Dial("tcp", c.Endpoint())
	if err != nil {
		t.Fatalf("dial console: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	cl := &client{conn: conn, reader: bufio.NewReader(conn)}
	// Banner: two lines.
	cl.readLine(t)
	cl.readLine(t)
	return cl
}

func (c *client) readLine(t *testing.T) string {
	t.Helper()
	line, err := c.reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read console line: %v", err)
	}
	return strings.TrimSpace(line)
}

func (c *client) send(t *testing.T, line string) {
	t.Helper()
	if _, err := fmt.Fprintf(c.conn, "%s\n", line); err != nil {
		t.Fatalf("send %q: %v", line, err)
	}
}

func (c *client) roundTrip(t *testing.T, line string) string {
	t.Helper()
	c.send(t, line)
	return c.readLine(t)
}

func TestBannerAndHelp(t *testing.T) {
	c := newTestConsole(t, nil)
	conn, err := net.Dial("tcp", c.Endpoint())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	reader := bufio.NewReader(conn)
	banner, _ := reader.ReadString('\n')
	if !strings.Contains(banner, "test-instance") {
		t.Errorf("banner %q missing instance name", banner)
	}
	reader.ReadString('\n')

	fmt.Fprintln(conn, "help")
	help, _ := reader.ReadString('\n')
	if !strings.Contains(help, "login") || !strings.Contains(help, "reload rules") {
		t.Errorf("help output %q incomplete", help)
	}
}

func TestCommandsRequireLogin(t *testing.T) {
	c := newTestConsole(t, &stubReloader{verdict: true})
	cl := dialConsole(t, c)

	for _, cmd := range []string{"version", "stats", "reload rules"} {
		if got := cl.roundTrip(t, cmd); got != "< authentication required >" {
			t.Errorf("%q before login = %q", cmd, got)
		}
	}
}

func TestLoginAndCommands(t *testing.T) {
	reloader := &stubReloader{verdict: true}
	c := newTestConsole(t, reloader)
	cl := dialConsole(t, c)

	if got := cl.roundTrip(t, "login sesame"); got != "< login successful >" {
		t.Fatalf("login = %q", got)
	}

	version := cl.roundTrip(t, "version")
	if !strings.Contains(version, "test-instance") {
		t.Errorf("version = %q", version)
	}

	cl.send(t, "stats")
	sawQueue, sawHeartbeats := false, false
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && !(sawQueue && sawHeartbeats) {
		line := cl.readLine(t)
		if strings.Contains(line, "queue pipeline: 3") {
			sawQueue = true
		}
		if strings.Contains(line, "heartbeat nodes: 2") {
			sawHeartbeats = true
		}
		if strings.Contains(line, "goroutines") {
			break
		}
	}
	if !sawQueue || !sawHeartbeats {
		t.Errorf("stats output missing queue depths or heartbeat count")
	}

	// Drain whatever stats lines remain by issuing a sentinel command.
	cl.send(t, "reload rules")
	for {
		line := cl.readLine(t)
		if line == "< rules reloaded >" {
			break
		}
	}
	if reloader.calls != 1 {
		t.Errorf("reloader calls = %d, want 1", reloader.calls)
	}
}

func TestReloadFailureMessage(t *testing.T) {
	c := newTestConsole(t, &stubReloader{verdict: false})
	cl := dialConsole(t, c)

	cl.roundTrip(t, "login sesame")
	if got := cl.roundTrip(t, "reload rules"); got != "< failed to reload rule executor >" {
		t.Errorf("failed reload = %q", got)
	}
}

func TestWrongAccessCodeLockout(t *testing.T) {
	c := newTestConsole(t, nil)
	cl := dialConsole(t, c)

	for i := 1; i < maxLoginAttempts; i++ {
		if got := cl.roundTrip(t, "login wrong"); got != "< invalid access code >" {
			t.Fatalf("attempt %d = %q", i, got)
		}
	}

	// The final attempt answers with the lockout message and closes.
	if got := cl.roundTrip(t, "login wrong"); got != "< too many failed attempts >" {
		t.Fatalf("lockout message = %q", got)
	}
	if _, err := cl.reader.ReadString('\n'); err != io.EOF {
		t.Errorf("connection still open after lockout: %v", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	c := newTestConsole(t, nil)
	cl := dialConsole(t, c)

	if got := cl.roundTrip(t, "frobnicate"); got != "< unknown command >" {
		t.Errorf("unknown command = %q", got)
	}
	cl.roundTrip(t, "login sesame")
	if got := cl.roundTrip(t, "reload everything"); got != "< unknown reload target >" {
		t.Errorf("unknown reload target = %q", got)
	}
}

func TestQuitClosesConnection(t *testing.T) {
	c := newTestConsole(t, nil)
	cl := dialConsole(t, c)

	if got := cl.roundTrip(t, "quit"); got != "< goodbye >" {
		t.Errorf("quit = %q", got)
	}
	if _, err := cl.reader.ReadString('\n'); err != io.EOF {
		t.Errorf("connection still open after quit: %v", err)
	}
}

func TestStopClosesLiveConnections(t *testing.T) {
	c := New(Config{
		Address:      "127.0.0.1",
		Port:         0,
		AccessCode:   "sesame",
		InstanceName: "test-instance",
	})
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	conn, err := net.Dial("tcp", c.Endpoint())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1024)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}
