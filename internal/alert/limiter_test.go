// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

package alert

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/monolith/internal/clock"
)

// spyBackend records sent messages and can be made to fail.
type spyBackend struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *spyBackend) Setup() error { return nil }
func (s *spyBackend) Teardown()    {}

func (s *spyBackend) Send(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, message)
	return nil
}

func (s *spyBackend) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *spyBackend) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func TestCooldownSuppression(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	spy := &spyBackend{}
	l := NewLimiter(LimiterConfig{
		CooldownSeconds: 30,
		Backend:         spy,
		Clock:           fake,
	})

	l.Trigger(7, "x")
	if spy.count() != 1 {
		t.Fatalf("after first trigger: %d sends, want 1", spy.count())
	}

	fake.Advance(5 * time.Second)
	l.Trigger(7, "x")
	if spy.count() != 1 {
		t.Errorf("trigger inside cooldown: %d sends, want 1", spy.count())
	}

	fake.Advance(30 * time.Second) // 35s since the send
	l.Trigger(7, "x")
	if spy.count() != 2 {
		t.Errorf("trigger after cooldown: %d sends, want 2", spy.count())
	}
}

func TestCooldownPerID(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	spy := &spyBackend{}
	l := NewLimiter(LimiterConfig{CooldownSeconds: 30, Backend: spy, Clock: fake})

	l.Trigger(1, "a")
	l.Trigger(2, "b")
	if spy.count() != 2 {
		t.Errorf("distinct ids: %d sends, want 2", spy.count())
	}
}

func TestBoundaryExactCooldown(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	spy := &spyBackend{}
	l := NewLimiter(LimiterConfig{CooldownSeconds: 30, Backend: spy, Clock: fake})

	l.Trigger(1, "a")
	fake.Advance(30 * time.Second)
	// now - last_send == cooldown: still suppressed.
	l.Trigger(1, "a")
	if spy.count() != 1 {
		t.Errorf("trigger at exact cooldown boundary: %d sends, want 1", spy.count())
	}
}

func TestMaxTotalSends(t *testing.T) {
	spy := &spyBackend{}
	l := NewLimiter(LimiterConfig{
		CooldownSeconds: 0,
		MaxTotalSends:   2,
		Backend:         spy,
		Clock:           clock.NewFake(time.Unix(0, 0)),
	})

	l.Trigger(1, "a")
	l.Trigger(2, "b")
	l.Trigger(3, "c")
	if spy.count() != 2 {
		t.Errorf("with cap 2: %d sends, want 2", spy.count())
	}
}

func TestZeroCapUnlimited(t *testing.T) {
	spy := &spyBackend{}
	l := NewLimiter(LimiterConfig{Backend: spy, Clock: clock.NewFake(time.Unix(0, 0))})

	for i := 0; i < 50; i++ {
		l.Trigger(i, "m")
	}
	if spy.count() != 50 {
		t.Errorf("unlimited cap: %d sends, want 50", spy.count())
	}
}

func TestFailedSendDoesNotArmCooldown(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	spy := &spyBackend{}
	spy.setErr(errors.New("gateway down"))
	l := NewLimiter(LimiterConfig{CooldownSeconds: 30, MaxTotalSends: 5, Backend: spy, Clock: fake})

	l.Trigger(1, "a")
	if spy.count() != 0 {
		t.Fatalf("failed send recorded a message")
	}

	// Gateway recovers; the very next trigger must go through even
	// though no cooldown has elapsed, and the failed attempt must not
	// have consumed the lifetime cap.
	spy.setErr(nil)
	l.Trigger(1, "a")
	if spy.count() != 1 {
		t.Errorf("retry after failure: %d sends, want 1", spy.count())
	}
	if got := l.TotalSends(); got != 1 {
		t.Errorf("TotalSends = %d, want 1", got)
	}
}

func TestNoBackendNeverPanics(t *testing.T) {
	l := NewLimiter(LimiterConfig{CooldownSeconds: 1})
	for i := 0; i < 10; i++ {
		l.Trigger(i, "dropped")
	}
}

func TestConcurrentTriggers(t *testing.T) {
	spy := &spyBackend{}
	l := NewLimiter(LimiterConfig{CooldownSeconds: 3600, Backend: spy})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Trigger(42, "storm")
			}
		}()
	}
	wg.Wait()

	// Exactly one send can win the first slot; everything after is
	// inside the cooldown window. The race between the first batch of
	// concurrent triggers may let a handful through before lastSend is
	// armed, but never hundreds.
	if spy.count() == 0 || spy.count() > 8 {
		t.Errorf("concurrent triggers produced %d sends, want 1..8", spy.count())
	}
}

func TestTruncateUTF16(t *testing.T) {
	if got := truncateUTF16("hello", 10); got != "hello" {
		t.Errorf("short message truncated: %q", got)
	}
	if got := truncateUTF16("hello", 3); got != "hel" {
		t.Errorf("truncateUTF16(hello, 3) = %q, want hel", got)
	}
	// Astral-plane runes count as two units and are never split.
	if got := truncateUTF16("a\U0001F600b", 2); got != "a" {
		t.Errorf("truncateUTF16 split a surrogate pair: %q", got)
	}
	if got := truncateUTF16("a\U0001F600b", 3); got != "a\U0001F600" {
		t.Errorf("truncateUTF16(3) = %q", got)
	}
}
