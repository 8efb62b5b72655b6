package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"avrperiph/hal"
	"avrperiph/host/loopback"
	"avrperiph/host/mcu"
)

// syncBuffer is written from the MCU reader goroutine by event callbacks.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestShell(t *testing.T) (*shell, *syncBuffer) {
	t.Helper()
	lb, err := loopback.Start(hal.CPUFrequency)
	if err != nil {
		t.Fatalf("loopback: %v", err)
	}
	m := mcu.New()
	m.Attach(lb.Conn())
	t.Cleanup(func() {
		m.Close()
		lb.Close()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.RetrieveDictionary(ctx); err != nil {
		t.Fatalf("RetrieveDictionary: %v", err)
	}
	out := &syncBuffer{}
	return newShell(m, out), out
}

func TestShellTimerCommands(t *testing.T) {
	sh, out := newTestShell(t)

	script := strings.Join([]string{
		"timer 1 ctc-ocra 10 toggle 8",
		"timer 1 ctc-ocra 1 disconnected 3",
		"timer 0 ctc-ocra 100 disconnected 64",
		"stop 1",
		"read 1",
		"bogus",
		"quit",
		"clock",
	}, "\n")
	if err := sh.run(context.Background(), strings.NewReader(script)); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"timer 1: ctc-ocra clk/8 compare=toggle ticks=19999",
		"prescaler not available, using clk/1",
		"period too long",
		"unknown command: bogus",
		"Goodbye!",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "clock:") {
		t.Error("commands after quit were run")
	}
}

func TestShellUsageErrors(t *testing.T) {
	sh, _ := newTestShell(t)
	ctx := context.Background()

	for _, line := range []string{"timer 1", "read", "read 3", "adc 1", "send", "send get_clock x"} {
		parts := strings.Fields(line)
		if err := sh.exec(ctx, parts[0], parts[1:]); err == nil {
			t.Errorf("%q succeeded", line)
		}
	}
}

func TestShellEmergencyStop(t *testing.T) {
	sh, out := newTestShell(t)
	ctx := context.Background()

	if err := sh.exec(ctx, "estop", nil); err != nil {
		t.Fatalf("estop: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "[shutdown] emergency stop") {
		if time.Now().After(deadline) {
			t.Fatalf("no shutdown report:\n%s", out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := sh.exec(ctx, "status", nil); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out.String(), "shutdown=true") {
		t.Errorf("status output:\n%s", out.String())
	}
}
