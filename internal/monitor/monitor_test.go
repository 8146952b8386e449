package monitor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/loykin/rover-supervisor/internal/process"
	"github.com/loykin/rover-supervisor/internal/subsystem"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHeartbeatTimedOutBoundary(t *testing.T) {
	timeout := 20 * time.Second
	now := time.Unix(1000, 0)
	last := now.Add(-timeout).UnixNano()

	if heartbeatTimedOut(last, now, timeout) {
		t.Fatal("exactly HEARTBEAT_TIMEOUT elapsed must NOT be considered timed out")
	}

	oneTickBeyond := now.Add(time.Nanosecond)
	if !heartbeatTimedOut(last, oneTickBeyond, timeout) {
		t.Fatal("one tick beyond HEARTBEAT_TIMEOUT must be considered timed out")
	}
}

func TestScanOnceSkipsIntentionallyStopped(t *testing.T) {
	reg := subsystem.NewRegistry()
	s := subsystem.New("arm", 1, "/nonexistent/entry", nil)
	s.SetIntentionallyStopped(true)
	_ = reg.Add(s)

	pm := process.NewManager(discardLogger(), nil, reg, 10)
	mon := New(discardLogger(), reg, pm, time.Second, 20*time.Second, 10*time.Millisecond)

	mon.scanOnce(context.Background())

	if s.RestartPending() {
		t.Fatal("an intentionally stopped subsystem must never get a restart scheduled")
	}
}

func TestScanOnceSchedulesRestartForAbsentProcess(t *testing.T) {
	reg := subsystem.NewRegistry()
	s := subsystem.New("arm", 1, "/nonexistent/entry", nil)
	_ = reg.Add(s)

	pm := process.NewManager(discardLogger(), nil, reg, 10)
	mon := New(discardLogger(), reg, pm, time.Second, 20*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	mon.scanOnce(ctx)

	if !s.RestartPending() {
		t.Fatal("expected restart_pending to be set for an absent process")
	}

	// The scheduled restart task clears the flag after restartDelay, win
	// or lose (the spawn itself will fail against a nonexistent entry
	// path, but that failure is Start's business, not restart_pending's).
	deadline := time.After(time.Second)
	for s.RestartPending() {
		select {
		case <-deadline:
			t.Fatal("restart_pending was never cleared after the restart delay elapsed")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestScanOnceDoesNotReschedulePendingRestart(t *testing.T) {
	reg := subsystem.NewRegistry()
	s := subsystem.New("arm", 1, "/nonexistent/entry", nil)
	s.SetRestartPending(true)
	_ = reg.Add(s)

	pm := process.NewManager(discardLogger(), nil, reg, 10)
	mon := New(discardLogger(), reg, pm, time.Second, 20*time.Second, time.Hour)

	mon.scanOnce(context.Background())

	// restart_pending was already true and the delay is an hour; scanOnce
	// must not have spawned a second restart task that would clear it
	// early or double-schedule.
	if !s.RestartPending() {
		t.Fatal("scanOnce must not disturb an already-pending restart")
	}
}
