package process

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/rover-supervisor/internal/subsystem"
)

// writeHeartbeatScript writes a tiny shell entry that emits HEARTBEAT every
// 20ms and exits cleanly on SIGTERM, in the teacher's own fashion of using
// /bin/sh -c one-liners as test fixtures instead of real subsystem
// binaries.
func writeHeartbeatScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "entry.sh")
	script := "#!/bin/sh\ntrap 'exit 0' TERM\nwhile true; do echo HEARTBEAT; sleep 0.02; done\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fixture script: %v", err)
	}
	return path
}

func newTestManagerWithRegistry(t *testing.T) (*Manager, *subsystem.Registry) {
	t.Helper()
	reg := subsystem.NewRegistry()
	m := NewManager(discardLogger(), nil, reg, 1)
	return m, reg
}

func TestStartSpawnsProcessAndHeartbeatAdvances(t *testing.T) {
	m, _ := newTestManagerWithRegistry(t)
	s := subsystem.New("drive", 1, writeHeartbeatScript(t), nil)

	if err := m.Start(s); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Kill(s)

	if s.Process() == nil {
		t.Fatal("expected a live process handle after Start")
	}

	initial := s.LastHeartbeat()
	deadline := time.After(2 * time.Second)
	for s.LastHeartbeat() == initial {
		select {
		case <-deadline:
			t.Fatal("last_heartbeat never advanced past its spawn-time value")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStartIsIdempotentWhileLive(t *testing.T) {
	m, _ := newTestManagerWithRegistry(t)
	s := subsystem.New("drive", 1, writeHeartbeatScript(t), nil)

	if err := m.Start(s); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer m.Kill(s)

	first := s.Process()
	if err := m.Start(s); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if s.Process() != first {
		t.Fatal("Start while already live must be a no-op, not replace the child handle")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	m, _ := newTestManagerWithRegistry(t)
	s := subsystem.New("drive", 1, writeHeartbeatScript(t), nil)

	if err := m.Start(s); err != nil {
		t.Fatalf("Start: %v", err)
	}

	m.Stop(s)
	if s.Process() != nil {
		t.Fatal("expected process to be cleared after Stop")
	}
	if !s.IntentionallyStopped() {
		t.Fatal("expected intentionally_stopped after Stop")
	}

	m.Stop(s) // second call must be a safe no-op
	if s.Process() != nil {
		t.Fatal("second Stop must remain a no-op, not error or panic")
	}
}

func TestKillLeavesIntentionallyStoppedUntouched(t *testing.T) {
	m, _ := newTestManagerWithRegistry(t)
	s := subsystem.New("drive", 1, writeHeartbeatScript(t), nil)

	if err := m.Start(s); err != nil {
		t.Fatalf("Start: %v", err)
	}

	m.Kill(s)

	if s.Process() != nil {
		t.Fatal("expected process to be cleared after Kill")
	}
	if s.IntentionallyStopped() {
		t.Fatal("Kill must not set intentionally_stopped")
	}
}

func TestStartAllRespectsTierOrdering(t *testing.T) {
	m, reg := newTestManagerWithRegistry(t)
	script := writeHeartbeatScript(t)
	_ = reg.Add(subsystem.New("infra", 1, script, nil))
	_ = reg.Add(subsystem.New("app", 50, script, nil))
	_ = reg.Add(subsystem.New("extra", 200, script, nil))

	m.StartAll(nil)
	defer func() {
		for _, s := range reg.All() {
			m.Kill(s)
		}
	}()

	for _, s := range reg.All() {
		if s.Process() == nil {
			t.Fatalf("expected %s to be running after StartAll returned", s.Name)
		}
	}

	// Tiers run one after another, so no tier's spawn may precede the
	// previous tier's.
	infra, _ := reg.Get("infra")
	app, _ := reg.Get("app")
	extra, _ := reg.Get("extra")
	if infra.Process().StartedAt.After(app.Process().StartedAt) {
		t.Fatal("tier 2 (app) started before tier 1 (infra)")
	}
	if app.Process().StartedAt.After(extra.Process().StartedAt) {
		t.Fatal("tier 3 (extra) started before tier 2 (app)")
	}
}
