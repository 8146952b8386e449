package process

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/loykin/rover-supervisor/internal/subsystem"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager() *Manager {
	return &Manager{log: discardLogger()}
}

func TestClassifyHeartbeatUpdatesTimestamp(t *testing.T) {
	m := newTestManager()
	s := subsystem.New("drive", 1, "", nil)
	before := s.LastHeartbeat()

	m.classify(s, "HEARTBEAT", false)

	if s.LastHeartbeat() == before {
		t.Fatal("HEARTBEAT line should update last_heartbeat")
	}
}

func TestClassifyDebugIsDropped(t *testing.T) {
	var buf bytes.Buffer
	m := &Manager{log: slog.New(slog.NewTextHandler(&buf, nil))}
	s := subsystem.New("arm", 1, "", nil)

	var dispatched bool
	m.CommandCallback = func([]string) { dispatched = true }

	m.classify(s, `{"level":"debug","msg":"noisy"}`, false)

	if buf.Len() != 0 {
		t.Fatalf("DEBUG line should not be logged, got: %s", buf.String())
	}
	if dispatched {
		t.Fatal("DEBUG line should never reach the command dispatcher")
	}
}

func TestClassifySystemCmdDispatchesAsynchronously(t *testing.T) {
	m := newTestManager()
	s := subsystem.New("arm", 1, "", nil)

	done := make(chan []string, 1)
	m.CommandCallback = func(tokens []string) { done <- tokens }

	m.classify(s, `{"level":"info","msg":"SYSTEM CMD stop arm"}`, false)

	select {
	case tokens := <-done:
		want := []string{"SYSTEM", "CMD", "stop", "arm"}
		if strings.Join(tokens, " ") != strings.Join(want, " ") {
			t.Fatalf("tokens = %v, want %v", tokens, want)
		}
	case <-time.After(time.Second):
		t.Fatal("command callback was never invoked")
	}
}

func TestClassifyJSONPrefixDoesNotPrintToConsole(t *testing.T) {
	var buf bytes.Buffer
	m := &Manager{log: slog.New(slog.NewTextHandler(&buf, nil))}
	s := subsystem.New("telemetry", 1, "", nil)

	msg := `JSON {"type":"drive","data":{}}`
	encodedMsg, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal msg: %v", err)
	}
	line := `{"level":"INFO","msg":` + string(encodedMsg) + `}`

	m.classify(s, line, false)

	if buf.Len() != 0 {
		t.Fatalf("JSON-prefixed msg must not be printed to console, got: %s", buf.String())
	}
}

func TestClassifyPlainLineIsDecoratedAndLevelDerivedFromStream(t *testing.T) {
	var buf bytes.Buffer
	m := &Manager{log: slog.New(slog.NewTextHandler(&buf, nil))}
	s := subsystem.New("vitals", 1, "", nil)

	m.classify(s, "unparseable raw output", true) // stderr -> ERROR

	out := buf.String()
	if !strings.Contains(out, "[vitals] unparseable raw output") {
		t.Fatalf("expected decorated message in log output, got: %s", out)
	}
	if !strings.Contains(out, "level=ERROR") {
		t.Fatalf("expected ERROR level for an unparseable stderr line, got: %s", out)
	}
}

func TestClassifyPlainLineDefaultsToInfoOnStdout(t *testing.T) {
	var buf bytes.Buffer
	m := &Manager{log: slog.New(slog.NewTextHandler(&buf, nil))}
	s := subsystem.New("vitals", 1, "", nil)

	m.classify(s, "unparseable raw output", false)

	out := buf.String()
	if !strings.Contains(out, "level=INFO") {
		t.Fatalf("expected INFO level for an unparseable stdout line, got: %s", out)
	}
}
