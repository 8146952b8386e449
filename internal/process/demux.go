package process

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/loykin/rover-supervisor/internal/subsystem"
)

// structuredLine is the shape of a child's structured log line.
type structuredLine struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

// readStream is one of the two concurrent StreamDemux readers attached to
// a live child (stdout, stderr). It classifies every trimmed line in the
// precedence order fixed by the protocol and returns cleanly at end of
// stream; a closed pipe does not by itself mark the subsystem dead, that
// detection belongs to Monitor.
func (m *Manager) readStream(sub *subsystem.Subsystem, r io.Reader, isStderr bool) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		m.classify(sub, line, isStderr)
	}
}

func (m *Manager) classify(sub *subsystem.Subsystem, line string, isStderr bool) {
	// 1. literal HEARTBEAT pulse.
	if line == "HEARTBEAT" {
		sub.TouchHeartbeat(time.Now())
		return
	}

	// 2. attempt structured JSON decode.
	var level, msg string
	var sl structuredLine
	if err := json.Unmarshal([]byte(line), &sl); err == nil {
		msg = sl.Msg
		level = strings.ToUpper(strings.TrimSpace(sl.Level))
		if level == "" {
			level = "INFO"
		}
	} else {
		msg = line
		if isStderr {
			level = "ERROR"
		} else {
			level = "INFO"
		}
	}

	// 3. DEBUG is dropped silently, console and telemetry both.
	if level == "DEBUG" {
		return
	}

	// 4. inline operator command.
	if strings.HasPrefix(msg, "SYSTEM CMD") {
		tokens := strings.Fields(msg)
		m.dispatchCommand(tokens)
		return
	}

	// 5. telemetry envelope: forwarded verbatim past the prefix, never
	// printed to console.
	if strings.HasPrefix(msg, "JSON ") {
		m.publish("TELEMETRY " + msg)
		return
	}

	// 6. plain decorated log line, printed and forwarded.
	m.log.Log(context.Background(), slogLevel(level), fmt.Sprintf("[%s] %s", sub.Name, msg))
	m.publish(fmt.Sprintf("TELEMETRY %s [%s]: %s", level, sub.Name, msg))
}

func (m *Manager) publish(frame string) {
	if m.telemetry == nil {
		return
	}
	m.telemetry.Publish(frame)
}

func slogLevel(level string) slog.Level {
	switch level {
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
