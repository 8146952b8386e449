// Package process is the sole owner of subsystem child processes: it
// spawns them, demultiplexes their two output streams (see demux.go),
// terminates them gracefully or forcefully, and reports liveness changes
// to Monitor via the Subsystem records themselves.
package process

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/loykin/rover-supervisor/internal/metrics"
	"github.com/loykin/rover-supervisor/internal/subsystem"
	"github.com/loykin/rover-supervisor/internal/telemetry"
)

// GracePeriod is the wall-clock budget a graceful stop gets before
// escalating to a hard kill.
const GracePeriod = 5 * time.Second

// Manager owns every subsystem's child process.
type Manager struct {
	log               *slog.Logger
	telemetry         *telemetry.Publisher
	reg               *subsystem.Registry
	heartbeatInterval float64 // seconds, passed to every child as --heartbeat

	// CommandCallback is injected by Supervisor after both Manager and
	// CommandHandler exist, breaking the Supervisor/CommandHandler/
	// ProcessManager construction cycle described in the design notes.
	CommandCallback func(tokens []string)
}

// NewManager constructs a ProcessManager bound to reg. heartbeatInterval is
// SupervisorConfig's HEARTBEAT_INTERVAL, in seconds, forwarded to every
// child's --heartbeat flag.
func NewManager(log *slog.Logger, pub *telemetry.Publisher, reg *subsystem.Registry, heartbeatInterval float64) *Manager {
	return &Manager{log: log, telemetry: pub, reg: reg, heartbeatInterval: heartbeatInterval}
}

// StartAll launches every subsystem in three sequential priority tiers,
// parallel within a tier. It returns once the last tier's starts have all
// returned.
func (m *Manager) StartAll(ctx context.Context) {
	tier1, tier2, tier3 := m.reg.ByTier()
	for _, tier := range [][]*subsystem.Subsystem{tier1, tier2, tier3} {
		var wg sync.WaitGroup
		for _, sub := range tier {
			wg.Add(1)
			go func(sub *subsystem.Subsystem) {
				defer wg.Done()
				m.Start(sub)
			}(sub)
		}
		wg.Wait()
	}
}

// Start spawns sub's entry process if it isn't already live. Idempotent:
// a no-op when a live process handle already exists.
func (m *Manager) Start(sub *subsystem.Subsystem) error {
	if child := sub.Process(); child != nil {
		if exited, _ := child.Exited(); !exited {
			return nil // already live
		}
	}

	args := append([]string{"--heartbeat", strconv.FormatFloat(m.heartbeatInterval, 'g', -1, 64)}, sub.ExtraArgs...)
	cmd := exec.Command(sub.Path, args...)
	configureSysProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		m.log.Error("spawn failed: stdout pipe", "subsystem", sub.Name, "error", err)
		sub.SetProcess(nil)
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		m.log.Error("spawn failed: stderr pipe", "subsystem", sub.Name, "error", err)
		sub.SetProcess(nil)
		return err
	}

	if err := cmd.Start(); err != nil {
		m.log.Error("spawn failed", "subsystem", sub.Name, "error", err)
		sub.SetProcess(nil)
		return err
	}

	child := subsystem.NewChild(cmd, stdout, stderr)
	child.StartedAt = time.Now()
	sub.SetProcess(child)
	sub.ResetHeartbeat()
	sub.TouchHeartbeat(time.Now())
	sub.SetIntentionallyStopped(false)

	metrics.IncStart(sub.Name)
	metrics.SetRunning(sub.Name, true)

	go m.readStream(sub, stdout, false)
	go m.readStream(sub, stderr, true)
	go m.reap(sub, child)

	m.log.Info("subsystem started", "subsystem", sub.Name, "path", sub.Path)
	return nil
}

// reap waits for the child to exit and records the result on its Child
// handle. It never decides whether to restart — that is Monitor's job,
// driven by periodically inspecting Child.Exited().
func (m *Manager) reap(sub *subsystem.Subsystem, child *subsystem.Child) {
	err := child.Cmd.Wait()
	child.MarkExited(err)
	metrics.SetRunning(sub.Name, false)
}

// Stop marks sub as intentionally stopped and terminates its process
// gracefully, escalating to a hard kill after GracePeriod. A no-op
// (besides setting the flag) when no process is live.
func (m *Manager) Stop(sub *subsystem.Subsystem) {
	sub.SetIntentionallyStopped(true)
	child := sub.Process()
	if child == nil {
		return
	}
	if exited, _ := child.Exited(); exited {
		sub.SetProcess(nil)
		return
	}

	if err := terminateGracefully(child.Cmd); err != nil {
		m.log.Warn("graceful terminate signal failed", "subsystem", sub.Name, "error", err)
	}

	select {
	case <-child.WaitDone():
	case <-time.After(GracePeriod):
		if err := killHard(child.Cmd); err != nil {
			m.log.Warn("hard kill signal failed", "subsystem", sub.Name, "error", err)
		}
		<-child.WaitDone()
	}

	sub.SetProcess(nil)
	metrics.IncStop(sub.Name)
	m.log.Info("subsystem stopped", "subsystem", sub.Name)
}

// StopAll stops every subsystem in parallel.
func (m *Manager) StopAll() {
	var wg sync.WaitGroup
	for _, sub := range m.reg.All() {
		wg.Add(1)
		go func(sub *subsystem.Subsystem) {
			defer wg.Done()
			m.Stop(sub)
		}(sub)
	}
	wg.Wait()
}

// Kill hard-kills sub's process immediately, with no grace period, and
// blocks until it has been reaped. Used by Monitor on heartbeat timeout.
// Does not touch intentionally_stopped.
func (m *Manager) Kill(sub *subsystem.Subsystem) {
	child := sub.Process()
	if child == nil {
		return
	}
	if exited, _ := child.Exited(); exited {
		sub.SetProcess(nil)
		return
	}
	if err := killHard(child.Cmd); err != nil {
		m.log.Warn("kill signal failed", "subsystem", sub.Name, "error", err)
	}
	<-child.WaitDone()
	sub.SetProcess(nil)
	metrics.IncStop(sub.Name)
}

// dispatchCommand is called by the demux reader when a line's msg begins
// with "SYSTEM CMD"; it hands the token vector to the injected callback
// asynchronously so a slow command never stalls the stream reader.
func (m *Manager) dispatchCommand(tokens []string) {
	if m.CommandCallback == nil {
		m.log.Warn("received inline command but no handler is wired", "tokens", fmt.Sprint(tokens))
		return
	}
	go m.CommandCallback(tokens)
}
