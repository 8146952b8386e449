// Package monitor implements the single long-running liveness scan loop:
// it detects stalled heartbeats and unexpected exits and schedules
// policy-driven restarts through ProcessManager.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/loykin/rover-supervisor/internal/metrics"
	"github.com/loykin/rover-supervisor/internal/process"
	"github.com/loykin/rover-supervisor/internal/subsystem"
)

// Monitor scans the registry at a fixed cadence and schedules restarts.
type Monitor struct {
	log  *slog.Logger
	reg  *subsystem.Registry
	pm   *process.Manager

	scanInterval     time.Duration
	heartbeatTimeout time.Duration
	restartDelay     time.Duration
}

func New(log *slog.Logger, reg *subsystem.Registry, pm *process.Manager, scanInterval, heartbeatTimeout, restartDelay time.Duration) *Monitor {
	return &Monitor{log: log, reg: reg, pm: pm, scanInterval: scanInterval, heartbeatTimeout: heartbeatTimeout, restartDelay: restartDelay}
}

// Run blocks, ticking at scanInterval, until ctx is cancelled.
func (mon *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(mon.scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mon.scanOnce(ctx)
		}
	}
}

// scanOnce iterates every subsystem in ascending priority_rank order,
// stable on insertion order for ties, and reads a point-in-time snapshot
// of each; it never attempts an atomic multi-record snapshot.
func (mon *Monitor) scanOnce(ctx context.Context) {
	for _, sub := range mon.reg.ByPriorityAscending() {
		if sub.IntentionallyStopped() {
			continue
		}

		child := sub.Process()
		if child == nil {
			mon.ensureRestartScheduled(ctx, sub)
			continue
		}

		if exited, err := child.Exited(); exited {
			mon.log.Warn("subsystem exited unexpectedly", "subsystem", sub.Name, "error", err)
			sub.SetProcess(nil)
			mon.ensureRestartScheduled(ctx, sub)
			continue
		}

		last := sub.LastHeartbeat()
		if last == 0 {
			continue // hasn't had a chance to emit its first pulse yet
		}
		if heartbeatTimedOut(last, time.Now(), mon.heartbeatTimeout) {
			mon.log.Warn("heartbeat timeout, killing subsystem", "subsystem", sub.Name, "timeout", mon.heartbeatTimeout)
			metrics.IncHeartbeatTimeout(sub.Name)
			mon.pm.Kill(sub)
			mon.ensureRestartScheduled(ctx, sub)
		}
	}
}

// heartbeatTimedOut reports whether now is strictly more than timeout past
// last. Exactly timeout elapsed is NOT a timeout — only the next tick past
// it is.
func heartbeatTimedOut(lastUnixNano int64, now time.Time, timeout time.Duration) bool {
	return now.Sub(time.Unix(0, lastUnixNano)) > timeout
}

func (mon *Monitor) ensureRestartScheduled(ctx context.Context, sub *subsystem.Subsystem) {
	if sub.RestartPending() {
		return
	}
	mon.scheduleRestart(ctx, sub)
}

// scheduleRestart sets restart_pending, launches a self-terminating task
// that waits restartDelay, clears the flag, re-checks
// intentionally_stopped (aborting if it was set while waiting), and asks
// ProcessManager to start the subsystem again.
func (mon *Monitor) scheduleRestart(ctx context.Context, sub *subsystem.Subsystem) {
	sub.SetRestartPending(true)
	go func() {
		t := time.NewTimer(mon.restartDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		sub.SetRestartPending(false)
		if sub.IntentionallyStopped() {
			return
		}
		metrics.IncRestart(sub.Name)
		if err := mon.pm.Start(sub); err != nil {
			mon.log.Error("scheduled restart failed", "subsystem", sub.Name, "error", err)
		}
	}()
}
