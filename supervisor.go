// Package supervisor wires together ConfigLoader, Logger, TelemetryPublisher,
// ProcessManager, Monitor, and CommandHandler, and owns the signal-driven
// shutdown sequence.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/rover-supervisor/internal/command"
	"github.com/loykin/rover-supervisor/internal/config"
	"github.com/loykin/rover-supervisor/internal/logger"
	"github.com/loykin/rover-supervisor/internal/metrics"
	"github.com/loykin/rover-supervisor/internal/monitor"
	"github.com/loykin/rover-supervisor/internal/process"
	"github.com/loykin/rover-supervisor/internal/server"
	"github.com/loykin/rover-supervisor/internal/subsystem"
	"github.com/loykin/rover-supervisor/internal/telemetry"
)

// Options configures construction. SubsystemsRoot and ConfigPath are the
// only required fields; MetricsListen is optional and, when empty, the
// status server is never started even if the config file enables metrics.
type Options struct {
	SubsystemsRoot string
	ConfigPath     string
	MetricsListen  string
}

// Supervisor owns every other component's lifetime.
type Supervisor struct {
	opts Options
	log  *slog.Logger

	cfg       *config.SupervisorConfig
	reg       *subsystem.Registry
	telemetry *telemetry.Publisher
	pm        *process.Manager
	ch        *command.Handler
	mon       *monitor.Monitor
	srv       *server.Server

	ctx    context.Context
	cancel context.CancelFunc

	stopping     atomic.Bool
	shutdownOnce sync.Once
}

// New performs every construction-time wiring step: SupervisorConfig, then
// Logger (and the startup banner), then the registry (ConfigLoader), then the
// TelemetryPublisher bind, then ProcessManager, CommandHandler, and
// Monitor — cross-injecting CommandHandler's callback into ProcessManager
// only after both exist, breaking the construction cycle.
func New(opts Options) (*Supervisor, error) {
	cfg, err := config.LoadSupervisorConfig(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load supervisor config: %w", err)
	}

	log := logger.New(logger.Config{
		Dir:        cfg.Log.Dir,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	logBanner(log)

	reg, err := config.Load(log, opts.SubsystemsRoot, cfg.HeartbeatInterval)
	if err != nil {
		return nil, fmt.Errorf("unrecoverable construction failure: loading subsystems: %w", err)
	}

	pub, err := telemetry.Bind(log, cfg.PortInterprocess)
	if err != nil {
		return nil, fmt.Errorf("unrecoverable construction failure: telemetry publisher cannot bind: %w", err)
	}

	pm := process.NewManager(log, pub, reg, cfg.HeartbeatInterval)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		opts: opts, log: log, cfg: cfg, reg: reg, telemetry: pub, pm: pm,
		ctx: ctx, cancel: cancel,
	}

	ch := command.New(log, pub, reg, pm, s.initiateShutdown)
	pm.CommandCallback = s.dispatchIfNotStopping(ch)
	s.ch = ch

	s.mon = monitor.New(log, reg, pm, cfg.MonitorIntervalDuration(), cfg.HeartbeatTimeoutDuration(), cfg.RestartDelayDuration())

	if cfg.Metrics.Enabled || opts.MetricsListen != "" {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			log.Warn("metrics registration failed", "error", err)
		}
		s.srv = server.New(reg)
	}

	return s, nil
}

// dispatchIfNotStopping wraps CommandHandler.Handle so that once shutdown
// has begun, no further command is scheduled — step 1 of the shutdown
// sequence.
func (s *Supervisor) dispatchIfNotStopping(ch *command.Handler) func([]string) {
	return func(tokens []string) {
		if s.stopping.Load() {
			return
		}
		ch.Handle(tokens)
	}
}

// Run launches every tier, starts the monitor loop, and blocks until a
// shutdown is triggered (by SIGINT/SIGTERM or a confirmed restart-all),
// then runs the shutdown sequence. Returns the process exit code.
func (s *Supervisor) Run() int {
	sigCh := make(chan os.Signal, 1)
	registerShutdownSignals(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			s.log.Warn("received shutdown signal")
			s.initiateShutdown()
		}
	}()

	if s.srv != nil && s.opts.MetricsListen != "" {
		go func() {
			if err := s.srv.Serve(s.opts.MetricsListen); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("status server failed", "error", err)
			}
		}()
	}

	s.pm.StartAll(s.ctx)
	go s.mon.Run(s.ctx)

	<-s.ctx.Done()
	return s.shutdownSequence()
}

// initiateShutdown marks the supervisor stopping and cancels every task
// derived from s.ctx. Safe to call more than once (signal handler and a
// confirmed restart-all can both reach it).
func (s *Supervisor) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		s.stopping.Store(true)
		s.cancel()
	})
}

// shutdownSequence runs steps 2-5 of the ordered shutdown: stop_all,
// (outstanding tasks are already cancelled via s.ctx), close the
// publisher, and emit a completion log line.
func (s *Supervisor) shutdownSequence() int {
	s.log.Warn("shutdown sequence starting")
	s.pm.StopAll()
	if err := s.telemetry.Close(); err != nil {
		s.log.Warn("error closing telemetry publisher", "error", err)
	}
	logger.Success(s.log, "supervisor shutdown complete")
	return 0
}
