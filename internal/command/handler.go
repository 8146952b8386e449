// Package command implements the inline operator command protocol: token
// vectors the StreamDemux extracts from a "SYSTEM CMD ..." line and hands
// here asynchronously.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/loykin/rover-supervisor/internal/process"
	"github.com/loykin/rover-supervisor/internal/subsystem"
	"github.com/loykin/rover-supervisor/internal/telemetry"
)

const helpText = "commands: restart <name> | stop <name> | start <name> | restart-all | help"

// Handler is the stateful arbiter of operator commands. The restart-all
// confirmation flag is process-global within the Handler, exactly as
// specified; there is no timeout on confirmation and no check that the
// confirming command came from the same source as the original request.
type Handler struct {
	log       *slog.Logger
	telemetry *telemetry.Publisher
	reg       *subsystem.Registry
	pm        *process.Manager
	shutdown  func()

	mu                sync.Mutex
	restartAllPending bool
}

// New constructs a CommandHandler. shutdown is invoked (in the Supervisor's
// own goroutine convention — callers should make it non-blocking) once a
// restart-all is confirmed.
func New(log *slog.Logger, pub *telemetry.Publisher, reg *subsystem.Registry, pm *process.Manager, shutdown func()) *Handler {
	return &Handler{log: log, telemetry: pub, reg: reg, pm: pm, shutdown: shutdown}
}

// Handle processes one token vector, e.g. ["SYSTEM", "CMD", "restart", "drive"].
func (h *Handler) Handle(tokens []string) {
	h.mu.Lock()
	pending := h.restartAllPending
	h.mu.Unlock()
	if pending {
		h.confirmRestartAll(tokens)
		return
	}

	if len(tokens) < 3 {
		h.reply("No command specified", slog.LevelError)
		return
	}

	sub := strings.ToLower(tokens[2])
	args := tokens[3:]
	switch sub {
	case "restart":
		h.restart(args)
	case "stop":
		h.stop(args)
	case "start":
		h.start(args)
	case "restart-all":
		h.beginRestartAll()
	case "help":
		h.help()
	default:
		h.reply(fmt.Sprintf("Unknown command: %s", sub), slog.LevelError)
	}
}

func (h *Handler) restart(args []string) {
	name, ok := h.argOrError(args, "restart")
	if !ok {
		return
	}
	s, ok := h.reg.Get(name)
	if !ok {
		h.reply(fmt.Sprintf("Unknown subsystem: %s", name), slog.LevelError)
		return
	}
	h.pm.Stop(s)
	if err := h.pm.Start(s); err != nil {
		h.reply(fmt.Sprintf("Failed to restart %s: %v", name, err), slog.LevelError)
		return
	}
	h.reply(fmt.Sprintf("Restarted %s", name), slog.LevelWarn)
}

func (h *Handler) stop(args []string) {
	name, ok := h.argOrError(args, "stop")
	if !ok {
		return
	}
	if name == "telemetry" {
		h.reply("BLOCKED: telemetry is the operator's only feedback channel and cannot be stopped", slog.LevelError)
		return
	}
	s, ok := h.reg.Get(name)
	if !ok {
		h.reply(fmt.Sprintf("Unknown subsystem: %s", name), slog.LevelError)
		return
	}
	h.pm.Stop(s)
	h.reply(fmt.Sprintf("Stopped %s", name), slog.LevelWarn)
}

func (h *Handler) start(args []string) {
	name, ok := h.argOrError(args, "start")
	if !ok {
		return
	}
	s, ok := h.reg.Get(name)
	if !ok {
		h.reply(fmt.Sprintf("Unknown subsystem: %s", name), slog.LevelError)
		return
	}
	if child := s.Process(); child != nil {
		if exited, _ := child.Exited(); !exited {
			h.reply(fmt.Sprintf("%s is already running", name), slog.LevelError)
			return
		}
	}
	if err := h.pm.Start(s); err != nil {
		h.reply(fmt.Sprintf("Failed to start %s: %v", name, err), slog.LevelError)
		return
	}
	h.reply(fmt.Sprintf("Started %s", name), slog.LevelWarn)
}

func (h *Handler) beginRestartAll() {
	h.mu.Lock()
	h.restartAllPending = true
	h.mu.Unlock()
	h.reply("restart-all requested: send \"SYSTEM CMD restart-all y\" to confirm, anything else cancels", slog.LevelWarn)
}

// confirmRestartAll consumes the next inline command as the restart-all
// confirmation. The answer is token[2] ("SYSTEM CMD y"), or token[3] when
// token[2] repeats the subcommand ("SYSTEM CMD restart-all y"); "y" in
// either form confirms, anything else cancels. There is deliberately no
// check that the confirming line came from the same subsystem that saw the
// original request.
func (h *Handler) confirmRestartAll(tokens []string) {
	h.mu.Lock()
	h.restartAllPending = false
	h.mu.Unlock()

	answer := ""
	if len(tokens) >= 3 {
		answer = tokens[2]
	}
	if strings.EqualFold(answer, "restart-all") && len(tokens) >= 4 {
		answer = tokens[3]
	}
	if strings.EqualFold(answer, "y") {
		h.reply("restart-all confirmed, shutting down for external restart", slog.LevelWarn)
		if h.shutdown != nil {
			h.shutdown()
		}
		return
	}
	h.reply("restart-all cancelled", slog.LevelInfo)
}

func (h *Handler) help() {
	h.reply(helpText, slog.LevelInfo)
}

func (h *Handler) argOrError(args []string, cmd string) (string, bool) {
	if len(args) < 1 || strings.TrimSpace(args[0]) == "" {
		h.reply(fmt.Sprintf("%s requires a subsystem name", cmd), slog.LevelError)
		return "", false
	}
	return args[0], true
}

// reply sends msg to both the supervisor log, at level, and the telemetry
// bus as a "[supervisor]"-attributed frame.
func (h *Handler) reply(msg string, level slog.Level) {
	h.log.Log(context.Background(), level, msg)
	if h.telemetry != nil {
		h.telemetry.Publish(fmt.Sprintf("TELEMETRY %s [supervisor]: %s", levelName(level), msg))
	}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARNING"
	default:
		return "INFO"
	}
}
