// Package logger builds the supervisor's slog.Logger: a colorized console
// sink plus an optional rotating file sink, sharing a custom SUCCESS level
// between INFO and WARNING.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters, mirrored from the teacher's lumberjack
// wiring.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// LevelSuccess sits between slog.LevelInfo (0) and slog.LevelWarn (4),
// mirroring Python's logging.log(level=25, ...) which original_source's
// core.py uses for the boot banner and successful command replies.
const LevelSuccess = slog.Level(2)

// Config describes the supervisor's own rotating log file. An empty Dir
// disables file logging; console logging is always present.
type Config struct {
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func (c Config) fileWriter() io.Writer {
	if c.Dir == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   filepath.Join(c.Dir, "supervisor.log"),
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// levelNames maps the custom SUCCESS level to a readable label so the
// console and any file sink print "SUCCESS" instead of "INFO+2".
var levelNames = map[slog.Leveler]string{
	LevelSuccess: "SUCCESS",
}

func replaceLevelAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	if name, ok := levelNames[level]; ok {
		a.Value = slog.StringValue(name)
	}
	return a
}

// New builds the supervisor logger: a colorized handler on stdout, and,
// when cfg.Dir is set, a second plain-text handler writing to a rotated
// file, fanned out via slog.Handler composition.
func New(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug, ReplaceAttr: replaceLevelAttr}
	consoleHandler := NewColorTextHandler(os.Stdout, opts, true)

	if fw := cfg.fileWriter(); fw != nil {
		fileOpts := &slog.HandlerOptions{Level: slog.LevelDebug, ReplaceAttr: replaceLevelAttr}
		fileHandler := slog.NewTextHandler(fw, fileOpts)
		return slog.New(&fanoutHandler{handlers: []slog.Handler{consoleHandler, fileHandler}})
	}
	return slog.New(consoleHandler)
}

// Success logs at the custom SUCCESS level, used for the boot banner and
// the shutdown-complete line.
func Success(l *slog.Logger, msg string, args ...any) {
	l.Log(context.Background(), LevelSuccess, msg, args...)
}
