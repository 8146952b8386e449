package logger

import (
	"context"
	"io"
	"log/slog"
)

// ColorTextHandler wraps slog.TextHandler to add ANSI color codes for different log levels
type ColorTextHandler struct {
	*slog.TextHandler
	showTime bool
}

// NewColorTextHandler creates a new ColorTextHandler
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, showTime bool) *ColorTextHandler {
	return &ColorTextHandler{
		TextHandler: slog.NewTextHandler(w, opts),
		showTime:    showTime,
	}
}

// Handle implements slog.Handler
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	// Add color based on level
	var colorCode, levelName string
	switch {
	case r.Level == slog.LevelDebug:
		colorCode, levelName = "\033[36m", "DEBUG" // Cyan
	case r.Level == LevelSuccess:
		colorCode, levelName = "\033[35m", "SUCCESS" // Magenta
	case r.Level == slog.LevelInfo:
		colorCode, levelName = "\033[32m", "INFO" // Green
	case r.Level == slog.LevelWarn:
		colorCode, levelName = "\033[33m", "WARN" // Yellow
	case r.Level == slog.LevelError:
		colorCode, levelName = "\033[31m", "ERROR" // Red
	default:
		colorCode, levelName = "\033[0m", r.Level.String()
	}

	// Modify the message to include color
	originalMsg := r.Message
	r.Message = colorCode + levelName + "\033[0m  " + originalMsg

	return h.TextHandler.Handle(ctx, r)
}
