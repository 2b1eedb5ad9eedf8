package memprotogw

import (
	"fmt"
	"log/slog"
	"os"
)

// Logger is the minimal logging seam this gateway needs for
// operational events (accept, connection close, protocol error): a
// small Printf/Debugf interface, so callers already using a similarly
// shaped adapter elsewhere can plug it in directly. Logging/TTY-coloring
// proper is out of scope here; this interface is only the boundary.
type Logger interface {
	Printf(format string, args ...any)
	Debugf(format string, args ...any)
}

// slogLogger adapts the standard library's structured logger to
// Logger. It is the default when no Logger is supplied, since this
// single ambient seam has no pack member imposing a heavier logging
// dependency (see DESIGN.md).
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger returns a Logger backed by slog, writing leveled,
// structured records to os.Stderr.
func NewSlogLogger() Logger {
	return &slogLogger{l: slog.New(slog.NewTextHandler(os.Stderr, nil))}
}

// NewSlogLoggerLevel is NewSlogLogger with Debugf calls enabled or
// suppressed depending on debug.
func NewSlogLoggerLevel(debug bool) Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	return &slogLogger{l: slog.New(slog.NewTextHandler(os.Stderr, opts))}
}

func (s *slogLogger) Printf(format string, args ...any) {
	s.l.Info(fmt.Sprintf(format, args...))
}

func (s *slogLogger) Debugf(format string, args ...any) {
	s.l.Debug(fmt.Sprintf(format, args...))
}
