// Package logger wraps log/slog behind a small struct that usecases and
// repositories receive by value. The zero value logs through slog.Default,
// which keeps tests free of setup.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/IsaacEduardo/chat-umn/config"
)

type Logger struct {
	l *slog.Logger
}

func NewLogger(cfg *config.Config) (*Logger, error) {
	level := parseLevel(cfg.LoggerMode.Level)

	var handler slog.Handler
	if cfg.LoggerMode.Prod {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	return &Logger{l: slog.New(handler)}, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (lg *Logger) slog() *slog.Logger {
	if lg == nil || lg.l == nil {
		return slog.Default()
	}
	return lg.l
}

func (lg Logger) Debug(msg string, args ...any) { lg.slog().Debug(msg, args...) }
func (lg Logger) Info(msg string, args ...any)  { lg.slog().Info(msg, args...) }
func (lg Logger) Warn(msg string, args ...any)  { lg.slog().Warn(msg, args...) }
func (lg Logger) Error(msg string, args ...any) { lg.slog().Error(msg, args...) }

func (lg Logger) Errorf(format string, args ...any) {
	lg.slog().Error(fmt.Sprintf(format, args...))
}

func (lg Logger) Infof(format string, args ...any) {
	lg.slog().Info(fmt.Sprintf(format, args...))
}
