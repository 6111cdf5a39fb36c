// Package logger hands out component-scoped structured loggers.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

type Logger = *slog.Logger

var base atomic.Pointer[slog.Logger]

func init() {
	base.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// Init replaces the root logger. format is "json" or "text".
func Init(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	base.Store(slog.New(handler))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func WithField(key string, value any) Logger {
	return base.Load().With(key, value)
}

func Store() Logger {
	return WithField("component", "store")
}

func DB() Logger {
	return WithField("component", "db")
}

func Aggregate() Logger {
	return WithField("component", "aggregate")
}

func Migration() Logger {
	return WithField("component", "migration")
}

func Sync() Logger {
	return WithField("component", "sync")
}

func Session() Logger {
	return WithField("component", "session")
}

func HTTP() Logger {
	return WithField("component", "http")
}

func CLI() Logger {
	return WithField("component", "cli")
}
