// Package logger provides the structured, levelled logger for the
// framework, built on log/slog.
//
// The base logger writes to stdout: JSON in production for log
// aggregators, text elsewhere for humans. Configure fans records out to
// additional sinks (MongoDB, a live websocket stream) behind the same
// facade. WithCtx returns a logger pre-tagged with the request id, so
// every log line from a handler is correlated:
//
//	log := logger.WithCtx(ctx)
//	log.Info("user created", "email", email)
//	// → time=... level=INFO msg="user created" request_id=a1b2c3d4 email=...
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/setulabs/setu/config"
)

// L is the process logger. Packages use it directly or through the
// package-level helpers below.
var L *slog.Logger

var mu sync.Mutex // serializes Configure

func init() {
	L = slog.New(consoleHandler())
	slog.SetDefault(L)
}

func consoleHandler() slog.Handler {
	opts := &slog.HandlerOptions{Level: baseLevel()}

	switch config.AppEnv() {
	case "production", "prod":
		return slog.NewJSONHandler(os.Stdout, opts)
	default:
		return slog.NewTextHandler(os.Stdout, opts)
	}
}

func baseLevel() slog.Level {
	if name := config.LogLevel(); name != "" {
		return parseLevel(name)
	}
	switch config.AppEnv() {
	case "production", "prod":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// Configure rebuilds the process logger with the given sinks fanned out
// beside the console handler and installs it as slog's default. The
// kernel calls this once at boot after config is loaded; with no sinks it
// keeps console-only logging. The returned Fanout closes the sinks on
// shutdown.
func Configure(sinks ...slog.Handler) *Fanout {
	mu.Lock()
	defer mu.Unlock()

	handlers := append([]slog.Handler{consoleHandler()}, sinks...)
	fan := NewFanout(handlers...)
	L = slog.New(fan)
	slog.SetDefault(L)
	return fan
}

// ctxKey is the unexported key under which a per-request *slog.Logger is
// stored.
type ctxKey struct{}

// WithCtx returns the request-scoped logger stored in ctx by the request
// logging middleware, or the base logger when none is present.
func WithCtx(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores a *slog.Logger (pre-tagged with request_id) into
// ctx. Called by the request logging middleware; application code rarely
// needs it.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs at INFO level.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs at WARN level.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs at ERROR level.
func Error(msg string, args ...any) { L.Error(msg, args...) }
