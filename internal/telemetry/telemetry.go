// Package telemetry provides structured, stderr-only logging and
// lightweight timing spans built on zap, with console or JSON encoding
// selected by --log-json and level selected by --log-level.
package telemetry

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger writing to stderr at the given level, in either
// human (console) or JSON encoding.
func New(level string, jsonMode bool) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if jsonMode {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), lvl)
	return zap.New(core), nil
}

// Nop returns a logger that discards everything, for tests and library
// callers that don't want output.
func Nop() *zap.Logger { return zap.NewNop() }

type ctxKey struct{}

// WithLogger attaches a logger to ctx for retrieval via FromContext.
func WithLogger(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger attached to ctx, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && log != nil {
		return log
	}
	return Nop()
}

// Span starts a named timing span and returns a closure that logs its
// duration at Debug level when called; callers use `defer span()`.
func Span(ctx context.Context, name string) func() {
	log := FromContext(ctx)
	start := time.Now()
	return func() {
		log.Debug("span", zap.String("name", name), zap.Duration("elapsed", time.Since(start)))
	}
}
