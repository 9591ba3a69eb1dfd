/*
Package logger provides the structured logger used across the bridge.

PURPOSE:
  Thin wrapper around zap's SugaredLogger so call sites log with a message
  plus alternating key/value pairs:

    log.Info("booking recorded", "appointment_id", id, "sessions", n)

MODES:
  "dev"  (default): human-readable console encoder, debug level
  "prod":           JSON encoder, info level

REDACTION:
  Values logged under a key containing "email" are replaced with
  "[REDACTED]". Customer e-mails flow through identity resolution and must
  not end up in log aggregation.
*/
package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Logger is a key/value structured logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a logger for the given mode ("dev" or "prod").
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{sugar: z.Sugar()}, nil
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// FromZap wraps an existing zap logger (e.g. zaptest/observer in tests).
func FromZap(z *zap.Logger) *Logger {
	return &Logger{sugar: z.Sugar()}
}

func (l *Logger) Sync() { _ = l.sugar.Sync() }

func (l *Logger) Debug(msg string, kv ...any) { l.sugar.Debugw(msg, redact(kv)...) }
func (l *Logger) Info(msg string, kv ...any)  { l.sugar.Infow(msg, redact(kv)...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.sugar.Warnw(msg, redact(kv)...) }
func (l *Logger) Error(msg string, kv ...any) { l.sugar.Errorw(msg, redact(kv)...) }
func (l *Logger) Fatal(msg string, kv ...any) { l.sugar.Fatalw(msg, redact(kv)...) }

// With returns a child logger that always carries the given pairs.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{sugar: l.sugar.With(redact(kv)...)}
}

func redact(kv []any) []any {
	if len(kv) < 2 {
		return kv
	}
	out := make([]any, len(kv))
	copy(out, kv)
	for i := 0; i+1 < len(out); i += 2 {
		key, ok := out[i].(string)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(key), "email") {
			out[i+1] = "[REDACTED]"
		}
	}
	return out
}
