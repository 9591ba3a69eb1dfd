package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedactsEmailKeys(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core)).With("customer_email", "a@example.com")

	log.Info("linked customer to user", "email", "b@example.com", "user_id", 7)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "[REDACTED]", fields["email"])
	assert.Equal(t, "[REDACTED]", fields["customer_email"])
	assert.EqualValues(t, 7, fields["user_id"])
}

func TestRedactLeavesInputUntouched(t *testing.T) {
	kv := []any{"email", "a@example.com", "odd"}

	out := redact(kv)

	assert.Equal(t, "a@example.com", kv[1])
	assert.Equal(t, "[REDACTED]", out[1])
	assert.Equal(t, "odd", out[2])
}

func TestNew(t *testing.T) {
	for _, mode := range []string{"dev", "prod", ""} {
		l, err := New(mode)
		require.NoError(t, err, mode)
		l.Debug("ok")
	}
	Nop().Error("discarded")
}
