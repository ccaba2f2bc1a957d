package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestGetInitializesLazily(t *testing.T) {
	assert.NotNil(t, Get())
	assert.NotNil(t, WithComponent("test"))
}

func TestWithRequestID(t *testing.T) {
	Init("debug")
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, UserIDKey, "user-1")

	l := WithRequestID(ctx)
	assert.NotNil(t, l)
	assert.NotSame(t, Get(), l)

	assert.Same(t, Get(), WithRequestID(context.Background()))
}
