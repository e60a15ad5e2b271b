package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

// TestPurpose: Validates that trace and span ids are attached to records emitted inside a span.
// Scope: Unit Test
// Expected: The JSON record carries trace_id and span_id from the context.
// Test Case ID: LOG-01
func TestLogger_TraceContextHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(Config{Level: "debug", Format: "json"}, &buf))

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	log.InfoContext(ctx, "clone finished", WorkoutID("w-1"), Count(2))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, traceID.String(), rec["trace_id"])
	assert.Equal(t, spanID.String(), rec["span_id"])
	assert.Equal(t, "w-1", rec["workout_id"])
}

// TestPurpose: Validates level parsing and fanout filtering.
// Scope: Unit Test
// Expected: Records below a handler's level are not delivered to it; other handlers still receive them.
// Test Case ID: LOG-02
func TestLogger_FanoutLevels(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))

	var debugBuf, errorBuf bytes.Buffer
	log := slog.New(NewFanoutHandler(
		NewHandler(Config{Level: "debug", Format: "text"}, &debugBuf),
		NewHandler(Config{Level: "error", Format: "text"}, &errorBuf),
	))

	log.Debug("authz denied", Reason("permission_denied"))
	assert.Contains(t, debugBuf.String(), "authz denied")
	assert.Empty(t, errorBuf.String())
}
