package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that a disabled tracer yields non-recording spans and a no-op shutdown.
// Scope: Unit Test
// Expected: Spans are not recording; Shutdown returns nil.
// Test Case ID: TRC-01
func TestTracing_Disabled(t *testing.T) {
	tr, err := New(context.Background(), Config{Enabled: false, ServiceName: "coachgrid"})
	require.NoError(t, err)

	_, span := tr.Start(context.Background(), "schedule.CloneDay")
	defer span.End()
	assert.False(t, span.IsRecording())
	assert.NoError(t, tr.Shutdown(context.Background()))
}

func TestTracing_SamplingRateBounds(t *testing.T) {
	assert.Equal(t, 1.0, samplingRate(0))
	assert.Equal(t, 1.0, samplingRate(3))
	assert.Equal(t, 0.25, samplingRate(0.25))
}
