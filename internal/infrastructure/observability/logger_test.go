package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevLogger := logOutput, log.Logger
	logOutput = &buf
	t.Cleanup(func() {
		logOutput = prevOut
		log.Logger = prevLogger
	})
	return &buf
}

func TestInitLogger_JSON(t *testing.T) {
	buf := captureLogs(t)
	InitLogger("api", "production")

	GetLogger().Info().Str("cnes_id", "2077485").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "api", line["service"])
	assert.Equal(t, "2077485", line["cnes_id"])
	assert.Contains(t, line, "caller")
	assert.Contains(t, line, "time")
}

func TestLoggerFromContext_AddsTraceIDs(t *testing.T) {
	buf := captureLogs(t)
	InitLogger("api", "production")

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	LoggerFromContext(ctx).Info().Msg("traced")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, sc.TraceID().String(), line["trace_id"])
	assert.Equal(t, sc.SpanID().String(), line["span_id"])
}

func TestLoggerFromContext_NoSpan(t *testing.T) {
	buf := captureLogs(t)
	InitLogger("api", "production")

	LoggerFromContext(context.Background()).Info().Msg("plain")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "trace_id")
}
