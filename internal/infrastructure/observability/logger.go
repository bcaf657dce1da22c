package observability

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// logOutput is stderr so the command-line tools can print their reports
// on stdout.
var logOutput io.Writer = os.Stderr

// InitLogger replaces the global logger. Development gets a console writer,
// every other environment JSON lines with caller information.
func InitLogger(serviceName, env string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	var ctx zerolog.Context
	if env == "development" {
		ctx = zerolog.New(zerolog.ConsoleWriter{Out: logOutput, TimeFormat: time.Kitchen}).With()
	} else {
		ctx = zerolog.New(logOutput).With().Caller()
	}
	log.Logger = ctx.Timestamp().Str("service", serviceName).Logger()
}

// LoggerFromContext returns the global logger tagged with the active span, if any.
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	logger := log.Logger
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With().
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String()).
			Logger()
	}
	return &logger
}

// GetLogger returns the global logger.
func GetLogger() *zerolog.Logger {
	return &log.Logger
}
