package log

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// zerologAdapter implements Logger on zerolog, stamping every event with the
// active span's trace and span ids when the context carries one.
type zerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter builds a Logger writing structured JSON to stderr, or
// human-readable console output when pretty is set.
func NewZerologAdapter(level zerolog.Level, pretty bool) Logger {
	out := io.Writer(os.Stderr)
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	zlog := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &zerologAdapter{logger: zlog}
}

func emit(ctx context.Context, event *zerolog.Event, msg string, fields []map[string]interface{}) {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		event = event.
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String())
	}
	for _, f := range fields {
		event = event.Fields(f)
	}
	event.Msg(msg)
}

func (z *zerologAdapter) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	emit(ctx, z.logger.Debug(), msg, fields)
}

func (z *zerologAdapter) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	emit(ctx, z.logger.Info(), msg, fields)
}

func (z *zerologAdapter) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	emit(ctx, z.logger.Warn(), msg, fields)
}

func (z *zerologAdapter) Error(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	emit(ctx, z.logger.Error().Err(err), msg, fields)
}

// Fatal logs the event and exits the process via zerolog.
func (z *zerologAdapter) Fatal(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	emit(ctx, z.logger.Fatal().Err(err), msg, fields)
}

// With derives a logger carrying fields on every subsequent event. Trace ids
// are not baked in; they are read from the context at emit time.
func (z *zerologAdapter) With(fields map[string]interface{}) Logger {
	return &zerologAdapter{logger: z.logger.With().Fields(fields).Logger()}
}
