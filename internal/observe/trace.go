package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the tutoring runtime.
const tracerName = "github.com/chriscow/tutor-agents-go"

// maxAttrChars caps free-text span attributes. The backend truncates
// anyway; capping here keeps export payloads small.
const maxAttrChars = 500

// Tracer returns the package-level tracer backed by the globally registered
// provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span. The caller must call span.End() when done.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// Logger returns an slog.Logger enriched with trace_id and span_id from the
// span context in ctx. With no active span it returns the default logger.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}

// Truncate caps free-text attribute values at 500 characters, respecting
// rune boundaries.
func Truncate(s string) string {
	if len(s) <= maxAttrChars {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxAttrChars {
		return s
	}
	return string(runes[:maxAttrChars])
}
