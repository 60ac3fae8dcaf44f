package bapp

import (
	"context"
	"net/http"

	"github.com/advdv/bserve"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Log returns the trace-correlated request logger. It works for any context that passed through a
// bapp server, including the request context seen by standard library handlers. Outside of a
// request it returns a no-op logger.
func Log(ctx context.Context) *zap.Logger {
	c := bserve.ContextOf(ctx)
	if c == nil {
		return zap.NewNop()
	}

	return c.Logger()
}

// Span returns the current trace span from the context.
func Span(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// withTraceFields tags the request logger with the ids of the span the tracing handler started.
func withTraceFields() bserve.Adapter {
	return bserve.AdapterFunc(func(next bserve.Handler) bserve.Handler {
		return bserve.HandlerFunc(func(c *bserve.Context, w bserve.ResponseWriter, r *http.Request) error {
			if fields := traceFields(r.Context()); len(fields) > 0 {
				c.SetLogger(c.Logger().With(fields...))
			}

			return next.ServeBHTTP(c, w, r)
		})
	})
}

// traceFields extracts trace_id and span_id from the context for log correlation.
func traceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}

	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
