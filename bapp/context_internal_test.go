package bapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/advdv/bserve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTraceFieldsOnRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tp := sdktrace.NewTracerProvider()

	h := bserve.HandlerFunc(func(_ *bserve.Context, _ bserve.ResponseWriter, r *http.Request) error {
		Log(r.Context()).Info("inside")
		return nil
	})

	app := bserve.NewApplication(h, bserve.WithZap(zap.New(core)), bserve.WithAdapters(withTraceFields()))

	ctx, span := tp.Tracer("test").Start(context.Background(), "request")
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	app.ServeHTTP(httptest.NewRecorder(), req)
	span.End()

	entries := logs.FilterMessage("inside").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
	assert.Equal(t, span.SpanContext(), Span(ctx).SpanContext())
}

func TestTraceFieldsWithoutSpan(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	h := bserve.HandlerFunc(func(c *bserve.Context, _ bserve.ResponseWriter, _ *http.Request) error {
		c.Logger().Info("inside")
		return nil
	})

	app := bserve.NewApplication(h, bserve.WithZap(zap.New(core)), bserve.WithAdapters(withTraceFields()))
	app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	entries := logs.FilterMessage("inside").All()
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].ContextMap(), "trace_id")
}

func TestLogOutsideRequest(t *testing.T) {
	assert.NotNil(t, Log(context.Background()))
}
