package bapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/advdv/bserve"
	"github.com/advdv/bserve/adapters"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestNewHTTPTransport(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	var traceparent string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ctx, span := tp.Tracer("test").Start(context.Background(), "parent")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest error: %v", err)
	}

	resp, err := NewHTTPTransport(tp, propagation.TraceContext{}).RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if traceparent == "" {
		t.Error("expected trace context to be propagated")
	}

	u, _ := url.Parse(ts.URL)
	spans := rec.Ended()
	if len(spans) != 1 || spans[0].Name() != "GET "+u.Host {
		t.Errorf("expected one client span named after the host, got %v", spans)
	}
	if got := req.Header.Get(adapters.RequestIDHeader); got != "" {
		t.Errorf("expected no request id outside a served request, got %q", got)
	}
}

func TestHTTPTransportForwardsRequestID(t *testing.T) {
	var forwarded string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded = r.Header.Get(adapters.RequestIDHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer upstream.Close()

	client := NewHTTPClient(NewHTTPTransport(sdktrace.NewTracerProvider(), propagation.TraceContext{}))
	call := bserve.HandlerFunc(func(_ *bserve.Context, w bserve.ResponseWriter, r *http.Request) error {
		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstream.URL, nil)
		if err != nil {
			return err
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}

		return resp.Body.Close()
	})

	app := bserve.NewApplication(bserve.Chain(call, adapters.RequestID()), bserve.WithZap(zap.NewNop()))
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if want := rec.Header().Get(adapters.RequestIDHeader); want == "" || forwarded != want {
		t.Errorf("expected request id %q to be forwarded, got %q", want, forwarded)
	}
}

func TestNewHTTPClient(t *testing.T) {
	rt := NewHTTPTransport(sdktrace.NewTracerProvider(), propagation.TraceContext{})

	client := NewHTTPClient(rt)
	if client.Transport != rt {
		t.Error("expected client to use the provided transport")
	}
}

func TestRuntimeNewRequest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"path":"` + r.URL.Path + `"}`))
	}))
	defer ts.Close()

	rt := NewRuntime(testEnv{}, NewRouter(), RuntimeParams{
		Transport: NewHTTPTransport(sdktrace.NewTracerProvider(), propagation.TraceContext{}),
	})

	var out struct{ Path string }
	if err := rt.NewRequest().BaseURL(ts.URL).Path("/items/1").ToJSON(&out).Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if out.Path != "/items/1" {
		t.Errorf("unexpected path %q", out.Path)
	}
}

func TestRuntimeBodyLimit(t *testing.T) {
	rt := NewRuntime(testEnv{}, NewRouter(), RuntimeParams{})
	if got := rt.BodyLimit(); got != 100<<10 {
		t.Errorf("expected default body limit, got %d", got)
	}
}
