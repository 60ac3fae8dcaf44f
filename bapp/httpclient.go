package bapp

import (
	"net/http"

	"github.com/advdv/bserve"
	"github.com/advdv/bserve/adapters"
	"github.com/carlmjohnson/requests"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// NewHTTPTransport creates an HTTP RoundTripper for outbound calls made while serving a request.
// Every call gets a client span named after the method and host, and carries the trace context.
// When the request context belongs to a request being served, its request id is forwarded in the
// X-Request-ID header so logs of both services can be correlated.
// The TracerProvider and Propagator are explicitly injected to avoid global state.
func NewHTTPTransport(tp trace.TracerProvider, prop propagation.TextMapPropagator) http.RoundTripper {
	return otelhttp.NewTransport(forwardRequestID{next: http.DefaultTransport},
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithPropagators(prop),
		otelhttp.WithSpanNameFormatter(clientSpanName),
	)
}

// NewHTTPClient creates an *http.Client that uses the instrumented transport.
// Outbound requests automatically create child spans and propagate trace context.
func NewHTTPClient(t http.RoundTripper) *http.Client {
	return &http.Client{Transport: t}
}

// newRequestBuilder creates a base [requests.Builder] with the instrumented transport.
// This is not exported; handlers access it via [Runtime.NewRequest].
func newRequestBuilder(t http.RoundTripper) *requests.Builder {
	return requests.New().Transport(t)
}

func clientSpanName(_ string, r *http.Request) string {
	return r.Method + " " + r.URL.Host
}

// forwardRequestID copies the id of the request being served onto outbound requests that do not
// carry one yet.
type forwardRequestID struct {
	next http.RoundTripper
}

func (t forwardRequestID) RoundTrip(r *http.Request) (*http.Response, error) {
	c := bserve.ContextOf(r.Context())
	if c == nil || c.RequestID() == "" || r.Header.Get(adapters.RequestIDHeader) != "" {
		return t.next.RoundTrip(r)
	}

	r = r.Clone(r.Context())
	r.Header.Set(adapters.RequestIDHeader, c.RequestID())

	return t.next.RoundTrip(r)
}
