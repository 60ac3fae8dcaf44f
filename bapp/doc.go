// Package bapp provides a batteries-included way to run bserve services.
//
// # Overview
//
// bapp handles the boilerplate of setting up an HTTP server around a [bserve.Application]:
// environment parsing, structured logging, OpenTelemetry tracing, request ids, metrics, access
// logging, connection and rate limits, and graceful shutdown. A complete service can be created in
// a single call:
//
//	bapp.NewApp[Env](func(rt *bapp.Router, h *Handlers) {
//	    rt.Get("/items/", h.GetItem, "get-item")
//	    rt.With(bserve.ReadBody(bserve.NewJSONReader[Item](0))).Post("/items", h.CreateItem)
//	},
//	    bapp.WithFx(fx.Provide(NewHandlers)),
//	).Run()
//
// # Environment Configuration
//
// Define your environment by embedding [BaseEnvironment]:
//
//	type Env struct {
//	    bapp.BaseEnvironment
//	    MainTableName string `env:"MAIN_TABLE_NAME,required"`
//	}
//
// BaseEnvironment provides the following environment variables:
//
//	| Variable                 | Required | Default  | Description                                    |
//	|--------------------------|----------|----------|------------------------------------------------|
//	| BS_PORT                  | Yes      | -        | Port the HTTP server listens on                |
//	| BS_SERVICE_NAME          | Yes      | -        | Service name for logging and tracing           |
//	| BS_READINESS_CHECK_PATH  | No       | /healthz | Health check endpoint path                     |
//	| BS_METRICS_PATH          | No       | /metrics | Prometheus endpoint path, empty disables it    |
//	| BS_LOG_LEVEL             | No       | info     | Log level (debug, info, warn, error)           |
//	| BS_OTEL_EXPORTER         | No       | stdout   | Trace exporter: "stdout", "xrayudp" or "none"  |
//	| BS_REQUEST_DEADLINE      | No       | 30s      | Requests still running after this get a 408    |
//	| BS_BODY_LIMIT            | No       | 102400   | Body limit returned by [Runtime.BodyLimit]     |
//	| BS_RESPONSE_BUFFER_LIMIT | No       | -1       | Bytes of response buffered, -1 is unlimited    |
//	| BS_MAX_RECOVERIES        | No       | 8        | Renderable errors that may replace each other  |
//	| BS_MAX_CONNECTIONS       | No       | 0        | Concurrent connections, 0 is unlimited         |
//	| BS_RATE_LIMIT            | No       | 0        | Requests per second per client, 0 disables it  |
//	| BS_RATE_BURST            | No       | 0        | Burst per client, at least 1                   |
//
// # Request Handling
//
// Every request passes the tracing handler, the access log and then the [bserve.Application].
// The application runs the global adapters (request id, trace-correlated logger, metrics, rate
// limit, the request deadline) before the router picks the route.
//
// # Runtime
//
// [Runtime] provides access to app-scoped dependencies and should be injected into
// handler constructors via fx:
//
//   - [Runtime.Env] returns the typed environment configuration
//   - [Runtime.Reverse] generates URLs for named routes
//   - [Runtime.BodyLimit] returns the configured body limit for body readers
//   - [Runtime.NewRequest] builds traced outbound requests
//
// # Context
//
// Request-scoped values live on the [bserve.Context]. Code that only has a context.Context, such
// as a standard library handler or a downstream call, uses the package-level functions:
//
//   - [Log] - trace-correlated zap logger of the request
//   - [Span] - current OpenTelemetry span for custom instrumentation
//
// # Tracing
//
// OpenTelemetry tracing is configured automatically based on BS_OTEL_EXPORTER:
//
//   - "stdout" (default): Pretty-printed spans for local development
//   - "xrayudp": X-Ray UDP exporter with X-Ray trace ids and propagation
//   - "none": tracing disabled
//
// The tracer provider and propagator are injected explicitly (no globals),
// allowing for proper testing and isolation.
package bapp
