package bapp

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/advdv/bserve"
	"github.com/advdv/bserve/adapters"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

// ServerConfig holds optional configuration for the HTTP server.
type ServerConfig struct {
	HealthHandler func(http.ResponseWriter, *http.Request)
	Adapters      []bserve.Adapter
}

// NewMetrics creates the request metrics on a fresh registry that also carries the Go runtime and
// process collectors.
func NewMetrics() *adapters.Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return adapters.NewMetrics(adapters.MetricsConfig{Namespace: "bserve"}, reg)
}

// ApplicationParams holds the dependencies for creating the dispatching application.
type ApplicationParams struct {
	fx.In

	Env     Environment
	Router  *Router
	Logger  *zap.Logger
	Metrics *adapters.Metrics
}

// NewApplication creates the application that dispatches every request to the router. Global
// adapters run in this order: request id, trace-correlated logging, metrics, rate limiting, any
// adapters from the ServerConfig and finally the request deadline guard.
func NewApplication(params ApplicationParams, cfg ServerConfig) *bserve.Application {
	global := []bserve.Adapter{
		adapters.RequestID(),
		withTraceFields(),
		params.Metrics,
	}

	if limit, burst := params.Env.rateLimit(); limit > 0 {
		global = append(global, adapters.RateLimit(adapters.RateLimitConfig{Rate: limit, Burst: burst}))
	}

	global = append(global, cfg.Adapters...)

	if d := params.Env.requestDeadline(); d > 0 {
		global = append(global, bserve.Deadline(d))
	}

	return bserve.NewApplication(params.Router,
		bserve.WithZap(params.Logger),
		bserve.WithLogger(newServeLogger(params.Logger)),
		bserve.WithBufferLimit(params.Env.responseBufferLimit()),
		bserve.WithMaxRecoveries(params.Env.maxRecoveries()),
		bserve.WithAdapters(global...),
	)
}

// ServerParams holds the dependencies for creating an HTTP server.
type ServerParams struct {
	fx.In

	Env         Environment
	Router      *Router
	Application *bserve.Application
	Logger      *zap.Logger
	Metrics     *adapters.Metrics
	TracerProv  trace.TracerProvider
	Propagator  propagation.TextMapPropagator
}

// NewServer creates an HTTP server with all middleware and routing configured.
func NewServer(params ServerParams, cfg ServerConfig) *http.Server {
	// health and metrics endpoints are excluded from tracing
	healthPath := params.Env.readinessCheckPath()
	healthHandler := cfg.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	params.Router.HandleStd(healthPath, http.HandlerFunc(healthHandler))

	metricsPath := params.Env.metricsPath()
	if metricsPath != "" {
		params.Router.HandleStd(metricsPath, params.Metrics.Handler())
	}

	handler := withAccessLog(params.Logger)(params.Application)
	handler = withTracing(params.TracerProv, params.Propagator, params.Env.serviceName(), healthPath, metricsPath)(handler)

	tc := TimeoutConfig{RequestDeadline: params.Env.requestDeadline()}
	readHeaderTimeout, readTimeout, writeTimeout, idleTimeout := tc.ServerTimeouts()

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", params.Env.port()),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ErrorLog:          zap.NewStdLog(params.Logger.Named("http")),
	}
}

// listen opens the server socket, capped to maxConns concurrent connections when positive.
func listen(ctx context.Context, addr string, maxConns int) (net.Listener, error) {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}

	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}

	return ln, nil
}

// startServerHook registers lifecycle hooks for the HTTP server.
func startServerHook(lc fx.Lifecycle, server *http.Server, env Environment, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := listen(ctx, server.Addr, env.maxConnections())
			if err != nil {
				return err
			}

			logger.Info("starting server",
				zap.String("addr", ln.Addr().String()),
				zap.Int("max_connections", env.maxConnections()))

			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping server")
			return server.Shutdown(ctx)
		},
	})
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
