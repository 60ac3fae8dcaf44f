package bapp

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"
)

// Environment defines the interface that all environment configurations must implement.
// Embed BaseEnvironment in your struct to satisfy this interface.
type Environment interface {
	port() int
	serviceName() string
	readinessCheckPath() string
	metricsPath() string
	logLevel() zapcore.Level
	otelExporter() string
	requestDeadline() time.Duration
	bodyLimit() int64
	responseBufferLimit() int
	maxRecoveries() int
	maxConnections() int
	rateLimit() (float64, int)
}

// BaseEnvironment contains the environment variables every bserve application reads.
// Embed this in your custom environment struct.
type BaseEnvironment struct {
	Port                int           `env:"BS_PORT,required"`
	ServiceName         string        `env:"BS_SERVICE_NAME,required"`
	ReadinessCheckPath  string        `env:"BS_READINESS_CHECK_PATH" envDefault:"/healthz"`
	MetricsPath         string        `env:"BS_METRICS_PATH" envDefault:"/metrics"`
	LogLevel            zapcore.Level `env:"BS_LOG_LEVEL" envDefault:"info"`
	OtelExporter        string        `env:"BS_OTEL_EXPORTER" envDefault:"stdout"`
	RequestDeadline     time.Duration `env:"BS_REQUEST_DEADLINE" envDefault:"30s"`
	BodyLimit           int64         `env:"BS_BODY_LIMIT" envDefault:"102400"`
	ResponseBufferLimit int           `env:"BS_RESPONSE_BUFFER_LIMIT" envDefault:"-1"`
	MaxRecoveries       int           `env:"BS_MAX_RECOVERIES" envDefault:"8"`
	// MaxConnections caps the number of concurrently accepted connections, zero means unlimited.
	MaxConnections int `env:"BS_MAX_CONNECTIONS" envDefault:"0"`
	// RateLimit is the sustained number of requests per second per client. Zero disables limiting.
	RateLimit float64 `env:"BS_RATE_LIMIT" envDefault:"0"`
	RateBurst int     `env:"BS_RATE_BURST" envDefault:"0"`
}

func (e BaseEnvironment) port() int                      { return e.Port }
func (e BaseEnvironment) serviceName() string            { return e.ServiceName }
func (e BaseEnvironment) readinessCheckPath() string     { return e.ReadinessCheckPath }
func (e BaseEnvironment) metricsPath() string            { return e.MetricsPath }
func (e BaseEnvironment) logLevel() zapcore.Level        { return e.LogLevel }
func (e BaseEnvironment) otelExporter() string           { return e.OtelExporter }
func (e BaseEnvironment) requestDeadline() time.Duration { return e.RequestDeadline }
func (e BaseEnvironment) bodyLimit() int64               { return e.BodyLimit }
func (e BaseEnvironment) responseBufferLimit() int       { return e.ResponseBufferLimit }
func (e BaseEnvironment) maxRecoveries() int             { return e.MaxRecoveries }
func (e BaseEnvironment) maxConnections() int            { return e.MaxConnections }

func (e BaseEnvironment) rateLimit() (float64, int) {
	burst := e.RateBurst
	if burst < 1 {
		burst = max(1, int(e.RateLimit))
	}

	return e.RateLimit, burst
}

var _ Environment = BaseEnvironment{}

// ParseEnv parses environment variables into the given Environment type.
func ParseEnv[E Environment]() func() (E, error) {
	return func() (e E, err error) {
		if err := env.Parse(&e); err != nil {
			return e, errors.Wrap(err, "failed to parse environment")
		}

		if e.requestDeadline() < 0 {
			return e, errors.Newf("BS_REQUEST_DEADLINE must not be negative, got %s", e.requestDeadline())
		}

		return e, nil
	}
}
