package bapptest

import (
	"strconv"
	"testing"
	"time"
)

// Env provides a chainable builder for setting [bapp.BaseEnvironment] env vars
// via t.Setenv. Create one with [SetBaseEnv].
type Env struct {
	t testing.TB
}

// SetBaseEnv sets all required [bapp.BaseEnvironment] env vars to test defaults.
// Port is required because each test must use a unique port to avoid collisions.
//
// Defaults:
//   - BS_SERVICE_NAME: "test"
//   - BS_READINESS_CHECK_PATH: "/health"
//   - BS_OTEL_EXPORTER: "none"
//   - BS_LOG_LEVEL: "error"
//
// Use the returned [Env] to override individual values:
//
//	bapptest.SetBaseEnv(t, 18085).RequestDeadline(time.Second).RateLimit(1, 1)
func SetBaseEnv(t testing.TB, port int) *Env {
	t.Helper()
	t.Setenv("BS_PORT", strconv.Itoa(port))
	t.Setenv("BS_SERVICE_NAME", "test")
	t.Setenv("BS_READINESS_CHECK_PATH", "/health")
	t.Setenv("BS_OTEL_EXPORTER", "none")
	t.Setenv("BS_LOG_LEVEL", "error")
	return &Env{t: t}
}

// ServiceName overrides BS_SERVICE_NAME.
func (e *Env) ServiceName(name string) *Env {
	e.t.Helper()
	e.t.Setenv("BS_SERVICE_NAME", name)
	return e
}

// ReadinessCheckPath overrides BS_READINESS_CHECK_PATH.
func (e *Env) ReadinessCheckPath(path string) *Env {
	e.t.Helper()
	e.t.Setenv("BS_READINESS_CHECK_PATH", path)
	return e
}

// MetricsPath overrides BS_METRICS_PATH.
func (e *Env) MetricsPath(path string) *Env {
	e.t.Helper()
	e.t.Setenv("BS_METRICS_PATH", path)
	return e
}

// RequestDeadline overrides BS_REQUEST_DEADLINE.
func (e *Env) RequestDeadline(d time.Duration) *Env {
	e.t.Helper()
	e.t.Setenv("BS_REQUEST_DEADLINE", d.String())
	return e
}

// BodyLimit overrides BS_BODY_LIMIT.
func (e *Env) BodyLimit(n int64) *Env {
	e.t.Helper()
	e.t.Setenv("BS_BODY_LIMIT", strconv.FormatInt(n, 10))
	return e
}

// RateLimit overrides BS_RATE_LIMIT and BS_RATE_BURST.
func (e *Env) RateLimit(rate float64, burst int) *Env {
	e.t.Helper()
	e.t.Setenv("BS_RATE_LIMIT", strconv.FormatFloat(rate, 'f', -1, 64))
	e.t.Setenv("BS_RATE_BURST", strconv.Itoa(burst))
	return e
}

// MaxConnections overrides BS_MAX_CONNECTIONS.
func (e *Env) MaxConnections(n int) *Env {
	e.t.Helper()
	e.t.Setenv("BS_MAX_CONNECTIONS", strconv.Itoa(n))
	return e
}
