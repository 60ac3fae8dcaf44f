package bserve

import (
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

// Logger can be implemented to get informed about important states.
type Logger interface {
	LogUnhandledServeError(err error)
	LogLateServeError(err error)
	LogImplicitFlushError(err error)
}

type zapLogger struct{ *zap.Logger }

func (l zapLogger) LogUnhandledServeError(err error) {
	l.Logger.Error("unhandled server error", zap.Error(err))
}

func (l zapLogger) LogLateServeError(err error) {
	l.Logger.Error("error after response headers were sent", zap.Error(err))
}

func (l zapLogger) LogImplicitFlushError(err error) {
	l.Logger.Warn("error while flushing implicitly", zap.Error(err))
}

// NewZapLogger reports through a zap logger.
func NewZapLogger(l *zap.Logger) Logger {
	return zapLogger{l.Named("bserve")}
}

type TestLogger struct {
	tb testing.TB

	NumLogUnhandledServeError int64
	NumLogLateServeError      int64
	NumLogImplicitFlushError  int64
}

func NewTestLogger(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

func (l *TestLogger) LogUnhandledServeError(err error) {
	atomic.AddInt64(&l.NumLogUnhandledServeError, 1)
	l.tb.Logf("bserve: unhandled server error: %s", err)
}

func (l *TestLogger) LogLateServeError(err error) {
	atomic.AddInt64(&l.NumLogLateServeError, 1)
	l.tb.Logf("bserve: error after response headers were sent: %s", err)
}

func (l *TestLogger) LogImplicitFlushError(err error) {
	atomic.AddInt64(&l.NumLogImplicitFlushError, 1)
	l.tb.Logf("bserve: error while flushing implicitly: %s", err)
}

// Unhandled returns the number of unhandled errors logged so far.
func (l *TestLogger) Unhandled() int64 { return atomic.LoadInt64(&l.NumLogUnhandledServeError) }

// Late returns the number of errors logged after headers were sent.
func (l *TestLogger) Late() int64 { return atomic.LoadInt64(&l.NumLogLateServeError) }

var (
	_ Logger = &TestLogger{}
	_ Logger = zapLogger{}
)
