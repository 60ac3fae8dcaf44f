package bserve

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// DefaultMaxRecoveries is the number of times a renderable error may substitute the handler for one request
// before the internal server error is rendered instead.
const DefaultMaxRecoveries = 8

// maxBodyDrain bounds how much of an unread request body is consumed so the connection can be reused.
const maxBodyDrain = 256 << 10

// Option configures an [Application].
type Option func(*Application)

// WithLogger sets the logger that is informed about unhandled errors.
func WithLogger(l Logger) Option {
	return func(app *Application) { app.logs = l }
}

// WithZap sets the base logger for the request-scoped logger on each [Context]. Unless [WithLogger] is also
// given it is used to report unhandled errors as well.
func WithZap(l *zap.Logger) Option {
	return func(app *Application) { app.zap = l }
}

// WithBufferLimit limits how many bytes of the response are buffered. A negative limit disables it.
func WithBufferLimit(n int) Option {
	return func(app *Application) { app.bufLimit = n }
}

// WithMaxRecoveries bounds how many renderable errors may replace each other for one request.
func WithMaxRecoveries(n int) Option {
	return func(app *Application) { app.maxRecoveries = n }
}

// WithAdapters adds global adapters, as if passed to [Application.Use].
func WithAdapters(a ...Adapter) Option {
	return func(app *Application) { app.adapters.buffered = append(app.adapters.buffered, a...) }
}

// Application turns a [Handler] into an http.Handler. It owns the response buffer and [Context] for each
// request and decides the final response when the handler fails. The request body is drained and closed on
// every path, including when a failure after the headers were sent aborts the connection.
type Application struct {
	handler       Handler
	logs          Logger
	zap           *zap.Logger
	bufLimit      int
	maxRecoveries int
	serving       atomic.Bool
	adapters      struct {
		buffered []Adapter
		once     sync.Once
		composed Handler
	}
}

// NewApplication inits an application that serves h, typically a [Router].
func NewApplication(h Handler, opts ...Option) *Application {
	app := &Application{
		handler:       h,
		bufLimit:      -1,
		maxRecoveries: DefaultMaxRecoveries,
	}

	for _, o := range opts {
		o(app)
	}

	if app.zap == nil {
		app.zap = zap.Must(zap.NewProduction())
	}

	if app.logs == nil {
		app.logs = NewZapLogger(app.zap)
	}

	return app
}

// Use adds global adapters. They wrap the handler for every request and must be added before serving.
func (app *Application) Use(a ...Adapter) {
	if app.serving.Load() {
		panic("bserve: cannot call Use() after the application started serving")
	}

	app.adapters.buffered = append(app.adapters.buffered, a...)
}

// ServeHTTP implements http.Handler.
func (app *Application) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	app.serving.Store(true)
	app.adapters.once.Do(func() {
		app.adapters.composed = Chain(app.handler, app.adapters.buffered...)
	})

	wr := newBufferResponse(w, app.bufLimit)
	defer wr.Free()
	defer drainBody(r)

	c := NewContext(r, app.zap)
	r = r.WithContext(withContext(r.Context(), c))
	c.req = r

	app.serve(c, wr, r)

	if err := wr.End(); err != nil {
		app.logs.LogImplicitFlushError(err)
	}
}

type outcomeKind int

const (
	outcomeCompleted outcomeKind = iota
	outcomeRenderable
	outcomeOpaque
)

// outcome is the classified result of running a handler once.
type outcome struct {
	kind   outcomeKind
	err    error
	render RenderableError
}

func classify(err error) outcome {
	if err == nil {
		return outcome{kind: outcomeCompleted}
	}

	var re RenderableError
	if errors.As(err, &re) {
		return outcome{kind: outcomeRenderable, err: err, render: re}
	}

	return outcome{kind: outcomeOpaque, err: err}
}

func (app *Application) serve(c *Context, w *ResponseBuffer, r *http.Request) {
	h := app.adapters.composed

	for n := 0; ; n++ {
		out := classify(app.run(h, c, w, r))

		switch {
		case out.kind == outcomeCompleted:
			return
		case w.HeadersSent():
			// the client already has a status line, truncate the response instead of lying about it
			app.logs.LogLateServeError(out.err)
			w.discard()
			panic(http.ErrAbortHandler)
		case out.kind == outcomeRenderable && n < app.maxRecoveries:
			w.Reset()
			c.applyPersistent(w)
			h = out.render
		default:
			app.logs.LogUnhandledServeError(out.err)
			w.Reset()
			c.applyPersistent(w)

			_ = InternalServerError.ServeBHTTP(c, w, r)

			return
		}
	}
}

// run calls the handler, turning panics into errors. Aborts are re-raised for net/http to handle.
func (app *Application) run(h Handler, c *Context, w ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler { //nolint:errorlint,err113
				panic(v)
			}

			err = panicError(v)
		}
	}()

	return h.ServeBHTTP(c, w, r)
}

func panicError(v any) error {
	if err, ok := v.(error); ok {
		return errors.Wrap(err, "handler panicked")
	}

	return errors.Newf("handler panicked: %s", fmt.Sprint(v))
}

// drainBody consumes what is left of the request body, up to a bound, so the connection can be reused.
func drainBody(r *http.Request) {
	if r.Body == nil || r.Body == http.NoBody {
		return
	}

	_, _ = io.CopyN(io.Discard, r.Body, maxBodyDrain)
	_ = r.Body.Close()
}
