package bserve

import (
	"net/http"
)

// ResponseWriter implements the http.ResponseWriter but the underlying bytes are buffered. This allows
// the dispatch engine to reset the writer and formulate a completely new response as long as nothing
// has been sent to the client yet.
type ResponseWriter interface {
	http.ResponseWriter
	Reset()
	Free()
	FlushBuffer() error

	// HeadersSent reports whether the status line and headers reached the client. Once true the
	// response can no longer be replaced.
	HeadersSent() bool

	// Status returns the status code written so far, or 0 if none was written.
	Status() int
}

// Handler mirrors http.Handler but it receives the per-request [Context], writes to a buffered response
// and may return an error. An error that is itself a [Handler] renders the response instead.
type Handler interface {
	ServeBHTTP(c *Context, w ResponseWriter, r *http.Request) error
}

// HandlerFunc allow casting a function to implement [Handler].
type HandlerFunc func(*Context, ResponseWriter, *http.Request) error

// ServeBHTTP implements the [Handler] interface.
func (f HandlerFunc) ServeBHTTP(c *Context, w ResponseWriter, r *http.Request) error {
	return f(c, w, r)
}

// RenderableError is an error that can render itself as the response.
type RenderableError interface {
	error
	Handler
}

// FromStd converts a standard library http.Handler into a [Handler]. The standard handler owns its
// error reporting: whatever it writes is the response and it never returns an error.
func FromStd(h http.Handler) Handler {
	return HandlerFunc(func(_ *Context, w ResponseWriter, r *http.Request) error {
		h.ServeHTTP(w, r)
		return nil
	})
}
