package bserve

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrHandlerTimeout is returned by writes of a handler that ran past its deadline.
var ErrHandlerTimeout = http.ErrHandlerTimeout

// Deadline fails the request with [RequestTimeout] when the wrapped handler does not finish within d. The
// handler writes to a private copy of the response that is only committed when it finishes in time. A late
// handler keeps running in the background; its writes fail with [ErrHandlerTimeout] and its result is
// dropped. The handler gets its own copy of the request [Context]: changes to its store, body, logger and
// persistent headers reach the request only when it finishes in time.
func Deadline(d time.Duration) Adapter {
	return guard(d, false)
}

// Timeout is like [Deadline] but also cancels the request context the handler receives once d has passed,
// so handlers that respect their context stop their work early.
func Timeout(d time.Duration) Adapter {
	return guard(d, true)
}

func guard(d time.Duration, cancel bool) Adapter {
	return AdapterFunc(func(next Handler) Handler {
		return HandlerFunc(func(c *Context, w ResponseWriter, r *http.Request) error {
			done := func() {}
			if cancel {
				var ctx context.Context
				ctx, done = context.WithTimeout(r.Context(), d)
				r = r.WithContext(ctx)
			}

			gw := newGuardedWriter(w)
			fc := c.fork()
			r = r.WithContext(withContext(r.Context(), fc))
			fc.req = r
			errc := make(chan error, 1)

			go func() {
				defer done()
				errc <- runGuarded(next, fc, gw, r)
			}()

			timer := time.NewTimer(d)
			defer timer.Stop()

			select {
			case err := <-errc:
				c.join(fc)
				if cerr := gw.commit(); cerr != nil && err == nil {
					return cerr
				}

				return err
			case <-timer.C:
				gw.expire()
				return RequestTimeout
			}
		})
	})
}

func runGuarded(h Handler, c *Context, w ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = panicError(v)
		}
	}()

	return h.ServeBHTTP(c, w, r)
}

// guardedWriter keeps the handler's response private until it is committed to the underlying writer. The mutex
// orders the background handler against commit and expiry.
type guardedWriter struct {
	mu      sync.Mutex
	under   ResponseWriter
	initial http.Header
	header  http.Header
	buf     bytes.Buffer
	status  int
	flushed bool
	expired bool
}

func newGuardedWriter(under ResponseWriter) *guardedWriter {
	return &guardedWriter{
		under:   under,
		initial: under.Header().Clone(),
		header:  under.Header().Clone(),
	}
}

func (w *guardedWriter) Header() http.Header { return w.header }

func (w *guardedWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.expired || w.status != 0 {
		return
	}

	w.status = code
}

func (w *guardedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.expired {
		return 0, ErrHandlerTimeout
	}

	if w.status == 0 {
		w.status = http.StatusOK
	}

	return w.buf.Write(p)
}

func (w *guardedWriter) Status() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.status
}

func (w *guardedWriter) HeadersSent() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.flushed
}

// Reset restores the response to what it was when the guard was entered.
func (w *guardedWriter) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.flushed {
		panic("bserve: cannot reset response, it was already flushed")
	}

	w.buf.Reset()
	w.header = w.initial.Clone()
	w.status = 0
}

func (w *guardedWriter) Free() {}

func (w *guardedWriter) FlushBuffer() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.expired {
		return ErrHandlerTimeout
	}

	return w.commitLocked()
}

// FlushError forwards an explicit flush to the underlying writer, after which the headers are sent.
func (w *guardedWriter) FlushError() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.expired {
		return ErrHandlerTimeout
	}

	if err := w.commitLocked(); err != nil {
		return err
	}

	w.flushed = true

	return http.NewResponseController(w.under).Flush()
}

func (w *guardedWriter) commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.commitLocked()
}

func (w *guardedWriter) commitLocked() error {
	if !w.under.HeadersSent() {
		dst := w.under.Header()
		for k := range dst {
			if _, ok := w.header[k]; !ok {
				delete(dst, k)
			}
		}

		for k, vs := range w.header {
			dst[k] = vs
		}
	}

	if w.status != 0 {
		w.under.WriteHeader(w.status)
	}

	if w.buf.Len() == 0 {
		return nil
	}

	if _, err := w.under.Write(w.buf.Bytes()); err != nil {
		return errors.Wrap(err, "failed to commit guarded response")
	}

	w.buf.Reset()

	return nil
}

func (w *guardedWriter) expire() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.expired = true
	w.buf.Reset()
}

var _ ResponseWriter = &guardedWriter{}
