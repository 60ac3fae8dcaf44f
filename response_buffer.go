package bserve

import (
	"bytes"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrBufferFull is returned when a write would grow the response buffer past its limit.
var ErrBufferFull = errors.New("buffer is full")

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// ResponseBuffer is the [ResponseWriter] the Application hands to handlers. Status, headers and body
// are held back until the buffer is flushed, explicitly through http.ResponseController or
// implicitly when the response is finalized.
type ResponseBuffer struct {
	resp   http.ResponseWriter
	limit  int
	buf    *bytes.Buffer
	header http.Header
	status int

	sent     bool
	finished bool
}

// NewResponseWriter wraps resp in a buffered [ResponseWriter]. A negative limit means the buffer is
// unbounded.
func NewResponseWriter(resp http.ResponseWriter, limit int) ResponseWriter {
	return newBufferResponse(resp, limit)
}

func newBufferResponse(resp http.ResponseWriter, limit int) *ResponseBuffer {
	buf, _ := bufPool.Get().(*bytes.Buffer)
	buf.Reset()

	return &ResponseBuffer{
		resp:   resp,
		limit:  limit,
		buf:    buf,
		header: http.Header{},
	}
}

// Header returns the header map that will be sent on the next flush.
func (w *ResponseBuffer) Header() http.Header { return w.header }

// WriteHeader records the status code. Only the first call after creation or a reset counts.
func (w *ResponseBuffer) WriteHeader(code int) {
	if w.status != 0 || w.sent {
		return
	}

	w.status = code
}

// Write appends to the buffer. It fails with [ErrBufferFull] without writing anything when the
// buffered bytes would exceed the limit.
func (w *ResponseBuffer) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}

	if w.limit >= 0 && w.buf.Len()+len(p) > w.limit {
		return 0, ErrBufferFull
	}

	return w.buf.Write(p)
}

// Status returns the status written so far, or 0.
func (w *ResponseBuffer) Status() int { return w.status }

// HeadersSent reports whether headers were flushed to the underlying writer.
func (w *ResponseBuffer) HeadersSent() bool { return w.sent }

// Reset discards the buffered status, headers and body. It panics when the headers were already
// flushed since the client has seen them.
func (w *ResponseBuffer) Reset() {
	if w.sent {
		panic("bserve: cannot reset response, it was already flushed")
	}

	w.buf.Reset()
	w.header = http.Header{}
	w.status = 0
}

// Unwrap returns the underlying writer so http.ResponseController can reach it.
func (w *ResponseBuffer) Unwrap() http.ResponseWriter { return w.resp }

// FlushError is called by http.ResponseController. It sends what is buffered and flushes the
// underlying writer, after which headers can no longer change.
func (w *ResponseBuffer) FlushError() error {
	if err := w.FlushBuffer(); err != nil {
		return err
	}

	if err := http.NewResponseController(w.resp).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return errors.Wrap(err, "flush underlying writer")
	}

	return nil
}

// FlushBuffer writes the status, headers (once) and buffered body to the underlying writer.
func (w *ResponseBuffer) FlushBuffer() error {
	if !w.sent {
		dst := w.resp.Header()
		for k, vs := range w.header {
			dst[k] = vs
		}

		if w.status == 0 {
			w.status = http.StatusOK
		}

		w.resp.WriteHeader(w.status)
		w.sent = true
	}

	if w.buf.Len() == 0 {
		return nil
	}

	_, err := w.buf.WriteTo(w.resp)
	if err != nil {
		return errors.Wrap(err, "write buffered body")
	}

	return nil
}

// End finalizes the response: the first call flushes the buffer, later calls do nothing.
func (w *ResponseBuffer) End() error {
	if w.finished {
		return nil
	}

	w.finished = true

	return w.FlushBuffer()
}

// Finished reports whether [ResponseBuffer.End] was called.
func (w *ResponseBuffer) Finished() bool { return w.finished }

// discard drops whatever was not sent yet and marks the response as finished.
func (w *ResponseBuffer) discard() {
	w.buf.Reset()
	w.finished = true
}

// Free returns the buffer to the pool. The writer must not be used afterwards.
func (w *ResponseBuffer) Free() {
	if w.buf == nil {
		return
	}

	bufPool.Put(w.buf)
	w.buf = nil
}

var _ ResponseWriter = &ResponseBuffer{}
