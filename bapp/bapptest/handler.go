package bapptest

import (
	"net/http"
	"net/http/httptest"

	"github.com/advdv/bserve"
	"go.uber.org/zap"
)

// CallHandler invokes a [bserve.HandlerFunc] with a buffered response writer and a fresh
// [bserve.Context], and returns the recorded response. It panics when the handler returns an
// error; use [ServeHandler] to have errors rendered instead.
func CallHandler(handler bserve.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	w := bserve.NewResponseWriter(rec, -1)
	c := bserve.NewContext(req, zap.NewNop())

	if err := handler(c, w, req); err != nil {
		panic("bapptest: handler returned error: " + err.Error())
	}

	if err := w.FlushBuffer(); err != nil {
		panic("bapptest: FlushBuffer failed: " + err.Error())
	}

	return rec
}

// ServeHandler serves req with h through a [bserve.Application], so returned errors render the
// way they do in production.
func ServeHandler(h bserve.Handler, req *http.Request, opts ...bserve.Option) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	opts = append([]bserve.Option{bserve.WithZap(zap.NewNop())}, opts...)
	bserve.NewApplication(h, opts...).ServeHTTP(rec, req)

	return rec
}
