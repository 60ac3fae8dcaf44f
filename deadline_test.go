package bserve_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/advdv/bserve"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadlineHandlerFinishesFirst(t *testing.T) {
	h := bserve.HandlerFunc(func(c *bserve.Context, w bserve.ResponseWriter, _ *http.Request) error {
		w.Header().Set("X-Done", "yes")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, "done")

		return nil
	})

	app, _ := newTestApp(t, bserve.Chain(h, bserve.Deadline(time.Second)))
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "yes", rec.Header().Get("X-Done"))
	require.Equal(t, "done", rec.Body.String())
}

func TestDeadlinePassesErrorsThrough(t *testing.T) {
	h := bserve.HandlerFunc(func(*bserve.Context, bserve.ResponseWriter, *http.Request) error {
		return bserve.NewError(bserve.CodeConflict, errors.New("conflict"))
	})

	app, _ := newTestApp(t, bserve.Chain(h, bserve.Deadline(time.Second)))
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "conflict\n", rec.Body.String())
}

func TestDeadlineExceeded(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan error, 1)

	h := bserve.HandlerFunc(func(_ *bserve.Context, w bserve.ResponseWriter, _ *http.Request) error {
		<-release

		w.WriteHeader(http.StatusOK)
		_, err := fmt.Fprint(w, "late")
		finished <- err

		return nil
	})

	app, logs := newTestApp(t, bserve.Chain(h, bserve.Deadline(10*time.Millisecond)))
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusRequestTimeout, rec.Code)
	require.Equal(t, "408 request timeout\n", rec.Body.String())
	require.Equal(t, int64(0), logs.NumLogUnhandledServeError)

	close(release)

	select {
	case err := <-finished:
		require.ErrorIs(t, err, bserve.ErrHandlerTimeout)
	case <-time.After(time.Second):
		t.Fatal("handler never finished")
	}

	require.Equal(t, http.StatusRequestTimeout, rec.Code)
	require.Equal(t, "408 request timeout\n", rec.Body.String())
}

func TestDeadlineRecoversPanics(t *testing.T) {
	h := bserve.HandlerFunc(func(*bserve.Context, bserve.ResponseWriter, *http.Request) error {
		panic(bserve.NewError(bserve.CodeForbidden, errors.New("nope")))
	})

	app, _ := newTestApp(t, bserve.Chain(h, bserve.Deadline(time.Second)))
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeadlineForwardsExplicitFlush(t *testing.T) {
	h := bserve.HandlerFunc(func(_ *bserve.Context, w bserve.ResponseWriter, _ *http.Request) error {
		fmt.Fprint(w, "head")
		if err := http.NewResponseController(w).Flush(); err != nil {
			return err
		}

		require.True(t, w.HeadersSent())
		fmt.Fprint(w, "tail")

		return nil
	})

	app, _ := newTestApp(t, bserve.Chain(h, bserve.Deadline(time.Second)))
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "headtail", rec.Body.String())
	require.True(t, rec.Flushed)
}

func TestDeadlineKeepsOuterHeaders(t *testing.T) {
	outer := bserve.AdapterFunc(func(next bserve.Handler) bserve.Handler {
		return bserve.HandlerFunc(func(c *bserve.Context, w bserve.ResponseWriter, r *http.Request) error {
			c.SetPersistentHeader(w, "X-Request-ID", "abc")
			return next.ServeBHTTP(c, w, r)
		})
	})

	h := bserve.HandlerFunc(func(_ *bserve.Context, w bserve.ResponseWriter, _ *http.Request) error {
		w.Header().Set("X-Before", "1")
		w.Reset()
		fmt.Fprint(w, "ok")

		return nil
	})

	app, _ := newTestApp(t, bserve.Chain(h, outer, bserve.Deadline(time.Second)))
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, "ok", rec.Body.String())
	require.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
	require.Empty(t, rec.Header().Get("X-Before"))
}

func TestTimeoutCancelsContext(t *testing.T) {
	var cancelled atomic.Bool
	done := make(chan struct{})

	h := bserve.HandlerFunc(func(_ *bserve.Context, _ bserve.ResponseWriter, r *http.Request) error {
		defer close(done)

		<-r.Context().Done()
		cancelled.Store(true)

		return r.Context().Err()
	})

	app, _ := newTestApp(t, bserve.Chain(h, bserve.Timeout(10*time.Millisecond)))
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusRequestTimeout, rec.Code)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler context was never cancelled")
	}

	assert.True(t, cancelled.Load())
}

func TestDeadlineLateHandlerCannotTouchRequest(t *testing.T) {
	type key struct{}

	var outer *bserve.Context
	capture := bserve.AdapterFunc(func(next bserve.Handler) bserve.Handler {
		return bserve.HandlerFunc(func(c *bserve.Context, w bserve.ResponseWriter, r *http.Request) error {
			outer = c
			return next.ServeBHTTP(c, w, r)
		})
	})

	release := make(chan struct{})
	finished := make(chan struct{})

	h := bserve.HandlerFunc(func(c *bserve.Context, w bserve.ResponseWriter, r *http.Request) error {
		defer close(finished)
		<-release

		assert.Same(t, c, bserve.ContextOf(r.Context()))
		c.SetPersistentHeader(w, "X-Late", "1")
		c.Store().Set(key{}, "late")
		c.SetBody("late")
		c.SetRequestID("late")

		return nil
	})

	app, _ := newTestApp(t, bserve.Chain(h, capture, bserve.Deadline(5*time.Millisecond)))
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	close(release)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("handler never finished")
	}

	require.Equal(t, http.StatusRequestTimeout, rec.Code)
	require.Empty(t, rec.Header().Get("X-Late"))

	_, ok := outer.Store().Get(key{})
	require.False(t, ok)
	require.Nil(t, outer.Body())
	require.Empty(t, outer.RequestID())
}

func TestDeadlineJoinsHandlerState(t *testing.T) {
	type key struct{}

	var stored any
	inspect := bserve.AdapterFunc(func(next bserve.Handler) bserve.Handler {
		return bserve.HandlerFunc(func(c *bserve.Context, w bserve.ResponseWriter, r *http.Request) error {
			err := next.ServeBHTTP(c, w, r)
			stored, _ = c.Store().Get(key{})

			return err
		})
	})

	h := bserve.HandlerFunc(func(c *bserve.Context, w bserve.ResponseWriter, _ *http.Request) error {
		c.Store().Set(key{}, "in time")
		c.SetPersistentHeader(w, "Retry-After", "3")

		return bserve.NewError(bserve.CodeConflict, errors.New("conflict"))
	})

	app, _ := newTestApp(t, bserve.Chain(h, inspect, bserve.Deadline(time.Second)))
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "3", rec.Header().Get("Retry-After"))
	require.Equal(t, "in time", stored)
}
