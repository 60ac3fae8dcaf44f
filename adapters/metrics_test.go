package adapters_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/advdv/bserve"
	"github.com/advdv/bserve/adapters"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMetricsApp(t *testing.T) (*bserve.Application, *adapters.Metrics) {
	t.Helper()

	metrics := adapters.NewMetrics(adapters.MetricsConfig{Namespace: "test"}, prometheus.NewRegistry())

	rt := bserve.NewRouter()
	rt.Get("/items/", func(_ *bserve.Context, w bserve.ResponseWriter, _ *http.Request) error {
		w.WriteHeader(http.StatusAccepted)
		return nil
	})
	rt.Post("/fail", func(*bserve.Context, bserve.ResponseWriter, *http.Request) error {
		return bserve.NewError(bserve.CodeConflict, errors.New("conflict"))
	})
	rt.Get("/boom", func(*bserve.Context, bserve.ResponseWriter, *http.Request) error {
		return errors.New("boom")
	})
	rt.Get("/moved", func(*bserve.Context, bserve.ResponseWriter, *http.Request) error {
		return bserve.Redirect("/items/", http.StatusFound)
	})

	return bserve.NewApplication(rt, bserve.WithZap(zap.NewNop()), bserve.WithAdapters(metrics)), metrics
}

func TestMetricsAdapter(t *testing.T) {
	app, metrics := newMetricsApp(t)

	for _, tt := range []struct{ method, target string }{
		{http.MethodGet, "/items/1"},
		{http.MethodGet, "/items/2"},
		{http.MethodPost, "/fail"},
		{http.MethodGet, "/boom"},
		{http.MethodGet, "/moved"},
		{http.MethodGet, "/nowhere"},
	} {
		app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.target, nil))
	}

	expected := `
# HELP test_requests_total Total number of HTTP requests handled
# TYPE test_requests_total counter
test_requests_total{method="GET",route="/boom",status="500"} 1
test_requests_total{method="GET",route="/items/",status="202"} 2
test_requests_total{method="GET",route="/moved",status="302"} 1
test_requests_total{method="GET",route="unmatched",status="404"} 1
test_requests_total{method="POST",route="/fail",status="409"} 1
`
	require.NoError(t, testutil.CollectAndCompare(metrics.Registry(), strings.NewReader(expected), "test_requests_total"))
	assert.Equal(t, 5, testutil.CollectAndCount(metrics.Registry(), "test_request_duration_seconds"))

	inFlight := `
# HELP test_requests_in_flight Number of HTTP requests currently being handled
# TYPE test_requests_in_flight gauge
test_requests_in_flight 0
`
	require.NoError(t, testutil.CollectAndCompare(metrics.Registry(), strings.NewReader(inFlight), "test_requests_in_flight"))
}

func TestMetricsHandler(t *testing.T) {
	app, metrics := newMetricsApp(t)
	app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/1", nil))

	srv := httptest.NewServer(metrics.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `test_requests_total{method="GET",route="/items/",status="202"} 1`)
}
