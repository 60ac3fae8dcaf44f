package adapters

import (
	"fmt"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/advdv/bserve"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// RequestIDHeader is the response header that carries the request id.
const RequestIDHeader = "X-Request-ID"

// RequestIDs hands out process-unique request ids of the form "<host>/<guid>-<sequence>", for
// example "api-1/Xk3fP0aQ9z-000042". The guid is generated once so ids from different processes
// on the same host never collide.
type RequestIDs struct {
	prefix string
	seq    atomic.Uint64
}

// NewRequestIDs creates an id source for the given host. An empty host is replaced with the
// hostname of the machine, or "localhost" when that is unknown.
func NewRequestIDs(host string) *RequestIDs {
	if host == "" {
		host, _ = os.Hostname()
	}

	if host == "" {
		host = "localhost"
	}

	return &RequestIDs{prefix: host + "/" + lo.RandomString(10, lo.AlphanumericCharset)}
}

// Next returns the next id.
func (ids *RequestIDs) Next() string {
	return fmt.Sprintf("%s-%06d", ids.prefix, ids.seq.Add(1))
}

// Prefix returns the "<host>/<guid>" part shared by every id of this source.
func (ids *RequestIDs) Prefix() string { return ids.prefix }

var defaultIDs = NewRequestIDs("")

// RequestID returns an adapter that assigns every request an id from the process-wide source.
func RequestID() bserve.Adapter {
	return RequestIDFrom(defaultIDs)
}

// RequestIDFrom returns an adapter that assigns ids from ids. The id is recorded on the
// [bserve.Context], added to the request logger and sent as a persistent X-Request-ID header so it
// also shows up on error responses.
func RequestIDFrom(ids *RequestIDs) bserve.Adapter {
	return bserve.AdapterFunc(func(next bserve.Handler) bserve.Handler {
		return bserve.HandlerFunc(func(c *bserve.Context, w bserve.ResponseWriter, r *http.Request) error {
			id := ids.Next()

			c.SetRequestID(id)
			c.SetLogger(c.Logger().With(zap.String("request_id", id)))
			c.SetPersistentHeader(w, RequestIDHeader, id)

			return next.ServeBHTTP(c, w, r)
		})
	})
}
