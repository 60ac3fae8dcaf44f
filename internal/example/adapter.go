// Package example implements an example adapter in an outside package.
package example

import (
	"net/http"

	"github.com/advdv/bserve"
	"go.uber.org/zap"
)

// ctxKey type scopes adapter values.
type ctxKey string

// Adapter provides an example for an adapter that tags the request logger and stores it for later use.
func Adapter() bserve.Adapter {
	return bserve.AdapterFunc(func(n bserve.Handler) bserve.Handler {
		return bserve.HandlerFunc(func(c *bserve.Context, w bserve.ResponseWriter, r *http.Request) error {
			logs := c.Logger().With(zap.String("method", r.Method))
			c.SetLogger(logs)
			c.Store().Set(ctxKey("zap"), logs)

			return n.ServeBHTTP(c, w, r)
		})
	})
}

// Log returns the logger stored by [Adapter].
func Log(c *bserve.Context) *zap.Logger {
	v, _ := c.Store().Get(ctxKey("zap"))
	logs, _ := v.(*zap.Logger)

	return logs
}
