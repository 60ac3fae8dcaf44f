package bapp

import (
	"net/http"
	"strings"

	"github.com/advdv/bserve/adapters"
	"github.com/dustin/go-humanize"
	"github.com/felixge/httpsnoop"
	"go.uber.org/zap"
)

// withAccessLog logs one line for every request once the response was written.
func withAccessLog(logs *zap.Logger) func(http.Handler) http.Handler {
	logs = logs.Named("access")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)

			logs.Info(r.Method+" "+r.RequestURI,
				zap.String("proto", r.Proto),
				zap.String("remote", clientAddr(r)),
				zap.Int("status", m.Code),
				zap.String("size", humanize.Bytes(uint64(max(m.Written, 0)))),
				zap.Duration("duration", m.Duration),
				zap.String("request_id", w.Header().Get(adapters.RequestIDHeader)),
			)
		})
	}
}

// clientAddr prefers the address a proxy reported over the address of the connection.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		return strings.TrimSpace(xff[len(xff)-1])
	}

	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	return r.RemoteAddr
}
