package bserve

import (
	"net/http"
	"net/url"
	"strings"
)

// Mount mounts a Handler on a sub-path. The mounted handler receives requests with the mount prefix
// stripped from the path, for the prefix itself and everything below it. Router adapters registered
// via [Router.Use] see the original path; the strip happens after them.
func (rt *Router) Mount(prefix string, handler Handler) {
	prefix = strings.TrimSuffix(cleanPath(prefix), "/")
	if prefix == "" {
		rt.handle("/", handler, AnyMethod)
		return
	}

	stripped := stripPrefix(prefix, handler)

	rt.handle(prefix, stripped, AnyMethod)
	rt.handle(prefix+"/", stripped, AnyMethod)
}

// MountStd mounts a standard library [http.Handler] on a sub-path. See [Router.Mount].
func (rt *Router) MountStd(prefix string, handler http.Handler) {
	rt.Mount(prefix, FromStd(handler))
}

func stripPrefix(prefix string, handler Handler) Handler {
	rawPrefix := (&url.URL{Path: prefix}).EscapedPath()

	return HandlerFunc(func(c *Context, w ResponseWriter, r *http.Request) error {
		u := c.URL()

		p := strings.TrimPrefix(u.Path, prefix)
		if p == "" {
			p = "/"
		}

		rp := ""
		if r.URL.RawPath != "" {
			rp = strings.TrimPrefix(u.EscapedPath(), rawPrefix)
			if rp == "" {
				rp = "/"
			}
		}

		r2 := new(http.Request)
		*r2 = *r
		r2.URL = new(url.URL)
		*r2.URL = *r.URL
		r2.URL.Path = p
		r2.URL.RawPath = rp

		return handler.ServeBHTTP(c, w, r2)
	})
}
