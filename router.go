package bserve

import (
	"net/http"
	"net/url"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidPattern is returned when registering the empty pattern.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrDuplicateRegistration is returned when a pattern is registered twice.
	ErrDuplicateRegistration = errors.New("multiple registrations for pattern")
)

// Route is a registered pattern with its handler and the methods it accepts. Patterns that end in a slash
// match every path below them (a subtree), other patterns only match exactly.
type Route struct {
	Pattern string
	Handler Handler
	Methods Method
}

// RouterOption configures a [Router].
type RouterOption func(*Router)

// WithNotFound sets the handler used when no route matches.
func WithNotFound(h Handler) RouterOption {
	return func(rt *Router) { rt.notFound = h }
}

// Router is a pattern multiplexer. Routes are registered before serving and only read afterwards.
type Router struct {
	byPattern map[string]*Route
	subtrees  []*Route // longest pattern first
	notFound  Handler
	reverser  *Reverser
	serving   atomic.Bool
	adapters  struct {
		buffered []Adapter
		once     sync.Once
		composed Handler
	}
}

// NewRouter inits an empty router.
func NewRouter(opts ...RouterOption) *Router {
	rt := &Router{
		byPattern: map[string]*Route{},
		notFound:  NotFound,
		reverser:  NewReverser(),
	}

	for _, o := range opts {
		o(rt)
	}

	return rt
}

// Register adds a route. It fails when the pattern is empty or was registered before, regardless of methods.
func (rt *Router) Register(pattern string, h Handler, methods Method) error {
	rt.ensureNotServing()

	if pattern == "" {
		return ErrInvalidPattern
	}

	if _, exists := rt.byPattern[pattern]; exists {
		return errors.Wrapf(ErrDuplicateRegistration, "%q", pattern)
	}

	route := &Route{Pattern: pattern, Handler: h, Methods: methods}
	rt.byPattern[pattern] = route

	if strings.HasSuffix(pattern, "/") {
		i := sort.Search(len(rt.subtrees), func(i int) bool {
			return len(rt.subtrees[i].Pattern) < len(pattern)
		})

		rt.subtrees = slices.Insert(rt.subtrees, i, route)
	}

	return nil
}

// Reverse returns the url based on the name and parameter values.
func (rt *Router) Reverse(name string, vals ...string) (string, error) {
	return rt.reverser.Reverse(name, vals...)
}

// Use allows providing of adapters that run for every request, before the route is matched.
func (rt *Router) Use(a ...Adapter) {
	rt.ensureNotServing()
	rt.adapters.buffered = append(rt.adapters.buffered, a...)
}

// With starts registering routes that are wrapped by the given adapters.
func (rt *Router) With(a ...Adapter) *RouteBuilder {
	return &RouteBuilder{rt: rt, adapters: a}
}

// Handle registers a handler for all methods.
func (rt *Router) Handle(pattern string, h Handler, name ...string) {
	rt.handle(pattern, h, AnyMethod, name...)
}

// HandleFunc registers a function for all methods.
func (rt *Router) HandleFunc(pattern string, f HandlerFunc, name ...string) {
	rt.handle(pattern, f, AnyMethod, name...)
}

// HandleStd registers a standard library [http.Handler] for all methods.
func (rt *Router) HandleStd(pattern string, h http.Handler, name ...string) {
	rt.handle(pattern, FromStd(h), AnyMethod, name...)
}

// HandleMethod registers a handler for the given methods.
func (rt *Router) HandleMethod(methods Method, pattern string, h Handler, name ...string) {
	rt.handle(pattern, h, methods, name...)
}

func (rt *Router) Get(pattern string, f HandlerFunc, name ...string) {
	rt.handle(pattern, f, MethodGet, name...)
}

func (rt *Router) Head(pattern string, f HandlerFunc, name ...string) {
	rt.handle(pattern, f, MethodHead, name...)
}

func (rt *Router) Post(pattern string, f HandlerFunc, name ...string) {
	rt.handle(pattern, f, MethodPost, name...)
}

func (rt *Router) Put(pattern string, f HandlerFunc, name ...string) {
	rt.handle(pattern, f, MethodPut, name...)
}

func (rt *Router) Patch(pattern string, f HandlerFunc, name ...string) {
	rt.handle(pattern, f, MethodPatch, name...)
}

func (rt *Router) Delete(pattern string, f HandlerFunc, name ...string) {
	rt.handle(pattern, f, MethodDelete, name...)
}

func (rt *Router) Connect(pattern string, f HandlerFunc, name ...string) {
	rt.handle(pattern, f, MethodConnect, name...)
}

func (rt *Router) Options(pattern string, f HandlerFunc, name ...string) {
	rt.handle(pattern, f, MethodOptions, name...)
}

func (rt *Router) Trace(pattern string, f HandlerFunc, name ...string) {
	rt.handle(pattern, f, MethodTrace, name...)
}

func (rt *Router) handle(pattern string, h Handler, methods Method, name ...string) {
	if err := rt.Register(pattern, h, methods); err != nil {
		panic("bserve: " + err.Error())
	}

	if len(name) > 0 {
		rt.reverser.Named(name[0], pattern)
	}
}

// Match returns the route for the target and method. The target is an escaped path with an optional raw
// query, as in a request URI. It always returns a route: a redirect to the canonical subtree path, or a
// not-found route with an empty pattern.
func (rt *Router) Match(target string, method Method) *Route {
	raw, query, hasQuery := strings.Cut(target, "?")

	p, err := url.PathUnescape(raw)
	if err != nil {
		p = raw
	}

	p = cleanPath(p)

	exact, ok := rt.byPattern[p]
	if ok && exact.Methods.Has(method) {
		return exact
	}

	if !ok && !strings.HasSuffix(p, "/") {
		if _, sub := rt.byPattern[p+"/"]; sub {
			loc := strings.TrimSuffix(cleanPath(raw), "/") + "/"
			if hasQuery && query != "" {
				loc += "?" + query
			}

			return &Route{Pattern: p + "/", Handler: Redirect(loc, http.StatusMovedPermanently), Methods: AnyMethod}
		}
	}

	for _, route := range rt.subtrees {
		if strings.HasPrefix(p, route.Pattern) && route.Methods.Has(method) {
			return route
		}
	}

	return &Route{Handler: rt.notFound, Methods: AnyMethod}
}

// ServeBHTTP runs the router's adapters and dispatches to the matched route.
func (rt *Router) ServeBHTTP(c *Context, w ResponseWriter, r *http.Request) error {
	rt.serving.Store(true)
	rt.adapters.once.Do(func() {
		rt.adapters.composed = Chain(HandlerFunc(rt.dispatch), rt.adapters.buffered...)
	})

	return rt.adapters.composed.ServeBHTTP(c, w, r)
}

func (rt *Router) dispatch(c *Context, w ResponseWriter, r *http.Request) error {
	if r.RequestURI == "*" || r.URL.Path == "*" {
		return BadRequest
	}

	target := r.URL.EscapedPath()
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	route := rt.Match(target, c.Method())
	c.setPattern(route.Pattern)

	return route.Handler.ServeBHTTP(c, w, r)
}

func (rt *Router) ensureNotServing() {
	if rt.serving.Load() {
		panic("bserve: cannot register on a router that is already serving")
	}
}

// RouteBuilder registers routes wrapped in a fixed set of adapters.
type RouteBuilder struct {
	rt       *Router
	adapters []Adapter
}

// Handle registers a handler for all methods.
func (b *RouteBuilder) Handle(pattern string, h Handler, name ...string) *RouteBuilder {
	return b.HandleMethod(AnyMethod, pattern, h, name...)
}

// HandleFunc registers a function for all methods.
func (b *RouteBuilder) HandleFunc(pattern string, f HandlerFunc, name ...string) *RouteBuilder {
	return b.HandleMethod(AnyMethod, pattern, f, name...)
}

// HandleMethod registers a handler for the given methods.
func (b *RouteBuilder) HandleMethod(methods Method, pattern string, h Handler, name ...string) *RouteBuilder {
	b.rt.handle(pattern, Chain(h, b.adapters...), methods, name...)
	return b
}

func (b *RouteBuilder) Get(pattern string, f HandlerFunc, name ...string) *RouteBuilder {
	return b.HandleMethod(MethodGet, pattern, f, name...)
}

func (b *RouteBuilder) Post(pattern string, f HandlerFunc, name ...string) *RouteBuilder {
	return b.HandleMethod(MethodPost, pattern, f, name...)
}

func (b *RouteBuilder) Put(pattern string, f HandlerFunc, name ...string) *RouteBuilder {
	return b.HandleMethod(MethodPut, pattern, f, name...)
}

func (b *RouteBuilder) Patch(pattern string, f HandlerFunc, name ...string) *RouteBuilder {
	return b.HandleMethod(MethodPatch, pattern, f, name...)
}

func (b *RouteBuilder) Delete(pattern string, f HandlerFunc, name ...string) *RouteBuilder {
	return b.HandleMethod(MethodDelete, pattern, f, name...)
}

// cleanPath returns the canonical path for p, eliminating . and .. elements and repeated slashes while
// keeping a trailing slash.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}

	if p[0] != '/' {
		p = "/" + p
	}

	np := path.Clean(p)
	if p[len(p)-1] == '/' && np != "/" {
		if len(p) == len(np)+1 && strings.HasPrefix(p, np) {
			np = p
		} else {
			np += "/"
		}
	}

	return np
}
