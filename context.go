package bserve

import (
	"context"
	"maps"
	"net/http"
	"net/url"
	"sync/atomic"

	"go.uber.org/zap"
)

// Store is a per-request key/value store. It is owned by a single request and is not safe for
// concurrent use.
type Store struct {
	m map[any]any
}

// Get returns the value stored under key.
func (s *Store) Get(key any) (any, bool) {
	v, ok := s.m[key]
	return v, ok
}

// Set stores val under key.
func (s *Store) Set(key, val any) {
	if s.m == nil {
		s.m = make(map[any]any)
	}

	s.m[key] = val
}

// Delete removes key from the store.
func (s *Store) Delete(key any) {
	delete(s.m, key)
}

// Len returns the number of stored values.
func (s *Store) Len() int { return len(s.m) }

// Context carries the state of one request through the handler chain. It is created once by the
// [Application] when the request arrives and discarded when the response is finalized. It is never
// reused across requests.
type Context struct {
	req   *http.Request
	logs  *zap.Logger
	store Store

	url    *url.URL
	query  url.Values
	method Method
	parsed bool

	body         any
	bodyConsumed bool

	pattern   *atomic.Pointer[string] // shared with forks, the router may set it from a guarded handler
	requestID string
	persist   http.Header
}

// NewContext creates a context for the request. The [Application] does this for every request, it
// is exported for testing handlers in isolation.
func NewContext(r *http.Request, logs *zap.Logger) *Context {
	if logs == nil {
		logs = zap.NewNop()
	}

	return &Context{req: r, logs: logs, pattern: new(atomic.Pointer[string])}
}

// fork returns a copy of c for a handler that may outlive the request. Its store, body and persistent
// headers are private until they are joined back.
func (c *Context) fork() *Context {
	c.parse()
	u := *c.url

	return &Context{
		req:          c.req,
		logs:         c.logs,
		store:        Store{m: maps.Clone(c.store.m)},
		url:          &u,
		query:        maps.Clone(c.query),
		method:       c.method,
		parsed:       true,
		body:         c.body,
		bodyConsumed: c.bodyConsumed,
		pattern:      c.pattern,
		requestID:    c.requestID,
		persist:      c.persist.Clone(),
	}
}

// join adopts the state of a fork whose handler has finished.
func (c *Context) join(f *Context) {
	c.logs = f.logs
	c.store = f.store
	c.body = f.body
	c.bodyConsumed = f.bodyConsumed
	c.requestID = f.requestID
	c.persist = f.persist
}

// Logger returns the request-scoped logger.
func (c *Context) Logger() *zap.Logger { return c.logs }

// SetLogger replaces the request-scoped logger, typically with one carrying more fields.
func (c *Context) SetLogger(l *zap.Logger) { c.logs = l }

// Store returns the request-scoped key/value store.
func (c *Context) Store() *Store { return &c.store }

// URL returns a copy of the request URL with a cleaned path. Computed once.
func (c *Context) URL() *url.URL {
	c.parse()
	return c.url
}

// Query returns the parsed query of the request URL. Computed once.
func (c *Context) Query() url.Values {
	c.parse()
	return c.query
}

// Method returns the normalized request method.
func (c *Context) Method() Method {
	c.parse()
	return c.method
}

func (c *Context) parse() {
	if c.parsed {
		return
	}

	c.parsed = true
	c.method = ParseMethod(c.req.Method)

	u := *c.req.URL
	u.Path = cleanPath(u.Path)
	c.url = &u
	c.query = u.Query()
}

// Body returns the decoded request body, or nil when no reader claimed it.
func (c *Context) Body() any { return c.body }

// BodyConsumed reports whether a body reader already claimed the request body.
func (c *Context) BodyConsumed() bool { return c.bodyConsumed }

// SetBody stores the decoded body and marks the request body as consumed.
func (c *Context) SetBody(v any) {
	c.body = v
	c.bodyConsumed = true
}

// BodyAs returns the decoded body as a T.
func BodyAs[T any](c *Context) (T, bool) {
	v, ok := c.body.(T)
	return v, ok
}

// Pattern returns the pattern of the route that matched the request, empty if none did.
func (c *Context) Pattern() string {
	if c.pattern == nil {
		return ""
	}

	if p := c.pattern.Load(); p != nil {
		return *p
	}

	return ""
}

func (c *Context) setPattern(p string) {
	if c.pattern == nil {
		c.pattern = new(atomic.Pointer[string])
	}

	c.pattern.Store(&p)
}

// RequestID returns the id assigned to the request, if any.
func (c *Context) RequestID() string { return c.requestID }

// SetRequestID records the id assigned to the request.
func (c *Context) SetRequestID(id string) { c.requestID = id }

// SetPersistentHeader sets a response header that is re-applied whenever the response is reset to
// render an error, for example a request id or a Retry-After hint.
func (c *Context) SetPersistentHeader(w http.ResponseWriter, key, value string) {
	if c.persist == nil {
		c.persist = http.Header{}
	}

	c.persist.Set(key, value)
	w.Header().Set(key, value)
}

func (c *Context) applyPersistent(w http.ResponseWriter) {
	for k, vs := range c.persist {
		w.Header()[k] = append([]string(nil), vs...)
	}
}

type ctxKey int

const ctxKeyContext ctxKey = iota

// ContextOf returns the [Context] the Application attached to a request context, or nil. Standard
// library handlers mounted with [FromStd] use it to reach the request-scoped state.
func ContextOf(ctx context.Context) *Context {
	c, _ := ctx.Value(ctxKeyContext).(*Context)
	return c
}

func withContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, ctxKeyContext, c)
}
