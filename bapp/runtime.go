package bapp

import (
	"net/http"

	"github.com/advdv/bserve"
	"github.com/carlmjohnson/requests"
)

// Runtime provides access to app-scoped dependencies.
// Inject this into handler constructors via fx instead of pulling from context.
//
// Example:
//
//	type Handlers struct {
//	    rt *bapp.Runtime[Env]
//	}
//
//	func NewHandlers(rt *bapp.Runtime[Env]) *Handlers {
//	    return &Handlers{rt: rt}
//	}
//
//	func (h *Handlers) GetItem(c *bserve.Context, w bserve.ResponseWriter, r *http.Request) error {
//	    env := h.rt.Env()
//	    url, _ := h.rt.Reverse("get-item", id)
//	    // ...
//	}
type Runtime[E Environment] struct {
	env       E
	router    *Router
	transport http.RoundTripper
}

// RuntimeParams holds optional dependencies for Runtime.
type RuntimeParams struct {
	Transport http.RoundTripper
}

// NewRuntime creates a new Runtime with the given dependencies.
func NewRuntime[E Environment](env E, router *Router, params RuntimeParams) *Runtime[E] {
	if params.Transport == nil {
		params.Transport = http.DefaultTransport
	}

	return &Runtime[E]{
		env:       env,
		router:    router,
		transport: params.Transport,
	}
}

// Env returns the environment configuration.
func (r *Runtime[E]) Env() E {
	return r.env
}

// Reverse returns the URL for a named route with the given parameters.
// The route must have been registered with a name.
func (r *Runtime[E]) Reverse(name string, params ...string) (string, error) {
	return r.router.Reverse(name, params...)
}

// BodyLimit returns the configured request body limit, for use with the bserve body readers:
//
//	rt.With(bserve.ReadBody(bserve.NewJSONReader[Item](h.rt.BodyLimit())))
func (r *Runtime[E]) BodyLimit() int64 {
	if limit := r.env.bodyLimit(); limit > 0 {
		return limit
	}

	return bserve.DefaultBodyLimit
}

// NewRequest returns a request builder whose calls are traced as children of the current span.
//
//	var out Item
//	err := h.rt.NewRequest().BaseURL("https://example.com").Path("/items/1").ToJSON(&out).Fetch(ctx)
func (r *Runtime[E]) NewRequest() *requests.Builder {
	return newRequestBuilder(r.transport)
}
