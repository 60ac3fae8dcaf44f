// Package bserve provides the request-dispatch core for HTTP servers: a pattern router, adapter composition,
// buffered responses and error-returning handlers whose errors can render themselves.
//
// # Overview
//
// An [Application] turns a [Handler] (usually a [Router]) into an http.Handler. Handlers write to a buffered
// [ResponseWriter] and return an error. When the error is a [RenderableError] the buffer is reset and the
// error renders the response instead, as if it was the handler that matched the request. Any other error is
// logged and replaced by a 500 response.
//
// A minimal example:
//
//	rt := bserve.NewRouter()
//	rt.Get("/items/", func(c *bserve.Context, w bserve.ResponseWriter, r *http.Request) error {
//	    item, err := db.GetItem(path.Base(r.URL.Path))
//	    if err != nil {
//	        return bserve.NewError(bserve.CodeNotFound, err)
//	    }
//	    return json.NewEncoder(w).Encode(item)
//	}, "get-item")
//
//	http.ListenAndServe(":8080", bserve.NewApplication(rt))
//
// # Routing
//
// Patterns are plain paths. A pattern that ends in a slash names a subtree and matches every path below it;
// the longest matching subtree wins. Other patterns only match exactly. A request for "/images" is
// redirected to "/images/" when only the subtree was registered. Requests that match nothing render
// [NotFound], or the handler passed with [WithNotFound].
//
// Each route accepts a set of methods ([Method]); a route that does not accept the request method is
// skipped as if it was not registered.
//
// # Adapters
//
// An [Adapter] wraps a handler. [Chain] composes them so the first adapter is the outer most wrapping:
//
//	h := bserve.Chain(final, a, b) // a runs first, then b, then final
//
// Adapters are used at three levels: globally on the [Application], on the [Router] before matching, and on
// individual routes through [Router.With].
//
// # Buffered Response Writer
//
// Everything a handler writes is held back until the handler returns, so a failing handler can be replaced
// by a clean error response. Handlers that stream can flush explicitly with http.ResponseController; after
// that a failure can no longer be rendered and the connection is aborted instead.
//
// # Request Bodies
//
// Body readers ([StreamReader], [BufferedReader] and the JSON, YAML and text readers built on them) consume
// the body with a size limit before the handler runs. The decoded value is available through [BodyAs].
//
// # Responses
//
// A [Response] is a handler with a fixed status, headers and [Payload]. [JSON], [YAML], [Text], [HTML] and
// [Form] build the common ones; serialized payloads set Content-Type and Content-Length.
//
// # Deadlines
//
// [Deadline] renders [RequestTimeout] when the wrapped handler takes too long. [Timeout] additionally
// cancels the handler's request context.
package bserve
